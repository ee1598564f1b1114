package usecases

import (
	"context"
	"strings"

	"github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type UpsertDunningConfigCommand struct {
	OrganizationID string
	CompanyID      string
	Name           string
	Steps          []dto.StepInput
	IsDefault      bool
	Enabled        bool
	Actor          string
}

type UpsertDunningConfigResult struct {
	Config  *dto.DunningConfigDTO `json:"config"`
	Created bool                  `json:"created"`
}

// UpsertDunningConfigUseCase creates or replaces the named escalation of an
// organization or company. Open runs keep executing the steps of the config
// they were opened under, so editing a config reshapes them too.
type UpsertDunningConfigUseCase struct {
	configRepo dunning.ConfigRepository
	txMgr      db.Transactor
	ledger     *ledger.Service
	logger     logger.Interface
}

func NewUpsertDunningConfigUseCase(
	configRepo dunning.ConfigRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	logger logger.Interface,
) *UpsertDunningConfigUseCase {
	return &UpsertDunningConfigUseCase{configRepo: configRepo, txMgr: txMgr, ledger: ledgerService, logger: logger}
}

func (uc *UpsertDunningConfigUseCase) Execute(ctx context.Context, cmd UpsertDunningConfigCommand) (*UpsertDunningConfigResult, error) {
	steps, err := dto.ToSteps(cmd.Steps)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	name := strings.TrimSpace(cmd.Name)

	result := &UpsertDunningConfigResult{}
	err = uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := uc.configRepo.ListByOrganization(ctx, cmd.OrganizationID)
		if err != nil {
			return err
		}

		var (
			target *dunning.Config
			before *dto.DunningConfigDTO
		)
		for _, c := range existing {
			if c.CompanyID() == cmd.CompanyID && strings.EqualFold(c.Name(), name) {
				target = c
			}
		}
		if target == nil {
			target, err = dunning.NewConfig(cmd.OrganizationID, cmd.CompanyID, name, steps, cmd.IsDefault)
			if err != nil {
				return apperrors.NewValidationError(err.Error())
			}
			if !cmd.Enabled {
				if err := target.Update(name, steps, cmd.IsDefault, false); err != nil {
					return apperrors.NewValidationError(err.Error())
				}
			}
			result.Created = true
		} else {
			before = dto.ToDunningConfigDTO(target)
			if err := target.Update(name, steps, cmd.IsDefault, cmd.Enabled); err != nil {
				return apperrors.NewValidationError(err.Error())
			}
		}

		if target.IsDefault() {
			for _, c := range existing {
				if c.ID() == target.ID() || !c.IsDefault() || c.CompanyID() != cmd.CompanyID {
					continue
				}
				demoted := dto.ToDunningConfigDTO(c)
				c.ClearDefault()
				if err := uc.configRepo.Update(ctx, c); err != nil {
					return err
				}
				if err := uc.record(ctx, c, "clear_default", cmd.Actor, demoted); err != nil {
					return err
				}
			}
		}

		action := "update"
		if result.Created {
			action = "create"
			err = uc.configRepo.Create(ctx, target)
		} else {
			err = uc.configRepo.Update(ctx, target)
		}
		if err != nil {
			return err
		}
		result.Config = dto.ToDunningConfigDTO(target)
		return uc.record(ctx, target, action, cmd.Actor, before)
	})
	if err != nil {
		uc.logger.Errorw("failed to upsert dunning config", "error", err, "company_id", cmd.CompanyID, "name", name)
		return nil, err
	}

	uc.logger.Infow("dunning config saved",
		"config_id", result.Config.ID,
		"company_id", cmd.CompanyID,
		"steps", len(result.Config.Steps),
		"created", result.Created,
	)
	return result, nil
}

func (uc *UpsertDunningConfigUseCase) record(ctx context.Context, c *dunning.Config, action, actor string, before *dto.DunningConfigDTO) error {
	t := ledger.Transition{
		OrganizationID: c.OrganizationID(),
		EntityType:     audit.EntityDunningConfig,
		EntityID:       c.ID(),
		Action:         action,
		Actor:          actor,
		After:          dto.ToDunningConfigDTO(c),
	}
	if before != nil {
		t.Before = before
	}
	return uc.ledger.Record(ctx, t)
}

type ListDunningConfigsQuery struct {
	OrganizationID string
}

type ListDunningConfigsUseCase struct {
	configRepo dunning.ConfigRepository
	logger     logger.Interface
}

func NewListDunningConfigsUseCase(configRepo dunning.ConfigRepository, logger logger.Interface) *ListDunningConfigsUseCase {
	return &ListDunningConfigsUseCase{configRepo: configRepo, logger: logger}
}

func (uc *ListDunningConfigsUseCase) Execute(ctx context.Context, query ListDunningConfigsQuery) ([]*dto.DunningConfigDTO, error) {
	configs, err := uc.configRepo.ListByOrganization(ctx, query.OrganizationID)
	if err != nil {
		uc.logger.Errorw("failed to list dunning configs", "error", err, "organization_id", query.OrganizationID)
		return nil, err
	}
	return dto.ToDunningConfigDTOs(configs), nil
}
