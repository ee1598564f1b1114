package usecases

import (
	"context"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/routing/dto"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type UpsertProviderOverrideCommand struct {
	OrganizationID    string
	Scope             routing.OverrideScope
	ScopeID           string
	ProviderAccountID string
	Reason            string
	Actor             string
}

// UpsertProviderOverrideUseCase creates an override or replaces the existing
// one for the same scope, keeping its identity.
type UpsertProviderOverrideUseCase struct {
	overrideRepo routing.OverrideRepository
	txMgr        db.Transactor
	ledger       *ledger.Service
	logger       logger.Interface
}

func NewUpsertProviderOverrideUseCase(
	overrideRepo routing.OverrideRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	logger logger.Interface,
) *UpsertProviderOverrideUseCase {
	return &UpsertProviderOverrideUseCase{overrideRepo: overrideRepo, txMgr: txMgr, ledger: ledgerService, logger: logger}
}

func (uc *UpsertProviderOverrideUseCase) Execute(ctx context.Context, cmd UpsertProviderOverrideCommand) (*dto.ProviderOverrideDTO, error) {
	if !cmd.Scope.Valid() {
		return nil, apperrors.NewValidationError("invalid override scope", string(cmd.Scope))
	}

	var result *routing.Override
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := uc.overrideRepo.Find(ctx, cmd.OrganizationID, cmd.Scope, cmd.ScopeID)
		if err != nil {
			return err
		}

		var before *dto.ProviderOverrideDTO
		action := "create"
		if existing != nil {
			before = dto.ToProviderOverrideDTO(existing)
			if err := existing.Replace(cmd.ProviderAccountID, cmd.Reason, cmd.Actor); err != nil {
				return apperrors.NewValidationError(err.Error())
			}
			result = existing
			action = "replace"
		} else {
			o, err := routing.NewOverride(cmd.OrganizationID, cmd.Scope, cmd.ScopeID, cmd.ProviderAccountID, cmd.Reason, cmd.Actor)
			if err != nil {
				return apperrors.NewValidationError(err.Error())
			}
			result = o
		}

		if err := uc.overrideRepo.Upsert(ctx, result); err != nil {
			return err
		}
		return uc.ledger.Record(ctx, ledger.Transition{
			OrganizationID: cmd.OrganizationID,
			EntityType:     audit.EntityOverride,
			EntityID:       result.ID(),
			Action:         action,
			Actor:          cmd.Actor,
			Before:         before,
			After:          dto.ToProviderOverrideDTO(result),
		})
	})
	if err != nil {
		uc.logger.Errorw("failed to upsert provider override", "error", err, "scope", cmd.Scope, "scope_id", cmd.ScopeID)
		return nil, err
	}

	uc.logger.Infow("provider override saved",
		"override_id", result.ID(),
		"scope", result.Scope(),
		"scope_id", result.ScopeID(),
		"provider_account_id", result.ProviderAccountID(),
	)
	return dto.ToProviderOverrideDTO(result), nil
}

type DeleteProviderOverrideCommand struct {
	OrganizationID string
	Scope          routing.OverrideScope
	ScopeID        string
	Actor          string
}

type DeleteProviderOverrideUseCase struct {
	overrideRepo routing.OverrideRepository
	txMgr        db.Transactor
	ledger       *ledger.Service
	logger       logger.Interface
}

func NewDeleteProviderOverrideUseCase(
	overrideRepo routing.OverrideRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	logger logger.Interface,
) *DeleteProviderOverrideUseCase {
	return &DeleteProviderOverrideUseCase{overrideRepo: overrideRepo, txMgr: txMgr, ledger: ledgerService, logger: logger}
}

func (uc *DeleteProviderOverrideUseCase) Execute(ctx context.Context, cmd DeleteProviderOverrideCommand) error {
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := uc.overrideRepo.Find(ctx, cmd.OrganizationID, cmd.Scope, cmd.ScopeID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperrors.NewNotFoundError("provider override not found", cmd.ScopeID)
		}
		if err := uc.overrideRepo.Delete(ctx, cmd.OrganizationID, cmd.Scope, cmd.ScopeID); err != nil {
			return err
		}
		return uc.ledger.Record(ctx, ledger.Transition{
			OrganizationID: cmd.OrganizationID,
			EntityType:     audit.EntityOverride,
			EntityID:       existing.ID(),
			Action:         "delete",
			Actor:          cmd.Actor,
			Before:         dto.ToProviderOverrideDTO(existing),
		})
	})
	if err != nil {
		uc.logger.Errorw("failed to delete provider override", "error", err, "scope", cmd.Scope, "scope_id", cmd.ScopeID)
		return err
	}
	uc.logger.Infow("provider override deleted", "scope", cmd.Scope, "scope_id", cmd.ScopeID)
	return nil
}
