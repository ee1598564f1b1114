package usecases

import (
	"context"
	"strings"

	"github.com/payops/payops/internal/application/policy/dto"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type UpsertServiceBundleCommand struct {
	OrganizationID    string
	Name              string
	AnchorServiceCode string
	MemberCodes       []string
}

// UpsertServiceBundleUseCase defines which service anchors a bundle. Bundles
// are keyed by organization and name.
type UpsertServiceBundleUseCase struct {
	bundleRepo billing.BundleRepository
	clock      biztime.Clock
	logger     logger.Interface
}

func NewUpsertServiceBundleUseCase(bundleRepo billing.BundleRepository, clock biztime.Clock, logger logger.Interface) *UpsertServiceBundleUseCase {
	return &UpsertServiceBundleUseCase{bundleRepo: bundleRepo, clock: clock, logger: logger}
}

func (uc *UpsertServiceBundleUseCase) Execute(ctx context.Context, cmd UpsertServiceBundleCommand) (*dto.ServiceBundleDTO, error) {
	name := strings.TrimSpace(cmd.Name)
	anchor := strings.ToUpper(strings.TrimSpace(cmd.AnchorServiceCode))
	members := make([]string, 0, len(cmd.MemberCodes))
	for _, c := range cmd.MemberCodes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == anchor {
			return nil, apperrors.NewValidationError("the anchor service cannot be a bundle member", c)
		}
		members = append(members, c)
	}
	if name == "" {
		return nil, apperrors.NewValidationError("bundle name is required")
	}

	now := uc.clock.Now()
	bundle, err := uc.bundleRepo.FindByName(ctx, cmd.OrganizationID, name)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		bundle, err = billing.NewBundle(cmd.OrganizationID, name, anchor, members, now)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
	} else {
		bundle.Redefine(name, anchor, members, now)
	}
	if err := uc.bundleRepo.Upsert(ctx, bundle); err != nil {
		uc.logger.Errorw("failed to upsert service bundle", "error", err, "name", name)
		return nil, err
	}
	uc.logger.Infow("service bundle saved", "name", name, "anchor", anchor, "members", len(members))
	return dto.ToServiceBundleDTO(bundle), nil
}

type ListServiceBundlesUseCase struct {
	bundleRepo billing.BundleRepository
}

func NewListServiceBundlesUseCase(bundleRepo billing.BundleRepository) *ListServiceBundlesUseCase {
	return &ListServiceBundlesUseCase{bundleRepo: bundleRepo}
}

func (uc *ListServiceBundlesUseCase) Execute(ctx context.Context, organizationID string) ([]*dto.ServiceBundleDTO, error) {
	bundles, err := uc.bundleRepo.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return dto.ToServiceBundleDTOs(bundles), nil
}
