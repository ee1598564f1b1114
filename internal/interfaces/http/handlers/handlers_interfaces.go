package handlers

import (
	"context"

	dunningdto "github.com/payops/payops/internal/application/dunning/dto"
	dunningusecases "github.com/payops/payops/internal/application/dunning/usecases"
	ingestusecases "github.com/payops/payops/internal/application/ingest/usecases"
	policydto "github.com/payops/payops/internal/application/policy/dto"
	policyusecases "github.com/payops/payops/internal/application/policy/usecases"
	retrydto "github.com/payops/payops/internal/application/retry/dto"
	retryusecases "github.com/payops/payops/internal/application/retry/usecases"
	routingdto "github.com/payops/payops/internal/application/routing/dto"
	routingusecases "github.com/payops/payops/internal/application/routing/usecases"
	suspensiondto "github.com/payops/payops/internal/application/suspension/dto"
	suspensionusecases "github.com/payops/payops/internal/application/suspension/usecases"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
)

// Use case interfaces for PaymentEventHandler

type handlePaymentEventUseCase interface {
	Execute(ctx context.Context, cmd ingestusecases.HandlePaymentEventCommand) (*ingestusecases.HandlePaymentEventResult, error)
}

type applySignalUseCase interface {
	Execute(ctx context.Context, cmd retryusecases.ApplySignalCommand) (*retryusecases.ApplySignalResult, error)
}

// Use case interfaces for RoutingHandler

type createRoutingRuleUseCase interface {
	Execute(ctx context.Context, cmd routingusecases.CreateRoutingRuleCommand) (*routingdto.RoutingRuleDTO, error)
}

type updateRoutingRuleUseCase interface {
	Execute(ctx context.Context, cmd routingusecases.UpdateRoutingRuleCommand) (*routingdto.RoutingRuleDTO, error)
}

type deleteRoutingRuleUseCase interface {
	Execute(ctx context.Context, cmd routingusecases.DeleteRoutingRuleCommand) error
}

type listRoutingRulesUseCase interface {
	Execute(ctx context.Context, query routingusecases.ListRoutingRulesQuery) ([]*routingdto.RoutingRuleDTO, error)
}

type upsertProviderOverrideUseCase interface {
	Execute(ctx context.Context, cmd routingusecases.UpsertProviderOverrideCommand) (*routingdto.ProviderOverrideDTO, error)
}

type deleteProviderOverrideUseCase interface {
	Execute(ctx context.Context, cmd routingusecases.DeleteProviderOverrideCommand) error
}

type testRoutingUseCase interface {
	Execute(ctx context.Context, cmd routingusecases.TestRoutingCommand) (*routingdto.RoutingDecisionDTO, error)
}

// Use case interfaces for RetryHandler

type getRetryScheduleUseCase interface {
	Execute(ctx context.Context, query retryusecases.GetRetryScheduleQuery) (*retrydto.ScheduleDetailDTO, error)
}

type recordAttemptUseCase interface {
	Execute(ctx context.Context, cmd retryusecases.RecordAttemptCommand) (*retryusecases.RecordAttemptResult, error)
}

type resolveRetryScheduleUseCase interface {
	Execute(ctx context.Context, cmd retryusecases.ResolveRetryScheduleCommand) (*retrydto.RetryScheduleDTO, error)
}

// Use case interfaces for DunningHandler

type getDunningRunUseCase interface {
	Execute(ctx context.Context, query dunningusecases.GetDunningRunQuery) (*dunningusecases.DunningRunDetail, error)
}

type cancelDunningRunUseCase interface {
	Execute(ctx context.Context, cmd dunningusecases.CancelDunningRunCommand) (*dunningdto.DunningRunDTO, error)
}

type redeemPaymentLinkUseCase interface {
	Execute(ctx context.Context, cmd dunningusecases.RedeemPaymentLinkCommand) (*dunningusecases.RedeemPaymentLinkResult, error)
}

// Use case interfaces for PolicyHandler

type upsertRetryPolicyUseCase interface {
	Execute(ctx context.Context, cmd policyusecases.UpsertRetryPolicyCommand) (*policyusecases.UpsertRetryPolicyResult, error)
}

type listRetryPoliciesUseCase interface {
	Execute(ctx context.Context, query policyusecases.ListRetryPoliciesQuery) ([]*retrydto.RetryPolicyDTO, error)
}

type resolveRetryPolicyUseCase interface {
	Execute(ctx context.Context, query policyusecases.ResolveRetryPolicyQuery) (*retrydto.RetryPolicyDTO, error)
}

type upsertDunningConfigUseCase interface {
	Execute(ctx context.Context, cmd policyusecases.UpsertDunningConfigCommand) (*policyusecases.UpsertDunningConfigResult, error)
}

type listDunningConfigsUseCase interface {
	Execute(ctx context.Context, query policyusecases.ListDunningConfigsQuery) ([]*dunningdto.DunningConfigDTO, error)
}

type upsertServiceBundleUseCase interface {
	Execute(ctx context.Context, cmd policyusecases.UpsertServiceBundleCommand) (*policydto.ServiceBundleDTO, error)
}

type listServiceBundlesUseCase interface {
	Execute(ctx context.Context, organizationID string) ([]*policydto.ServiceBundleDTO, error)
}

// Use case interfaces for SuspensionHandler

type handleServiceNonPaymentUseCase interface {
	Execute(ctx context.Context, cmd suspensionusecases.HandleServiceNonPaymentCommand) (*suspensiondto.NonPaymentResultDTO, error)
}

// LedgerReader exposes alerts and audit history to operators.
type LedgerReader interface {
	Alerts(ctx context.Context, organizationID, companyID string, limit int) ([]*alert.Alert, error)
	History(ctx context.Context, entityType audit.EntityType, entityID string) ([]*audit.Entry, error)
}
