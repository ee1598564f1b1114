package http

import (
	dunningUsecases "github.com/payops/payops/internal/application/dunning/usecases"
	ingestUsecases "github.com/payops/payops/internal/application/ingest/usecases"
	policyUsecases "github.com/payops/payops/internal/application/policy/usecases"
	retryUsecases "github.com/payops/payops/internal/application/retry/usecases"
	routingUsecases "github.com/payops/payops/internal/application/routing/usecases"
	sideeffectUsecases "github.com/payops/payops/internal/application/sideeffect/usecases"
	suspensionUsecases "github.com/payops/payops/internal/application/suspension/usecases"
)

// allUseCases holds every use case the container builds, grouped by area.
type allUseCases struct {
	// Routing
	evaluateRoutingUC *routingUsecases.EvaluateRoutingUseCase
	testRoutingUC     *routingUsecases.TestRoutingUseCase
	createRuleUC      *routingUsecases.CreateRoutingRuleUseCase
	updateRuleUC      *routingUsecases.UpdateRoutingRuleUseCase
	deleteRuleUC      *routingUsecases.DeleteRoutingRuleUseCase
	listRulesUC       *routingUsecases.ListRoutingRulesUseCase
	upsertOverrideUC  *routingUsecases.UpsertProviderOverrideUseCase
	deleteOverrideUC  *routingUsecases.DeleteProviderOverrideUseCase

	// Retry
	openScheduleUC    *retryUsecases.OpenRetryScheduleUseCase
	recordAttemptUC   *retryUsecases.RecordAttemptUseCase
	applySignalUC     *retryUsecases.ApplySignalUseCase
	resolveScheduleUC *retryUsecases.ResolveRetryScheduleUseCase
	getScheduleUC     *retryUsecases.GetRetryScheduleUseCase
	sweepRetriesUC    *retryUsecases.SweepRetriesUseCase

	// Dunning
	orchestrator       *dunningUsecases.Orchestrator
	linkIssuer         *dunningUsecases.PaymentLinkIssuer
	paymentFailureUC   *dunningUsecases.HandlePaymentFailureUseCase
	paymentSuccessUC   *dunningUsecases.HandlePaymentSuccessUseCase
	cancelRunUC        *dunningUsecases.CancelDunningRunUseCase
	getRunUC           *dunningUsecases.GetDunningRunUseCase
	sweepDunningUC     *dunningUsecases.SweepDunningUseCase
	redeemLinkUC       *dunningUsecases.RedeemPaymentLinkUseCase
	purgePaymentLinkUC *dunningUsecases.PurgePaymentLinksUseCase

	// Policies, configs and bundles
	upsertPolicyUC  *policyUsecases.UpsertRetryPolicyUseCase
	listPoliciesUC  *policyUsecases.ListRetryPoliciesUseCase
	resolvePolicyUC *policyUsecases.ResolveRetryPolicyUseCase
	upsertConfigUC  *policyUsecases.UpsertDunningConfigUseCase
	listConfigsUC   *policyUsecases.ListDunningConfigsUseCase
	upsertBundleUC  *policyUsecases.UpsertServiceBundleUseCase
	listBundlesUC   *policyUsecases.ListServiceBundlesUseCase

	// Ingest, suspension and outbox
	handlePaymentEventUC *ingestUsecases.HandlePaymentEventUseCase
	nonPaymentUC         *suspensionUsecases.HandleServiceNonPaymentUseCase
	dispatchUC           *sideeffectUsecases.DispatchSideEffectsUseCase
}
