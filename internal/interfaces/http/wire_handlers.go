package http

import (
	"github.com/payops/payops/internal/interfaces/http/handlers"
	"github.com/payops/payops/internal/shared/logger"
)

// allHandlers holds the HTTP handlers, one per API area.
type allHandlers struct {
	paymentEventHandler *handlers.PaymentEventHandler
	routingHandler      *handlers.RoutingHandler
	retryHandler        *handlers.RetryHandler
	dunningHandler      *handlers.DunningHandler
	policyHandler       *handlers.PolicyHandler
	suspensionHandler   *handlers.SuspensionHandler
	ledgerHandler       *handlers.LedgerHandler
}

func newHandlers(ucs *allUseCases, ledger handlers.LedgerReader, log logger.Interface) *allHandlers {
	return &allHandlers{
		paymentEventHandler: handlers.NewPaymentEventHandler(ucs.handlePaymentEventUC, ucs.applySignalUC, log),
		routingHandler: handlers.NewRoutingHandler(
			ucs.createRuleUC,
			ucs.updateRuleUC,
			ucs.deleteRuleUC,
			ucs.listRulesUC,
			ucs.upsertOverrideUC,
			ucs.deleteOverrideUC,
			ucs.testRoutingUC,
			log,
		),
		retryHandler:   handlers.NewRetryHandler(ucs.getScheduleUC, ucs.recordAttemptUC, ucs.resolveScheduleUC, log),
		dunningHandler: handlers.NewDunningHandler(ucs.getRunUC, ucs.cancelRunUC, ucs.redeemLinkUC, log),
		policyHandler: handlers.NewPolicyHandler(
			ucs.upsertPolicyUC,
			ucs.listPoliciesUC,
			ucs.resolvePolicyUC,
			ucs.upsertConfigUC,
			ucs.listConfigsUC,
			ucs.upsertBundleUC,
			ucs.listBundlesUC,
			log,
		),
		suspensionHandler: handlers.NewSuspensionHandler(ucs.nonPaymentUC, log),
		ledgerHandler:     handlers.NewLedgerHandler(ledger, log),
	}
}
