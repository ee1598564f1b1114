package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// Default pagination
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// HTTP Headers
	HeaderContentType    = "Content-Type"
	HeaderAuthorization  = "Authorization"
	HeaderXRequestID     = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderWebhookKey     = "X-Webhook-Key"

	ContentTypeJSON = "application/json"

	// Context keys
	ContextKeyUserID         = "user_id"
	ContextKeyUserRole       = "user_role"
	ContextKeyOrganizationID = "organization_id"
	ContextKeyRequestID      = "request_id"

	// Database table names
	TableRoutingRules       = "routing_rules"
	TableProviderOverrides  = "provider_overrides"
	TableRoutingDecisions   = "routing_decisions"
	TableRetryPolicies      = "retry_policies"
	TableRetrySchedules     = "retry_schedules"
	TableRetryAttempts      = "retry_attempts"
	TableReminders          = "payment_reminders"
	TableDunningConfigs     = "dunning_configs"
	TableDunningRuns        = "dunning_runs"
	TablePaymentSchedules   = "payment_schedules"
	TableBillingLines       = "billing_lines"
	TableInvoices           = "invoices"
	TableServiceBundles     = "service_bundles"
	TableAuditEntries       = "audit_entries"
	TableIdempotencyKeys    = "idempotency_keys"
	TableAlerts             = "alerts"
	TableSideEffects        = "side_effects"
	TablePaymentLinks       = "payment_links"
	TableCasbinRule         = "casbin_rule"
	TableSchemaMigrations   = "schema_migrations"
	TableGooseDBVersion     = "goose_db_version"
	DefaultRedisKeyPrefix   = "payops:"
	DefaultEventBusChannel  = "payops.events"
	DefaultEventBusExchange = "payops.events"
)
