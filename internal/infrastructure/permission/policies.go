package permission

import "fmt"

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

const (
	ResourceRoutingRule      = "routing_rule"
	ResourceProviderOverride = "provider_override"
	ResourceRoutingTest      = "routing_test"
	ResourceRetryPolicy      = "retry_policy"
	ResourceDunningConfig    = "dunning_config"
	ResourceServiceBundle    = "service_bundle"
	ResourceRetrySchedule    = "retry_schedule"
	ResourceDunningRun       = "dunning_run"
	ResourcePaymentEvent     = "payment_event"
	ResourceSuspension       = "suspension"
	ResourceAlert            = "alert"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionCancel = "cancel"
)

// DefaultPolicies grants admins everything, operators the day-to-day
// interventions and viewers read access.
func DefaultPolicies() [][]string {
	policies := [][]string{
		{RoleAdmin, "*", "*"},
	}

	readable := []string{
		ResourceRoutingRule, ResourceProviderOverride, ResourceRetryPolicy, ResourceDunningConfig,
		ResourceServiceBundle, ResourceRetrySchedule, ResourceDunningRun, ResourceAlert,
	}
	for _, r := range readable {
		policies = append(policies, []string{RoleViewer, r, ActionRead})
	}

	policies = append(policies,
		[]string{RoleOperator, ResourceRoutingTest, ActionWrite},
		[]string{RoleOperator, ResourceProviderOverride, ActionWrite},
		[]string{RoleOperator, ResourceRetrySchedule, ActionWrite},
		[]string{RoleOperator, ResourceRetrySchedule, ActionCancel},
		[]string{RoleOperator, ResourceDunningRun, ActionCancel},
		[]string{RoleOperator, ResourcePaymentEvent, ActionWrite},
		[]string{RoleOperator, ResourceSuspension, ActionWrite},
	)
	return policies
}

// InitDefaultPolicies stores DefaultPolicies and makes operators inherit the
// viewer grants. Existing rules are left untouched.
func (e *Enforcer) InitDefaultPolicies() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range DefaultPolicies() {
		if _, err := e.enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			e.logger.Errorw("failed to add permission policy",
				"error", err,
				"role", p[0],
				"resource", p[1],
				"action", p[2])
			return fmt.Errorf("failed to add policy [%s, %s, %s]: %w", p[0], p[1], p[2], err)
		}
	}
	if _, err := e.enforcer.AddRoleForUser(RoleOperator, RoleViewer); err != nil {
		return fmt.Errorf("failed to link operator to viewer: %w", err)
	}

	e.logger.Info("permission policies initialized")
	return nil
}
