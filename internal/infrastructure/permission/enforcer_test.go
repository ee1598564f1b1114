package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/shared/logger"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	e, err := NewEnforcer(db, "", logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, e.InitDefaultPolicies())
	return e
}

func TestEnforcer_DefaultPolicies(t *testing.T) {
	e := newTestEnforcer(t)

	tests := []struct {
		subject  string
		resource string
		action   string
		want     bool
	}{
		{RoleAdmin, ResourceRoutingRule, ActionWrite, true},
		{RoleAdmin, ResourceDunningRun, ActionCancel, true},
		{RoleOperator, ResourceDunningRun, ActionCancel, true},
		{RoleOperator, ResourceRetryPolicy, ActionRead, true},
		{RoleOperator, ResourceRetryPolicy, ActionWrite, false},
		{RoleViewer, ResourceAlert, ActionRead, true},
		{RoleViewer, ResourceRetrySchedule, ActionCancel, false},
		{"stranger", ResourceAlert, ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.subject+"/"+tt.resource+"/"+tt.action, func(t *testing.T) {
			ok, err := e.Enforce(tt.subject, tt.resource, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEnforcer_InitIsIdempotentAndPersists(t *testing.T) {
	e := newTestEnforcer(t)
	require.NoError(t, e.InitDefaultPolicies())

	require.NoError(t, e.AddRoleForSubject("ops@example.test", RoleOperator))
	require.NoError(t, e.LoadPolicy())

	roles, err := e.RolesForSubject("ops@example.test")
	require.NoError(t, err)
	assert.Equal(t, []string{RoleOperator}, roles)

	ok, err := e.Enforce("ops@example.test", ResourceRetrySchedule, ActionRead)
	require.NoError(t, err)
	assert.True(t, ok, "inherits viewer grants through operator")

	require.NoError(t, e.RemovePolicy(RoleOperator, ResourceDunningRun, ActionCancel))
	ok, err = e.Enforce(RoleOperator, ResourceDunningRun, ActionCancel)
	require.NoError(t, err)
	assert.False(t, ok)
}
