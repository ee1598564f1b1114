package usecases

import (
	"context"
	"fmt"

	"github.com/payops/payops/internal/domain/routing"
)

// candidateLoader gathers the overrides and rules one evaluation may select.
type candidateLoader struct {
	ruleRepo     routing.RuleRepository
	overrideRepo routing.OverrideRepository
}

func (l candidateLoader) load(ctx context.Context, organizationID, companyID string, p routing.Payment) (routing.Candidates, error) {
	var c routing.Candidates
	var err error

	if p.ContractID != "" {
		c.ContractOverride, err = l.overrideRepo.Find(ctx, organizationID, routing.ScopeContract, p.ContractID)
		if err != nil {
			return c, fmt.Errorf("failed to load contract override: %w", err)
		}
	}
	if c.ContractOverride == nil && p.ClientID != "" {
		c.ClientOverride, err = l.overrideRepo.Find(ctx, organizationID, routing.ScopeClient, p.ClientID)
		if err != nil {
			return c, fmt.Errorf("failed to load client override: %w", err)
		}
	}
	if c.ContractOverride != nil || c.ClientOverride != nil {
		return c, nil
	}

	c.Rules, err = l.ruleRepo.ListByCompany(ctx, organizationID, companyID)
	if err != nil {
		return c, fmt.Errorf("failed to load routing rules: %w", err)
	}
	return c, nil
}
