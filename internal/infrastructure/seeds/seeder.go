package seeds

import (
	"context"
	"strings"

	dunningdto "github.com/payops/payops/internal/application/dunning/dto"
	policydto "github.com/payops/payops/internal/application/policy/dto"
	policyusecases "github.com/payops/payops/internal/application/policy/usecases"
	routingdto "github.com/payops/payops/internal/application/routing/dto"
	routingusecases "github.com/payops/payops/internal/application/routing/usecases"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/shared/logger"
)

// SeedActor is recorded in the audit ledger for seeded writes.
const SeedActor = "seed"

type upsertRetryPolicyUseCase interface {
	Execute(ctx context.Context, cmd policyusecases.UpsertRetryPolicyCommand) (*policyusecases.UpsertRetryPolicyResult, error)
}

type upsertDunningConfigUseCase interface {
	Execute(ctx context.Context, cmd policyusecases.UpsertDunningConfigCommand) (*policyusecases.UpsertDunningConfigResult, error)
}

type createRoutingRuleUseCase interface {
	Execute(ctx context.Context, cmd routingusecases.CreateRoutingRuleCommand) (*routingdto.RoutingRuleDTO, error)
}

type listRoutingRulesUseCase interface {
	Execute(ctx context.Context, query routingusecases.ListRoutingRulesQuery) ([]*routingdto.RoutingRuleDTO, error)
}

type upsertServiceBundleUseCase interface {
	Execute(ctx context.Context, cmd policyusecases.UpsertServiceBundleCommand) (*policydto.ServiceBundleDTO, error)
}

// Report counts what one Apply changed.
type Report struct {
	PoliciesCreated int `json:"policies_created"`
	PoliciesUpdated int `json:"policies_updated"`
	ConfigsCreated  int `json:"configs_created"`
	ConfigsUpdated  int `json:"configs_updated"`
	RulesCreated    int `json:"rules_created"`
	RulesSkipped    int `json:"rules_skipped"`
	BundlesSaved    int `json:"bundles_saved"`
}

// Seeder applies a seeds document. Policies, configs and bundles are
// upserted by name; a routing rule whose name already exists for the company
// is left untouched so operator edits survive a reseed.
type Seeder struct {
	upsertPolicy upsertRetryPolicyUseCase
	upsertConfig upsertDunningConfigUseCase
	createRule   createRoutingRuleUseCase
	listRules    listRoutingRulesUseCase
	upsertBundle upsertServiceBundleUseCase
	logger       logger.Interface
}

func NewSeeder(
	upsertPolicy upsertRetryPolicyUseCase,
	upsertConfig upsertDunningConfigUseCase,
	createRule createRoutingRuleUseCase,
	listRules listRoutingRulesUseCase,
	upsertBundle upsertServiceBundleUseCase,
	log logger.Interface,
) *Seeder {
	return &Seeder{
		upsertPolicy: upsertPolicy,
		upsertConfig: upsertConfig,
		createRule:   createRule,
		listRules:    listRules,
		upsertBundle: upsertBundle,
		logger:       log.With("component", "seeder"),
	}
}

// Apply stops at the first failing record; records applied before it stay
// applied.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Report, error) {
	report := &Report{}

	for _, p := range f.RetryPolicies {
		result, err := s.upsertPolicy.Execute(ctx, policyusecases.UpsertRetryPolicyCommand{
			Scope: retry.Scope{
				OrganizationID: p.OrganizationID,
				CompanyID:      p.CompanyID,
				ProductCode:    p.ProductCode,
				Channel:        p.Channel,
			},
			Name: p.Name,
			Plan: retry.Plan{
				RetryDelaysDays:   p.RetryDelaysDays,
				MaxAttempts:       p.MaxAttempts,
				MaxTotalDays:      p.MaxTotalDays,
				RetryableCodes:    p.RetryableCodes,
				NonRetryableCodes: p.NonRetryableCodes,
				Stop: retry.StopConditions{
					OnSettlement:        boolOr(p.StopOnSettlement, true),
					OnContractCancel:    boolOr(p.StopOnCancel, true),
					OnMandateRevocation: boolOr(p.StopOnRevocation, true),
				},
			},
			IsDefault: p.IsDefault,
			Enabled:   !p.Disabled,
			Actor:     SeedActor,
		})
		if err != nil {
			s.logger.Errorw("failed to seed retry policy", "name", p.Name, "error", err)
			return report, err
		}
		if result.Created {
			report.PoliciesCreated++
		} else {
			report.PoliciesUpdated++
		}
	}

	for _, c := range f.DunningConfigs {
		result, err := s.upsertConfig.Execute(ctx, policyusecases.UpsertDunningConfigCommand{
			OrganizationID: c.OrganizationID,
			CompanyID:      c.CompanyID,
			Name:           c.Name,
			Steps:          append([]dunningdto.StepInput(nil), c.Steps...),
			IsDefault:      c.IsDefault,
			Enabled:        !c.Disabled,
			Actor:          SeedActor,
		})
		if err != nil {
			s.logger.Errorw("failed to seed dunning config", "name", c.Name, "error", err)
			return report, err
		}
		if result.Created {
			report.ConfigsCreated++
		} else {
			report.ConfigsUpdated++
		}
	}

	existing := map[string]map[string]bool{}
	for _, r := range f.RoutingRules {
		key := r.OrganizationID + "/" + r.CompanyID
		names, ok := existing[key]
		if !ok {
			rules, err := s.listRules.Execute(ctx, routingusecases.ListRoutingRulesQuery{
				OrganizationID: r.OrganizationID,
				CompanyID:      r.CompanyID,
			})
			if err != nil {
				return report, err
			}
			names = make(map[string]bool, len(rules))
			for _, rule := range rules {
				names[strings.ToLower(rule.Name)] = true
			}
			existing[key] = names
		}
		if names[strings.ToLower(strings.TrimSpace(r.Name))] {
			report.RulesSkipped++
			continue
		}

		if _, err := s.createRule.Execute(ctx, routingusecases.CreateRoutingRuleCommand{
			OrganizationID: r.OrganizationID,
			CompanyID:      r.CompanyID,
			Name:           r.Name,
			Priority:       r.Priority,
			Conditions: routing.Conditions{
				SourceChannels:       r.SourceChannels,
				ProductCodes:         r.ProductCodes,
				MinContractAgeMonths: r.MinContractAgeMonths,
				DebitLotCodes:        r.DebitLotCodes,
				PreferredDebitDays:   r.PreferredDebitDays,
				RiskTiers:            r.RiskTiers,
			},
			ProviderAccountID: r.ProviderAccountID,
			Fallback:          r.Fallback,
			Actor:             SeedActor,
		}); err != nil {
			s.logger.Errorw("failed to seed routing rule", "name", r.Name, "error", err)
			return report, err
		}
		names[strings.ToLower(strings.TrimSpace(r.Name))] = true
		report.RulesCreated++
	}

	for _, b := range f.ServiceBundles {
		if _, err := s.upsertBundle.Execute(ctx, policyusecases.UpsertServiceBundleCommand{
			OrganizationID:    b.OrganizationID,
			Name:              b.Name,
			AnchorServiceCode: b.AnchorServiceCode,
			MemberCodes:       b.MemberCodes,
		}); err != nil {
			s.logger.Errorw("failed to seed service bundle", "name", b.Name, "error", err)
			return report, err
		}
		report.BundlesSaved++
	}

	s.logger.Infow("seeds applied",
		"policies_created", report.PoliciesCreated,
		"policies_updated", report.PoliciesUpdated,
		"configs_created", report.ConfigsCreated,
		"configs_updated", report.ConfigsUpdated,
		"rules_created", report.RulesCreated,
		"rules_skipped", report.RulesSkipped,
		"bundles_saved", report.BundlesSaved,
	)
	return report, nil
}
