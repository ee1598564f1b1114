package dunning

import (
	"fmt"
	"strings"
	"time"

	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/id"
)

// Step is one escalation step, due delayDays after the first failure.
type Step struct {
	delayDays          int
	action             Action
	channels           []Channel
	includePaymentLink bool
	label              string
}

func NewStep(delayDays int, kind ActionKind, channels []Channel, includePaymentLink bool, label string) (Step, error) {
	if delayDays < 0 {
		return Step{}, fmt.Errorf("delay days must not be negative")
	}
	for _, c := range channels {
		if !c.Valid() {
			return Step{}, fmt.Errorf("unknown channel: %q", c)
		}
	}
	action, err := NewAction(kind, channels, includePaymentLink)
	if err != nil {
		return Step{}, err
	}
	return Step{
		delayDays:          delayDays,
		action:             action,
		channels:           channels,
		includePaymentLink: includePaymentLink,
		label:              strings.TrimSpace(label),
	}, nil
}

func (s Step) DelayDays() int            { return s.delayDays }
func (s Step) Action() Action            { return s.action }
func (s Step) Kind() ActionKind          { return s.action.Kind() }
func (s Step) Channels() []Channel       { return s.channels }
func (s Step) IncludesPaymentLink() bool { return s.includePaymentLink }
func (s Step) Label() string             { return s.label }

func (s Step) HasChannel(c Channel) bool {
	for _, ch := range s.channels {
		if ch == c {
			return true
		}
	}
	return false
}

// Config is the ordered escalation of one organization or company.
type Config struct {
	id             string
	organizationID string
	companyID      string
	name           string
	steps          []Step
	isDefault      bool
	enabled        bool
	version        int
	createdAt      time.Time
	updatedAt      time.Time
}

func validateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("a dunning config needs at least one step")
	}
	for i, s := range steps {
		if i > 0 && s.delayDays < steps[i-1].delayDays {
			return fmt.Errorf("step %d: delay days must be non-decreasing", i)
		}
		if s.Kind() == ActionSuspend && i != len(steps)-1 {
			return fmt.Errorf("step %d: SUSPEND must be the last step", i)
		}
	}
	return nil
}

func NewConfig(organizationID, companyID, name string, steps []Step, isDefault bool) (*Config, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("organization is required")
	}
	if err := validateSteps(steps); err != nil {
		return nil, err
	}
	now := biztime.NowUTC()
	return &Config{
		id:             id.New(id.PrefixDunningConfig),
		organizationID: organizationID,
		companyID:      companyID,
		name:           strings.TrimSpace(name),
		steps:          steps,
		isDefault:      isDefault,
		enabled:        true,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

func ReconstructConfig(configID, organizationID, companyID, name string, steps []Step, isDefault, enabled bool, version int, createdAt, updatedAt time.Time) *Config {
	return &Config{
		id:             configID,
		organizationID: organizationID,
		companyID:      companyID,
		name:           name,
		steps:          steps,
		isDefault:      isDefault,
		enabled:        enabled,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the dunning config ID.
func (c *Config) ID() string {
	return c.id
}

// OrganizationID returns the organization ID.
func (c *Config) OrganizationID() string {
	return c.organizationID
}

// CompanyID returns the company ID.
func (c *Config) CompanyID() string {
	return c.companyID
}

// Name returns the dunning config name.
func (c *Config) Name() string {
	return c.name
}

// Steps returns the dunning config steps.
func (c *Config) Steps() []Step {
	return c.steps
}

// StepCount returns the number of steps in the sequence.
func (c *Config) StepCount() int {
	return len(c.steps)
}

// IsDefault reports whether the dunning config is the organization default.
func (c *Config) IsDefault() bool {
	return c.isDefault
}

// IsEnabled reports whether the dunning config is enabled.
func (c *Config) IsEnabled() bool {
	return c.enabled
}

// Version returns the optimistic lock version.
func (c *Config) Version() int {
	return c.version
}

// CreatedAt returns when the dunning config was created.
func (c *Config) CreatedAt() time.Time {
	return c.createdAt
}

// UpdatedAt returns when the dunning config was last updated.
func (c *Config) UpdatedAt() time.Time {
	return c.updatedAt
}

// Step returns the step at index i.
func (c *Config) Step(i int) (Step, bool) {
	if i < 0 || i >= len(c.steps) {
		return Step{}, false
	}
	return c.steps[i], true
}

func (c *Config) Update(name string, steps []Step, isDefault, enabled bool) error {
	if err := validateSteps(steps); err != nil {
		return err
	}
	if strings.TrimSpace(name) != "" {
		c.name = strings.TrimSpace(name)
	}
	c.steps = steps
	c.isDefault = isDefault
	c.enabled = enabled
	c.updatedAt = biztime.NowUTC()
	c.version++
	return nil
}

func (c *Config) ClearDefault() {
	if c.isDefault {
		c.isDefault = false
		c.updatedAt = biztime.NowUTC()
		c.version++
	}
}

// SelectConfig returns the enabled config for a company, falling back to the
// organization-wide one. Defaults win among equals.
func SelectConfig(configs []*Config, organizationID, companyID string) *Config {
	var best *Config
	bestScore := -1
	for _, c := range configs {
		if !c.enabled || c.organizationID != organizationID {
			continue
		}
		score := 0
		switch c.companyID {
		case "":
		case companyID:
			score = 2
		default:
			continue
		}
		if c.isDefault {
			score++
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
