package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"tontine/internal/core"
)

// Rules are the association's bookkeeping conventions. They live in a TOML
// file next to the data because treasurers change them between seasons.
type Rules struct {
	Aggregation AggregationRules `toml:"aggregation"`
	Payout      PayoutRules      `toml:"payout"`
	Lifecycle   LifecycleRules   `toml:"lifecycle"`
}

type AggregationRules struct {
	AnnualMultiplier int `toml:"annual_multiplier"`
}

// PayoutRules hold the beneficiary default used when the store has none.
type PayoutRules struct {
	SportTag    string   `toml:"sport_tag"`
	Mode        string   `toml:"mode"`
	Percentage  *float64 `toml:"percentage,omitempty"`
	FixedAmount int64    `toml:"fixed_amount,omitempty"`
}

type LifecycleRules struct {
	ReopenRoles []string `toml:"reopen_roles"`
}

// DefaultRules returns the conventions used without a rules file.
func DefaultRules() Rules {
	return Rules{
		Aggregation: AggregationRules{AnnualMultiplier: 12},
		Payout: PayoutRules{
			SportTag: core.ContextSport,
			Mode:     string(core.PayoutPercentage),
		},
		Lifecycle: LifecycleRules{ReopenRoles: []string{"treasurer", "president"}},
	}
}

// LoadRules reads path over the defaults. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("reading rules: %w", err)
	}
	md, err := toml.Decode(string(data), &rules)
	if err != nil {
		return rules, fmt.Errorf("parsing rules: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return rules, fmt.Errorf("parsing rules: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := rules.Validate(); err != nil {
		return rules, err
	}
	return rules, nil
}

// WithMultiplier returns a copy with the annual multiplier replaced when n is
// positive. Used to let ANNUAL_MULTIPLIER win over the file.
func (r Rules) WithMultiplier(n int) Rules {
	if n > 0 {
		r.Aggregation.AnnualMultiplier = n
	}
	return r
}

func (r Rules) Validate() error {
	var problems []string
	if r.Aggregation.AnnualMultiplier < 1 {
		problems = append(problems, fmt.Sprintf("annual_multiplier %d must be at least 1", r.Aggregation.AnnualMultiplier))
	}
	if strings.TrimSpace(r.Payout.SportTag) == "" {
		problems = append(problems, "sport_tag cannot be empty")
	}
	if err := r.Beneficiary().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid rules:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Beneficiary converts the payout section. A percentage-mode section without
// a percentage pays out everything.
func (r Rules) Beneficiary() core.BeneficiaryConfig {
	cfg := core.BeneficiaryConfig{Mode: core.PayoutMode(strings.ToLower(strings.TrimSpace(r.Payout.Mode)))}
	switch cfg.Mode {
	case core.PayoutFixed:
		cfg.FixedAmount = core.Money(r.Payout.FixedAmount)
	default:
		cfg.Percentage = decimal.NewFromInt(100)
		if r.Payout.Percentage != nil {
			cfg.Percentage = decimal.NewFromFloat(*r.Payout.Percentage)
		}
	}
	return cfg
}
