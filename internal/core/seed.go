package core

import (
	"encoding/json"
	"fmt"
	"os"
)

// Seed is a full snapshot of association data, used to bootstrap a store.
type Seed struct {
	Members       []Member           `json:"members"`
	Types         []ContributionType `json:"contribution_types"`
	Overrides     []AmountOverride   `json:"overrides"`
	Periods       []FiscalPeriod     `json:"fiscal_periods"`
	Meetings      []Meeting          `json:"meetings"`
	Contributions []Contribution     `json:"contributions"`
	Sanctions     []Sanction         `json:"sanctions"`
	Beneficiary   *BeneficiaryConfig `json:"beneficiary,omitempty"`
}

// ReadSeedFile decodes a JSON seed file.
func ReadSeedFile(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return s, s.Validate()
}

// Validate checks the entities that carry their own rules.
func (s Seed) Validate() error {
	for _, m := range s.Members {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("member %d: %w", m.ID, err)
		}
	}
	for _, t := range s.Types {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("contribution type %d: %w", t.ID, err)
		}
	}
	for _, p := range s.Periods {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("fiscal period %d: %w", p.ID, err)
		}
	}
	for _, m := range s.Meetings {
		if !m.Status.IsValid() {
			return fmt.Errorf("meeting %d: unknown status %q", m.ID, m.Status)
		}
	}
	for _, c := range s.Contributions {
		if err := c.Amount.Validate(); err != nil {
			return fmt.Errorf("contribution %d: %w", c.ID, err)
		}
	}
	if s.Beneficiary != nil {
		if err := s.Beneficiary.Validate(); err != nil {
			return fmt.Errorf("beneficiary config: %w", err)
		}
	}
	return nil
}
