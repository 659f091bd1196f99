package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tontine/internal/core"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestLoadRules_Defaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.Aggregation.AnnualMultiplier != 12 || rules.Payout.SportTag != core.ContextSport {
		t.Fatalf("defaults = %+v", rules)
	}
	b := rules.Beneficiary()
	if b.Mode != core.PayoutPercentage || !b.Percentage.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("default beneficiary = %+v", b)
	}
}

func TestLoadRules(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
		check   func(t *testing.T, r Rules)
	}{
		{
			name: "percentage",
			body: `
[aggregation]
annual_multiplier = 10

[payout]
sport_tag = "football"
mode = "percentage"
percentage = 87.5

[lifecycle]
reopen_roles = ["secretary"]
`,
			check: func(t *testing.T, r Rules) {
				if r.Aggregation.AnnualMultiplier != 10 || r.Payout.SportTag != "football" {
					t.Fatalf("rules = %+v", r)
				}
				if got := r.Beneficiary().Percentage; !got.Equal(decimal.RequireFromString("87.5")) {
					t.Fatalf("percentage = %s", got)
				}
				if len(r.Lifecycle.ReopenRoles) != 1 || r.Lifecycle.ReopenRoles[0] != "secretary" {
					t.Fatalf("roles = %v", r.Lifecycle.ReopenRoles)
				}
			},
		},
		{
			name: "fixed amount keeps other defaults",
			body: "[payout]\nmode = \"Fixed\"\nfixed_amount = 250000\n",
			check: func(t *testing.T, r Rules) {
				b := r.Beneficiary()
				if b.Mode != core.PayoutFixed || b.FixedAmount != 250000 {
					t.Fatalf("beneficiary = %+v", b)
				}
				if r.Aggregation.AnnualMultiplier != 12 || len(r.Lifecycle.ReopenRoles) != 2 {
					t.Fatalf("defaults lost: %+v", r)
				}
			},
		},
		{name: "unknown key", body: "[payout]\nbonus = 3\n", wantErr: "unknown keys payout.bonus"},
		{name: "bad syntax", body: "[payout\n", wantErr: "parsing rules"},
		{name: "zero multiplier", body: "[aggregation]\nannual_multiplier = 0\n", wantErr: "annual_multiplier 0 must be at least 1"},
		{name: "unknown mode", body: "[payout]\nmode = \"lottery\"\n", wantErr: "unknown payout mode"},
		{name: "negative fixed", body: "[payout]\nmode = \"fixed\"\nfixed_amount = -1\n", wantErr: "invalid rules"},
		{name: "blank sport tag", body: "[payout]\nsport_tag = \" \"\n", wantErr: "sport_tag cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := LoadRules(writeRules(t, tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadRules: %v", err)
			}
			tt.check(t, rules)
		})
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.toml")); err == nil || !strings.Contains(err.Error(), "reading rules") {
		t.Fatalf("err = %v", err)
	}
}

func TestRules_WithMultiplier(t *testing.T) {
	r := DefaultRules()
	if got := r.WithMultiplier(0).Aggregation.AnnualMultiplier; got != 12 {
		t.Fatalf("zero override changed multiplier to %d", got)
	}
	if got := r.WithMultiplier(10).Aggregation.AnnualMultiplier; got != 10 {
		t.Fatalf("override = %d", got)
	}
	if r.Aggregation.AnnualMultiplier != 12 {
		t.Fatal("WithMultiplier mutated the receiver")
	}
}
