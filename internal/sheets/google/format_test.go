package google

import (
	"testing"

	"tontine/internal/core"
)

func TestSummaryValues(t *testing.T) {
	rows := []core.MemberSummary{{
		MemberID:   1,
		MemberName: "Awa",
		Lines: []core.SummaryLine{
			{TypeID: 10, TypeName: "Cotisation", Settlement: core.Settle(60000, 5000)},
			{TypeID: 11, TypeName: "Tontine", Settlement: core.Settle(120000, 120000)},
		},
		ExpectedTotal: 180000,
		PaidTotal:     125000,
		Remaining:     55000,
		Status:        core.StatusPartiel,
	}}

	got := summaryValues(rows)
	if len(got) != 4 {
		t.Fatalf("expected header + 2 lines + total, got %d rows", len(got))
	}
	if got[0][0] != "Member" || len(got[0]) != 8 {
		t.Fatalf("header = %v", got[0])
	}
	if got[1][1] != "Cotisation" || got[1][2] != int64(60000) || got[1][4] != int64(55000) || got[1][6] != "partiel" {
		t.Fatalf("line = %v", got[1])
	}
	if got[2][6] != "solde" || got[2][7] != true {
		t.Fatalf("settled line = %v", got[2])
	}
	if got[3][1] != "Total" || got[3][3] != int64(125000) {
		t.Fatalf("total = %v", got[3])
	}

	if empty := summaryValues(nil); len(empty) != 1 {
		t.Fatalf("empty summary should keep the header, got %v", empty)
	}
}

func TestPeriodSheetName(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		period core.FiscalPeriod
		want   string
	}{
		{"year name", "Summary", core.FiscalPeriod{ID: 1, Name: "2024"}, "2024 Summary"},
		{"already suffixed", "Summary", core.FiscalPeriod{ID: 1, Name: "2024 summary"}, "2024 summary"},
		{"unnamed", "Summary", core.FiscalPeriod{ID: 7}, "7 Summary"},
		{"custom base", "Bilan", core.FiscalPeriod{ID: 1, Name: "2023-2024"}, "2023-2024 Bilan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := periodSheetName(tt.base, tt.period); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestA1Range(t *testing.T) {
	if got := a1Range("2024 Summary", "A1"); got != "'2024 Summary'!A1" {
		t.Fatalf("got %q", got)
	}
	if got := a1Range("Awa's", "A:H"); got != "'Awa''s'!A:H" {
		t.Fatalf("got %q", got)
	}
}
