package google

import (
	"fmt"
	"strconv"
	"strings"

	"tontine/internal/core"
)

var summaryHeader = []any{"Member", "Type", "Expected", "Paid", "Remaining", "Surplus", "Status", "Applicable"}

// summaryValues lays out one row per contribution line followed by a total
// row per member. Amounts stay numeric so sheet formulas keep working.
func summaryValues(rows []core.MemberSummary) [][]any {
	out := make([][]any, 0, 1+len(rows)*4)
	out = append(out, summaryHeader)
	for _, m := range rows {
		for _, l := range m.Lines {
			out = append(out, []any{
				m.MemberName,
				l.TypeName,
				int64(l.Expected),
				int64(l.Paid),
				int64(l.Remaining),
				int64(l.Surplus),
				string(l.Status),
				l.Applicable,
			})
		}
		out = append(out, []any{
			m.MemberName,
			"Total",
			int64(m.ExpectedTotal),
			int64(m.PaidTotal),
			int64(m.Remaining),
			"",
			string(m.Status),
			"",
		})
	}
	return out
}

// periodSheetName returns "<period> <base>", e.g. "2024 Summary". Period
// names that already end with base are used as is.
func periodSheetName(base string, p core.FiscalPeriod) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = strconv.FormatInt(p.ID, 10)
	}
	if strings.HasSuffix(strings.ToLower(name), strings.ToLower(base)) {
		return name
	}
	return fmt.Sprintf("%s %s", name, base)
}

// a1Range quotes the sheet title for A1 notation.
func a1Range(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}
