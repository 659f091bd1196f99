package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tontine/internal/core"
)

var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	statusStyles = map[core.SettlementStatus]lipgloss.Style{
		core.StatusSolde:   lipgloss.NewStyle().Foreground(ColorGreen),
		core.StatusPartiel: lipgloss.NewStyle().Foreground(ColorOrange),
		core.StatusImpaye:  lipgloss.NewStyle().Foreground(ColorRed),
	}
)

// Table represents a bordered text table for CLI output. The first column is
// left-aligned, the others right-aligned. A row holding the single cell
// "---" renders as a separator.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = max(widths[i], lipgloss.Width(h))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")
	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(" " + pad(h, widths[i], false) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		rule("├", "┼", "┤")
	}

	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "---" {
			rule("├", "┼", "┤")
			continue
		}
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(valueStyle.Render(" " + pad(cell, widths[i], i > 0) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}
	rule("╰", "┴", "╯")

	return b.String()
}

func pad(s string, width int, right bool) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// RenderStatus colours a settlement status.
func RenderStatus(s core.SettlementStatus) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// RenderSummary renders one table row per member, followed by a total row.
func RenderSummary(period core.FiscalPeriod, mode string, rows []core.MemberSummary) string {
	t := Table{
		Title:   fmt.Sprintf("Period %s (%s to %s), mode %s", periodLabel(period), period.Start, period.End, mode),
		Headers: []string{"Member", "Expected", "Paid", "Remaining", "Status"},
	}
	var expected, paid, remaining core.Money
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.MemberName,
			r.ExpectedTotal.String(),
			r.PaidTotal.String(),
			r.Remaining.String(),
			RenderStatus(r.Status),
		})
		expected += r.ExpectedTotal
		paid += r.PaidTotal
		remaining += r.Remaining
	}
	if len(rows) == 0 {
		return t.Title + "\n" + mutedStyle.Render("  no members match") + "\n"
	}
	t.Rows = append(t.Rows, []string{"---"}, []string{"Total", expected.String(), paid.String(), remaining.String(), ""})
	return RenderTable(t)
}

// RenderPayout renders the breakdown of a net payout.
func RenderPayout(memberName string, p core.NetPayout) string {
	t := Table{
		Title:   fmt.Sprintf("Payout for %s, period %d", memberName, p.PeriodID),
		Headers: []string{"Item", "Amount"},
		Rows: [][]string{
			{"Paid contributions", p.PaidTotal.String()},
			{"Gross", p.Gross.String()},
			{"Sanctions", "-" + p.SanctionDeduction.String()},
			{"  of which sport", p.SportFundDeduction.String()},
			{"Investment fund", "-" + p.InvestmentFundDeduction.String()},
			{"---"},
			{"Net", p.Net.String()},
			{"Deduction", p.DeductionPercentage.StringFixed(2) + "%"},
		},
	}
	out := RenderTable(t)
	if !p.Complete {
		out += mutedStyle.Render("  incomplete: some figures could not be fetched") + "\n"
	}
	return out
}

// RenderMeetingView renders the member by type grid of a meeting.
func RenderMeetingView(view core.MeetingView, members map[int64]string, types map[int64]string) string {
	t := Table{
		Title: fmt.Sprintf("Meeting %d on %s: %s, %s view, editable=%v",
			view.Meeting.ID, view.Meeting.Date, view.Meeting.Status, view.Mode, view.Editable),
		Headers: []string{"Member", "Type", "Expected", "Paid", "Remaining", "Status"},
	}
	for _, c := range view.Cells {
		status := RenderStatus(c.Status)
		if !c.Applicable {
			status = "n/a"
		}
		t.Rows = append(t.Rows, []string{
			nameOr(members, c.MemberID),
			nameOr(types, c.TypeID),
			c.Expected.String(),
			c.Paid.String(),
			c.Remaining.String(),
			status,
		})
	}
	return RenderTable(t)
}

func periodLabel(p core.FiscalPeriod) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", p.ID)
}

func nameOr(names map[int64]string, id int64) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("#%d", id)
}
