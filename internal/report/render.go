package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"manifestfill/internal/manifest"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// RowLine renders the one-line progress message for an outcome.
func RowLine(idx, total int, o manifest.Outcome) string {
	prefix := dimStyle.Render(fmt.Sprintf("[%d/%d] row %d", idx+1, total, o.Row))
	switch {
	case !o.OK():
		return fmt.Sprintf("%s %s %s: %s", prefix, failStyle.Render("FAIL"), o.TripID, o.Reason)
	case o.LowConfidence():
		return fmt.Sprintf("%s %s %s (%s, check autocomplete fields)", prefix, warnStyle.Render("OK?"), o.TripID, o.Tier)
	default:
		return fmt.Sprintf("%s %s %s (%s)", prefix, okStyle.Render("OK"), o.TripID, o.Tier)
	}
}

// Render formats the end-of-run summary for a terminal.
func Render(r *RunReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Batch summary"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %-15s %d\n", "records", r.Summary.Total)
	fmt.Fprintf(&b, "  %-15s %s\n", "submitted", okStyle.Render(fmt.Sprint(r.Summary.Submitted)))
	fmt.Fprintf(&b, "  %-15s %s\n", "failed", failStyle.Render(fmt.Sprint(r.Summary.Failed)))
	if r.Summary.LowConfidence > 0 {
		fmt.Fprintf(&b, "  %-15s %s\n", "to review", warnStyle.Render(fmt.Sprint(r.Summary.LowConfidence)))
	}
	if r.Summary.NotProcessed > 0 {
		fmt.Fprintf(&b, "  %-15s %d\n", "not processed", r.Summary.NotProcessed)
	}

	if failed := r.Failed(); len(failed) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Failed rows"))
		b.WriteString("\n")
		for _, it := range failed {
			fmt.Fprintf(&b, "  row %d  %s  %s\n", it.Row, it.TripID, it.Reason)
		}
	}
	return b.String()
}
