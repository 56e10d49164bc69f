package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/songbuilder/internal/build"
)

// RenderSummary prints the step table of report. Colors are dropped when w
// is not a terminal.
func RenderSummary(w io.Writer, report *build.Report) error {
	if report == nil {
		return nil
	}
	r := lipgloss.NewRenderer(w)

	title := r.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dim := r.NewStyle().Foreground(lipgloss.Color("240"))
	cell := r.NewStyle().PaddingRight(2)

	header := title.Render(fmt.Sprintf("%s: %s", report.Basename, report.Outcome))
	meta := dim.Render(fmt.Sprintf("build %s, %s", report.BuildID, report.Duration().Round(time.Millisecond)))

	rows := []string{header, meta}
	for _, rec := range report.Steps {
		status := r.NewStyle().Foreground(resultColor(rec.Result)).Render(string(rec.Result))
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			cell.Width(4).Render(fmt.Sprintf("%d.", rec.Index+1)),
			cell.Width(12).Render(string(rec.Name)),
			cell.Width(10).Render(status),
			dim.Render(rec.Duration.Round(time.Millisecond).String()),
		)
		if rec.Error != "" {
			line += "\n    " + dim.Render(rec.Error)
		}
		rows = append(rows, line)
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, rows...))
	return err
}

func resultColor(result build.StepResult) lipgloss.Color {
	switch result {
	case build.StepResultSuccess:
		return lipgloss.Color("46")
	case build.StepResultFailed:
		return lipgloss.Color("196")
	case build.StepResultCanceled:
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("240")
	}
}
