package notifier

import (
	"fmt"
	"io"
	"strings"

	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/printer"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
)

const (
	borderColor = "\033[38;5;39m"
	resetColor  = "\033[0m"
	padding     = 2
)

// Paths are the files a run produced, listed at the bottom of the summary.
type Paths struct {
	Log    string
	Report string
	State  string
}

// DisplaySummary renders the end-of-run summary: a boxed header with the
// counts, then the detected updates and the errors.
func DisplaySummary(w io.Writer, rep models.Report, paths Paths) error {
	p := printer.NewColorPrinter()
	s := rep.Summary

	lines := []string{
		p.Bold("Update check report - %s", rep.RunDate),
		fmt.Sprintf("checked %d  |  %s  |  unchanged %d  |  first check %d  |  %s  |  static %d",
			s.TotalSources,
			p.Success("updated %d", s.Updated),
			s.Unchanged,
			s.FirstCheck,
			p.Error("errors %d", s.Errors),
			s.SkippedStatic,
		),
	}
	if s.Partial > 0 {
		lines = append(lines, p.Warning("%d result(s) based on metadata only", s.Partial))
	}
	DrawBox(w, lines)

	if len(rep.UpdatesFound) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.Success("Updates detected:"))
		for _, u := range rep.UpdatesFound {
			fmt.Fprintf(w, "\n  [%s] %s\n", u.SourceID, u.Title)
			if u.Owner != "" {
				fmt.Fprintf(w, "  owner: %s\n", u.Owner)
			}
			fmt.Fprintf(w, "  url:   %s\n", u.URL)
			for _, c := range u.Changes {
				fmt.Fprintf(w, "    -> %s\n", c)
			}
		}
	}

	if len(rep.ErrorsFound) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.Error("Errors:"))
		table := logger.CreateTable(w, []string{"Source", "Status", "Error"})
		for _, e := range rep.ErrorsFound {
			if err := table.Append([]string{e.SourceID, p.Status(e.Status), models.TruncateRunes(e.Error, 80)}); err != nil {
				return fmt.Errorf("failed to append error row: %w", err)
			}
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render error table: %w", err)
		}
	}

	if len(rep.SourcesDueForReview) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.Info("Annual sources to review: %d", len(rep.SourcesDueForReview)))
	}

	fmt.Fprintln(w)
	for _, kv := range [][2]string{{"Log", paths.Log}, {"Report", paths.Report}, {"State", paths.State}} {
		if kv[1] != "" {
			fmt.Fprintf(w, "%-7s %s\n", kv[0]+":", kv[1])
		}
	}
	return nil
}

// DrawBox prints lines centered in a rounded frame.
func DrawBox(w io.Writer, lines []string) {
	maxWidth := utils.GetMaxWidth(lines) + padding*2
	topBorder := borderColor + "╭" + strings.Repeat("─", maxWidth) + "╮" + resetColor
	sideBorder := borderColor + "│" + resetColor

	fmt.Fprintln(w, topBorder)
	for _, line := range lines {
		width := utils.VisibleWidth(line)
		paddingLeft := (maxWidth - width) / 2
		paddingRight := maxWidth - width - paddingLeft
		fmt.Fprintf(w, "%s%s%s%s%s\n", sideBorder, strings.Repeat(" ", paddingLeft), line, strings.Repeat(" ", paddingRight), sideBorder)
	}
	fmt.Fprintln(w, borderColor+"╰"+strings.Repeat("─", maxWidth)+"╯"+resetColor)
}
