package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"ptrperm/internal/borrowck"
	"ptrperm/internal/driver"
	"ptrperm/internal/pipeline"
)

// ReportOptions controls RenderReport.
type ReportOptions struct {
	Color bool
	// Width caps the type column; 0 means unlimited.
	Width int
}

type reportStyles struct {
	title  lipgloss.Style
	header lipgloss.Style
	dim    lipgloss.Style
	status func(pipeline.Status) lipgloss.Style
}

func newReportStyles(w io.Writer, color bool) reportStyles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return reportStyles{
		title:  r.NewStyle().Bold(true),
		header: r.NewStyle().Underline(true),
		dim:    r.NewStyle().Foreground(lipgloss.Color("8")),
		status: func(s pipeline.Status) lipgloss.Style {
			return r.NewStyle().Foreground(statusColor(s)).Bold(true)
		},
	}
}

// RenderReport writes one table per function: the outcome line followed by
// the final permissions of every local.
func RenderReport(w io.Writer, sum *driver.Summary, opts ReportOptions) error {
	st := newReportStyles(w, opts.Color)
	var b strings.Builder
	for i := range sum.Funcs {
		if i > 0 {
			b.WriteString("\n")
		}
		renderFunc(&b, &sum.Funcs[i], st, opts)
	}
	if n := len(sum.Funcs); n > 0 {
		fmt.Fprintf(&b, "\n%d functions: %d failed, %d stalled\n", n, sum.Failed(), sum.Stalled())
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func outcomeLabel(fr *driver.FuncResult) string {
	if fr.Result == nil {
		return "failed"
	}
	return fr.Result.Outcome.String()
}

func renderFunc(b *strings.Builder, fr *driver.FuncResult, st reportStyles, opts ReportOptions) {
	status := fr.Status()
	fmt.Fprintf(b, "%s %s", st.title.Render("fn "+fr.Name), st.status(status).Render(outcomeLabel(fr)))
	if res := fr.Result; res != nil {
		b.WriteString(st.dim.Render(fmt.Sprintf("  %d iterations, %d conflicts", res.Iterations, res.Conflicts)))
	}
	b.WriteString("\n")
	if fr.Err != nil {
		fmt.Fprintf(b, "  %s\n", st.status(pipeline.StatusError).Render(fr.Err.Error()))
	}
	if fr.Result == nil || fr.Result.Report == nil {
		return
	}

	rows := [][]string{{"local", "name", "kind", "addr_of", "type"}}
	for i := range fr.Result.Report.Locals {
		rows = append(rows, localRow(&fr.Result.Report.Locals[i], opts.Width))
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for c, cell := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}
	for r, row := range rows {
		b.WriteString(" ")
		for c, cell := range row {
			b.WriteString(" ")
			text := cell
			if c < len(row)-1 {
				text = runewidth.FillRight(cell, widths[c])
			}
			if r == 0 {
				text = st.header.Render(text)
			}
			b.WriteString(text)
		}
		b.WriteString("\n")
	}
}

func localRow(lr *borrowck.LocalReport, width int) []string {
	addrOf := "-"
	if lr.AddrOf.IsValid() {
		addrOf = fmt.Sprintf("%s %s", lr.AddrOf, lr.AddrOfPerm)
	}
	return []string{
		fmt.Sprintf("_%d", lr.Local),
		lr.Name,
		lr.Kind.String(),
		addrOf,
		truncate(lr.TypeString(), width),
	}
}
