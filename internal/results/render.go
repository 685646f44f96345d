package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func (s Status) color() text.Colors {
	switch s {
	case StatusPassed:
		return text.Colors{text.FgGreen}
	case StatusPassedWithWarning:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgRed}
	}
}

// FormatRecord renders one record line with a colored status label.
func FormatRecord(r Record) string {
	status := r.Status()
	return fmt.Sprintf("%s: expected %d, received %d - %s",
		r.Name, r.Expected, r.Received, status.color().Sprint(status.Label()))
}

// Render returns the human readable report block of the ledger.
func (l *Ledger) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "----- %s -----\n", text.Bold.Sprint(l.name))

	b.WriteString("Test Results:\n")
	for _, r := range l.Records() {
		fmt.Fprintf(&b, "\t%s\n", FormatRecord(r))
	}

	b.WriteString("Info:\n")
	for _, info := range l.Infos() {
		fmt.Fprintf(&b, "\t%s\n", info)
	}

	b.WriteString("Errors:\n")
	for _, e := range l.Errors() {
		fmt.Fprintf(&b, "\t%s\n", text.FgRed.Sprint(e))
	}

	return b.String()
}

// RenderSummary writes a table with one row per ledger and a total row.
func RenderSummary(w io.Writer, ledgers []*Ledger) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("TEST CASE"),
		text.FgHiCyan.Sprint("PASSED"),
		text.FgHiCyan.Sprint("WARNINGS"),
		text.FgHiCyan.Sprint("FAILED"),
		text.FgHiCyan.Sprint("ERRORS"),
		text.FgHiCyan.Sprint("RESULT"),
	})

	var total Summary
	for _, l := range ledgers {
		s := l.Summary()
		total.Passed += s.Passed
		total.Warnings += s.Warnings
		total.Failed += s.Failed
		total.Errors += s.Errors
		t.AppendRow(table.Row{s.Name, s.Passed, s.Warnings, s.Failed, s.Errors, verdict(s)})
	}

	t.AppendFooter(table.Row{"TOTAL", total.Passed, total.Warnings, total.Failed, total.Errors, verdict(total)})
	t.Render()
}

func verdict(s Summary) string {
	switch {
	case !s.OK():
		return text.FgRed.Sprint("FAIL")
	case s.Warnings > 0:
		return text.FgYellow.Sprint("WARN")
	default:
		return text.FgGreen.Sprint("OK")
	}
}
