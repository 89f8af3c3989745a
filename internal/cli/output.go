// Package cli provides terminal output helpers for the operator commands:
// status lines, key/value tables, a phase progress bar and a spinner.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Printer writes colored status lines to a writer.
type Printer struct {
	w       io.Writer
	success *color.Color
	failure *color.Color
	warning *color.Color
	info    *color.Color
	heading *color.Color
	muted   *color.Color
}

// NewPrinter creates a printer for w. Color is disabled when noColor is set
// or w is not a terminal.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	if w == nil {
		w = os.Stdout
	}
	p := &Printer{
		w:       w,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warning: color.New(color.FgYellow),
		info:    color.New(color.FgCyan),
		heading: color.New(color.Bold),
		muted:   color.New(color.Faint),
	}
	if noColor || !isTerminal(w) {
		for _, c := range []*color.Color{p.success, p.failure, p.warning, p.info, p.heading, p.muted} {
			c.DisableColor()
		}
	}
	return p
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...interface{}) {
	p.line(p.success, "✓", format, args...)
}

// Error prints a failure line.
func (p *Printer) Error(format string, args ...interface{}) {
	p.line(p.failure, "✗", format, args...)
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...interface{}) {
	p.line(p.warning, "⚠", format, args...)
}

// Info prints an informational line.
func (p *Printer) Info(format string, args ...interface{}) {
	p.line(p.info, "ℹ", format, args...)
}

// Heading prints a bold section title.
func (p *Printer) Heading(format string, args ...interface{}) {
	p.heading.Fprintf(p.w, format+"\n", args...)
}

// KeyValues prints an aligned key/value block in key order.
func (p *Printer) KeyValues(values map[string]string) {
	keys := make([]string, 0, len(values))
	width := 0
	for k := range values {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.w, "  %s %s\n", p.muted.Sprintf("%-*s", width+1, k+":"), values[k])
	}
}

// Table renders rows under a header row.
func (p *Printer) Table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(p.w)
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = p.heading.Sprint(h)
	}
	if err := table.Append(cells); err != nil {
		p.Error("append table header: %v", err)
		return
	}
	for _, row := range rows {
		padded := make([]string, len(header))
		copy(padded, row)
		if err := table.Append(padded); err != nil {
			p.Error("append table row: %v", err)
			return
		}
	}
	if err := table.Render(); err != nil {
		p.Error("render table: %v", err)
	}
}

func (p *Printer) line(c *color.Color, symbol, format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", c.Sprint(symbol), fmt.Sprintf(format, args...))
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
