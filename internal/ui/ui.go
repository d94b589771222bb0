// Package ui renders llbrew output for terminals and pipes.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"

	"github.com/goplus/llbrew/internal/errors"
)

// IsColorTerminal reports whether w is a terminal that shows colors and
// NO_COLOR is not set.
func IsColorTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return termenv.NewOutput(f).ColorProfile() != termenv.Ascii
}

// Printer writes user facing messages.
type Printer struct {
	w     io.Writer
	color bool

	heading lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	dim     lipgloss.Style
	box     lipgloss.Style
}

// New returns a Printer writing to w. Styling is only used on color
// terminals.
func New(w io.Writer) *Printer {
	p := &Printer{w: w, color: IsColorTerminal(w)}
	r := lipgloss.NewRenderer(w)
	if !p.color {
		r.SetColorProfile(termenv.Ascii)
	}
	p.heading = r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "27", Dark: "39"})
	p.ok = r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"})
	p.failed = r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "196"})
	p.dim = r.NewStyle().Foreground(lipgloss.Color("244"))
	p.box = r.NewStyle().PaddingLeft(2)
	if p.color {
		p.box = p.box.Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240"))
	}
	return p
}

// Heading prints "==> text".
func (p *Printer) Heading(format string, args ...any) {
	fmt.Fprintln(p.w, p.heading.Render("==> ")+p.heading.UnsetForeground().Render(fmt.Sprintf(format, args...)))
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.ok.Render("✔ ")+fmt.Sprintf(format, args...))
}

// Info prints a secondary line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf(format, args...)))
}

// Failure prints err. For coded errors the failed stage comes first and
// the verbatim diagnostic of the failing tool last.
func (p *Printer) Failure(err error) {
	e, ok := errors.As(err)
	if !ok {
		fmt.Fprintln(p.w, p.failed.Render("Error: ")+err.Error())
		return
	}
	if e.Stage != "" {
		fmt.Fprintln(p.w, p.failed.Render("Failed("+e.Stage+")")+" "+string(e.Code))
	}
	fmt.Fprintln(p.w, p.failed.Render("Error: ")+err.Error())
	for _, k := range e.DetailKeys() {
		fmt.Fprintf(p.w, "  %s: %v\n", k, e.Details[k])
	}
	if d := strings.TrimRight(e.Diagnostic, "\n"); d != "" {
		fmt.Fprintln(p.w, p.dim.Render("diagnostic:"))
		fmt.Fprintln(p.w, p.box.Render(d))
	}
}

// Table prints rows under header.
func (p *Printer) Table(header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	table := pterm.DefaultTable.WithHasHeader().WithData(data)
	if !p.color {
		plain := pterm.NewStyle()
		table = table.WithStyle(plain).WithHeaderStyle(plain).WithSeparatorStyle(plain)
	}
	s, err := table.Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, s)
	return err
}

// Bold formats s in bold on terminals.
func Bold(s string) string {
	if !IsColorTerminal(os.Stdout) {
		return s
	}
	return pterm.Bold.Sprint(s)
}
