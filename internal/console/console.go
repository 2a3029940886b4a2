// Package console prints the labeled, colored status lines operators read
// while the bring-up runs. Structured logs go to slog; this is the human view.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5C04A")).Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Italic(true)
)

// Printer writes status lines to an io.Writer.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Discard returns a Printer that drops everything.
func Discard() *Printer {
	return New(io.Discard)
}

func (p *Printer) Header(title string) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(p.w, "\n%s\n%s\n%s\n", headerStyle.Render(rule), headerStyle.Render(title), headerStyle.Render(rule))
}

func (p *Printer) Success(format string, args ...any) {
	p.line(okStyle.Render("[OK]"), format, args...)
}

func (p *Printer) Failure(format string, args ...any) {
	p.line(failStyle.Render("[FAIL]"), format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.line(warnStyle.Render("[WARN]"), format, args...)
}

func (p *Printer) Info(format string, args ...any) {
	p.line(infoStyle.Render("[INFO]"), format, args...)
}

func (p *Printer) Skipped(format string, args ...any) {
	p.line(hintStyle.Render("[SKIP]"), format, args...)
}

// Hint prints an indented remediation suggestion under the previous line.
func (p *Printer) Hint(format string, args ...any) {
	fmt.Fprintf(p.w, "       %s\n", hintStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) line(label, format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", label, fmt.Sprintf(format, args...))
}
