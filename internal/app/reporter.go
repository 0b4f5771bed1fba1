package app

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

// ConsoleReporter writes user-facing progress to a terminal. It satisfies the
// gitre.Reporter interface.
type ConsoleReporter struct {
	w io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) Step(msg string) {
	fmt.Fprintln(r.w, stepStyle.Render("→ "+msg))
}

func (r *ConsoleReporter) Warn(msg string) {
	fmt.Fprintln(r.w, warnStyle.Render("! "+msg))
}

func (r *ConsoleReporter) Success(msg string) {
	fmt.Fprintln(r.w, successStyle.Render("✓ "+msg))
}
