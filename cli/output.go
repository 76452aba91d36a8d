package cli

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/texlate/texlate/engine/job"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// colorEnabled reports whether w is a terminal that accepts colors.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// renderJobLine highlights the terminal lines of a job.
func renderJobLine(line string, color bool) string {
	if !color {
		return line
	}
	switch {
	case strings.HasPrefix(line, job.ArtifactPrefix):
		return successStyle.Render(line)
	case strings.HasPrefix(line, job.FailurePrefix):
		return failureStyle.Render(line)
	default:
		return line
	}
}

func renderLabel(label string, color bool) string {
	if !color {
		return label
	}
	return labelStyle.Render(label)
}
