package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const (
	storedColorConstant   = "2"
	unstoredColorConstant = "3"
	failureColorConstant  = "1"
	dimColorConstant      = "240"
)

// StatusStyler decorates repository status labels for terminal output.
type StatusStyler struct {
	enabled       bool
	storedStyle   lipgloss.Style
	unstoredStyle lipgloss.Style
	failureStyle  lipgloss.Style
	dimStyle      lipgloss.Style
}

// NewStatusStyler constructs a styler. A disabled styler returns labels unchanged.
func NewStatusStyler(enabled bool) *StatusStyler {
	return &StatusStyler{
		enabled:       enabled,
		storedStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color(storedColorConstant)),
		unstoredStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(unstoredColorConstant)).Bold(true),
		failureStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color(failureColorConstant)).Bold(true),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color(dimColorConstant)),
	}
}

// NewTerminalStatusStyler enables styling only when the file is an interactive terminal.
func NewTerminalStatusStyler(file *os.File) *StatusStyler {
	return NewStatusStyler(IsTerminal(file))
}

// IsTerminal reports whether the file is attached to a terminal.
func IsTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	fileDescriptor := file.Fd()
	return isatty.IsTerminal(fileDescriptor) || isatty.IsCygwinTerminal(fileDescriptor)
}

// Stored renders a label for a repository whose metadata is present.
func (styler *StatusStyler) Stored(label string) string {
	return styler.render(func(active *StatusStyler) lipgloss.Style { return active.storedStyle }, label)
}

// Unstored renders a label for a repository that is not materialized locally.
func (styler *StatusStyler) Unstored(label string) string {
	return styler.render(func(active *StatusStyler) lipgloss.Style { return active.unstoredStyle }, label)
}

// Failure renders a label for a failed operation.
func (styler *StatusStyler) Failure(label string) string {
	return styler.render(func(active *StatusStyler) lipgloss.Style { return active.failureStyle }, label)
}

// Detail renders secondary information such as resolved directories.
func (styler *StatusStyler) Detail(label string) string {
	return styler.render(func(active *StatusStyler) lipgloss.Style { return active.dimStyle }, label)
}

func (styler *StatusStyler) render(selectStyle func(*StatusStyler) lipgloss.Style, label string) string {
	if styler == nil || !styler.enabled {
		return label
	}
	return selectStyle(styler).Render(label)
}
