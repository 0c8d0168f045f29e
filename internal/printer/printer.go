package printer

import (
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/fatih/color"
)

type ColorPrinter struct {
	Success func(format string, a ...interface{}) string
	Error   func(format string, a ...interface{}) string
	Warning func(format string, a ...interface{}) string
	Info    func(format string, a ...interface{}) string
	Debug   func(format string, a ...interface{}) string
	Bold    func(format string, a ...interface{}) string
}

func NewColorPrinter() *ColorPrinter {
	return &ColorPrinter{
		Success: color.New(color.FgGreen).SprintfFunc(),
		Error:   color.New(color.FgRed).SprintfFunc(),
		Warning: color.New(color.FgYellow).SprintfFunc(),
		Info:    color.New(color.FgBlue).SprintfFunc(),
		Debug:   color.New(color.FgCyan).SprintfFunc(),
		Bold:    color.New(color.Bold).SprintfFunc(),
	}
}

// Status colors a classification label for tables.
func (p *ColorPrinter) Status(s models.Status) string {
	switch {
	case s == models.StatusUpdated:
		return p.Success("%s", s)
	case s.IsError():
		return p.Error("%s", s)
	case s == models.StatusFirstCheck:
		return p.Info("%s", s)
	case s == models.StatusSkippedStatic:
		return p.Debug("%s", s)
	default:
		return string(s)
	}
}
