// Package alerts provides a structured system for status notifications.
package alerts

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-isatty"
)

// Alert represents a status notification printed by a command.
type Alert struct {
	Level     Level
	Message   string
	Details   []string
	Timestamp time.Time
	Err       error
}

// New creates a new alert with the given level and message.
func New(level Level, message string) *Alert {
	return &Alert{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewError creates a new error alert.
func NewError(message string) *Alert {
	return New(LevelError, message)
}

// NewWarning creates a new warning alert.
func NewWarning(message string) *Alert {
	return New(LevelWarning, message)
}

// NewInfo creates a new info alert.
func NewInfo(message string) *Alert {
	return New(LevelInfo, message)
}

// NewSuccess creates a new success alert.
func NewSuccess(message string) *Alert {
	return New(LevelSuccess, message)
}

// WithError adds an underlying error to the alert.
func (a *Alert) WithError(err error) *Alert {
	a.Err = err
	return a
}

// WithDetails adds additional context details to the alert.
func (a *Alert) WithDetails(details ...string) *Alert {
	a.Details = append(a.Details, details...)
	return a
}

// String returns a string representation of the alert.
func (a *Alert) String() string {
	message := fmt.Sprintf("%s %s", a.Level.Icon(), a.Message)
	if a.Err != nil {
		message += fmt.Sprintf(": %v", a.Err)
	}
	return message
}

// Writer prints alerts to an io.Writer, coloring them on terminals.
type Writer struct {
	w     io.Writer
	color bool
	quiet bool
}

// NewWriter creates a Writer. Quiet writers only print errors.
func NewWriter(w io.Writer, noColor, quiet bool) *Writer {
	color := false
	if f, ok := w.(interface{ Fd() uintptr }); ok && !noColor {
		color = isatty.IsTerminal(f.Fd())
	}
	return &Writer{w: w, color: color, quiet: quiet}
}

// Write prints the alert and its details.
func (w *Writer) Write(a *Alert) error {
	if w.quiet && a.Level != LevelError {
		return nil
	}
	line := a.String()
	if w.color {
		line = a.Level.Color() + line + ResetColor()
	}
	if _, err := fmt.Fprintln(w.w, line); err != nil {
		return err
	}
	for _, d := range a.Details {
		if _, err := fmt.Fprintf(w.w, "   %s\n", d); err != nil {
			return err
		}
	}
	return nil
}
