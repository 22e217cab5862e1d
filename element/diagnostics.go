package element

import (
	"fmt"
	"strings"
	"sync"
)

// Level is the severity of a diagnostic.
type Level uint8

const (
	LevelWarning Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a message attached to an element.
type Diagnostic struct {
	Level   Level
	Element string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Level, d.Element, d.Message)
}

// Diagnostics collects messages produced by passes. Safe for concurrent use.
type Diagnostics struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (d *Diagnostics) Errorf(element, format string, args ...any) {
	d.add(LevelError, element, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) Warnf(element, format string, args ...any) {
	d.add(LevelWarning, element, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) add(level Level, element, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, Diagnostic{Level: level, Element: element, Message: msg})
}

// HasErrors reports whether any error level diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range d.items {
		if it.Level == LevelError {
			return true
		}
	}
	return false
}

// All returns a copy of the recorded diagnostics in order.
func (d *Diagnostics) All() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}

func (d *Diagnostics) String() string {
	var sb strings.Builder
	for _, it := range d.All() {
		sb.WriteString(it.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
