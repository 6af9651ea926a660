package source

import "fmt"

// Severity classifies a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "error"
	}
}

// Suggestion is a suggested fix attached to a diagnostic.
type Suggestion struct {
	Message     string
	Replacement string
}

// Diagnostic is one compiler message anchored at a source position.
type Diagnostic struct {
	Severity    Severity
	Code        string // e.g. E0201
	Message     string
	Pos         Position
	Length      int // characters covered by the marker, 0 means 1
	Suggestions []Suggestion
	Notes       []string
}

// Oneline renders the machine-stable form used on stderr.
func (d Diagnostic) Oneline() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// List accumulates diagnostics for one compilation job. It is append-only;
// Recent gives the most recently recorded entry first so callers can inspect
// the latest failure without walking the whole list.
type List struct {
	diags    []Diagnostic
	errors   int
	warnings int
}

func NewList() *List {
	return &List{}
}

func (l *List) Add(d Diagnostic) {
	l.diags = append(l.diags, d)
	switch d.Severity {
	case Error:
		l.errors++
	case Warning:
		l.warnings++
	}
}

func (l *List) Errorf(code string, pos Position, format string, args ...interface{}) {
	l.Add(Diagnostic{Severity: Error, Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (l *List) Warnf(code string, pos Position, format string, args ...interface{}) {
	l.Add(Diagnostic{Severity: Warning, Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// All returns the diagnostics in insertion order.
func (l *List) All() []Diagnostic {
	return l.diags
}

// Recent returns the most recently added diagnostic, or nil.
func (l *List) Recent() *Diagnostic {
	if len(l.diags) == 0 {
		return nil
	}
	return &l.diags[len(l.diags)-1]
}

func (l *List) ErrorCount() int   { return l.errors }
func (l *List) WarningCount() int { return l.warnings }
func (l *List) HasErrors() bool   { return l.errors > 0 }
func (l *List) Len() int          { return len(l.diags) }
