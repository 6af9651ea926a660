package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnelineFormat(t *testing.T) {
	d := Diagnostic{
		Severity: Error,
		Code:     ErrUnexpectedToken,
		Message:  "unexpected token",
		Pos:      Position{Filename: "main.sph", Line: 3, Column: 14},
	}
	assert.Equal(t, "main.sph:3:14: error: unexpected token", d.Oneline())

	d.Severity = Warning
	assert.Equal(t, "main.sph:3:14: warning: unexpected token", d.Oneline())
}

func TestListCounts(t *testing.T) {
	l := NewList()
	assert.False(t, l.HasErrors())

	l.Errorf(ErrUnexpectedChar, Position{Filename: "a.sph", Line: 1, Column: 1}, "bad byte %q", 'x')
	l.Warnf(WarnUnknownEscape, Position{Filename: "a.sph", Line: 2, Column: 1}, "odd escape")
	l.Warnf(WarnUnknownEffect, Position{Filename: "a.sph", Line: 3, Column: 1}, "odd effect")

	assert.Equal(t, 1, l.ErrorCount())
	assert.Equal(t, 2, l.WarningCount())
	assert.True(t, l.HasErrors())
	assert.Equal(t, 3, l.Len())

	recent := l.Recent()
	assert.Equal(t, WarnUnknownEffect, recent.Code)
}

func TestReporterMarksColumn(t *testing.T) {
	src := "let x = $;\nlet y = 2;"
	r := NewReporter("t.sph", src)
	out := r.Format(Diagnostic{
		Severity: Error,
		Code:     ErrUnexpectedChar,
		Message:  "unexpected character",
		Pos:      Position{Filename: "t.sph", Line: 1, Column: 9},
		Length:   1,
	})
	assert.Contains(t, out, "t.sph:1:9")
	assert.Contains(t, out, "let x = $;")
	assert.Contains(t, out, "^")
}
