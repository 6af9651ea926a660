package source

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders diagnostics against the source text with caret markers
// and context lines.
type Reporter struct {
	filename string
	source   string
	lines    []string
}

func NewReporter(filename, src string) *Reporter {
	return &Reporter{
		filename: filename,
		source:   src,
		lines:    strings.Split(src, "\n"),
	}
}

// Format renders one diagnostic as a multi-line colored block.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	levelColor := r.levelColor(d.Severity)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(d.Severity.String()), d.Code, d.Message))
	} else {
		out.WriteString(fmt.Sprintf("%s: %s\n", levelColor(d.Severity.String()), d.Message))
	}

	width := r.lineNumberWidth(d.Pos.Line)
	indent := strings.Repeat(" ", width)

	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n",
		indent, dim("-->"), r.filename, d.Pos.Line, d.Pos.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Pos.Line > 1 && d.Pos.Line-1 < len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, d.Pos.Line-1)), dim("│"), r.lines[d.Pos.Line-2]))
	}

	if d.Pos.Line > 0 && d.Pos.Line <= len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			bold(fmt.Sprintf("%*d", width, d.Pos.Line)), dim("│"), r.lines[d.Pos.Line-1]))
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			indent, dim("│"), r.marker(d.Pos.Column, d.Length, d.Severity)))
	}

	if d.Pos.Line < len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, d.Pos.Line+1)), dim("│"), r.lines[d.Pos.Line]))
	}

	if len(d.Suggestions) > 0 {
		cyan := color.New(color.FgCyan).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))
		for i, s := range d.Suggestions {
			if i == 0 {
				out.WriteString(fmt.Sprintf("%s %s %s: %s\n", indent, cyan("help"), cyan("try"), s.Message))
			} else {
				out.WriteString(fmt.Sprintf("%s      %s\n", indent, s.Message))
			}
			if s.Replacement != "" {
				out.WriteString(fmt.Sprintf("%s %s %s\n", indent, cyan("│"), cyan(s.Replacement)))
			}
		}
	}

	for _, note := range d.Notes {
		blue := color.New(color.FgBlue).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), blue("note:"), note))
	}

	out.WriteString("\n")
	return out.String()
}

func (r *Reporter) levelColor(s Severity) func(...interface{}) string {
	switch s {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func (r *Reporter) marker(column, length int, s Severity) string {
	if length <= 0 {
		length = 1
	}
	spaces := strings.Repeat(" ", max(0, column-1))
	mc := r.levelColor(s)
	return spaces + mc(strings.Repeat("^", length))
}

func (r *Reporter) lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		width = 3
	}
	return width
}
