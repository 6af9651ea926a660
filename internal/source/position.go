package source

import "fmt"

// Position identifies a byte-exact location in a source file.
type Position struct {
	Filename string
	Line     int // 1-based
	Column   int // 1-based
	Offset   int // 0-based absolute index in input
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// IsValid reports whether the position carries real coordinates.
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0
}
