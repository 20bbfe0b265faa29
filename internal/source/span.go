package source

import "fmt"

// Span identifies the source location an IR node was built from.
// The zero Span means the node was synthesized by the backend itself.
type Span struct {
	File   string
	Line   int
	Column int
}

func (s Span) IsZero() bool {
	return s == Span{}
}

func (s Span) String() string {
	if s.IsZero() {
		return "<generated>"
	}
	if s.File == "" {
		return fmt.Sprintf("line %d, column %d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}
