package robot

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPrimitive = errors.New("robot: invalid primitive")

// Primitive is one atomic robot command. The byte values are the characters
// the controller accepts.
type Primitive byte

const (
	Left    Primitive = 'L'
	Right   Primitive = 'R'
	Forward Primitive = 'F'
)

func (p Primitive) Valid() bool { return p == Left || p == Right || p == Forward }

func (p Primitive) String() string { return string(p) }

// ParsePrimitives parses a string such as "LFFR".
func ParsePrimitives(s string) ([]Primitive, error) {
	out := make([]Primitive, 0, len(s))
	for i := 0; i < len(s); i++ {
		p := Primitive(s[i])
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q at %d", ErrInvalidPrimitive, s[i], i)
		}
		out = append(out, p)
	}
	return out, nil
}

// FormatPrimitives joins ps into a single command string.
func FormatPrimitives(ps []Primitive) string {
	var b strings.Builder
	b.Grow(len(ps))
	for _, p := range ps {
		b.WriteByte(byte(p))
	}
	return b.String()
}
