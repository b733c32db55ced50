package algebra

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedDescriptor = errors.New("malformed generator descriptor")

// Cycle is one disjoint cycle over 1-based domain points.
type Cycle []int

// Descriptor describes one generating permutation as an ordered list of
// disjoint cycles. A descriptor made only of singleton cycles (or no cycles
// at all) denotes the identity.
type Descriptor []Cycle

// Validate checks that every cycle is non-empty, every point is positive and
// no point appears twice.
func (d Descriptor) Validate() error {
	seen := make(map[int]struct{})
	for i, cycle := range d {
		if len(cycle) == 0 {
			return fmt.Errorf("%w: empty cycle at index %d", ErrMalformedDescriptor, i)
		}
		for _, point := range cycle {
			if point <= 0 {
				return fmt.Errorf("%w: non-positive point %d", ErrMalformedDescriptor, point)
			}
			if _, dup := seen[point]; dup {
				return fmt.Errorf("%w: point %d repeated", ErrMalformedDescriptor, point)
			}
			seen[point] = struct{}{}
		}
	}
	return nil
}

func (d Descriptor) IsIdentity() bool {
	for _, cycle := range d {
		if len(cycle) > 1 {
			return false
		}
	}
	return true
}

// MaxPoint returns the largest domain point touched by the descriptor,
// singletons included. It is 0 for an empty descriptor.
func (d Descriptor) MaxPoint() int {
	maxPoint := 0
	for _, cycle := range d {
		for _, point := range cycle {
			if point > maxPoint {
				maxPoint = point
			}
		}
	}
	return maxPoint
}

func (d Descriptor) Clone() Descriptor {
	out := make(Descriptor, len(d))
	for i, cycle := range d {
		out[i] = append(Cycle(nil), cycle...)
	}
	return out
}

// String renders every cycle, singletons included, e.g. "(1,2,3)(4)".
// The empty descriptor renders as "()".
func (d Descriptor) String() string {
	if len(d) == 0 {
		return "()"
	}
	var b strings.Builder
	for _, cycle := range d {
		writeCycle(&b, cycle)
	}
	return b.String()
}

// Compact renders only the non-trivial cycles, the way permutations are
// usually written by hand.
func (d Descriptor) Compact() string {
	var b strings.Builder
	for _, cycle := range d {
		if len(cycle) > 1 {
			writeCycle(&b, cycle)
		}
	}
	if b.Len() == 0 {
		return "()"
	}
	return b.String()
}

func writeCycle(b *strings.Builder, cycle Cycle) {
	b.WriteByte('(')
	for i, point := range cycle {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(point))
	}
	b.WriteByte(')')
}

// ParseDescriptor parses cycle notation such as "(1,2,3)(4,5)" or "()".
// Whitespace is ignored.
func ParseDescriptor(s string) (Descriptor, error) {
	text := strings.Join(strings.Fields(s), "")
	if text == "" || text == "()" {
		return Descriptor{}, nil
	}
	var out Descriptor
	for len(text) > 0 {
		if text[0] != '(' {
			return nil, fmt.Errorf("%w: expected '(' in %q", ErrMalformedDescriptor, s)
		}
		end := strings.IndexByte(text, ')')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated cycle in %q", ErrMalformedDescriptor, s)
		}
		body := text[1:end]
		text = text[end+1:]
		if body == "" {
			continue
		}
		var cycle Cycle
		for _, field := range strings.Split(body, ",") {
			point, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: bad point %q in %q", ErrMalformedDescriptor, field, s)
			}
			cycle = append(cycle, point)
		}
		out = append(out, cycle)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseGenerators parses each entry with ParseDescriptor.
func ParseGenerators(items []string) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(items))
	for _, item := range items {
		d, err := ParseDescriptor(item)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// FormatGenerators renders each descriptor with String.
func FormatGenerators(gens []Descriptor) []string {
	out := make([]string, 0, len(gens))
	for _, d := range gens {
		out = append(out, d.String())
	}
	return out
}

// MaxPointOf returns the largest point touched by any descriptor.
func MaxPointOf(gens []Descriptor) int {
	maxPoint := 0
	for _, d := range gens {
		if p := d.MaxPoint(); p > maxPoint {
			maxPoint = p
		}
	}
	return maxPoint
}

// EqualGenerators reports whether two generator lists are identical
// descriptor by descriptor.
func EqualGenerators(a, b []Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].String() != b[i].String() {
			return false
		}
	}
	return true
}
