package perm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownGroup = errors.New("unknown group name")

// Cyclic returns C_n acting regularly on n points.
func Cyclic(n int) *Group {
	if n <= 1 {
		return NewGroup(0, nil)
	}
	return NewGroup(n, []Perm{rotation(n)})
}

// Dihedral returns the dihedral group of order 2n. D1 is C2 on two points
// and D2 is the Klein four-group on four points.
func Dihedral(n int) *Group {
	switch {
	case n <= 0:
		return NewGroup(0, nil)
	case n == 1:
		return Cyclic(2)
	case n == 2:
		return NewGroup(4, []Perm{{1, 0, 3, 2}, {2, 3, 0, 1}})
	}
	reflection := Identity(n)
	for i := 0; i < n; i++ {
		reflection[i] = n - 1 - i
	}
	return NewGroup(n, []Perm{rotation(n), reflection})
}

// Alternating returns A_n generated by the 3-cycles (1,2,i).
func Alternating(n int) *Group {
	if n < 3 {
		return NewGroup(0, nil)
	}
	gens := make([]Perm, 0, n-2)
	for i := 2; i < n; i++ {
		p := Identity(n)
		p[0], p[1], p[i] = 1, i, 0
		gens = append(gens, p)
	}
	return NewGroup(n, gens)
}

// Symmetric returns S_n generated by a transposition and an n-cycle.
func Symmetric(n int) *Group {
	if n < 2 {
		return NewGroup(0, nil)
	}
	swap := Identity(n)
	swap[0], swap[1] = 1, 0
	return NewGroup(n, []Perm{swap, rotation(n)})
}

// ByName resolves names such as "C5", "D27", "A4" or "S3". "1" is the
// trivial group.
func ByName(name string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "1" {
		return NewGroup(0, nil), nil
	}
	if len(name) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	switch strings.ToUpper(name[:1]) {
	case "C":
		return Cyclic(n), nil
	case "D":
		return Dihedral(n), nil
	case "A":
		return Alternating(n), nil
	case "S":
		return Symmetric(n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
}

func rotation(n int) Perm {
	p := make(Perm, n)
	for i := range p {
		p[i] = (i + 1) % n
	}
	return p
}
