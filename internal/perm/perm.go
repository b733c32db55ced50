package perm

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"groupevo/internal/algebra"
)

// Perm is a permutation of {0..n-1}: p[i] is the image of i. Points beyond
// len(p) are treated as fixed.
type Perm []int

func Identity(n int) Perm {
	p := make(Perm, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// FromDescriptor converts 1-based cycle notation into a permutation of
// degree n. n is raised to the descriptor's largest point when smaller.
func FromDescriptor(d algebra.Descriptor, n int) (Perm, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if m := d.MaxPoint(); m > n {
		n = m
	}
	p := Identity(n)
	for _, cycle := range d {
		for j, point := range cycle {
			p[point-1] = cycle[(j+1)%len(cycle)] - 1
		}
	}
	return p, nil
}

func (p Perm) Apply(i int) int {
	if i < len(p) {
		return p[i]
	}
	return i
}

func (p Perm) IsIdentity() bool {
	for i, v := range p {
		if i != v {
			return false
		}
	}
	return true
}

// Extend returns p acting on {0..n-1}; it panics when n is below the degree.
func (p Perm) Extend(n int) Perm {
	if n < len(p) {
		panic(fmt.Sprintf("perm: cannot shrink degree %d to %d", len(p), n))
	}
	if n == len(p) {
		return p
	}
	out := make(Perm, n)
	copy(out, p)
	for i := len(p); i < n; i++ {
		out[i] = i
	}
	return out
}

// Shift moves p onto {offset..offset+len(p)-1} inside a domain of size n.
func (p Perm) Shift(offset, n int) Perm {
	out := Identity(n)
	for i, v := range p {
		out[i+offset] = v + offset
	}
	return out
}

// Mul composes left to right: (p*q)(i) = q(p(i)).
func (p Perm) Mul(q Perm) Perm {
	n := len(p)
	if len(q) > n {
		n = len(q)
	}
	out := make(Perm, n)
	for i := range out {
		out[i] = q.Apply(p.Apply(i))
	}
	return out
}

func (p Perm) Inverse() Perm {
	out := make(Perm, len(p))
	for i, v := range p {
		out[v] = i
	}
	return out
}

func (p Perm) Equal(q Perm) bool {
	n := len(p)
	if len(q) > n {
		n = len(q)
	}
	for i := 0; i < n; i++ {
		if p.Apply(i) != q.Apply(i) {
			return false
		}
	}
	return true
}

// Compare orders permutations lexicographically by their image arrays.
func (p Perm) Compare(q Perm) int {
	n := len(p)
	if len(q) > n {
		n = len(q)
	}
	for i := 0; i < n; i++ {
		a, b := p.Apply(i), q.Apply(i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Cycles returns the 0-based cycle decomposition, singletons included,
// each cycle starting at its smallest point.
func (p Perm) Cycles() [][]int {
	seen := make([]bool, len(p))
	var out [][]int
	for start := range p {
		if seen[start] {
			continue
		}
		cycle := []int{start}
		seen[start] = true
		for next := p[start]; next != start; next = p[next] {
			cycle = append(cycle, next)
			seen[next] = true
		}
		out = append(out, cycle)
	}
	return out
}

// Descriptor returns the 1-based cycle notation with singletons up to the
// degree of p.
func (p Perm) Descriptor() algebra.Descriptor {
	cycles := p.Cycles()
	out := make(algebra.Descriptor, 0, len(cycles))
	for _, cycle := range cycles {
		c := make(algebra.Cycle, len(cycle))
		for i, point := range cycle {
			c[i] = point + 1
		}
		out = append(out, c)
	}
	return out
}

// Order returns the least common multiple of the cycle lengths.
func (p Perm) Order() *big.Int {
	lengths := map[int]struct{}{}
	for _, cycle := range p.Cycles() {
		lengths[len(cycle)] = struct{}{}
	}
	out := big.NewInt(1)
	gcd := new(big.Int)
	for length := range lengths {
		l := big.NewInt(int64(length))
		gcd.GCD(nil, nil, out, l)
		out.Div(out, gcd)
		out.Mul(out, l)
	}
	return out
}

// Pow raises p to the k-th power; k may be negative or larger than int64.
func (p Perm) Pow(k *big.Int) Perm {
	out := make(Perm, len(p))
	mod := new(big.Int)
	for _, cycle := range p.Cycles() {
		length := big.NewInt(int64(len(cycle)))
		shift := int(mod.Mod(k, length).Int64())
		for j, point := range cycle {
			out[point] = cycle[(j+shift)%len(cycle)]
		}
	}
	return out
}

func (p Perm) firstMoved() int {
	for i, v := range p {
		if i != v {
			return i
		}
	}
	return -1
}

// key is a compact map key for p.
func (p Perm) key() string {
	buf := make([]byte, 0, len(p)*2)
	for _, v := range p {
		buf = binary.AppendUvarint(buf, uint64(v))
	}
	return string(buf)
}
