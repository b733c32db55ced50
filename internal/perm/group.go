package perm

import (
	"fmt"
	"math/big"
	"sync"

	"golang.org/x/exp/slices"

	"groupevo/internal/algebra"
)

// Group is an immutable permutation group given by a canonical generating
// set. The stabilizer chain is built on first use and is safe to share
// between goroutines.
type Group struct {
	degree int
	gens   []Perm

	once  sync.Once
	chain *stabChain
}

// NewGroup canonicalizes gens: identities are dropped, every generator is
// extended to degree, duplicates are removed and the rest sorted. degree is
// raised to the largest generator degree when smaller.
func NewGroup(degree int, gens []Perm) *Group {
	for _, g := range gens {
		if len(g) > degree {
			degree = len(g)
		}
	}
	canonical := make([]Perm, 0, len(gens))
	for _, g := range gens {
		if g.IsIdentity() {
			continue
		}
		canonical = append(canonical, append(Perm(nil), g.Extend(degree)...))
	}
	slices.SortFunc(canonical, func(a, b Perm) int { return a.Compare(b) })
	canonical = slices.CompactFunc(canonical, func(a, b Perm) bool { return a.Equal(b) })
	return &Group{degree: degree, gens: canonical}
}

func (g *Group) stabChain() *stabChain {
	g.once.Do(func() {
		g.chain = newStabChain(g.degree, g.gens)
	})
	return g.chain
}

func (g *Group) Degree() int {
	return g.degree
}

// Generators returns the canonical generators in cycle notation with
// singletons up to the group degree.
func (g *Group) Generators() []algebra.Descriptor {
	out := make([]algebra.Descriptor, 0, len(g.gens))
	for _, p := range g.gens {
		out = append(out, p.Descriptor())
	}
	return out
}

// Perms returns a copy of the canonical generators.
func (g *Group) Perms() []Perm {
	out := make([]Perm, len(g.gens))
	for i, p := range g.gens {
		out[i] = append(Perm(nil), p...)
	}
	return out
}

func (g *Group) Order() *big.Int {
	return g.stabChain().order()
}

func (g *Group) Contains(p Perm) bool {
	return g.stabChain().contains(p)
}

// IsAbelian reports whether every pair of generators commutes.
func (g *Group) IsAbelian() bool {
	for i := range g.gens {
		for j := i + 1; j < len(g.gens); j++ {
			if !g.gens[i].Mul(g.gens[j]).Equal(g.gens[j].Mul(g.gens[i])) {
				return false
			}
		}
	}
	return true
}

// Elements enumerates the group by closing the identity under right
// multiplication by generators. It fails with algebra.ErrTooLarge when the
// order exceeds limit.
func (g *Group) Elements(limit int) ([]Perm, error) {
	order := g.Order()
	if !order.IsInt64() || order.Int64() > int64(limit) {
		return nil, fmt.Errorf("%w: order %s exceeds limit %d", algebra.ErrTooLarge, order, limit)
	}
	size := int(order.Int64())
	out := make([]Perm, 0, size)
	seen := make(map[string]struct{}, size)

	identity := Identity(g.degree)
	out = append(out, identity)
	seen[identity.key()] = struct{}{}
	for i := 0; i < len(out); i++ {
		for _, s := range g.gens {
			next := out[i].Mul(s)
			k := next.key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, next)
		}
	}
	return out, nil
}

// SmallGenerators greedily keeps the canonical generators that enlarge the
// subgroup generated so far.
func (g *Group) SmallGenerators() []Perm {
	var kept []Perm
	var sub *stabChain
	for _, p := range g.gens {
		if sub != nil && sub.contains(p) {
			continue
		}
		kept = append(kept, p)
		sub = newStabChain(g.degree, kept)
	}
	return kept
}
