package perm

import (
	"fmt"
	"math/big"
)

// ConjugacyClassCount counts the orbits of the group acting on itself by
// conjugation. Conjugating by generators is enough to reach every element
// of a class.
func ConjugacyClassCount(g *Group, limit int) (int, error) {
	elems, err := g.Elements(limit)
	if err != nil {
		return 0, err
	}
	inverses := make([]Perm, len(g.gens))
	for i, s := range g.gens {
		inverses[i] = s.Inverse()
	}

	seen := make(map[string]struct{}, len(elems))
	classes := 0
	for _, x := range elems {
		if _, ok := seen[x.key()]; ok {
			continue
		}
		classes++
		seen[x.key()] = struct{}{}
		queue := []Perm{x}
		for len(queue) > 0 {
			y := queue[0]
			queue = queue[1:]
			for i, s := range g.gens {
				z := inverses[i].Mul(y).Mul(s)
				k := z.key()
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				queue = append(queue, z)
			}
		}
	}
	return classes, nil
}

// OrderHistogram counts the elements of each order.
func OrderHistogram(g *Group, limit int) (map[int64]int, error) {
	elems, err := g.Elements(limit)
	if err != nil {
		return nil, err
	}
	return orderHistogram(elems), nil
}

func orderHistogram(elems []Perm) map[int64]int {
	out := make(map[int64]int)
	for _, x := range elems {
		out[x.Order().Int64()]++
	}
	return out
}

// IsCyclic reports whether some element generates the whole group.
func IsCyclic(g *Group, limit int) (bool, error) {
	if len(g.SmallGenerators()) <= 1 {
		return true, nil
	}
	if !g.IsAbelian() {
		return false, nil
	}
	elems, err := g.Elements(limit)
	if err != nil {
		return false, err
	}
	order := g.Order()
	for _, x := range elems {
		if x.Order().Cmp(order) == 0 {
			return true, nil
		}
	}
	return false, nil
}

// Describe summarizes g for reports. Cyclic groups are named C<n>.
func Describe(g *Group, limit int) string {
	order := g.Order()
	if order.Cmp(big.NewInt(1)) == 0 {
		return "1"
	}
	if cyclic, err := IsCyclic(g, limit); err == nil && cyclic {
		return "C" + order.String()
	}
	desc := fmt.Sprintf("group of order %s (degree %d, %d generators", order, g.degree, len(g.gens))
	if g.IsAbelian() {
		desc += ", abelian"
	}
	return desc + ")"
}
