package perm

import (
	"fmt"

	"groupevo/internal/algebra"
)

// Isomorphic decides whether a and b are isomorphic as abstract groups.
// Cheap invariants are compared first; the remaining cases search for
// images of a's generators in b that extend to a bijective homomorphism.
// Groups larger than limit fail with algebra.ErrTooLarge unless their
// orders already differ, and the search fails with algebra.ErrSearchBudget
// after budget candidate assignments.
func Isomorphic(a, b *Group, limit, budget int) (bool, error) {
	if a.Order().Cmp(b.Order()) != 0 {
		return false, nil
	}
	if sameGenerators(a, b) {
		return true, nil
	}
	if a.IsAbelian() != b.IsAbelian() {
		return false, nil
	}
	elemsA, err := a.Elements(limit)
	if err != nil {
		return false, err
	}
	elemsB, err := b.Elements(limit)
	if err != nil {
		return false, err
	}
	if len(elemsA) == 1 {
		return true, nil
	}
	if !sameHistogram(orderHistogram(elemsA), orderHistogram(elemsB)) {
		return false, nil
	}
	classesA, err := ConjugacyClassCount(a, limit)
	if err != nil {
		return false, err
	}
	classesB, err := ConjugacyClassCount(b, limit)
	if err != nil {
		return false, err
	}
	if classesA != classesB {
		return false, nil
	}

	gens := a.SmallGenerators()
	candidates := make([][]Perm, len(gens))
	for i, s := range gens {
		want := s.Order()
		for _, y := range elemsB {
			if y.Order().Cmp(want) == 0 {
				candidates[i] = append(candidates[i], y)
			}
		}
		if len(candidates[i]) == 0 {
			return false, nil
		}
	}

	search := &isoSearch{
		gens:       gens,
		candidates: candidates,
		degreeA:    a.degree,
		degreeB:    b.degree,
		order:      len(elemsA),
		budget:     budget,
		images:     make([]Perm, 0, len(gens)),
	}
	return search.run()
}

type isoSearch struct {
	gens       []Perm
	candidates [][]Perm
	degreeA    int
	degreeB    int
	order      int
	budget     int
	tried      int
	images     []Perm
}

func (s *isoSearch) run() (bool, error) {
	k := len(s.images)
	if k == len(s.gens) {
		size, ok := s.extend(k)
		return ok && size == s.order, nil
	}
	for _, candidate := range s.candidates[k] {
		s.tried++
		if s.tried > s.budget {
			return false, fmt.Errorf("%w: %d assignments", algebra.ErrSearchBudget, s.budget)
		}
		s.images = append(s.images, candidate)
		if _, ok := s.extend(k + 1); ok {
			found, err := s.run()
			if err != nil || found {
				return found, err
			}
		}
		s.images = s.images[:k]
	}
	return false, nil
}

// extend walks the Cayley graph of the subgroup generated by the first k
// generators, mapping x*gens[i] to phi(x)*images[i]. It reports the
// subgroup size and whether the map is a well defined injective
// homomorphism.
func (s *isoSearch) extend(k int) (int, bool) {
	identity := Identity(s.degreeA)
	phi := map[string]Perm{identity.key(): Identity(s.degreeB)}
	used := map[string]struct{}{Identity(s.degreeB).key(): {}}
	queue := []Perm{identity}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		fx := phi[x.key()]
		for i := 0; i < k; i++ {
			y := x.Mul(s.gens[i])
			fy := fx.Mul(s.images[i])
			if existing, ok := phi[y.key()]; ok {
				if !existing.Equal(fy) {
					return 0, false
				}
				continue
			}
			if _, clash := used[fy.key()]; clash {
				return 0, false
			}
			phi[y.key()] = fy
			used[fy.key()] = struct{}{}
			queue = append(queue, y)
		}
	}
	return len(phi), true
}

func sameGenerators(a, b *Group) bool {
	if a.degree != b.degree || len(a.gens) != len(b.gens) {
		return false
	}
	for i := range a.gens {
		if !a.gens[i].Equal(b.gens[i]) {
			return false
		}
	}
	return true
}

func sameHistogram(a, b map[int64]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
