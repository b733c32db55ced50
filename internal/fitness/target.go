// Package fitness holds scoring functions for evolved groups.
package fitness

import (
	"errors"
	"fmt"
	"math"

	"groupevo/internal/algebra"
	"groupevo/internal/perm"
)

// ClassTarget rewards non-forbidden groups whose conjugacy class count is
// close to Classes. The score peaks at Sigmoid(1) when the count matches.
type ClassTarget struct {
	Provider          algebra.Provider
	Classes           int
	RequireNonAbelian bool
	Forbidden         []algebra.Structure
	// MaxDegree, when positive, scores larger structures -Inf without
	// touching the provider.
	MaxDegree int
}

// NewClassTarget resolves forbidden group names such as "D27".
func NewClassTarget(provider algebra.Provider, classes int, requireNonAbelian bool, forbidden []string) (ClassTarget, error) {
	if provider == nil {
		return ClassTarget{}, errors.New("provider is required")
	}
	if classes <= 0 {
		return ClassTarget{}, fmt.Errorf("target class count must be > 0, got %d", classes)
	}
	groups := make([]algebra.Structure, 0, len(forbidden))
	for _, name := range forbidden {
		g, err := perm.ByName(name)
		if err != nil {
			return ClassTarget{}, err
		}
		groups = append(groups, g)
	}
	return ClassTarget{
		Provider:          provider,
		Classes:           classes,
		RequireNonAbelian: requireNonAbelian,
		Forbidden:         groups,
	}, nil
}

// Score implements evo.FitnessFunc. Structures the provider cannot
// enumerate or compare within its limits score -Inf.
func (t ClassTarget) Score(s algebra.Structure) (float64, error) {
	if t.MaxDegree > 0 && s.Degree() > t.MaxDegree {
		return math.Inf(-1), nil
	}
	if t.RequireNonAbelian {
		abelian, err := t.Provider.IsAbelian(s)
		if err != nil {
			return scoreError(err)
		}
		if abelian {
			return 0, nil
		}
	}
	for _, forbidden := range t.Forbidden {
		same, err := t.Provider.Isomorphic(s, forbidden)
		if err != nil {
			return scoreError(err)
		}
		if same {
			return 0, nil
		}
	}
	classes, err := t.Provider.ConjugacyClassCount(s)
	if err != nil {
		return scoreError(err)
	}
	ratio := float64(classes)/float64(t.Classes) - 1
	return Sigmoid(1 - ratio*ratio), nil
}

func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func scoreError(err error) (float64, error) {
	if errors.Is(err, algebra.ErrTooLarge) || errors.Is(err, algebra.ErrSearchBudget) {
		return math.Inf(-1), nil
	}
	return 0, err
}
