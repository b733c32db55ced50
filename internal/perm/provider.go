package perm

import (
	"fmt"
	"math/big"

	"groupevo/internal/algebra"
)

const (
	DefaultMaxEnumeration    = 40320
	DefaultIsomorphismBudget = 200000
)

// Provider implements algebra.Provider on permutation groups.
type Provider struct {
	// MaxEnumeration bounds the group order for operations that list every
	// element (conjugacy classes, isomorphism).
	MaxEnumeration int
	// IsomorphismBudget bounds the number of generator-image assignments
	// tried by Isomorphic.
	IsomorphismBudget int
}

func NewProvider() *Provider {
	return &Provider{
		MaxEnumeration:    DefaultMaxEnumeration,
		IsomorphismBudget: DefaultIsomorphismBudget,
	}
}

var _ algebra.Provider = (*Provider)(nil)

// Build validates gens and returns the group they generate. The degree is
// the largest point mentioned by any descriptor, singletons included.
func (p *Provider) Build(gens []algebra.Descriptor) (algebra.Structure, error) {
	return Build(gens)
}

// Build is the provider-independent form of Provider.Build.
func Build(gens []algebra.Descriptor) (*Group, error) {
	degree := algebra.MaxPointOf(gens)
	perms := make([]Perm, 0, len(gens))
	for _, d := range gens {
		perm, err := FromDescriptor(d, degree)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return NewGroup(degree, perms), nil
}

// DirectProduct places b on the points following a's domain.
func (p *Provider) DirectProduct(a, b algebra.Structure) (algebra.Structure, error) {
	ga, err := asGroup(a)
	if err != nil {
		return nil, err
	}
	gb, err := asGroup(b)
	if err != nil {
		return nil, err
	}
	return DirectProduct(ga, gb), nil
}

func DirectProduct(a, b *Group) *Group {
	n := a.degree + b.degree
	gens := make([]Perm, 0, len(a.gens)+len(b.gens))
	for _, g := range a.gens {
		gens = append(gens, g.Extend(n))
	}
	for _, g := range b.gens {
		gens = append(gens, g.Shift(a.degree, n))
	}
	return NewGroup(n, gens)
}

func (p *Provider) ElementOrder(d algebra.Descriptor) (*big.Int, error) {
	perm, err := FromDescriptor(d, 0)
	if err != nil {
		return nil, err
	}
	return perm.Order(), nil
}

func (p *Provider) Multiply(x, y algebra.Descriptor) (algebra.Descriptor, error) {
	n := x.MaxPoint()
	if m := y.MaxPoint(); m > n {
		n = m
	}
	px, err := FromDescriptor(x, n)
	if err != nil {
		return nil, err
	}
	py, err := FromDescriptor(y, n)
	if err != nil {
		return nil, err
	}
	return px.Mul(py).Descriptor(), nil
}

func (p *Provider) Inverse(d algebra.Descriptor) (algebra.Descriptor, error) {
	perm, err := FromDescriptor(d, 0)
	if err != nil {
		return nil, err
	}
	return perm.Inverse().Descriptor(), nil
}

func (p *Provider) Power(d algebra.Descriptor, k *big.Int) (algebra.Descriptor, error) {
	perm, err := FromDescriptor(d, 0)
	if err != nil {
		return nil, err
	}
	return perm.Pow(k).Descriptor(), nil
}

func (p *Provider) IsAbelian(s algebra.Structure) (bool, error) {
	g, err := asGroup(s)
	if err != nil {
		return false, err
	}
	return g.IsAbelian(), nil
}

func (p *Provider) ConjugacyClassCount(s algebra.Structure) (int, error) {
	g, err := asGroup(s)
	if err != nil {
		return 0, err
	}
	return ConjugacyClassCount(g, p.maxEnumeration())
}

func (p *Provider) Isomorphic(a, b algebra.Structure) (bool, error) {
	ga, err := asGroup(a)
	if err != nil {
		return false, err
	}
	gb, err := asGroup(b)
	if err != nil {
		return false, err
	}
	budget := p.IsomorphismBudget
	if budget <= 0 {
		budget = DefaultIsomorphismBudget
	}
	return Isomorphic(ga, gb, p.maxEnumeration(), budget)
}

func (p *Provider) Describe(s algebra.Structure) string {
	g, err := asGroup(s)
	if err != nil {
		return fmt.Sprintf("unknown structure: %v", err)
	}
	return Describe(g, p.maxEnumeration())
}

func (p *Provider) maxEnumeration() int {
	if p.MaxEnumeration <= 0 {
		return DefaultMaxEnumeration
	}
	return p.MaxEnumeration
}

// asGroup unwraps a *Group or rebuilds a foreign structure from its
// generators.
func asGroup(s algebra.Structure) (*Group, error) {
	if g, ok := s.(*Group); ok {
		return g, nil
	}
	if s == nil {
		return nil, fmt.Errorf("%w: nil structure", algebra.ErrMalformedDescriptor)
	}
	g, err := Build(s.Generators())
	if err != nil {
		return nil, err
	}
	if g.degree < s.Degree() {
		g = NewGroup(s.Degree(), g.gens)
	}
	return g, nil
}
