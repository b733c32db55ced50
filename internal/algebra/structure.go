package algebra

import (
	"errors"
	"math/big"
)

var (
	ErrTooLarge     = errors.New("structure too large to enumerate")
	ErrSearchBudget = errors.New("isomorphism search budget exhausted")
)

// Structure is an opaque, immutable handle to a finitely generated group.
// Implementations must never change what Generators returns after
// construction.
type Structure interface {
	// Generators returns the canonical generating set in a stable order.
	// The returned slice is a copy.
	Generators() []Descriptor
	// Order returns the number of elements of the structure.
	Order() *big.Int
	// Degree returns the size of the domain the structure acts on.
	Degree() int
}

// Provider is the capability set the evolutionary core and fitness
// functions call into. Operations are pure: the same inputs always give the
// same outputs, so a returned error signals a logic error and is never
// retried.
type Provider interface {
	// Build canonicalizes and deduplicates gens into a structure.
	Build(gens []Descriptor) (Structure, error)
	DirectProduct(a, b Structure) (Structure, error)

	ElementOrder(d Descriptor) (*big.Int, error)
	// Multiply composes left to right: the result maps i to y(x(i)).
	Multiply(x, y Descriptor) (Descriptor, error)
	Inverse(d Descriptor) (Descriptor, error)
	Power(d Descriptor, k *big.Int) (Descriptor, error)

	Isomorphic(a, b Structure) (bool, error)
	ConjugacyClassCount(s Structure) (int, error)
	IsAbelian(s Structure) (bool, error)
	// Describe returns a human readable summary for reports only.
	Describe(s Structure) string
}
