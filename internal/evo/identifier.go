package evo

import (
	"fmt"

	"groupevo/internal/algebra"
)

// StructureIdentifier assigns a coarse class key to an individual. Reports
// count distinct keys as population diversity.
type StructureIdentifier interface {
	Name() string
	Identify(s algebra.Structure) string
}

// OrderIdentifier keys individuals by group order alone.
type OrderIdentifier struct{}

func (OrderIdentifier) Name() string {
	return "order"
}

func (OrderIdentifier) Identify(s algebra.Structure) string {
	return s.Order().String()
}

// ShapeIdentifier keys individuals by order, degree and generator count.
type ShapeIdentifier struct{}

func (ShapeIdentifier) Name() string {
	return "shape"
}

func (ShapeIdentifier) Identify(s algebra.Structure) string {
	return fmt.Sprintf("o:%s-d:%d-g:%d", s.Order(), s.Degree(), len(s.Generators()))
}

func IdentifierFromName(name string) (StructureIdentifier, error) {
	switch name {
	case "", "order":
		return OrderIdentifier{}, nil
	case "shape":
		return ShapeIdentifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported structure identifier: %s", name)
	}
}
