package algebra

import (
	"errors"
	"math/rand"
	"sort"
	"testing"
)

func TestParseDescriptorRoundTrip(t *testing.T) {
	d, err := ParseDescriptor(" (1, 2,3)(4)(5,6) ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := d.String(); got != "(1,2,3)(4)(5,6)" {
		t.Fatalf("unexpected string: %s", got)
	}
	if got := d.Compact(); got != "(1,2,3)(5,6)" {
		t.Fatalf("unexpected compact form: %s", got)
	}
	if d.MaxPoint() != 6 {
		t.Fatalf("expected max point 6, got %d", d.MaxPoint())
	}
	if d.IsIdentity() {
		t.Fatal("expected non-identity descriptor")
	}
}

func TestParseDescriptorIdentityForms(t *testing.T) {
	for _, text := range []string{"", "()", "(1)(2)(3)"} {
		d, err := ParseDescriptor(text)
		if err != nil {
			t.Fatalf("parse %q: %v", text, err)
		}
		if !d.IsIdentity() {
			t.Fatalf("expected %q to be the identity", text)
		}
	}
}

func TestParseDescriptorRejectsMalformed(t *testing.T) {
	for _, text := range []string{"(1,2", "1,2)", "(0,1)", "(1,2)(2,3)", "(a,b)", "(-1)"} {
		if _, err := ParseDescriptor(text); !errors.Is(err, ErrMalformedDescriptor) {
			t.Fatalf("expected malformed descriptor error for %q, got %v", text, err)
		}
	}
}

func TestRandomDescriptorPartitionsDomain(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n <= 9; n++ {
		for trial := 0; trial < 20; trial++ {
			d := RandomDescriptor(rng, n)
			if err := d.Validate(); err != nil {
				t.Fatalf("n=%d: invalid descriptor %s: %v", n, d, err)
			}
			var points []int
			for _, cycle := range d {
				points = append(points, cycle...)
			}
			sort.Ints(points)
			if len(points) != n {
				t.Fatalf("n=%d: expected %d points, got %v", n, n, points)
			}
			for i, p := range points {
				if p != i+1 {
					t.Fatalf("n=%d: expected points 1..n, got %v", n, points)
				}
			}
		}
	}
}

func TestRandomDescriptorEmptyDomain(t *testing.T) {
	if d := RandomDescriptor(rand.New(rand.NewSource(1)), 0); len(d) != 0 {
		t.Fatalf("expected empty descriptor, got %s", d)
	}
}
