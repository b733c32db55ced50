package fitness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"groupevo/internal/algebra"
	"groupevo/internal/perm"
)

func TestClassTargetScores(t *testing.T) {
	provider := perm.NewProvider()
	target, err := NewClassTarget(provider, 15, true, []string{"D27"})
	require.NoError(t, err)

	cases := []struct {
		name  string
		group algebra.Structure
		want  float64
	}{
		{"forbidden D27", perm.Dihedral(27), 0},
		{"abelian C5", perm.Cyclic(5), 0},
		{"trivial", perm.NewGroup(0, nil), 0},
		{"D24 hits the target", perm.Dihedral(24), Sigmoid(1)},
		{"S3 is far off", perm.Symmetric(3), Sigmoid(1 - 0.64)},
	}
	for _, tc := range cases {
		got, err := target.Score(tc.group)
		require.NoError(t, err, tc.name)
		require.InDelta(t, tc.want, got, 1e-12, tc.name)
	}
}

func TestClassTargetTooLarge(t *testing.T) {
	provider := perm.NewProvider()
	target, err := NewClassTarget(provider, 15, true, []string{"D27"})
	require.NoError(t, err)

	got, err := target.Score(perm.Symmetric(9))
	require.NoError(t, err)
	require.True(t, math.IsInf(got, -1))

	target.MaxDegree = 10
	got, err = target.Score(perm.Dihedral(12))
	require.NoError(t, err)
	require.True(t, math.IsInf(got, -1))
}

func TestNewClassTargetValidation(t *testing.T) {
	provider := perm.NewProvider()
	_, err := NewClassTarget(nil, 15, true, nil)
	require.Error(t, err)
	_, err = NewClassTarget(provider, 0, true, nil)
	require.Error(t, err)
	_, err = NewClassTarget(provider, 15, true, []string{"Q8"})
	require.ErrorIs(t, err, perm.ErrUnknownGroup)
}
