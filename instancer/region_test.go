package instancer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAxisSupportScalar(t *testing.T) {
	s := AxisSupport{Start: 0, Peak: 1, End: 1}
	require.Equal(t, 1.0, s.Scalar(1))
	require.Equal(t, 0.0, s.Scalar(0))
	require.Equal(t, 0.5, s.Scalar(0.5))
	require.Equal(t, 0.0, s.Scalar(-1))

	neg := AxisSupport{Start: -1, Peak: -1, End: 0}
	require.Equal(t, 1.0, neg.Scalar(-1))
	require.Equal(t, 0.5, neg.Scalar(-0.5))
	require.Equal(t, 0.0, neg.Scalar(0))
}

func TestRegionScalarProductAcrossAxes(t *testing.T) {
	region := Region{
		0: {Start: 0, Peak: 1, End: 1},
		1: {Start: -1, Peak: -1, End: 0},
	}
	// axis 0 at its peak (1.0) and axis 1 at its peak (-1.0): full scalar.
	require.Equal(t, 1.0, RegionScalar(region, []float64{1, -1}))
	// axis 0 halfway, axis 1 at peak: 0.5 * 1.0.
	require.Equal(t, 0.5, RegionScalar(region, []float64{0.5, -1}))
	// axis 1 outside its support: whole region scalar collapses to 0.
	require.Equal(t, 0.0, RegionScalar(region, []float64{1, 1}))
}

func TestClipAxisPin(t *testing.T) {
	support := AxisSupport{Start: 0, Peak: 1, End: 1}
	res := ClipAxis(support, NormalizedLimit{Pin: 1})
	require.Equal(t, 1.0, res.Scalar)
	require.False(t, res.Dropped)

	res = ClipAxis(support, NormalizedLimit{Pin: -1})
	require.Equal(t, 0.0, res.Scalar)
}

func TestClipAxisRangeDropsDisjointSupport(t *testing.T) {
	support := AxisSupport{Start: 0, Peak: 1, End: 1}
	// Retained range [-1, 0] never overlaps this support's (0, 1] interior.
	res := ClipAxis(support, NormalizedLimit{Range: true, Lo: -1, Hi: 0})
	require.True(t, res.Dropped)
}

func TestClipAxisRangeKeepsOverlappingSupport(t *testing.T) {
	support := AxisSupport{Start: 0, Peak: 1, End: 1}
	res := ClipAxis(support, NormalizedLimit{Range: true, Lo: 0, Hi: 0.5})
	require.False(t, res.Dropped)
	require.Equal(t, 0.0, res.Support.Start)
	require.Equal(t, 0.5, res.Support.Peak)
	require.Equal(t, 0.5, res.Support.End)
}
