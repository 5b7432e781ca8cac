package instancer

import "github.com/varfont/instancer/ot"

// AxisSupport is one axis's contribution to a Region: (start, peak, end) in
// normalized [-1, 1] coordinates (§3).
type AxisSupport struct {
	Start, Peak, End float64
}

// Region maps axis index (in the font's fvar axis order) to its support.
// An axis index with no entry is "absent" and contributes a scalar of 1.
type Region map[int]AxisSupport

// Scalar evaluates one axis's support at v (§3):
//   - 0 if v is outside [start, end], or the support's peak is 0;
//   - 1 at v == peak;
//   - linearly interpolated between the relevant endpoint and the peak
//     otherwise.
func (s AxisSupport) Scalar(v float64) float64 {
	if v < s.Start || v > s.End || s.Peak == 0 {
		if v == s.Peak {
			return 1
		}
		return 0
	}
	if v == s.Peak {
		return 1
	}
	if v < s.Peak {
		if s.Peak == s.Start {
			return 0
		}
		return (v - s.Start) / (s.Peak - s.Start)
	}
	if s.End == s.Peak {
		return 0
	}
	return (s.End - v) / (s.End - s.Peak)
}

// RegionScalar returns the region's total scalar at coords (indexed by axis
// index): the product of per-axis scalars, with absent axes contributing 1.
func RegionScalar(region Region, coords []float64) float64 {
	scalar := 1.0
	for axis, support := range region {
		v := 0.0
		if axis < len(coords) {
			v = coords[axis]
		}
		scalar *= support.Scalar(v)
		if scalar == 0 {
			return 0
		}
	}
	return scalar
}

// ClipResult is the outcome of restricting one axis of a Region to a pin or
// limit (§4.2 step 1-2).
type ClipResult struct {
	// Scalar is the support's value at a pin, or 1 for axes not pinned.
	Scalar float64
	// Support is the rewritten support for a limited (not pinned) axis.
	Support AxisSupport
	// Dropped is true when the intersection with a limited axis's range is
	// empty: the whole tuple variation must be discarded.
	Dropped bool
}

// ClipAxis restricts one axis's support under a NormalizedLimit (§4.2 steps
// 1-2). For a pin, it returns the axis's scalar contribution (to be folded
// into the tuple's delta scale) and removes the axis from the region. For a
// limit, it intersects the support with [lo, hi] and re-expresses it in the
// limited range's own normalized coordinates (so that the limited axis's new
// domain is again [-1, 1] after the caller renormalizes further upstream;
// here we keep it in the original -1..1 space and let axis/fvar rewriting
// (§4.7) handle final domain renormalization).
func ClipAxis(support AxisSupport, lim NormalizedLimit) ClipResult {
	if !lim.Range {
		return ClipResult{Scalar: support.Scalar(lim.Pin)}
	}

	lo, hi := lim.Lo, lim.Hi
	newStart := clampF(support.Start, lo, hi)
	newEnd := clampF(support.End, lo, hi)
	newPeak := clampF(support.Peak, lo, hi)

	if newStart > newEnd {
		return ClipResult{Dropped: true}
	}

	// If clipping moved the peak off its original location but it still has
	// non-zero support at the new boundary, re-anchor the peak there and
	// rescale by the residual scalar at that boundary (§4.2 step 2 special
	// case).
	residual := 1.0
	if newPeak != support.Peak {
		residual = support.Scalar(newPeak)
	}

	if newStart == 0 && newPeak == 0 && newEnd == 0 && !(support.Start == 0 && support.Peak == 0 && support.End == 0) {
		// Axis dropped entirely out of the retained range.
		return ClipResult{Dropped: residual == 0}
	}

	return ClipResult{
		Support: AxisSupport{Start: newStart, Peak: newPeak, End: newEnd},
		Scalar:  residual,
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clipTupleRegion applies §4.2 steps 1-2 to one tuple variation's region:
// pinned axes fold their scalar contribution and drop out of the region;
// ranged axes are intersected with their retained range via ClipAxis.
// dropped reports that a ranged axis's intersection came up empty, meaning
// the whole tuple must be discarded (§4.2 step 2). This is the shared
// building block behind item-variation-store, gvar, and cvar instancing.
func clipTupleRegion(orig Region, pinned, ranged map[int]NormalizedLimit) (scalar float64, newReg Region, dropped bool) {
	scalar = 1.0
	newReg = Region{}
	for axis, support := range orig {
		if lim, ok := pinned[axis]; ok {
			scalar *= ClipAxis(support, lim).Scalar
			continue
		}
		if lim, ok := ranged[axis]; ok {
			cr := ClipAxis(support, lim)
			if cr.Dropped {
				return 0, nil, true
			}
			scalar *= cr.Scalar
			if !(cr.Support.Start == 0 && cr.Support.Peak == 0 && cr.Support.End == 0) {
				newReg[axis] = cr.Support
			}
			continue
		}
		newReg[axis] = support
	}
	return scalar, newReg, false
}

// splitLimits partitions a normalized location into pinned and ranged axes,
// keyed by axis index in axisTagOrder: region math runs over axis index, not
// tag, since that's how TupleVariationHeader/VarRegion coordinates are
// ordered in the font.
func splitLimits(axisTagOrder []ot.Tag, loc NormalizedLocation) (pinned, ranged map[int]NormalizedLimit) {
	pinned = map[int]NormalizedLimit{}
	ranged = map[int]NormalizedLimit{}
	axisIndexOf := make(map[ot.Tag]int, len(axisTagOrder))
	for i, t := range axisTagOrder {
		axisIndexOf[t] = i
	}
	for tag, lim := range loc {
		idx, ok := axisIndexOf[tag]
		if !ok {
			continue
		}
		if lim.Range {
			ranged[idx] = lim
		} else {
			pinned[idx] = lim
		}
	}
	return pinned, ranged
}
