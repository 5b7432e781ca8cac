package instancer

import (
	"fmt"
	"math"

	"github.com/varfont/instancer/ot"
)

// AxisLimit is one axis's entry in a Location: either a scalar pin or a
// user-space sub-range to retain (§3).
type AxisLimit struct {
	Range bool
	Pin   float64
	Lo    float64
	Hi    float64
}

// Pin creates a scalar pin limit.
func Pin(v float64) AxisLimit { return AxisLimit{Pin: v} }

// Limit creates a sub-range limit.
func Limit(lo, hi float64) AxisLimit { return AxisLimit{Range: true, Lo: lo, Hi: hi} }

// Location is a partial mapping from axis tag to a pin or a limit. An axis
// absent from the map is kept fully variable.
type Location map[ot.Tag]AxisLimit

// NormalizedLimit is a Location entry after §4.1 normalization: user-space
// values have been mapped through the axis domain and the avar segment map
// into normalized [-1, 1] coordinates.
type NormalizedLimit struct {
	Range bool
	Pin   float64
	Lo    float64
	Hi    float64
}

// NormalizedLocation maps axis tag to its normalized limit, for axes named
// in the caller's Location only.
type NormalizedLocation map[ot.Tag]NormalizedLimit

// Normalize maps a user-space Location into normalized coordinates against
// the font's fvar axis domains and (if present) avar segment maps (§4.1).
func Normalize(fvar *ot.Fvar, avar *ot.Avar, loc Location) (NormalizedLocation, error) {
	out := make(NormalizedLocation, len(loc))
	for tag, lim := range loc {
		axis, ok := fvar.FindAxis(tag)
		if !ok {
			return nil, fmt.Errorf("%s: %w", tag.String(), ErrUnknownAxis)
		}

		if !lim.Range {
			v := lim.Pin
			if v < float64(axis.MinValue)-1e-6 || v > float64(axis.MaxValue)+1e-6 {
				return nil, fmt.Errorf("%s=%v: %w", tag.String(), v, ErrOutOfRange)
			}
			out[tag] = NormalizedLimit{Pin: normalizeScalar(axis, avar, v)}
			continue
		}

		if lim.Lo < float64(axis.MinValue)-1e-6 || lim.Hi > float64(axis.MaxValue)+1e-6 || lim.Lo > lim.Hi {
			return nil, fmt.Errorf("%s=%v:%v: %w", tag.String(), lim.Lo, lim.Hi, ErrOutOfRange)
		}

		nLo := normalizeScalar(axis, avar, lim.Lo)
		nHi := normalizeScalar(axis, avar, lim.Hi)
		// The default (normalized 0) must remain inside the retained range.
		if nLo > 0 {
			nLo = 0
		}
		if nHi < 0 {
			nHi = 0
		}
		out[tag] = NormalizedLimit{Range: true, Lo: nLo, Hi: nHi}
	}
	return out, nil
}

// AxisIndex returns the fvar axis index for tag, the boolean reporting
// whether it exists.
func AxisIndex(fvar *ot.Fvar, tag ot.Tag) (int, bool) {
	for _, info := range fvar.AxisInfos() {
		if info.Tag == tag {
			return info.Index, true
		}
	}
	return 0, false
}

func normalizeScalar(axis ot.AxisInfo, avar *ot.Avar, v float64) float64 {
	min, def, max := float64(axis.MinValue), float64(axis.DefaultValue), float64(axis.MaxValue)
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}

	var n float64
	switch {
	case v == def:
		n = 0
	case v < def:
		if def == min {
			n = 0
		} else {
			n = (v - def) / (def - min)
		}
	default:
		if max == def {
			n = 0
		} else {
			n = (v - def) / (max - def)
		}
	}

	if avar != nil && avar.HasData() {
		f2d := avar.MapValue(axis.Index, floatToF2DOT14(n))
		n = f2dot14ToFloat(f2d)
	}
	return n
}

func floatToF2DOT14(v float64) int {
	return int(math.Round(v * 16384.0))
}

func f2dot14ToFloat(v int) float64 {
	return float64(v) / 16384.0
}
