package instancer

import (
	"math"

	"github.com/varfont/instancer/ot"
)

// CvtResult holds the rewritten cvt and cvar table bytes produced by
// instancing a font's control values (§4.2 applied to cvar).
type CvtResult struct {
	CvtData []byte
	// CvarData is the re-encoded cvar table, or nil if every tuple
	// collapsed into CvtData (or there was no cvar data to begin with).
	CvarData []byte
}

// InstanceCvt applies §4.2's clip-and-merge algorithm to cvar's tuple
// variations over the cvt array: pinned axes fold into a scalar and drop
// out of the region; ranged axes are intersected with their retained range.
// A tuple whose region collapses entirely is added into the static cvt
// values; a tuple that keeps some retained region is scaled by the residual
// clip scalar and re-encoded into CvarData.
func InstanceCvt(cvt *ot.Cvt, cvar *ot.Cvar, axisTagOrder []ot.Tag, loc NormalizedLocation) *CvtResult {
	if cvt == nil || cvt.Count() == 0 {
		return nil
	}
	values := cvt.Values()
	res := &CvtResult{}

	if cvar != nil && cvar.HasData() {
		axisCount := len(axisTagOrder)
		pinned, ranged := splitLimits(axisTagOrder, loc)

		deltas := make([]float64, len(values))
		var residual []ot.CvarTuple

		for _, tup := range cvar.Tuples(len(values)) {
			orig := Region{}
			for a := 0; a < axisCount; a++ {
				var peak, start, end int16
				if a < len(tup.Peak) {
					peak = tup.Peak[a]
				}
				if a < len(tup.Start) {
					start = tup.Start[a]
				}
				if a < len(tup.End) {
					end = tup.End[a]
				}
				if peak != 0 || start != 0 || end != 0 {
					orig[a] = AxisSupport{Start: f2dot14ToFloat(int(start)), Peak: f2dot14ToFloat(int(peak)), End: f2dot14ToFloat(int(end))}
				}
			}

			scalar, newReg, dropped := clipTupleRegion(orig, pinned, ranged)
			if dropped || scalar == 0 {
				continue
			}

			if len(newReg) == 0 {
				if len(tup.Indices) == 0 {
					for i := range deltas {
						if i < len(tup.Deltas) {
							deltas[i] += float64(tup.Deltas[i]) * scalar
						}
					}
				} else {
					for i, idx := range tup.Indices {
						if idx < 0 || idx >= len(deltas) || i >= len(tup.Deltas) {
							continue
						}
						deltas[idx] += float64(tup.Deltas[i]) * scalar
					}
				}
				continue
			}

			peak, start, end := make([]int16, axisCount), make([]int16, axisCount), make([]int16, axisCount)
			for a := 0; a < axisCount; a++ {
				if s, ok := newReg[a]; ok {
					peak[a] = int16(floatToF2DOT14(s.Peak))
					start[a] = int16(floatToF2DOT14(s.Start))
					end[a] = int16(floatToF2DOT14(s.End))
				}
			}
			scaledDeltas := make([]int16, len(tup.Deltas))
			for i, d := range tup.Deltas {
				scaledDeltas[i] = clampInt16(math.RoundToEven(float64(d) * scalar))
			}
			residual = append(residual, ot.CvarTuple{Peak: peak, Start: start, End: end, Indices: tup.Indices, Deltas: scaledDeltas})
		}

		for i, d := range deltas {
			v := int32(values[i]) + int32(math.RoundToEven(d))
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			values[i] = int16(v)
		}

		if len(residual) > 0 {
			res.CvarData = ot.EncodeCvar(axisCount, residual)
		}
	}

	res.CvtData = ot.EncodeCvt(values)
	return res
}
