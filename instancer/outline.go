package instancer

import (
	"encoding/binary"
	"math"

	"github.com/varfont/instancer/ot"
)

// OutlineResult holds the rewritten glyf/loca/hmtx/hhea/gvar table bytes
// produced by instancing a font's outlines and horizontal metrics (§4.2,
// §4.3 applied to HVAR).
type OutlineResult struct {
	GlyfData []byte
	LocaData []byte
	HmtxData []byte
	// GvarData is the re-encoded gvar table carrying every tuple variation
	// that survived clipping with some retained region, or nil if nothing
	// survived for any glyph (§4.2's "drop the whole table" case).
	GvarData []byte
	// NumHMetrics is the new value for hhea's numberOfHMetrics field: every
	// glyph gets its own (advance, lsb) record, matching this repo's
	// subsetting convention of a uniform per-glyph record.
	NumHMetrics int
}

// InstanceOutlines rewrites glyf/loca, hmtx, and gvar for every glyph under
// loc. Each glyph's tuple variations are clipped per §4.2: pinned axes fold
// into a scalar and are projected out of the region; ranged axes are
// intersected with their retained range via ClipAxis. A tuple whose region
// collapses entirely (every axis pinned or dropped) is merged into the
// static outline, via IUP where its point list is sparse; a tuple that
// keeps some retained region is re-encoded as residual gvar data, scaled by
// the clip scalar, so the caller's choice of any point inside the retained
// range still interpolates correctly against it.
//
// Every glyph's advance width and left side-bearing are recomputed from
// HVAR's per-glyph deltas (§4.2's "composite glyphs ... still have their
// advance and sidebearings recomputed" clause: HVAR already stores this
// per-glyph, independent of the glyph's own gvar outline data, so this
// single pass covers simple and composite glyphs alike).
func InstanceOutlines(glyf *ot.Glyf, loca *ot.Loca, hmtx *ot.Hmtx, gvar *ot.Gvar, hvar *ot.Hvar, numGlyphs int, glyphMap map[ot.GlyphID]ot.GlyphID, axisTagOrder []ot.Tag, loc NormalizedLocation) (*OutlineResult, error) {
	axisCount := len(axisTagOrder)
	pinned, ranged := splitLimits(axisTagOrder, loc)

	var hvarResult *ItemStoreResult
	if hvar != nil && hvar.HasData() {
		hvarResult = InstanceItemVariationStore(hvar.VarStore(), axisTagOrder, loc)
	}

	res := &OutlineResult{NumHMetrics: numGlyphs}
	res.HmtxData = make([]byte, numGlyphs*4)

	var glyfData []byte
	offsets := make([]uint32, numGlyphs+1)
	perGlyphGvar := make([][]byte, numGlyphs)
	anyResidualGvar := false

	for gid := 0; gid < numGlyphs; gid++ {
		offsets[gid] = uint32(len(glyfData))
		g := ot.GlyphID(gid)

		glyphBytes := glyf.GetGlyphBytes(g)
		if glyphBytes != nil && len(glyphBytes) >= 10 {
			numberOfContours := int16(glyphBytes[0])<<8 | int16(glyphBytes[1])
			if numberOfContours > 0 && gvar != nil && gvar.HasData() {
				points, endPts, err := ot.ParseSimpleGlyph(glyphBytes)
				if err == nil && len(points) > 0 {
					totalPoints := len(points) + 4
					origCoords := make([]ot.GlyphPoint, totalPoints)
					copy(origCoords, points)

					collapsed, residual := clipGlyphTupleVariations(gvar.GlyphTupleVariations(g, totalPoints), axisCount, pinned, ranged, totalPoints, origCoords, endPts)
					if collapsed != nil {
						xDeltas := collapsed.XDeltas[:len(points)]
						yDeltas := collapsed.YDeltas[:len(points)]
						glyphBytes = ot.InstanceSimpleGlyph(glyphBytes, xDeltas, yDeltas)
					}
					if len(residual) > 0 {
						perGlyphGvar[gid] = ot.EncodeGvarGlyphData(axisCount, residual)
						anyResidualGvar = true
					}
				}
			}
			if glyphMap != nil {
				glyphBytes = ot.RemapComposite(glyphBytes, glyphMap)
			}
			glyphBytes = ot.SetOverlapFlag(glyphBytes)
		}
		if glyphBytes != nil {
			glyfData = append(glyfData, glyphBytes...)
			for len(glyfData)%2 != 0 {
				glyfData = append(glyfData, 0)
			}
		}

		advance := int32(hmtx.GetAdvanceWidth(g))
		_, lsb := hmtx.GetMetrics(g)
		lsbv := int32(lsb)
		if hvarResult != nil {
			if d, ok := defaultDelta(hvarResult, hvar.AdvanceVarIndex(g)); ok {
				advance += int32(math.RoundToEven(d))
			}
			if idx, has := hvar.LsbVarIndex(g); has {
				if d, ok := defaultDelta(hvarResult, idx); ok {
					lsbv += int32(math.RoundToEven(d))
				}
			}
		}
		if advance < 0 {
			advance = 0
		}
		binary.BigEndian.PutUint16(res.HmtxData[gid*4:], uint16(advance))
		binary.BigEndian.PutUint16(res.HmtxData[gid*4+2:], uint16(int16(lsbv)))
	}
	offsets[numGlyphs] = uint32(len(glyfData))

	res.GlyfData = glyfData
	res.LocaData = ot.BuildLoca(offsets, false)
	if anyResidualGvar {
		res.GvarData = ot.EncodeGvar(axisCount, perGlyphGvar)
	}
	return res, nil
}

// clipGlyphTupleVariations applies §4.2 to one glyph's raw tuple variations:
// tuples whose region becomes fully empty are accumulated (with IUP where
// sparse) into a single collapsed delta set to bake into the static
// outline; tuples that keep some retained region are scaled by the residual
// clip scalar and returned for re-encoding.
func clipGlyphTupleVariations(tuples []ot.TupleVariation, axisCount int, pinned, ranged map[int]NormalizedLimit, numPoints int, origCoords []ot.GlyphPoint, endPts []uint16) (*ot.GlyphDeltas, []ot.TupleVariation) {
	var collapsed *ot.GlyphDeltas
	var residual []ot.TupleVariation

	for _, tv := range tuples {
		orig := Region{}
		for a := 0; a < axisCount; a++ {
			var peak, start, end int16
			if a < len(tv.Peak) {
				peak = tv.Peak[a]
			}
			if a < len(tv.Start) {
				start = tv.Start[a]
			}
			if a < len(tv.End) {
				end = tv.End[a]
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
			if collapsed == nil {
				collapsed = &ot.GlyphDeltas{XDeltas: make([]int16, numPoints), YDeltas: make([]int16, numPoints)}
			}
			ot.ApplyDeltasWithInterpolation(collapsed, tv.PointIndices, tv.XDeltas, tv.YDeltas, float32(scalar), numPoints, origCoords, endPts)
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

		xDeltas := make([]int16, len(tv.XDeltas))
		yDeltas := make([]int16, len(tv.YDeltas))
		for i, d := range tv.XDeltas {
			xDeltas[i] = clampInt16(math.RoundToEven(float64(d) * scalar))
		}
		for i, d := range tv.YDeltas {
			yDeltas[i] = clampInt16(math.RoundToEven(float64(d) * scalar))
		}

		residual = append(residual, ot.TupleVariation{
			Peak: peak, Start: start, End: end,
			PointIndices: tv.PointIndices,
			XDeltas:      xDeltas,
			YDeltas:      yDeltas,
		})
	}

	return collapsed, residual
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func defaultDelta(res *ItemStoreResult, varIdx uint32) (float64, bool) {
	if res == nil {
		return 0, false
	}
	d, ok := res.DefaultDeltas[varIdx]
	return d, ok
}
