package instancer

import (
	"math"

	"github.com/varfont/instancer/ot"
)

// ItemStoreResult is the outcome of instancing an ItemVariationStore (§4.3).
type ItemStoreResult struct {
	// Bytes is the re-encoded store, or nil when every block collapsed.
	Bytes []byte
	// Empty reports that no residual variation data remains at all.
	Empty bool
	// DefaultDeltas maps an original 32-bit variation index to the portion
	// of its delta that became unconditional and must be folded into the
	// static value the caller already holds.
	DefaultDeltas map[uint32]float64
	// Residual reports, for variation indices that still carry variable
	// data after instancing, their new index into Bytes. An index can be in
	// both maps. An index absent from both maps has no delta left: it
	// carried no data, or every column it had was discarded or scaled to 0.
	Residual map[uint32]uint32
}

// itemStoreColumn is one post-clip residual region together with the scaled
// delta contributions (keyed by original variation index) that collapsed
// onto it from one or more original VarData columns.
type itemStoreColumn struct {
	region Region
	perRow map[uint32]float64
}

// InstanceItemVariationStore applies the §4.2 per-tuple algorithm to every
// column of every VarData block in store, via the §4.4 adapter (decode each
// block's columns as tuple variations, clip/scale/merge them, re-encode the
// surviving columns into a fresh, de-duplicated region list).
func InstanceItemVariationStore(store *ot.ItemVariationStore, axisTagOrder []ot.Tag, loc NormalizedLocation) *ItemStoreResult {
	res := &ItemStoreResult{DefaultDeltas: map[uint32]float64{}, Residual: map[uint32]uint32{}}
	if store == nil {
		res.Empty = true
		return res
	}

	axisCount := store.Regions().AxisCount()
	pinned, ranged := splitLimits(axisTagOrder, loc)

	var cols []itemStoreColumn
	seen := map[string]int{}
	anyResidual := false

	for b := 0; b < store.DataSetCount(); b++ {
		regionIndices, deltas, itemCount, ok := store.DecodeVarData(b)
		if !ok {
			continue
		}
		for col, regionIdx := range regionIndices {
			axisRegions := store.Regions().RegionAxes(regionIdx)
			orig := make(Region, axisCount)
			for a, ar := range axisRegions {
				if ar.Peak != 0 || ar.Start != 0 || ar.End != 0 {
					orig[a] = AxisSupport{
						Start: f2dot14ToFloat(int(ar.Start)),
						Peak:  f2dot14ToFloat(int(ar.Peak)),
						End:   f2dot14ToFloat(int(ar.End)),
					}
				}
			}

			scalar, newReg, dropped := clipTupleRegion(orig, pinned, ranged)

			if dropped || scalar == 0 {
				continue
			}

			for item := 0; item < itemCount; item++ {
				varIdx := uint32(b)<<16 | uint32(item)
				var v int32
				if col < len(deltas[item]) {
					v = deltas[item][col]
				}
				scaled := float64(v) * scalar

				if len(newReg) == 0 {
					res.DefaultDeltas[varIdx] += scaled
					continue
				}

				key := regionDedupKey(newReg, axisCount)
				idx, exists := seen[key]
				if !exists {
					idx = len(cols)
					seen[key] = idx
					cols = append(cols, itemStoreColumn{region: newReg, perRow: map[uint32]float64{}})
				}
				cols[idx].perRow[varIdx] += scaled
				anyResidual = true
			}
		}
	}

	if !anyResidual {
		res.Empty = true
		for varIdx := range res.DefaultDeltas {
			res.DefaultDeltas[varIdx] = math.RoundToEven(res.DefaultDeltas[varIdx])
		}
		return res
	}

	byBlock := map[int][]int{}
	for ci, c := range cols {
		blocks := map[int]bool{}
		for varIdx := range c.perRow {
			blocks[int(varIdx>>16)] = true
		}
		for bl := range blocks {
			byBlock[bl] = append(byBlock[bl], ci)
		}
	}

	var regionList [][]AxisSupport
	var varDataBlocks [][]byte

	for bl, colIdxs := range byBlock {
		itemCount := 0
		for _, ci := range colIdxs {
			for varIdx := range cols[ci].perRow {
				if int(varIdx>>16) != bl {
					continue
				}
				if row := int(varIdx & 0xFFFF); row+1 > itemCount {
					itemCount = row + 1
				}
			}
		}

		deltaMatrix := make([][]int32, itemCount)
		for i := range deltaMatrix {
			deltaMatrix[i] = make([]int32, len(colIdxs))
		}
		regionIndices := make([]int, len(colIdxs))
		for j, ci := range colIdxs {
			regionIndices[j] = registerRegion(&regionList, cols[ci].region, axisCount)
			for varIdx, delta := range cols[ci].perRow {
				if int(varIdx>>16) != bl {
					continue
				}
				row := int(varIdx & 0xFFFF)
				rounded := int32(math.RoundToEven(delta))
				deltaMatrix[row][j] = rounded
				res.Residual[varIdx] = uint32(len(varDataBlocks))<<16 | uint32(row)
			}
		}
		varDataBlocks = append(varDataBlocks, ot.EncodeVarData(regionIndices, deltaMatrix))
	}

	axisRegions := make([][]ot.AxisRegion, len(regionList))
	for i, r := range regionList {
		full := make([]ot.AxisRegion, axisCount)
		for a := 0; a < axisCount; a++ {
			full[a] = ot.AxisRegion{
				Start: int16(floatToF2DOT14(r[a].Start)),
				Peak:  int16(floatToF2DOT14(r[a].Peak)),
				End:   int16(floatToF2DOT14(r[a].End)),
			}
		}
		axisRegions[i] = full
	}
	res.Bytes = ot.EncodeItemVariationStore(ot.EncodeVarRegionList(axisCount, axisRegions), varDataBlocks)

	for varIdx := range res.DefaultDeltas {
		res.DefaultDeltas[varIdx] = math.RoundToEven(res.DefaultDeltas[varIdx])
	}

	return res
}

func registerRegion(list *[][]AxisSupport, r Region, axisCount int) int {
	full := make([]AxisSupport, axisCount)
	for a := 0; a < axisCount; a++ {
		full[a] = r[a]
	}
	for i, existing := range *list {
		if regionsEqual(existing, full) {
			return i
		}
	}
	*list = append(*list, full)
	return len(*list) - 1
}

func regionsEqual(a, b []AxisSupport) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func regionDedupKey(r Region, axisCount int) string {
	buf := make([]byte, 0, axisCount*25)
	for axis := 0; axis < axisCount; axis++ {
		s, ok := r[axis]
		if !ok {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = appendF(buf, s.Start)
		buf = appendF(buf, s.Peak)
		buf = appendF(buf, s.End)
	}
	return string(buf)
}

func appendF(buf []byte, v float64) []byte {
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(bits>>(8*i)))
	}
	return buf
}
