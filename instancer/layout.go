package instancer

import (
	"math"

	"github.com/varfont/instancer/ot"
)

// GDEFResult is the outcome of instancing a GDEF table (§4.5).
type GDEFResult struct {
	// Bytes is the rewritten table. Nil means the table is unchanged and the
	// caller should keep the original bytes as-is.
	Bytes []byte
	// StoreRes is the instanced item-variation-store result, shared with
	// InstanceGPOS: GPOS's anchor and value-record device tables reference
	// this same GDEF store, so both tables must agree on the rewritten row
	// indices. Nil only if gdef is nil; a gdef with no item variation store
	// gets an empty result.
	StoreRes *ItemStoreResult
}

// InstanceGDEF applies §4.3 to the table's layout item-variation store and
// resolves every ligature caret position under loc. Format-3 carets whose
// variation index fully collapsed are folded into Coordinate and downgraded
// to format 1; carets that retain residual variation keep format 3, pointing
// at the re-encoded store.
func InstanceGDEF(gdef *ot.GDEF, axisTagOrder []ot.Tag, loc NormalizedLocation) *GDEFResult {
	if gdef == nil {
		return &GDEFResult{}
	}

	storeRes := InstanceItemVariationStore(gdef.ItemVarStore(), axisTagOrder, loc)

	changed := false
	var newStoreBytes []byte
	if gdef.ItemVarStore() != nil {
		changed = true
		if !storeRes.Empty {
			newStoreBytes = storeRes.Bytes
		}
	}

	ligCarets := map[ot.GlyphID][]ot.CaretValue{}
	if gdef.HasLigCaretList() {
		for _, g := range gdef.LigCaretCoverageGlyphs() {
			orig := gdef.GetLigCarets(g)
			rewritten := make([]ot.CaretValue, len(orig))
			for i, cv := range orig {
				rewritten[i] = cv
				if cv.Format() != 3 {
					continue
				}
				idx := uint32(cv.DeviceVarIndex())
				coord := cv.Coordinate()
				d, hasDefault := storeRes.DefaultDeltas[idx]
				if hasDefault {
					coord += int16(math.RoundToEven(d))
					changed = true
				}
				if newIdx, ok := storeRes.Residual[idx]; ok {
					changed = true
					rewritten[i] = ot.NewCaretValueFormat3(coord, ot.VariationIndex(newIdx))
					continue
				}
				if hasDefault {
					rewritten[i] = ot.NewCaretValueFormat1(coord)
				}
			}
			ligCarets[g] = rewritten
		}
	}

	if !changed {
		return &GDEFResult{StoreRes: storeRes}
	}
	return &GDEFResult{Bytes: ot.EncodeGDEF(gdef, ligCarets, newStoreBytes), StoreRes: storeRes}
}
