package instancer

import (
	"encoding/binary"
	"math"

	"github.com/varfont/instancer/ot"
)

// InstanceGPOS rewrites every Anchor and ValueRecord device/VariationIndex
// reference reachable from a GPOS table's lookup list (§4.5). storeRes is
// the same instanced item-variation-store result InstanceGDEF already
// produced for the font's GDEF table: GPOS's device tables reference that
// one store, so both tables must agree on the rewritten row indices.
//
// Patching is resize-free and leaf-node: it never moves a lookup, subtable,
// coverage, or class definition, only the fixed-size ValueRecord/Anchor
// fields and the 6-byte device/VariationIndex tables they point at. A
// format-3 Anchor whose X and Y both fully resolve to a static default is
// downgraded to format 1 in place; its now-unused trailing bytes are left
// on disk but unread by any format-1 reader. A ValueRecord's device field
// keeps its own offset; only the table at the far end is rewritten, to
// either a zero-valued inert Device table or a VariationIndex table
// repointed at the residual row storeRes.Residual assigns it.
func InstanceGPOS(gposData []byte, storeRes *ItemStoreResult) []byte {
	if storeRes == nil || len(gposData) == 0 {
		return nil
	}
	gpos, err := ot.ParseGPOS(gposData)
	if err != nil {
		return nil
	}

	out := append([]byte(nil), gposData...)
	changed := false

	for i := 0; i < gpos.NumLookups(); i++ {
		lookup := gpos.GetLookup(i)
		if lookup == nil {
			continue
		}
		for _, st := range lookup.Subtables() {
			if patchGPOSSubtable(out, st, storeRes) {
				changed = true
			}
		}
	}

	if !changed {
		return nil
	}
	return out
}

func patchGPOSSubtable(data []byte, st ot.GPOSSubtable, storeRes *ItemStoreResult) bool {
	changed := false
	switch sub := st.(type) {
	case *ot.SinglePos:
		switch sub.Format() {
		case 1:
			vr := sub.ValueRecord()
			changed = patchValueRecord(data, &vr, storeRes) || changed
		case 2:
			for _, vr := range sub.ValueRecords() {
				vr := vr
				changed = patchValueRecord(data, &vr, storeRes) || changed
			}
		}

	case *ot.PairPos:
		for _, set := range sub.PairSets() {
			for _, rec := range set {
				r1, r2 := rec.Value1, rec.Value2
				changed = patchValueRecord(data, &r1, storeRes) || changed
				changed = patchValueRecord(data, &r2, storeRes) || changed
			}
		}
		for _, row := range sub.ClassMatrix() {
			for _, rec := range row {
				r1, r2 := rec.Value1, rec.Value2
				changed = patchValueRecord(data, &r1, storeRes) || changed
				changed = patchValueRecord(data, &r2, storeRes) || changed
			}
		}

	case *ot.CursivePos:
		for _, rec := range sub.EntryExitRecords() {
			changed = patchAnchor(data, rec.EntryAnchor, storeRes) || changed
			changed = patchAnchor(data, rec.ExitAnchor, storeRes) || changed
		}

	case *ot.MarkBasePos:
		changed = patchMarkArray(data, sub.MarkArray(), storeRes) || changed
		if ba := sub.BaseArray(); ba != nil {
			for _, row := range ba.Anchors {
				for _, a := range row {
					changed = patchAnchor(data, a, storeRes) || changed
				}
			}
		}

	case *ot.MarkLigPos:
		changed = patchMarkArray(data, sub.MarkArray(), storeRes) || changed
		if la := sub.LigatureArray(); la != nil {
			for _, att := range la.Attachments {
				if att == nil {
					continue
				}
				for _, row := range att.Anchors {
					for _, a := range row {
						changed = patchAnchor(data, a, storeRes) || changed
					}
				}
			}
		}

	case *ot.MarkMarkPos:
		changed = patchMarkArray(data, sub.Mark1Array(), storeRes) || changed
		if ba := sub.Mark2Array(); ba != nil {
			for _, row := range ba.Anchors {
				for _, a := range row {
					changed = patchAnchor(data, a, storeRes) || changed
				}
			}
		}
	}
	return changed
}

func patchMarkArray(data []byte, ma *ot.MarkArray, storeRes *ItemStoreResult) bool {
	if ma == nil {
		return false
	}
	changed := false
	for _, rec := range ma.Records {
		changed = patchAnchor(data, rec.Anchor, storeRes) || changed
	}
	return changed
}

// patchValueRecord patches the (up to) four device-table-carrying fields of
// a single ValueRecord, using the absolute byte offsets parseValueRecord
// recorded for each field.
func patchValueRecord(data []byte, vr *ot.ValueRecord, storeRes *ItemStoreResult) bool {
	changed := false
	changed = patchValueField(data, vr.XPlacement, vr.XPlaDeviceVarIdx, vr.XPlaRef.ValueOff, vr.XPlaRef.DevOff, storeRes) || changed
	changed = patchValueField(data, vr.YPlacement, vr.YPlaDeviceVarIdx, vr.YPlaRef.ValueOff, vr.YPlaRef.DevOff, storeRes) || changed
	changed = patchValueField(data, vr.XAdvance, vr.XAdvDeviceVarIdx, vr.XAdvRef.ValueOff, vr.XAdvRef.DevOff, storeRes) || changed
	changed = patchValueField(data, vr.YAdvance, vr.YAdvDeviceVarIdx, vr.YAdvRef.ValueOff, vr.YAdvRef.DevOff, storeRes) || changed
	return changed
}

// patchValueField folds a resolved default delta into the field's static
// value slot and either neutralizes or repoints the device table it
// references, depending on whether storeRes still carries residual
// variation for varIdx.
func patchValueField(data []byte, baseValue int16, varIdx ot.VariationIndex, valueOff, devOff int, storeRes *ItemStoreResult) bool {
	if varIdx == ot.NoVariationIndex {
		return false
	}
	changed := false
	newValue := baseValue
	if d, ok := storeRes.DefaultDeltas[uint32(varIdx)]; ok && d != 0 {
		newValue = clampInt16(math.RoundToEven(float64(baseValue) + d))
		changed = true
	}
	if changed && valueOff >= 0 {
		binary.BigEndian.PutUint16(data[valueOff:], uint16(newValue))
	}
	if newIdx, ok := storeRes.Residual[uint32(varIdx)]; ok {
		if devOff >= 0 {
			repointVariationIndexTable(data, devOff, newIdx)
			changed = true
		}
	} else if devOff >= 0 {
		neutralizeDeviceTable(data, devOff)
		changed = true
	}
	return changed
}

// patchAnchor folds each resolved default delta of a format-3 Anchor into
// its X/Y and either neutralizes or repoints its device tables. If neither
// coordinate keeps residual variation, the anchor is downgraded to format 1
// in place.
func patchAnchor(data []byte, a *ot.Anchor, storeRes *ItemStoreResult) bool {
	if a == nil || a.Format != 3 || a.SelfOff < 0 {
		return false
	}
	changed := false
	newX, newY := a.X, a.Y
	xResidual, yResidual := false, false

	if a.XDeviceVarIdx != ot.NoVariationIndex {
		if d, ok := storeRes.DefaultDeltas[uint32(a.XDeviceVarIdx)]; ok && d != 0 {
			newX = clampInt16(math.RoundToEven(float64(newX) + d))
			changed = true
		}
		if newIdx, ok := storeRes.Residual[uint32(a.XDeviceVarIdx)]; ok {
			xResidual = true
			if a.XDevTableOff >= 0 {
				repointVariationIndexTable(data, a.XDevTableOff, newIdx)
				changed = true
			}
		} else if a.XDevTableOff >= 0 {
			neutralizeDeviceTable(data, a.XDevTableOff)
			changed = true
		}
	}
	if a.YDeviceVarIdx != ot.NoVariationIndex {
		if d, ok := storeRes.DefaultDeltas[uint32(a.YDeviceVarIdx)]; ok && d != 0 {
			newY = clampInt16(math.RoundToEven(float64(newY) + d))
			changed = true
		}
		if newIdx, ok := storeRes.Residual[uint32(a.YDeviceVarIdx)]; ok {
			yResidual = true
			if a.YDevTableOff >= 0 {
				repointVariationIndexTable(data, a.YDevTableOff, newIdx)
				changed = true
			}
		} else if a.YDevTableOff >= 0 {
			neutralizeDeviceTable(data, a.YDevTableOff)
			changed = true
		}
	}

	if changed {
		binary.BigEndian.PutUint16(data[a.SelfOff+2:], uint16(newX))
		binary.BigEndian.PutUint16(data[a.SelfOff+4:], uint16(newY))
	}
	if !xResidual && !yResidual {
		binary.BigEndian.PutUint16(data[a.SelfOff:], 1)
		changed = true
	}
	return changed
}

func neutralizeDeviceTable(data []byte, off int) {
	if off < 0 || off+6 > len(data) {
		return
	}
	binary.BigEndian.PutUint16(data[off:], 0)
	binary.BigEndian.PutUint16(data[off+2:], 0)
	binary.BigEndian.PutUint16(data[off+4:], 0)
}

func repointVariationIndexTable(data []byte, off int, newIdx uint32) {
	if off < 0 || off+6 > len(data) {
		return
	}
	binary.BigEndian.PutUint16(data[off:], uint16(newIdx>>16))
	binary.BigEndian.PutUint16(data[off+2:], uint16(newIdx&0xFFFF))
	binary.BigEndian.PutUint16(data[off+4:], ot.DeltaFormatVariationIndex)
}
