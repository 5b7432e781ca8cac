package instancer

import (
	"encoding/binary"
	"math"

	"github.com/varfont/instancer/ot"
)

// MVarResult is the outcome of instancing an MVAR table (§4.9).
type MVarResult struct {
	Bytes  []byte
	Empty  bool
	Deltas map[ot.Tag]float64
}

// InstanceMVar applies §4.3 to the table's item-variation store, resolves
// each value record's default delta, and re-encodes the table with only the
// value records that still carry residual variation.
func InstanceMVar(mvar *ot.MVar, axisTagOrder []ot.Tag, loc NormalizedLocation) *MVarResult {
	res := &MVarResult{Deltas: map[ot.Tag]float64{}}
	if mvar == nil || !mvar.HasData() {
		res.Empty = true
		return res
	}

	storeRes := InstanceItemVariationStore(mvar.ItemVarStore(), axisTagOrder, loc)

	var surviving []ot.MVarValueRecord
	for _, vr := range mvar.ValueRecords() {
		if d, ok := storeRes.DefaultDeltas[vr.VarIdx]; ok {
			res.Deltas[vr.ValueTag] = d
		}
		if newIdx, ok := storeRes.Residual[vr.VarIdx]; ok {
			surviving = append(surviving, ot.MVarValueRecord{ValueTag: vr.ValueTag, VarIdx: newIdx})
		}
	}

	if len(surviving) == 0 || storeRes.Empty {
		res.Empty = true
		return res
	}
	res.Bytes = ot.EncodeMVar(surviving, storeRes.Bytes)
	return res
}

// ApplyMVarToHhea adds MVAR-resolved deltas into hhea's ascender, descender,
// line-gap, and caret fields, rounding half-to-even.
func ApplyMVarToHhea(hheaData []byte, deltas map[ot.Tag]float64) []byte {
	out := append([]byte(nil), hheaData...)
	applyInt16Delta(out, 4, deltas[ot.MVarTagHorizontalAscender])
	applyInt16Delta(out, 6, deltas[ot.MVarTagHorizontalDescender])
	applyInt16Delta(out, 8, deltas[ot.MVarTagHorizontalLineGap])
	applyInt16Delta(out, 18, deltas[ot.MVarTagHorizontalCaretRise])
	applyInt16Delta(out, 20, deltas[ot.MVarTagHorizontalCaretRun])
	applyInt16Delta(out, 22, deltas[ot.MVarTagHorizontalCaretOffset])
	return out
}

// ApplyMVarToOS2 adds MVAR-resolved deltas into OS/2's sub/superscript and
// strikeout metric fields.
func ApplyMVarToOS2(os2Data []byte, deltas map[ot.Tag]float64) []byte {
	out := append([]byte(nil), os2Data...)
	applyInt16Delta(out, 10, deltas[ot.MVarTagSubscriptEmXSize])
	applyInt16Delta(out, 12, deltas[ot.MVarTagSubscriptEmYSize])
	applyInt16Delta(out, 14, deltas[ot.MVarTagSubscriptEmXOffset])
	applyInt16Delta(out, 16, deltas[ot.MVarTagSubscriptEmYOffset])
	applyInt16Delta(out, 18, deltas[ot.MVarTagSuperscriptEmXSize])
	applyInt16Delta(out, 20, deltas[ot.MVarTagSuperscriptEmYSize])
	applyInt16Delta(out, 22, deltas[ot.MVarTagSuperscriptEmXOffset])
	applyInt16Delta(out, 24, deltas[ot.MVarTagSuperscriptEmYOffset])
	applyInt16Delta(out, 26, deltas[ot.MVarTagStrikeoutSize])
	applyInt16Delta(out, 28, deltas[ot.MVarTagStrikeoutOffset])
	return out
}

// ApplyMVarToPost adds MVAR-resolved deltas into post's underline fields.
func ApplyMVarToPost(postData []byte, deltas map[ot.Tag]float64) []byte {
	out := append([]byte(nil), postData...)
	applyInt16Delta(out, 8, deltas[ot.MVarTagUnderlineOffset])
	applyInt16Delta(out, 10, deltas[ot.MVarTagUnderlineSize])
	return out
}

func applyInt16Delta(data []byte, off int, delta float64) {
	if delta == 0 || off+2 > len(data) {
		return
	}
	v := int16(binary.BigEndian.Uint16(data[off:]))
	v += int16(math.RoundToEven(delta))
	binary.BigEndian.PutUint16(data[off:], uint16(v))
}
