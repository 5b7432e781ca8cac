package instancer

import (
	"encoding/binary"
	"testing"

	"github.com/varfont/instancer/ot"
)

// buildSinglePosWithDevice builds a minimal SinglePos format-1 subtable with
// an XAdvance value carrying a device/VariationIndex table, and reports the
// absolute offset (relative to the subtable start) of that device table.
func buildSinglePosWithDevice(coveredGlyph uint16, xAdvance int16, varOuter, varInner uint16) (sub []byte, devOffRel int) {
	// header(6) + value record (xAdvance + xAdvDeviceOffset, 4 bytes) = 10
	const header = 10
	devOffRel = header
	const coverageOffRel = header + 6 // device table is 6 bytes

	data := make([]byte, coverageOffRel+6)
	binary.BigEndian.PutUint16(data[0:], 1)                       // format
	binary.BigEndian.PutUint16(data[2:], uint16(coverageOffRel))  // coverage offset
	binary.BigEndian.PutUint16(data[4:], ot.ValueFormatXAdvance|ot.ValueFormatXAdvDevice)
	binary.BigEndian.PutUint16(data[6:], uint16(xAdvance))
	binary.BigEndian.PutUint16(data[8:], uint16(devOffRel)) // device offset, relative to the subtable's own start (the base parseValueRecord uses)
	binary.BigEndian.PutUint16(data[devOffRel:], varOuter)
	binary.BigEndian.PutUint16(data[devOffRel+2:], varInner)
	binary.BigEndian.PutUint16(data[devOffRel+4:], ot.DeltaFormatVariationIndex)

	// Coverage format 1: one glyph.
	binary.BigEndian.PutUint16(data[coverageOffRel:], 1)
	binary.BigEndian.PutUint16(data[coverageOffRel+2:], 1)
	binary.BigEndian.PutUint16(data[coverageOffRel+4:], coveredGlyph)

	return data, devOffRel
}

func buildGPOSLookup(lookupType uint16, subtables [][]byte) []byte {
	headerSize := 6 + len(subtables)*2
	total := headerSize
	for _, st := range subtables {
		total += len(st)
	}
	data := make([]byte, total)
	binary.BigEndian.PutUint16(data[0:], lookupType)
	binary.BigEndian.PutUint16(data[2:], 0)
	binary.BigEndian.PutUint16(data[4:], uint16(len(subtables)))
	off := headerSize
	for i, st := range subtables {
		binary.BigEndian.PutUint16(data[6+i*2:], uint16(off))
		copy(data[off:], st)
		off += len(st)
	}
	return data
}

func buildGPOSTable(lookups [][]byte) ([]byte, int) {
	const headerSize = 10
	lookupListHeader := 2 + len(lookups)*2
	lookupListSize := lookupListHeader
	for _, l := range lookups {
		lookupListSize += len(l)
	}
	total := headerSize + 2 + 2 + lookupListSize
	data := make([]byte, total)
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], 0)
	binary.BigEndian.PutUint16(data[4:], headerSize)
	binary.BigEndian.PutUint16(data[6:], headerSize+2)
	binary.BigEndian.PutUint16(data[8:], headerSize+4)
	// empty ScriptList, empty FeatureList
	binary.BigEndian.PutUint16(data[headerSize:], 0)
	binary.BigEndian.PutUint16(data[headerSize+2:], 0)

	lookupListOff := headerSize + 4
	binary.BigEndian.PutUint16(data[lookupListOff:], uint16(len(lookups)))
	off := lookupListHeader
	for i, l := range lookups {
		binary.BigEndian.PutUint16(data[lookupListOff+2+i*2:], uint16(off))
		copy(data[lookupListOff+off:], l)
		off += len(l)
	}
	return data, lookupListOff
}

func TestInstanceGPOSValueRecordFoldsDefaultDelta(t *testing.T) {
	sub, devOffRel := buildSinglePosWithDevice(65, 100, 0, 5)
	lookup := buildGPOSLookup(ot.GPOSTypeSingle, [][]byte{sub})
	data, lookupListOff := buildGPOSTable([][]byte{lookup})

	subtableAbsOff := lookupListOff + (2 + 1*2) + (6 + 1*2)
	devAbsOff := subtableAbsOff + devOffRel

	storeRes := &ItemStoreResult{
		DefaultDeltas: map[uint32]float64{5: 7.5},
		Residual:      map[uint32]uint32{},
	}

	patched := InstanceGPOS(data, storeRes)
	if patched == nil {
		t.Fatal("InstanceGPOS returned nil, expected a patched copy")
	}

	sp, err := ot.ParseGPOS(patched)
	if err != nil {
		t.Fatalf("re-parsing patched GPOS failed: %v", err)
	}
	lk := sp.GetLookup(0)
	got := lk.Subtables()[0].(*ot.SinglePos).ValueRecord()
	if got.XAdvance != 108 {
		t.Errorf("XAdvance = %d, want 108 (100 + round-to-even(7.5))", got.XAdvance)
	}

	deltaFormat := binary.BigEndian.Uint16(patched[devAbsOff+4:])
	if deltaFormat != 0 {
		t.Errorf("device table at %d not neutralized: deltaFormat = 0x%04x", devAbsOff, deltaFormat)
	}
}

func TestInstanceGPOSValueRecordRepointsResidual(t *testing.T) {
	sub, devOffRel := buildSinglePosWithDevice(66, 50, 0, 9)
	lookup := buildGPOSLookup(ot.GPOSTypeSingle, [][]byte{sub})
	data, lookupListOff := buildGPOSTable([][]byte{lookup})

	subtableAbsOff := lookupListOff + (2 + 1*2) + (6 + 1*2)
	devAbsOff := subtableAbsOff + devOffRel

	storeRes := &ItemStoreResult{
		DefaultDeltas: map[uint32]float64{},
		Residual:      map[uint32]uint32{9: 0x00020003},
	}

	patched := InstanceGPOS(data, storeRes)
	if patched == nil {
		t.Fatal("InstanceGPOS returned nil, expected a patched copy")
	}

	outer := binary.BigEndian.Uint16(patched[devAbsOff:])
	inner := binary.BigEndian.Uint16(patched[devAbsOff+2:])
	deltaFormat := binary.BigEndian.Uint16(patched[devAbsOff+4:])
	if outer != 2 || inner != 3 || deltaFormat != ot.DeltaFormatVariationIndex {
		t.Errorf("device table at %d = (%d,%d,0x%04x), want (2,3,0x%04x)", devAbsOff, outer, inner, deltaFormat, ot.DeltaFormatVariationIndex)
	}

	sp, err := ot.ParseGPOS(patched)
	if err != nil {
		t.Fatalf("re-parsing patched GPOS failed: %v", err)
	}
	got := sp.GetLookup(0).Subtables()[0].(*ot.SinglePos).ValueRecord()
	if got.XAdvance != 50 {
		t.Errorf("XAdvance = %d, want unchanged 50 (no default delta folded)", got.XAdvance)
	}
}

// buildCursivePosFormat3Anchor builds a minimal CursivePos subtable whose
// entry anchor is format 3, with an XDeviceVarIdx and no Y device table.
func buildCursivePosFormat3Anchor(coveredGlyph uint16, x, y int16, varOuter, varInner uint16) (sub []byte, anchorOffRel int) {
	const header = 6  // format + coverageOff + entryExitCount
	const records = 4 // one EntryExitRecord: entryOff + exitOff
	anchorOffRel = header + records
	const anchorSize = 10 // format3: format+x+y+xDevOff+yDevOff
	devOffRel := anchorOffRel + anchorSize
	coverageOffRel := devOffRel + 6

	data := make([]byte, coverageOffRel+6)
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(coverageOffRel))
	binary.BigEndian.PutUint16(data[4:], 1) // entryExitCount

	binary.BigEndian.PutUint16(data[6:], uint16(anchorOffRel)) // entry anchor offset
	binary.BigEndian.PutUint16(data[8:], 0)                    // no exit anchor

	binary.BigEndian.PutUint16(data[anchorOffRel:], 3) // format 3
	binary.BigEndian.PutUint16(data[anchorOffRel+2:], uint16(x))
	binary.BigEndian.PutUint16(data[anchorOffRel+4:], uint16(y))
	binary.BigEndian.PutUint16(data[anchorOffRel+6:], uint16(devOffRel-anchorOffRel)) // xDeviceOffset, relative to anchor start
	binary.BigEndian.PutUint16(data[anchorOffRel+8:], 0)                              // no y device

	binary.BigEndian.PutUint16(data[devOffRel:], varOuter)
	binary.BigEndian.PutUint16(data[devOffRel+2:], varInner)
	binary.BigEndian.PutUint16(data[devOffRel+4:], ot.DeltaFormatVariationIndex)

	binary.BigEndian.PutUint16(data[coverageOffRel:], 1)
	binary.BigEndian.PutUint16(data[coverageOffRel+2:], 1)
	binary.BigEndian.PutUint16(data[coverageOffRel+4:], coveredGlyph)

	return data, anchorOffRel
}

func TestInstanceGPOSAnchorDowngradesFormat3ToFormat1(t *testing.T) {
	sub, anchorOffRel := buildCursivePosFormat3Anchor(70, 10, 20, 0, 9)
	lookup := buildGPOSLookup(ot.GPOSTypeCursive, [][]byte{sub})
	data, lookupListOff := buildGPOSTable([][]byte{lookup})

	subtableAbsOff := lookupListOff + (2 + 1*2) + (6 + 1*2)
	anchorAbsOff := subtableAbsOff + anchorOffRel

	storeRes := &ItemStoreResult{
		DefaultDeltas: map[uint32]float64{9: 3.2},
		Residual:      map[uint32]uint32{},
	}

	patched := InstanceGPOS(data, storeRes)
	if patched == nil {
		t.Fatal("InstanceGPOS returned nil, expected a patched copy")
	}

	format := binary.BigEndian.Uint16(patched[anchorAbsOff:])
	x := int16(binary.BigEndian.Uint16(patched[anchorAbsOff+2:]))
	y := int16(binary.BigEndian.Uint16(patched[anchorAbsOff+4:]))
	if format != 1 {
		t.Errorf("anchor format = %d, want 1 (downgraded)", format)
	}
	if x != 13 {
		t.Errorf("anchor X = %d, want 13 (10 + round-to-even(3.2))", x)
	}
	if y != 20 {
		t.Errorf("anchor Y = %d, want unchanged 20", y)
	}
}

func TestInstanceGPOSResizeFreeWhenOnlyResidualRepoints(t *testing.T) {
	sub, _ := buildSinglePosWithDevice(65, 100, 0, 5)
	lookup := buildGPOSLookup(ot.GPOSTypeSingle, [][]byte{sub})
	data, _ := buildGPOSTable([][]byte{lookup})

	storeRes := &ItemStoreResult{
		DefaultDeltas: map[uint32]float64{},
		Residual:      map[uint32]uint32{5: 0x00000005},
	}

	patched := InstanceGPOS(data, storeRes)
	if patched == nil {
		t.Fatal("InstanceGPOS returned nil, expected a patched copy (device table still gets repointed)")
	}
	if len(patched) != len(data) {
		t.Errorf("patched length = %d, want unchanged %d (resize-free)", len(patched), len(data))
	}
}
