package ot

import "encoding/binary"

// DeltaFormatVariationIndex is the deltaFormat value (0x8000) that marks a
// device-table-shaped record as a VariationIndex table: it carries a
// 32-bit ItemVariationStore index instead of per-PPEM hinting deltas.
const DeltaFormatVariationIndex = 0x8000

// VariationIndex identifies an entry in an ItemVariationStore: the upper 16
// bits select the data block, the lower 16 bits select the row within it.
type VariationIndex uint32

// NoVariationIndex marks a field as carrying no device/VariationIndex table.
const NoVariationIndex VariationIndex = 0xFFFFFFFF

// parseDeviceOrVariationIndex reads the table at the given absolute offset
// into data and reports its packed variation index, if any. Ordinary hinting
// Device tables (deltaFormat 1-3) carry no variation data and report
// NoVariationIndex; so does an absent (offset == 0) table.
func parseDeviceOrVariationIndex(data []byte, off int) VariationIndex {
	if off <= 0 || off+6 > len(data) {
		return NoVariationIndex
	}
	deltaFormat := binary.BigEndian.Uint16(data[off+4:])
	if deltaFormat != DeltaFormatVariationIndex {
		return NoVariationIndex
	}
	outer := binary.BigEndian.Uint16(data[off:])
	inner := binary.BigEndian.Uint16(data[off+2:])
	return VariationIndex(uint32(outer)<<16 | uint32(inner))
}

// buildVariationIndexTable serializes a VariationIndex as a device-table-shaped
// VariationIndex record, for layout instancing passes that must keep a field
// variable (§4.5 step 2: rewrite the device-table reference to the new index).
func buildVariationIndexTable(idx VariationIndex) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:], uint16(idx>>16))
	binary.BigEndian.PutUint16(buf[2:], uint16(idx&0xFFFF))
	binary.BigEndian.PutUint16(buf[4:], DeltaFormatVariationIndex)
	return buf
}
