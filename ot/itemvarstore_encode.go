package ot

import "encoding/binary"

// EncodeVarRegionList serializes a VarRegionList from scratch given its axis
// count and per-region (start, peak, end) triples in F2DOT14 units. Used by
// the item-variation-store instancer (§4.3) to re-emit a de-duplicated and
// clipped region list.
func EncodeVarRegionList(axisCount int, regions [][]AxisRegion) []byte {
	buf := make([]byte, 4+len(regions)*axisCount*6)
	binary.BigEndian.PutUint16(buf[0:], uint16(axisCount))
	binary.BigEndian.PutUint16(buf[2:], uint16(len(regions)))
	off := 4
	for _, region := range regions {
		for i := 0; i < axisCount; i++ {
			var ar AxisRegion
			if i < len(region) {
				ar = region[i]
			}
			binary.BigEndian.PutUint16(buf[off:], uint16(ar.Start))
			binary.BigEndian.PutUint16(buf[off+2:], uint16(ar.Peak))
			binary.BigEndian.PutUint16(buf[off+4:], uint16(ar.End))
			off += 6
		}
	}
	return buf
}

// EncodeVarData serializes one VarData block from a region-index list and an
// item x region delta matrix. Deltas are packed using the narrowest uniform
// width (word or long) that holds every value exactly; this implementation
// always picks "short" (no long words) when every delta fits in an int16,
// matching the common case produced by the instancer's own output.
func EncodeVarData(regionIndices []int, deltas [][]int32) []byte {
	regionIndexCount := len(regionIndices)
	itemCount := len(deltas)

	longWords := false
	for _, row := range deltas {
		for _, d := range row {
			if d < -32768 || d > 32767 {
				longWords = true
			}
		}
	}

	// Every column is written at the same (word or long) width, so every
	// column is a "word" column in the header.
	wordCount := regionIndexCount

	headerSize := 6 + regionIndexCount*2
	var rowSize int
	if longWords {
		rowSize = wordCount*4 + (regionIndexCount-wordCount)*2
	} else {
		rowSize = regionIndexCount * 2
	}

	buf := make([]byte, headerSize+itemCount*rowSize)
	binary.BigEndian.PutUint16(buf[0:], uint16(itemCount))
	wsc := uint16(wordCount)
	if longWords {
		wsc |= 0x8000
	}
	binary.BigEndian.PutUint16(buf[2:], wsc)
	binary.BigEndian.PutUint16(buf[4:], uint16(regionIndexCount))
	for i, r := range regionIndices {
		binary.BigEndian.PutUint16(buf[6+i*2:], uint16(r))
	}

	for item, row := range deltas {
		rowOff := headerSize + item*rowSize
		for i := 0; i < regionIndexCount; i++ {
			var v int32
			if i < len(row) {
				v = row[i]
			}
			if longWords {
				binary.BigEndian.PutUint32(buf[rowOff+i*4:], uint32(v))
			} else {
				binary.BigEndian.PutUint16(buf[rowOff+i*2:], uint16(int16(v)))
			}
		}
	}

	return buf
}

// EncodeItemVariationStore assembles a complete ItemVariationStore (format
// 1) from a region list and a sequence of already-encoded VarData blocks.
func EncodeItemVariationStore(regionListData []byte, varDataBlocks [][]byte) []byte {
	headerSize := 8 + len(varDataBlocks)*4
	total := headerSize + len(regionListData)
	for _, b := range varDataBlocks {
		total += len(b)
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:], 1) // format
	binary.BigEndian.PutUint32(buf[2:], uint32(headerSize))
	binary.BigEndian.PutUint16(buf[6:], uint16(len(varDataBlocks)))

	off := headerSize
	copy(buf[off:], regionListData)
	off += len(regionListData)

	for i, b := range varDataBlocks {
		binary.BigEndian.PutUint32(buf[8+i*4:], uint32(off))
		copy(buf[off:], b)
		off += len(b)
	}

	return buf
}
