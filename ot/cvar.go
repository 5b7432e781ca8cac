package ot

import "encoding/binary"

// Cvar represents a parsed 'cvar' (CVT Variations) table. Structurally it is
// a single tuple-variation-store block in the same packed format gvar uses
// per glyph, applied to the flat 'cvt ' array instead of a glyph's points.
type Cvar struct {
	data       []byte
	axisCount  int
	tupleCount int
	dataOffset int
}

// ParseCvar parses a 'cvar' table. axisCount comes from fvar, since cvar's
// own header does not record it.
func ParseCvar(data []byte, axisCount int) (*Cvar, error) {
	if len(data) < 4 || axisCount <= 0 {
		return nil, ErrInvalidTable
	}
	version := binary.BigEndian.Uint16(data[0:])
	if version != 1 {
		return nil, ErrInvalidFormat
	}
	if len(data) < 8 {
		return nil, ErrInvalidTable
	}
	tupleVarCount := binary.BigEndian.Uint16(data[4:])
	dataOffset := int(binary.BigEndian.Uint16(data[6:]))
	return &Cvar{
		data:       data,
		axisCount:  axisCount,
		tupleCount: int(tupleVarCount & 0x0FFF),
		dataOffset: dataOffset,
	}, nil
}

// HasData reports whether the table carries any tuple variations.
func (c *Cvar) HasData() bool {
	return c != nil && c.tupleCount > 0
}

// cvarTuple is one decoded tuple variation over the cvt array.
type cvarTuple struct {
	peak, start, end []int16
	indices          []int // nil means "every cvt entry"
	deltas           []int16
}

// decodeTuples walks every TupleVariationHeader and its packed point/delta
// data, mirroring Gvar.GetGlyphDeltasWithCoords but for a single dimension.
// cvtCount resolves the "applies to every cvt entry" case, where the point
// list is omitted and the delta count isn't otherwise known.
func (c *Cvar) decodeTuples(cvtCount int) []cvarTuple {
	if c == nil || len(c.data) < 8 {
		return nil
	}
	tupleVarCount := binary.BigEndian.Uint16(c.data[4:])
	sharedPointNumbers := (tupleVarCount & 0x8000) != 0

	var sharedPoints []int
	serializedStart := c.dataOffset
	if sharedPointNumbers && serializedStart < len(c.data) {
		var consumed int
		sharedPoints, consumed = parsePackedPoints(c.data[serializedStart:])
		serializedStart += consumed
	}

	headerOffset := 8
	serializedOffset := serializedStart
	var tuples []cvarTuple

	for t := 0; t < c.tupleCount; t++ {
		if headerOffset+4 > len(c.data) {
			break
		}
		variationDataSize := int(binary.BigEndian.Uint16(c.data[headerOffset:]))
		tupleIndex := binary.BigEndian.Uint16(c.data[headerOffset+2:])
		headerOffset += 4

		embeddedPeak := (tupleIndex & 0x8000) != 0
		intermediate := (tupleIndex & 0x4000) != 0
		privatePoints := (tupleIndex & 0x2000) != 0

		var peak, start, end []int16
		if embeddedPeak {
			peak = make([]int16, c.axisCount)
			for i := 0; i < c.axisCount; i++ {
				if headerOffset+2 > len(c.data) {
					break
				}
				peak[i] = int16(binary.BigEndian.Uint16(c.data[headerOffset:]))
				headerOffset += 2
			}
		}
		if intermediate {
			start = make([]int16, c.axisCount)
			end = make([]int16, c.axisCount)
			for i := 0; i < c.axisCount; i++ {
				if headerOffset+2 > len(c.data) {
					break
				}
				start[i] = int16(binary.BigEndian.Uint16(c.data[headerOffset:]))
				headerOffset += 2
			}
			for i := 0; i < c.axisCount; i++ {
				if headerOffset+2 > len(c.data) {
					break
				}
				end[i] = int16(binary.BigEndian.Uint16(c.data[headerOffset:]))
				headerOffset += 2
			}
		}

		var indices []int
		deltaStart := serializedOffset
		if privatePoints && serializedOffset < len(c.data) {
			var consumed int
			indices, consumed = parsePackedPoints(c.data[serializedOffset:])
			deltaStart += consumed
		} else {
			indices = sharedPoints
		}

		numDeltas := len(indices)
		if numDeltas == 0 {
			numDeltas = cvtCount
		}
		deltas, _ := parsePackedDeltas1D(safeSlice(c.data, deltaStart), numDeltas)

		tuples = append(tuples, cvarTuple{peak: peak, start: start, end: end, indices: indices, deltas: deltas})
		serializedOffset += variationDataSize
	}

	return tuples
}

func safeSlice(data []byte, off int) []byte {
	if off < 0 || off > len(data) {
		return nil
	}
	return data[off:]
}

// parsePackedPoints parses a packed point-number list as used by gvar/cvar.
func parsePackedPoints(data []byte) ([]int, int) {
	if len(data) == 0 {
		return nil, 0
	}
	count := int(data[0])
	offset := 1
	if count == 0 {
		return nil, 1
	}
	if count&0x80 != 0 {
		if len(data) < 2 {
			return nil, 1
		}
		count = ((count & 0x7F) << 8) | int(data[1])
		offset = 2
	}

	points := make([]int, 0, count)
	read := 0
	last := 0
	for read < count && offset < len(data) {
		runHeader := data[offset]
		offset++
		wordPoints := (runHeader & 0x80) != 0
		runCount := int(runHeader&0x7F) + 1
		for i := 0; i < runCount && read < count; i++ {
			var delta int
			if wordPoints {
				if offset+2 > len(data) {
					break
				}
				delta = int(binary.BigEndian.Uint16(data[offset:]))
				offset += 2
			} else {
				if offset >= len(data) {
					break
				}
				delta = int(data[offset])
				offset++
			}
			last += delta
			points = append(points, last)
			read++
		}
	}
	return points, offset
}

// parsePackedDeltas1D parses a single packed delta run (cvar has one value
// per point, unlike gvar's paired X/Y runs).
func parsePackedDeltas1D(data []byte, numDeltas int) (deltas []int16, consumed int) {
	deltas = make([]int16, numDeltas)
	offset := 0
	read := 0
	for read < numDeltas && offset < len(data) {
		runHeader := data[offset]
		offset++
		isZero := (runHeader & 0x80) != 0
		isWord := (runHeader & 0x40) != 0
		runCount := int(runHeader&0x3F) + 1
		for i := 0; i < runCount && read < numDeltas; i++ {
			var d int16
			if isZero {
				d = 0
			} else if isWord {
				if offset+2 > len(data) {
					break
				}
				d = int16(binary.BigEndian.Uint16(data[offset:]))
				offset += 2
			} else {
				if offset >= len(data) {
					break
				}
				d = int16(int8(data[offset]))
				offset++
			}
			deltas[read] = d
			read++
		}
	}
	return deltas, offset
}

// cvarScalar computes the region scalar, identical in formula to
// Gvar.calculateScalar.
func cvarScalar(peak, start, end []int16, coords []int) float32 {
	if len(peak) == 0 {
		return 0
	}

	var scalar float32 = 1.0
	for i := 0; i < len(peak) && i < len(coords); i++ {
		peakVal := int(peak[i])
		coordVal := coords[i]
		if peakVal == 0 || coordVal == peakVal {
			continue
		}

		var startVal, endVal int
		if start != nil && end != nil {
			startVal, endVal = int(start[i]), int(end[i])
		} else if peakVal > 0 {
			startVal, endVal = 0, peakVal
		} else {
			startVal, endVal = peakVal, 0
		}

		if coordVal <= startVal || coordVal >= endVal {
			if coordVal < startVal && peakVal > startVal {
				return 0
			}
			if coordVal > endVal && peakVal < endVal {
				return 0
			}
			if coordVal == 0 {
				return 0
			}
		}

		if coordVal < peakVal {
			if peakVal != startVal {
				scalar *= float32(coordVal-startVal) / float32(peakVal-startVal)
			}
		} else {
			if peakVal != endVal {
				scalar *= float32(endVal-coordVal) / float32(endVal-peakVal)
			}
		}
	}
	return scalar
}

// CvarTuple is one fully-resolved, unscaled tuple variation over the cvt
// array (the cvar analogue of ot.TupleVariation): Indices is nil for
// "every cvt entry", and Start/End are already filled in with the default
// region when no intermediate region was embedded.
type CvarTuple struct {
	Peak, Start, End []int16
	Indices          []int
	Deltas           []int16
}

// Tuples returns every raw tuple variation in the table, resolved against
// cvtCount but not evaluated at any coordinate.
func (c *Cvar) Tuples(cvtCount int) []CvarTuple {
	raw := c.decodeTuples(cvtCount)
	out := make([]CvarTuple, len(raw))
	for i, t := range raw {
		start, end := t.start, t.end
		if start == nil && end == nil {
			start = make([]int16, c.axisCount)
			end = make([]int16, c.axisCount)
			for a := 0; a < c.axisCount && a < len(t.peak); a++ {
				if t.peak[a] > 0 {
					end[a] = t.peak[a]
				} else {
					start[a] = t.peak[a]
				}
			}
		}
		out[i] = CvarTuple{Peak: t.peak, Start: start, End: end, Indices: t.indices, Deltas: t.deltas}
	}
	return out
}

// GetDeltasWithCoords returns the instanced delta for every cvt entry at the
// given normalized (F2DOT14) coordinates, length cvtCount.
func (c *Cvar) GetDeltasWithCoords(normalizedCoords []int, cvtCount int) []int32 {
	out := make([]int32, cvtCount)
	if c == nil {
		return out
	}
	for _, tup := range c.decodeTuples(cvtCount) {
		scalar := cvarScalar(tup.peak, tup.start, tup.end, normalizedCoords)
		if scalar == 0 {
			continue
		}
		if len(tup.indices) == 0 {
			for i := 0; i < cvtCount && i < len(tup.deltas); i++ {
				out[i] += int32(float32(tup.deltas[i]) * scalar)
			}
			continue
		}
		for i, idx := range tup.indices {
			if idx < 0 || idx >= cvtCount || i >= len(tup.deltas) {
				continue
			}
			out[idx] += int32(float32(tup.deltas[i]) * scalar)
		}
	}
	return out
}
