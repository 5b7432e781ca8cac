package ot

import "encoding/binary"

// EncodePackedPointNumbers encodes a point-number list in gvar/cvar's packed
// format. A nil or empty indices list encodes as "every point" (count 0).
// Unlike the format's own run-length compression, this always emits one
// single-element run per point: simpler and always correct, at the cost of
// a few extra header bytes per point (instancer output size was never a
// goal here).
func EncodePackedPointNumbers(indices []int) []byte {
	if len(indices) == 0 {
		return []byte{0}
	}

	count := len(indices)
	var out []byte
	if count <= 127 {
		out = append(out, byte(count))
	} else {
		out = append(out, byte(0x80|(count>>8)), byte(count&0xFF))
	}

	last := 0
	for _, idx := range indices {
		d := idx - last
		if d < 0 {
			d = 0
		}
		if d <= 255 {
			out = append(out, 0x00, byte(d))
		} else {
			out = append(out, 0x80, byte(d>>8), byte(d&0xFF))
		}
		last = idx
	}
	return out
}

// EncodePackedDeltas encodes one axis's delta run (X or Y for gvar, the
// single value for cvar) in the packed format, one run per value (see
// EncodePackedPointNumbers on why runs aren't merged).
func EncodePackedDeltas(values []int16) []byte {
	var out []byte
	for _, v := range values {
		switch {
		case v == 0:
			out = append(out, 0x80)
		case v >= -128 && v <= 127:
			out = append(out, 0x00, byte(int8(v)))
		default:
			out = append(out, 0x40, byte(uint16(v)>>8), byte(uint16(v)&0xFF))
		}
	}
	return out
}

// EncodeGvarGlyphData encodes one glyph's surviving tuple variations into a
// gvar GlyphVariationData block. Every tuple is written with an embedded
// peak, an explicit intermediate region, and private point numbers: the
// shared-tuple/shared-point optimizations are never produced, since they're
// optional and this keeps the encoder a direct mirror of
// Gvar.GlyphTupleVariations's decode shape. Returns nil if there are no
// tuples left.
func EncodeGvarGlyphData(axisCount int, tuples []TupleVariation) []byte {
	if len(tuples) == 0 {
		return nil
	}

	var headers, serialized []byte
	for _, tv := range tuples {
		tupleIndex := uint16(0x8000 | 0x4000 | 0x2000)

		h := make([]byte, 4, 4+axisCount*6)
		binary.BigEndian.PutUint16(h[2:], tupleIndex)

		for i := 0; i < axisCount; i++ {
			var p int16
			if i < len(tv.Peak) {
				p = tv.Peak[i]
			}
			h = append(h, byte(uint16(p)>>8), byte(uint16(p)&0xFF))
		}
		for i := 0; i < axisCount; i++ {
			var s int16
			if i < len(tv.Start) {
				s = tv.Start[i]
			}
			h = append(h, byte(uint16(s)>>8), byte(uint16(s)&0xFF))
		}
		for i := 0; i < axisCount; i++ {
			var e int16
			if i < len(tv.End) {
				e = tv.End[i]
			}
			h = append(h, byte(uint16(e)>>8), byte(uint16(e)&0xFF))
		}

		data := EncodePackedPointNumbers(tv.PointIndices)
		data = append(data, EncodePackedDeltas(tv.XDeltas)...)
		data = append(data, EncodePackedDeltas(tv.YDeltas)...)
		binary.BigEndian.PutUint16(h[0:], uint16(len(data)))

		headers = append(headers, h...)
		serialized = append(serialized, data...)
	}

	out := make([]byte, 4, 4+len(headers)+len(serialized))
	binary.BigEndian.PutUint16(out[0:], uint16(len(tuples)))
	binary.BigEndian.PutUint16(out[2:], uint16(4+len(headers)))
	out = append(out, headers...)
	out = append(out, serialized...)
	return out
}

// EncodeGvar assembles a full gvar table from per-glyph GlyphVariationData
// blocks (as produced by EncodeGvarGlyphData; a nil entry means the glyph
// has no surviving variation). Offsets are always written in the long
// (32-bit) form, unlike source fonts which pick the narrower of the two:
// simpler, and gvar's own size is already dwarfed by glyf.
func EncodeGvar(axisCount int, perGlyphData [][]byte) []byte {
	glyphCount := len(perGlyphData)
	offsetsStart := 20
	glyphVarDataOffset := uint32(offsetsStart + (glyphCount+1)*4)

	offsets := make([]uint32, glyphCount+1)
	var data []byte
	for i, gd := range perGlyphData {
		offsets[i] = uint32(len(data))
		data = append(data, gd...)
		for len(data)%2 != 0 {
			data = append(data, 0)
		}
	}
	offsets[glyphCount] = uint32(len(data))

	out := make([]byte, offsetsStart, int(offsetsStart)+len(offsets)*4+len(data))
	binary.BigEndian.PutUint16(out[0:], 1) // version
	binary.BigEndian.PutUint16(out[4:], uint16(axisCount))
	binary.BigEndian.PutUint16(out[6:], 0) // sharedTupleCount
	binary.BigEndian.PutUint32(out[8:], glyphVarDataOffset)
	binary.BigEndian.PutUint16(out[12:], uint16(glyphCount))
	binary.BigEndian.PutUint16(out[14:], 1) // flags: long offsets
	binary.BigEndian.PutUint32(out[16:], glyphVarDataOffset)

	for _, off := range offsets {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, off)
		out = append(out, buf...)
	}
	out = append(out, data...)
	return out
}
