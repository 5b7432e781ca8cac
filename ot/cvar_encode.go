package ot

import "encoding/binary"

// EncodeCvar assembles a 'cvar' table from surviving tuple variations, in
// the same embedded-peak/explicit-intermediate-region/private-points shape
// EncodeGvarGlyphData uses for gvar (see its doc comment). Returns nil if
// there are no tuples left.
func EncodeCvar(axisCount int, tuples []CvarTuple) []byte {
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

		data := EncodePackedPointNumbers(tv.Indices)
		data = append(data, EncodePackedDeltas(tv.Deltas)...)
		binary.BigEndian.PutUint16(h[0:], uint16(len(data)))

		headers = append(headers, h...)
		serialized = append(serialized, data...)
	}

	dataOffset := 8 + len(headers)
	out := make([]byte, 8, dataOffset+len(serialized))
	binary.BigEndian.PutUint16(out[0:], 1) // version
	binary.BigEndian.PutUint16(out[4:], uint16(len(tuples)))
	binary.BigEndian.PutUint16(out[6:], uint16(dataOffset))
	out = append(out, headers...)
	out = append(out, serialized...)
	return out
}
