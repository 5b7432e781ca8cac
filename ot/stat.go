package ot

import "encoding/binary"

// StatAxisRecord describes one design axis entry in the STAT table (not to
// be confused with fvar's AxisInfo, though the two normally share tags).
type StatAxisRecord struct {
	Tag        Tag
	NameID     uint16
	Ordering   uint16
}

// StatAxisValue is one AxisValue subtable. Only formats 1-3 (single axis)
// are modeled; format 4 (multi-axis) entries are dropped during parsing
// without any log message, since this repo's instancing passes have no way to
// evaluate a multi-axis predicate against a partial-instancing location.
type StatAxisValue struct {
	Format     uint16
	AxisIndex  int // into the StatAxisRecord list
	Flags      uint16
	ValueNameID uint16
	Value      float64 // format 1, 3
	NominalValue float64 // format 2
	RangeMinValue float64 // format 2
	RangeMaxValue float64 // format 2
	LinkedValue   float64 // format 3
}

// Stat represents a parsed STAT table.
type Stat struct {
	axes               []StatAxisRecord
	values             []StatAxisValue
	elidedFallbackName uint16
	hasElidedFallback  bool
}

// ParseStat parses a STAT table.
func ParseStat(data []byte) (*Stat, error) {
	if len(data) < 8 {
		return nil, ErrInvalidTable
	}
	major := binary.BigEndian.Uint16(data[0:])
	minor := binary.BigEndian.Uint16(data[2:])
	if major != 1 {
		return nil, ErrInvalidFormat
	}
	designAxisSize := int(binary.BigEndian.Uint16(data[4:]))
	designAxisCount := int(binary.BigEndian.Uint16(data[6:]))
	if len(data) < 8 {
		return nil, ErrInvalidTable
	}

	st := &Stat{}
	if len(data) < 16 {
		return st, nil
	}
	designAxesOffset := int(binary.BigEndian.Uint32(data[8:]))
	axisValueCount := int(binary.BigEndian.Uint16(data[12:]))
	axisValueOffsetsOffset := int(binary.BigEndian.Uint32(data[14:]))

	for i := 0; i < designAxisCount; i++ {
		off := designAxesOffset + i*designAxisSize
		if off+8 > len(data) {
			break
		}
		st.axes = append(st.axes, StatAxisRecord{
			Tag:      Tag(binary.BigEndian.Uint32(data[off:])),
			NameID:   binary.BigEndian.Uint16(data[off+4:]),
			Ordering: binary.BigEndian.Uint16(data[off+6:]),
		})
	}

	for i := 0; i < axisValueCount; i++ {
		offOff := axisValueOffsetsOffset + i*2
		if offOff+2 > len(data) {
			break
		}
		avOff := axisValueOffsetsOffset + int(binary.BigEndian.Uint16(data[offOff:]))
		if avOff+4 > len(data) {
			continue
		}
		format := binary.BigEndian.Uint16(data[avOff:])
		var av StatAxisValue
		av.Format = format
		switch format {
		case 1:
			if avOff+12 > len(data) {
				continue
			}
			av.AxisIndex = int(binary.BigEndian.Uint16(data[avOff+2:]))
			av.Flags = binary.BigEndian.Uint16(data[avOff+4:])
			av.ValueNameID = binary.BigEndian.Uint16(data[avOff+6:])
			av.Value = float64(fixed1616ToFloat(binary.BigEndian.Uint32(data[avOff+8:])))
		case 2:
			if avOff+20 > len(data) {
				continue
			}
			av.AxisIndex = int(binary.BigEndian.Uint16(data[avOff+2:]))
			av.Flags = binary.BigEndian.Uint16(data[avOff+4:])
			av.ValueNameID = binary.BigEndian.Uint16(data[avOff+6:])
			av.NominalValue = float64(fixed1616ToFloat(binary.BigEndian.Uint32(data[avOff+8:])))
			av.RangeMinValue = float64(fixed1616ToFloat(binary.BigEndian.Uint32(data[avOff+12:])))
			av.RangeMaxValue = float64(fixed1616ToFloat(binary.BigEndian.Uint32(data[avOff+16:])))
		case 3:
			if avOff+16 > len(data) {
				continue
			}
			av.AxisIndex = int(binary.BigEndian.Uint16(data[avOff+2:]))
			av.Flags = binary.BigEndian.Uint16(data[avOff+4:])
			av.ValueNameID = binary.BigEndian.Uint16(data[avOff+6:])
			av.Value = float64(fixed1616ToFloat(binary.BigEndian.Uint32(data[avOff+8:])))
			av.LinkedValue = float64(fixed1616ToFloat(binary.BigEndian.Uint32(data[avOff+12:])))
		default:
			continue // format 4 (multi-axis) or unrecognized: dropped
		}
		st.values = append(st.values, av)
	}

	if minor >= 1 && len(data) >= 18 {
		st.elidedFallbackName = binary.BigEndian.Uint16(data[16:])
		st.hasElidedFallback = true
	}

	return st, nil
}

// HasData reports whether the table carries any axis records.
func (s *Stat) HasData() bool {
	return s != nil && len(s.axes) > 0
}

// AxisRecords returns the table's design axis records.
func (s *Stat) AxisRecords() []StatAxisRecord {
	if s == nil {
		return nil
	}
	return s.axes
}

// AxisValues returns the table's AxisValue entries.
func (s *Stat) AxisValues() []StatAxisValue {
	if s == nil {
		return nil
	}
	return s.values
}

// ElidedFallbackNameID returns the table's elidedFallbackNameID and whether
// the table (version 1.1+) carries one at all.
func (s *Stat) ElidedFallbackNameID() (uint16, bool) {
	if s == nil {
		return 0, false
	}
	return s.elidedFallbackName, s.hasElidedFallback
}

// EncodeStat serializes a STAT table (format 1.1 when an elided fallback
// name is present, else 1.0) from surviving axis records and axis values.
func EncodeStat(axes []StatAxisRecord, values []StatAxisValue, elidedFallbackNameID uint16, hasElidedFallback bool) []byte {
	const designAxisSize = 8
	headerSize := 16
	if hasElidedFallback {
		headerSize = 18
	}

	designAxesOffset := headerSize
	designAxesData := make([]byte, len(axes)*designAxisSize)
	for i, a := range axes {
		off := i * designAxisSize
		binary.BigEndian.PutUint32(designAxesData[off:], uint32(a.Tag))
		binary.BigEndian.PutUint16(designAxesData[off+4:], a.NameID)
		binary.BigEndian.PutUint16(designAxesData[off+6:], a.Ordering)
	}

	axisValueOffsetsOffset := designAxesOffset + len(designAxesData)
	var axisValueRecords [][]byte
	for _, av := range values {
		axisValueRecords = append(axisValueRecords, encodeStatAxisValue(av))
	}
	offsetsData := make([]byte, len(axisValueRecords)*2)
	valuesStart := axisValueOffsetsOffset + len(offsetsData)
	off := 0
	var valuesData []byte
	for i, rec := range axisValueRecords {
		binary.BigEndian.PutUint16(offsetsData[i*2:], uint16(off))
		valuesData = append(valuesData, rec...)
		off += len(rec)
	}

	buf := make([]byte, valuesStart+len(valuesData))
	binary.BigEndian.PutUint16(buf[0:], 1)
	if hasElidedFallback {
		binary.BigEndian.PutUint16(buf[2:], 1)
	}
	binary.BigEndian.PutUint16(buf[4:], designAxisSize)
	binary.BigEndian.PutUint16(buf[6:], uint16(len(axes)))
	binary.BigEndian.PutUint32(buf[8:], uint32(designAxesOffset))
	binary.BigEndian.PutUint16(buf[12:], uint16(len(axisValueRecords)))
	binary.BigEndian.PutUint32(buf[14:], uint32(axisValueOffsetsOffset))
	if hasElidedFallback {
		binary.BigEndian.PutUint16(buf[16:], elidedFallbackNameID)
	}
	copy(buf[designAxesOffset:], designAxesData)
	copy(buf[axisValueOffsetsOffset:], offsetsData)
	copy(buf[valuesStart:], valuesData)
	return buf
}

func encodeStatAxisValue(av StatAxisValue) []byte {
	switch av.Format {
	case 2:
		buf := make([]byte, 20)
		binary.BigEndian.PutUint16(buf[0:], 2)
		binary.BigEndian.PutUint16(buf[2:], uint16(av.AxisIndex))
		binary.BigEndian.PutUint16(buf[4:], av.Flags)
		binary.BigEndian.PutUint16(buf[6:], av.ValueNameID)
		binary.BigEndian.PutUint32(buf[8:], floatToFixed1616(float32(av.NominalValue)))
		binary.BigEndian.PutUint32(buf[12:], floatToFixed1616(float32(av.RangeMinValue)))
		binary.BigEndian.PutUint32(buf[16:], floatToFixed1616(float32(av.RangeMaxValue)))
		return buf
	case 3:
		buf := make([]byte, 16)
		binary.BigEndian.PutUint16(buf[0:], 3)
		binary.BigEndian.PutUint16(buf[2:], uint16(av.AxisIndex))
		binary.BigEndian.PutUint16(buf[4:], av.Flags)
		binary.BigEndian.PutUint16(buf[6:], av.ValueNameID)
		binary.BigEndian.PutUint32(buf[8:], floatToFixed1616(float32(av.Value)))
		binary.BigEndian.PutUint32(buf[12:], floatToFixed1616(float32(av.LinkedValue)))
		return buf
	default:
		buf := make([]byte, 12)
		binary.BigEndian.PutUint16(buf[0:], 1)
		binary.BigEndian.PutUint16(buf[2:], uint16(av.AxisIndex))
		binary.BigEndian.PutUint16(buf[4:], av.Flags)
		binary.BigEndian.PutUint16(buf[6:], av.ValueNameID)
		binary.BigEndian.PutUint32(buf[8:], floatToFixed1616(float32(av.Value)))
		return buf
	}
}
