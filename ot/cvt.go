package ot

import "encoding/binary"

// Cvt represents a parsed 'cvt ' (Control Value Table) table: a flat array
// of FWORD values referenced by TrueType hinting instructions and varied by
// the 'cvar' table.
type Cvt struct {
	values []int16
}

// ParseCvt parses a 'cvt ' table.
func ParseCvt(data []byte) (*Cvt, error) {
	count := len(data) / 2
	values := make([]int16, count)
	for i := 0; i < count; i++ {
		values[i] = int16(binary.BigEndian.Uint16(data[i*2:]))
	}
	return &Cvt{values: values}, nil
}

// Count returns the number of entries in the table.
func (c *Cvt) Count() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

// Get returns the value at index, or 0 if out of range.
func (c *Cvt) Get(index int) int16 {
	if c == nil || index < 0 || index >= len(c.values) {
		return 0
	}
	return c.values[index]
}

// Values returns a copy of the table's raw values.
func (c *Cvt) Values() []int16 {
	if c == nil {
		return nil
	}
	return append([]int16(nil), c.values...)
}

// EncodeCvt serializes a 'cvt ' table from a value slice.
func EncodeCvt(values []int16) []byte {
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}
