package ot

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSimpleGlyphBytes(numPoints int) []byte {
	// header(10) + endPtsOfContours(2) + instructionLength(2) + flags(numPoints)
	data := make([]byte, 10+2+2+numPoints)
	binary.BigEndian.PutUint16(data[0:], 1) // numberOfContours
	binary.BigEndian.PutUint16(data[10:], uint16(numPoints-1))
	// instructionLength already 0
	return data
}

func TestSetOverlapFlagSimpleGlyph(t *testing.T) {
	data := buildSimpleGlyphBytes(3)
	out := SetOverlapFlag(data)
	flagsOff := 10 + 2 + 2
	require.Equal(t, uint8(flagOverlapSimple), out[flagsOff])
	// Remaining flag bytes are untouched.
	require.Equal(t, uint8(0), out[flagsOff+1])
	// Input buffer is not mutated.
	require.Equal(t, uint8(0), data[flagsOff])
}

func TestSetOverlapFlagCompositeGlyph(t *testing.T) {
	data := make([]byte, 16)
	binary.BigEndian.PutUint16(data[0:], uint16(int16(-1))) // numberOfContours < 0
	binary.BigEndian.PutUint16(data[10:], 0x0002)           // first component's flags word

	out := SetOverlapFlag(data)
	flags := binary.BigEndian.Uint16(out[10:])
	require.Equal(t, uint16(0x0002|overlapCompoundFlag), flags)
}

func TestSetOverlapFlagEmptyGlyphIsNoop(t *testing.T) {
	data := make([]byte, 10)
	out := SetOverlapFlag(data)
	require.Equal(t, data, out)
}

func TestSetOverlapFlagTooShortIsPassthrough(t *testing.T) {
	data := []byte{0, 1}
	out := SetOverlapFlag(data)
	require.Equal(t, data, out)
}
