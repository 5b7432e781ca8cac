package ot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyFeatureVariationsReplacesOnlyTrailingBlock(t *testing.T) {
	head := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	old := append(append([]byte{}, head...), []byte{9, 9, 9, 9}...)

	newFV := []byte{0xAA, 0xBB}
	out := ApplyFeatureVariations(old, uint32(len(head)), newFV)

	require.Equal(t, head, out[:len(head)])
	require.Equal(t, newFV, out[len(head):])
	// Original buffer untouched.
	require.Equal(t, []byte{9, 9, 9, 9}, old[len(head):])
}

func TestApplyFeatureVariationsNilWritesEmptyTable(t *testing.T) {
	head := []byte{1, 2, 3, 4}
	old := append(append([]byte{}, head...), []byte{9, 9, 9, 9, 9, 9}...)

	out := ApplyFeatureVariations(old, uint32(len(head)), nil)
	require.Equal(t, head, out[:len(head)])

	fv, err := ParseFeatureVariations(out[len(head):])
	require.NoError(t, err)
	require.Empty(t, fv.Records())
}

func TestApplyFeatureVariationsOffsetBeyondDataIsNoop(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	out := ApplyFeatureVariations(data, 100, []byte{0xFF})
	require.Equal(t, data, out)
}
