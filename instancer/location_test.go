package instancer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/varfont/instancer/ot"
)

func TestNormalizeScalarPin(t *testing.T) {
	fvar := buildTestFvar(t)
	loc := Location{tagWght: Pin(400)} // default: must normalize to 0
	nloc, err := Normalize(fvar, nil, loc)
	require.NoError(t, err)
	require.Equal(t, 0.0, nloc[tagWght].Pin)

	loc = Location{tagWght: Pin(900)} // max: must normalize to 1
	nloc, err = Normalize(fvar, nil, loc)
	require.NoError(t, err)
	require.Equal(t, 1.0, nloc[tagWght].Pin)

	loc = Location{tagWght: Pin(100)} // min: must normalize to -1
	nloc, err = Normalize(fvar, nil, loc)
	require.NoError(t, err)
	require.Equal(t, -1.0, nloc[tagWght].Pin)
}

func TestNormalizeRangeKeepsDefaultInside(t *testing.T) {
	fvar := buildTestFvar(t)
	loc := Location{tagWght: Limit(500, 900)}
	nloc, err := Normalize(fvar, nil, loc)
	require.NoError(t, err)
	lim := nloc[tagWght]
	require.True(t, lim.Range)
	// The default (400, normalized 0) is excluded from [500,900], so the
	// retained range's lower bound must still include 0.
	require.LessOrEqual(t, lim.Lo, 0.0)
	require.Equal(t, 1.0, lim.Hi)
}

func TestNormalizeUnknownAxis(t *testing.T) {
	fvar := buildTestFvar(t)
	bogus := ot.MakeTag('z', 'z', 'z', 'z')
	_, err := Normalize(fvar, nil, Location{bogus: Pin(0)})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownAxis))
}

func TestNormalizeOutOfRange(t *testing.T) {
	fvar := buildTestFvar(t)
	_, err := Normalize(fvar, nil, Location{tagWght: Pin(1000)})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfRange))
}
