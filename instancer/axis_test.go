package instancer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/varfont/instancer/ot"
)

var (
	tagWght = ot.MakeTag('w', 'g', 'h', 't')
	tagWdth = ot.MakeTag('w', 'd', 't', 'h')
)

func buildTestFvar(t *testing.T) *ot.Fvar {
	t.Helper()
	axes := []ot.AxisInfo{
		{Index: 0, Tag: tagWght, NameID: 256, MinValue: 100, DefaultValue: 400, MaxValue: 900},
		{Index: 1, Tag: tagWdth, NameID: 257, MinValue: 75, DefaultValue: 100, MaxValue: 125},
	}
	instances := []ot.NamedInstance{
		{Index: 0, SubfamilyNameID: 258, Coords: []float32{400, 100}},
		{Index: 1, SubfamilyNameID: 259, Coords: []float32{100, 100}},
	}
	data := ot.EncodeFvar(axes, instances)
	fvar, err := ot.ParseFvar(data)
	require.NoError(t, err)
	require.True(t, fvar.HasData())
	return fvar
}

func buildTestAvar(t *testing.T) *ot.Avar {
	t.Helper()
	segs := [][]ot.AvarSegment{
		{{FromCoord: -16384, ToCoord: -16384}, {FromCoord: 0, ToCoord: 0}, {FromCoord: 16384, ToCoord: 16384}},
		{{FromCoord: -16384, ToCoord: -16384}, {FromCoord: 0, ToCoord: 0}, {FromCoord: 16384, ToCoord: 16384}},
	}
	data := ot.EncodeAvar(segs)
	avar, err := ot.ParseAvar(data)
	require.NoError(t, err)
	require.True(t, avar.HasData())
	return avar
}

func buildTestStat(t *testing.T) *ot.Stat {
	t.Helper()
	axes := []ot.StatAxisRecord{
		{Tag: tagWght, NameID: 256, Ordering: 0},
		{Tag: tagWdth, NameID: 257, Ordering: 1},
	}
	values := []ot.StatAxisValue{
		{Format: 1, AxisIndex: 0, ValueNameID: 260, Value: 700},
		{Format: 1, AxisIndex: 1, ValueNameID: 261, Value: 100},
	}
	data := ot.EncodeStat(axes, values, 262, true)
	stat, err := ot.ParseStat(data)
	require.NoError(t, err)
	require.True(t, stat.HasData())
	fallback, ok := stat.ElidedFallbackNameID()
	require.True(t, ok)
	require.Equal(t, uint16(262), fallback)
	return stat
}

func buildTestName(t *testing.T) *ot.Name {
	t.Helper()
	entries := map[uint16]string{
		1:   "Test Family",
		2:   "Regular",
		4:   "Test Family Regular",
		6:   "TestFamily-Regular",
		256: "Weight",
		257: "Width",
		258: "Regular",
		259: "Thin",
		260: "Bold",
		261: "Normal",
		262: "Regular",
	}
	data := ot.EncodeName(entries)
	name, err := ot.ParseName(data)
	require.NoError(t, err)
	return name
}

func TestInstanceAxesPinsAxisAndDropsRecords(t *testing.T) {
	fvar := buildTestFvar(t)
	avar := buildTestAvar(t)
	stat := buildTestStat(t)
	name := buildTestName(t)

	loc := Location{tagWght: Pin(700)}
	res := InstanceAxes(fvar, avar, stat, name, loc)
	require.NotNil(t, res.FvarBytes)

	newFvar, err := ot.ParseFvar(res.FvarBytes)
	require.NoError(t, err)
	require.Equal(t, 1, newFvar.AxisCount())
	axis, ok := newFvar.FindAxis(tagWdth)
	require.True(t, ok)
	require.Equal(t, float32(100), axis.DefaultValue)
	_, hasWght := newFvar.FindAxis(tagWght)
	require.False(t, hasWght)

	// Both named instances retain a single (wdth) coordinate, so both survive.
	require.Equal(t, 2, newFvar.InstanceCount())
	for _, inst := range newFvar.NamedInstances() {
		require.Len(t, inst.Coords, 1)
		require.Equal(t, float32(100), inst.Coords[0])
	}

	require.NotNil(t, res.AvarBytes)
	newAvar, err := ot.ParseAvar(res.AvarBytes)
	require.NoError(t, err)
	require.True(t, newAvar.HasData())

	require.NotNil(t, res.StatBytes)
	newStat, err := ot.ParseStat(res.StatBytes)
	require.NoError(t, err)
	require.Len(t, newStat.AxisRecords(), 1)
	require.Equal(t, tagWdth, newStat.AxisRecords()[0].Tag)
	// The wght AxisValue record is dropped along with its axis; only the
	// wdth record survives, remapped to axis index 0.
	require.Len(t, newStat.AxisValues(), 1)
	require.Equal(t, 0, newStat.AxisValues()[0].AxisIndex)
	require.Equal(t, uint16(261), newStat.AxisValues()[0].ValueNameID)
	fallback, hasFallback := newStat.ElidedFallbackNameID()
	require.True(t, hasFallback)
	require.Equal(t, uint16(262), fallback)

	require.NotNil(t, res.NameBytes)
	newName, err := ot.ParseName(res.NameBytes)
	require.NoError(t, err)
	// Core ambient name IDs always survive.
	require.Equal(t, "Test Family", newName.Get(1))
	require.Equal(t, "TestFamily-Regular", newName.Get(6))
	// wdth's axis name and STAT value name survive; wght's do not.
	require.Equal(t, "Width", newName.Get(257))
	require.Equal(t, "Normal", newName.Get(261))
	require.Equal(t, "Regular", newName.Get(262))
	require.Empty(t, newName.Get(256))
	require.Empty(t, newName.Get(260))
	// Both instance subfamily names survive (both instances kept a coord).
	require.Equal(t, "Thin", newName.Get(259))
}

func TestInstanceAxesPinningEveryAxisDropsFvar(t *testing.T) {
	fvar := buildTestFvar(t)

	loc := Location{tagWght: Pin(700), tagWdth: Pin(100)}
	res := InstanceAxes(fvar, nil, nil, nil, loc)
	// Both axes pinned: fvar has nothing left to say.
	require.Nil(t, res.FvarBytes)
}

func TestInstanceAxesRangeLimitClampsDefaultAndInstances(t *testing.T) {
	fvar := buildTestFvar(t)

	loc := Location{tagWght: Limit(500, 600)}
	res := InstanceAxes(fvar, nil, nil, nil, loc)
	require.NotNil(t, res.FvarBytes)

	newFvar, err := ot.ParseFvar(res.FvarBytes)
	require.NoError(t, err)
	axis, ok := newFvar.FindAxis(tagWght)
	require.True(t, ok)
	require.Equal(t, float32(500), axis.MinValue)
	require.Equal(t, float32(600), axis.MaxValue)
	// Original default (400) falls outside [500,600]; must clamp to the range.
	require.Equal(t, float32(500), axis.DefaultValue)

	for _, inst := range newFvar.NamedInstances() {
		for i, tag := range []ot.Tag{tagWght, tagWdth} {
			if tag != tagWght {
				continue
			}
			require.GreaterOrEqual(t, inst.Coords[i], float32(500))
			require.LessOrEqual(t, inst.Coords[i], float32(600))
		}
	}
}

func TestInstanceAxesNilFvarIsNoop(t *testing.T) {
	res := InstanceAxes(nil, nil, nil, nil, Location{})
	require.Nil(t, res.FvarBytes)
	require.Nil(t, res.AvarBytes)
	require.Nil(t, res.StatBytes)
	require.Nil(t, res.NameBytes)
}
