package instancer

import (
	"github.com/varfont/instancer/ot"
	"golang.org/x/text/unicode/norm"
)

// AxisResult carries the rewritten axis-descriptor tables from §4.7. A nil
// byte slice means the table should be dropped from the output font
// entirely (fvar with zero surviving axes, an avar/STAT with nothing left
// to say).
type AxisResult struct {
	FvarBytes []byte
	AvarBytes []byte
	StatBytes []byte
	NameBytes []byte
}

// InstanceAxes runs last in the pipeline (§4.8 step 6): it drops pinned axes
// from fvar and avar, renumbers the survivors, rewrites named instances and
// STAT axis-value records to match, and garbage-collects name records that
// only the removed entries referenced.
func InstanceAxes(fvar *ot.Fvar, avar *ot.Avar, stat *ot.Stat, name *ot.Name, loc Location) *AxisResult {
	res := &AxisResult{}
	if fvar == nil || !fvar.HasData() {
		return res
	}

	origAxes := fvar.AxisInfos()
	indexMap := make([]int, len(origAxes)) // old index -> new index, -1 if pinned away
	dropNameIDs := map[uint16]bool{}       // name IDs referenced by removed entries
	var newAxes []ot.AxisInfo
	for _, a := range origAxes {
		lim, pinned := loc[a.Tag]
		if pinned && !lim.Range {
			indexMap[a.Index] = -1
			dropNameIDs[a.NameID] = true
			continue
		}
		out := a
		if pinned && lim.Range {
			lo, hi := float32(lim.Lo), float32(lim.Hi)
			out.MinValue = lo
			out.MaxValue = hi
			if out.DefaultValue < lo {
				out.DefaultValue = lo
			}
			if out.DefaultValue > hi {
				out.DefaultValue = hi
			}
		}
		indexMap[a.Index] = len(newAxes)
		out.Index = len(newAxes)
		newAxes = append(newAxes, out)
	}

	keepNameIDs := map[uint16]bool{
		1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 16: true, 17: true,
	}
	for _, a := range newAxes {
		keepNameIDs[a.NameID] = true
	}

	var newInstances []ot.NamedInstance
	for _, inst := range fvar.NamedInstances() {
		var coords []float32
		for _, a := range origAxes {
			if indexMap[a.Index] < 0 {
				continue
			}
			v := inst.Coords[a.Index]
			if lim, ok := loc[a.Tag]; ok && lim.Range {
				if v < float32(lim.Lo) {
					v = float32(lim.Lo)
				}
				if v > float32(lim.Hi) {
					v = float32(lim.Hi)
				}
			}
			coords = append(coords, v)
		}
		if len(coords) == 0 {
			dropNameIDs[inst.SubfamilyNameID] = true
			if inst.PostScriptNameID != 0 {
				dropNameIDs[inst.PostScriptNameID] = true
			}
			continue
		}
		out := inst
		out.Coords = coords
		out.Index = len(newInstances)
		newInstances = append(newInstances, out)
		keepNameIDs[out.SubfamilyNameID] = true
		if out.PostScriptNameID != 0 {
			keepNameIDs[out.PostScriptNameID] = true
		}
	}

	if len(newAxes) > 0 {
		res.FvarBytes = ot.EncodeFvar(newAxes, newInstances)
	}

	if avar != nil && avar.HasData() && len(newAxes) > 0 {
		var segs [][]ot.AvarSegment
		for _, a := range origAxes {
			if indexMap[a.Index] < 0 {
				continue
			}
			segs = append(segs, avar.AxisSegments(a.Index))
		}
		res.AvarBytes = ot.EncodeAvar(segs)
	}

	if stat != nil && stat.HasData() {
		statAxes := stat.AxisRecords()
		statIndexMap := make([]int, len(statAxes))
		var newStatAxes []ot.StatAxisRecord
		pinnedStat := map[int]bool{}
		for i, sa := range statAxes {
			if lim, ok := loc[sa.Tag]; ok && !lim.Range {
				statIndexMap[i] = -1
				pinnedStat[i] = true
				dropNameIDs[sa.NameID] = true
				continue
			}
			statIndexMap[i] = len(newStatAxes)
			newStatAxes = append(newStatAxes, sa)
			keepNameIDs[sa.NameID] = true
		}

		var newValues []ot.StatAxisValue
		for _, av := range stat.AxisValues() {
			if av.AxisIndex < 0 || av.AxisIndex >= len(statIndexMap) || pinnedStat[av.AxisIndex] {
				dropNameIDs[av.ValueNameID] = true
				continue
			}
			nv := av
			nv.AxisIndex = statIndexMap[av.AxisIndex]
			newValues = append(newValues, nv)
			keepNameIDs[nv.ValueNameID] = true
		}

		if len(newStatAxes) > 0 && len(newValues) > 0 {
			fallbackID, hasFallback := stat.ElidedFallbackNameID()
			if hasFallback {
				keepNameIDs[fallbackID] = true
			}
			res.StatBytes = ot.EncodeStat(newStatAxes, newValues, fallbackID, hasFallback)
		}
	}

	if name != nil {
		entries := name.Entries()
		pruned := make(map[uint16]string, len(entries))
		for id, s := range entries {
			if dropNameIDs[id] && !keepNameIDs[id] {
				continue
			}
			pruned[id] = norm.NFC.String(s)
		}
		res.NameBytes = ot.EncodeName(pruned)
	}

	return res
}
