package instancer

import "github.com/varfont/instancer/ot"

// PruneResult is the outcome of instancing a FeatureVariations table (§4.6).
type PruneResult struct {
	// Bytes is the re-encoded table, or nil when no records remain.
	Bytes []byte
	// Empty reports that the table should be removed entirely.
	Empty bool
	// DefaultSubstitutions holds feature-index substitutions from records
	// whose condition set became unconditionally true; the caller merges
	// these into the font's default feature list (order-preserving,
	// concatenated per feature index).
	DefaultSubstitutions map[uint16][]uint16
}

// PruneFeatureVariations evaluates and clips every record's condition set
// against loc, merging always-true records into DefaultSubstitutions and
// dropping records whose conditions can never hold (§4.6).
func PruneFeatureVariations(fv *ot.FeatureVariations, axisTagOrder []ot.Tag, loc NormalizedLocation) *PruneResult {
	res := &PruneResult{DefaultSubstitutions: map[uint16][]uint16{}}
	if fv == nil {
		res.Empty = true
		return res
	}

	var kept []ot.FeatureVariationRecord
	for _, rec := range fv.Records() {
		newConds, always, drop := pruneConditions(rec.Conditions, axisTagOrder, loc)
		if drop {
			continue
		}
		if always {
			for fi, lookups := range rec.Substitutions {
				res.DefaultSubstitutions[fi] = append(res.DefaultSubstitutions[fi], lookups...)
			}
			continue
		}
		kept = append(kept, ot.FeatureVariationRecord{Conditions: newConds, Substitutions: rec.Substitutions})
	}

	if len(kept) == 0 {
		res.Empty = true
		return res
	}
	res.Bytes = ot.EncodeFeatureVariations(kept)
	return res
}

// pruneConditions evaluates one record's condition set. always reports that
// every remaining condition resolved to unconditionally true; drop reports
// that some condition can never hold under loc.
func pruneConditions(conds []ot.Condition, axisTagOrder []ot.Tag, loc NormalizedLocation) (kept []ot.Condition, always bool, drop bool) {
	for _, c := range conds {
		var tag ot.Tag
		if c.AxisIndex >= 0 && c.AxisIndex < len(axisTagOrder) {
			tag = axisTagOrder[c.AxisIndex]
		}
		lim, inLoc := loc[tag]
		if !inLoc {
			kept = append(kept, c)
			continue
		}

		if !lim.Range {
			v := int16(floatToF2DOT14(lim.Pin))
			if v < c.Min || v > c.Max {
				return nil, false, true
			}
			continue // condition resolved true, drop it
		}

		lo := int16(floatToF2DOT14(lim.Lo))
		hi := int16(floatToF2DOT14(lim.Hi))
		newMin, newMax := c.Min, c.Max
		if lo > newMin {
			newMin = lo
		}
		if hi < newMax {
			newMax = hi
		}
		if newMin > newMax {
			return nil, false, true
		}
		if newMin <= lo && newMax >= hi {
			continue // intersection covers the whole retained domain
		}
		kept = append(kept, ot.Condition{AxisIndex: c.AxisIndex, Min: newMin, Max: newMax})
	}
	return kept, len(kept) == 0, false
}
