package ot

import (
	"encoding/binary"

	"github.com/varfont/instancer/internal/xlog"
)

// condition is one axis-range test from a format-1 ConditionTable: it holds
// when the axis's normalized value falls within [min, max] inclusive,
// F2DOT14 units.
type condition struct {
	axisIndex int
	min, max  int16
}

// featureVariationRecord pairs a set of axis-range conditions with the
// per-feature lookup substitutions that apply when every condition holds.
type featureVariationRecord struct {
	conditions    []condition
	substitutions map[uint16][]uint16 // featureIndex -> alternate lookup indices
}

// FeatureVariations represents a parsed GSUB/GPOS FeatureVariations table
// (referenced by a version-1.1 table's FeatureVariationsOffset, §4.6).
type FeatureVariations struct {
	records []featureVariationRecord
}

// ParseFeatureVariations parses a FeatureVariations table.
func ParseFeatureVariations(data []byte) (*FeatureVariations, error) {
	if len(data) < 8 {
		return nil, ErrInvalidTable
	}

	majorVersion := binary.BigEndian.Uint16(data[0:])
	if majorVersion != 1 {
		return nil, ErrInvalidFormat
	}

	count := int(binary.BigEndian.Uint32(data[4:]))
	fv := &FeatureVariations{}

	recordsStart := 8
	for i := 0; i < count; i++ {
		off := recordsStart + i*8
		if off+8 > len(data) {
			break
		}

		condSetOff := binary.BigEndian.Uint32(data[off:])
		substOff := binary.BigEndian.Uint32(data[off+4:])

		var rec featureVariationRecord
		if condSetOff != 0 && int(condSetOff) < len(data) {
			rec.conditions = parseConditionSet(data[condSetOff:])
		}
		if substOff != 0 && int(substOff) < len(data) {
			rec.substitutions = parseFeatureTableSubstitution(data[substOff:])
		}
		fv.records = append(fv.records, rec)
	}

	return fv, nil
}

// parseConditionSet parses a ConditionSet table. Only format 1
// (AxisRange) conditions are defined by the spec; any other format is
// skipped, effectively treating it as "always true" for the safe/lenient
// behavior the instancer uses elsewhere for unrecognized conditions.
func parseConditionSet(setData []byte) []condition {
	if len(setData) < 2 {
		return nil
	}
	count := int(binary.BigEndian.Uint16(setData[0:]))

	var conds []condition
	for i := 0; i < count; i++ {
		off := 2 + i*4
		if off+4 > len(setData) {
			break
		}
		condOff := int(binary.BigEndian.Uint32(setData[off:]))
		if condOff+8 > len(setData) {
			continue
		}
		format := binary.BigEndian.Uint16(setData[condOff:])
		if format != 1 {
			xlog.Tracer().Infof("WARNING: condition set has unrecognized format %d, treating as always-true", format)
			continue
		}
		conds = append(conds, condition{
			axisIndex: int(binary.BigEndian.Uint16(setData[condOff+2:])),
			min:       int16(binary.BigEndian.Uint16(setData[condOff+4:])),
			max:       int16(binary.BigEndian.Uint16(setData[condOff+6:])),
		})
	}
	return conds
}

// parseFeatureTableSubstitution parses a FeatureTableSubstitution table
// (subData starts at the table's own base, so internal offsets are
// relative to subData).
func parseFeatureTableSubstitution(subData []byte) map[uint16][]uint16 {
	if len(subData) < 6 {
		return nil
	}
	majorVersion := binary.BigEndian.Uint16(subData[0:])
	if majorVersion != 1 {
		return nil
	}
	count := int(binary.BigEndian.Uint16(subData[4:]))

	result := make(map[uint16][]uint16, count)
	off := 6
	for i := 0; i < count; i++ {
		if off+6 > len(subData) {
			break
		}
		featureIdx := binary.BigEndian.Uint16(subData[off:])
		altOff := int(binary.BigEndian.Uint32(subData[off+2:]))
		off += 6

		if altOff+4 > len(subData) {
			continue
		}
		lookupCount := int(binary.BigEndian.Uint16(subData[altOff+2:]))
		if altOff+4+lookupCount*2 > len(subData) {
			continue
		}
		lookups := make([]uint16, lookupCount)
		for j := 0; j < lookupCount; j++ {
			lookups[j] = binary.BigEndian.Uint16(subData[altOff+4+j*2:])
		}
		result[featureIdx] = lookups
	}
	return result
}

// FindMatchingRecord returns the index of the first record whose
// conditions all hold at normalizedCoords (F2DOT14 units), or
// VariationsNotFoundIndex if none match. A record with no conditions
// always matches.
func (fv *FeatureVariations) FindMatchingRecord(normalizedCoords []int) uint32 {
	if fv == nil {
		return VariationsNotFoundIndex
	}
	for i, rec := range fv.records {
		if recordMatches(rec, normalizedCoords) {
			return uint32(i)
		}
	}
	return VariationsNotFoundIndex
}

func recordMatches(rec featureVariationRecord, coords []int) bool {
	for _, c := range rec.conditions {
		var v int16
		if c.axisIndex >= 0 && c.axisIndex < len(coords) {
			v = int16(coords[c.axisIndex])
		}
		if v < c.min || v > c.max {
			return false
		}
	}
	return true
}

// GetSubstituteLookups returns the alternate lookup indices the matched
// record substitutes for featureIndex, or nil if that record carries no
// substitution for this feature.
func (fv *FeatureVariations) GetSubstituteLookups(recordIndex uint32, featureIndex uint16) []uint16 {
	if fv == nil || recordIndex >= uint32(len(fv.records)) {
		return nil
	}
	return fv.records[recordIndex].substitutions[featureIndex]
}

// RecordCount returns the number of FeatureVariations records.
func (fv *FeatureVariations) RecordCount() int {
	if fv == nil {
		return 0
	}
	return len(fv.records)
}

// Condition is one axis-range test, exported for the feature-variation
// pruner (§4.6), which needs to inspect and rewrite condition bounds.
type Condition struct {
	AxisIndex int
	Min, Max  int16
}

// FeatureVariationRecord is one exported (condition set, substitutions)
// pair, for the pruner to inspect, rewrite, and re-encode.
type FeatureVariationRecord struct {
	Conditions    []Condition
	Substitutions map[uint16][]uint16
}

// Records returns a copy of the table's records in their original order,
// condition sets and substitution maps exported as plain data.
func (fv *FeatureVariations) Records() []FeatureVariationRecord {
	if fv == nil {
		return nil
	}
	out := make([]FeatureVariationRecord, len(fv.records))
	for i, rec := range fv.records {
		conds := make([]Condition, len(rec.conditions))
		for j, c := range rec.conditions {
			conds[j] = Condition{AxisIndex: c.axisIndex, Min: c.min, Max: c.max}
		}
		subs := make(map[uint16][]uint16, len(rec.substitutions))
		for k, v := range rec.substitutions {
			subs[k] = v
		}
		out[i] = FeatureVariationRecord{Conditions: conds, Substitutions: subs}
	}
	return out
}

// EncodeFeatureVariations serializes a FeatureVariations table (format 1)
// from a list of records, for the pruner (§4.6) to write back a reduced
// condition set.
func EncodeFeatureVariations(records []FeatureVariationRecord) []byte {
	recordsStart := 8
	headerSize := recordsStart + len(records)*8

	var condSets, substTables [][]byte
	condOffsets := make([]int, len(records))
	substOffsets := make([]int, len(records))

	off := headerSize
	for i, rec := range records {
		cs := encodeConditionSet(rec.Conditions)
		condSets = append(condSets, cs)
		condOffsets[i] = off
		off += len(cs)
	}
	for i, rec := range records {
		st := encodeFeatureTableSubstitution(rec.Substitutions)
		substTables = append(substTables, st)
		substOffsets[i] = off
		off += len(st)
	}

	buf := make([]byte, off)
	binary.BigEndian.PutUint16(buf[0:], 1) // majorVersion
	binary.BigEndian.PutUint16(buf[2:], 0) // minorVersion
	binary.BigEndian.PutUint32(buf[4:], uint32(len(records)))

	for i := range records {
		rOff := recordsStart + i*8
		binary.BigEndian.PutUint32(buf[rOff:], uint32(condOffsets[i]))
		binary.BigEndian.PutUint32(buf[rOff+4:], uint32(substOffsets[i]))
		copy(buf[condOffsets[i]:], condSets[i])
		copy(buf[substOffsets[i]:], substTables[i])
	}

	return buf
}

// ApplyFeatureVariations rewrites a GSUB/GPOS table's trailing
// FeatureVariations block in place, leaving the script/feature/lookup list
// data (and their offsets, all relative to the table start and all below
// fvOffset) untouched. newFV nil writes an empty (zero-record) table rather
// than shrinking the header, since version-1.1 tables keep their 4-byte
// featureVariationsOffset field regardless of whether it references data.
func ApplyFeatureVariations(data []byte, fvOffset uint32, newFV []byte) []byte {
	if newFV == nil {
		newFV = EncodeFeatureVariations(nil)
	}
	if int(fvOffset) > len(data) {
		return data
	}
	out := make([]byte, int(fvOffset)+len(newFV))
	copy(out, data[:fvOffset])
	copy(out[fvOffset:], newFV)
	return out
}

func encodeConditionSet(conds []Condition) []byte {
	headerSize := 2 + len(conds)*4
	condTableSize := 8
	buf := make([]byte, headerSize+len(conds)*condTableSize)
	binary.BigEndian.PutUint16(buf[0:], uint16(len(conds)))
	for i, c := range conds {
		tableOff := headerSize + i*condTableSize
		binary.BigEndian.PutUint32(buf[2+i*4:], uint32(tableOff))
		binary.BigEndian.PutUint16(buf[tableOff:], 1) // format 1: AxisRange
		binary.BigEndian.PutUint16(buf[tableOff+2:], uint16(c.AxisIndex))
		binary.BigEndian.PutUint16(buf[tableOff+4:], uint16(c.Min))
		binary.BigEndian.PutUint16(buf[tableOff+6:], uint16(c.Max))
	}
	return buf
}

func encodeFeatureTableSubstitution(subs map[uint16][]uint16) []byte {
	featureIndices := make([]uint16, 0, len(subs))
	for k := range subs {
		featureIndices = append(featureIndices, k)
	}
	for i := 1; i < len(featureIndices); i++ {
		for j := i; j > 0 && featureIndices[j-1] > featureIndices[j]; j-- {
			featureIndices[j-1], featureIndices[j] = featureIndices[j], featureIndices[j-1]
		}
	}

	headerSize := 6 + len(featureIndices)*6
	var altTables [][]byte
	off := headerSize
	altOffsets := make([]int, len(featureIndices))
	for i, fi := range featureIndices {
		lookups := subs[fi]
		at := make([]byte, 4+len(lookups)*2)
		binary.BigEndian.PutUint16(at[2:], uint16(len(lookups)))
		for j, l := range lookups {
			binary.BigEndian.PutUint16(at[4+j*2:], l)
		}
		altTables = append(altTables, at)
		altOffsets[i] = off
		off += len(at)
	}

	buf := make([]byte, off)
	binary.BigEndian.PutUint16(buf[0:], 1) // majorVersion
	binary.BigEndian.PutUint16(buf[2:], 0) // minorVersion
	binary.BigEndian.PutUint16(buf[4:], uint16(len(featureIndices)))
	for i, fi := range featureIndices {
		recOff := 6 + i*6
		binary.BigEndian.PutUint16(buf[recOff:], fi)
		binary.BigEndian.PutUint32(buf[recOff+2:], uint32(altOffsets[i]))
		copy(buf[altOffsets[i]:], altTables[i])
	}
	return buf
}
