package ot

import (
	"encoding/binary"
	"errors"
)

// ErrNonCanonicalLayout is returned by MergeFeatureListLookups when the
// table's ScriptList/FeatureList/LookupList are not laid out in the
// canonical order every known font compiler produces, since rewriting the
// FeatureList in place requires shifting exactly the bytes between it and
// the LookupList.
var ErrNonCanonicalLayout = errors.New("ot: non-canonical GSUB table layout")

// MergeFeatureListLookups returns a fully rebuilt GSUB table with extra
// lookup indices appended to each named feature's lookup array (§4.6's
// "merge into the font's default feature list", keyed by FeatureList
// index). Only the byte range [featureListOffset, lookupListOffset) is
// replaced; ScriptList (before FeatureList) and LookupList/FeatureVariations
// (from lookupListOffset onward) are carried over untouched but shifted by
// the size delta.
func (g *GSUB) MergeFeatureListLookups(extra map[uint16][]uint16) ([]byte, error) {
	if len(extra) == 0 {
		return g.data, nil
	}
	if int(g.lookupList) <= int(g.featureList) {
		return nil, ErrNonCanonicalLayout
	}

	fl, err := g.ParseFeatureList()
	if err != nil {
		return nil, err
	}

	entries := make([]featureListEntry, fl.Count())
	for i := range entries {
		recordOff := fl.offset + 2 + i*6
		tag := Tag(binary.BigEndian.Uint32(g.data[recordOff:]))
		featureOff := fl.offset + int(binary.BigEndian.Uint16(g.data[recordOff+4:]))

		feat, err := fl.GetFeature(i)
		if err != nil {
			return nil, err
		}
		lookups := append(append([]uint16(nil), feat.Lookups...), extra[uint16(i)]...)
		entries[i] = featureListEntry{
			tag:           tag,
			lookups:       lookups,
			featureParams: copyFeatureParams(g.data, featureOff, tag),
		}
	}

	newFeatureList := encodeFeatureList(entries)

	oldGap := int(g.lookupList) - int(g.featureList)
	delta := len(newFeatureList) - oldGap

	out := make([]byte, 0, len(g.data)+delta)
	out = append(out, g.data[:g.featureList]...)
	out = append(out, newFeatureList...)
	out = append(out, g.data[g.lookupList:]...)

	binary.BigEndian.PutUint16(out[8:], uint16(int(g.lookupList)+delta))
	if g.version == 1<<16|1 && g.featureVariationsOffset != 0 {
		binary.BigEndian.PutUint32(out[10:], g.featureVariationsOffset+uint32(delta))
	}

	return out, nil
}

// featureListEntry is one feature record ready for re-encoding, with its
// featureParams payload (if any) carried over verbatim.
type featureListEntry struct {
	tag           Tag
	lookups       []uint16
	featureParams []byte // nil if absent or an unrecognized/unpreserved format
}

// copyFeatureParams preserves the three OpenType-registered featureParams
// formats with a statically-known layout (the "size" feature, stylistic
// sets ss01-ss20, character variants cv01-cv99); any other format is
// dropped (the rebuilt feature gets featureParamsOffset = 0), mirroring the
// lenient unknown-format handling in parseConditionSet.
func copyFeatureParams(data []byte, featureOff int, tag Tag) []byte {
	if featureOff < 0 || featureOff+2 > len(data) {
		return nil
	}
	rel := int(binary.BigEndian.Uint16(data[featureOff:]))
	if rel == 0 {
		return nil
	}
	abs := featureOff + rel
	length := featureParamsLength(tag, data, abs)
	if length <= 0 || abs+length > len(data) {
		return nil
	}
	return append([]byte(nil), data[abs:abs+length]...)
}

func featureParamsLength(tag Tag, data []byte, off int) int {
	s := tag.String()
	switch {
	case s == "size":
		return 10
	case isStylisticSetTag(s):
		return 4
	case isCharVariantTag(s):
		if off+14 > len(data) {
			return 0
		}
		charCount := int(binary.BigEndian.Uint16(data[off+12:]))
		return 14 + charCount*3
	default:
		return 0
	}
}

func isStylisticSetTag(s string) bool {
	return len(s) == 4 && s[0] == 's' && s[1] == 's' && isASCIIDigit(s[2]) && isASCIIDigit(s[3])
}

func isCharVariantTag(s string) bool {
	return len(s) == 4 && s[0] == 'c' && s[1] == 'v' && isASCIIDigit(s[2]) && isASCIIDigit(s[3])
}

func isASCIIDigit(b byte) bool { return b >= '0' && b <= '9' }

// encodeFeatureList re-encodes a FeatureList table: header (feature count),
// then a FeatureRecord array (tag + offset to its feature table), then the
// feature tables themselves (featureParamsOffset, lookupCount,
// lookupIndices), then any preserved featureParams payloads.
func encodeFeatureList(entries []featureListEntry) []byte {
	recordsLen := 2 + len(entries)*6

	bodies := make([][]byte, len(entries))
	for i, e := range entries {
		body := make([]byte, 4+len(e.lookups)*2)
		binary.BigEndian.PutUint16(body[2:], uint16(len(e.lookups)))
		for j, l := range e.lookups {
			binary.BigEndian.PutUint16(body[4+j*2:], l)
		}
		bodies[i] = body
	}

	tableOffsets := make([]int, len(entries))
	var featureTables []byte
	for i, body := range bodies {
		tableOffsets[i] = recordsLen + len(featureTables)
		featureTables = append(featureTables, body...)
	}

	var paramsBlock []byte
	paramsTail := recordsLen + len(featureTables)
	for i, e := range entries {
		if len(e.featureParams) == 0 {
			continue
		}
		rel := paramsTail - tableOffsets[i]
		bodyStart := tableOffsets[i] - recordsLen
		binary.BigEndian.PutUint16(featureTables[bodyStart:], uint16(rel))
		paramsBlock = append(paramsBlock, e.featureParams...)
		paramsTail += len(e.featureParams)
	}

	out := make([]byte, recordsLen, recordsLen+len(featureTables)+len(paramsBlock))
	binary.BigEndian.PutUint16(out[0:], uint16(len(entries)))
	for i, e := range entries {
		recOff := 2 + i*6
		binary.BigEndian.PutUint32(out[recOff:], uint32(e.tag))
		binary.BigEndian.PutUint16(out[recOff+4:], uint16(tableOffsets[i]))
	}
	out = append(out, featureTables...)
	out = append(out, paramsBlock...)
	return out
}
