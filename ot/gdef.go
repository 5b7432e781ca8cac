// Package ot provides OpenType font table parsing.
package ot

import (
	"encoding/binary"
)

// GlyphClass constants for GDEF glyph classification.
const (
	GlyphClassUnclassified = 0 // Unclassified glyph
	GlyphClassBase         = 1 // Base glyph (single character, spacing glyph)
	GlyphClassLigature     = 2 // Ligature glyph (multiple characters, spacing glyph)
	GlyphClassMark         = 3 // Mark glyph (non-spacing combining glyph)
	GlyphClassComponent    = 4 // Component glyph (part of a ligature)
)

// GDEF represents the Glyph Definition table.
type GDEF struct {
	data []byte

	// Version (major.minor)
	versionMajor uint16
	versionMinor uint16

	// Glyph class definitions (optional)
	glyphClassDef *ClassDef

	// Attachment point list (optional)
	attachList *AttachList

	// Ligature caret list (optional)
	ligCaretList *LigCaretList

	// Mark attachment class definitions (optional)
	markAttachClassDef *ClassDef

	// Mark glyph sets (version >= 1.2, optional)
	markGlyphSetsDef *MarkGlyphSetsDef

	// Layout item-variation store (version >= 1.3, optional). Backs
	// VariationIndex tables referenced from GPOS ValueRecords, Anchors, and
	// this table's own LigCaretList.
	itemVarStore       *ItemVariationStore
	itemVarStoreOffset int
}

// AttachList contains attachment points for glyphs.
type AttachList struct {
	coverage     *Coverage
	attachPoints [][]uint16 // Attachment point indices for each glyph
}

// LigCaretList contains ligature caret positions.
type LigCaretList struct {
	coverage  *Coverage
	ligGlyphs []LigGlyph
}

// LigGlyph contains caret values for a ligature glyph.
type LigGlyph struct {
	caretValues []CaretValue
}

// CaretValue represents a caret position within a ligature.
type CaretValue struct {
	format     uint16
	coordinate int16  // Format 1: X or Y coordinate
	pointIndex uint16 // Format 2: contour point index
	// Format 3: coordinate + VariationIndex table, or NoVariationIndex.
	deviceVarIdx VariationIndex
}

// MarkGlyphSetsDef contains mark glyph set definitions.
type MarkGlyphSetsDef struct {
	coverages []*Coverage
}

// ParseGDEF parses the GDEF table from raw data.
func ParseGDEF(data []byte) (*GDEF, error) {
	if len(data) < 12 {
		return nil, ErrInvalidTable
	}

	versionMajor := binary.BigEndian.Uint16(data[0:])
	versionMinor := binary.BigEndian.Uint16(data[2:])

	// Validate version
	if versionMajor != 1 || (versionMinor != 0 && versionMinor != 2 && versionMinor != 3) {
		return nil, ErrInvalidFormat
	}

	gdef := &GDEF{
		data:         data,
		versionMajor: versionMajor,
		versionMinor: versionMinor,
	}

	// Parse offsets
	glyphClassDefOffset := int(binary.BigEndian.Uint16(data[4:]))
	attachListOffset := int(binary.BigEndian.Uint16(data[6:]))
	ligCaretListOffset := int(binary.BigEndian.Uint16(data[8:]))
	markAttachClassDefOffset := int(binary.BigEndian.Uint16(data[10:]))

	var markGlyphSetsDefOffset int
	if versionMinor >= 2 && len(data) >= 14 {
		markGlyphSetsDefOffset = int(binary.BigEndian.Uint16(data[12:]))
	}

	var itemVarStoreOffset int
	if versionMinor >= 3 && len(data) >= 18 {
		itemVarStoreOffset = int(binary.BigEndian.Uint32(data[14:]))
	}

	// Parse GlyphClassDef
	if glyphClassDefOffset != 0 {
		cd, err := ParseClassDef(data, glyphClassDefOffset)
		if err != nil {
			return nil, err
		}
		gdef.glyphClassDef = cd
	}

	// Parse AttachList
	if attachListOffset != 0 {
		al, err := parseAttachList(data, attachListOffset)
		if err != nil {
			return nil, err
		}
		gdef.attachList = al
	}

	// Parse LigCaretList
	if ligCaretListOffset != 0 {
		lcl, err := parseLigCaretList(data, ligCaretListOffset)
		if err != nil {
			return nil, err
		}
		gdef.ligCaretList = lcl
	}

	// Parse MarkAttachClassDef
	if markAttachClassDefOffset != 0 {
		cd, err := ParseClassDef(data, markAttachClassDefOffset)
		if err != nil {
			return nil, err
		}
		gdef.markAttachClassDef = cd
	}

	// Parse MarkGlyphSetsDef (version >= 1.2)
	if markGlyphSetsDefOffset != 0 {
		mgsd, err := parseMarkGlyphSetsDef(data, markGlyphSetsDefOffset)
		if err != nil {
			return nil, err
		}
		gdef.markGlyphSetsDef = mgsd
	}

	// Parse the layout item-variation store (version >= 1.3)
	if itemVarStoreOffset != 0 && itemVarStoreOffset < len(data) {
		vs, err := parseItemVariationStore(data[itemVarStoreOffset:])
		if err != nil {
			return nil, err
		}
		gdef.itemVarStore = vs
		gdef.itemVarStoreOffset = itemVarStoreOffset
	}

	return gdef, nil
}

// ItemVarStore returns the GDEF layout item-variation store, or nil if the
// table has no variation data (version < 1.3, or offset 0).
func (g *GDEF) ItemVarStore() *ItemVariationStore {
	return g.itemVarStore
}

// SetItemVarStore replaces the layout item-variation store, used by the
// item-variation-store instancer (§4.3) once it has mutated the store in
// place, or cleared it to nil when the store became empty (§4.5: the table
// then drops its variation-store slot and its version downgrades).
func (g *GDEF) SetItemVarStore(vs *ItemVariationStore) {
	g.itemVarStore = vs
	if vs == nil {
		g.versionMinor = 2
		if g.markGlyphSetsDef == nil {
			g.versionMinor = 0
		}
	}
}

// parseAttachList parses the AttachList subtable.
func parseAttachList(data []byte, offset int) (*AttachList, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOffset := int(binary.BigEndian.Uint16(data[offset:]))
	glyphCount := int(binary.BigEndian.Uint16(data[offset+2:]))

	if offset+4+glyphCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	// Parse coverage
	cov, err := ParseCoverage(data, offset+coverageOffset)
	if err != nil {
		return nil, err
	}

	al := &AttachList{
		coverage:     cov,
		attachPoints: make([][]uint16, glyphCount),
	}

	// Parse attachment point tables
	for i := 0; i < glyphCount; i++ {
		attachPointOffset := int(binary.BigEndian.Uint16(data[offset+4+i*2:]))
		if attachPointOffset == 0 {
			continue
		}

		apOff := offset + attachPointOffset
		if apOff+2 > len(data) {
			return nil, ErrInvalidOffset
		}

		pointCount := int(binary.BigEndian.Uint16(data[apOff:]))
		if apOff+2+pointCount*2 > len(data) {
			return nil, ErrInvalidOffset
		}

		al.attachPoints[i] = make([]uint16, pointCount)
		for j := 0; j < pointCount; j++ {
			al.attachPoints[i][j] = binary.BigEndian.Uint16(data[apOff+2+j*2:])
		}
	}

	return al, nil
}

// parseLigCaretList parses the LigCaretList subtable.
func parseLigCaretList(data []byte, offset int) (*LigCaretList, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOffset := int(binary.BigEndian.Uint16(data[offset:]))
	ligGlyphCount := int(binary.BigEndian.Uint16(data[offset+2:]))

	if offset+4+ligGlyphCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	// Parse coverage
	cov, err := ParseCoverage(data, offset+coverageOffset)
	if err != nil {
		return nil, err
	}

	lcl := &LigCaretList{
		coverage:  cov,
		ligGlyphs: make([]LigGlyph, ligGlyphCount),
	}

	// Parse LigGlyph tables
	for i := 0; i < ligGlyphCount; i++ {
		ligGlyphOffset := int(binary.BigEndian.Uint16(data[offset+4+i*2:]))
		if ligGlyphOffset == 0 {
			continue
		}

		lgOff := offset + ligGlyphOffset
		if lgOff+2 > len(data) {
			return nil, ErrInvalidOffset
		}

		caretCount := int(binary.BigEndian.Uint16(data[lgOff:]))
		if lgOff+2+caretCount*2 > len(data) {
			return nil, ErrInvalidOffset
		}

		lcl.ligGlyphs[i].caretValues = make([]CaretValue, caretCount)

		// Parse CaretValue tables
		for j := 0; j < caretCount; j++ {
			caretOffset := int(binary.BigEndian.Uint16(data[lgOff+2+j*2:]))
			cvOff := lgOff + caretOffset
			if cvOff+4 > len(data) {
				return nil, ErrInvalidOffset
			}

			format := binary.BigEndian.Uint16(data[cvOff:])
			cv := CaretValue{format: format, deviceVarIdx: NoVariationIndex}

			switch format {
			case 1:
				cv.coordinate = int16(binary.BigEndian.Uint16(data[cvOff+2:]))
			case 2:
				cv.pointIndex = binary.BigEndian.Uint16(data[cvOff+2:])
			case 3:
				if cvOff+6 > len(data) {
					return nil, ErrInvalidOffset
				}
				cv.coordinate = int16(binary.BigEndian.Uint16(data[cvOff+2:]))
				devOff := int(binary.BigEndian.Uint16(data[cvOff+4:]))
				cv.deviceVarIdx = parseDeviceOrVariationIndex(data, cvOff+devOff)
			}

			lcl.ligGlyphs[i].caretValues[j] = cv
		}
	}

	return lcl, nil
}

// parseMarkGlyphSetsDef parses the MarkGlyphSetsDef subtable.
func parseMarkGlyphSetsDef(data []byte, offset int) (*MarkGlyphSetsDef, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	markSetCount := int(binary.BigEndian.Uint16(data[offset+2:]))
	if offset+4+markSetCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	mgsd := &MarkGlyphSetsDef{
		coverages: make([]*Coverage, markSetCount),
	}

	// Parse coverage offsets (32-bit offsets)
	for i := 0; i < markSetCount; i++ {
		covOffset := int(binary.BigEndian.Uint32(data[offset+4+i*4:]))
		if covOffset == 0 {
			continue
		}

		cov, err := ParseCoverage(data, offset+covOffset)
		if err != nil {
			return nil, err
		}
		mgsd.coverages[i] = cov
	}

	return mgsd, nil
}

// Version returns the GDEF table version as (major, minor).
func (g *GDEF) Version() (uint16, uint16) {
	return g.versionMajor, g.versionMinor
}

// HasGlyphClasses returns true if the GDEF table has glyph class definitions.
func (g *GDEF) HasGlyphClasses() bool {
	return g.glyphClassDef != nil
}

// GetGlyphClass returns the glyph class for a glyph ID.
// Returns GlyphClassUnclassified (0) if no class is defined.
func (g *GDEF) GetGlyphClass(glyph GlyphID) int {
	if g.glyphClassDef == nil {
		return GlyphClassUnclassified
	}
	return g.glyphClassDef.GetClass(glyph)
}

// IsBaseGlyph returns true if the glyph is classified as a base glyph.
func (g *GDEF) IsBaseGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassBase
}

// IsLigatureGlyph returns true if the glyph is classified as a ligature glyph.
func (g *GDEF) IsLigatureGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassLigature
}

// IsMarkGlyph returns true if the glyph is classified as a mark glyph.
func (g *GDEF) IsMarkGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassMark
}

// IsComponentGlyph returns true if the glyph is classified as a component glyph.
func (g *GDEF) IsComponentGlyph(glyph GlyphID) bool {
	return g.GetGlyphClass(glyph) == GlyphClassComponent
}

// HasMarkAttachClasses returns true if the GDEF table has mark attachment class definitions.
func (g *GDEF) HasMarkAttachClasses() bool {
	return g.markAttachClassDef != nil
}

// GetMarkAttachClass returns the mark attachment class for a glyph ID.
// Returns 0 if no class is defined.
func (g *GDEF) GetMarkAttachClass(glyph GlyphID) int {
	if g.markAttachClassDef == nil {
		return 0
	}
	return g.markAttachClassDef.GetClass(glyph)
}

// HasAttachList returns true if the GDEF table has an attachment point list.
func (g *GDEF) HasAttachList() bool {
	return g.attachList != nil
}

// GetAttachPoints returns the attachment point indices for a glyph.
// Returns nil if the glyph has no attachment points defined.
func (g *GDEF) GetAttachPoints(glyph GlyphID) []uint16 {
	if g.attachList == nil {
		return nil
	}
	idx := g.attachList.coverage.GetCoverage(glyph)
	if idx == NotCovered || int(idx) >= len(g.attachList.attachPoints) {
		return nil
	}
	return g.attachList.attachPoints[idx]
}

// HasLigCaretList returns true if the GDEF table has a ligature caret list.
func (g *GDEF) HasLigCaretList() bool {
	return g.ligCaretList != nil
}

// GetLigCaretCount returns the number of caret positions for a ligature glyph.
// Returns 0 if the glyph has no caret positions defined.
func (g *GDEF) GetLigCaretCount(glyph GlyphID) int {
	if g.ligCaretList == nil {
		return 0
	}
	idx := g.ligCaretList.coverage.GetCoverage(glyph)
	if idx == NotCovered || int(idx) >= len(g.ligCaretList.ligGlyphs) {
		return 0
	}
	return len(g.ligCaretList.ligGlyphs[idx].caretValues)
}

// GetLigCarets returns the caret values for a ligature glyph.
// Returns nil if the glyph has no caret positions defined.
func (g *GDEF) GetLigCarets(glyph GlyphID) []CaretValue {
	if g.ligCaretList == nil {
		return nil
	}
	idx := g.ligCaretList.coverage.GetCoverage(glyph)
	if idx == NotCovered || int(idx) >= len(g.ligCaretList.ligGlyphs) {
		return nil
	}
	return g.ligCaretList.ligGlyphs[idx].caretValues
}

// LigCaretCoverageGlyphs returns the glyphs covered by the LigCaretList, in
// coverage order matching GetLigCarets(glyph) for each.
func (g *GDEF) LigCaretCoverageGlyphs() []GlyphID {
	if g.ligCaretList == nil {
		return nil
	}
	return g.ligCaretList.coverage.Glyphs()
}

// EncodeGDEF serializes a GDEF table reusing this table's glyph class,
// attachment list, mark-attachment class, and mark glyph set subtables
// verbatim (none of those are affected by instancing) while substituting a
// freshly rewritten ligature caret list and item-variation store.
func EncodeGDEF(g *GDEF, ligCarets map[GlyphID][]CaretValue, itemVarStoreBytes []byte) []byte {
	versionMinor := g.versionMinor
	hasVarStore := itemVarStoreBytes != nil
	if !hasVarStore && versionMinor == 3 {
		versionMinor = 2
		if g.markGlyphSetsDef == nil {
			versionMinor = 0
		}
	}

	headerSize := 12
	if versionMinor >= 2 {
		headerSize = 14
	}
	if versionMinor >= 3 {
		headerSize = 18
	}

	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[0:], 1)
	binary.BigEndian.PutUint16(buf[2:], versionMinor)

	off := headerSize
	var glyphClassBytes, attachListBytes, ligCaretBytes, markAttachBytes, markGlyphSetsBytes []byte

	if g.glyphClassDef != nil {
		glyphClassBytes = encodeClassDef(g.glyphClassDef)
	}
	if g.attachList != nil {
		attachListBytes = encodeAttachList(g.attachList)
	}
	if len(ligCarets) > 0 {
		ligCaretBytes = encodeLigCaretList(ligCarets)
	}
	if g.markAttachClassDef != nil {
		markAttachBytes = encodeClassDef(g.markAttachClassDef)
	}
	if versionMinor >= 2 && g.markGlyphSetsDef != nil {
		markGlyphSetsBytes = encodeMarkGlyphSetsDef(g.markGlyphSetsDef)
	}

	writeOffset := func(headerOff int, data []byte) {
		if len(data) == 0 {
			return
		}
		if headerOff+2 <= len(buf) {
			binary.BigEndian.PutUint16(buf[headerOff:], uint16(off))
		}
		buf = append(buf, data...)
		off += len(data)
	}

	writeOffset(4, glyphClassBytes)
	writeOffset(6, attachListBytes)
	writeOffset(8, ligCaretBytes)
	writeOffset(10, markAttachBytes)
	if versionMinor >= 2 {
		writeOffset(12, markGlyphSetsBytes)
	}
	if versionMinor >= 3 {
		if hasVarStore {
			binary.BigEndian.PutUint32(buf[14:], uint32(off))
			buf = append(buf, itemVarStoreBytes...)
		} else {
			binary.BigEndian.PutUint32(buf[14:], 0)
		}
	}

	return buf
}

// encodeClassDef serializes a ClassDef (format 2, glyph ranges) from its
// glyph->class mapping.
func encodeClassDef(cd *ClassDef) []byte {
	mapping := cd.Mapping()
	glyphs := make([]GlyphID, 0, len(mapping))
	for g := range mapping {
		glyphs = append(glyphs, g)
	}
	for i := 1; i < len(glyphs); i++ {
		for j := i; j > 0 && glyphs[j-1] > glyphs[j]; j-- {
			glyphs[j-1], glyphs[j] = glyphs[j], glyphs[j-1]
		}
	}

	type classRange struct {
		start, end GlyphID
		class      uint16
	}
	var ranges []classRange
	for _, g := range glyphs {
		class := mapping[g]
		if n := len(ranges); n > 0 && ranges[n-1].end == g-1 && ranges[n-1].class == class {
			ranges[n-1].end = g
			continue
		}
		ranges = append(ranges, classRange{start: g, end: g, class: class})
	}

	buf := make([]byte, 4+len(ranges)*6)
	binary.BigEndian.PutUint16(buf[0:], 2)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(ranges)))
	for i, r := range ranges {
		off := 4 + i*6
		binary.BigEndian.PutUint16(buf[off:], uint16(r.start))
		binary.BigEndian.PutUint16(buf[off+2:], uint16(r.end))
		binary.BigEndian.PutUint16(buf[off+4:], r.class)
	}
	return buf
}

func encodeAttachList(al *AttachList) []byte {
	covBytes := encodeCoverageGlyphs(al.coverage.Glyphs())
	headerSize := 4 + len(al.attachPoints)*2
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(al.attachPoints)))
	off := headerSize
	for i, pts := range al.attachPoints {
		if len(pts) == 0 {
			continue
		}
		binary.BigEndian.PutUint16(buf[4+i*2:], uint16(off))
		sub := make([]byte, 2+len(pts)*2)
		binary.BigEndian.PutUint16(sub[0:], uint16(len(pts)))
		for j, p := range pts {
			binary.BigEndian.PutUint16(sub[2+j*2:], p)
		}
		buf = append(buf, sub...)
		off += len(sub)
	}
	binary.BigEndian.PutUint16(buf[0:], uint16(len(buf)))
	return append(buf, covBytes...)
}

// encodeLigCaretList serializes a LigCaretList from a glyph->carets map,
// producing a coverage table in glyph-ID order (format 1).
func encodeLigCaretList(ligCarets map[GlyphID][]CaretValue) []byte {
	glyphs := make([]GlyphID, 0, len(ligCarets))
	for g := range ligCarets {
		glyphs = append(glyphs, g)
	}
	for i := 1; i < len(glyphs); i++ {
		for j := i; j > 0 && glyphs[j-1] > glyphs[j]; j-- {
			glyphs[j-1], glyphs[j] = glyphs[j], glyphs[j-1]
		}
	}

	headerSize := 4 + len(glyphs)*2
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(glyphs)))
	off := headerSize

	var ligGlyphTables [][]byte
	for _, g := range glyphs {
		carets := ligCarets[g]
		lgHeaderSize := 2 + len(carets)*2
		lg := make([]byte, lgHeaderSize)
		binary.BigEndian.PutUint16(lg[0:], uint16(len(carets)))
		lgOff := lgHeaderSize
		for i, cv := range carets {
			cvBytes := encodeCaretValue(cv)
			binary.BigEndian.PutUint16(lg[2+i*2:], uint16(lgOff))
			lg = append(lg, cvBytes...)
			lgOff += len(cvBytes)
		}
		ligGlyphTables = append(ligGlyphTables, lg)
	}

	for i, lg := range ligGlyphTables {
		binary.BigEndian.PutUint16(buf[4+i*2:], uint16(off))
		buf = append(buf, lg...)
		off += len(lg)
	}

	covOff := off
	covBytes := encodeCoverageGlyphs(glyphs)
	binary.BigEndian.PutUint16(buf[0:], uint16(covOff))
	buf = append(buf, covBytes...)
	return buf
}

func encodeCaretValue(cv CaretValue) []byte {
	switch cv.format {
	case 2:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:], 2)
		binary.BigEndian.PutUint16(buf[2:], cv.pointIndex)
		return buf
	case 3:
		devTable := buildVariationIndexTable(cv.deviceVarIdx)
		buf := make([]byte, 6+len(devTable))
		binary.BigEndian.PutUint16(buf[0:], 3)
		binary.BigEndian.PutUint16(buf[2:], uint16(cv.coordinate))
		binary.BigEndian.PutUint16(buf[4:], 6)
		copy(buf[6:], devTable)
		return buf
	default:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:], 1)
		binary.BigEndian.PutUint16(buf[2:], uint16(cv.coordinate))
		return buf
	}
}

func encodeMarkGlyphSetsDef(mgsd *MarkGlyphSetsDef) []byte {
	headerSize := 4 + len(mgsd.coverages)*4
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[0:], 1)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(mgsd.coverages)))
	off := headerSize
	for i, cov := range mgsd.coverages {
		if cov == nil {
			continue
		}
		binary.BigEndian.PutUint32(buf[4+i*4:], uint32(off))
		covBytes := encodeCoverageGlyphs(cov.Glyphs())
		buf = append(buf, covBytes...)
		off += len(covBytes)
	}
	return buf
}

// encodeCoverageGlyphs serializes a coverage table (format 1, glyph list) in
// ascending glyph-ID order.
func encodeCoverageGlyphs(glyphs []GlyphID) []byte {
	sorted := append([]GlyphID(nil), glyphs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	buf := make([]byte, 4+len(sorted)*2)
	binary.BigEndian.PutUint16(buf[0:], 1)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(sorted)))
	for i, g := range sorted {
		binary.BigEndian.PutUint16(buf[4+i*2:], uint16(g))
	}
	return buf
}

// HasMarkGlyphSets returns true if the GDEF table has mark glyph sets (version >= 1.2).
func (g *GDEF) HasMarkGlyphSets() bool {
	return g.markGlyphSetsDef != nil
}

// MarkGlyphSetCount returns the number of mark glyph sets.
func (g *GDEF) MarkGlyphSetCount() int {
	if g.markGlyphSetsDef == nil {
		return 0
	}
	return len(g.markGlyphSetsDef.coverages)
}

// IsInMarkGlyphSet returns true if the glyph is in the specified mark glyph set.
func (g *GDEF) IsInMarkGlyphSet(glyph GlyphID, setIndex int) bool {
	if g.markGlyphSetsDef == nil {
		return false
	}
	if setIndex < 0 || setIndex >= len(g.markGlyphSetsDef.coverages) {
		return false
	}
	cov := g.markGlyphSetsDef.coverages[setIndex]
	if cov == nil {
		return false
	}
	return cov.GetCoverage(glyph) != NotCovered
}

// Coordinate returns the coordinate value for a CaretValue (format 1 or 3).
func (cv *CaretValue) Coordinate() int16 {
	return cv.coordinate
}

// PointIndex returns the contour point index for a CaretValue (format 2).
func (cv *CaretValue) PointIndex() uint16 {
	return cv.pointIndex
}

// Format returns the CaretValue format (1, 2, or 3).
func (cv *CaretValue) Format() uint16 {
	return cv.format
}

// DeviceVarIndex returns the format-3 VariationIndex, or NoVariationIndex.
func (cv *CaretValue) DeviceVarIndex() VariationIndex {
	return cv.deviceVarIdx
}

// AsFormat1 downgrades a format-3 caret to format-1 (plain coordinate, no
// device table) once its variation contribution is folded into Coordinate.
func (cv *CaretValue) AsFormat1() CaretValue {
	return CaretValue{format: 1, coordinate: cv.coordinate, deviceVarIdx: NoVariationIndex}
}

// NewCaretValueFormat3 builds a format-3 caret (coordinate plus a reference
// to a surviving ItemVariationStore entry), used by the layout instancer
// (§4.5) to rewrite a caret whose variation only partially collapsed.
func NewCaretValueFormat3(coordinate int16, varIdx VariationIndex) CaretValue {
	return CaretValue{format: 3, coordinate: coordinate, deviceVarIdx: varIdx}
}

// NewCaretValueFormat1 builds a plain format-1 caret from a resolved
// coordinate, used by the layout instancer (§4.5) once a format-3 caret's
// variation contribution has been folded in.
func NewCaretValueFormat1(coordinate int16) CaretValue {
	return CaretValue{format: 1, coordinate: coordinate, deviceVarIdx: NoVariationIndex}
}
