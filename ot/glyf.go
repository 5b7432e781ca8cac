package ot

import (
	"encoding/binary"
)

// Glyf represents the parsed glyf table (glyph data).
type Glyf struct {
	data []byte
	loca *Loca
}

// Loca represents the parsed loca table (index to location).
type Loca struct {
	offsets   []uint32 // Glyph offsets into glyf table
	numGlyphs int
	isShort   bool // true for short format (16-bit offsets)
}

// GlyphData represents the raw data for a single glyph.
type GlyphData struct {
	Data             []byte
	NumberOfContours int16 // -1 for composite, >= 0 for simple
}

// ParseLoca parses the loca table.
// indexToLocFormat: 0 = short (16-bit), 1 = long (32-bit)
func ParseLoca(data []byte, numGlyphs int, indexToLocFormat int16) (*Loca, error) {
	l := &Loca{
		numGlyphs: numGlyphs,
		isShort:   indexToLocFormat == 0,
	}

	// loca has numGlyphs+1 entries
	numEntries := numGlyphs + 1

	if l.isShort {
		// Short format: 16-bit offsets (actual offset = value * 2)
		if len(data) < numEntries*2 {
			return nil, ErrInvalidOffset
		}
		l.offsets = make([]uint32, numEntries)
		for i := 0; i < numEntries; i++ {
			l.offsets[i] = uint32(binary.BigEndian.Uint16(data[i*2:])) * 2
		}
	} else {
		// Long format: 32-bit offsets
		if len(data) < numEntries*4 {
			return nil, ErrInvalidOffset
		}
		l.offsets = make([]uint32, numEntries)
		for i := 0; i < numEntries; i++ {
			l.offsets[i] = binary.BigEndian.Uint32(data[i*4:])
		}
	}

	return l, nil
}

// GetOffset returns the offset and length for a glyph.
// Returns (offset, length, ok)
func (l *Loca) GetOffset(gid GlyphID) (uint32, uint32, bool) {
	idx := int(gid)
	if idx < 0 || idx >= l.numGlyphs {
		return 0, 0, false
	}
	start := l.offsets[idx]
	end := l.offsets[idx+1]
	return start, end - start, true
}

// NumGlyphs returns the number of glyphs.
func (l *Loca) NumGlyphs() int {
	return l.numGlyphs
}

// IsShort returns true if using short (16-bit) format.
func (l *Loca) IsShort() bool {
	return l.isShort
}

// ParseGlyf parses the glyf table using a loca table.
func ParseGlyf(data []byte, loca *Loca) (*Glyf, error) {
	return &Glyf{
		data: data,
		loca: loca,
	}, nil
}

// GetGlyph returns the glyph data for a glyph ID.
func (g *Glyf) GetGlyph(gid GlyphID) *GlyphData {
	offset, length, ok := g.loca.GetOffset(gid)
	if !ok {
		return nil
	}

	// Empty glyph (like space)
	if length == 0 {
		return &GlyphData{
			Data:             nil,
			NumberOfContours: 0,
		}
	}

	if int(offset)+int(length) > len(g.data) {
		return nil
	}

	data := g.data[offset : offset+length]
	if len(data) < 2 {
		return nil
	}

	numberOfContours := int16(binary.BigEndian.Uint16(data))

	return &GlyphData{
		Data:             data,
		NumberOfContours: numberOfContours,
	}
}

// GetGlyphBytes returns the raw bytes for a glyph.
func (g *Glyf) GetGlyphBytes(gid GlyphID) []byte {
	offset, length, ok := g.loca.GetOffset(gid)
	if !ok || length == 0 {
		return nil
	}
	if int(offset)+int(length) > len(g.data) {
		return nil
	}
	return g.data[offset : offset+length]
}

// IsComposite returns true if the glyph is a composite glyph.
func (gd *GlyphData) IsComposite() bool {
	return gd.NumberOfContours < 0
}

// Composite glyph flags
const (
	argAreWords     uint16 = 0x0001 // Args are words (otherwise bytes)
	argsAreXYValues uint16 = 0x0002 // Args are xy values (otherwise points)
	roundXYToGrid   uint16 = 0x0004
	weHaveAScale    uint16 = 0x0008 // Scale value present
	moreComponents  uint16 = 0x0020 // More components follow
	weHaveXYScale   uint16 = 0x0040 // Separate X and Y scale
	weHave2x2       uint16 = 0x0080 // 2x2 transform matrix
	weHaveInstr     uint16 = 0x0100 // Instructions follow
	useMyMetrics    uint16 = 0x0200
	overlapCompound uint16 = 0x0400
)

// CompositeComponent represents a component in a composite glyph.
type CompositeComponent struct {
	GlyphID GlyphID
	Flags   uint16
	Arg1    int16
	Arg2    int16
	// Transform matrix components (optional)
	Scale   float32
	ScaleX  float32
	ScaleY  float32
	Scale01 float32
	Scale10 float32
}

// GetComponents returns the component glyph IDs for a composite glyph.
// For simple glyphs, returns nil.
func (g *Glyf) GetComponents(gid GlyphID) []GlyphID {
	glyph := g.GetGlyph(gid)
	if glyph == nil || !glyph.IsComposite() {
		return nil
	}

	components := g.parseComposite(glyph.Data)
	result := make([]GlyphID, len(components))
	for i, comp := range components {
		result[i] = comp.GlyphID
	}
	return result
}

// parseComposite parses composite glyph components.
func (g *Glyf) parseComposite(data []byte) []CompositeComponent {
	if len(data) < 10 {
		return nil
	}

	// Skip glyph header (10 bytes: numberOfContours, xMin, yMin, xMax, yMax)
	offset := 10
	var components []CompositeComponent

	for {
		if offset+4 > len(data) {
			break
		}

		flags := binary.BigEndian.Uint16(data[offset:])
		glyphIndex := GlyphID(binary.BigEndian.Uint16(data[offset+2:]))
		offset += 4

		comp := CompositeComponent{
			GlyphID: glyphIndex,
			Flags:   flags,
		}

		// Parse arguments
		if flags&argAreWords != 0 {
			if offset+4 > len(data) {
				break
			}
			comp.Arg1 = int16(binary.BigEndian.Uint16(data[offset:]))
			comp.Arg2 = int16(binary.BigEndian.Uint16(data[offset+2:]))
			offset += 4
		} else {
			if offset+2 > len(data) {
				break
			}
			comp.Arg1 = int16(int8(data[offset]))
			comp.Arg2 = int16(int8(data[offset+1]))
			offset += 2
		}

		// Skip transform components (we just need glyph IDs for closure)
		if flags&weHaveAScale != 0 {
			offset += 2 // F2Dot14
		} else if flags&weHaveXYScale != 0 {
			offset += 4 // 2 x F2Dot14
		} else if flags&weHave2x2 != 0 {
			offset += 8 // 4 x F2Dot14
		}

		components = append(components, comp)

		if flags&moreComponents == 0 {
			break
		}
	}

	return components
}

// RemapComposite creates a new composite glyph with remapped component IDs.
func RemapComposite(data []byte, glyphMap map[GlyphID]GlyphID) []byte {
	if len(data) < 10 {
		return data
	}

	// Check if this is a composite
	numberOfContours := int16(binary.BigEndian.Uint16(data))
	if numberOfContours >= 0 {
		// Simple glyph, no remapping needed
		return data
	}

	// Make a copy to modify
	result := make([]byte, len(data))
	copy(result, data)

	// Parse and remap component glyph IDs
	offset := 10
	for {
		if offset+4 > len(result) {
			break
		}

		flags := binary.BigEndian.Uint16(result[offset:])
		oldGID := GlyphID(binary.BigEndian.Uint16(result[offset+2:]))

		// Remap the glyph ID
		if newGID, ok := glyphMap[oldGID]; ok {
			binary.BigEndian.PutUint16(result[offset+2:], uint16(newGID))
		}

		offset += 4

		// Skip arguments
		if flags&argAreWords != 0 {
			offset += 4
		} else {
			offset += 2
		}

		// Skip transform components
		if flags&weHaveAScale != 0 {
			offset += 2
		} else if flags&weHaveXYScale != 0 {
			offset += 4
		} else if flags&weHave2x2 != 0 {
			offset += 8
		}

		if flags&moreComponents == 0 {
			break
		}
	}

	return result
}

// overlapCompoundFlag marks a composite glyph's first component as
// overlapping its siblings (bit 0x0400 of the component flags word).
const overlapCompoundFlag uint16 = 0x0400

// SetOverlapFlag marks a glyph's outline as self-overlapping: for a simple
// glyph, bit 0x40 on the first contour's first point flag; for a composite,
// bit 0x0400 on the first component's flags word. Required by step 7 of the
// instancer pipeline so macOS's rasterizer treats a statically-produced
// glyph correctly once the variations table it used to read is gone.
func SetOverlapFlag(data []byte) []byte {
	if len(data) < 10 {
		return data
	}
	numberOfContours := int16(binary.BigEndian.Uint16(data))
	result := make([]byte, len(data))
	copy(result, data)

	if numberOfContours < 0 {
		if len(result) >= 12 {
			flags := binary.BigEndian.Uint16(result[10:]) | overlapCompoundFlag
			binary.BigEndian.PutUint16(result[10:], flags)
		}
		return result
	}
	if numberOfContours == 0 {
		return result
	}

	endPtsOffset := 10
	numPoints := 0
	if endPtsOffset+int(numberOfContours)*2 <= len(result) {
		numPoints = int(binary.BigEndian.Uint16(result[endPtsOffset+int(numberOfContours-1)*2:])) + 1
	}
	if numPoints == 0 {
		return result
	}

	instrLenOff := endPtsOffset + int(numberOfContours)*2
	if instrLenOff+2 > len(result) {
		return result
	}
	instructionLength := int(binary.BigEndian.Uint16(result[instrLenOff:]))
	flagsOff := instrLenOff + 2 + instructionLength
	if flagsOff >= len(result) {
		return result
	}
	result[flagsOff] |= flagOverlapSimple
	return result
}

// BuildLoca builds a loca table from glyph offsets.
// If useShort is true, uses 16-bit format (offsets must be even and < 131072).
func BuildLoca(offsets []uint32, useShort bool) []byte {
	if useShort {
		data := make([]byte, len(offsets)*2)
		for i, off := range offsets {
			binary.BigEndian.PutUint16(data[i*2:], uint16(off/2))
		}
		return data
	}

	data := make([]byte, len(offsets)*4)
	for i, off := range offsets {
		binary.BigEndian.PutUint32(data[i*4:], off)
	}
	return data
}

// Simple glyph point flags.
const (
	flagOnCurve       uint8 = 0x01
	flagXShort        uint8 = 0x02
	flagYShort        uint8 = 0x04
	flagRepeat        uint8 = 0x08
	flagXSameOrPos    uint8 = 0x10
	flagYSameOrPos    uint8 = 0x20
	flagOverlapSimple uint8 = 0x40
)

// SimpleGlyphPoint is one point of a simple glyph's outline, in font units.
type SimpleGlyphPoint struct {
	X, Y    int16
	OnCurve bool
}

// SimpleGlyph is a fully decoded simple (non-composite) glyph outline.
type SimpleGlyph struct {
	EndPtsOfContours []uint16
	Instructions     []byte
	Points           []SimpleGlyphPoint
}

// NumContours returns the number of contours in the glyph.
func (sg *SimpleGlyph) NumContours() int {
	return len(sg.EndPtsOfContours)
}

// ParseSimpleGlyph decodes a simple glyph's point outline and contour
// boundaries from raw glyf table bytes (the same bytes GetGlyphBytes
// returns, header included). It returns ErrInvalidFormat for composite
// glyphs (numberOfContours < 0).
func ParseSimpleGlyph(data []byte) (points []SimpleGlyphPoint, endPtsOfContours []uint16, err error) {
	sg, err := parseSimpleGlyphStruct(data)
	if err != nil {
		return nil, nil, err
	}
	return sg.Points, sg.EndPtsOfContours, nil
}

// parseSimpleGlyphStruct decodes a simple glyph's contour boundaries,
// instructions and point outline from raw glyf table bytes, header included.
func parseSimpleGlyphStruct(data []byte) (*SimpleGlyph, error) {
	if len(data) < 10 {
		return nil, ErrInvalidOffset
	}
	numberOfContours := int16(binary.BigEndian.Uint16(data))
	if numberOfContours < 0 {
		return nil, ErrInvalidFormat
	}
	if numberOfContours == 0 {
		return &SimpleGlyph{}, nil
	}

	nc := int(numberOfContours)
	offset := 10
	if offset+nc*2+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	endPts := make([]uint16, nc)
	for i := 0; i < nc; i++ {
		endPts[i] = binary.BigEndian.Uint16(data[offset:])
		offset += 2
	}

	numPoints := 0
	if nc > 0 {
		numPoints = int(endPts[nc-1]) + 1
	}

	instrLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if offset+instrLen > len(data) {
		return nil, ErrInvalidOffset
	}
	instructions := data[offset : offset+instrLen]
	offset += instrLen

	flags := make([]uint8, numPoints)
	for i := 0; i < numPoints; {
		if offset >= len(data) {
			return nil, ErrInvalidOffset
		}
		f := data[offset]
		offset++
		flags[i] = f
		i++
		if f&flagRepeat != 0 {
			if offset >= len(data) {
				return nil, ErrInvalidOffset
			}
			repeat := int(data[offset])
			offset++
			for r := 0; r < repeat && i < numPoints; r++ {
				flags[i] = f
				i++
			}
		}
	}

	xs := make([]int16, numPoints)
	x := int16(0)
	for i := 0; i < numPoints; i++ {
		f := flags[i]
		switch {
		case f&flagXShort != 0:
			if offset+1 > len(data) {
				return nil, ErrInvalidOffset
			}
			d := int16(data[offset])
			offset++
			if f&flagXSameOrPos == 0 {
				d = -d
			}
			x += d
		case f&flagXSameOrPos != 0:
			// delta is 0, value unchanged
		default:
			if offset+2 > len(data) {
				return nil, ErrInvalidOffset
			}
			x += int16(binary.BigEndian.Uint16(data[offset:]))
			offset += 2
		}
		xs[i] = x
	}

	ys := make([]int16, numPoints)
	y := int16(0)
	for i := 0; i < numPoints; i++ {
		f := flags[i]
		switch {
		case f&flagYShort != 0:
			if offset+1 > len(data) {
				return nil, ErrInvalidOffset
			}
			d := int16(data[offset])
			offset++
			if f&flagYSameOrPos == 0 {
				d = -d
			}
			y += d
		case f&flagYSameOrPos != 0:
			// delta is 0, value unchanged
		default:
			if offset+2 > len(data) {
				return nil, ErrInvalidOffset
			}
			y += int16(binary.BigEndian.Uint16(data[offset:]))
			offset += 2
		}
		ys[i] = y
	}

	points := make([]SimpleGlyphPoint, numPoints)
	for i := 0; i < numPoints; i++ {
		points[i] = SimpleGlyphPoint{X: xs[i], Y: ys[i], OnCurve: flags[i]&flagOnCurve != 0}
	}

	return &SimpleGlyph{
		EndPtsOfContours: endPts,
		Instructions:     instructions,
		Points:           points,
	}, nil
}

// InstanceSimpleGlyph applies per-point x/y deltas (already instanced and
// IUP-inferred to full point count, §4.2) to a simple glyph's outline and
// re-serializes it to glyf table bytes with a recomputed bounding box.
// Contour boundaries and instructions are carried over unchanged; hinting
// bytecode referencing point numbers is left as-is, matching the
// instancer's default behavior of not rewriting instructions (§4.2 edge
// cases). Returns the original bytes unchanged if glyphBytes doesn't parse
// as a simple glyph.
func InstanceSimpleGlyph(glyphBytes []byte, xDeltas, yDeltas []int16) []byte {
	sg, err := parseSimpleGlyphStruct(glyphBytes)
	if err != nil || len(sg.Points) == 0 {
		return glyphBytes
	}

	points := make([]SimpleGlyphPoint, len(sg.Points))
	for i, p := range sg.Points {
		np := p
		if i < len(xDeltas) {
			np.X = p.X + xDeltas[i]
		}
		if i < len(yDeltas) {
			np.Y = p.Y + yDeltas[i]
		}
		points[i] = np
	}

	return EncodeSimpleGlyph(&SimpleGlyph{
		EndPtsOfContours: sg.EndPtsOfContours,
		Instructions:     sg.Instructions,
		Points:           points,
	})
}

// EncodeSimpleGlyph serializes a simple glyph back to glyf table bytes,
// recomputing the bounding box from the instanced points.
func EncodeSimpleGlyph(glyph *SimpleGlyph) []byte {
	nc := len(glyph.EndPtsOfContours)

	var xMin, yMin, xMax, yMax int16
	if len(glyph.Points) > 0 {
		xMin, yMin = glyph.Points[0].X, glyph.Points[0].Y
		xMax, yMax = glyph.Points[0].X, glyph.Points[0].Y
		for _, p := range glyph.Points[1:] {
			if p.X < xMin {
				xMin = p.X
			}
			if p.X > xMax {
				xMax = p.X
			}
			if p.Y < yMin {
				yMin = p.Y
			}
			if p.Y > yMax {
				yMax = p.Y
			}
		}
	}

	flags := make([]uint8, len(glyph.Points))
	var xBytes, yBytes []byte
	prevX, prevY := int16(0), int16(0)
	for i, p := range glyph.Points {
		var f uint8
		if p.OnCurve {
			f |= flagOnCurve
		}

		dx := int32(p.X) - int32(prevX)
		switch {
		case dx == 0:
			f |= flagXSameOrPos
		case dx >= -255 && dx <= 255:
			f |= flagXShort
			if dx > 0 {
				f |= flagXSameOrPos
				xBytes = append(xBytes, byte(dx))
			} else {
				xBytes = append(xBytes, byte(-dx))
			}
		default:
			buf := make([]byte, 2)
			binary.BigEndian.PutUint16(buf, uint16(int16(dx)))
			xBytes = append(xBytes, buf...)
		}

		dy := int32(p.Y) - int32(prevY)
		switch {
		case dy == 0:
			f |= flagYSameOrPos
		case dy >= -255 && dy <= 255:
			f |= flagYShort
			if dy > 0 {
				f |= flagYSameOrPos
				yBytes = append(yBytes, byte(dy))
			} else {
				yBytes = append(yBytes, byte(-dy))
			}
		default:
			buf := make([]byte, 2)
			binary.BigEndian.PutUint16(buf, uint16(int16(dy)))
			yBytes = append(yBytes, buf...)
		}

		flags[i] = f
		prevX, prevY = p.X, p.Y
	}

	// No run-length flag compression: one flag byte per point.
	headerLen := 10 + nc*2 + 2 + len(glyph.Instructions)
	total := headerLen + len(flags) + len(xBytes) + len(yBytes)
	buf := make([]byte, total)

	binary.BigEndian.PutUint16(buf[0:], uint16(int16(nc)))
	binary.BigEndian.PutUint16(buf[2:], uint16(xMin))
	binary.BigEndian.PutUint16(buf[4:], uint16(yMin))
	binary.BigEndian.PutUint16(buf[6:], uint16(xMax))
	binary.BigEndian.PutUint16(buf[8:], uint16(yMax))

	off := 10
	for _, e := range glyph.EndPtsOfContours {
		binary.BigEndian.PutUint16(buf[off:], e)
		off += 2
	}

	binary.BigEndian.PutUint16(buf[off:], uint16(len(glyph.Instructions)))
	off += 2
	off += copy(buf[off:], glyph.Instructions)
	off += copy(buf[off:], flags)
	off += copy(buf[off:], xBytes)
	off += copy(buf[off:], yBytes)

	return buf
}

// ParseGlyfFromFont parses both glyf and loca tables from a font.
func ParseGlyfFromFont(font *Font) (*Glyf, error) {
	// Get numGlyphs from maxp
	maxpData, err := font.TableData(TagMaxp)
	if err != nil {
		return nil, err
	}
	if len(maxpData) < 6 {
		return nil, ErrInvalidTable
	}
	numGlyphs := int(binary.BigEndian.Uint16(maxpData[4:]))

	// Get indexToLocFormat from head
	headData, err := font.TableData(TagHead)
	if err != nil {
		return nil, err
	}
	if len(headData) < 54 {
		return nil, ErrInvalidTable
	}
	indexToLocFormat := int16(binary.BigEndian.Uint16(headData[50:]))

	// Parse loca
	locaData, err := font.TableData(TagLoca)
	if err != nil {
		return nil, err
	}
	loca, err := ParseLoca(locaData, numGlyphs, indexToLocFormat)
	if err != nil {
		return nil, err
	}

	// Parse glyf
	glyfData, err := font.TableData(TagGlyf)
	if err != nil {
		return nil, err
	}

	return ParseGlyf(glyfData, loca)
}
