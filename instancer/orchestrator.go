package instancer

import (
	"context"
	"fmt"

	"github.com/varfont/instancer/internal/xlog"
	"github.com/varfont/instancer/ot"
	"github.com/varfont/instancer/subset"
)

// Options controls optional behavior of Instantiate (§6).
type Options struct {
	// Optimize enables delta re-encoding of item-variation stores that keep
	// residual variation (the default, §4.3/§4.5). Instantiate does not read
	// it: the stores are always re-encoded.
	Optimize bool
	// OverlapFlag names the outline overlap bit described in §4.8 step 7.
	// Instantiate does not read it: the outline pass sets the bit on every
	// non-empty glyph it writes.
	OverlapFlag bool
}

// DefaultOptions returns the options §6 specifies as defaults.
func DefaultOptions() Options {
	return Options{Optimize: true, OverlapFlag: true}
}

// Instantiate runs the full §4.8 pipeline against font and returns a new,
// mutated *ot.Font reflecting loc. The input font is not modified; tables
// the pipeline does not touch are copied through unchanged.
func Instantiate(ctx context.Context, font *ot.Font, loc Location, opts Options) (*ot.Font, error) {
	if font == nil {
		return nil, fmt.Errorf("nil font: %w", ErrStructural)
	}

	// Step 1: sanity check.
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	fvarData, err := font.TableData(ot.TagFvar)
	if err != nil {
		return nil, fmt.Errorf("fvar: %w", ErrStructural)
	}
	fvar, err := ot.ParseFvar(fvarData)
	if err != nil || !fvar.HasData() {
		return nil, fmt.Errorf("fvar: %w", ErrStructural)
	}
	if font.HasTable(ot.TagGvar) && !font.HasTable(ot.TagGlyf) {
		return nil, fmt.Errorf("gvar without glyf: %w", ErrStructural)
	}

	axisTagOrder := make([]ot.Tag, fvar.AxisCount())
	for _, a := range fvar.AxisInfos() {
		axisTagOrder[a.Index] = a.Tag
	}

	var avar *ot.Avar
	if avarData, err := font.TableData(ot.TagAvar); err == nil {
		avar, _ = ot.ParseAvar(avarData)
	}

	// Step 2: normalize.
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	nloc, err := Normalize(fvar, avar, loc)
	if err != nil {
		return nil, err
	}

	builder := subset.NewFontBuilder()
	handled := map[ot.Tag]bool{
		ot.TagFvar: true, ot.TagAvar: true, ot.TagName: true,
	}

	numGlyphs := font.NumGlyphs()

	// Step 3: outlines and cvt (§4.2).
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if err := instanceOutlinesInto(builder, handled, font, axisTagOrder, nloc, numGlyphs); err != nil {
		return nil, err
	}
	instanceCvtInto(builder, handled, font, axisTagOrder, nloc)

	// Step 4: item-store-backed tables, in the documented read-before-write
	// order (HVAR is folded into step 3's outline pass above since hmtx's
	// rewrite already needs HVAR's deltas).
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	mvarDeltas := instanceMVarInto(builder, handled, font, axisTagOrder, nloc)
	applyMVarDeltas(builder, handled, font, mvarDeltas)
	gdefStoreRes := instanceGDEFInto(builder, handled, font, axisTagOrder, nloc)
	instanceGPOSInto(builder, handled, font, gdefStoreRes)

	// Step 5: feature-variation pruning (§4.6).
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	pruneFeatureVariationsInto(builder, handled, font, axisTagOrder, nloc)

	// Step 6: axis-variation / axis-descriptor instancing (§4.7).
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var stat *ot.Stat
	if statData, err := font.TableData(ot.TagSTAT); err == nil {
		stat, _ = ot.ParseStat(statData)
	}
	var name *ot.Name
	if nameData, err := font.TableData(ot.TagName); err == nil {
		name, _ = ot.ParseName(nameData)
	}
	axisRes := InstanceAxes(fvar, avar, stat, name, loc)
	if axisRes.FvarBytes != nil {
		builder.AddTable(ot.TagFvar, axisRes.FvarBytes)
	}
	if axisRes.AvarBytes != nil {
		builder.AddTable(ot.TagAvar, axisRes.AvarBytes)
	}
	handled[ot.TagSTAT] = true
	if axisRes.StatBytes != nil {
		builder.AddTable(ot.TagSTAT, axisRes.StatBytes)
	}
	if axisRes.NameBytes != nil {
		builder.AddTable(ot.TagName, axisRes.NameBytes)
	}

	// Step 7: overlap flag is applied inline during step 3's outline pass
	// (ot.SetOverlapFlag, see outline.go), whatever opts.OverlapFlag says.
	_ = opts

	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	// Copy through every table the pipeline above did not touch.
	for _, tag := range font.TableTags() {
		if handled[tag] {
			continue
		}
		data, err := font.TableData(tag)
		if err != nil {
			continue
		}
		builder.AddTable(tag, data)
	}

	out, err := builder.Build()
	if err != nil {
		return nil, err
	}
	return ot.ParseFont(out, 0)
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func instanceOutlinesInto(builder *subset.FontBuilder, handled map[ot.Tag]bool, font *ot.Font, axisTagOrder []ot.Tag, loc NormalizedLocation, numGlyphs int) error {
	if !font.HasTable(ot.TagGlyf) {
		return nil
	}
	headData, err := font.TableData(ot.TagHead)
	if err != nil {
		return fmt.Errorf("head: %w", ErrStructural)
	}
	head, err := ot.ParseHead(headData)
	if err != nil {
		return fmt.Errorf("head: %w", ErrStructural)
	}
	hheaData, err := font.TableData(ot.TagHhea)
	if err != nil {
		return fmt.Errorf("hhea: %w", ErrStructural)
	}
	hhea, err := ot.ParseHhea(hheaData)
	if err != nil {
		return fmt.Errorf("hhea: %w", ErrStructural)
	}
	locaData, err := font.TableData(ot.TagLoca)
	if err != nil {
		return fmt.Errorf("loca: %w", ErrStructural)
	}
	loca, err := ot.ParseLoca(locaData, numGlyphs, head.IndexToLocFormat)
	if err != nil {
		return fmt.Errorf("loca: %w", ErrStructural)
	}
	glyfData, err := font.TableData(ot.TagGlyf)
	if err != nil {
		return fmt.Errorf("glyf: %w", ErrStructural)
	}
	glyf, err := ot.ParseGlyf(glyfData, loca)
	if err != nil {
		return fmt.Errorf("glyf: %w", ErrStructural)
	}
	hmtxData, err := font.TableData(ot.TagHmtx)
	if err != nil {
		return fmt.Errorf("hmtx: %w", ErrStructural)
	}
	hmtx, err := ot.ParseHmtx(hmtxData, int(hhea.NumberOfHMetrics), numGlyphs)
	if err != nil {
		return fmt.Errorf("hmtx: %w", ErrStructural)
	}

	var gvar *ot.Gvar
	if gvarData, err := font.TableData(ot.TagGvar); err == nil {
		gvar, _ = ot.ParseGvar(gvarData)
	}
	var hvar *ot.Hvar
	if hvarData, err := font.TableData(ot.TagHvar); err == nil {
		hvar, _ = ot.ParseHvar(hvarData)
	}

	res, err := InstanceOutlines(glyf, loca, hmtx, gvar, hvar, numGlyphs, nil, axisTagOrder, loc)
	if err != nil {
		return err
	}

	newHead := make([]byte, len(headData))
	copy(newHead, headData)
	newHead[50], newHead[51] = 0, 1 // indexToLocFormat: long, matches BuildLoca(..., false)
	builder.AddTable(ot.TagHead, newHead)
	handled[ot.TagHead] = true

	newHhea := make([]byte, len(hheaData))
	copy(newHhea, hheaData)
	newHhea[34], newHhea[35] = byte(res.NumHMetrics>>8), byte(res.NumHMetrics)
	builder.AddTable(ot.TagHhea, newHhea)
	handled[ot.TagHhea] = true

	builder.AddTable(ot.TagGlyf, res.GlyfData)
	builder.AddTable(ot.TagLoca, res.LocaData)
	builder.AddTable(ot.TagHmtx, res.HmtxData)
	handled[ot.TagGlyf] = true
	handled[ot.TagLoca] = true
	handled[ot.TagHmtx] = true

	handled[ot.TagGvar] = true
	if res.GvarData != nil {
		builder.AddTable(ot.TagGvar, res.GvarData)
	}
	handled[ot.TagHvar] = true
	return nil
}

func instanceCvtInto(builder *subset.FontBuilder, handled map[ot.Tag]bool, font *ot.Font, axisTagOrder []ot.Tag, loc NormalizedLocation) {
	cvtData, err := font.TableData(ot.TagCvt)
	if err != nil {
		return
	}
	cvt, err := ot.ParseCvt(cvtData)
	if err != nil {
		return
	}
	var cvar *ot.Cvar
	if cvarData, err := font.TableData(ot.TagCvar); err == nil {
		cvar, _ = ot.ParseCvar(cvarData, len(axisTagOrder))
	}
	handled[ot.TagCvar] = true
	if out := InstanceCvt(cvt, cvar, axisTagOrder, loc); out != nil {
		builder.AddTable(ot.TagCvt, out.CvtData)
		handled[ot.TagCvt] = true
		if out.CvarData != nil {
			builder.AddTable(ot.TagCvar, out.CvarData)
		}
	}
}

func instanceMVarInto(builder *subset.FontBuilder, handled map[ot.Tag]bool, font *ot.Font, axisTagOrder []ot.Tag, loc NormalizedLocation) map[ot.Tag]float64 {
	mvarData, err := font.TableData(ot.TagMvar)
	if err != nil {
		return nil
	}
	mvar, err := ot.ParseMVar(mvarData)
	if err != nil {
		return nil
	}
	handled[ot.TagMvar] = true
	res := InstanceMVar(mvar, axisTagOrder, loc)
	if !res.Empty {
		builder.AddTable(ot.TagMvar, res.Bytes)
	}
	return res.Deltas
}

// applyMVarDeltas patches every metric-bearing table MVAR's surviving value
// tags name (§4.9). hhea may already have been rewritten by the outline
// pass above (for numberOfHMetrics); when so, the MVAR deltas are folded
// into that same buffer instead of re-reading the original.
func applyMVarDeltas(builder *subset.FontBuilder, handled map[ot.Tag]bool, font *ot.Font, deltas map[ot.Tag]float64) {
	if len(deltas) == 0 {
		return
	}

	if hheaData, ok := builder.TableData(ot.TagHhea); ok {
		builder.AddTable(ot.TagHhea, ApplyMVarToHhea(hheaData, deltas))
	} else if hheaData, err := font.TableData(ot.TagHhea); err == nil {
		builder.AddTable(ot.TagHhea, ApplyMVarToHhea(hheaData, deltas))
		handled[ot.TagHhea] = true
	}

	if os2Data, err := font.TableData(ot.TagOS2); err == nil {
		builder.AddTable(ot.TagOS2, ApplyMVarToOS2(os2Data, deltas))
		handled[ot.TagOS2] = true
	}

	if postData, err := font.TableData(ot.TagPost); err == nil {
		builder.AddTable(ot.TagPost, ApplyMVarToPost(postData, deltas))
		handled[ot.TagPost] = true
	}
}

// instanceGDEFInto rewrites GDEF and returns its instanced item-variation
// store result, so instanceGPOSInto below can patch GPOS's device-table
// references against the same rewritten row indices (§4.5: GDEF and GPOS
// share a single ItemVariationStore).
func instanceGDEFInto(builder *subset.FontBuilder, handled map[ot.Tag]bool, font *ot.Font, axisTagOrder []ot.Tag, loc NormalizedLocation) *ItemStoreResult {
	gdefData, err := font.TableData(ot.TagGDEF)
	if err != nil {
		return nil
	}
	gdef, err := ot.ParseGDEF(gdefData)
	if err != nil {
		return nil
	}
	handled[ot.TagGDEF] = true
	res := InstanceGDEF(gdef, axisTagOrder, loc)
	if res.Bytes != nil {
		builder.AddTable(ot.TagGDEF, res.Bytes)
	} else {
		builder.AddTable(ot.TagGDEF, gdefData)
	}
	return res.StoreRes
}

// instanceGPOSInto patches every Anchor and ValueRecord device/VariationIndex
// reference in GPOS against storeRes (§4.5). A font with no (parseable) GDEF
// table has nothing for GPOS's device tables to reference, so storeRes is
// nil and GPOS is copied through unchanged. A GDEF without an item
// variation store yields an empty, non-nil storeRes.
func instanceGPOSInto(builder *subset.FontBuilder, handled map[ot.Tag]bool, font *ot.Font, storeRes *ItemStoreResult) {
	gposData, err := font.TableData(ot.TagGPOS)
	if err != nil {
		return
	}
	handled[ot.TagGPOS] = true
	if patched := InstanceGPOS(gposData, storeRes); patched != nil {
		builder.AddTable(ot.TagGPOS, patched)
	} else {
		builder.AddTable(ot.TagGPOS, gposData)
	}
}

func pruneFeatureVariationsInto(builder *subset.FontBuilder, handled map[ot.Tag]bool, font *ot.Font, axisTagOrder []ot.Tag, loc NormalizedLocation) {
	gsubData, err := font.TableData(ot.TagGSUB)
	if err != nil {
		return
	}
	gsub, err := ot.ParseGSUB(gsubData)
	if err != nil {
		return
	}
	fv := gsub.GetFeatureVariations()
	if fv == nil {
		return
	}
	res := PruneFeatureVariations(fv, axisTagOrder, loc)
	handled[ot.TagGSUB] = true

	data := gsub.Data()
	fvOffset := gsub.FeatureVariationsOffset()
	if len(res.DefaultSubstitutions) > 0 {
		merged, err := gsub.MergeFeatureListLookups(res.DefaultSubstitutions)
		if err != nil {
			xlog.Tracer().Infof("feature-variations: could not merge %d always-active substitution(s) into the default feature list (%v), leaving them unmerged", len(res.DefaultSubstitutions), err)
		} else {
			data = merged
			if reparsed, err := ot.ParseGSUB(merged); err == nil {
				fvOffset = reparsed.FeatureVariationsOffset()
			}
		}
	}

	if res.Empty {
		builder.AddTable(ot.TagGSUB, ot.ApplyFeatureVariations(data, fvOffset, nil))
		return
	}
	builder.AddTable(ot.TagGSUB, ot.ApplyFeatureVariations(data, fvOffset, res.Bytes))
}
