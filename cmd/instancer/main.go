// Command instancer partially instances an OpenType variable font along one
// or more axes and writes the result to a new font file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"

	"github.com/varfont/instancer"
	"github.com/varfont/instancer/internal/xlog"
	"github.com/varfont/instancer/ot"
)

func main() {
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	xlog.Tracer().SetTraceLevel(tracing.LevelInfo)

	out := flag.String("o", "", "output font file (default: FONTFILE with -instanced suffix)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s FONTFILE AXIS=SPEC [AXIS=SPEC ...] [-o OUTFILE]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	// flag stops at the first positional argument, so a trailing -o OUTFILE
	// is taken from the end of the positional list here.
	if n := len(args); n >= 2 && args[n-2] == "-o" {
		*out = args[n-1]
		args = args[:n-2]
	}
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	fontFile := args[0]

	data, err := os.ReadFile(fontFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "No such file: %s\n", fontFile)
		} else {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		os.Exit(1)
	}

	loc, err := parseLocation(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", describeError(err))
		os.Exit(1)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	// "drop" pins an axis at its default, which only the font's fvar knows.
	if fvarData, err := font.TableData(ot.TagFvar); err == nil {
		if fvar, err := ot.ParseFvar(fvarData); err == nil {
			for _, arg := range args[1:] {
				if tag, spec, _ := strings.Cut(arg, "="); spec == "drop" {
					if axis, ok := fvar.FindAxis(tagFromString(tag)); ok {
						loc[axis.Tag] = instancer.Pin(float64(axis.DefaultValue))
					}
				}
			}
		}
	}

	result, err := instancer.Instantiate(context.Background(), font, loc, instancer.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", describeError(err))
		os.Exit(1)
	}

	outFile := *out
	if outFile == "" {
		outFile = defaultOutputName(fontFile)
	}
	if err := os.WriteFile(outFile, result.Data(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	xlog.Tracer().Infof("wrote %s", outFile)
}

// parseLocation turns the command line's AXIS=SPEC arguments into a
// Location (§6). SPEC is VALUE (pin), LO:HI (limit), or the literal "drop"
// (pin at the axis default).
func parseLocation(args []string) (instancer.Location, error) {
	loc := make(instancer.Location, len(args))
	for _, arg := range args {
		tag, spec, ok := strings.Cut(arg, "=")
		if !ok || tag == "" || spec == "" {
			return nil, fmt.Errorf("%s: %w", arg, instancer.ErrParseLocation)
		}
		if len(tag) > 4 {
			return nil, fmt.Errorf("%s: %w", arg, instancer.ErrParseLocation)
		}
		axisTag := tagFromString(tag)

		if _, dup := loc[axisTag]; dup {
			return nil, fmt.Errorf("%s: %w", tag, instancer.ErrDuplicateAxis)
		}

		if spec == "drop" {
			// Placeholder; main replaces it with the axis default from fvar.
			loc[axisTag] = instancer.Pin(0)
			continue
		}

		if lo, hi, isRange := strings.Cut(spec, ":"); isRange {
			loValue, err := strconv.ParseFloat(lo, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", arg, instancer.ErrParseLocation)
			}
			hiValue, err := strconv.ParseFloat(hi, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", arg, instancer.ErrParseLocation)
			}
			loc[axisTag] = instancer.Limit(loValue, hiValue)
			continue
		}

		value, err := strconv.ParseFloat(spec, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, instancer.ErrParseLocation)
		}
		loc[axisTag] = instancer.Pin(value)
	}
	return loc, nil
}

func tagFromString(s string) ot.Tag {
	var b [4]byte
	for i := range b {
		b[i] = ' '
	}
	copy(b[:], s)
	return ot.MakeTag(b[0], b[1], b[2], b[3])
}

func defaultOutputName(fontFile string) string {
	if dot := strings.LastIndexByte(fontFile, '.'); dot >= 0 {
		return fontFile[:dot] + "-instanced" + fontFile[dot:]
	}
	return fontFile + "-instanced"
}

// describeError maps this module's sentinel errors onto the literal
// messages §6 specifies for the command-line surface.
func describeError(err error) string {
	switch {
	case errors.Is(err, instancer.ErrDuplicateAxis):
		return "Specified multiple limits for the same axis: " + err.Error()
	case errors.Is(err, instancer.ErrUnknownAxis):
		return "Axis not present in fvar: " + err.Error()
	case errors.Is(err, instancer.ErrStructural):
		return "Missing required table: " + err.Error()
	case errors.Is(err, instancer.ErrParseLocation):
		return "invalid location format: " + err.Error()
	default:
		return err.Error()
	}
}
