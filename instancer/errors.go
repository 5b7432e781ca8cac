package instancer

import "errors"

// Sentinel errors for the instancer's external contract (§7). Each is
// wrapped with fmt.Errorf("%s: %w", ...) at the raise site so callers can
// match with errors.Is against the sentinel, matching ot/parse.go and
// subset/errors.go's convention.
var (
	// ErrParseLocation is returned by the CLI front-end for malformed
	// AXIS=SPEC syntax.
	ErrParseLocation = errors.New("invalid location format")

	// ErrUnknownAxis is returned when a location names an axis tag the
	// font's fvar table does not define.
	ErrUnknownAxis = errors.New("axis not present in fvar")

	// ErrOutOfRange is returned when a pin or limit value falls outside
	// the axis's user-space domain.
	ErrOutOfRange = errors.New("value out of axis range")

	// ErrStructural is returned when the font is missing a table that a
	// present variation table depends on.
	ErrStructural = errors.New("missing required table")

	// ErrDuplicateAxis is returned by the CLI front-end when the same
	// axis tag is specified more than once.
	ErrDuplicateAxis = errors.New("specified multiple limits for the same axis")
)
