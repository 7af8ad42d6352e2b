// Package patch rewrites the link.native record of a MoonBit package config.
// The record lives in two on-disk serializations of the same logical schema:
// moon.pkg.json, a fully parseable JSON document, and moon.pkg, a
// brace-delimited free-text format editable only by span-aware text surgery.
package patch

import (
	"errors"

	"moonsan/internal/flags"
)

// Format tags the two serializations of a package config.
type Format int

const (
	Structured Format = iota // moon.pkg.json
	FreeText                 // moon.pkg
)

// Keys of the link.native record. All values are strings.
const (
	keyCC          = "cc"
	keyCCFlags     = "cc-flags"
	keyStubCC      = "stub-cc"
	keyStubCCFlags = "stub-cc-flags"
	keyLinkFlags   = "cc-link-flags"
)

var (
	// ErrMissingNativeBlock reports a moon.pkg without a "native" block.
	// Free-text configs are never auto-vivified: synthesizing a new block in
	// free-form text cannot be done reliably.
	ErrMissingNativeBlock = errors.New(`no "native" block found`)

	// ErrMalformedConfig reports a config whose link or link.native key is
	// occupied by a non-object value. This is a user-facing configuration
	// error, not a bug.
	ErrMalformedConfig = errors.New("malformed package config")
)

// Operation patches one serialization of the link.native record. The flag set
// is read-only; entry selects whether main-binary compile flags apply (library
// packages are compiled as dependencies, not binaries, and must not receive
// them).
type Operation interface {
	Apply(content []byte, set flags.Set, entry bool) ([]byte, error)
}

// For returns the patch operation for a config format.
func For(format Format) Operation {
	if format == FreeText {
		return freeTextOp{}
	}
	return structuredOp{}
}
