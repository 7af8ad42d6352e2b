package patch

import (
	"regexp"

	"moonsan/internal/flags"
)

// freeTextOp patches moon.pkg. Only the bytes of the affected assignments
// change; everything else in the file is preserved verbatim.
//
// Each key is first sought as an existing `"key": "..."` assignment anywhere
// in the document and replaced in place. This matches the first occurrence in
// the whole file, not just the native block, mirroring the assumption that
// each key appears at most once per config. Keys without an existing
// assignment are inserted as a new line before the native block's closing
// brace, using the block's own indentation. The span is re-located for every
// insertion since earlier edits shift offsets.
type freeTextOp struct{}

func (freeTextOp) Apply(content []byte, set flags.Set, entry bool) ([]byte, error) {
	text := string(content)
	if _, ok := LocateBlock(text, "native"); !ok {
		return nil, ErrMissingNativeBlock
	}

	if set.CC != "" {
		text = setKey(text, keyCC, set.CC)
	}
	if entry && set.CCFlags != "" {
		text = setKey(text, keyCCFlags, set.CCFlags)
	}
	if set.StubCC != "" {
		text = setKey(text, keyStubCC, set.StubCC)
	}
	if set.StubCCFlags != "" {
		value := set.StubCCFlags
		if prev, ok := currentValue(text, keyStubCCFlags); ok && prev != "" && !set.OverrideStubCCFlags {
			value = prev + " " + set.StubCCFlags
		}
		text = setKey(text, keyStubCCFlags, value)
	}
	if set.LinkFlags != "" {
		value := set.LinkFlags
		if prev, ok := currentValue(text, keyLinkFlags); ok && prev != "" {
			value = set.LinkFlags + " " + prev
		}
		text = setKey(text, keyLinkFlags, value)
	}

	return []byte(text), nil
}

func assignmentPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"((?:\\.|[^"\\])*)"`)
}

// currentValue returns the value of the first `"key": "..."` assignment in
// the document, raw (escape sequences untouched).
func currentValue(text, key string) (string, bool) {
	m := assignmentPattern(key).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// setKey overwrites the first existing assignment of key, or inserts a new
// line into the native block when there is none.
func setKey(text, key, value string) string {
	if loc := assignmentPattern(key).FindStringIndex(text); loc != nil {
		return text[:loc[0]] + `"` + key + `": "` + value + `"` + text[loc[1]:]
	}

	// Apply already verified the block exists.
	span, _ := LocateBlock(text, "native")
	return insertLine(text, span, InferIndent(text, span), key, value)
}
