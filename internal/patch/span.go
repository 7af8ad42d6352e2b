package patch

import (
	"regexp"
	"strings"
)

// Span is the byte range of a located block's contents: Start is the offset
// immediately after the opening brace, End is the offset of the matching
// closing brace. Spans are recomputed per operation since prior edits shift
// offsets.
type Span struct {
	Start int
	End   int
}

// defaultIndent is used for inserted lines when a block has no existing
// entries to infer indentation from.
const defaultIndent = "  "

var indentPattern = regexp.MustCompile(`\n([ \t]+)"`)

// LocateBlock finds the first `"<key>" : {` occurrence (whitespace-tolerant)
// and scans forward counting braces until the opening brace is balanced.
//
// The scan is purely lexical: it does not skip braces inside quoted string
// values. Callers must ensure the block's string values contain no literal
// brace characters, or the located span will be wrong.
func LocateBlock(text, key string) (Span, bool) {
	open := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*\{`)
	loc := open.FindStringIndex(text)
	if loc == nil {
		return Span{}, false
	}

	depth := 1
	for i := loc[1]; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Span{Start: loc[1], End: i}, true
			}
		}
	}
	return Span{}, false
}

// InferIndent returns the indentation of the block's entry lines: the
// whitespace run of the first line inside the span that starts a quoted key.
// Blocks without such a line get a fixed two-space indent so inserted lines
// stay visually consistent with hand-written files.
func InferIndent(text string, span Span) string {
	m := indentPattern.FindStringSubmatch(text[span.Start:span.End])
	if m == nil {
		return defaultIndent
	}
	return m[1]
}

// insertLine splices `"key": "value",` as a new line immediately before the
// span's closing brace, indented to match the block's existing entries.
func insertLine(text string, span Span, indent, key, value string) string {
	at := span.End
	for at > span.Start && (text[at-1] == ' ' || text[at-1] == '\t') {
		at--
	}

	line := indent + `"` + key + `": "` + value + `",` + "\n"
	var b strings.Builder
	b.Grow(len(text) + len(line) + 1)
	b.WriteString(text[:at])
	if at == span.Start || text[at-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(line)
	b.WriteString(text[at:])
	return b.String()
}
