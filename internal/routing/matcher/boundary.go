package matcher

import "strings"

// BoundaryKind enumerates the ways a segment's start or end can be pinned
// during the single-pass, non-backtracking scan.
type BoundaryKind int

const (
	// StartsNow anchors a start boundary at the current cursor with no
	// scan required.
	StartsNow BoundaryKind = iota
	// AtString scans forward for the next occurrence of Text (ordinal or
	// case-insensitive, per IgnoreCase) and anchors there.
	AtString
	// EqualsOrdinal requires the bytes at the cursor to match Text
	// exactly; used for literal segments.
	EqualsOrdinal
	// FixedLength consumes exactly Length bytes from the cursor.
	FixedLength
	// InheritFromNext defers an end boundary to wherever the following
	// segment's start boundary is found to begin.
	InheritFromNext
	// SegmentFullyMatched marks a segment whose start boundary (an
	// EqualsOrdinal literal match) already consumed the entire segment.
	SegmentFullyMatched
	// EndOfInput anchors an end boundary at the end of the remaining
	// input; used for a trailing capture with nothing after it.
	EndOfInput
)

// Boundary describes one edge (start or end) of a Segment.
type Boundary struct {
	Kind         BoundaryKind
	Text         string
	Length       int
	IgnoreCase   bool
	IncludeInVar bool // whether the boundary's own matched text is folded into the captured value
}

// find locates the boundary within s starting at offset from, returning the
// [spanStart, spanEnd) range of the boundary's own matched text (for
// StartsNow/EndOfInput, an empty span at the anchor point). ok is false if
// the boundary never occurs. Callers combine this span with IncludeInVar to
// decide both the captured value's edge and where scanning resumes; see
// runtime.go.
func (b Boundary) find(s string, from int) (spanStart int, spanEnd int, ok bool) {
	switch b.Kind {
	case StartsNow:
		return from, from, true
	case AtString:
		rest := s[from:]
		var idx int
		if b.IgnoreCase {
			idx = strings.Index(strings.ToLower(rest), strings.ToLower(b.Text))
		} else {
			idx = strings.Index(rest, b.Text)
		}
		if idx < 0 {
			return 0, 0, false
		}
		spanStart = from + idx
		spanEnd = spanStart + len(b.Text)
		return spanStart, spanEnd, true
	case EqualsOrdinal:
		if from+len(b.Text) > len(s) {
			return 0, 0, false
		}
		seg := s[from : from+len(b.Text)]
		match := seg == b.Text
		if !match && b.IgnoreCase {
			match = strings.EqualFold(seg, b.Text)
		}
		if !match {
			return 0, 0, false
		}
		return from, from + len(b.Text), true
	case FixedLength:
		if from+b.Length > len(s) {
			return 0, 0, false
		}
		return from, from + b.Length, true
	case EndOfInput:
		return len(s), len(s), true
	default:
		return 0, 0, false
	}
}
