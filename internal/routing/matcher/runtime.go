package matcher

import "strings"

// Match runs the single, linear, non-backtracking scan described by m's
// compiled segments against input, returning the named captures on success.
// A segment that fails to find its boundary is skipped entirely (no
// capture, no cursor movement) when it was declared optional; otherwise the
// whole match fails. Any input left unconsumed after the last segment also
// fails the match.
func (m *MatchExpression) Match(input string) (map[string]string, bool) {
	cursor := 0
	captures := make(map[string]string)

	for _, seg := range m.Segments {
		if seg.IsLiteral {
			sStart, sEnd, ok := seg.Start.find(input, cursor)
			if !ok || sStart != cursor {
				return nil, false
			}
			cursor = sEnd
			continue
		}

		if seg.End.Kind == SegmentFullyMatched {
			sStart, sEnd, ok := seg.Start.find(input, cursor)
			if !ok || sStart != cursor {
				if seg.Optional {
					continue
				}
				return nil, false
			}
			val := input[sStart:sEnd]
			if !evalConditions(seg.Conditions, val) {
				if seg.Optional {
					continue
				}
				return nil, false
			}
			if seg.CaptureName != "" {
				captures[seg.CaptureName] = val
			}
			cursor = sEnd
			continue
		}

		sStart, sEnd, ok := seg.Start.find(input, cursor)
		if !ok {
			if seg.Optional {
				continue
			}
			return nil, false
		}
		dataStart := sEnd
		if seg.Start.IncludeInVar {
			dataStart = sStart
		}

		eStart, eEnd, ok := seg.End.find(input, dataStart)
		if !ok {
			if seg.Optional {
				continue
			}
			return nil, false
		}

		if seg.Glob == "*" {
			if slash := strings.IndexByte(input[dataStart:max(eStart, dataStart)], '/'); slash >= 0 {
				eStart = dataStart + slash
				eEnd = eStart
			}
		}

		var contentEnd, resumeAt int
		if seg.End.Kind == AtString && !seg.End.IncludeInVar {
			// The boundary text itself (e.g. a delimiting literal) is left
			// unconsumed so the following segment can match it.
			contentEnd = eStart
			resumeAt = eStart
		} else {
			contentEnd = eEnd
			resumeAt = eEnd
		}

		val := input[dataStart:contentEnd]
		if seg.Optional && val == "" {
			// An optional capture that matched zero bytes is treated as
			// absent rather than present-with-empty-string.
			continue
		}
		if !evalConditions(seg.Conditions, val) {
			if seg.Optional {
				continue
			}
			return nil, false
		}
		if seg.CaptureName != "" {
			captures[seg.CaptureName] = val
		}
		cursor = resumeAt
	}

	if cursor != len(input) {
		return nil, false
	}
	return captures, true
}

// MatchesEmpty reports whether m can match the empty string, i.e. whether
// it is "entirely optional" in the sense spec.md §4.6 uses to decide
// whether a declared query key may be absent from the request: every
// segment in m must be either optional or a zero-length literal.
func (m *MatchExpression) MatchesEmpty() bool {
	_, ok := m.Match("")
	return ok
}

// CapturedVariables returns every named capture in m together with whether
// that capture's own segment was declared optional.
func (m *MatchExpression) CapturedVariables() map[string]bool {
	vars := make(map[string]bool)
	for _, seg := range m.Segments {
		if seg.CaptureName != "" {
			vars[seg.CaptureName] = seg.Optional
		}
	}
	return vars
}

func evalConditions(conds []Condition, value string) bool {
	for _, c := range conds {
		if !c.Evaluate(value) {
			return false
		}
	}
	return true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
