package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/imageflow/cascade/internal/routing/charclass"
)

// MatchExpression is a compiled, ordered list of Segments applied by a
// single linear, non-backtracking scan over an input string.
type MatchExpression struct {
	Source     string
	Segments   []Segment
	IgnoreCase bool
}

// compileSegments turns a token stream (as produced by tokenize) into a
// Segment slice, resolving each capture's end boundary to the following
// segment's start when the capture field list left it unset. A deferred end
// can only be resolved against a following segment whose own start is
// scannable (a literal, or an explicit starts-with/prefix boundary); chaining
// two unbounded captures back to back is rejected at compile time rather than
// silently falling back to end-of-input.
func compileSegments(tokens []Token, ignoreCase bool, interner *charclass.Interner) ([]Segment, error) {
	segments := make([]Segment, 0, len(tokens))

	for _, tok := range tokens {
		if !tok.Brace {
			segments = append(segments, Segment{
				IsLiteral: true,
				Literal:   tok.Text,
				Start:     Boundary{Kind: EqualsOrdinal, Text: tok.Text, IgnoreCase: ignoreCase},
				End:       Boundary{Kind: SegmentFullyMatched},
			})
			continue
		}
		seg, err := compileCapture(tok.Text, ignoreCase, interner)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	// Resolve deferred end boundaries: a capture with no explicit end
	// boundary scans forward to the next segment's start text if that
	// segment is a literal (or a capture with an explicit AtString start);
	// any other following segment is a compile error. A deferred end on the
	// last segment runs to end of input.
	for i := range segments {
		if segments[i].IsLiteral || segments[i].End.Kind != InheritFromNext {
			continue
		}
		if i+1 < len(segments) {
			next := segments[i+1]
			switch {
			case next.IsLiteral:
				segments[i].End = Boundary{Kind: AtString, Text: next.Literal, IgnoreCase: ignoreCase}
			case next.Start.Kind == AtString:
				segments[i].End = Boundary{Kind: AtString, Text: next.Start.Text, IgnoreCase: ignoreCase}
			default:
				return nil, fmt.Errorf("matcher: segment %s has a deferred end but the following segment's start boundary is not scannable (neither a literal nor an explicit starts-with/prefix)", segmentLabel(segments[i], i))
			}
		} else {
			segments[i].End = Boundary{Kind: EndOfInput}
		}
	}

	return segments, nil
}

func segmentLabel(seg Segment, index int) string {
	if seg.CaptureName != "" {
		return fmt.Sprintf("{%s}", seg.CaptureName)
	}
	return fmt.Sprintf("#%d", index)
}

func compileCapture(inner string, ignoreCase bool, interner *charclass.Interner) (Segment, error) {
	fields := splitUnescaped(inner, ':')
	if len(fields) == 0 {
		return Segment{}, fmt.Errorf("matcher: empty capture %q", inner)
	}

	seg := Segment{End: Boundary{Kind: InheritFromNext}}

	name := strings.TrimSpace(fields[0])
	switch name {
	case "**":
		seg.Glob = "**"
	case "*":
		seg.Glob = "*"
	case "?", "":
		// anonymous capture, possibly optional
		if name == "?" {
			seg.Optional = true
		}
	default:
		if strings.HasSuffix(name, "?") {
			seg.Optional = true
			name = strings.TrimSuffix(name, "?")
		}
		seg.CaptureName = name
	}

	for _, raw := range fields[1:] {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}
		if field == "optional" {
			seg.Optional = true
			continue
		}
		if field == "*" || field == "**" {
			seg.Glob = field
			continue
		}
		if err := applyField(&seg, field, ignoreCase, interner); err != nil {
			return Segment{}, fmt.Errorf("matcher: in capture %q: %w", inner, err)
		}
	}

	if seg.Start.Kind == 0 && seg.Start.Text == "" && seg.Start.Length == 0 {
		seg.Start = Boundary{Kind: StartsNow}
	}

	return seg, nil
}

func applyField(seg *Segment, field string, ignoreCase bool, interner *charclass.Interner) error {
	keyword, args, hasArgs := splitKeywordArgs(field)
	keyword = strings.ToLower(keyword)

	condIgnoreCase := ignoreCase
	if strings.HasSuffix(keyword, "-i") {
		condIgnoreCase = true
		keyword = strings.TrimSuffix(keyword, "-i")
	}

	switch keyword {
	case "starts-with", "starts", "starts_with":
		if hasArgs && strings.Contains(args, "|") {
			seg.Conditions = append(seg.Conditions, Condition{Kind: CondStartsWith, Alts: splitUnescaped(args, '|'), IgnoreCase: condIgnoreCase})
			return nil
		}
		if !hasArgs {
			return fmt.Errorf("starts-with requires an argument")
		}
		seg.Start = Boundary{Kind: AtString, Text: args, IgnoreCase: condIgnoreCase, IncludeInVar: true}
		return nil
	case "prefix":
		if !hasArgs {
			return fmt.Errorf("prefix requires an argument")
		}
		seg.Start = Boundary{Kind: AtString, Text: args, IgnoreCase: condIgnoreCase, IncludeInVar: false}
		return nil
	case "ends-with", "ends":
		if hasArgs && strings.Contains(args, "|") {
			seg.Conditions = append(seg.Conditions, Condition{Kind: CondEndsWith, Alts: splitUnescaped(args, '|'), IgnoreCase: condIgnoreCase})
			return nil
		}
		if !hasArgs {
			return fmt.Errorf("ends-with requires an argument")
		}
		seg.End = Boundary{Kind: AtString, Text: args, IgnoreCase: condIgnoreCase, IncludeInVar: true}
		return nil
	case "suffix":
		if !hasArgs {
			return fmt.Errorf("suffix requires an argument")
		}
		seg.End = Boundary{Kind: AtString, Text: args, IgnoreCase: condIgnoreCase, IncludeInVar: false}
		return nil
	case "equals", "eq":
		if hasArgs && strings.Contains(args, "|") {
			seg.Conditions = append(seg.Conditions, Condition{Kind: CondEquals, Alts: splitUnescaped(args, '|'), IgnoreCase: condIgnoreCase})
			return nil
		}
		if !hasArgs {
			return fmt.Errorf("equals requires an argument")
		}
		seg.Start = Boundary{Kind: EqualsOrdinal, Text: args, IgnoreCase: condIgnoreCase}
		seg.End = Boundary{Kind: SegmentFullyMatched}
		return nil
	case "contains":
		if !hasArgs {
			return fmt.Errorf("contains requires an argument")
		}
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondContains, Alts: splitUnescaped(args, '|'), IgnoreCase: condIgnoreCase})
		return nil
	case "len":
		n, err := strconv.Atoi(args)
		if err != nil {
			return fmt.Errorf("len requires a numeric argument: %w", err)
		}
		seg.Start = Boundary{Kind: StartsNow}
		seg.End = Boundary{Kind: FixedLength, Length: n}
		return nil
	case "length":
		parts := splitUnescaped(args, ',')
		if len(parts) == 1 {
			n, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("length requires numeric arguments: %w", err)
			}
			seg.Conditions = append(seg.Conditions, Condition{Kind: CondLength, Min: n})
			return nil
		}
		cond := Condition{Kind: CondLength}
		if lo := strings.TrimSpace(parts[0]); lo != "" {
			n, err := strconv.ParseInt(lo, 10, 64)
			if err != nil {
				return err
			}
			cond.Min = n
			cond.HasMin = true
		}
		if hi := strings.TrimSpace(parts[1]); hi != "" {
			n, err := strconv.ParseInt(hi, 10, 64)
			if err != nil {
				return err
			}
			cond.Max = n
			cond.HasMax = true
		}
		seg.Conditions = append(seg.Conditions, cond)
		return nil
	case "range":
		parts := splitUnescaped(args, ',')
		if len(parts) != 2 {
			return fmt.Errorf("range requires two comma-separated arguments")
		}
		cond := Condition{Kind: CondRange}
		if lo := strings.TrimSpace(parts[0]); lo != "" {
			n, err := strconv.ParseInt(lo, 10, 64)
			if err != nil {
				return err
			}
			cond.Min = n
			cond.HasMin = true
		}
		if hi := strings.TrimSpace(parts[1]); hi != "" {
			n, err := strconv.ParseInt(hi, 10, 64)
			if err != nil {
				return err
			}
			cond.Max = n
			cond.HasMax = true
		}
		seg.Conditions = append(seg.Conditions, cond)
		return nil
	case "alpha":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondAlpha})
		return nil
	case "alpha-lower":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondAlphaLower})
		return nil
	case "alpha-upper":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondAlphaUpper})
		return nil
	case "alphanumeric":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondAlphaNumeric})
		return nil
	case "hex":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondHex})
		return nil
	case "int32", "int", "i32":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondInt32})
		return nil
	case "int64", "i64", "long":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondInt64})
		return nil
	case "uint32":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondUint32})
		return nil
	case "uint64":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondUint64})
		return nil
	case "guid":
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondGUID})
		return nil
	case "allow":
		class, err := parseClassArg(args, interner)
		if err != nil {
			return err
		}
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondAllow, Class: class})
		return nil
	case "starts-with-chars":
		parts := splitUnescaped(args, ',')
		if len(parts) != 2 {
			return fmt.Errorf("starts-with-chars requires n,[class]")
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return err
		}
		class, err := parseClassArg(strings.TrimSpace(parts[1]), interner)
		if err != nil {
			return err
		}
		seg.Conditions = append(seg.Conditions, Condition{Kind: CondStartsWithChars, Length: n, Class: class})
		return nil
	default:
		return fmt.Errorf("unrecognized condition/boundary keyword %q", keyword)
	}
}

func parseClassArg(arg string, interner *charclass.Interner) (*charclass.Class, error) {
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(arg, "[") || !strings.HasSuffix(arg, "]") {
		return nil, fmt.Errorf("expected [charclass], got %q", arg)
	}
	if interner == nil {
		interner = charclass.Default
	}
	return interner.Intern(arg[1 : len(arg)-1])
}

// Compile compiles a bare path expression (no flags, no query part) into a
// MatchExpression.
func Compile(expr string, ignoreCase bool, interner *charclass.Interner) (*MatchExpression, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	segments, err := compileSegments(tokens, ignoreCase, interner)
	if err != nil {
		return nil, err
	}
	return &MatchExpression{Source: expr, Segments: segments, IgnoreCase: ignoreCase}, nil
}
