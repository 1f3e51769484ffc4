package matcher

import (
	"strconv"
	"strings"

	"github.com/imageflow/cascade/internal/routing/charclass"
)

// ConditionKind enumerates the post-boundary validations that can be
// attached to a captured segment.
type ConditionKind int

const (
	CondAlpha ConditionKind = iota
	CondAlphaLower
	CondAlphaUpper
	CondAlphaNumeric
	CondHex
	CondInt32
	CondInt64
	CondUint32
	CondUint64
	CondRange
	CondLength
	CondGUID
	CondEquals
	CondStartsWith
	CondEndsWith
	CondContains
	CondAllow
	CondStartsWithChars
)

// Condition is a single post-boundary validation rule.
type Condition struct {
	Kind       ConditionKind
	IgnoreCase bool
	Alts       []string // for Equals/StartsWith/EndsWith/Contains
	Min, Max   int64     // for Range and Length; each bound applies only if HasMin/HasMax is set
	HasMin     bool
	HasMax     bool
	Length     int    // for StartsWithChars (n)
	Class      *charclass.Class // for Allow/StartsWithChars
}

// Evaluate reports whether value satisfies the condition.
func (c Condition) Evaluate(value string) bool {
	switch c.Kind {
	case CondAlpha:
		return isAllByteClass(value, isAlphaByte)
	case CondAlphaLower:
		return isAllByteClass(value, func(b byte) bool { return b >= 'a' && b <= 'z' })
	case CondAlphaUpper:
		return isAllByteClass(value, func(b byte) bool { return b >= 'A' && b <= 'Z' })
	case CondAlphaNumeric:
		return isAllByteClass(value, func(b byte) bool { return isAlphaByte(b) || isDigitByte(b) })
	case CondHex:
		return isAllByteClass(value, isHexByte)
	case CondInt32:
		_, err := strconv.ParseInt(value, 10, 32)
		return err == nil && validIntegerLiteral(value)
	case CondInt64:
		_, err := strconv.ParseInt(value, 10, 64)
		return err == nil && validIntegerLiteral(value)
	case CondUint32:
		_, err := strconv.ParseUint(value, 10, 32)
		return err == nil && validUnsignedLiteral(value)
	case CondUint64:
		_, err := strconv.ParseUint(value, 10, 64)
		return err == nil && validUnsignedLiteral(value)
	case CondRange:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || !validIntegerLiteral(value) {
			return false
		}
		if c.HasMin && n < c.Min {
			return false
		}
		if c.HasMax && n > c.Max {
			return false
		}
		return true
	case CondLength:
		l := int64(len(value))
		if !c.HasMin && !c.HasMax {
			return l == c.Min
		}
		if c.HasMin && l < c.Min {
			return false
		}
		if c.HasMax && l > c.Max {
			return false
		}
		return true
	case CondGUID:
		return isGUID(value)
	case CondEquals:
		return matchesAny(value, c.Alts, c.IgnoreCase, func(v, alt string) bool { return v == alt })
	case CondStartsWith:
		return matchesAny(value, c.Alts, c.IgnoreCase, strings.HasPrefix)
	case CondEndsWith:
		return matchesAny(value, c.Alts, c.IgnoreCase, strings.HasSuffix)
	case CondContains:
		return matchesAny(value, c.Alts, c.IgnoreCase, strings.Contains)
	case CondAllow:
		return isAllByteClass(value, c.Class.Contains)
	case CondStartsWithChars:
		if len(value) < c.Length {
			return false
		}
		return isAllByteClass(value[:c.Length], c.Class.Contains)
	default:
		return false
	}
}

func matchesAny(value string, alts []string, ignoreCase bool, pred func(v, alt string) bool) bool {
	for _, alt := range alts {
		v, a := value, alt
		if ignoreCase {
			v, a = strings.ToLower(v), strings.ToLower(a)
		}
		if pred(v, a) {
			return true
		}
	}
	return false
}

func isAllByteClass(s string, pred func(byte) bool) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !pred(s[i]) {
			return false
		}
	}
	return true
}

func isAlphaByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigitByte(b byte) bool {
	return b >= '0' && b <= '9'
}

func isHexByte(b byte) bool {
	return isDigitByte(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// validIntegerLiteral accepts only an optional leading '-' followed by ASCII
// digits, rejecting forms strconv.ParseInt tolerates, such as a leading
// '+'. It does not reject "-0".
func validIntegerLiteral(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' {
		i = 1
	}
	if i >= len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if !isDigitByte(s[i]) {
			return false
		}
	}
	return true
}

func validUnsignedLiteral(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigitByte(s[i]) {
			return false
		}
	}
	return true
}

func isGUID(s string) bool {
	// 8-4-4-4-12 hex digits separated by hyphens.
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		return false
	}
	lens := []int{8, 4, 4, 4, 12}
	for i, p := range parts {
		if len(p) != lens[i] || !isAllByteClass(p, isHexByte) {
			return false
		}
	}
	return true
}
