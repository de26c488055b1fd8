// Package literal decides, per dialect, whether a Go value is inlined into SQL text or
// bound as a positional parameter, and produces the inline text when it is.
package literal

import "reflect"

// Literal is the synthesized form of one value: inline SQL text, or a parameter
// carrying the value to bind.
type Literal struct {
	Text  string
	Param bool
	Value any
}

// Null is the inline NULL literal.
var Null = Literal{Text: "NULL"}

// Type is the destination type every literal conversion is registered under.
var Type = reflect.TypeFor[Literal]()

// Inline returns a literal emitted verbatim.
func Inline(text string) Literal {
	return Literal{Text: text}
}

// Parameter returns a literal bound as a positional parameter.
func Parameter(v any) Literal {
	return Literal{Text: "?", Param: true, Value: v}
}

// BoolPolicy selects how booleans are written inline.
type BoolPolicy int

const (
	// BoolKeyword writes TRUE and FALSE.
	BoolKeyword BoolPolicy = iota
	// BoolNumeric writes 1 and 0.
	BoolNumeric
	// BoolChar writes '1' and '0'.
	BoolChar
	// BoolYesNo writes 'Y' and 'N'.
	BoolYesNo
)

func (p BoolPolicy) format(v bool) string {
	switch p {
	case BoolNumeric:
		if v {
			return "1"
		}
		return "0"
	case BoolChar:
		if v {
			return "'1'"
		}
		return "'0'"
	case BoolYesNo:
		if v {
			return "'Y'"
		}
		return "'N'"
	default:
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
}

// DateStyle selects how date and time values are written inline.
type DateStyle int

const (
	// DateANSI writes typed literals such as DATE'2024-01-02'.
	DateANSI DateStyle = iota
	// DateQuoted writes plain quoted strings such as '2024-01-02'.
	DateQuoted
)

func (s DateStyle) format(keyword, value string) string {
	if s == DateQuoted {
		return "'" + value + "'"
	}

	return keyword + "'" + value + "'"
}
