package csharp

import (
	"strings"

	"github.com/sourcegraph/refsearch/findrefs"
)

// Facts are the lexical facts of C#.
type Facts struct{}

var _ findrefs.SyntaxFacts = Facts{}

var punctuationOperators = map[string]findrefs.PredefinedOperator{
	"+":    findrefs.OpAddition,
	"+=":   findrefs.OpAddition,
	"-":    findrefs.OpSubtraction,
	"-=":   findrefs.OpSubtraction,
	"*":    findrefs.OpMultiplication,
	"*=":   findrefs.OpMultiplication,
	"/":    findrefs.OpDivision,
	"/=":   findrefs.OpDivision,
	"%":    findrefs.OpModulus,
	"%=":   findrefs.OpModulus,
	"&":    findrefs.OpBitwiseAnd,
	"&=":   findrefs.OpBitwiseAnd,
	"|":    findrefs.OpBitwiseOr,
	"|=":   findrefs.OpBitwiseOr,
	"^":    findrefs.OpExclusiveOr,
	"^=":   findrefs.OpExclusiveOr,
	"~":    findrefs.OpComplement,
	"!":    findrefs.OpLogicalNot,
	"++":   findrefs.OpIncrement,
	"--":   findrefs.OpDecrement,
	"<<":   findrefs.OpLeftShift,
	"<<=":  findrefs.OpLeftShift,
	">>":   findrefs.OpRightShift,
	">>=":  findrefs.OpRightShift,
	">>>":  findrefs.OpUnsignedRightShift,
	">>>=": findrefs.OpUnsignedRightShift,
	"==":   findrefs.OpEquality,
	"!=":   findrefs.OpInequality,
	"<":    findrefs.OpLessThan,
	"<=":   findrefs.OpLessThanOrEqual,
	">":    findrefs.OpGreaterThan,
	">=":   findrefs.OpGreaterThanOrEqual,
}

func (Facts) PredefinedOperator(tok findrefs.Token) findrefs.PredefinedOperator {
	if tok.Kind != findrefs.TokenPunctuation {
		return findrefs.OpNone
	}
	return punctuationOperators[tok.Text]
}

var suppressionAttributes = map[string]bool{
	"SuppressMessage":                      true,
	"SuppressMessageAttribute":             true,
	"UnconditionalSuppressMessage":         true,
	"UnconditionalSuppressMessageAttribute": true,
}

// IsSuppressionAttribute reports whether name, qualified or not, names a
// diagnostic suppression attribute.
func (Facts) IsSuppressionAttribute(name string) bool {
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		name = name[i+1:]
	}
	return suppressionAttributes[name]
}

func (Facts) IsCaseSensitive() bool { return true }
