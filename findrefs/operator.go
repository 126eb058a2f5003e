package findrefs

import "strings"

// PredefinedOperator is an operator kind with a fixed textual spelling.
type PredefinedOperator int

const (
	OpNone PredefinedOperator = iota
	OpAddition
	OpBitwiseAnd
	OpBitwiseOr
	OpComplement
	OpConcatenate
	OpDecrement
	OpDivision
	OpEquality
	OpExclusiveOr
	OpExponent
	OpGreaterThan
	OpGreaterThanOrEqual
	OpIncrement
	OpInequality
	OpIntegerDivision
	OpLeftShift
	OpLessThan
	OpLessThanOrEqual
	OpLike
	OpLogicalNot
	OpModulus
	OpMultiplication
	OpRightShift
	OpSubtraction
	OpUnsignedRightShift

	numPredefinedOperators
)

var operatorNames = [...]string{
	OpNone:               "None",
	OpAddition:           "Addition",
	OpBitwiseAnd:         "BitwiseAnd",
	OpBitwiseOr:          "BitwiseOr",
	OpComplement:         "Complement",
	OpConcatenate:        "Concatenate",
	OpDecrement:          "Decrement",
	OpDivision:           "Division",
	OpEquality:           "Equality",
	OpExclusiveOr:        "ExclusiveOr",
	OpExponent:           "Exponent",
	OpGreaterThan:        "GreaterThan",
	OpGreaterThanOrEqual: "GreaterThanOrEqual",
	OpIncrement:          "Increment",
	OpInequality:         "Inequality",
	OpIntegerDivision:    "IntegerDivision",
	OpLeftShift:          "LeftShift",
	OpLessThan:           "LessThan",
	OpLessThanOrEqual:    "LessThanOrEqual",
	OpLike:               "Like",
	OpLogicalNot:         "LogicalNot",
	OpModulus:            "Modulus",
	OpMultiplication:     "Multiplication",
	OpRightShift:         "RightShift",
	OpSubtraction:        "Subtraction",
	OpUnsignedRightShift: "UnsignedRightShift",
}

func (op PredefinedOperator) String() string {
	if op < 0 || op >= numPredefinedOperators {
		return "None"
	}
	return operatorNames[op]
}

// metadataOperators maps operator method metadata names to their
// predefined operator. Unary and binary forms of the same token share an
// entry; checked variants map to their unchecked operator.
var metadataOperators = map[string]PredefinedOperator{
	"op_Addition":           OpAddition,
	"op_UnaryPlus":          OpAddition,
	"op_BitwiseAnd":         OpBitwiseAnd,
	"op_BitwiseOr":          OpBitwiseOr,
	"op_OnesComplement":     OpComplement,
	"op_Concatenate":        OpConcatenate,
	"op_Decrement":          OpDecrement,
	"op_Division":           OpDivision,
	"op_Equality":           OpEquality,
	"op_ExclusiveOr":        OpExclusiveOr,
	"op_Exponent":           OpExponent,
	"op_GreaterThan":        OpGreaterThan,
	"op_GreaterThanOrEqual": OpGreaterThanOrEqual,
	"op_Increment":          OpIncrement,
	"op_Inequality":         OpInequality,
	"op_IntegerDivision":    OpIntegerDivision,
	"op_LeftShift":          OpLeftShift,
	"op_LessThan":           OpLessThan,
	"op_LessThanOrEqual":    OpLessThanOrEqual,
	"op_Like":               OpLike,
	"op_LogicalNot":         OpLogicalNot,
	"op_Modulus":            OpModulus,
	"op_Multiply":           OpMultiplication,
	"op_RightShift":         OpRightShift,
	"op_Subtraction":        OpSubtraction,
	"op_UnaryNegation":      OpSubtraction,
	"op_UnsignedRightShift": OpUnsignedRightShift,
}

// OperatorForMetadataName maps an operator metadata name such as
// "op_Equality" to its PredefinedOperator.
func OperatorForMetadataName(name string) PredefinedOperator {
	if op, ok := metadataOperators[name]; ok {
		return op
	}
	if strings.HasPrefix(name, "op_Checked") {
		return metadataOperators["op_"+strings.TrimPrefix(name, "op_Checked")]
	}
	return OpNone
}

// GetPredefinedOperator returns the operator kind of an operator symbol.
// It is OpNone for non-operators and for operators without a fixed
// textual form (op_True, op_Implicit, ...).
func GetPredefinedOperator(sym *Symbol) PredefinedOperator {
	if sym == nil || !sym.IsOperator() {
		return OpNone
	}
	return OperatorForMetadataName(sym.Name)
}

// OperatorSet is a set of predefined operators.
type OperatorSet uint32

func (s *OperatorSet) Add(op PredefinedOperator) {
	if op > OpNone && op < numPredefinedOperators {
		*s |= 1 << uint(op)
	}
}

func (s OperatorSet) Has(op PredefinedOperator) bool {
	return op > OpNone && op < numPredefinedOperators && s&(1<<uint(op)) != 0
}

func (s OperatorSet) String() string {
	var names []string
	for op := OpNone + 1; op < numPredefinedOperators; op++ {
		if s.Has(op) {
			names = append(names, op.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
