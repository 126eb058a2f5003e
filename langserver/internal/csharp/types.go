package csharp

import (
	"strings"

	"github.com/sourcegraph/refsearch/findrefs"
)

var keywordTypes = map[string]string{
	"bool":    "System.Boolean",
	"byte":    "System.Byte",
	"sbyte":   "System.SByte",
	"char":    "System.Char",
	"short":   "System.Int16",
	"ushort":  "System.UInt16",
	"int":     "System.Int32",
	"uint":    "System.UInt32",
	"long":    "System.Int64",
	"ulong":   "System.UInt64",
	"nint":    "System.IntPtr",
	"nuint":   "System.UIntPtr",
	"float":   "System.Single",
	"double":  "System.Double",
	"decimal": "System.Decimal",
	"string":  "System.String",
	"object":  "System.Object",
	"void":    "System.Void",
	"dynamic": "System.Object",
}

// canonicalType is the parameter type spelling used in symbol IDs:
// keywords map to their System type, everything else is kept as written.
func canonicalType(text string) string {
	text = strings.Join(strings.Fields(text), "")
	suffix := ""
	for {
		switch {
		case strings.HasSuffix(text, "[]"):
			text, suffix = text[:len(text)-2], "[]"+suffix
			continue
		case strings.HasSuffix(text, "?"):
			text, suffix = text[:len(text)-1], "?"+suffix
			continue
		}
		break
	}
	if full, ok := keywordTypes[text]; ok {
		text = full
	}
	return text + suffix
}

// numericRank orders the predefined numeric types for binary promotion.
var numericRank = map[string]int{
	"System.SByte":   1,
	"System.Byte":    1,
	"System.Int16":   1,
	"System.UInt16":  1,
	"System.Char":    1,
	"System.Int32":   2,
	"System.UInt32":  3,
	"System.Int64":   4,
	"System.UInt64":  5,
	"System.Single":  6,
	"System.Double":  7,
	"System.Decimal": 8,
}

func isNumeric(t string) bool { return numericRank[t] > 0 }

func isPredefined(t string) bool {
	return isNumeric(t) || t == "System.Boolean" || t == "System.String" || t == "System.Object"
}

// promote returns the operand type of a predefined binary operator applied
// to a and b.
func promote(a, b string) string {
	ra, rb := numericRank[a], numericRank[b]
	if ra == 0 || rb == 0 {
		return ""
	}
	if rb > ra {
		a, b, ra, rb = b, a, rb, ra
	}
	switch {
	case ra <= 2:
		return "System.Int32"
	case a == "System.UInt32" && (b == "System.SByte" || b == "System.Int16" || b == "System.Int32"):
		return "System.Int64"
	}
	return a
}

var binaryOperatorNames = map[string]string{
	"+":   "op_Addition",
	"-":   "op_Subtraction",
	"*":   "op_Multiply",
	"/":   "op_Division",
	"%":   "op_Modulus",
	"&":   "op_BitwiseAnd",
	"|":   "op_BitwiseOr",
	"^":   "op_ExclusiveOr",
	"<<":  "op_LeftShift",
	">>":  "op_RightShift",
	">>>": "op_UnsignedRightShift",
	"==":  "op_Equality",
	"!=":  "op_Inequality",
	"<":   "op_LessThan",
	">":   "op_GreaterThan",
	"<=":  "op_LessThanOrEqual",
	">=":  "op_GreaterThanOrEqual",
}

var unaryOperatorNames = map[string]string{
	"+":     "op_UnaryPlus",
	"-":     "op_UnaryNegation",
	"!":     "op_LogicalNot",
	"~":     "op_OnesComplement",
	"++":    "op_Increment",
	"--":    "op_Decrement",
	"true":  "op_True",
	"false": "op_False",
}

// operatorMetadataName returns the metadata name of an operator declared
// with the given token and number of parameters.
func operatorMetadataName(op string, params int) string {
	if params == 1 {
		if name, ok := unaryOperatorNames[op]; ok {
			return name
		}
	}
	if name, ok := binaryOperatorNames[op]; ok {
		return name
	}
	if name, ok := unaryOperatorNames[op]; ok {
		return name
	}
	return "op_" + op
}

// compoundBase maps compound assignments to their binary operator.
var compoundBase = map[string]string{
	"+=":   "+",
	"-=":   "-",
	"*=":   "*",
	"/=":   "/",
	"%=":   "%",
	"&=":   "&",
	"|=":   "|",
	"^=":   "^",
	"<<=":  "<<",
	">>=":  ">>",
	">>>=": ">>>",
}

// BuiltinOperator returns the symbol of the predefined operator name on
// type typ, or nil when typ has no such operator.
func BuiltinOperator(typ, name string) *findrefs.Symbol {
	if !isPredefined(typ) {
		return nil
	}
	op := findrefs.OperatorForMetadataName(name)
	if op == findrefs.OpNone {
		return nil
	}
	params := []string{typ, typ}
	switch {
	case op == findrefs.OpLeftShift || op == findrefs.OpRightShift || op == findrefs.OpUnsignedRightShift:
		params = []string{typ, "System.Int32"}
	case strings.HasPrefix(name, "op_Unary") || name == "op_LogicalNot" || name == "op_OnesComplement" ||
		name == "op_Increment" || name == "op_Decrement":
		params = []string{typ}
	}
	return &findrefs.Symbol{
		Kind:           findrefs.KindMethod,
		MethodKind:     findrefs.MethodBuiltinOperator,
		Name:           name,
		ContainingType: typ,
		Parameters:     params,
	}
}

// typeParts splits a resolved type such as "N.List<N.C>" into its base
// name and type arguments.
func typeParts(t string) (string, []string) {
	i := strings.IndexByte(t, '<')
	if i < 0 || !strings.HasSuffix(t, ">") {
		return t, nil
	}
	return t[:i], splitTopLevel(t[i+1:len(t)-1], ',')
}

// splitTopLevel splits s at sep outside of brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[', '{':
			depth++
		case '>', ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) || len(parts) > 0 {
		parts = append(parts, s[start:])
	}
	return parts
}

// elementType returns the element type of an array or generic collection.
func elementType(t string) string {
	if strings.HasSuffix(t, "[]") {
		return t[:len(t)-2]
	}
	if _, args := typeParts(t); len(args) > 0 {
		return args[len(args)-1]
	}
	return ""
}

func lastSegment(name string) string {
	name, _ = typeParts(name)
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// sameType compares a declared parameter type with a resolved argument
// type. Unresolved names compare by their last segment.
func sameType(param, arg string) bool {
	param = strings.TrimSuffix(canonicalType(param), "?")
	arg = strings.TrimSuffix(arg, "?")
	if param == arg {
		return true
	}
	if strings.HasSuffix(param, "[]") != strings.HasSuffix(arg, "[]") {
		return false
	}
	return lastSegment(strings.TrimSuffix(param, "[]")) == lastSegment(strings.TrimSuffix(arg, "[]"))
}
