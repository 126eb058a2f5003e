package csharp

import (
	"strings"

	"github.com/sourcegraph/refsearch/findrefs"
)

var closers = map[string]string{")": "(", "]": "[", "}": "{"}
var openers = map[string]string{"(": ")", "[": "]", "{": "}"}

func (m *Model) isGeneric(i int) bool {
	return i >= 0 && i < len(m.f.code) && m.f.genericBrackets[m.f.code[i].Span.Start]
}

// matchBackward returns the index of the bracket opening the one closed at
// code index j, or -1.
func (m *Model) matchBackward(j int) int {
	close := m.text(j)
	open := closers[close]
	if close == ">" {
		open = "<"
	}
	depth := 0
	for k := j; k >= 0; k-- {
		switch t := m.text(k); {
		case t == close && (close != ">" || m.isGeneric(k)):
			depth++
		case t == open && (open != "<" || m.isGeneric(k)):
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// matchForward returns the index of the bracket closing the one opened at
// code index j, or -1.
func (m *Model) matchForward(j int) int {
	open := m.text(j)
	close := openers[open]
	if open == "<" {
		close = ">"
	}
	depth := 0
	for k := j; k < len(m.f.code); k++ {
		switch t := m.text(k); {
		case t == open && (open != "<" || m.isGeneric(k)):
			depth++
		case t == close && (close != ">" || m.isGeneric(k)):
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// skipTypeArguments returns i, or the index after the type argument list
// starting at i.
func (m *Model) skipTypeArguments(i int) int {
	if m.text(i) == "<" && m.isGeneric(i) {
		if end := m.matchForward(i); end > 0 {
			return end + 1
		}
	}
	return i
}

// argumentTypes returns the types of the arguments of the list opened at
// code index open.
func (m *Model) argumentTypes(open, depth int) []string {
	close := m.matchForward(open)
	if close < 0 || close == open+1 {
		return nil
	}
	var types []string
	start, level := open+1, 0
	for k := open + 1; k <= close; k++ {
		t := m.text(k)
		switch {
		case openers[t] != "" || (t == "<" && m.isGeneric(k)):
			level++
		case closers[t] != "" || (t == ">" && m.isGeneric(k)):
			level--
		}
		if (t == "," && level == 0) || k == close {
			types = append(types, m.argumentType(start, k-1, depth))
			start = k + 1
		}
	}
	return types
}

func (m *Model) argumentType(s, e, depth int) string {
	if s+1 <= e && m.f.code[s].Kind == findrefs.TokenIdentifier && m.text(s+1) == ":" {
		s += 2
	}
	switch m.text(s) {
	case "out":
		if s+2 <= e && m.text(s+1) != "var" {
			t, _ := m.resolveType(m.text(s+1), m.f.code[s+1].Span.Start)
			return t
		}
		s++
	case "ref", "in":
		s++
	}
	if s > e {
		return ""
	}
	return m.rangeType(s, e, depth+1)
}

// expressionEnd returns the index of the last token of the expression
// starting at code index s.
func (m *Model) expressionEnd(s int) int {
	level := 0
	for k := s; k < len(m.f.code); k++ {
		t := m.text(k)
		switch {
		case openers[t] != "" || (t == "<" && m.isGeneric(k)):
			level++
		case closers[t] != "" || (t == ">" && m.isGeneric(k)):
			if level == 0 {
				return k - 1
			}
			level--
		case level == 0 && (t == ";" || t == ","):
			return k - 1
		}
	}
	return len(m.f.code) - 1
}

var comparisonOperators = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "is": true,
}

// rangeType returns the type of the expression spanning code indexes
// s..e.
func (m *Model) rangeType(s, e, depth int) string {
	if s > e || depth > maxBindDepth {
		return ""
	}
	level := 0
	for k := s; k <= e; k++ {
		t := m.text(k)
		switch {
		case openers[t] != "" || (t == "<" && m.isGeneric(k)):
			level++
			continue
		case closers[t] != "" || (t == ">" && m.isGeneric(k)):
			level--
			continue
		}
		if level != 0 {
			continue
		}
		switch {
		case t == "=>":
			return ""
		case comparisonOperators[t]:
			return "System.Boolean"
		case t == "?":
			for c := k + 1; c <= e; c++ {
				if m.text(c) == ":" {
					return m.rangeType(c+1, e, depth+1)
				}
			}
		case t == "??":
			return m.rangeType(s, k-1, depth+1)
		case t == "as":
			full, _ := m.resolveType(m.joined(k+1, e), m.f.code[k].Span.Start)
			return full
		}
	}
	if m.text(s) == "!" {
		return "System.Boolean"
	}
	return m.exprType(e, depth+1).typ
}

func (m *Model) joined(s, e int) string {
	var b strings.Builder
	for k := s; k <= e && k < len(m.f.code); k++ {
		b.WriteString(m.text(k))
	}
	return b.String()
}

// exprType binds the primary expression ending at code index j.
func (m *Model) exprType(j, depth int) binding {
	if j < 0 || j >= len(m.f.code) || depth > maxBindDepth {
		return binding{}
	}
	tok := m.f.code[j]
	switch tok.Kind {
	case findrefs.TokenNumber:
		return binding{typ: numberType(tok.Text)}
	case findrefs.TokenString:
		if strings.HasPrefix(tok.Text, "'") {
			return binding{typ: "System.Char"}
		}
		return binding{typ: "System.String"}
	case findrefs.TokenIdentifier:
		return m.bindName(j, depth+1)
	case findrefs.TokenKeyword:
		switch tok.Text {
		case "true", "false":
			return binding{typ: "System.Boolean"}
		case "this":
			if ts := m.enclosingTypes(tok.Span.Start); len(ts) > 0 {
				return binding{typ: ts[0].FullName()}
			}
		case "base":
			if ts := m.enclosingTypes(tok.Span.Start); len(ts) > 0 {
				if bs := m.bases(ts[0].FullName(), 0); len(bs) > 0 {
					return binding{typ: bs[0]}
				}
			}
		}
		if full, ok := keywordTypes[tok.Text]; ok {
			return binding{typ: full, isType: true}
		}
		return binding{}
	}
	switch tok.Text {
	case ")":
		open := m.matchBackward(j)
		if open < 0 {
			return binding{}
		}
		callee := open - 1
		if m.text(callee) == ">" && m.isGeneric(callee) {
			callee = m.matchBackward(callee) - 1
		}
		if callee >= 0 && m.f.code[callee].Kind == findrefs.TokenIdentifier {
			// Invocations yield the return type, constructions the type.
			return binding{typ: m.bindName(callee, depth+1).typ}
		}
		if callee >= 0 && (m.text(callee) == ")" || m.text(callee) == "]") {
			return binding{}
		}
		if t := m.text(callee); callee >= 0 && (t == "typeof" || t == "nameof" || t == "sizeof") {
			switch t {
			case "typeof":
				return binding{typ: "System.Type"}
			case "nameof":
				return binding{typ: "System.String"}
			}
			return binding{typ: "System.Int32"}
		}
		return binding{typ: m.rangeType(open+1, j-1, depth+1)}
	case "]":
		open := m.matchBackward(j)
		if open < 1 {
			return binding{}
		}
		recv := m.exprType(open-1, depth+1)
		if recv.typ == "" || recv.isType {
			return binding{}
		}
		if el := elementType(recv.typ); strings.HasSuffix(recv.typ, "[]") {
			return binding{typ: el}
		}
		if ms := m.members(recv.typ, "this[]"); len(ms) > 0 {
			return binding{typ: m.memberType(ms[0])}
		}
		return binding{}
	case "}":
		open := m.matchBackward(j)
		if open < 1 {
			return binding{}
		}
		return binding{typ: m.creationType(open - 1)}
	case "++", "--", "!":
		return m.exprType(j-1, depth+1)
	}
	return binding{}
}

func numberType(text string) string {
	lower := strings.ToLower(text)
	hex := strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0b")
	switch {
	case strings.HasSuffix(lower, "m"):
		return "System.Decimal"
	case !hex && strings.HasSuffix(lower, "f"):
		return "System.Single"
	case !hex && (strings.HasSuffix(lower, "d") || strings.ContainsAny(lower, ".e")):
		return "System.Double"
	case strings.HasSuffix(lower, "ul") || strings.HasSuffix(lower, "lu"):
		return "System.UInt64"
	case strings.HasSuffix(lower, "l"):
		return "System.Int64"
	case strings.HasSuffix(lower, "u"):
		return "System.UInt32"
	}
	return "System.Int32"
}

// isOperandEnd reports whether the token at j can end an operand, which
// makes a following operator binary or postfix.
func (m *Model) isOperandEnd(j int) bool {
	if j < 0 {
		return false
	}
	tok := m.f.code[j]
	switch tok.Kind {
	case findrefs.TokenIdentifier, findrefs.TokenNumber, findrefs.TokenString:
		return true
	case findrefs.TokenKeyword:
		switch tok.Text {
		case "this", "base", "true", "false", "null", "default":
			return true
		}
		return false
	}
	switch tok.Text {
	case ")", "]":
		return true
	case "++", "--", "!":
		return m.isOperandEnd(j - 1)
	}
	return false
}

// primaryEnd returns the index of the last token of the unary expression
// starting at code index s, or -1.
func (m *Model) primaryEnd(s int) int {
	for s < len(m.f.code) {
		switch m.text(s) {
		case "-", "+", "!", "~", "++", "--", "&", "*", "^":
			s++
			continue
		}
		break
	}
	if s >= len(m.f.code) {
		return -1
	}
	j := s
	switch t := m.text(s); {
	case t == "(":
		j = m.matchForward(s)
		if j < 0 {
			return -1
		}
		if j == s+2 && m.f.code[s+1].Kind == findrefs.TokenIdentifier && m.isOperandStart(j+1) {
			// Cast.
			return m.primaryEnd(j + 1)
		}
	case t == "new" && m.text(s+1) == "(":
		j = m.matchForward(s + 1)
		if j >= 0 && m.text(j+1) == "{" {
			j = m.matchForward(j + 1)
		}
		if j < 0 {
			return -1
		}
	case t == "new":
		j = s + 1
		for j+2 < len(m.f.code) && m.text(j+1) == "." {
			j += 2
		}
		j = m.skipTypeArguments(j+1) - 1
		if m.text(j+1) == "(" || m.text(j+1) == "[" {
			j = m.matchForward(j + 1)
		}
		if j >= 0 && m.text(j+1) == "{" {
			j = m.matchForward(j + 1)
		}
		if j < 0 {
			return -1
		}
	}
	for j >= 0 && j+1 < len(m.f.code) {
		switch m.text(j + 1) {
		case ".", "?.", "->":
			if j+2 < len(m.f.code) && m.f.code[j+2].Kind == findrefs.TokenIdentifier {
				j += 2
				continue
			}
		case "(", "[":
			j = m.matchForward(j + 1)
			continue
		case "<":
			if m.isGeneric(j + 1) {
				j = m.matchForward(j + 1)
				continue
			}
		case "++", "--":
			j++
			continue
		case "!":
			if t := m.text(j + 2); t == "." || t == "?." || t == "[" {
				j++
				continue
			}
		}
		break
	}
	return j
}

func (m *Model) isOperandStart(j int) bool {
	if j >= len(m.f.code) {
		return false
	}
	switch m.f.code[j].Kind {
	case findrefs.TokenIdentifier, findrefs.TokenNumber, findrefs.TokenString:
		return true
	}
	switch m.text(j) {
	case "(", "this", "base", "new", "true", "false", "null":
		return true
	}
	return false
}

// bindOperator binds an operator token to the operator method it invokes.
func (m *Model) bindOperator(i int) binding {
	tok := m.f.code[i]
	if (Facts{}).PredefinedOperator(tok) == findrefs.OpNone || m.isGeneric(i) {
		return binding{}
	}
	text := tok.Text
	base, compound := compoundBase[text]
	if !compound {
		base = text
	}
	postfixPosition := m.isOperandEnd(i - 1)

	var name string
	var operands []string
	switch {
	case text == "++" || text == "--":
		name = unaryOperatorNames[text]
		if postfixPosition {
			operands = []string{m.exprType(i-1, 0).typ}
		} else {
			operands = []string{m.exprType(m.primaryEnd(i+1), 0).typ}
		}
	case !postfixPosition:
		name = unaryOperatorNames[text]
		if name == "" {
			return binding{}
		}
		operands = []string{m.exprType(m.primaryEnd(i+1), 0).typ}
	default:
		if text == "!" {
			// Null-forgiving postfix operator.
			return binding{}
		}
		name = binaryOperatorNames[base]
		left := m.exprType(i-1, 0)
		if compound && left.event {
			return binding{}
		}
		if compound && left.typ != "" {
			if parts := m.d.Type(left.typ); len(parts) > 0 && parts[0].Kind == "delegate" {
				return binding{}
			}
		}
		right := binding{}
		if end := m.primaryEnd(i + 1); end >= 0 {
			right = m.exprType(end, 0)
		}
		operands = []string{left.typ, right.typ}
	}
	if name == "" {
		return binding{}
	}
	return m.resolveOperator(name, operands)
}

// resolveOperator finds the operator name applied to operands of the
// given types. User-defined operators of the operand types win over
// predefined ones; unknown operand types yield candidates.
func (m *Model) resolveOperator(name string, operands []string) binding {
	var ms []*MemberDecl
	seen := make(map[string]bool)
	for _, t := range operands {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		for _, md := range m.members(t, name) {
			if md.MethodKind == findrefs.MethodUserDefinedOperator {
				ms = append(ms, md)
			}
		}
	}
	if len(ms) > 0 {
		chosen, ambiguous := m.selectOperator(ms, operands)
		return m.membersBinding(chosen, ambiguous)
	}

	known := true
	for _, t := range operands {
		if t == "" {
			known = false
		}
	}
	if known {
		if sym := builtinOperator(name, operands); sym != nil {
			return binding{syms: []*findrefs.Symbol{sym}}
		}
		return binding{}
	}

	for _, md := range m.d.MembersNamed(name) {
		if md.MethodKind == findrefs.MethodUserDefinedOperator && len(md.Params) == len(operands) {
			ms = append(ms, md)
		}
	}
	if len(ms) == 0 {
		return binding{}
	}
	chosen, _ := m.selectOperator(ms, operands)
	return m.membersBinding(chosen, true)
}

func (m *Model) selectOperator(ms []*MemberDecl, operands []string) ([]*MemberDecl, bool) {
	var applicable []*MemberDecl
	for _, md := range ms {
		if len(md.Params) != len(operands) {
			continue
		}
		if _, ok := m.argumentScore(md, operands); ok {
			applicable = append(applicable, md)
		}
	}
	if len(applicable) == 0 {
		return ms, true
	}
	return m.selectOverload(applicable, operands)
}

// builtinOperator returns the predefined operator name over operand
// types, or nil.
func builtinOperator(name string, operands []string) *findrefs.Symbol {
	if len(operands) == 1 {
		t := operands[0]
		switch {
		case name == "op_LogicalNot" && t == "System.Boolean":
			return BuiltinOperator(t, name)
		case name == "op_Increment" || name == "op_Decrement":
			if isNumeric(t) {
				return BuiltinOperator(t, name)
			}
		case isNumeric(t):
			return BuiltinOperator(promote(t, t), name)
		}
		return nil
	}
	l, r := operands[0], operands[1]
	op := findrefs.OperatorForMetadataName(name)
	switch {
	case op == findrefs.OpLeftShift || op == findrefs.OpRightShift || op == findrefs.OpUnsignedRightShift:
		if isNumeric(l) && isNumeric(r) {
			return BuiltinOperator(promote(l, l), name)
		}
	case isNumeric(l) && isNumeric(r):
		return BuiltinOperator(promote(l, r), name)
	case l == "System.Boolean" && r == "System.Boolean":
		switch op {
		case findrefs.OpBitwiseAnd, findrefs.OpBitwiseOr, findrefs.OpExclusiveOr, findrefs.OpEquality, findrefs.OpInequality:
			return BuiltinOperator(l, name)
		}
	case op == findrefs.OpAddition && (l == "System.String" || r == "System.String"):
		return BuiltinOperator("System.String", name)
	case op == findrefs.OpEquality || op == findrefs.OpInequality:
		if l == "System.String" && r == "System.String" {
			return BuiltinOperator(l, name)
		}
		return BuiltinOperator("System.Object", name)
	}
	return nil
}

// bindCref binds a token of a documentation cref.
func (m *Model) bindCref(tok findrefs.Token) binding {
	pos, ok := m.f.crefAt[tok.Span.Start]
	if !ok {
		return binding{}
	}
	toks := pos.cref.tokens
	k := pos.index
	at := pos.cref.span.Start

	if k+1 < len(toks) && toks[k+1].Text == ":" {
		// Documentation ID kind prefix.
		return binding{}
	}
	qualifierEnd := k - 1
	if tok.Kind == findrefs.TokenPunctuation {
		if k == 0 || toks[k-1].Text != "operator" {
			return binding{}
		}
		qualifierEnd = k - 2
	} else if tok.Kind != findrefs.TokenIdentifier {
		return binding{}
	}
	var qual []string
	for q := qualifierEnd; q >= 1 && toks[q].Text == "." && toks[q-1].Kind == findrefs.TokenIdentifier; q -= 2 {
		qual = append([]string{toks[q-1].Text}, qual...)
	}
	params, hasParams := crefParameters(toks, k+1)

	owner := ""
	if len(qual) > 0 {
		full, ok := m.resolveType(strings.Join(qual, "."), at)
		if !ok {
			if !hasParams {
				if full, ok := m.resolveType(strings.Join(append(qual, tok.Text), "."), at); ok {
					return m.typeNamed(full, true)
				}
			}
			return binding{}
		}
		owner = full
	}

	var ms []*MemberDecl
	if tok.Kind == findrefs.TokenPunctuation {
		var names []string
		switch {
		case hasParams:
			names = []string{operatorMetadataName(tok.Text, len(params))}
		default:
			names = []string{binaryOperatorNames[tok.Text], unaryOperatorNames[tok.Text]}
		}
		owners := []string{owner}
		if owner == "" {
			owners = nil
			for _, t := range m.enclosingTypes(at) {
				owners = append(owners, t.FullName())
			}
		}
		for _, o := range owners {
			for _, name := range names {
				if name == "" {
					continue
				}
				for _, md := range m.members(o, name) {
					if md.MethodKind == findrefs.MethodUserDefinedOperator {
						ms = append(ms, md)
					}
				}
			}
			if len(ms) > 0 {
				break
			}
		}
	} else if owner != "" {
		ms = m.members(owner, tok.Text)
		if len(ms) == 0 {
			if full := m.nestedType(owner, tok.Text, 0); full != "" {
				return m.typeNamed(full, true)
			}
		}
	} else {
		for _, t := range m.enclosingTypes(at) {
			if ms = m.members(t.FullName(), tok.Text); len(ms) > 0 {
				break
			}
		}
		if len(ms) == 0 {
			if full, ok := m.resolveType(tok.Text, at); ok {
				return m.typeNamed(full, true)
			}
		}
	}
	if len(ms) == 0 {
		return binding{}
	}
	if !hasParams {
		return m.membersBinding(ms, len(ms) > 1)
	}
	resolved := make([]string, len(params))
	for i, p := range params {
		resolved[i], _ = m.resolveType(p, at)
	}
	var exact []*MemberDecl
	for _, md := range ms {
		if len(md.Params) != len(resolved) {
			continue
		}
		match := true
		for i, p := range md.Params {
			if !sameType(p.Type, resolved[i]) {
				match = false
			}
		}
		if match {
			exact = append(exact, md)
		}
	}
	if len(exact) == 0 {
		return m.membersBinding(ms, true)
	}
	return m.membersBinding(exact, len(exact) > 1)
}

// crefParameters returns the parameter types of a cref parameter list
// starting at toks[i].
func crefParameters(toks []findrefs.Token, i int) ([]string, bool) {
	if i >= len(toks) || toks[i].Text != "(" {
		return nil, false
	}
	var params []string
	var cur strings.Builder
	level := 0
	for _, t := range toks[i+1:] {
		switch t.Text {
		case "(", "<", "{", "[":
			level++
		case ">", "}", "]":
			level--
		case ")":
			if level == 0 {
				if cur.Len() > 0 {
					params = append(params, cur.String())
				}
				return params, true
			}
			level--
		case ",":
			if level == 0 {
				params = append(params, cur.String())
				cur.Reset()
				continue
			}
		}
		switch t.Text {
		case "ref", "out", "in":
			continue
		case "{":
			cur.WriteString("<")
			continue
		case "}":
			cur.WriteString(">")
			continue
		}
		cur.WriteString(t.Text)
	}
	return params, true
}
