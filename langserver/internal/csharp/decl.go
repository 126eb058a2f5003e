package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/sourcegraph/refsearch/findrefs"
)

// TypeDecl is one declaration of a type. Partial types have one TypeDecl
// per part.
type TypeDecl struct {
	Name      string
	Namespace string
	Outer     *TypeDecl
	Kind      string
	NameSpan  findrefs.Span
	Span      findrefs.Span
	Bases     []string
	Members   []*MemberDecl
	File      *File
}

// FullName is the dotted name of the type including namespace and outer
// types. Generic arity is not part of it.
func (t *TypeDecl) FullName() string {
	if t.Outer != nil {
		return t.Outer.FullName() + "." + t.Name
	}
	return joinName(t.Namespace, t.Name)
}

func (t *TypeDecl) Symbol() *findrefs.Symbol {
	s := &findrefs.Symbol{
		Kind:        findrefs.KindType,
		Name:        t.Name,
		Project:     t.File.Doc.Project,
		Declaration: &findrefs.DeclarationSite{Document: t.File.Doc, Span: t.NameSpan},
	}
	if t.Outer != nil {
		s.ContainingType = t.Outer.FullName()
	} else {
		s.Namespace = t.Namespace
	}
	return s
}

// MemberDecl is a method, operator, property, event or field.
type MemberDecl struct {
	Kind       findrefs.SymbolKind
	MethodKind findrefs.MethodKind
	Name       string
	// Type is the declared type, or the return type of methods, as
	// written.
	Type      string
	Params    []ParamDecl
	Owner     *TypeDecl
	NameSpan  findrefs.Span
	Span      findrefs.Span
	Static    bool
	Accessors []AccessorDecl
}

// ParamDecl is a method parameter.
type ParamDecl struct {
	Name     string
	Type     string
	Modifier string
	Optional bool
}

// AccessorDecl is a get, set or init accessor of a property.
type AccessorDecl struct {
	Kind        findrefs.MethodKind
	KeywordSpan findrefs.Span
}

func (m *MemberDecl) hasAccessor(k findrefs.MethodKind) bool {
	for _, a := range m.Accessors {
		if a.Kind == k {
			return true
		}
	}
	return false
}

// LocalDecl is a local variable, parameter or label.
type LocalDecl struct {
	Kind     findrefs.SymbolKind
	Name     string
	Type     string
	NameSpan findrefs.Span
	Scope    findrefs.Span
	// Init is the span start of the initializer expression, or -1.
	Init int
	// Element is set for foreach variables; Type is then the collection
	// expression type when declared with var.
	Element bool
	File    *File
}

func (l *LocalDecl) Symbol() *findrefs.Symbol {
	return &findrefs.Symbol{
		Kind:        l.Kind,
		Name:        l.Name,
		Project:     l.File.Doc.Project,
		Declaration: &findrefs.DeclarationSite{Document: l.File.Doc, Span: l.NameSpan},
	}
}

// declRef is what a declaring token declares.
type declRef struct {
	typ      *TypeDecl
	member   *MemberDecl
	local    *LocalDecl
	accessor findrefs.MethodKind
}

func (r declRef) symbol(d *Declarations) *findrefs.Symbol {
	switch {
	case r.typ != nil:
		return r.typ.Symbol()
	case r.member != nil && r.accessor != 0:
		return d.AccessorSymbol(r.member, r.accessor)
	case r.member != nil:
		return d.MemberSymbol(r.member)
	case r.local != nil:
		return r.local.Symbol()
	}
	return nil
}

func joinName(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "." + b
}

var typeDeclarations = map[string]string{
	"class_declaration":         "class",
	"struct_declaration":        "struct",
	"interface_declaration":     "interface",
	"record_declaration":        "record",
	"record_struct_declaration": "struct",
	"enum_declaration":          "enum",
	"delegate_declaration":      "delegate",
}

// scopeNodes are the nodes that bound the scope of a local declared
// inside them.
var scopeNodes = map[string]bool{
	"block":                       true,
	"switch_section":              true,
	"for_statement":               true,
	"foreach_statement":           true,
	"using_statement":             true,
	"fixed_statement":             true,
	"catch_clause":                true,
	"lambda_expression":           true,
	"arrow_expression_clause":     true,
	"local_function_statement":    true,
	"accessor_declaration":        true,
	"method_declaration":          true,
	"constructor_declaration":     true,
	"operator_declaration":        true,
	"global_statement":            true,
	"compilation_unit":            true,
	"anonymous_method_expression": true,
}

type declWalker struct {
	f *File
}

func (w *declWalker) walkChildren(n *sitter.Node, ns string, outer *TypeDecl, member *MemberDecl) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if name := c.ChildByFieldName("name"); name != nil && c.Type() == "file_scoped_namespace_declaration" {
			// Declarations that follow belong to the namespace whether or
			// not the grammar nests them.
			ns = joinName(ns, w.f.between(int(name.StartByte()), int(name.EndByte())))
			w.f.namespaces = append(w.f.namespaces, namespaceDecl{Name: ns, Span: findrefs.Span{Start: int(c.StartByte()), End: len(w.f.Src)}})
			w.walkChildren(c, ns, outer, member)
			continue
		}
		w.walk(c, ns, outer, member)
	}
}

func (w *declWalker) name(n *sitter.Node) *sitter.Node {
	if name := n.ChildByFieldName("name"); name != nil {
		return name
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			return c
		}
	}
	return nil
}

// typeText returns the declared type of n as written.
func (w *declWalker) typeText(n *sitter.Node) string {
	for _, field := range []string{"type", "returns"} {
		if t := n.ChildByFieldName(field); t != nil {
			return w.f.between(int(t.StartByte()), int(t.EndByte()))
		}
	}
	return ""
}

func (w *declWalker) hasModifier(n *sitter.Node, mods ...string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		text := w.f.text(c)
		if c.Type() != "modifier" && c.IsNamed() {
			continue
		}
		for _, m := range mods {
			if text == m {
				return true
			}
		}
	}
	return false
}

func (w *declWalker) scopeOf(n *sitter.Node) findrefs.Span {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if scopeNodes[p.Type()] {
			return nodeSpan(p)
		}
	}
	return findrefs.Span{Start: 0, End: len(w.f.Src)}
}

func (w *declWalker) declare(n *sitter.Node, ref declRef) {
	if n != nil {
		w.f.declAt[int(n.StartByte())] = ref
	}
}

func (w *declWalker) addLocal(kind findrefs.SymbolKind, name *sitter.Node, typ string, scope findrefs.Span, init *sitter.Node) *LocalDecl {
	if name == nil || name.Type() != "identifier" {
		return nil
	}
	l := &LocalDecl{
		Kind:     kind,
		Name:     w.f.text(name),
		Type:     typ,
		NameSpan: nodeSpan(name),
		Scope:    scope,
		Init:     -1,
		File:     w.f,
	}
	if init != nil {
		l.Init = int(init.StartByte())
	}
	w.f.locals = append(w.f.locals, l)
	w.declare(name, declRef{local: l})
	return l
}

func (w *declWalker) walk(n *sitter.Node, ns string, outer *TypeDecl, member *MemberDecl) {
	typ := n.Type()
	if kind, ok := typeDeclarations[typ]; ok {
		w.typeDecl(n, kind, ns, outer)
		return
	}
	switch typ {
	case "namespace_declaration":
		name := n.ChildByFieldName("name")
		if name == nil {
			break
		}
		full := joinName(ns, w.f.between(int(name.StartByte()), int(name.EndByte())))
		w.f.namespaces = append(w.f.namespaces, namespaceDecl{Name: full, Span: nodeSpan(n)})
		if body := n.ChildByFieldName("body"); body != nil {
			w.walkChildren(body, full, nil, nil)
		} else {
			w.walkChildren(n, full, nil, nil)
		}
		return

	case "method_declaration":
		if outer == nil {
			break
		}
		m := w.member(n, outer, findrefs.KindMethod, findrefs.MethodOrdinary, w.name(n))
		w.walkChildren(n, ns, outer, m)
		return

	case "operator_declaration":
		if outer == nil {
			break
		}
		op := n.ChildByFieldName("operator")
		if op == nil {
			op = w.leafAfter(n, "operator")
		}
		if w.f.text(op) == "checked" {
			op = w.leafAfter(n, "checked")
		}
		if op == nil {
			break
		}
		m := w.member(n, outer, findrefs.KindMethod, findrefs.MethodUserDefinedOperator, op)
		m.Name = operatorMetadataName(w.f.text(op), len(m.Params))
		m.Static = true
		w.walkChildren(n, ns, outer, m)
		return

	case "conversion_operator_declaration":
		if outer == nil {
			break
		}
		kw := w.leafAfter(n, "")
		name := "op_Implicit"
		for i := 0; i < int(n.ChildCount()); i++ {
			if w.f.text(n.Child(i)) == "explicit" {
				name = "op_Explicit"
			}
			if w.f.text(n.Child(i)) == "operator" {
				kw = n.Child(i)
			}
		}
		m := w.member(n, outer, findrefs.KindMethod, findrefs.MethodConversion, kw)
		m.Name = name
		m.Static = true
		w.walkChildren(n, ns, outer, m)
		return

	case "constructor_declaration", "destructor_declaration":
		if outer == nil {
			break
		}
		m := w.member(n, outer, findrefs.KindMethod, findrefs.MethodConstructor, w.name(n))
		m.Name = ".ctor"
		if typ == "destructor_declaration" {
			m.Name = "Finalize"
			m.MethodKind = findrefs.MethodOrdinary
		}
		w.walkChildren(n, ns, outer, m)
		return

	case "property_declaration", "indexer_declaration":
		if outer == nil {
			break
		}
		name := w.name(n)
		if typ == "indexer_declaration" {
			name = w.leafAfter(n, "this")
			if name == nil {
				name = n
			}
		}
		m := w.member(n, outer, findrefs.KindProperty, findrefs.MethodOrdinary, name)
		if typ == "indexer_declaration" {
			m.Name = "this[]"
		}
		w.accessors(n, m)
		w.walkChildren(n, ns, outer, m)
		return

	case "event_declaration":
		if outer == nil {
			break
		}
		m := w.member(n, outer, findrefs.KindEvent, findrefs.MethodOrdinary, w.name(n))
		w.walkChildren(n, ns, outer, m)
		return

	case "field_declaration", "event_field_declaration":
		if outer == nil {
			break
		}
		kind := findrefs.KindField
		if typ == "event_field_declaration" {
			kind = findrefs.KindEvent
		}
		static := w.hasModifier(n, "static", "const")
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "variable_declaration" {
				continue
			}
			t := w.typeText(decl)
			for j := 0; j < int(decl.NamedChildCount()); j++ {
				v := decl.NamedChild(j)
				if v.Type() != "variable_declarator" {
					continue
				}
				m := w.member(v, outer, kind, findrefs.MethodOrdinary, w.name(v))
				m.Type = t
				m.Static = static
				m.Span = nodeSpan(n)
				w.walkChildren(v, ns, outer, m)
			}
		}
		return

	case "enum_member_declaration":
		if outer == nil {
			break
		}
		m := w.member(n, outer, findrefs.KindField, findrefs.MethodOrdinary, w.name(n))
		m.Type = outer.Name
		m.Static = true
		return

	case "variable_declaration":
		t := w.typeText(n)
		for j := 0; j < int(n.NamedChildCount()); j++ {
			v := n.NamedChild(j)
			if v.Type() != "variable_declarator" {
				continue
			}
			w.addLocal(findrefs.KindLocal, w.name(v), t, w.scopeOf(n), initializer(v))
		}
		w.walkChildren(n, ns, outer, member)
		return

	case "foreach_statement":
		left := n.ChildByFieldName("left")
		if left == nil {
			left = n.ChildByFieldName("name")
		}
		if l := w.addLocal(findrefs.KindLocal, left, w.typeText(n), nodeSpan(n), n.ChildByFieldName("right")); l != nil {
			l.Element = true
		}
		w.walkChildren(n, ns, outer, member)
		return

	case "catch_declaration":
		w.addLocal(findrefs.KindLocal, w.name(n), w.typeText(n), w.scopeOf(n), nil)
		return

	case "declaration_expression", "declaration_pattern", "recursive_pattern":
		t := w.typeText(n)
		var name *sitter.Node
		if d := n.ChildByFieldName("designation"); d != nil {
			name = w.name(d)
			if name == nil && d.Type() == "identifier" {
				name = d
			}
		} else {
			name = n.ChildByFieldName("name")
		}
		w.addLocal(findrefs.KindLocal, name, t, w.scopeOf(n), nil)
		w.walkChildren(n, ns, outer, member)
		return

	case "parameter_list", "bracketed_parameter_list":
		scope := nodeSpan(n)
		if p := n.Parent(); p != nil {
			scope = nodeSpan(p)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			p := n.NamedChild(i)
			if p.Type() == "parameter" {
				w.addLocal(findrefs.KindParameter, w.name(p), w.typeText(p), scope, nil)
			}
		}
		w.walkChildren(n, ns, outer, member)
		return

	case "lambda_expression":
		if ps := n.ChildByFieldName("parameters"); ps != nil && ps.Type() != "parameter_list" {
			if ps.Type() == "identifier" {
				w.addLocal(findrefs.KindParameter, ps, "", nodeSpan(n), nil)
			} else {
				w.addLocal(findrefs.KindParameter, w.name(ps), "", nodeSpan(n), nil)
			}
		}
		w.walkChildren(n, ns, outer, member)
		return

	case "labeled_statement":
		scope := w.scopeOf(n)
		if member != nil {
			scope = member.Span
		}
		w.addLocal(findrefs.KindLabel, w.name(n), "", scope, nil)
		w.walkChildren(n, ns, outer, member)
		return

	case "local_function_statement", "type_parameter":
		w.declare(w.name(n), declRef{})
		w.walkChildren(n, ns, outer, member)
		return
	}
	w.walkChildren(n, ns, outer, member)
}

func initializer(v *sitter.Node) *sitter.Node {
	for i := 0; i < int(v.NamedChildCount()); i++ {
		c := v.NamedChild(i)
		switch c.Type() {
		case "equals_value_clause":
			if c.NamedChildCount() > 0 {
				return c.NamedChild(0)
			}
		case "identifier", "bracketed_argument_list", "tuple_pattern":
		default:
			return c
		}
	}
	return nil
}

// leafAfter returns the child following the first child spelled after,
// or the first child when after is empty.
func (w *declWalker) leafAfter(n *sitter.Node, after string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if after == "" || w.f.text(n.Child(i)) == after {
			if after == "" {
				return n.Child(i)
			}
			if i+1 < int(n.ChildCount()) {
				return n.Child(i + 1)
			}
		}
	}
	return nil
}

func (w *declWalker) typeDecl(n *sitter.Node, kind, ns string, outer *TypeDecl) {
	name := w.name(n)
	if name == nil {
		return
	}
	t := &TypeDecl{
		Name:      w.f.text(name),
		Namespace: ns,
		Outer:     outer,
		Kind:      kind,
		NameSpan:  nodeSpan(name),
		Span:      nodeSpan(n),
		File:      w.f,
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "base_list" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			b := c.NamedChild(j)
			if b.Type() == "argument_list" {
				continue
			}
			if b.Type() == "primary_constructor_base_type" {
				if bt := b.ChildByFieldName("type"); bt != nil {
					b = bt
				} else if b.NamedChildCount() > 0 {
					b = b.NamedChild(0)
				}
			}
			t.Bases = append(t.Bases, w.f.between(int(b.StartByte()), int(b.EndByte())))
		}
	}
	if kind == "delegate" {
		t.Members = append(t.Members, &MemberDecl{
			Kind:     findrefs.KindMethod,
			Name:     "Invoke",
			Type:     w.typeText(n),
			Params:   w.params(n),
			Owner:    t,
			NameSpan: t.NameSpan,
			Span:     t.Span,
		})
	}
	w.f.Types = append(w.f.Types, t)
	w.declare(name, declRef{typ: t})
	w.walkChildren(n, ns, t, nil)
}

func (w *declWalker) member(n *sitter.Node, owner *TypeDecl, kind findrefs.SymbolKind, mk findrefs.MethodKind, name *sitter.Node) *MemberDecl {
	m := &MemberDecl{
		Kind:       kind,
		MethodKind: mk,
		Type:       w.typeText(n),
		Params:     w.params(n),
		Owner:      owner,
		Span:       nodeSpan(n),
		Static:     w.hasModifier(n, "static", "const"),
	}
	if name != nil {
		m.Name = w.f.text(name)
		m.NameSpan = nodeSpan(name)
		w.declare(name, declRef{member: m})
	}
	owner.Members = append(owner.Members, m)
	return m
}

func (w *declWalker) params(n *sitter.Node) []ParamDecl {
	list := n.ChildByFieldName("parameters")
	if list == nil {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() == "parameter_list" || c.Type() == "bracketed_parameter_list" {
				list = c
				break
			}
		}
	}
	if list == nil {
		return nil
	}
	var ps []ParamDecl
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p.Type() != "parameter" {
			continue
		}
		pd := ParamDecl{Type: w.typeText(p)}
		if name := w.name(p); name != nil {
			pd.Name = w.f.text(name)
		}
		for j := 0; j < int(p.ChildCount()); j++ {
			c := p.Child(j)
			switch text := w.f.text(c); {
			case text == "ref" || text == "out" || text == "in" || text == "params" || text == "this":
				pd.Modifier = text
			case c.Type() == "parameter_modifier":
				pd.Modifier = strings.TrimSpace(text)
			case c.Type() == "equals_value_clause" || text == "=":
				pd.Optional = true
			}
		}
		ps = append(ps, pd)
	}
	return ps
}

// accessors records the accessors of a property. Expression-bodied
// properties have an implicit getter.
func (w *declWalker) accessors(n *sitter.Node, m *MemberDecl) {
	list := n.ChildByFieldName("accessors")
	if list == nil {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() == "accessor_list" {
				list = c
			}
		}
	}
	if list == nil {
		m.Accessors = append(m.Accessors, AccessorDecl{Kind: findrefs.MethodPropertyGet, KeywordSpan: m.NameSpan})
		return
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		a := list.NamedChild(i)
		if a.Type() != "accessor_declaration" {
			continue
		}
		kw := a.ChildByFieldName("name")
		if kw == nil {
			for j := 0; j < int(a.ChildCount()); j++ {
				switch w.f.text(a.Child(j)) {
				case "get", "set", "init":
					kw = a.Child(j)
				}
				if kw != nil {
					break
				}
			}
		}
		if kw == nil {
			continue
		}
		kind := findrefs.MethodPropertyGet
		if t := w.f.text(kw); t == "set" || t == "init" {
			kind = findrefs.MethodPropertySet
		}
		m.Accessors = append(m.Accessors, AccessorDecl{Kind: kind, KeywordSpan: nodeSpan(kw)})
		w.declare(kw, declRef{member: m, accessor: kind})
	}
}
