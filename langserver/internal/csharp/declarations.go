package csharp

import (
	"strings"

	"github.com/sourcegraph/refsearch/findrefs"
)

// Declarations is the declaration table of one project: its own types plus
// those of the projects it references.
type Declarations struct {
	Project string

	types      map[string][]*TypeDecl
	namespaces map[string]bool
	// byName indexes members by simple name for receivers of unknown type.
	byName map[string][]*MemberDecl
	// qualified holds the resolved parameter types of each method and
	// the value type of each property, keyed by member.
	qualified map[*MemberDecl][]string

	globalAliases []findrefs.AliasDirective
	globalUsings  []string
}

// NewDeclarations builds the table of project from its files. Declarations
// of refs, including what they reference, are visible; their global
// aliases and usings are not.
func NewDeclarations(project string, files []*File, refs ...*Declarations) *Declarations {
	d := &Declarations{
		Project:    project,
		types:      make(map[string][]*TypeDecl),
		namespaces: make(map[string]bool),
		byName:     make(map[string][]*MemberDecl),
		qualified:  make(map[*MemberDecl][]string),
	}
	seen := make(map[*TypeDecl]bool)
	for _, ref := range refs {
		for name, parts := range ref.types {
			for _, t := range parts {
				if seen[t] {
					continue
				}
				seen[t] = true
				d.types[name] = append(d.types[name], t)
				d.addMembers(t)
			}
		}
		for ns := range ref.namespaces {
			d.namespaces[ns] = true
		}
		for m, ps := range ref.qualified {
			d.qualified[m] = ps
		}
	}
	for _, f := range files {
		for _, t := range f.Types {
			name := t.FullName()
			d.types[name] = append(d.types[name], t)
			d.addMembers(t)
		}
		for _, ns := range f.namespaces {
			for name := ns.Name; name != ""; {
				d.namespaces[name] = true
				i := strings.LastIndexByte(name, '.')
				if i < 0 {
					break
				}
				name = name[:i]
			}
		}
		for _, a := range f.aliases {
			if a.Global {
				d.globalAliases = append(d.globalAliases, a)
			}
		}
		d.globalUsings = append(d.globalUsings, f.globalUsings...)
	}
	for _, f := range files {
		r := &resolver{f: f, d: d}
		for _, t := range f.Types {
			for _, m := range t.Members {
				d.qualified[m] = r.qualify(m)
			}
		}
	}
	return d
}

// qualify resolves the parameter types of a method, or the value type of
// a property, to the names used in symbol IDs.
func (r *resolver) qualify(m *MemberDecl) []string {
	enclosing := append([]*TypeDecl{m.Owner}, outers(m.Owner)...)
	resolve := func(text string) string {
		if full, _ := r.resolveTypeIn(text, m.NameSpan.Start, enclosing, 0); full != "" {
			return full
		}
		return canonicalType(text)
	}
	switch m.Kind {
	case findrefs.KindMethod:
		if len(m.Params) == 0 {
			return nil
		}
		ps := make([]string, len(m.Params))
		for i, p := range m.Params {
			ps[i] = resolve(p.Type)
		}
		return ps
	case findrefs.KindProperty:
		return []string{resolve(m.Type)}
	}
	return nil
}

// MemberSymbol returns the symbol of m.
func (d *Declarations) MemberSymbol(m *MemberDecl) *findrefs.Symbol {
	s := &findrefs.Symbol{
		Kind:           m.Kind,
		MethodKind:     m.MethodKind,
		Name:           m.Name,
		ContainingType: m.Owner.FullName(),
		Project:        m.Owner.File.Doc.Project,
		Declaration:    &findrefs.DeclarationSite{Document: m.Owner.File.Doc, Span: m.NameSpan},
	}
	if m.Kind == findrefs.KindMethod {
		s.Parameters = d.parameterTypes(m)
	}
	return s
}

// AccessorSymbol returns the symbol of the property accessor of m of kind
// k.
func (d *Declarations) AccessorSymbol(m *MemberDecl, k findrefs.MethodKind) *findrefs.Symbol {
	s := &findrefs.Symbol{
		Kind:               findrefs.KindMethod,
		MethodKind:         k,
		ContainingType:     m.Owner.FullName(),
		AssociatedProperty: m.Name,
		Project:            m.Owner.File.Doc.Project,
	}
	switch k {
	case findrefs.MethodPropertyGet:
		s.Name = "get_" + m.Name
	case findrefs.MethodPropertySet:
		s.Name = "set_" + m.Name
		s.Parameters = d.parameterTypes(m)
	}
	for _, a := range m.Accessors {
		if a.Kind == k {
			s.Declaration = &findrefs.DeclarationSite{Document: m.Owner.File.Doc, Span: a.KeywordSpan}
		}
	}
	return s
}

// parameterTypes returns the qualified parameter types of m. Members the
// table was not built from fall back to their spelling.
func (d *Declarations) parameterTypes(m *MemberDecl) []string {
	if ps, ok := d.qualified[m]; ok {
		return ps
	}
	switch {
	case m.Kind == findrefs.KindProperty:
		return []string{canonicalType(m.Type)}
	case len(m.Params) == 0:
		return nil
	}
	ps := make([]string, len(m.Params))
	for i, p := range m.Params {
		ps[i] = canonicalType(p.Type)
	}
	return ps
}

func (d *Declarations) addMembers(t *TypeDecl) {
	for _, m := range t.Members {
		d.byName[m.Name] = append(d.byName[m.Name], m)
	}
}

// Type returns the declarations of the type with the given full name.
func (d *Declarations) Type(full string) []*TypeDecl {
	base, _ := typeParts(full)
	return d.types[base]
}

// IsNamespace reports whether name is a declared namespace.
func (d *Declarations) IsNamespace(name string) bool { return d.namespaces[name] }

// GlobalAliases returns the project-wide alias directives.
func (d *Declarations) GlobalAliases() []findrefs.AliasDirective { return d.globalAliases }

// MembersNamed returns every member with the given simple name.
func (d *Declarations) MembersNamed(name string) []*MemberDecl { return d.byName[name] }

// TypeNames returns the full names of all types, in no particular order.
func (d *Declarations) TypeNames() []string {
	names := make([]string, 0, len(d.types))
	for name := range d.types {
		names = append(names, name)
	}
	return names
}
