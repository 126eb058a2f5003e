package findrefs

import (
	"fmt"
	"strings"
)

// SymbolKind is the kind of program entity a Symbol names.
type SymbolKind int

const (
	KindUnknown SymbolKind = iota
	KindNamespace
	KindType
	KindMethod
	KindProperty
	KindEvent
	KindField
	KindLocal
	KindParameter
	KindLabel
)

var symbolKindNames = [...]string{
	KindUnknown:   "unknown",
	KindNamespace: "namespace",
	KindType:      "type",
	KindMethod:    "method",
	KindProperty:  "property",
	KindEvent:     "event",
	KindField:     "field",
	KindLocal:     "local",
	KindParameter: "parameter",
	KindLabel:     "label",
}

func (k SymbolKind) String() string {
	if k < 0 || int(k) >= len(symbolKindNames) {
		return fmt.Sprintf("SymbolKind(%d)", int(k))
	}
	return symbolKindNames[k]
}

// MethodKind refines KindMethod symbols.
type MethodKind int

const (
	MethodOrdinary MethodKind = iota
	MethodConstructor
	MethodUserDefinedOperator
	MethodBuiltinOperator
	MethodConversion
	MethodPropertyGet
	MethodPropertySet
	MethodEventAdd
	MethodEventRemove
)

var methodKindNames = [...]string{
	MethodOrdinary:            "ordinary",
	MethodConstructor:         "constructor",
	MethodUserDefinedOperator: "user-defined-operator",
	MethodBuiltinOperator:     "builtin-operator",
	MethodConversion:          "conversion",
	MethodPropertyGet:         "property-get",
	MethodPropertySet:         "property-set",
	MethodEventAdd:            "event-add",
	MethodEventRemove:         "event-remove",
}

func (k MethodKind) String() string {
	if k < 0 || int(k) >= len(methodKindNames) {
		return fmt.Sprintf("MethodKind(%d)", int(k))
	}
	return methodKindNames[k]
}

// Span is a half-open byte range [Start, End) in a document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether offset lies within s.
func (s Span) Contains(offset int) bool { return s.Start <= offset && offset < s.End }

// Covers reports whether o lies entirely within s.
func (s Span) Covers(o Span) bool { return s.Start <= o.Start && o.End <= s.End }

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// DeclarationSite is where a symbol is declared.
type DeclarationSite struct {
	Document DocumentID `json:"document"`
	Span     Span       `json:"span"`
}

// Symbol describes the entity being searched for. Symbols are treated as
// immutable for the duration of a search.
type Symbol struct {
	Kind       SymbolKind `json:"kind"`
	MethodKind MethodKind `json:"methodKind,omitempty"`

	// Name is the declared name. Operators use their metadata name
	// (op_Addition, op_Equality, ...), accessors get_X / set_X.
	Name string `json:"name"`

	// ContainingType is the fully qualified name of the declaring type,
	// e.g. "N.C". Empty for namespaces, top level types and locals.
	ContainingType string `json:"containingType,omitempty"`

	// Namespace is the declaring namespace of a type symbol.
	Namespace string `json:"namespace,omitempty"`

	// Parameters lists the parameter type names of methods, in order.
	Parameters []string `json:"parameters,omitempty"`

	// AssociatedProperty is the property name of an accessor.
	AssociatedProperty string `json:"associatedProperty,omitempty"`

	// Project is the project that defines the symbol. Empty for builtin
	// symbols, which are visible from every project.
	Project string `json:"project,omitempty"`

	// Declaration is required for locals, parameters and labels.
	Declaration *DeclarationSite `json:"declaration,omitempty"`
}

// IsLocalFamily reports whether the symbol can only be referenced from the
// document that declares it.
func (s *Symbol) IsLocalFamily() bool {
	switch s.Kind {
	case KindLocal, KindParameter, KindLabel:
		return true
	}
	return false
}

// IsOperator reports whether s is a user-defined or builtin operator.
func (s *Symbol) IsOperator() bool {
	return s.Kind == KindMethod && (s.MethodKind == MethodUserDefinedOperator || s.MethodKind == MethodBuiltinOperator)
}

// IsAccessor reports whether s is a property get or set accessor.
func (s *Symbol) IsAccessor() bool {
	return s.Kind == KindMethod && (s.MethodKind == MethodPropertyGet || s.MethodKind == MethodPropertySet)
}

// QualifiedName returns the dotted name of s including its containing
// type or namespace.
func (s *Symbol) QualifiedName() string {
	switch {
	case s.ContainingType != "":
		return s.ContainingType + "." + s.Name
	case s.Kind == KindType && s.Namespace != "":
		return s.Namespace + "." + s.Name
	}
	return s.Name
}

// Arity is the number of parameters of a method symbol.
func (s *Symbol) Arity() int { return len(s.Parameters) }

// ID returns a string that uniquely identifies the symbol within a
// workspace. It follows the documentation comment ID format for members
// and types; locals are keyed by their declaration site.
func (s *Symbol) ID() string {
	switch s.Kind {
	case KindNamespace:
		return "N:" + s.QualifiedName()
	case KindType:
		return "T:" + s.QualifiedName()
	case KindMethod:
		return "M:" + s.QualifiedName() + "(" + strings.Join(s.Parameters, ",") + ")"
	case KindProperty:
		return "P:" + s.QualifiedName()
	case KindEvent:
		return "E:" + s.QualifiedName()
	case KindField:
		return "F:" + s.QualifiedName()
	case KindLocal, KindParameter, KindLabel:
		if s.Declaration == nil {
			return "L:?:" + s.Name
		}
		d := s.Declaration
		return fmt.Sprintf("L:%s:%s@%d:%s", d.Document.Project, d.Document.Path, d.Span.Start, s.Name)
	}
	return "?:" + s.Name
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.ID()
}

// SymbolEquality decides whether a bound symbol denotes the search target.
type SymbolEquality func(a, b *Symbol) bool

// SymbolsEqual is the default SymbolEquality. Symbols are equal when their
// IDs match; project identity is ignored unless both sides carry one.
func SymbolsEqual(a, b *Symbol) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID() != b.ID() {
		return false
	}
	if a.Project != "" && b.Project != "" && !a.IsLocalFamily() {
		return a.Project == b.Project
	}
	return true
}
