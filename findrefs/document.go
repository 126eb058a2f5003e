package findrefs

import "context"

// DocumentID identifies a document within a workspace.
type DocumentID struct {
	Project string `json:"project"`
	Path    string `json:"path"`
}

func (id DocumentID) String() string { return id.Project + ":" + id.Path }

// Document is a snapshot of one source file. Version changes whenever the
// content changes; the index is keyed by (ID, Version).
type Document struct {
	ID      DocumentID
	Version int64
	Length  int
}

// Scope selects the documents to search. The zero Scope is the whole
// workspace.
type Scope struct {
	Documents []DocumentID
}

// AllDocuments is the scope of every document in the workspace.
func AllDocuments() Scope { return Scope{} }

// DocumentScope restricts a search to the given documents.
func DocumentScope(ids ...DocumentID) Scope { return Scope{Documents: ids} }

func (s Scope) IsAll() bool { return len(s.Documents) == 0 }

// Workspace supplies documents, syntax and semantics. Implementations must
// tolerate documents with parse errors by returning best-effort trees and
// models.
type Workspace interface {
	// Documents returns the documents in scope in a stable order. Result
	// ordering follows this order.
	Documents(ctx context.Context, scope Scope) ([]*Document, error)
	SyntaxRoot(ctx context.Context, doc *Document) (SyntaxTree, error)
	SemanticModel(ctx context.Context, doc *Document) (SemanticModel, error)
	SyntaxFacts(doc *Document) SyntaxFacts
}

// ProjectGraph is optionally implemented by a Workspace. When present, only
// projects that can see the symbol's defining project are searched.
type ProjectGraph interface {
	// DependentProjects returns the projects that reference project,
	// directly or transitively.
	DependentProjects(project string) []string
}

// TokenKind classifies lexical tokens.
type TokenKind int

const (
	TokenOther TokenKind = iota
	TokenIdentifier
	TokenKeyword
	TokenPunctuation
	TokenString
	TokenNumber
)

// Token is a lexical token of a syntax tree. Trivia is set for tokens that
// live inside structured trivia such as documentation comments.
type Token struct {
	Kind   TokenKind
	Text   string
	Span   Span
	Trivia bool
}

// AliasDirective is an import alias such as `using F = C.M;`. Global
// aliases are visible in every document of the project.
type AliasDirective struct {
	Name     string
	Target   string
	Global   bool
	NameSpan Span
	Span     Span
}

// Attribute is a syntactic attribute application.
type Attribute struct {
	Name string
	// Global is set for assembly or module targeted attributes.
	Global    bool
	Span      Span
	Arguments []AttributeArgument
}

// AttributeArgument is one attribute argument. Name is empty for
// positional arguments. For string literals Value is the unquoted content
// and ValueSpan covers it.
type AttributeArgument struct {
	Name      string
	Value     string
	ValueSpan Span
	IsString  bool
}

// SyntaxTree is the parsed form of a document.
type SyntaxTree interface {
	// Tokens returns the document's tokens in source order. With
	// descendIntoTrivia, tokens of structured trivia are included.
	Tokens(descendIntoTrivia bool) []Token
	AliasDirectives() []AliasDirective
	Attributes() []Attribute
}

// SyntaxFacts answers language specific lexical questions.
type SyntaxFacts interface {
	// PredefinedOperator returns the operator tok could denote, or OpNone.
	PredefinedOperator(tok Token) PredefinedOperator
	IsSuppressionAttribute(name string) bool
	IsCaseSensitive() bool
}

// ValueUsage records whether a reference reads or writes a value.
type ValueUsage int

const (
	UsageNone ValueUsage = iota
	UsageRead
	UsageWrite
	UsageReadWrite
)

func (u ValueUsage) String() string {
	switch u {
	case UsageRead:
		return "read"
	case UsageWrite:
		return "write"
	case UsageReadWrite:
		return "readwrite"
	}
	return ""
}

func (u ValueUsage) IsRead() bool  { return u == UsageRead || u == UsageReadWrite }
func (u ValueUsage) IsWrite() bool { return u == UsageWrite || u == UsageReadWrite }

// SymbolInfo is the result of binding one token.
type SymbolInfo struct {
	// Symbol is set when binding succeeded.
	Symbol *Symbol
	// Candidates holds the viable symbols when binding was ambiguous.
	Candidates []*Symbol
	// AliasChain names the aliases traversed, outermost first.
	AliasChain []string
	Usage      ValueUsage
}

// SemanticModel binds tokens of one document.
type SemanticModel interface {
	SymbolInfo(ctx context.Context, tok Token) (SymbolInfo, error)
}
