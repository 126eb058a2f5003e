// Package workspace serves the C# documents of a directory tree, grouped
// into projects, to the reference search engine. Contents are read through
// a ctxvfs.FileSystem so unsaved editor buffers can be overlaid.
package workspace

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sourcegraph/ctxvfs"
	"go4.org/syncutil"
	log15 "gopkg.in/inconshreveable/log15.v2"

	"github.com/sourcegraph/refsearch/findrefs"
	"github.com/sourcegraph/refsearch/langserver/internal/csharp"
	"github.com/sourcegraph/refsearch/langserver/internal/utils"
)

// Project is a named group of documents. Dir is relative to the workspace
// root; a document belongs to the project with the longest matching Dir.
type Project struct {
	Name       string   `json:"name" toml:"name" yaml:"name"`
	Dir        string   `json:"dir" toml:"dir" yaml:"dir"`
	References []string `json:"references,omitempty" toml:"references" yaml:"references"`
}

// Options configures a Workspace.
type Options struct {
	// Root is the slash separated workspace root within the file system.
	Root string
	// Projects lists the projects. When empty the whole root is a single
	// project named after the root directory.
	Projects []Project
	// Exclude holds gitignore-style patterns of paths to leave out.
	Exclude []string
	// Parallelism bounds concurrent reads and parses. Values below 1 mean 8.
	Parallelism int
	Logger      log15.Logger
}

type docState struct {
	doc     *findrefs.Document
	content []byte
}

type fileKey struct {
	id      findrefs.DocumentID
	version int64
}

type fileResult struct {
	file *csharp.File
	err  error
}

type declResult struct {
	decls *csharp.Declarations
	err   error
}

// Workspace implements findrefs.Workspace and findrefs.ProjectGraph. It is
// safe for concurrent use.
type Workspace struct {
	fs       ctxvfs.FileSystem
	root     string
	projects []Project
	exclude  []string
	log      log15.Logger
	gate     *syncutil.Gate

	loadMu sync.Mutex
	loaded bool

	mu      sync.Mutex
	docs    map[findrefs.DocumentID]*docState
	order   []findrefs.DocumentID
	version int64

	files *unboundedCache // fileKey -> fileResult
	decls *unboundedCache // project name -> declResult
}

var (
	_ findrefs.Workspace    = (*Workspace)(nil)
	_ findrefs.ProjectGraph = (*Workspace)(nil)
)

// New returns a workspace over fs. Documents are discovered lazily, on
// first use.
func New(fs ctxvfs.FileSystem, opts Options) (*Workspace, error) {
	root := path.Clean("/" + strings.TrimPrefix(opts.Root, "/"))
	projects := opts.Projects
	if len(projects) == 0 {
		name := path.Base(root)
		if name == "/" || name == "." {
			name = "default"
		}
		projects = []Project{{Name: name}}
	}
	if err := validateProjects(projects); err != nil {
		return nil, err
	}
	n := opts.Parallelism
	if n < 1 {
		n = 8
	}
	l := opts.Logger
	if l == nil {
		l = log15.New()
	}
	return &Workspace{
		fs:       fs,
		root:     root,
		projects: projects,
		exclude:  opts.Exclude,
		log:      l.New("pkg", "workspace", "root", root),
		gate:     syncutil.NewGate(n),
		docs:     make(map[findrefs.DocumentID]*docState),
		files:    newFileCache(),
		decls:    newDeclCache(),
	}, nil
}

func validateProjects(projects []Project) error {
	var result *multierror.Error
	byName := make(map[string]Project, len(projects))
	for _, p := range projects {
		if p.Name == "" {
			result = multierror.Append(result, fmt.Errorf("project with dir %q has no name", p.Dir))
			continue
		}
		if _, dup := byName[p.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("duplicate project %q", p.Name))
		}
		byName[p.Name] = p
	}
	for _, p := range projects {
		for _, r := range p.References {
			if _, ok := byName[r]; !ok {
				result = multierror.Append(result, fmt.Errorf("project %q references unknown project %q", p.Name, r))
			}
		}
	}
	if result != nil {
		return result.ErrorOrNil()
	}

	// Reference cycles would make declaration tables recurse forever.
	state := make(map[string]int)
	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch state[name] {
		case 1:
			return fmt.Errorf("project reference cycle: %s", strings.Join(append(stack, name), " -> "))
		case 2:
			return nil
		}
		state[name] = 1
		for _, r := range byName[name].References {
			if err := visit(r, append(stack, name)); err != nil {
				return err
			}
		}
		state[name] = 2
		return nil
	}
	for _, p := range projects {
		if err := visit(p.Name, nil); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the workspace root.
func (w *Workspace) Root() string { return w.root }

// Projects returns the configured projects.
func (w *Workspace) Projects() []Project { return w.projects }

// projectOf returns the project owning rel, if any.
func (w *Workspace) projectOf(rel string) (string, bool) {
	best, bestLen := "", -1
	for _, p := range w.projects {
		dir := strings.Trim(p.Dir, "/")
		if dir == "." {
			dir = ""
		}
		if utils.PathHasPrefix(rel, dir) && len(dir) > bestLen {
			best, bestLen = p.Name, len(dir)
		}
	}
	return best, bestLen >= 0
}

// Load discovers and reads the workspace documents. Once it succeeds later
// calls do nothing.
func (w *Workspace) Load(ctx context.Context) error {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()
	if w.loaded {
		return nil
	}
	if err := w.load(ctx); err != nil {
		return err
	}
	w.loaded = true
	return nil
}

func (w *Workspace) load(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "workspace.Load")
	defer span.Finish()

	paths, err := discover(ctx, w.fs, w.root, w.exclude)
	if err != nil {
		return err
	}
	var ids []findrefs.DocumentID
	for _, rel := range paths {
		if project, ok := w.projectOf(rel); ok {
			ids = append(ids, findrefs.DocumentID{Project: project, Path: rel})
		}
	}

	contents := make([][]byte, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		w.gate.Start()
		go func(i int, id findrefs.DocumentID) {
			defer wg.Done()
			defer w.gate.Done()
			contents[i], errs[i] = ctxvfs.ReadFile(ctx, w.fs, w.abs(id.Path))
		}(i, id)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	var result *multierror.Error
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, id := range ids {
		if errs[i] != nil {
			result = multierror.Append(result, errors.Wrapf(errs[i], "read %s", id.Path))
			continue
		}
		w.setLocked(id, contents[i])
	}
	w.sortLocked()
	span.SetTag("documents", len(w.order))
	w.log.Debug("workspace loaded", "documents", len(w.order), "projects", len(w.projects))
	if result != nil {
		// Unreadable files are left out; the rest of the workspace is usable.
		w.log.Warn("some documents could not be read", "err", result.ErrorOrNil())
	}
	return nil
}

func (w *Workspace) abs(rel string) string { return path.Join(w.root, rel) }

// Path returns the workspace relative path of an absolute file system path,
// and whether it lies inside the root.
func (w *Workspace) Path(abs string) (string, bool) {
	if !utils.PathHasPrefix(abs, w.root) {
		return "", false
	}
	return utils.PathTrimPrefix(abs, w.root), true
}

// DocumentFor returns the ID of the document at rel, if rel belongs to a
// project.
func (w *Workspace) DocumentFor(rel string) (findrefs.DocumentID, bool) {
	project, ok := w.projectOf(rel)
	if !ok || path.Ext(rel) != sourceExt {
		return findrefs.DocumentID{}, false
	}
	return findrefs.DocumentID{Project: project, Path: rel}, true
}

func (w *Workspace) setLocked(id findrefs.DocumentID, content []byte) {
	old, ok := w.docs[id]
	if ok {
		w.files.Forget(fileKey{id: old.doc.ID, version: old.doc.Version})
	} else {
		w.order = append(w.order, id)
	}
	w.version++
	w.docs[id] = &docState{
		doc:     &findrefs.Document{ID: id, Version: w.version, Length: len(content)},
		content: content,
	}
	w.decls.Purge()
}

func (w *Workspace) sortLocked() {
	sort.Slice(w.order, func(i, j int) bool {
		a, b := w.order[i], w.order[j]
		if a.Project != b.Project {
			return a.Project < b.Project
		}
		return a.Path < b.Path
	})
}

// Invalidate rereads the document at rel. A document that can no longer be
// read is removed.
func (w *Workspace) Invalidate(ctx context.Context, rel string) error {
	if err := w.Load(ctx); err != nil {
		return err
	}
	id, ok := w.DocumentFor(rel)
	if !ok {
		return nil
	}
	content, err := ctxvfs.ReadFile(ctx, w.fs, w.abs(rel))
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.removeLocked(id)
		return nil
	}
	if st, ok := w.docs[id]; ok && string(st.content) == string(content) {
		return nil
	}
	_, existed := w.docs[id]
	w.setLocked(id, content)
	if !existed {
		w.sortLocked()
	}
	return nil
}

func (w *Workspace) removeLocked(id findrefs.DocumentID) {
	st, ok := w.docs[id]
	if !ok {
		return
	}
	w.files.Forget(fileKey{id: id, version: st.doc.Version})
	delete(w.docs, id)
	for i, o := range w.order {
		if o == id {
			w.order = append(w.order[:i:i], w.order[i+1:]...)
			break
		}
	}
	w.decls.Purge()
}

// Documents implements findrefs.Workspace.
func (w *Workspace) Documents(ctx context.Context, scope findrefs.Scope) ([]*findrefs.Document, error) {
	if err := w.Load(ctx); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var want map[findrefs.DocumentID]bool
	if !scope.IsAll() {
		want = make(map[findrefs.DocumentID]bool, len(scope.Documents))
		for _, id := range scope.Documents {
			want[id] = true
		}
	}
	docs := make([]*findrefs.Document, 0, len(w.order))
	for _, id := range w.order {
		if want != nil && !want[id] {
			continue
		}
		docs = append(docs, w.docs[id].doc)
	}
	return docs, nil
}

// Document returns the current snapshot of id and its content.
func (w *Workspace) Document(ctx context.Context, id findrefs.DocumentID) (*findrefs.Document, []byte, error) {
	if err := w.Load(ctx); err != nil {
		return nil, nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.docs[id]
	if !ok {
		return nil, nil, fmt.Errorf("document %s not found", id)
	}
	return st.doc, st.content, nil
}

// file returns the parsed form of doc. A document replaced since doc was
// listed is reported as an error rather than parsed at the wrong version.
func (w *Workspace) file(ctx context.Context, doc *findrefs.Document) (*csharp.File, error) {
	w.mu.Lock()
	st, ok := w.docs[doc.ID]
	w.mu.Unlock()
	if !ok || st.doc.Version != doc.Version {
		return nil, fmt.Errorf("document %s version %d is no longer current", doc.ID, doc.Version)
	}
	v := w.files.Get(fileKey{id: doc.ID, version: doc.Version}, func() interface{} {
		w.gate.Start()
		defer w.gate.Done()
		f, err := csharp.Parse(ctx, doc.ID, st.content)
		return fileResult{file: f, err: err}
	}).(fileResult)
	if v.err != nil && ctx.Err() == nil && isContextError(v.err) {
		// Filled by a canceled caller; retry under our context.
		w.files.Forget(fileKey{id: doc.ID, version: doc.Version})
		return w.file(ctx, doc)
	}
	return v.file, v.err
}

// SyntaxRoot implements findrefs.Workspace.
func (w *Workspace) SyntaxRoot(ctx context.Context, doc *findrefs.Document) (findrefs.SyntaxTree, error) {
	f, err := w.file(ctx, doc)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SemanticModel implements findrefs.Workspace.
func (w *Workspace) SemanticModel(ctx context.Context, doc *findrefs.Document) (findrefs.SemanticModel, error) {
	return w.model(ctx, doc)
}

func (w *Workspace) model(ctx context.Context, doc *findrefs.Document) (*csharp.Model, error) {
	f, err := w.file(ctx, doc)
	if err != nil {
		return nil, err
	}
	d, err := w.Declarations(ctx, doc.ID.Project)
	if err != nil {
		return nil, err
	}
	return csharp.NewModel(f, d), nil
}

// SyntaxFacts implements findrefs.Workspace.
func (w *Workspace) SyntaxFacts(doc *findrefs.Document) findrefs.SyntaxFacts { return csharp.Facts{} }

// DependentProjects implements findrefs.ProjectGraph.
func (w *Workspace) DependentProjects(project string) []string {
	var deps []string
	seen := map[string]bool{project: true}
	queue := []string{project}
	for len(queue) > 0 {
		target := queue[0]
		queue = queue[1:]
		for _, p := range w.projects {
			if seen[p.Name] {
				continue
			}
			for _, r := range p.References {
				if r == target {
					seen[p.Name] = true
					deps = append(deps, p.Name)
					queue = append(queue, p.Name)
					break
				}
			}
		}
	}
	sort.Strings(deps)
	return deps
}

func (w *Workspace) project(name string) (Project, bool) {
	for _, p := range w.projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// Declarations returns the declaration table of project, built from its
// documents and those of the projects it references.
func (w *Workspace) Declarations(ctx context.Context, project string) (*csharp.Declarations, error) {
	if err := w.Load(ctx); err != nil {
		return nil, err
	}
	p, ok := w.project(project)
	if !ok {
		return nil, fmt.Errorf("unknown project %q", project)
	}
	v := w.decls.Get(project, func() interface{} {
		var refs []*csharp.Declarations
		for _, r := range p.References {
			d, err := w.Declarations(ctx, r)
			if err != nil {
				return declResult{err: err}
			}
			refs = append(refs, d)
		}
		docs, err := w.Documents(ctx, findrefs.AllDocuments())
		if err != nil {
			return declResult{err: err}
		}
		var files []*csharp.File
		for _, doc := range docs {
			if doc.ID.Project != project {
				continue
			}
			f, err := w.file(ctx, doc)
			if err != nil {
				if ctx.Err() != nil {
					return declResult{err: err}
				}
				w.log.Warn("leaving document out of declarations", "doc", doc.ID, "err", err)
				continue
			}
			files = append(files, f)
		}
		return declResult{decls: csharp.NewDeclarations(project, files, refs...)}
	}).(declResult)
	if v.err != nil {
		w.decls.Forget(project)
	}
	return v.decls, v.err
}

// SymbolAt returns the symbol declared or referenced at offset in id, with
// the span of the token there. It returns a nil symbol when nothing
// searchable is at offset.
func (w *Workspace) SymbolAt(ctx context.Context, id findrefs.DocumentID, offset int) (*findrefs.Symbol, findrefs.Span, error) {
	doc, _, err := w.Document(ctx, id)
	if err != nil {
		return nil, findrefs.Span{}, err
	}
	m, err := w.model(ctx, doc)
	if err != nil {
		return nil, findrefs.Span{}, err
	}
	return m.SymbolAt(ctx, offset)
}

// Resolve returns the symbols a query names, searching every project. See
// csharp.Declarations.Lookup for the query syntax.
func (w *Workspace) Resolve(ctx context.Context, query string) ([]*findrefs.Symbol, error) {
	seen := make(map[string]bool)
	var syms []*findrefs.Symbol
	for _, p := range w.projects {
		d, err := w.Declarations(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		for _, s := range d.Lookup(query) {
			key := s.Project + "\x00" + s.ID()
			if seen[key] {
				continue
			}
			seen[key] = true
			syms = append(syms, s)
		}
	}
	return syms, nil
}

// DeclarationSites returns where sym is declared.
func (w *Workspace) DeclarationSites(ctx context.Context, sym *findrefs.Symbol) ([]findrefs.DeclarationSite, error) {
	if sym.Declaration != nil {
		return []findrefs.DeclarationSite{*sym.Declaration}, nil
	}
	if sym.Project == "" {
		return nil, nil
	}
	d, err := w.Declarations(ctx, sym.Project)
	if err != nil {
		return nil, err
	}
	return d.DeclarationSites(sym), nil
}

func isContextError(err error) bool {
	err = errors.Cause(err)
	return err == context.Canceled || err == context.DeadlineExceeded
}
