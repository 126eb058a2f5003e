package langserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sourcegraph/ctxvfs"
	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/sourcegraph/refsearch/langserver/internal/utils"
)

// isFileSystemRequest returns if this is an LSP method whose sole
// purpose is modifying the contents of the overlay file system.
func isFileSystemRequest(method string) bool {
	return method == "textDocument/didOpen" ||
		method == "textDocument/didChange" ||
		method == "textDocument/didClose" ||
		method == "textDocument/didSave"
}

// handleFileSystemRequest applies a file system notification to the
// overlay. It returns the URI of the file and whether its contents changed.
func (h *HandlerShared) handleFileSystemRequest(ctx context.Context, req *jsonrpc2.Request) (lsp.DocumentURI, bool, error) {
	span := opentracing.SpanFromContext(ctx)
	h.Mu.Lock()
	overlay := h.overlay
	h.Mu.Unlock()

	do := func(uri lsp.DocumentURI, op func() error) (lsp.DocumentURI, bool, error) {
		if span != nil {
			span.SetTag("uri", uri)
		}
		before, beforeErr := h.readFile(ctx, uri)
		if beforeErr != nil && !os.IsNotExist(beforeErr) {
			// There is no op that could succeed in this case. (Most
			// commonly occurs when uri refers to a dir, not a file.)
			return uri, false, beforeErr
		}
		err := op()
		after, afterErr := h.readFile(ctx, uri)
		if os.IsNotExist(beforeErr) && os.IsNotExist(afterErr) {
			// File did not exist before or after so nothing has changed.
			return uri, false, err
		} else if afterErr != nil || beforeErr != nil {
			// If an error prevented us from reading the file
			// before or after then we assume the file changed to
			// be conservative.
			return uri, true, err
		}
		return uri, !bytes.Equal(before, after), err
	}

	if req.Params == nil {
		return "", false, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
	}
	switch req.Method {
	case "textDocument/didOpen":
		var params lsp.DidOpenTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return "", false, err
		}
		return do(params.TextDocument.URI, func() error {
			overlay.didOpen(&params)
			return nil
		})

	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return "", false, err
		}
		return do(params.TextDocument.URI, func() error {
			return overlay.didChange(&params)
		})

	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return "", false, err
		}
		return do(params.TextDocument.URI, func() error {
			overlay.didClose(&params)
			return nil
		})

	case "textDocument/didSave":
		var params lsp.DidSaveTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return "", false, err
		}
		// The file on disk now holds what the overlay held, so nothing
		// changes from our point of view.
		return params.TextDocument.URI, false, nil

	default:
		panic("unexpected file system request method: " + req.Method)
	}
}

// overlay owns the overlay filesystem, as well as handling LSP filesystem
// requests.
type overlay struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newOverlay() *overlay {
	return &overlay{m: make(map[string][]byte)}
}

// FS returns a vfs for the overlay.
func (h *overlay) FS() ctxvfs.FileSystem {
	return ctxvfs.Sync(&h.mu, ctxvfs.Map(h.m))
}

func (h *overlay) didOpen(params *lsp.DidOpenTextDocumentParams) {
	h.set(params.TextDocument.URI, []byte(params.TextDocument.Text))
}

func (h *overlay) didChange(params *lsp.DidChangeTextDocumentParams) error {
	contents, found := h.get(params.TextDocument.URI)
	if !found {
		return fmt.Errorf("received textDocument/didChange for unknown file %q", params.TextDocument.URI)
	}
	contents, err := applyContentChanges(params.TextDocument.URI, contents, params.ContentChanges)
	if err != nil {
		return err
	}
	h.set(params.TextDocument.URI, contents)
	return nil
}

// applyContentChanges updates `contents` based on `changes`
func applyContentChanges(uri lsp.DocumentURI, contents []byte, changes []lsp.TextDocumentContentChangeEvent) ([]byte, error) {
	for _, change := range changes {
		if change.Range == nil {
			contents = []byte(change.Text) // new full content
			continue
		}
		start, err := utils.OffsetForPosition(contents, change.Range.Start)
		if err != nil {
			return nil, fmt.Errorf("received textDocument/didChange for invalid position %v on %q: %s", change.Range.Start, uri, err)
		}
		end, err := utils.OffsetForPosition(contents, change.Range.End)
		if err != nil {
			return nil, fmt.Errorf("received textDocument/didChange for invalid position %v on %q: %s", change.Range.End, uri, err)
		}
		if end < start {
			return nil, fmt.Errorf("received textDocument/didChange with inverted range on %q", uri)
		}
		var buf bytes.Buffer
		buf.Write(contents[:start])
		buf.Write([]byte(change.Text))
		buf.Write(contents[end:])
		contents = buf.Bytes()
	}
	return contents, nil
}

func (h *overlay) didClose(params *lsp.DidCloseTextDocumentParams) {
	h.del(params.TextDocument.URI)
}

func uriToOverlayPath(uri lsp.DocumentURI) string {
	return strings.TrimPrefix(utils.UriToPath(uri), "/")
}

func (h *overlay) get(uri lsp.DocumentURI) (contents []byte, found bool) {
	path := uriToOverlayPath(uri)
	h.mu.Lock()
	contents, found = h.m[path]
	h.mu.Unlock()
	return
}

func (h *overlay) set(uri lsp.DocumentURI, contents []byte) {
	path := uriToOverlayPath(uri)
	h.mu.Lock()
	h.m[path] = contents
	h.mu.Unlock()
}

func (h *overlay) del(uri lsp.DocumentURI) {
	path := uriToOverlayPath(uri)
	h.mu.Lock()
	delete(h.m, path)
	h.mu.Unlock()
}

func (h *HandlerShared) readFile(ctx context.Context, uri lsp.DocumentURI) ([]byte, error) {
	if !utils.IsURI(uri) {
		return nil, &os.PathError{Op: "Open", Path: string(uri), Err: os.ErrNotExist}
	}
	h.Mu.Lock()
	fs := h.FS
	h.Mu.Unlock()
	return ctxvfs.ReadFile(ctx, fs, utils.UriToPath(uri))
}

// AtomicFS wraps a ctxvfs.NameSpace but is safe for concurrent calls to Bind
// while doing FS operations. It is optimized for "Bind" being rare. Bind
// done after a FS operation has started will not be respected until the FS
// operation completes.
type AtomicFS struct {
	mu sync.Mutex   // serialize calls to Bind (ensure we don't lose NameSpaces)
	v  atomic.Value // ctxvfs.NameSpace
}

// NewAtomicFS returns an AtomicFS with an empty wrapped ctxvfs.NameSpace
func NewAtomicFS() *AtomicFS {
	fs := &AtomicFS{}
	fs.v.Store(make(ctxvfs.NameSpace))
	return fs
}

// Bind wraps ctxvfs.NameSpace.Bind
func (a *AtomicFS) Bind(old string, newfs ctxvfs.FileSystem, new string, mode ctxvfs.BindMode) {
	// We do copy-on-write
	a.mu.Lock()
	defer a.mu.Unlock()

	fs1 := a.v.Load().(ctxvfs.NameSpace)
	fs2 := make(ctxvfs.NameSpace)
	for k, v := range fs1 {
		fs2[k] = v
	}
	fs2.Bind(old, newfs, new, mode)
	a.v.Store(fs2)
}

func (*AtomicFS) String() string {
	return "atomicfs"
}

// Open wraps ctxvfs.NameSpace.Open
func (a *AtomicFS) Open(ctx context.Context, path string) (ctxvfs.ReadSeekCloser, error) {
	fs := a.v.Load().(ctxvfs.NameSpace)
	return fs.Open(ctx, path)
}

// Stat wraps ctxvfs.NameSpace.Stat
func (a *AtomicFS) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	fs := a.v.Load().(ctxvfs.NameSpace)
	return fs.Stat(ctx, path)
}

// Lstat wraps ctxvfs.NameSpace.Lstat
func (a *AtomicFS) Lstat(ctx context.Context, path string) (os.FileInfo, error) {
	fs := a.v.Load().(ctxvfs.NameSpace)
	return fs.Lstat(ctx, path)
}

// ReadDir wraps ctxvfs.NameSpace.ReadDir
func (a *AtomicFS) ReadDir(ctx context.Context, path string) ([]os.FileInfo, error) {
	fs := a.v.Load().(ctxvfs.NameSpace)
	return fs.ReadDir(ctx, path)
}
