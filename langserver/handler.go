package langserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/afero"
	log15 "gopkg.in/inconshreveable/log15.v2"

	"github.com/sourcegraph/refsearch/findrefs"
	"github.com/sourcegraph/refsearch/langserver/internal/utils"
	"github.com/sourcegraph/refsearch/pkg/lspext"
)

// codeRequestCancelled is the LSP error code for a request the client
// cancelled.
const codeRequestCancelled = -32800

// JSONRPC2Conn is a limited interface to jsonrpc2.Conn. When the
// built-in implementation is used, it is satisfied by *jsonrpc2.Conn.
type JSONRPC2Conn interface {
	Notify(ctx context.Context, method string, params interface{}, opt ...jsonrpc2.CallOption) error
	Close() error
}

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	lsp.InitializeParams

	InitializationOptions *InitializationOptions `json:"initializationOptions,omitempty"`

	// NoOSFileSystemAccess makes the server never read from the OS file
	// system. It only uses the files the client has opened.
	NoOSFileSystemAccess bool `json:"noOSFileSystemAccess,omitempty"`
}

// NewHandler creates a reference search language server handler. Searches
// run concurrently so they can be cancelled; every other request is
// handled in order.
func NewHandler(cfg Config) jsonrpc2.Handler {
	return newLangHandler(cfg).jsonrpc2Handler()
}

func newLangHandler(cfg Config) *LangHandler {
	return &LangHandler{
		HandlerShared: &HandlerShared{},
		DefaultConfig: cfg,
		log:           log15.New("pkg", "langserver"),
	}
}

func (h *LangHandler) jsonrpc2Handler() jsonrpc2.Handler {
	return &asyncSearchHandler{jsonrpc2.HandlerWithError(h.handle)}
}

type asyncSearchHandler struct {
	h jsonrpc2.Handler
}

func (a *asyncSearchHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if isSearchRequest(req.Method) {
		go a.h.Handle(ctx, conn, req)
		return
	}
	a.h.Handle(ctx, conn, req)
}

func isSearchRequest(method string) bool {
	return method == "textDocument/references" || method == "workspace/xreferences"
}

// LangHandler is a reference search LSP/JSON-RPC handler.
type LangHandler struct {
	mu sync.Mutex
	*HandlerShared

	// DefaultConfig is the configuration used when the workspace has no
	// config file.
	DefaultConfig Config

	// BaseConfigFS, if non-nil, is where the config file is read from
	// instead of the OS file system.
	BaseConfigFS afero.Fs

	cancel   cancel
	init     *InitializeParams // set by "initialize" request
	searcher *Searcher
	shutdown bool
	log      log15.Logger
}

// reset clears all internal state in h and prepares a searcher over the
// workspace in init.
func (h *LangHandler) reset(ctx context.Context, init *InitializeParams) error {
	root := utils.UriToPath(init.Root())
	if root == "" {
		return errors.New("initialize requires a rootUri or rootPath")
	}
	cfg := h.DefaultConfig
	if !init.NoOSFileSystemAccess {
		fs := h.BaseConfigFS
		if fs == nil {
			fs = afero.NewOsFs()
		}
		fileCfg, err := LoadConfig(fs, root, cfg)
		if err != nil {
			return err
		}
		cfg = fileCfg
	}
	cfg = cfg.Apply(init.InitializationOptions)

	if err := h.HandlerShared.Reset(!init.NoOSFileSystemAccess); err != nil {
		return err
	}
	searcher, err := NewSearcher(h.FS, root, cfg, h.log)
	if err != nil {
		return err
	}
	if !init.NoOSFileSystemAccess {
		// Load failures are retried on the first search.
		if err := searcher.Load(ctx); err != nil {
			h.log.Warn("initial workspace load failed", "root", root, "err", err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.init = init
	h.searcher = searcher
	return nil
}

func (h *LangHandler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result interface{}, err error) {
	return h.Handle(ctx, conn, req)
}

// Handle implements jsonrpc2.Handler, except conn is an interface
// type for testability. The handle method implements jsonrpc2.Handler
// exactly.
func (h *LangHandler) Handle(ctx context.Context, conn JSONRPC2Conn, req *jsonrpc2.Request) (result interface{}, err error) {
	// Prevent any uncaught panics from taking the entire server down.
	defer func() {
		if perr := utils.Panicf(recover(), "%v", req.Method); perr != nil {
			err = perr
		}
	}()

	start := time.Now()
	defer func() {
		observeRequest(req.Method, start, err)
	}()

	h.mu.Lock()
	initialized, shutdown := h.init != nil, h.shutdown
	h.mu.Unlock()
	if req.Method != "initialize" && !initialized {
		return nil, errors.New("server must be initialized")
	}
	if shutdown && req.Method != "exit" {
		return nil, errors.New("server is shutting down")
	}

	span, ctx := spanForRequest(ctx, req)
	defer func() {
		if err != nil {
			ext.Error.Set(span, true)
			span.LogKV("error", err.Error())
		}
		span.Finish()
	}()

	if isSearchRequest(req.Method) {
		var done func()
		ctx, done = h.cancel.WithCancel(ctx, req.ID)
		defer done()
	}

	switch req.Method {
	case "initialize":
		if initialized {
			return nil, errors.New("language server is already initialized")
		}
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
		}
		var params InitializeParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		// Assume it's a file path if the root has no scheme.
		if params.RootURI == "" && params.RootPath != "" && !utils.IsURI(lsp.DocumentURI(params.RootPath)) {
			params.RootURI = utils.PathToURI(params.RootPath)
		}
		if err := h.reset(ctx, &params); err != nil {
			return nil, err
		}
		kind := lsp.TDSKIncremental
		return lsp.InitializeResult{
			Capabilities: lsp.ServerCapabilities{
				TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
					Kind: &kind,
				},
				ReferencesProvider: true,
			},
		}, nil

	case "initialized":
		// A notification that the client is ready to receive requests.
		return nil, nil

	case "shutdown":
		h.mu.Lock()
		h.shutdown = true
		h.mu.Unlock()
		return nil, nil

	case "exit":
		if conn != nil {
			if err := conn.Close(); err != nil {
				log.Printf("refsearch: error closing connection: %s", err)
			}
		}
		return nil, nil

	case "$/cancelRequest":
		// notification, don't send back results/errors
		if req.Params == nil {
			return nil, nil
		}
		var params lsp.CancelParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, nil
		}
		h.cancel.Cancel(jsonrpc2.ID{
			Num:      params.ID.Num,
			Str:      params.ID.Str,
			IsString: params.ID.IsString,
		})
		return nil, nil

	case "textDocument/references":
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
		}
		var params lsp.ReferenceParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		return h.handleTextDocumentReferences(ctx, conn, req, params)

	case "workspace/xreferences":
		if req.Params == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
		}
		var params lspext.FindReferencesParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		return h.handleXReferences(ctx, conn, req, params)

	default:
		if isFileSystemRequest(req.Method) {
			uri, changed, err := h.handleFileSystemRequest(ctx, req)
			if changed {
				if ierr := h.getSearcher().DidChange(ctx, uri); ierr != nil {
					h.log.Warn("failed to refresh document", "uri", uri, "err", ierr)
				}
			}
			return nil, err
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: fmt.Sprintf("method not supported: %s", req.Method)}
	}
}

func (h *LangHandler) getSearcher() *Searcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.searcher
}

// searchError converts a failed search into the JSON-RPC error the client
// expects.
func searchError(err error) error {
	if findrefs.IsCanceled(err) {
		return &jsonrpc2.Error{Code: codeRequestCancelled, Message: err.Error()}
	}
	return err
}

// spanForRequest starts a span for req, continuing the trace the client
// sent in the request metadata if any.
func spanForRequest(ctx context.Context, req *jsonrpc2.Request) (opentracing.Span, context.Context) {
	opName := "LSP server: " + req.Method
	var opts []opentracing.StartSpanOption
	if req.Meta != nil {
		var carrier opentracing.TextMapCarrier
		if err := json.Unmarshal(*req.Meta, &carrier); err == nil {
			if clientCtx, err := opentracing.GlobalTracer().Extract(opentracing.TextMap, carrier); err == nil {
				opts = append(opts, ext.RPCServerOption(clientCtx))
			}
		}
	}
	opts = append(opts, opentracing.Tags{"method": req.Method, "id": req.ID.String()})
	return opentracing.StartSpanFromContext(ctx, opName, opts...)
}
