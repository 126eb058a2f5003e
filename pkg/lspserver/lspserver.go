// Package lspserver implements the LSP session lifecycle around a
// handler: the handler is created on initialize and dropped on shutdown,
// so a connection can initialize again afterwards.
package lspserver

import (
	"context"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
)

type Handler struct {
	// Init returns the handler for a session. It is called for every
	// initialize request received outside a session, and the request is
	// then passed to the returned handler.
	Init func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) jsonrpc2.Handler

	mu sync.Mutex
	h  jsonrpc2.Handler
}

func (h *Handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "initialize":
		h.mu.Lock()
		if h.h != nil {
			h.mu.Unlock()
			replyError(ctx, conn, req, "language server is already initialized")
			return
		}
		h2 := h.Init(ctx, conn, req)
		h.h = h2
		h.mu.Unlock()
		h2.Handle(ctx, conn, req)

	case "shutdown":
		h.mu.Lock()
		h2 := h.h
		h.h = nil
		h.mu.Unlock()
		if h2 == nil {
			replyError(ctx, conn, req, "language server is not initialized")
			return
		}
		h2.Handle(ctx, conn, req)

	case "exit":
		conn.Close()

	default:
		h.mu.Lock()
		h2 := h.h
		h.mu.Unlock()
		if h2 == nil {
			if !req.Notif {
				replyError(ctx, conn, req, "language server is not initialized")
			}
			return
		}
		h2.Handle(ctx, conn, req)
	}
}

func replyError(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, message string) {
	conn.SendResponse(ctx, &jsonrpc2.Response{
		ID: req.ID,
		Error: &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: message,
		}})
}
