package lspserver

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, h jsonrpc2.Handler) *jsonrpc2.Conn {
	t.Helper()
	a, b := net.Pipe()
	ctx := context.Background()
	jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(a, jsonrpc2.VSCodeObjectCodec{}), h)
	c := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(b, jsonrpc2.VSCodeObjectCodec{}), jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (interface{}, error) {
		return nil, nil
	}))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHandler_lifecycle(t *testing.T) {
	var sessions int32
	h := &Handler{
		Init: func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) jsonrpc2.Handler {
			session := atomic.AddInt32(&sessions, 1)
			return jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
				return map[string]interface{}{"method": req.Method, "session": session}, nil
			})
		},
	}
	c := dial(t, h)
	ctx := context.Background()

	type result struct {
		Method  string
		Session int32
	}
	var res result

	err := c.Call(ctx, "workspace/xreferences", nil, &res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")

	require.NoError(t, c.Call(ctx, "initialize", nil, &res))
	assert.Equal(t, result{"initialize", 1}, res)

	err = c.Call(ctx, "initialize", nil, &res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")

	require.NoError(t, c.Call(ctx, "workspace/xreferences", nil, &res))
	assert.Equal(t, result{"workspace/xreferences", 1}, res)

	require.NoError(t, c.Call(ctx, "shutdown", nil, &res))
	err = c.Call(ctx, "workspace/xreferences", nil, &res)
	require.Error(t, err)

	require.NoError(t, c.Call(ctx, "initialize", nil, &res))
	assert.Equal(t, result{"initialize", 2}, res)
}
