package modes

import (
	"context"
	"io/ioutil"
	"net"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler() jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		return req.Method, nil
	})
}

func noopHandler() jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (interface{}, error) {
		return nil, nil
	})
}

func TestWebSocket(t *testing.T) {
	srv := httptest.NewServer(WebSocketHandler(echoHandler, nil))
	defer srv.Close()

	wsConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	c := jsonrpc2.NewConn(context.Background(), NewObjectStream(wsConn), noopHandler())
	defer c.Close()

	for _, method := range []string{"initialize", "workspace/xreferences"} {
		var got string
		require.NoError(t, c.Call(context.Background(), method, nil, &got))
		assert.Equal(t, method, got)
	}
}

func TestTCP(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	go serve(context.Background(), lis, echoHandler, nil)

	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", lis.Addr().String())
		require.NoError(t, err)
		c := jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{}), noopHandler())
		var got string
		require.NoError(t, c.Call(context.Background(), "shutdown", nil, &got))
		assert.Equal(t, "shutdown", got)
		c.Close()
	}
}

func TestSkipHeaders(t *testing.T) {
	tests := map[string]string{
		"Content-Length: 2\r\n\r\n{}":                    "{}",
		"Content-Length: 2\r\nContent-Type: x\r\n\r\n{}": "{}",
		`{"jsonrpc":"2.0"}`:                              `{"jsonrpc":"2.0"}`,
	}
	for in, want := range tests {
		got, err := ioutil.ReadAll(skipHeaders([]byte(in)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}
