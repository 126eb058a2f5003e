// Package modes serves a JSON-RPC handler over the supported transports.
package modes

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
)

// NewHandler returns the handler for a new connection. Each connection
// gets its own handler because a handler is initialized only once.
type NewHandler func() jsonrpc2.Handler

// Stdio serves one connection on stdin and stdout until it is closed.
func Stdio(newHandler NewHandler, connOpt []jsonrpc2.ConnOpt) error {
	log.Println("refsearch: reading on stdin, writing on stdout")
	<-jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{}), newHandler(), connOpt...).DisconnectNotify()
	log.Println("refsearch: connection closed")
	return nil
}

// TCP accepts connections on addr until the listener fails.
func TCP(addr string, newHandler NewHandler, connOpt []jsonrpc2.ConnOpt) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer lis.Close()
	log.Println("refsearch: listening for TCP connections on", addr)
	return serve(context.Background(), lis, newHandler, connOpt)
}

func serve(ctx context.Context, lis net.Listener, newHandler NewHandler, connOpt []jsonrpc2.ConnOpt) error {
	var connectionCount int64
	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		connectionID := atomic.AddInt64(&connectionCount, 1)
		log.Printf("refsearch: received incoming TCP connection #%d", connectionID)
		c := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{}), newHandler(), connOpt...)
		go func() {
			<-c.DisconnectNotify()
			log.Printf("refsearch: disconnected TCP connection #%d", connectionID)
		}()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler returns an http.Handler that upgrades each request to a
// WebSocket and serves JSON-RPC on it.
func WebSocketHandler(newHandler NewHandler, connOpt []jsonrpc2.ConnOpt) http.Handler {
	var connectionCount int64
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("refsearch: error upgrading HTTP to WebSocket: %v", err)
			return
		}
		defer wsConn.Close()
		connectionID := atomic.AddInt64(&connectionCount, 1)
		log.Printf("refsearch: received incoming WebSocket connection #%d", connectionID)
		<-jsonrpc2.NewConn(r.Context(), NewObjectStream(wsConn), newHandler(), connOpt...).DisconnectNotify()
		log.Printf("refsearch: disconnected WebSocket connection #%d", connectionID)
	})
}

// WebSocket serves WebSocket connections on addr.
func WebSocket(addr string, newHandler NewHandler, connOpt []jsonrpc2.ConnOpt) error {
	mux := http.NewServeMux()
	mux.Handle("/", WebSocketHandler(newHandler, connOpt))
	log.Println("refsearch: listening for WebSocket connections on", addr)
	return http.ListenAndServe(addr, mux)
}

type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
