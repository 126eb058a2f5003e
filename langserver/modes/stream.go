package modes

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// ObjectStream is a jsonrpc2.ObjectStream that uses a WebSocket to send
// and receive JSON-RPC 2.0 objects. Each message carries one object framed
// with a Content-Length header, as on the stdio transport.
type ObjectStream struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

// NewObjectStream creates a new jsonrpc2.ObjectStream for sending and
// receiving JSON-RPC 2.0 objects over a WebSocket.
func NewObjectStream(conn *websocket.Conn) *ObjectStream {
	return &ObjectStream{conn: conn}
}

// WriteObject implements jsonrpc2.ObjectStream.
func (t *ObjectStream) WriteObject(obj interface{}) error {
	objBytes, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(objBytes), objBytes)))
}

// ReadObject implements jsonrpc2.ObjectStream.
func (t *ObjectStream) ReadObject(v interface{}) error {
	_, message, err := t.conn.ReadMessage()
	if e, ok := err.(*websocket.CloseError); ok {
		if e.Code == websocket.CloseAbnormalClosure && e.Text == io.ErrUnexpectedEOF.Error() {
			// Suppress a noisy (but harmless) log message by
			// unwrapping this error.
			err = io.ErrUnexpectedEOF
		}
	}
	if err != nil {
		return err
	}
	return json.NewDecoder(skipHeaders(message)).Decode(v)
}

// skipHeaders returns a reader positioned after the header block of
// message. Messages without headers are returned whole.
func skipHeaders(message []byte) io.Reader {
	if !bytes.HasPrefix(message, []byte("Content-Length:")) {
		return bytes.NewReader(message)
	}
	r := bufio.NewReader(bytes.NewReader(message))
	for {
		line, err := r.ReadString('\n')
		if err != nil || line == "\r\n" || line == "\n" {
			return r
		}
	}
}

// Close implements jsonrpc2.ObjectStream.
func (t *ObjectStream) Close() error {
	return t.conn.Close()
}
