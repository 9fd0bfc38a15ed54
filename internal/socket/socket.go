// Package socket provides low-level read/write helpers over a gateway
// websocket connection, reusing buffers across frames.
package socket

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/valyala/bytebufferpool"
	"nhooyr.io/websocket"
)

// DecodeError wraps a JSON decode failure on an otherwise successfully
// received frame. It is distinguished from a transport-level error so
// callers can log and continue rather than tearing down the
// connection over a single malformed frame.
type DecodeError struct{ Err error }

func (e DecodeError) Error() string { return fmt.Sprintf("decoding frame: %v", e.Err) }
func (e DecodeError) Unwrap() error { return e.Err }

// Read reads a single JSON text frame from conn into dst. A transport
// or framing failure is returned as-is; a failure to unmarshal an
// otherwise well-received frame is wrapped in DecodeError.
func Read(ctx context.Context, conn *websocket.Conn, dst any) error {
	messageType, reader, err := conn.Reader(ctx)
	if err != nil {
		return err
	}

	if messageType != websocket.MessageText {
		return fmt.Errorf("received unexpected message type from gateway connection: %v", messageType)
	}

	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	if _, err := b.ReadFrom(reader); err != nil {
		return err
	}

	if err := json.Unmarshal(b.Bytes(), dst); err != nil {
		return DecodeError{Err: err}
	}

	return nil
}

// Write writes dst as a single JSON text frame to conn.
func Write(ctx context.Context, conn *websocket.Conn, dst any) error {
	writer, err := conn.Writer(ctx, websocket.MessageText)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(writer).Encode(dst); err != nil {
		return err
	}

	return writer.Close()
}
