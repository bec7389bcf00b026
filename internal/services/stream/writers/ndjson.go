// Package writers contains the transport-level output side of a
// translation stream. Messages go out as NDJSON, one JSON object per
// line, flushed eagerly so the client renders items as they finish.
package writers

import (
	"bufio"
	"encoding/json"
	"sync"

	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/stream/contracts"
	"github.com/fluxtranslate/flux-relay/internal/utils"

	"github.com/valyala/fasthttp"
)

// NDJSONWriter writes stream messages to an HTTP response body, one
// line per message. A mutex serializes access to the underlying
// bufio.Writer: concurrent batch workers share one writer per stream,
// and interleaved writes would corrupt the one-message-per-line framing.
type NDJSONWriter struct {
	mu         sync.Mutex
	writer     *bufio.Writer
	connState  contracts.ConnectionState
	sessionID  string
	totalBytes int64
}

// NewNDJSONWriter wraps a response body writer for a session.
func NewNDJSONWriter(writer *bufio.Writer, connState contracts.ConnectionState, sessionID string) *NDJSONWriter {
	return &NDJSONWriter{
		writer:    writer,
		connState: connState,
		sessionID: sessionID,
	}
}

// WriteMessage encodes msg as one NDJSON line and flushes it. Safe for
// concurrent use.
func (w *NDJSONWriter) WriteMessage(msg models.StreamMessage) error {
	if !w.connState.IsConnected() {
		return contracts.NewClientDisconnectError(w.sessionID)
	}

	buf := utils.Get()
	defer utils.Put(buf)

	data, err := json.Marshal(msg)
	if err != nil {
		return contracts.NewWriteFailureError(w.sessionID, "encode failed", err)
	}
	buf.Write(data)
	buf.WriteByte('\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.writer.Write(buf.B)
	if n > 0 {
		// Count partial writes too
		w.totalBytes += int64(n)
	}
	if err != nil {
		if contracts.IsConnectionClosed(err) {
			return contracts.NewClientDisconnectError(w.sessionID)
		}
		return contracts.NewWriteFailureError(w.sessionID, "write failed", err)
	}

	return w.flushLocked()
}

// Flush pushes buffered bytes to the client.
func (w *NDJSONWriter) Flush() error {
	if !w.connState.IsConnected() {
		return contracts.NewClientDisconnectError(w.sessionID)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close flushes remaining data. The done message is the session's job,
// not the writer's.
func (w *NDJSONWriter) Close() error {
	if !w.connState.IsConnected() {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *NDJSONWriter) flushLocked() error {
	if err := w.writer.Flush(); err != nil {
		if contracts.IsConnectionClosed(err) {
			return contracts.NewClientDisconnectError(w.sessionID)
		}
		return contracts.NewWriteFailureError(w.sessionID, "flush failed", err)
	}
	return nil
}

// TotalBytes returns the number of bytes written so far.
func (w *NDJSONWriter) TotalBytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalBytes
}

// FastHTTPConnectionState adapts a fasthttp request context to the
// ConnectionState contract.
type FastHTTPConnectionState struct {
	ctx *fasthttp.RequestCtx
}

func NewFastHTTPConnectionState(ctx *fasthttp.RequestCtx) *FastHTTPConnectionState {
	return &FastHTTPConnectionState{ctx: ctx}
}

func (c *FastHTTPConnectionState) IsConnected() bool {
	if c.ctx == nil {
		return false
	}
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

func (c *FastHTTPConnectionState) Done() <-chan struct{} {
	if c.ctx == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.ctx.Done()
}
