// Package pipeline drives a translation run end to end: cache lookups,
// batching, concurrent provider calls, and ordered delivery of stream
// messages to the client.
package pipeline

import (
	"context"
	"sync"

	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/stream/contracts"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// SessionState is the lifecycle phase of a streaming session.
type SessionState int

const (
	SessionOpen SessionState = iota
	SessionRunning
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "Open"
	case SessionRunning:
		return "Running"
	case SessionClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Session owns message delivery for one translation run. It moves
// Open -> Running -> Closed; once Closed (terminal done sent, client
// gone, or cancelled) every further emit is dropped silently. All
// methods are safe for concurrent use by the scheduler's workers.
type Session struct {
	id     string
	writer contracts.MessageWriter
	cancel context.CancelFunc

	mu       sync.Mutex
	state    SessionState
	doneSent bool
}

// NewSession wires a writer and the run's cancel func into a fresh
// session in the Open state.
func NewSession(id string, writer contracts.MessageWriter, cancel context.CancelFunc) *Session {
	return &Session{
		id:     id,
		writer: writer,
		cancel: cancel,
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves the session from Open to Running. It reports false when
// the session was already started or closed.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionOpen {
		return false
	}
	s.state = SessionRunning
	return true
}

// EmitItem delivers one translated fragment.
func (s *Session) EmitItem(res models.TranslationResult) {
	s.emit(models.StreamMessage{
		Type:   models.StreamItem,
		ID:     res.ID,
		Text:   res.Text,
		Cached: res.Cached,
	})
}

// EmitError delivers a non-terminal error event. The run continues;
// other batches may still produce items.
func (s *Session) EmitError(message string) {
	s.emit(models.StreamMessage{
		Type:  models.StreamError,
		Error: message,
	})
}

// Finish sends the terminal done message and closes the session. Only
// the first call emits; the session guarantees exactly one done per
// run.
func (s *Session) Finish() {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state = SessionClosed
	alreadySent := s.doneSent
	s.doneSent = true
	s.mu.Unlock()

	if alreadySent {
		return
	}
	if err := s.writer.WriteMessage(models.StreamMessage{Type: models.StreamDone}); err != nil {
		s.handleWriteError(err)
	}
	if err := s.writer.Close(); err != nil && !contracts.IsExpectedError(err) {
		fiberlog.Warnf("[%s] stream close: %v", s.id, err)
	}
}

// Close severs the session without a done message, for client
// disconnects and external cancellation. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state = SessionClosed
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) emit(msg models.StreamMessage) {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.writer.WriteMessage(msg); err != nil {
		s.handleWriteError(err)
	}
}

// handleWriteError severs the session on client disconnect so in-flight
// batches stop producing work nobody will read.
func (s *Session) handleWriteError(err error) {
	if contracts.IsClientDisconnect(err) {
		fiberlog.Debugf("[%s] client disconnected, severing session", s.id)
	} else {
		fiberlog.Warnf("[%s] stream write failed: %v", s.id, err)
	}
	s.Close()
}
