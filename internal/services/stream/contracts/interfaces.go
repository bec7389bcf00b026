package contracts

import "github.com/fluxtranslate/flux-relay/internal/models"

// MessageWriter delivers stream messages to a client.
type MessageWriter interface {
	WriteMessage(msg models.StreamMessage) error
	Flush() error
	Close() error
}

// ConnectionState tracks whether the client is still listening.
type ConnectionState interface {
	IsConnected() bool
	Done() <-chan struct{}
}
