// Package request provides per-request identity for logging and stream
// session naming.
package request

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	requestIDLocalKey = "request_id"
	maxRequestIDLen   = 256
)

// Service resolves the request ID for a fiber request, honoring a
// client-supplied X-Request-ID and generating one otherwise.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// GetRequestID returns the request's ID, caching it in locals so every
// lookup within one request agrees.
func (s *Service) GetRequestID(c *fiber.Ctx) string {
	if cached := c.Locals(requestIDLocalKey); cached != nil {
		if str, ok := cached.(string); ok && str != "" {
			return str
		}
	}

	requestID := sanitize(c.Get("X-Request-ID"))
	if requestID == "" {
		requestID = s.GenerateRequestID()
	}

	c.Locals(requestIDLocalKey, requestID)
	return requestID
}

// GenerateRequestID creates a fresh random request ID.
func (s *Service) GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "req_unknown"
	}
	return "req_" + hex.EncodeToString(bytes)
}

func sanitize(reqID string) string {
	sanitized := strings.TrimSpace(reqID)
	if len(sanitized) > maxRequestIDLen {
		sanitized = sanitized[:maxRequestIDLen]
	}
	return sanitized
}
