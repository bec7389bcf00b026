package api

import (
	"github.com/fluxtranslate/flux-relay/internal/services/cache"
	"github.com/fluxtranslate/flux-relay/internal/services/request"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// CacheHandler administers the translation cache.
type CacheHandler struct {
	store      *cache.Store
	requestSvc *request.Service
}

func NewCacheHandler(store *cache.Store, requestSvc *request.Service) *CacheHandler {
	return &CacheHandler{
		store:      store,
		requestSvc: requestSvc,
	}
}

// Clear handles DELETE /v1/cache, dropping every cached translation.
func (h *CacheHandler) Clear(c *fiber.Ctx) error {
	requestID := h.requestSvc.GetRequestID(c)

	cleared := h.store.Len()
	h.store.Clear(c.Context())
	fiberlog.Infof("[%s] cache cleared, %d entries dropped", requestID, cleared)

	return c.JSON(fiber.Map{"ok": true, "cleared": cleared})
}

// Stats handles GET /v1/cache, reporting the cache's current size.
func (h *CacheHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "entries": h.store.Len()})
}
