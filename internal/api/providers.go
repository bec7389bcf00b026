package api

import (
	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/providers"

	"github.com/gofiber/fiber/v2"
)

// ProvidersHandler exposes the built-in provider catalog.
type ProvidersHandler struct{}

func NewProvidersHandler() *ProvidersHandler {
	return &ProvidersHandler{}
}

// List handles GET /v1/providers.
func (h *ProvidersHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":        true,
		"providers": models.AllProviders(),
	})
}

// Models handles GET /v1/providers/:id/models. Unknown providers get
// an empty catalog rather than an error, mirroring the extension's
// tolerant lookup.
func (h *ProvidersHandler) Models(c *fiber.Ctx) error {
	id := models.ProviderID(c.Params("id"))
	return c.JSON(fiber.Map{
		"ok":       true,
		"provider": id,
		"options":  providers.ModelOptions(id),
		"default":  providers.DefaultModel(id),
	})
}
