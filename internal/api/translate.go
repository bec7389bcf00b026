// Package api contains the fiber handlers for the relay's HTTP
// surface.
package api

import (
	"bufio"
	"context"

	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/pipeline"
	"github.com/fluxtranslate/flux-relay/internal/services/request"
	"github.com/fluxtranslate/flux-relay/internal/services/stream/writers"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"
)

// TranslateRequest is the body of both translate endpoints. Config
// fields override the relay's configured defaults for this run only.
type TranslateRequest struct {
	Items  []models.TranslationItem `json:"items"`
	Config models.TranslationConfig `json:"config"`
}

// TranslateHandler serves the streaming and one-shot translate
// endpoints.
type TranslateHandler struct {
	pipeline   *pipeline.Pipeline
	requestSvc *request.Service
}

func NewTranslateHandler(p *pipeline.Pipeline, requestSvc *request.Service) *TranslateHandler {
	return &TranslateHandler{
		pipeline:   p,
		requestSvc: requestSvc,
	}
}

// Stream handles POST /v1/translate/stream. Results go out as NDJSON
// frames as they complete; a single done frame terminates the stream.
// Client disconnect cancels the run.
func (h *TranslateHandler) Stream(c *fiber.Ctx) error {
	requestID := h.requestSvc.GetRequestID(c)

	req, cfg, err := h.parseRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	fiberlog.Infof("[%s] stream: %d items, provider=%s model=%s lang=%s",
		requestID, len(req.Items), cfg.Provider, cfg.Model, cfg.TargetLang)

	fasthttpCtx := c.Context()
	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	items := req.Items
	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		connState := writers.NewFastHTTPConnectionState(fasthttpCtx)
		writer := writers.NewNDJSONWriter(w, connState, requestID)

		ctx, cancel := context.WithCancel(fasthttpCtx)
		defer cancel()

		session := pipeline.NewSession(requestID, writer, cancel)
		h.pipeline.Stream(ctx, session, items, cfg)

		fiberlog.Debugf("[%s] stream finished, %d bytes", requestID, writer.TotalBytes())
	}))

	return nil
}

// Translate handles POST /v1/translate, the one-shot fallback. The
// whole run succeeds or fails as a unit.
func (h *TranslateHandler) Translate(c *fiber.Ctx) error {
	requestID := h.requestSvc.GetRequestID(c)

	req, cfg, err := h.parseRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	fiberlog.Infof("[%s] translate: %d items, provider=%s model=%s",
		requestID, len(req.Items), cfg.Provider, cfg.Model)

	results, err := h.pipeline.TranslateAll(c.Context(), req.Items, cfg)
	if err != nil {
		fiberlog.Warnf("[%s] translate failed: %v", requestID, err)
		return respondError(c, err)
	}

	if results == nil {
		results = []models.TranslationResult{}
	}
	return c.JSON(fiber.Map{"ok": true, "items": results})
}

func (h *TranslateHandler) parseRequest(c *fiber.Ctx) (TranslateRequest, models.TranslationConfig, error) {
	var req TranslateRequest
	if err := c.BodyParser(&req); err != nil {
		return req, models.TranslationConfig{}, models.NewValidationError("invalid request body", err)
	}
	if len(req.Items) == 0 {
		return req, models.TranslationConfig{}, models.NewValidationError("items must not be empty", nil)
	}
	cfg, err := h.pipeline.ResolveConfig(req.Config)
	if err != nil {
		return req, cfg, err
	}
	return req, cfg, nil
}

// respondError maps an error onto the {ok:false, error} envelope with
// the AppError's HTTP status.
func respondError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
		"ok":    false,
		"error": appErr.Message,
	})
}
