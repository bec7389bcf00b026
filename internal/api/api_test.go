package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fluxtranslate/flux-relay/internal/config"
	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/cache"
	"github.com/fluxtranslate/flux-relay/internal/services/pipeline"
	"github.com/fluxtranslate/flux-relay/internal/services/providers"
	"github.com/fluxtranslate/flux-relay/internal/services/request"

	"github.com/gofiber/fiber/v2"
)

func testApp(t *testing.T, apiKey string) (*fiber.App, *cache.Store) {
	t.Helper()

	cfg := &config.Config{
		Providers: map[string]models.ProviderConfig{
			"openai": {APIKey: apiKey},
		},
		Pipeline: models.PipelineConfig{
			TargetLang: "ko",
			Provider:   models.ProviderOpenAI,
		},
	}

	store := cache.NewStore(100, nil)
	pipe := pipeline.New(cfg, store, nil, providers.NewRegistry(), nil)
	reqSvc := request.NewService()

	app := fiber.New()
	translateHandler := NewTranslateHandler(pipe, reqSvc)
	providersHandler := NewProvidersHandler()
	cacheHandler := NewCacheHandler(store, reqSvc)

	v1 := app.Group("/v1")
	v1.Post("/translate", translateHandler.Translate)
	v1.Get("/providers", providersHandler.List)
	v1.Get("/providers/:id/models", providersHandler.Models)
	v1.Get("/cache", cacheHandler.Stats)
	v1.Delete("/cache", cacheHandler.Clear)

	return app, store
}

func decodeBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestListProviders(t *testing.T) {
	app, _ := testApp(t, "sk-test")

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/providers", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	providerList, ok := body["providers"].([]any)
	if !ok {
		t.Fatalf("providers field = %T, want array", body["providers"])
	}
	if len(providerList) != 4 {
		t.Errorf("got %d providers, want 4", len(providerList))
	}
}

func TestProviderModels(t *testing.T) {
	app, _ := testApp(t, "sk-test")

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/providers/groq/models", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := decodeBody(t, resp.Body)
	if body["default"] != "llama-3.3-70b-versatile" {
		t.Errorf("default = %v, want groq default", body["default"])
	}
	options, ok := body["options"].([]any)
	if !ok || len(options) == 0 {
		t.Errorf("options = %v, want non-empty array", body["options"])
	}
}

func TestProviderModelsUnknown(t *testing.T) {
	app, _ := testApp(t, "sk-test")

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/providers/deepl/models", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want tolerant 200", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["default"] != "" {
		t.Errorf("default = %v, want empty", body["default"])
	}
}

func TestTranslateRejectsEmptyItems(t *testing.T) {
	app, _ := testApp(t, "sk-test")

	req := httptest.NewRequest("POST", "/v1/translate", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	if body["ok"] != false {
		t.Errorf("ok = %v, want false", body["ok"])
	}
}

func TestTranslateRejectsBadBody(t *testing.T) {
	app, _ := testApp(t, "sk-test")

	req := httptest.NewRequest("POST", "/v1/translate", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTranslateMissingKey(t *testing.T) {
	app, _ := testApp(t, "")

	req := httptest.NewRequest("POST", "/v1/translate", strings.NewReader(`{"items":[{"id":"1","text":"hello"}]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	body := decodeBody(t, resp.Body)
	errMsg, _ := body["error"].(string)
	if !strings.Contains(errMsg, "missing API key") {
		t.Errorf("error = %q, want missing API key message", errMsg)
	}
}

func TestCacheClearAndStats(t *testing.T) {
	app, store := testApp(t, "sk-test")

	store.Put(context.Background(), "k1", "v1")
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/cache", nil))
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	body := decodeBody(t, resp.Body)
	if body["entries"] != float64(1) {
		t.Errorf("entries = %v, want 1", body["entries"])
	}

	resp, err = app.Test(httptest.NewRequest("DELETE", "/v1/cache", nil))
	if err != nil {
		t.Fatalf("clear request failed: %v", err)
	}
	body = decodeBody(t, resp.Body)
	if body["cleared"] != float64(1) {
		t.Errorf("cleared = %v, want 1", body["cleared"])
	}
	if store.Len() != 0 {
		t.Errorf("store len after clear = %d, want 0", store.Len())
	}
}
