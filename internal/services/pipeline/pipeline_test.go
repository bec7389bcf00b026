package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/fluxtranslate/flux-relay/internal/config"
	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/cache"
	"github.com/fluxtranslate/flux-relay/internal/services/providers"
)

// fakeAdapter fabricates translations and records call counts.
type fakeAdapter struct {
	id models.ProviderID

	mu    sync.Mutex
	calls int

	failOn func(batch models.Batch) error
}

func (f *fakeAdapter) ID() models.ProviderID { return f.id }

func (f *fakeAdapter) TranslateBatch(ctx context.Context, providerCfg models.ProviderConfig, cfg models.TranslationConfig, batch models.Batch) ([]providers.Translation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.failOn != nil {
		if err := f.failOn(batch); err != nil {
			return nil, err
		}
	}

	out := make([]providers.Translation, 0, len(batch))
	for _, it := range batch {
		out = append(out, providers.Translation{ID: it.ID, Text: "T:" + it.Text})
	}
	return out, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig(apiKey string, charBudget int) *config.Config {
	return &config.Config{
		Providers: map[string]models.ProviderConfig{
			"openai": {APIKey: apiKey},
		},
		Pipeline: models.PipelineConfig{
			TargetLang:           "ko",
			Provider:             models.ProviderOpenAI,
			Model:                "gpt-4.1-mini",
			MaxConcurrentBatches: 2,
			BatchCharBudget:      charBudget,
		},
	}
}

func testPipeline(adapter *fakeAdapter, cfg *config.Config) *Pipeline {
	registry := providers.NewRegistryWith(adapter)
	store := cache.NewStore(100, nil)
	return New(cfg, store, nil, registry, nil)
}

func runStream(p *Pipeline, items []models.TranslationItem, cfg models.TranslationConfig) []models.StreamMessage {
	w := &recordWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := NewSession("test", w, cancel)
	p.Stream(ctx, session, items, cfg)
	return w.messages()
}

func TestStreamMissingAPIKey(t *testing.T) {
	adapter := &fakeAdapter{id: models.ProviderOpenAI}
	p := testPipeline(adapter, testConfig("", 1200))

	cfg, err := p.ResolveConfig(models.TranslationConfig{})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	msgs := runStream(p, []models.TranslationItem{{ID: "1", Text: "hello"}}, cfg)

	if got := countByType(msgs, models.StreamItem); got != 0 {
		t.Errorf("items = %d, want 0", got)
	}
	if got := countByType(msgs, models.StreamError); got != 1 {
		t.Fatalf("errors = %d, want 1", got)
	}
	if got := countByType(msgs, models.StreamDone); got != 1 {
		t.Errorf("done = %d, want 1", got)
	}
	for _, m := range msgs {
		if m.Type == models.StreamError && !strings.Contains(m.Error, "missing API key") {
			t.Errorf("error = %q, want missing API key message", m.Error)
		}
	}
	if adapter.callCount() != 0 {
		t.Errorf("adapter called %d times without a key, want 0", adapter.callCount())
	}
}

func TestStreamTranslatesAndCaches(t *testing.T) {
	adapter := &fakeAdapter{id: models.ProviderOpenAI}
	p := testPipeline(adapter, testConfig("sk-test", 1200))

	cfg, _ := p.ResolveConfig(models.TranslationConfig{})
	items := []models.TranslationItem{
		{ID: "1", Text: "hello"},
		{ID: "2", Text: "world"},
	}

	msgs := runStream(p, items, cfg)
	if got := countByType(msgs, models.StreamItem); got != 2 {
		t.Fatalf("first run items = %d, want 2", got)
	}
	if got := countByType(msgs, models.StreamDone); got != 1 {
		t.Errorf("first run done = %d, want 1", got)
	}
	for _, m := range msgs {
		if m.Type == models.StreamItem && m.Cached {
			t.Errorf("first run item %s marked cached", m.ID)
		}
	}
	firstCalls := adapter.callCount()
	if firstCalls == 0 {
		t.Fatal("adapter never called on first run")
	}

	// Second run is served entirely from the cache
	msgs = runStream(p, items, cfg)
	if got := countByType(msgs, models.StreamItem); got != 2 {
		t.Fatalf("second run items = %d, want 2", got)
	}
	for _, m := range msgs {
		if m.Type == models.StreamItem && !m.Cached {
			t.Errorf("second run item %s not marked cached", m.ID)
		}
	}
	if adapter.callCount() != firstCalls {
		t.Errorf("second run made %d extra provider calls, want 0", adapter.callCount()-firstCalls)
	}
}

func TestStreamPartialFailureIsolated(t *testing.T) {
	adapter := &fakeAdapter{
		id: models.ProviderOpenAI,
		failOn: func(batch models.Batch) error {
			for _, it := range batch {
				if it.Text == "bad" {
					return models.NewProviderHTTPError(models.ProviderOpenAI, 500, "upstream exploded")
				}
			}
			return nil
		},
	}
	// Budget of 1 forces one item per batch
	p := testPipeline(adapter, testConfig("sk-test", 1))

	cfg, _ := p.ResolveConfig(models.TranslationConfig{})
	items := []models.TranslationItem{
		{ID: "1", Text: "first"},
		{ID: "2", Text: "bad"},
		{ID: "3", Text: "third"},
	}

	msgs := runStream(p, items, cfg)
	if got := countByType(msgs, models.StreamItem); got != 2 {
		t.Errorf("items = %d, want 2 from the surviving batches", got)
	}
	if got := countByType(msgs, models.StreamError); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
	if got := countByType(msgs, models.StreamDone); got != 1 {
		t.Errorf("done = %d, want 1", got)
	}

	gotIDs := map[string]bool{}
	for _, m := range msgs {
		if m.Type == models.StreamItem {
			gotIDs[m.ID] = true
		}
	}
	if !gotIDs["1"] || !gotIDs["3"] {
		t.Errorf("surviving items = %v, want 1 and 3", gotIDs)
	}
}

func TestStreamGlossaryApplied(t *testing.T) {
	adapter := &fakeAdapter{id: models.ProviderOpenAI}
	p := testPipeline(adapter, testConfig("sk-test", 1200))

	cfg, _ := p.ResolveConfig(models.TranslationConfig{
		Glossary: []models.GlossaryEntry{{From: "T:api", To: "인터페이스"}},
	})
	msgs := runStream(p, []models.TranslationItem{{ID: "1", Text: "api"}}, cfg)

	for _, m := range msgs {
		if m.Type == models.StreamItem && m.Text != "인터페이스" {
			t.Errorf("item text = %q, want glossary-substituted output", m.Text)
		}
	}
}

func TestStreamClosedSessionProducesNothing(t *testing.T) {
	adapter := &fakeAdapter{id: models.ProviderOpenAI}
	p := testPipeline(adapter, testConfig("sk-test", 1200))
	cfg, _ := p.ResolveConfig(models.TranslationConfig{})

	w := &recordWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	session := NewSession("test", w, cancel)
	session.Close()

	p.Stream(ctx, session, []models.TranslationItem{{ID: "1", Text: "hello"}}, cfg)

	if got := len(w.messages()); got != 0 {
		t.Errorf("closed session received %d messages, want 0", got)
	}
}

func TestTranslateAll(t *testing.T) {
	adapter := &fakeAdapter{id: models.ProviderOpenAI}
	p := testPipeline(adapter, testConfig("sk-test", 1200))
	cfg, _ := p.ResolveConfig(models.TranslationConfig{})

	results, err := p.TranslateAll(context.Background(), []models.TranslationItem{
		{ID: "1", Text: "hello"},
		{ID: "2", Text: "world"},
	}, cfg)
	if err != nil {
		t.Fatalf("TranslateAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	byID := map[string]string{}
	for _, r := range results {
		byID[r.ID] = r.Text
	}
	if byID["1"] != "T:hello" || byID["2"] != "T:world" {
		t.Errorf("results = %v, want translated texts", byID)
	}
}

func TestTranslateAllFailsOnBatchError(t *testing.T) {
	adapter := &fakeAdapter{
		id: models.ProviderOpenAI,
		failOn: func(batch models.Batch) error {
			return models.NewProviderHTTPError(models.ProviderOpenAI, 500, "boom")
		},
	}
	p := testPipeline(adapter, testConfig("sk-test", 1200))
	cfg, _ := p.ResolveConfig(models.TranslationConfig{})

	_, err := p.TranslateAll(context.Background(), []models.TranslationItem{{ID: "1", Text: "hello"}}, cfg)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
}

func TestTranslateAllMissingKey(t *testing.T) {
	adapter := &fakeAdapter{id: models.ProviderOpenAI}
	p := testPipeline(adapter, testConfig("", 1200))
	cfg, _ := p.ResolveConfig(models.TranslationConfig{})

	_, err := p.TranslateAll(context.Background(), []models.TranslationItem{{ID: "1", Text: "hello"}}, cfg)
	if !models.IsAuthenticationError(err) {
		t.Errorf("err = %v, want authentication error", err)
	}
}

func TestResolveConfig(t *testing.T) {
	adapter := &fakeAdapter{id: models.ProviderOpenAI}
	p := testPipeline(adapter, testConfig("sk-test", 1200))

	cfg, err := p.ResolveConfig(models.TranslationConfig{})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if cfg.TargetLang != "ko" {
		t.Errorf("TargetLang = %q, want ko", cfg.TargetLang)
	}
	if cfg.Provider != models.ProviderOpenAI {
		t.Errorf("Provider = %s, want openai", cfg.Provider)
	}
	if cfg.Model != "gpt-4.1-mini" {
		t.Errorf("Model = %q, want gpt-4.1-mini", cfg.Model)
	}

	cfg, err = p.ResolveConfig(models.TranslationConfig{
		TargetLang: "ja",
		Provider:   models.ProviderGroq,
	})
	if err != nil {
		t.Fatalf("ResolveConfig with overrides: %v", err)
	}
	if cfg.TargetLang != "ja" {
		t.Errorf("TargetLang = %q, want ja", cfg.TargetLang)
	}
	if cfg.Provider != models.ProviderGroq {
		t.Errorf("Provider = %s, want groq", cfg.Provider)
	}
	// Stored model is not in groq's catalog, so it coerces to the default
	if cfg.Model != "llama-3.3-70b-versatile" {
		t.Errorf("Model = %q, want groq default", cfg.Model)
	}

	if _, err := p.ResolveConfig(models.TranslationConfig{Provider: "deepl"}); err == nil {
		t.Error("unknown provider accepted")
	}
}
