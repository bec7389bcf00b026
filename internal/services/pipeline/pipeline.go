package pipeline

import (
	"context"
	"sync"

	"github.com/fluxtranslate/flux-relay/internal/config"
	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/batch"
	"github.com/fluxtranslate/flux-relay/internal/services/cache"
	"github.com/fluxtranslate/flux-relay/internal/services/circuitbreaker"
	"github.com/fluxtranslate/flux-relay/internal/services/glossary"
	"github.com/fluxtranslate/flux-relay/internal/services/providers"
	"github.com/fluxtranslate/flux-relay/internal/services/stream/contracts"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Pipeline executes translation runs against the configured providers,
// serving from the cache first and fanning the remainder out in
// batches.
type Pipeline struct {
	cfg       *config.Config
	store     *cache.Store
	semantic  *cache.SemanticStore
	registry  *providers.Registry
	breakers  map[models.ProviderID]*circuitbreaker.CircuitBreaker
	scheduler *Scheduler
}

// New assembles the pipeline. semantic and breakers may be nil when
// those layers are not configured.
func New(
	cfg *config.Config,
	store *cache.Store,
	semantic *cache.SemanticStore,
	registry *providers.Registry,
	breakers map[models.ProviderID]*circuitbreaker.CircuitBreaker,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		semantic:  semantic,
		registry:  registry,
		breakers:  breakers,
		scheduler: NewScheduler(cfg.Pipeline.Concurrency()),
	}
}

// ResolveConfig merges request overrides onto the configured defaults
// and coerces the model to the provider's catalog, the same way the
// extension coerces on provider switch.
func (p *Pipeline) ResolveConfig(overrides models.TranslationConfig) (models.TranslationConfig, error) {
	cfg := p.cfg.TranslationDefaults()
	if cfg.TargetLang == "" {
		cfg.TargetLang = "ko"
	}
	if cfg.Provider == "" {
		cfg.Provider = models.ProviderOpenAI
	}

	if overrides.TargetLang != "" {
		cfg.TargetLang = overrides.TargetLang
	}
	if overrides.Tone != "" {
		cfg.Tone = overrides.Tone
	}
	if overrides.Provider != "" {
		cfg.Provider = overrides.Provider
	}
	if overrides.Model != "" {
		cfg.Model = overrides.Model
	}
	if len(overrides.Glossary) > 0 {
		cfg.Glossary = overrides.Glossary
	}

	if !cfg.Provider.Valid() {
		return cfg, models.NewValidationError("unknown provider: "+string(cfg.Provider), nil)
	}
	cfg.Model = providers.CoerceModel(cfg.Provider, cfg.Model)
	return cfg, nil
}

// Stream runs a full translation session: cached items first, then the
// uncached remainder batched and translated concurrently, each result
// emitted as it completes. Exactly one done message terminates the
// stream, including the missing-credential short circuit.
func (p *Pipeline) Stream(ctx context.Context, session *Session, items []models.TranslationItem, cfg models.TranslationConfig) {
	defer session.Finish()
	session.Start()

	providerCfg, appErr := p.providerConfig(cfg)
	if appErr != nil {
		session.EmitError(appErr.Message)
		return
	}

	pending := p.emitCached(ctx, session, items, cfg)
	if ctx.Err() != nil || len(pending) == 0 {
		return
	}

	batches := batch.Chunk(pending, p.cfg.Pipeline.CharBudget())
	jobs := make([]Job, len(batches))
	for i, b := range batches {
		jobs[i] = func(ctx context.Context) {
			p.runBatch(ctx, session, providerCfg, cfg, b)
		}
	}
	p.scheduler.Run(ctx, jobs)
}

// TranslateAll is the non-streaming path: it runs the same pipeline
// into an in-memory collector and returns everything at once. Any
// batch failure fails the whole call, matching the one-shot protocol.
func (p *Pipeline) TranslateAll(ctx context.Context, items []models.TranslationItem, cfg models.TranslationConfig) ([]models.TranslationResult, error) {
	if _, appErr := p.providerConfig(cfg); appErr != nil {
		return nil, appErr
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := &collector{}
	session := NewSession("batch", sink, cancel)
	p.Stream(runCtx, session, items, cfg)

	results, errMsg := sink.snapshot()
	if errMsg != "" {
		return results, models.NewProviderError(string(cfg.Provider), errMsg, nil)
	}
	return results, nil
}

// providerConfig resolves the provider's config and enforces the
// credential precondition.
func (p *Pipeline) providerConfig(cfg models.TranslationConfig) (models.ProviderConfig, *models.AppError) {
	providerCfg, _ := p.cfg.GetProviderConfig(cfg.Provider)
	if providerCfg.APIKey == "" {
		return providerCfg, models.NewAuthenticationError(
			"missing API key for provider " + string(cfg.Provider) + ": set it in the relay configuration")
	}
	return providerCfg, nil
}

// emitCached serves every cache hit immediately and returns the items
// that still need a provider call, in submission order.
func (p *Pipeline) emitCached(ctx context.Context, session *Session, items []models.TranslationItem, cfg models.TranslationConfig) []models.TranslationItem {
	var pending []models.TranslationItem
	for _, it := range items {
		if ctx.Err() != nil {
			return nil
		}

		key := cache.Fingerprint(it.Text, cfg)
		if translated, ok := p.store.Get(ctx, key); ok {
			session.EmitItem(models.TranslationResult{ID: it.ID, Text: translated, Cached: true})
			continue
		}
		if translated, ok := p.semantic.Get(ctx, it.Text, cfg); ok {
			// Promote the semantic hit so the exact store answers next time
			p.store.Put(ctx, key, translated)
			session.EmitItem(models.TranslationResult{ID: it.ID, Text: translated, Cached: true})
			continue
		}

		pending = append(pending, it)
	}
	return pending
}

// runBatch translates one batch and emits its results. Failures become
// a single error event; sibling batches are unaffected.
func (p *Pipeline) runBatch(ctx context.Context, session *Session, providerCfg models.ProviderConfig, cfg models.TranslationConfig, b models.Batch) {
	translations, err := p.callProvider(ctx, providerCfg, cfg, b)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		fiberlog.Warnf("[%s] batch of %d failed: %v", session.ID(), len(b), err)
		session.EmitError(models.SanitizeError(err).Message)
		return
	}

	byID := make(map[string]models.TranslationItem, len(b))
	for _, it := range b {
		byID[it.ID] = it
	}

	for _, tr := range translations {
		orig, ok := byID[tr.ID]
		if !ok {
			// Provider returned an id we never sent
			continue
		}
		out := glossary.Apply(tr.Text, cfg.Glossary)

		p.store.Put(ctx, cache.Fingerprint(orig.Text, cfg), out)
		p.semantic.Set(ctx, orig.Text, cfg, out)

		if ctx.Err() != nil {
			return
		}
		session.EmitItem(models.TranslationResult{ID: orig.ID, Text: out, Cached: false})
	}
}

// callProvider performs the adapter call, guarded by the provider's
// circuit breaker when one is configured.
func (p *Pipeline) callProvider(ctx context.Context, providerCfg models.ProviderConfig, cfg models.TranslationConfig, b models.Batch) ([]providers.Translation, error) {
	adapter, ok := p.registry.ForProvider(cfg.Provider)
	if !ok {
		return nil, models.NewValidationError("unknown provider: "+string(cfg.Provider), nil)
	}

	breaker := p.breakers[cfg.Provider]
	if breaker != nil && !breaker.CanExecute() {
		return nil, models.NewCircuitBreakerError(string(cfg.Provider))
	}

	translations, err := adapter.TranslateBatch(ctx, providerCfg, cfg, b)
	if breaker != nil {
		if err != nil {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
	}
	return translations, err
}

// collector is the MessageWriter behind TranslateAll.
type collector struct {
	mu    sync.Mutex
	items []models.TranslationResult
	err   string
}

var _ contracts.MessageWriter = (*collector)(nil)

func (c *collector) WriteMessage(msg models.StreamMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case models.StreamItem:
		c.items = append(c.items, models.TranslationResult{ID: msg.ID, Text: msg.Text, Cached: msg.Cached})
	case models.StreamError:
		if c.err == "" {
			c.err = msg.Error
		}
	}
	return nil
}

func (c *collector) Flush() error { return nil }
func (c *collector) Close() error { return nil }

func (c *collector) snapshot() ([]models.TranslationResult, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.err
}
