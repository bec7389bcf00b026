package providers

import (
	"context"

	"github.com/fluxtranslate/flux-relay/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

type geminiAdapter struct {
	clients clientCache[*genai.Client]
}

func newGeminiAdapter() *geminiAdapter { return &geminiAdapter{} }

func (a *geminiAdapter) ID() models.ProviderID { return models.ProviderGemini }

func (a *geminiAdapter) TranslateBatch(
	ctx context.Context,
	providerCfg models.ProviderConfig,
	cfg models.TranslationConfig,
	batch models.Batch,
) ([]Translation, error) {
	client, err := a.client(providerCfg)
	if err != nil {
		return nil, err
	}

	payload, err := BuildUserPayload(batch)
	if err != nil {
		return nil, models.NewInternalError("failed to encode batch", err)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](providerTemperature),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(cfg), genai.RoleUser),
	}

	var content string
	call := func(ctx context.Context) error {
		resp, err := client.Models.GenerateContent(ctx, cfg.Model, genai.Text(payload), genCfg)
		if err != nil {
			return wrapGeminiError(models.ProviderGemini, err)
		}
		content = resp.Text()
		return nil
	}

	if policy, ok := retryPolicyFor(providerCfg, false); ok {
		err = policy.Do(ctx, "gemini", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	return ParseItems(content), nil
}

func (a *geminiAdapter) client(cfg models.ProviderConfig) (*genai.Client, error) {
	hash, err := configHash(cfg)
	if err != nil {
		fiberlog.Warnf("gemini: failed to hash provider config: %v, building uncached client", err)
		return a.buildClient(cfg)
	}

	return a.clients.getOrCreate(hash, func() (*genai.Client, error) {
		fiberlog.Debugf("gemini: creating SDK client (config hash: %s)", hash[:8])
		return a.buildClient(cfg)
	})
}

func (a *geminiAdapter) buildClient(cfg models.ProviderConfig) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, models.NewAuthenticationError("API key not configured for gemini")
	}

	// Client construction is independent of any single run, so it must
	// not inherit a per-request context.
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.NewProviderError("gemini", "failed to create client", err)
	}
	return client, nil
}
