package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/models"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicOption "github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const anthropicMaxTokens = 4096

type anthropicAdapter struct {
	clients clientCache[*anthropic.Client]
}

func newAnthropicAdapter() *anthropicAdapter { return &anthropicAdapter{} }

func (a *anthropicAdapter) ID() models.ProviderID { return models.ProviderAnthropic }

func (a *anthropicAdapter) TranslateBatch(
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

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(providerTemperature),
		System: []anthropic.TextBlockParam{
			{Text: BuildSystemPrompt(cfg)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(payload)),
		},
	}

	var content string
	call := func(ctx context.Context) error {
		message, err := client.Messages.New(ctx, params)
		if err != nil {
			return wrapAnthropicError(models.ProviderAnthropic, err)
		}
		for _, block := range message.Content {
			if block.Type == "text" {
				content += block.Text
			}
		}
		return nil
	}

	if policy, ok := retryPolicyFor(providerCfg, false); ok {
		err = policy.Do(ctx, "anthropic", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	return ParseItems(content), nil
}

func (a *anthropicAdapter) client(cfg models.ProviderConfig) (*anthropic.Client, error) {
	hash, err := configHash(cfg)
	if err != nil {
		fiberlog.Warnf("anthropic: failed to hash provider config: %v, building uncached client", err)
		return a.buildClient(cfg)
	}

	return a.clients.getOrCreate(hash, func() (*anthropic.Client, error) {
		fiberlog.Debugf("anthropic: creating SDK client (config hash: %s)", hash[:8])
		return a.buildClient(cfg)
	})
}

func (a *anthropicAdapter) buildClient(cfg models.ProviderConfig) (*anthropic.Client, error) {
	if cfg.APIKey == "" {
		return nil, models.NewAuthenticationError("API key not configured for anthropic")
	}

	opts := []anthropicOption.RequestOption{
		anthropicOption.WithAPIKey(cfg.APIKey),
		anthropicOption.WithMaxRetries(0),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, anthropicOption.WithBaseURL(cfg.BaseURL))
	}

	for key, value := range cfg.Headers {
		opts = append(opts, anthropicOption.WithHeader(key, value))
	}

	if cfg.TimeoutMs > 0 {
		httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond}
		opts = append(opts, anthropicOption.WithHTTPClient(httpClient))
	}

	client := anthropic.NewClient(opts...)
	return &client, nil
}
