package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/retry"

	fiberlog "github.com/gofiber/fiber/v2/log"
	openai "github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// providerTemperature keeps translations deterministic-ish across runs.
const providerTemperature = 0.2

const groqBaseURL = "https://api.groq.com/openai/v1"

// openAICompatAdapter serves both OpenAI itself and Groq's
// OpenAI-compatible endpoint; the two differ only in base URL and
// default retry behavior. Groq rate-limits aggressively, so it retries
// by default; OpenAI historically failed fast unless the operator opts
// in via per-provider retry config.
type openAICompatAdapter struct {
	id             models.ProviderID
	defaultBaseURL string
	retryByDefault bool
	clients        clientCache[*openai.Client]
}

func newOpenAIAdapter() *openAICompatAdapter {
	return &openAICompatAdapter{id: models.ProviderOpenAI}
}

func newGroqAdapter() *openAICompatAdapter {
	return &openAICompatAdapter{
		id:             models.ProviderGroq,
		defaultBaseURL: groqBaseURL,
		retryByDefault: true,
	}
}

func (a *openAICompatAdapter) ID() models.ProviderID { return a.id }

func (a *openAICompatAdapter) TranslateBatch(
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

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(cfg.Model),
		Temperature: openai.Float(providerTemperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(BuildSystemPrompt(cfg)),
			openai.UserMessage(payload),
		},
	}

	var content string
	call := func(ctx context.Context) error {
		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return wrapOpenAIError(a.id, err)
		}
		if len(resp.Choices) > 0 {
			content = resp.Choices[0].Message.Content
		}
		return nil
	}

	if policy, ok := retryPolicyFor(providerCfg, a.retryByDefault); ok {
		err = policy.Do(ctx, string(a.id), call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	return ParseItems(content), nil
}

func (a *openAICompatAdapter) client(cfg models.ProviderConfig) (*openai.Client, error) {
	hash, err := configHash(cfg)
	if err != nil {
		fiberlog.Warnf("%s: failed to hash provider config: %v, building uncached client", a.id, err)
		return a.buildClient(cfg)
	}

	return a.clients.getOrCreate(fmt.Sprintf("%s:%s", a.id, hash), func() (*openai.Client, error) {
		fiberlog.Debugf("%s: creating SDK client (config hash: %s)", a.id, hash[:8])
		return a.buildClient(cfg)
	})
}

func (a *openAICompatAdapter) buildClient(cfg models.ProviderConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, models.NewAuthenticationError(fmt.Sprintf("API key not configured for %s", a.id))
	}

	// SDK retries stay off: the relay's own policy owns backoff.
	opts := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(cfg.APIKey),
		openaiOption.WithMaxRetries(0),
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = a.defaultBaseURL
	}
	if baseURL != "" {
		opts = append(opts, openaiOption.WithBaseURL(baseURL))
	}

	for key, value := range cfg.Headers {
		opts = append(opts, openaiOption.WithHeader(key, value))
	}

	if cfg.TimeoutMs > 0 {
		httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond}
		opts = append(opts, openaiOption.WithHTTPClient(httpClient))
	}

	client := openai.NewClient(opts...)
	return &client, nil
}

// retryPolicyFor resolves the retry behavior for one provider call:
// explicit per-provider config wins, then the adapter's default.
func retryPolicyFor(cfg models.ProviderConfig, retryByDefault bool) (retry.Policy, bool) {
	if cfg.Retry != nil {
		return retry.NewPolicy(cfg.Retry), true
	}
	if retryByDefault {
		return retry.NewPolicy(nil), true
	}
	return retry.Policy{}, false
}
