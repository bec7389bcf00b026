package providers

import (
	"context"
	"errors"

	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/retry"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go/v2"
	"google.golang.org/genai"
)

// wrapOpenAIError converts an openai-go SDK failure (also used for Groq's
// OpenAI-compatible endpoint) into an AppError carrying the upstream
// status, raw body, and any server-suggested retry wait.
func wrapOpenAIError(provider models.ProviderID, err error) *models.AppError {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		body := apierr.RawJSON()
		appErr := models.NewProviderHTTPError(provider, apierr.StatusCode, body)
		retryAfter := ""
		if apierr.Response != nil {
			retryAfter = apierr.Response.Header.Get("Retry-After")
		}
		appErr.RetryAfter = retry.ServerWait(retryAfter, body)
		appErr.Cause = err
		return appErr
	}
	return wrapTransportError(provider, err)
}

// wrapAnthropicError converts an anthropic-sdk-go failure.
func wrapAnthropicError(provider models.ProviderID, err error) *models.AppError {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		body := apierr.RawJSON()
		appErr := models.NewProviderHTTPError(provider, apierr.StatusCode, body)
		retryAfter := ""
		if apierr.Response != nil {
			retryAfter = apierr.Response.Header.Get("Retry-After")
		}
		appErr.RetryAfter = retry.ServerWait(retryAfter, body)
		appErr.Cause = err
		return appErr
	}
	return wrapTransportError(provider, err)
}

// wrapGeminiError converts a genai SDK failure. The genai error exposes
// the HTTP code but no response headers, so the wait hint comes from the
// message body only.
func wrapGeminiError(provider models.ProviderID, err error) *models.AppError {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		appErr := models.NewProviderHTTPError(provider, apierr.Code, apierr.Message)
		appErr.RetryAfter = retry.ServerWait("", apierr.Message)
		appErr.Cause = err
		return appErr
	}
	return wrapTransportError(provider, err)
}

func wrapTransportError(provider models.ProviderID, err error) *models.AppError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError(string(provider)+" call", err)
	}
	return models.NewProviderError(string(provider), "request failed", err)
}
