package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

// wireItem is the per-fragment shape exchanged with the provider. The
// response uses "t" for the translation to keep batches token-cheap.
type wireItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type wireResult struct {
	ID   string `json:"id"`
	Text string `json:"t"`
}

type wireResponse struct {
	Items []wireResult `json:"items"`
}

type wirePayload struct {
	Instruction string     `json:"instruction"`
	Items       []wireItem `json:"items"`
}

// BuildSystemPrompt assembles the shared system instruction: target
// language, tone, output contract, and the glossary as explicit
// "from" -> "to" pairs for consistent substitution.
func BuildSystemPrompt(cfg models.TranslationConfig) string {
	lines := []string{
		`You are a world-class translator specialized in highly accurate, natural translations.`,
		`Output ONLY strict JSON per instructions.`,
		fmt.Sprintf(`Target language: %s.`, cfg.TargetLang),
		fmt.Sprintf(`Tone/style: %s.`, cfg.Tone),
		`Preserve meaning, nuance, proper nouns, numbers, and inline conventions.`,
		`Do not add explanations. Keep formatting suitable for UI text.`,
		`Return a JSON object: {"items": [{"id":"<id>", "t":"<translation>"}, ...]}.`,
		`Ensure the number and order of items matches the input.`,
	}
	if len(cfg.Glossary) > 0 {
		var g strings.Builder
		g.WriteString("\nGlossary mapping (apply consistently):")
		for _, e := range cfg.Glossary {
			fmt.Fprintf(&g, "\n- %q -> %q", e.From, e.To)
		}
		lines = append(lines, g.String())
	}
	return strings.Join(lines, "\n")
}

// BuildUserPayload serializes the batch as the structured user message.
func BuildUserPayload(batch models.Batch) (string, error) {
	payload := wirePayload{
		Instruction: "Translate each input text to the target language and tone. Return strict JSON.",
		Items:       make([]wireItem, 0, len(batch)),
	}
	for _, it := range batch {
		payload.Items = append(payload.Items, wireItem{ID: it.ID, Text: it.Text})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch payload: %w", err)
	}
	return string(data), nil
}

// ParseItems extracts translated items from a provider's response text.
// It attempts a strict JSON parse first, then the substring between the
// first '{' and the last '}', and finally degrades to an empty item list.
// Malformed provider output costs a batch its translations, never the
// whole run.
func ParseItems(text string) []Translation {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err == nil {
		return toTranslations(resp)
	}

	first := strings.Index(trimmed, "{")
	last := strings.LastIndex(trimmed, "}")
	if first != -1 && last > first {
		if err := json.Unmarshal([]byte(trimmed[first:last+1]), &resp); err == nil {
			return toTranslations(resp)
		}
	}

	return nil
}

func toTranslations(resp wireResponse) []Translation {
	out := make([]Translation, 0, len(resp.Items))
	for _, r := range resp.Items {
		out = append(out, Translation{ID: r.ID, Text: r.Text})
	}
	return out
}
