package models

// ProviderID identifies one of the built-in translation providers.
// The set is closed: adapters are selected by switching on this value,
// never by dynamic lookup on arbitrary strings.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
	ProviderGroq      ProviderID = "groq"
)

// AllProviders returns the built-in provider ids in display order.
func AllProviders() []ProviderID {
	return []ProviderID{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq}
}

// Valid reports whether the id names a built-in provider.
func (p ProviderID) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq:
		return true
	}
	return false
}

// GlossaryEntry is a user-defined term substitution applied to provider
// output for terminology consistency.
type GlossaryEntry struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// TranslationItem is one page fragment submitted for translation. The ID
// is caller-assigned and unique within a submission; Text is never mutated.
type TranslationItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TranslationConfig is the configuration for a single translation run.
// It is immutable for the duration of the run; changing settings requires
// starting a new run.
type TranslationConfig struct {
	TargetLang string          `json:"target_lang"`
	Tone       string          `json:"tone"`
	Provider   ProviderID      `json:"provider"`
	Model      string          `json:"model"`
	Glossary   []GlossaryEntry `json:"glossary,omitzero"`
}

// TranslationResult is one translated fragment delivered back to the
// caller. Cached marks results served from the fingerprint cache without
// a provider call. The wire name "t" matches the extension protocol.
type TranslationResult struct {
	ID     string `json:"id"`
	Text   string `json:"t"`
	Cached bool   `json:"cached"`
}

// Batch is an ordered group of fragments sent together in one provider
// call. Batches are created by the batcher and consumed exactly once.
type Batch []TranslationItem

// CharSize returns the batch's size estimate under the batching budget.
func (b Batch) CharSize(overhead int) int {
	total := 0
	for _, it := range b {
		total += len(it.Text) + overhead
	}
	return total
}

// StreamMessageType discriminates messages on a translation stream.
type StreamMessageType string

const (
	StreamItem  StreamMessageType = "item"
	StreamError StreamMessageType = "error"
	StreamDone  StreamMessageType = "done"
)

// StreamMessage is one frame on a streaming translation session. Exactly
// one "done" frame terminates a session; "error" frames mid-run do not.
type StreamMessage struct {
	Type   StreamMessageType `json:"type"`
	ID     string            `json:"id,omitzero"`
	Text   string            `json:"t,omitzero"`
	Cached bool              `json:"cached"`
	Error  string            `json:"error,omitzero"`
}
