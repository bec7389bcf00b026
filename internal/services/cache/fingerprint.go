package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

// Fingerprint derives the deterministic cache key for one fragment under
// a given translation configuration. The configuration is part of the
// key, so entries can never be served stale across a settings change.
func Fingerprint(text string, cfg models.TranslationConfig) string {
	joined := strings.Join([]string{
		text,
		cfg.TargetLang,
		cfg.Tone,
		string(cfg.Provider),
		cfg.Model,
	}, "|")

	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%x", sum[:16])
}
