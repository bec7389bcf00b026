// Package glossary applies user-defined term substitutions to provider
// output so terminology stays consistent across a page.
package glossary

import (
	"regexp"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

// Apply replaces every whole-word, case-sensitive occurrence of each
// glossary term in text with its configured replacement. Entries are
// applied in order; for glossaries whose source terms do not overlap the
// substitution is idempotent.
func Apply(text string, entries []models.GlossaryEntry) string {
	if len(entries) == 0 {
		return text
	}

	for _, g := range entries {
		if g.From == "" || g.To == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(g.From) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllLiteralString(text, g.To)
	}
	return text
}
