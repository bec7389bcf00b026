// Package batch groups pending fragments into provider-call-sized
// batches under a character budget.
package batch

import (
	"github.com/fluxtranslate/flux-relay/internal/models"
)

// Chunk walks items in input order and greedily packs them into batches
// whose size estimate (text length plus a fixed per-item overhead) stays
// within charBudget. A single item larger than the whole budget still
// occupies its own batch; no item is ever dropped. Concatenating the
// returned batches reproduces the input sequence exactly.
func Chunk(items []models.TranslationItem, charBudget int) []models.Batch {
	if len(items) == 0 {
		return nil
	}

	var batches []models.Batch
	var current models.Batch
	size := 0

	for _, it := range items {
		cost := len(it.Text) + models.BatchItemOverhead
		if len(current) > 0 && size+cost > charBudget {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, it)
		size += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}
