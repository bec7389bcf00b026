package batch

import (
	"strings"
	"testing"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

func TestChunkEmpty(t *testing.T) {
	if got := Chunk(nil, 1200); got != nil {
		t.Errorf("Chunk(nil) = %v, want nil", got)
	}
	if got := Chunk([]models.TranslationItem{}, 1200); got != nil {
		t.Errorf("Chunk(empty) = %v, want nil", got)
	}
}

func TestChunkSingleBatchUnderBudget(t *testing.T) {
	items := []models.TranslationItem{
		{ID: "1", Text: "hello"},
		{ID: "2", Text: "world"},
	}
	batches := Chunk(items, 1200)
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("batch size = %d, want 2", len(batches[0]))
	}
}

func TestChunkSplitsAtBudget(t *testing.T) {
	// Each item costs 10+8=18; budget 40 fits two per batch
	items := []models.TranslationItem{
		{ID: "1", Text: strings.Repeat("a", 10)},
		{ID: "2", Text: strings.Repeat("b", 10)},
		{ID: "3", Text: strings.Repeat("c", 10)},
		{ID: "4", Text: strings.Repeat("d", 10)},
		{ID: "5", Text: strings.Repeat("e", 10)},
	}
	batches := Chunk(items, 40)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	wantSizes := []int{2, 2, 1}
	for i, b := range batches {
		if len(b) != wantSizes[i] {
			t.Errorf("batch %d size = %d, want %d", i, len(b), wantSizes[i])
		}
	}
}

func TestChunkOversizedItemAlone(t *testing.T) {
	items := []models.TranslationItem{
		{ID: "1", Text: "short"},
		{ID: "2", Text: strings.Repeat("x", 5000)},
		{ID: "3", Text: "after"},
	}
	batches := Chunk(items, 100)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[1]) != 1 || batches[1][0].ID != "2" {
		t.Errorf("oversized item did not occupy its own batch: %+v", batches[1])
	}
}

func TestChunkPreservesOrder(t *testing.T) {
	items := []models.TranslationItem{
		{ID: "a", Text: strings.Repeat("1", 30)},
		{ID: "b", Text: strings.Repeat("2", 30)},
		{ID: "c", Text: strings.Repeat("3", 30)},
		{ID: "d", Text: strings.Repeat("4", 30)},
	}
	batches := Chunk(items, 80)

	var flattened []string
	for _, b := range batches {
		for _, it := range b {
			flattened = append(flattened, it.ID)
		}
	}
	want := []string{"a", "b", "c", "d"}
	if len(flattened) != len(want) {
		t.Fatalf("flattened %d items, want %d", len(flattened), len(want))
	}
	for i := range want {
		if flattened[i] != want[i] {
			t.Errorf("position %d = %s, want %s", i, flattened[i], want[i])
		}
	}
}
