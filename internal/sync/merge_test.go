package sync

import (
	"reflect"
	"testing"

	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
)

func document(id string, updatedAt int64) store.Document {
	return store.Document{Note: notes.Note{ID: notes.NoteID(id), UpdatedAt: updatedAt}}
}

func documentIDs(documents []store.Document) []string {
	ids := make([]string, 0, len(documents))
	for _, current := range documents {
		ids = append(ids, current.ID.String())
	}
	return ids
}

func TestMergeDocumentsOrdersNewestFirst(t *testing.T) {
	merged := mergeDocuments(
		[]store.Document{document("alpha", 10), document("beta", 30)},
		[]store.Document{document("gamma", 20)},
	)
	expected := []string{"beta", "gamma", "alpha"}
	got := documentIDs(merged)
	if len(got) != len(expected) {
		t.Fatalf("expected %d documents got %d", len(expected), len(got))
	}
	for index := range expected {
		if got[index] != expected[index] {
			t.Fatalf("position %d: expected %s got %s", index, expected[index], got[index])
		}
	}
}

func TestMergeDocumentsLaterStreamWinsOnDuplicateID(t *testing.T) {
	owned := document("alpha", 10)
	owned.Title = "stale"
	shared := document("alpha", 40)
	shared.Title = "fresh"

	merged := mergeDocuments([]store.Document{owned}, []store.Document{shared})
	if len(merged) != 1 {
		t.Fatalf("expected single document got %d", len(merged))
	}
	if merged[0].Title != "fresh" {
		t.Fatalf("expected shared copy to win, got title %q", merged[0].Title)
	}
}

func TestMergeDocumentsIsIdempotent(t *testing.T) {
	owned := []store.Document{document("alpha", 10), document("beta", 30)}
	shared := []store.Document{document("alpha", 40), document("gamma", 20)}

	first := mergeDocuments(owned, shared)
	second := mergeDocuments(owned, shared)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical collections, got %v then %v", documentIDs(first), documentIDs(second))
	}
}

func TestMergeDocumentsZeroTimestampSortsLast(t *testing.T) {
	merged := mergeDocuments(
		[]store.Document{document("unsaved", 0), document("old", 5)},
		[]store.Document{document("new", 50)},
	)
	got := documentIDs(merged)
	if got[len(got)-1] != "unsaved" {
		t.Fatalf("expected zero-timestamp document last, got order %v", got)
	}
	if got[0] != "new" {
		t.Fatalf("expected newest document first, got order %v", got)
	}
}

func TestFindDocument(t *testing.T) {
	documents := []store.Document{document("alpha", 1), document("beta", 2)}
	found, ok := findDocument(documents, "beta")
	if !ok {
		t.Fatalf("expected to find beta")
	}
	if found.ID != "beta" {
		t.Fatalf("expected beta got %s", found.ID)
	}
	if _, ok := findDocument(documents, "missing"); ok {
		t.Fatalf("expected missing id to be reported absent")
	}
}
