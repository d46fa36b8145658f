package sync

import (
	"sort"

	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
)

// mergeDocuments computes the deduplicated union of the owned and shared
// subscription results, keyed by note id with the later occurrence winning,
// sorted by UpdatedAt descending. A missing timestamp sorts as earliest.
// The result is rebuilt in full on every call, never patched.
func mergeDocuments(owned, shared []store.Document) []store.Document {
	order := make([]notes.NoteID, 0, len(owned)+len(shared))
	unique := make(map[notes.NoteID]store.Document, len(owned)+len(shared))
	for _, document := range owned {
		if _, seen := unique[document.ID]; !seen {
			order = append(order, document.ID)
		}
		unique[document.ID] = document
	}
	for _, document := range shared {
		if _, seen := unique[document.ID]; !seen {
			order = append(order, document.ID)
		}
		unique[document.ID] = document
	}

	merged := make([]store.Document, 0, len(order))
	for _, id := range order {
		merged = append(merged, unique[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].UpdatedAt > merged[j].UpdatedAt
	})
	return merged
}

func findDocument(documents []store.Document, noteID notes.NoteID) (store.Document, bool) {
	for _, document := range documents {
		if document.ID == noteID {
			return document, true
		}
	}
	return store.Document{}, false
}
