package sync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/scribehq/scribe/internal/store"
)

func TestNoteSourceMergesBothStreams(t *testing.T) {
	fake := newFakeStore()
	source, err := OpenNoteSource(context.Background(), fake, "user-1", nil)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer source.Close()

	var mu sync.Mutex
	var latest []store.Document
	source.OnChange(func(documents []store.Document) {
		mu.Lock()
		latest = documents
		mu.Unlock()
	})

	fake.pushOwned(document("mine", 10))
	fake.pushShared(document("theirs", 20))

	waitFor(t, "merged collection with both notes", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if latest[0].ID != "theirs" || latest[1].ID != "mine" {
		t.Fatalf("unexpected order: %v", documentIDs(latest))
	}
}

func TestNoteSourceDegradesWhenOneStreamUnavailable(t *testing.T) {
	fake := newFakeStore()
	fake.sharedErr = errors.New("index missing")
	source, err := OpenNoteSource(context.Background(), fake, "user-1", nil)
	if err != nil {
		t.Fatalf("expected degraded source, got error: %v", err)
	}
	defer source.Close()

	fake.pushOwned(document("mine", 10))
	waitFor(t, "owned notes despite shared stream failure", func() bool {
		return len(source.Snapshot()) == 1
	})
}

func TestNoteSourceFailsWhenBothStreamsUnavailable(t *testing.T) {
	fake := newFakeStore()
	fake.ownedErr = errors.New("owned down")
	fake.sharedErr = errors.New("shared down")
	if _, err := OpenNoteSource(context.Background(), fake, "user-1", nil); err == nil {
		t.Fatalf("expected error when no stream can be opened")
	}
}

func TestNoteSourceRemoveObserverStopsDelivery(t *testing.T) {
	fake := newFakeStore()
	source, err := OpenNoteSource(context.Background(), fake, "user-1", nil)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer source.Close()

	var mu sync.Mutex
	deliveries := 0
	remove := source.OnChange(func([]store.Document) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	})

	fake.pushOwned(document("mine", 10))
	waitFor(t, "first delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries == 1
	})

	remove()
	fake.pushOwned(document("mine", 11), document("other", 12))
	waitFor(t, "snapshot applied after removal", func() bool {
		return len(source.Snapshot()) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if deliveries != 1 {
		t.Fatalf("expected no deliveries after removal, got %d", deliveries)
	}
}
