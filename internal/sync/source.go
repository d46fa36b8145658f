package sync

import (
	"context"
	"errors"
	"sync"

	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
	"go.uber.org/zap"
)

var errNoSubscription = errors.New("sync: no watch subscription could be opened")

// NoteSource maintains the two live subscriptions (notes owned by the user,
// notes shared with the user) and exposes their merged, deduplicated,
// sorted union. A failed subscription degrades that half of the union to its
// last-known state rather than failing the whole view: the sidebar staying
// alive on stale data beats failing closed.
type NoteSource struct {
	logger *zap.Logger

	mu        sync.Mutex
	owned     []store.Document
	shared    []store.Document
	merged    []store.Document
	observers map[int64]func([]store.Document)
	nextID    int64
	cancels   []store.CancelFunc

	// notifyMu serializes observer deliveries so the final delivery always
	// carries the latest merged collection even when both subscriptions
	// update concurrently.
	notifyMu sync.Mutex
}

// OpenNoteSource starts both subscriptions for userID. It fails only when
// neither subscription could be opened.
func OpenNoteSource(ctx context.Context, st store.Store, userID notes.UserID, logger *zap.Logger) (*NoteSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	source := &NoteSource{
		logger:    logger,
		observers: make(map[int64]func([]store.Document)),
	}

	opened := 0
	ownedStream, cancelOwned, err := st.WatchOwned(ctx, userID)
	if err != nil {
		logger.Error("owned subscription unavailable", zap.String("user_id", userID.String()), zap.Error(err))
	} else {
		source.cancels = append(source.cancels, cancelOwned)
		go source.consume(ownedStream, source.applyOwned)
		opened++
	}

	sharedStream, cancelShared, err := st.WatchShared(ctx, userID)
	if err != nil {
		logger.Error("shared subscription unavailable", zap.String("user_id", userID.String()), zap.Error(err))
	} else {
		source.cancels = append(source.cancels, cancelShared)
		go source.consume(sharedStream, source.applyShared)
		opened++
	}

	if opened == 0 {
		return nil, errNoSubscription
	}
	return source, nil
}

// OnChange registers an observer invoked with the merged collection after
// every change. The returned function removes the registration.
func (s *NoteSource) OnChange(observer func([]store.Document)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers[id] = observer
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current merged collection.
func (s *NoteSource) Snapshot() []store.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merged
}

// Close cancels both subscriptions.
func (s *NoteSource) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (s *NoteSource) consume(stream <-chan store.Snapshot, apply func([]store.Document)) {
	for snapshot := range stream {
		apply(snapshot.Documents)
	}
}

func (s *NoteSource) applyOwned(documents []store.Document) {
	s.mu.Lock()
	s.owned = documents
	s.merged = mergeDocuments(s.owned, s.shared)
	s.mu.Unlock()
	s.notify()
}

func (s *NoteSource) applyShared(documents []store.Document) {
	s.mu.Lock()
	s.shared = documents
	s.merged = mergeDocuments(s.owned, s.shared)
	s.mu.Unlock()
	s.notify()
}

// notify delivers the merged collection to every observer. The collection is
// re-read under the source lock at delivery time, so a delivery racing a
// newer merge carries the newer result; observers run outside the source
// lock and may call back into Snapshot or OnChange.
func (s *NoteSource) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	merged := s.merged
	observers := make([]func([]store.Document), 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.mu.Unlock()

	for _, observer := range observers {
		observer(merged)
	}
}
