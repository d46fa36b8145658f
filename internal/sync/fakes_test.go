package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
)

// fakeStore is an in-memory store whose watch streams are fed directly by the
// test. Mutations are recorded for assertion and applied to the note table so
// follow-up reads see them.
type fakeStore struct {
	mu       sync.Mutex
	table    map[notes.NoteID]notes.Note
	nextID   int
	ownedCh  chan store.Snapshot
	sharedCh chan store.Snapshot

	ownedErr  error
	sharedErr error
	saveErr   error

	saves []saveCall
	locks []lockCall

	lockGate chan struct{}
	saveGate chan struct{}
}

type saveCall struct {
	noteID   notes.NoteID
	revision store.ContentRevision
}

type lockCall struct {
	noteID notes.NoteID
	lock   notes.Lock
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		table:    map[notes.NoteID]notes.Note{},
		ownedCh:  make(chan store.Snapshot, 16),
		sharedCh: make(chan store.Snapshot, 16),
	}
}

func (f *fakeStore) put(note notes.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table[note.ID] = note
}

func (f *fakeStore) pushOwned(documents ...store.Document) {
	f.ownedCh <- store.Snapshot{Documents: documents}
}

func (f *fakeStore) pushShared(documents ...store.Document) {
	f.sharedCh <- store.Snapshot{Documents: documents}
}

func (f *fakeStore) saveCalls() []saveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]saveCall, len(f.saves))
	copy(calls, f.saves)
	return calls
}

func (f *fakeStore) lockCalls() []lockCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]lockCall, len(f.locks))
	copy(calls, f.locks)
	return calls
}

func (f *fakeStore) CreateNote(_ context.Context, draft notes.Draft) (notes.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	note := notes.Note{
		ID:         notes.NoteID(fmt.Sprintf("note-%d", f.nextID)),
		OwnerID:    draft.OwnerID,
		Title:      draft.Title,
		Content:    draft.Content,
		TitleAlign: draft.TitleAlign,
		CreatedAt:  1,
		UpdatedAt:  1,
	}
	f.table[note.ID] = note
	return note, nil
}

func (f *fakeStore) GetNote(_ context.Context, noteID notes.NoteID) (notes.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, found := f.table[noteID]
	if !found {
		return notes.Note{}, store.ErrNoteNotFound
	}
	return note, nil
}

func (f *fakeStore) SaveContent(_ context.Context, noteID notes.NoteID, revision store.ContentRevision) error {
	f.mu.Lock()
	gate := f.saveGate
	f.saves = append(f.saves, saveCall{noteID: noteID, revision: revision})
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	note, found := f.table[noteID]
	if !found {
		return store.ErrNoteNotFound
	}
	note.Title = revision.Title
	note.Content = revision.Content
	note.TitleAlign = revision.TitleAlign
	note.LockedBy = ""
	note.LockedByEmail = ""
	note.LockedAt = 0
	note.UpdatedAt++
	f.table[noteID] = note
	return nil
}

func (f *fakeStore) AcquireLock(_ context.Context, noteID notes.NoteID, lock notes.Lock) error {
	f.mu.Lock()
	gate := f.lockGate
	f.locks = append(f.locks, lockCall{noteID: noteID, lock: lock})
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	note, found := f.table[noteID]
	if !found {
		return store.ErrNoteNotFound
	}
	note.LockedBy = lock.HolderID
	note.LockedByEmail = lock.HolderEmail
	f.table[noteID] = note
	return nil
}

func (f *fakeStore) DeleteNote(_ context.Context, noteID notes.NoteID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.table, noteID)
	return nil
}

func (f *fakeStore) SetShareKey(_ context.Context, noteID notes.NoteID, key notes.ShareKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, found := f.table[noteID]
	if !found {
		return store.ErrNoteNotFound
	}
	if note.ShareKey != "" {
		return store.ErrShareKeyExists
	}
	note.ShareKey = key
	f.table[noteID] = note
	return nil
}

func (f *fakeStore) AddCollaborator(_ context.Context, noteID notes.NoteID, userID notes.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, found := f.table[noteID]
	if !found {
		return store.ErrNoteNotFound
	}
	if note.OwnerID == userID {
		return store.ErrCollaboratorIsOwner
	}
	if !note.HasCollaborator(userID) {
		note.Collaborators = append(note.Collaborators, userID)
		f.table[noteID] = note
	}
	return nil
}

func (f *fakeStore) RemoveCollaborator(_ context.Context, noteID notes.NoteID, userID notes.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, found := f.table[noteID]
	if !found {
		return store.ErrNoteNotFound
	}
	remaining := note.Collaborators[:0]
	for _, collaborator := range note.Collaborators {
		if collaborator != userID {
			remaining = append(remaining, collaborator)
		}
	}
	note.Collaborators = remaining
	f.table[noteID] = note
	return nil
}

func (f *fakeStore) FindByShareKey(_ context.Context, key notes.ShareKey) (notes.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, note := range f.table {
		if note.ShareKey == key {
			return note, nil
		}
	}
	return notes.Note{}, store.ErrNoteNotFound
}

func (f *fakeStore) WatchOwned(context.Context, notes.UserID) (<-chan store.Snapshot, store.CancelFunc, error) {
	if f.ownedErr != nil {
		return nil, nil, f.ownedErr
	}
	return f.ownedCh, func() {}, nil
}

func (f *fakeStore) WatchShared(context.Context, notes.UserID) (<-chan store.Snapshot, store.CancelFunc, error) {
	if f.sharedErr != nil {
		return nil, nil, f.sharedErr
	}
	return f.sharedCh, func() {}, nil
}

var _ store.Store = (*fakeStore)(nil)

// fakeEditor mirrors the display surface, recording the read-only banner,
// the status line, and empty-state transitions.
type fakeEditor struct {
	mu          sync.Mutex
	display     DisplayState
	readOnly    bool
	holderEmail string
	status      SaveStatus
	emptyShown  int
}

func (e *fakeEditor) Display() DisplayState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display
}

func (e *fakeEditor) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display.Title = title
}

func (e *fakeEditor) SetContent(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display.Content = content
}

func (e *fakeEditor) SetTitleAlign(align notes.TitleAlign) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display.TitleAlign = align
}

func (e *fakeEditor) SetReadOnly(readOnly bool, holderEmail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readOnly = readOnly
	e.holderEmail = holderEmail
}

func (e *fakeEditor) SetStatus(status SaveStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

func (e *fakeEditor) ShowEmpty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display = DisplayState{}
	e.emptyShown++
}

func (e *fakeEditor) snapshot() (DisplayState, bool, string, SaveStatus, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display, e.readOnly, e.holderEmail, e.status, e.emptyShown
}

var _ Editor = (*fakeEditor)(nil)

// waitFor polls until the condition holds or the deadline expires.
func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}
