// Package store defines the document-store contract the sync engine runs
// against, plus a SQLite-backed implementation whose live watch queries
// emulate optimistic local echo: every mutation is delivered back to the
// originating client flagged as a pending write before the acknowledged
// snapshot reaches all watchers.
package store

import (
	"context"
	"errors"

	"github.com/scribehq/scribe/internal/notes"
)

var (
	// ErrNoteNotFound indicates the note does not exist (or no note carries
	// the queried share key).
	ErrNoteNotFound = errors.New("store: note not found")
	// ErrShareKeyExists indicates the note already carries a different share
	// key. Share keys are stable for the note's lifetime.
	ErrShareKeyExists = errors.New("store: share key already set")
	// ErrCollaboratorIsOwner indicates an attempt to add the note's owner to
	// its own collaborator set.
	ErrCollaboratorIsOwner = errors.New("store: owner cannot be a collaborator")
)

// Document is a note as reported by a live subscription. HasPendingWrites is
// true while the client's own write has not yet been acknowledged; the
// reconciler uses it to suppress echoes of in-flight local edits.
type Document struct {
	notes.Note
	HasPendingWrites bool
}

// Snapshot is one full delivery of a watch query's current result set.
// Result sets are always rebuilt in full, never patched incrementally.
type Snapshot struct {
	Documents []Document
}

// CancelFunc tears down a watch subscription and closes its channel.
type CancelFunc func()

// ContentRevision is the single field-update write issued by the save
// pipeline: title, content, and alignment together. The store bumps the
// note's UpdatedAt and unconditionally clears the edit lock.
type ContentRevision struct {
	Title      string
	Content    string
	TitleAlign notes.TitleAlign
}

// Store is one client's handle onto the hosted document collection. Two
// handles with different client identities behave like two browser tabs:
// their watches report pending writes independently and their lock writes
// race last-write-wins.
type Store interface {
	// CreateNote persists a draft and returns the stored note with its
	// assigned identifier and timestamps.
	CreateNote(ctx context.Context, draft notes.Draft) (notes.Note, error)

	// GetNote returns the current state of a single note.
	GetNote(ctx context.Context, noteID notes.NoteID) (notes.Note, error)

	// SaveContent applies a content revision, bumps UpdatedAt, and releases
	// the edit lock regardless of holder.
	SaveContent(ctx context.Context, noteID notes.NoteID, revision ContentRevision) error

	// AcquireLock writes the lock fields for holder. Last write wins; two
	// racing clients can both believe they hold the lock.
	AcquireLock(ctx context.Context, noteID notes.NoteID, holder notes.Lock) error

	// DeleteNote removes the note and its collaborator memberships.
	DeleteNote(ctx context.Context, noteID notes.NoteID) error

	// SetShareKey assigns the note's share key. Fails with ErrShareKeyExists
	// if a different key is already present.
	SetShareKey(ctx context.Context, noteID notes.NoteID, key notes.ShareKey) error

	// AddCollaborator grants userID access. Idempotent; rejects the owner.
	AddCollaborator(ctx context.Context, noteID notes.NoteID, userID notes.UserID) error

	// RemoveCollaborator revokes userID's access. Removing a non-member is
	// not an error.
	RemoveCollaborator(ctx context.Context, noteID notes.NoteID, userID notes.UserID) error

	// FindByShareKey is a one-shot exact-match lookup.
	FindByShareKey(ctx context.Context, key notes.ShareKey) (notes.Note, error)

	// WatchOwned subscribes to notes owned by userID. The current result set
	// is delivered immediately, then again after every relevant change.
	WatchOwned(ctx context.Context, userID notes.UserID) (<-chan Snapshot, CancelFunc, error)

	// WatchShared subscribes to notes whose collaborator set contains userID.
	WatchShared(ctx context.Context, userID notes.UserID) (<-chan Snapshot, CancelFunc, error)
}
