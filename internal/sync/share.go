package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
)

// ConnectOutcome reports how a connect-by-key attempt resolved.
type ConnectOutcome string

const (
	OutcomeCreated       ConnectOutcome = "created"
	OutcomeJoined        ConnectOutcome = "joined"
	OutcomeAlreadyOwner  ConnectOutcome = "already_owner"
	OutcomeAlreadyMember ConnectOutcome = "already_member"
)

// ErrShareKeyNotFound indicates no note carries the presented key.
var ErrShareKeyNotFound = errors.New("sync: no note found for that key")

// ShareKeyFor returns the note's share key, generating and persisting one on
// first use. Once stored the key never changes, so a lost race against a
// concurrent caller just reads back whichever key landed first.
func (s *Session) ShareKeyFor(ctx context.Context, noteID notes.NoteID) (notes.ShareKey, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return "", fmt.Errorf("sync: share key: %w", err)
	}
	if note.ShareKey != "" {
		return note.ShareKey, nil
	}

	key, err := notes.GenerateShareKey()
	if err != nil {
		return "", fmt.Errorf("sync: share key: %w", err)
	}
	if err := s.store.SetShareKey(ctx, noteID, key); err != nil {
		if errors.Is(err, store.ErrShareKeyExists) {
			persisted, getErr := s.store.GetNote(ctx, noteID)
			if getErr != nil {
				return "", fmt.Errorf("sync: share key: %w", getErr)
			}
			return persisted.ShareKey, nil
		}
		s.logError("sync.share", "set_key_failed", err, noteID)
		return "", fmt.Errorf("sync: share key: %w", err)
	}
	return key, nil
}

// ConnectByKey joins the note behind a share key. Presenting the key of a
// note the user already owns, or is already a collaborator on, is a no-op
// reported through the outcome.
func (s *Session) ConnectByKey(ctx context.Context, raw string) (notes.Note, ConnectOutcome, error) {
	if s.isClosed() {
		return notes.Note{}, "", ErrSessionClosed
	}
	key, err := notes.ParseShareKey(raw)
	if err != nil {
		return notes.Note{}, "", fmt.Errorf("sync: connect: %w", err)
	}
	note, err := s.store.FindByShareKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			return notes.Note{}, "", fmt.Errorf("%w: %s", ErrShareKeyNotFound, key)
		}
		s.logError("sync.connect", "lookup_failed", err, "")
		return notes.Note{}, "", fmt.Errorf("sync: connect: %w", err)
	}

	userID := notes.UserID(s.user.UID)
	if note.OwnerID == userID {
		return note, OutcomeAlreadyOwner, nil
	}
	if note.HasCollaborator(userID) {
		return note, OutcomeAlreadyMember, nil
	}
	if err := s.store.AddCollaborator(ctx, note.ID, userID); err != nil {
		s.logError("sync.connect", "add_collaborator_failed", err, note.ID)
		return notes.Note{}, "", fmt.Errorf("sync: connect: %w", err)
	}
	return note, OutcomeJoined, nil
}

// LeaveNote drops the session user from a shared note's collaborator list.
// Leaving the open note falls back to the empty state.
func (s *Session) LeaveNote(ctx context.Context, noteID notes.NoteID) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.store.RemoveCollaborator(ctx, noteID, notes.UserID(s.user.UID)); err != nil {
		s.logError("sync.leave", "remove_collaborator_failed", err, noteID)
		return fmt.Errorf("sync: leave note: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.activeNoteID == noteID {
		s.clearEditorStateLocked()
		s.editor.ShowEmpty()
	}
	return nil
}
