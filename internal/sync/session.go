package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/scribehq/scribe/internal/auth"
	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
	"go.uber.org/zap"
)

const defaultDebounceInterval = 2 * time.Second

var (
	// ErrSessionClosed indicates an operation on a torn-down session.
	ErrSessionClosed = errors.New("sync: session closed")
	// ErrNoteNotInView indicates the note id is absent from the merged
	// collection (deleted, unshared, or never visible to this user).
	ErrNoteNotInView = errors.New("sync: note not in view")
	// ErrNotOwner indicates a destructive operation attempted by a
	// non-owner.
	ErrNotOwner = errors.New("sync: only the owner may do that")

	errMissingStore  = errors.New("store handle is required")
	errMissingEditor = errors.New("editor surface is required")
	errMissingUser   = errors.New("signed-in user is required")
)

// SessionConfig describes the dependencies of one client's sync session.
type SessionConfig struct {
	Store store.Store
	User  auth.User
	// Editor is the surface the session drives. All calls are serialized.
	Editor Editor
	Logger *zap.Logger
	Clock  func() time.Time
	// DebounceInterval is how long typing must pause before a save fires.
	// Zero selects the 2-second default.
	DebounceInterval time.Duration
}

// Session is one signed-in client's sync state: the merged note view, the
// active note, the save pipeline's shadow copy of what is durably persisted,
// and the single-slot lock-acquisition guard. Its lifecycle is bound to
// sign-in and sign-out: open on sign-in, Close on sign-out.
type Session struct {
	store  store.Store
	user   auth.User
	editor Editor
	logger *zap.Logger
	clock  func() time.Time

	source         *NoteSource
	removeObserver func()
	cancelWatches  context.CancelFunc

	mu           sync.Mutex
	closed       bool
	view         []store.Document
	activeNoteID notes.NoteID
	saver        savePipeline
	lockInFlight bool
}

// OpenSession starts the subscriptions for cfg.User and returns a live
// session. The provided context bounds the watch subscriptions; Close also
// tears them down.
func OpenSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("sync: open session: %w", errMissingStore)
	}
	if cfg.Editor == nil {
		return nil, fmt.Errorf("sync: open session: %w", errMissingEditor)
	}
	if strings.TrimSpace(cfg.User.UID) == "" {
		return nil, fmt.Errorf("sync: open session: %w", errMissingUser)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := cfg.DebounceInterval
	if interval <= 0 {
		interval = defaultDebounceInterval
	}

	watchCtx, cancelWatches := context.WithCancel(ctx)
	source, err := OpenNoteSource(watchCtx, cfg.Store, notes.UserID(cfg.User.UID), logger)
	if err != nil {
		cancelWatches()
		return nil, err
	}

	session := &Session{
		store:         cfg.Store,
		user:          cfg.User,
		editor:        cfg.Editor,
		logger:        logger,
		clock:         clock,
		source:        source,
		cancelWatches: cancelWatches,
		saver:         savePipeline{interval: interval},
	}
	session.removeObserver = source.OnChange(session.handleSnapshot)
	session.handleSnapshot(source.Snapshot())
	return session, nil
}

// Close tears the session down: subscriptions cancelled, pending debounce
// dropped, editor state cleared. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.clearEditorStateLocked()
	s.view = nil
	s.mu.Unlock()

	if s.removeObserver != nil {
		s.removeObserver()
	}
	s.cancelWatches()
	s.source.Close()
}

// User returns the signed-in identity the session was opened for.
func (s *Session) User() auth.User {
	return s.user
}

// Notes returns the current merged collection, newest first.
func (s *Session) Notes() []store.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := make([]store.Document, len(s.view))
	copy(view, s.view)
	return view
}

// ActiveNoteID returns the open note's id, or empty when none is open.
func (s *Session) ActiveNoteID() notes.NoteID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeNoteID
}

// SelectNote opens a note from the merged view, loading its content into the
// editor and seeding the save pipeline's shadow copy so the debounce does not
// immediately re-save what was just loaded.
func (s *Session) SelectNote(noteID notes.NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	document, found := findDocument(s.view, noteID)
	if !found {
		return fmt.Errorf("%w: %s", ErrNoteNotInView, noteID)
	}

	s.dropPendingSaveLocked()
	s.activeNoteID = noteID

	align := document.TitleAlign
	if align == "" {
		align = notes.AlignLeft
	}
	s.editor.SetTitle(document.Title)
	s.editor.SetContent(document.Content)
	s.editor.SetTitleAlign(align)
	s.editor.SetReadOnly(document.LockedByOther(notes.UserID(s.user.UID)), document.LockedByEmail)
	s.editor.SetStatus(SaveStatusNone)

	s.saver.lastSaved = savedState{
		noteID: noteID,
		state:  DisplayState{Title: document.Title, Content: document.Content, TitleAlign: align},
		valid:  true,
	}
	return nil
}

// CloseNote transitions to the empty state, clearing local editor state.
func (s *Session) CloseNote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.clearEditorStateLocked()
	s.editor.ShowEmpty()
}

// CreateNote persists a new note owned by the session user and opens it.
// A blank title falls back to the default. No further write is triggered
// until the content actually changes.
func (s *Session) CreateNote(ctx context.Context, title string) (notes.Note, error) {
	if s.isClosed() {
		return notes.Note{}, ErrSessionClosed
	}
	finalTitle := strings.TrimSpace(title)
	if finalTitle == "" {
		finalTitle = notes.DefaultTitle
	}
	created, err := s.store.CreateNote(ctx, notes.Draft{
		OwnerID:    notes.UserID(s.user.UID),
		Title:      finalTitle,
		Content:    "",
		TitleAlign: notes.AlignLeft,
	})
	if err != nil {
		s.logError("sync.create_note", "create_failed", err, "")
		return notes.Note{}, fmt.Errorf("sync: create note: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return created, nil
	}
	s.dropPendingSaveLocked()
	s.activeNoteID = created.ID
	s.editor.SetTitle(created.Title)
	s.editor.SetContent("")
	s.editor.SetTitleAlign(notes.AlignLeft)
	s.editor.SetReadOnly(false, "")
	s.editor.SetStatus(SaveStatusNone)
	s.saver.lastSaved = savedState{
		noteID: created.ID,
		state:  DisplayState{Title: created.Title, Content: "", TitleAlign: notes.AlignLeft},
		valid:  true,
	}
	return created, nil
}

// CreateOrConnect routes the create dialog's single input field: input shaped
// like a share key joins the note behind it, anything else becomes the title
// of a new note.
func (s *Session) CreateOrConnect(ctx context.Context, input string) (notes.Note, ConnectOutcome, error) {
	trimmed := strings.TrimSpace(input)
	if notes.LooksLikeShareKey(trimmed) {
		return s.ConnectByKey(ctx, trimmed)
	}
	note, err := s.CreateNote(ctx, trimmed)
	if err != nil {
		return notes.Note{}, "", err
	}
	return note, OutcomeCreated, nil
}

// DeleteNote removes an owned note. Deleting the open note falls back to the
// empty state immediately rather than waiting for the next snapshot.
func (s *Session) DeleteNote(ctx context.Context, noteID notes.NoteID) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if document, found := findDocument(s.view, noteID); found {
		if document.OwnerID != notes.UserID(s.user.UID) {
			s.mu.Unlock()
			return fmt.Errorf("%w: note %s", ErrNotOwner, noteID)
		}
	}
	s.mu.Unlock()

	if err := s.store.DeleteNote(ctx, noteID); err != nil {
		s.logError("sync.delete_note", "delete_failed", err, noteID)
		return fmt.Errorf("sync: delete note: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.activeNoteID == noteID {
		s.clearEditorStateLocked()
		s.editor.ShowEmpty()
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// clearEditorStateLocked resets the per-note client state: active note,
// shadow copy, pending debounce.
func (s *Session) clearEditorStateLocked() {
	s.activeNoteID = ""
	s.dropPendingSaveLocked()
	s.saver.lastSaved = savedState{}
}

func (s *Session) dropPendingSaveLocked() {
	if s.saver.timer != nil {
		s.saver.timer.Stop()
		s.saver.timer = nil
	}
	s.saver.generation++
}

func (s *Session) logError(operation, reason string, err error, noteID notes.NoteID) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if noteID != "" {
		attrs = append(attrs, zap.String("note_id", noteID.String()))
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	s.logger.Error("sync session error", attrs...)
}
