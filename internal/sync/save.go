package sync

import (
	"context"
	"time"

	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
)

// savePipeline is the debounced write path for the open note. The shadow copy
// in lastSaved mirrors what the store currently holds, so a flush whose
// display matches it is suppressed entirely.
type savePipeline struct {
	interval   time.Duration
	timer      *time.Timer
	generation uint64
	lastSaved  savedState
}

type savedState struct {
	noteID notes.NoteID
	state  DisplayState
	valid  bool
}

// HandleEdit is called on every local keystroke or alignment change in the
// open note. It restarts the debounce window and, when the note is unlocked,
// fires the opportunistic lock grab.
func (s *Session) HandleEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.activeNoteID == "" {
		return
	}
	document, found := findDocument(s.view, s.activeNoteID)
	if found && document.LockedByOther(notes.UserID(s.user.UID)) {
		// Read-only for this user; their input surface should be
		// disabled already, so nothing is scheduled.
		return
	}
	if found {
		s.maybeAcquireLockLocked(document)
	}

	s.editor.SetStatus(SaveStatusNone)
	if s.saver.timer != nil {
		s.saver.timer.Stop()
	}
	s.saver.generation++
	generation := s.saver.generation
	s.saver.timer = time.AfterFunc(s.saver.interval, func() {
		s.flush(generation)
	})
}

// flush runs when a debounce window elapses. A flush that was superseded by a
// later edit, a note switch, or a teardown is a no-op: the generation stamped
// into the timer callback no longer matches. The timer handle stays set for
// the whole write so arriving snapshots keep deferring to the local draft;
// only the completion clears it, and only when no later edit rescheduled.
func (s *Session) flush(generation uint64) {
	s.mu.Lock()
	if s.closed || generation != s.saver.generation {
		s.mu.Unlock()
		return
	}
	noteID := s.activeNoteID
	if noteID == "" {
		s.saver.timer = nil
		s.mu.Unlock()
		return
	}
	display := s.editor.Display()
	if s.saver.lastSaved.valid && s.saver.lastSaved.noteID == noteID && s.saver.lastSaved.state == display {
		// Nothing changed since the last durable write.
		s.saver.timer = nil
		s.editor.SetStatus(SaveStatusSaved)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.store.SaveContent(context.Background(), noteID, store.ContentRevision{
		Title:      display.Title,
		Content:    display.Content,
		TitleAlign: display.TitleAlign,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation == s.saver.generation {
		s.saver.timer = nil
	}
	if s.closed {
		return
	}
	if err != nil {
		s.logError("sync.save", "write_failed", err, noteID)
		if s.activeNoteID == noteID {
			s.editor.SetStatus(SaveStatusError)
		}
		return
	}
	s.saver.lastSaved = savedState{noteID: noteID, state: display, valid: true}
	if s.activeNoteID == noteID {
		s.editor.SetStatus(SaveStatusSaved)
	}
}
