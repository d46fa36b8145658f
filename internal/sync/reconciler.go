package sync

import (
	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
)

// handleSnapshot installs a freshly merged collection and reconciles the open
// note against its latest record. A remote revision overwrites the editor only
// when the local client has nothing in flight: either the note is locked by
// another user (their edits win) or no debounced save is pending, and the
// snapshot does not carry this client's own unacknowledged write. Rejected
// overwrites are not retried; the next snapshot re-evaluates from scratch.
func (s *Session) handleSnapshot(documents []store.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.view = documents

	if s.activeNoteID == "" {
		return
	}
	document, found := findDocument(documents, s.activeNoteID)
	if !found {
		// Deleted remotely or unshared from this user.
		s.clearEditorStateLocked()
		s.editor.ShowEmpty()
		return
	}

	lockedByOther := document.LockedByOther(notes.UserID(s.user.UID))
	timerPending := s.saver.timer != nil
	if (lockedByOther || !timerPending) && !document.HasPendingWrites {
		s.overwriteEditorLocked(document)
	}

	// The lock banner always reflects the latest record, even when the
	// content overwrite was withheld.
	s.editor.SetReadOnly(lockedByOther, document.LockedByEmail)
}

// overwriteEditorLocked applies the remote revision field by field, touching
// only what actually differs from the display, and advances the shadow copy
// so the accepted revision is not re-saved as a local edit.
func (s *Session) overwriteEditorLocked(document store.Document) {
	display := s.editor.Display()
	align := document.TitleAlign
	if align == "" {
		align = notes.AlignLeft
	}
	if display.Title != document.Title {
		s.editor.SetTitle(document.Title)
	}
	if display.Content != document.Content {
		s.editor.SetContent(document.Content)
	}
	if display.TitleAlign != align {
		s.editor.SetTitleAlign(align)
	}
	s.saver.lastSaved = savedState{
		noteID: document.ID,
		state:  DisplayState{Title: document.Title, Content: document.Content, TitleAlign: align},
		valid:  true,
	}
}
