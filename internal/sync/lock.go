package sync

import (
	"context"

	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
)

// maybeAcquireLockLocked grabs the edit lock on first local edit, but only
// when nobody holds it in the latest snapshot. The write is fire-and-forget
// and last-write-wins at the store; two clients editing an unlocked note at
// the same instant may both believe they won until the next snapshot says
// otherwise. At most one acquisition is in flight per session.
func (s *Session) maybeAcquireLockLocked(document store.Document) {
	if document.Locked() || s.lockInFlight {
		return
	}
	s.lockInFlight = true
	noteID := document.ID
	lock := notes.Lock{HolderID: notes.UserID(s.user.UID), HolderEmail: s.user.Email}
	go func() {
		err := s.store.AcquireLock(context.Background(), noteID, lock)
		s.mu.Lock()
		s.lockInFlight = false
		s.mu.Unlock()
		if err != nil {
			s.logError("sync.lock", "acquire_failed", err, noteID)
		}
	}()
}
