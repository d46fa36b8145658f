// Package sync implements the client-side synchronization engine: it merges
// the owned and shared live subscriptions into one consistent view, decides
// when remote snapshots may overwrite the visible editor content, arbitrates
// the advisory per-note edit lock, and debounces outgoing saves.
package sync

import "github.com/scribehq/scribe/internal/notes"

// SaveStatus is the user-visible save indicator text.
type SaveStatus string

const (
	// SaveStatusNone hides the indicator (typing resumed).
	SaveStatusNone SaveStatus = ""
	// SaveStatusSaved reports the displayed content as durable.
	SaveStatusSaved SaveStatus = "Saved"
	// SaveStatusError reports a failed write. There is no automatic retry.
	SaveStatusError SaveStatus = "Error saving"
)

// DisplayState is the editor-resident content for one note.
type DisplayState struct {
	Title      string
	Content    string
	TitleAlign notes.TitleAlign
}

// Editor abstracts the DOM-resident editing surface the engine drives. A
// Session serializes every call under its own mutex, so implementations need
// no internal locking; they must not call back into the Session.
type Editor interface {
	// Display reads the currently rendered title, content, and alignment.
	Display() DisplayState

	// SetTitle, SetContent, and SetTitleAlign replace a single rendered
	// field. The engine only calls them for fields that actually changed,
	// so an implementation backed by a real editing surface does not lose
	// its cursor to redundant rewrites.
	SetTitle(title string)
	SetContent(content string)
	SetTitleAlign(align notes.TitleAlign)

	// SetReadOnly toggles edit capability and the lock banner. holderEmail
	// may be empty when the holder is unknown; the surface then shows a
	// generic message.
	SetReadOnly(readOnly bool, holderEmail string)

	// SetStatus updates the save indicator.
	SetStatus(status SaveStatus)

	// ShowEmpty transitions to the no-note-selected state.
	ShowEmpty()
}
