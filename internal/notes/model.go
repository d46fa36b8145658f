package notes

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("notes: invalid user id")
	// ErrInvalidTitleAlign indicates an alignment value outside left/center/right.
	ErrInvalidTitleAlign = errors.New("notes: invalid title alignment")
)

// NoteID represents a validated note identifier.
type NoteID string

// NewNoteID validates raw input and returns a NoteID.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNoteID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidNoteID, maxIdentifierLength)
	}
	return NoteID(trimmed), nil
}

// String returns the underlying string identifier.
func (id NoteID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// TitleAlign enumerates supported title alignments.
type TitleAlign string

const (
	AlignLeft   TitleAlign = "left"
	AlignCenter TitleAlign = "center"
	AlignRight  TitleAlign = "right"
)

// ParseTitleAlign validates raw input, mapping the empty string to AlignLeft.
func ParseTitleAlign(rawInput string) (TitleAlign, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case "", string(AlignLeft):
		return AlignLeft, nil
	case string(AlignCenter):
		return AlignCenter, nil
	case string(AlignRight):
		return AlignRight, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTitleAlign, rawInput)
	}
}

// String returns the alignment keyword.
func (a TitleAlign) String() string {
	return string(a)
}

// Lock names the user currently believed to be editing a note. The lock is
// advisory: acquisition is a plain field write, not a compare-and-swap, and it
// carries no lease. Every successful save clears it.
type Lock struct {
	HolderID    UserID
	HolderEmail string
}

// Note is the central entity: one rich-text document owned by a single user
// and optionally shared with collaborators.
//
// Timestamps are store-assigned unix seconds. LockedBy empty means unlocked.
// ShareKey empty means the note has never been shared.
type Note struct {
	ID            NoteID
	OwnerID       UserID
	Title         string
	Content       string
	TitleAlign    TitleAlign
	LockedBy      UserID
	LockedByEmail string
	LockedAt      int64
	ShareKey      ShareKey
	Collaborators []UserID
	CreatedAt     int64
	UpdatedAt     int64
}

// Locked reports whether any user currently holds the edit lock.
func (n Note) Locked() bool {
	return n.LockedBy != ""
}

// LockedByOther reports whether a user other than viewer holds the lock.
func (n Note) LockedByOther(viewer UserID) bool {
	return n.LockedBy != "" && n.LockedBy != viewer
}

// HasCollaborator reports whether userID is a member of the collaborator set.
func (n Note) HasCollaborator(userID UserID) bool {
	for _, collaborator := range n.Collaborators {
		if collaborator == userID {
			return true
		}
	}
	return false
}

// Draft carries the fields a client supplies when creating a note.
type Draft struct {
	OwnerID    UserID
	Title      string
	Content    string
	TitleAlign TitleAlign
}
