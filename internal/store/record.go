package store

import "github.com/scribehq/scribe/internal/notes"

// NoteRecord models the persisted note row.
type NoteRecord struct {
	NoteID           string `gorm:"column:note_id;primaryKey;size:190;not null"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_notes_owner_updated,priority:1"`
	Title            string `gorm:"column:title;type:text;not null"`
	Content          string `gorm:"column:content;type:text;not null"`
	TitleAlign       string `gorm:"column:title_align;size:16;not null;default:'left'"`
	LockedBy         string `gorm:"column:locked_by;size:190;not null;default:''"`
	LockedByEmail    string `gorm:"column:locked_by_email;size:320;not null;default:''"`
	LockedAtSeconds  int64  `gorm:"column:locked_at_s;not null;default:0"`
	ShareKey         string `gorm:"column:share_key;size:8;not null;default:'';index"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;index:idx_notes_owner_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (NoteRecord) TableName() string {
	return "notes"
}

// CollaboratorRecord models one user's membership in a note's collaborator set.
type CollaboratorRecord struct {
	NoteID         string `gorm:"column:note_id;primaryKey;size:190;not null"`
	UserID         string `gorm:"column:user_id;primaryKey;size:190;not null;index"`
	AddedAtSeconds int64  `gorm:"column:added_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CollaboratorRecord) TableName() string {
	return "note_collaborators"
}

func (r NoteRecord) toNote(collaborators []notes.UserID) notes.Note {
	align, err := notes.ParseTitleAlign(r.TitleAlign)
	if err != nil {
		align = notes.AlignLeft
	}
	return notes.Note{
		ID:            notes.NoteID(r.NoteID),
		OwnerID:       notes.UserID(r.OwnerID),
		Title:         r.Title,
		Content:       r.Content,
		TitleAlign:    align,
		LockedBy:      notes.UserID(r.LockedBy),
		LockedByEmail: r.LockedByEmail,
		LockedAt:      r.LockedAtSeconds,
		ShareKey:      notes.ShareKey(r.ShareKey),
		Collaborators: collaborators,
		CreatedAt:     r.CreatedAtSeconds,
		UpdatedAt:     r.UpdatedAtSeconds,
	}
}
