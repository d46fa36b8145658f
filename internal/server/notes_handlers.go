package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
	"go.uber.org/zap"
)

type notePayload struct {
	ID               string   `json:"id"`
	OwnerID          string   `json:"owner_id"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	TitleAlign       string   `json:"title_align"`
	Preview          string   `json:"preview"`
	LockedBy         string   `json:"locked_by,omitempty"`
	LockedByEmail    string   `json:"locked_by_email,omitempty"`
	ShareKey         string   `json:"share_key,omitempty"`
	Collaborators    []string `json:"collaborators,omitempty"`
	CreatedAtSeconds int64    `json:"created_at_s"`
	UpdatedAtSeconds int64    `json:"updated_at_s"`
	PendingWrite     bool     `json:"pending_write,omitempty"`
}

func noteToPayload(note notes.Note, pending bool) notePayload {
	collaborators := make([]string, 0, len(note.Collaborators))
	for _, collaborator := range note.Collaborators {
		collaborators = append(collaborators, collaborator.String())
	}
	return notePayload{
		ID:               note.ID.String(),
		OwnerID:          note.OwnerID.String(),
		Title:            note.Title,
		Content:          note.Content,
		TitleAlign:       string(note.TitleAlign),
		Preview:          notes.PreviewText(note.Content),
		LockedBy:         note.LockedBy.String(),
		LockedByEmail:    note.LockedByEmail,
		ShareKey:         note.ShareKey.String(),
		Collaborators:    collaborators,
		CreatedAtSeconds: note.CreatedAt,
		UpdatedAtSeconds: note.UpdatedAt,
		PendingWrite:     pending,
	}
}

func parseNoteID(c *gin.Context) (notes.NoteID, bool) {
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
		return "", false
	}
	return noteID, true
}

func canAccess(note notes.Note, userID notes.UserID) bool {
	return note.OwnerID == userID || note.HasCollaborator(userID)
}

// loadAccessibleNote fetches the note and enforces membership. Missing notes
// and notes the caller cannot see both read as not found.
func (h *httpHandler) loadAccessibleNote(c *gin.Context, st store.Store, noteID notes.NoteID) (notes.Note, bool) {
	note, err := st.GetNote(c.Request.Context(), noteID)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		} else {
			h.logger.Error("note lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		}
		return notes.Note{}, false
	}
	if !canAccess(note, notes.UserID(currentUser(c).UID)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "note_not_found"})
		return notes.Note{}, false
	}
	return note, true
}

type createNotePayload struct {
	Title string `json:"title"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var request createNotePayload
	if err := c.ShouldBindJSON(&request); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	title := strings.TrimSpace(request.Title)
	if title == "" {
		title = notes.DefaultTitle
	}

	user := currentUser(c)
	note, err := h.storeFor(c).CreateNote(c.Request.Context(), notes.Draft{
		OwnerID:    notes.UserID(user.UID),
		Title:      title,
		TitleAlign: notes.AlignLeft,
	})
	if err != nil {
		h.logger.Error("note creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, noteToPayload(note, false))
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	documents, err := h.hub.CollectionFor(c.Request.Context(), notes.UserID(currentUser(c).UID))
	if err != nil {
		h.logger.Error("note listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	payload := make([]notePayload, 0, len(documents))
	for _, document := range documents {
		payload = append(payload, noteToPayload(document.Note, document.HasPendingWrites))
	}
	c.JSON(http.StatusOK, gin.H{"notes": payload})
}

type saveNotePayload struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	TitleAlign string `json:"title_align"`
}

func (h *httpHandler) handleSaveNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	var request saveNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	align, err := notes.ParseTitleAlign(request.TitleAlign)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_title_align"})
		return
	}

	st := h.storeFor(c)
	if _, ok := h.loadAccessibleNote(c, st, noteID); !ok {
		return
	}
	if err := st.SaveContent(c.Request.Context(), noteID, store.ContentRevision{
		Title:      request.Title,
		Content:    request.Content,
		TitleAlign: align,
	}); err != nil {
		h.logger.Error("note save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	saved, err := st.GetNote(c.Request.Context(), noteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	c.JSON(http.StatusOK, noteToPayload(saved, false))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	st := h.storeFor(c)
	note, ok := h.loadAccessibleNote(c, st, noteID)
	if !ok {
		return
	}
	if note.OwnerID != notes.UserID(currentUser(c).UID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "owner_only"})
		return
	}
	if err := st.DeleteNote(c.Request.Context(), noteID); err != nil {
		h.logger.Error("note deletion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLockNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	st := h.storeFor(c)
	if _, ok := h.loadAccessibleNote(c, st, noteID); !ok {
		return
	}
	user := currentUser(c)
	lock := notes.Lock{HolderID: notes.UserID(user.UID), HolderEmail: user.Email}
	if err := st.AcquireLock(c.Request.Context(), noteID, lock); err != nil {
		h.logger.Error("lock acquisition failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lock_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleShareNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	st := h.storeFor(c)
	note, ok := h.loadAccessibleNote(c, st, noteID)
	if !ok {
		return
	}
	if note.ShareKey != "" {
		c.JSON(http.StatusOK, gin.H{"share_key": note.ShareKey.String()})
		return
	}

	key, err := notes.GenerateShareKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "share_failed"})
		return
	}
	if err := st.SetShareKey(c.Request.Context(), noteID, key); err != nil {
		if errors.Is(err, store.ErrShareKeyExists) {
			persisted, getErr := st.GetNote(c.Request.Context(), noteID)
			if getErr == nil {
				c.JSON(http.StatusOK, gin.H{"share_key": persisted.ShareKey.String()})
				return
			}
		}
		h.logger.Error("share key persistence failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "share_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_key": key.String()})
}

type connectPayload struct {
	Key string `json:"key"`
}

func (h *httpHandler) handleConnect(c *gin.Context) {
	var request connectPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	key, err := notes.ParseShareKey(request.Key)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_share_key"})
		return
	}

	st := h.storeFor(c)
	note, err := st.FindByShareKey(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "share_key_not_found"})
			return
		}
		h.logger.Error("share key lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connect_failed"})
		return
	}

	userID := notes.UserID(currentUser(c).UID)
	outcome := "joined"
	switch {
	case note.OwnerID == userID:
		outcome = "already_owner"
	case note.HasCollaborator(userID):
		outcome = "already_member"
	default:
		if err := st.AddCollaborator(c.Request.Context(), note.ID, userID); err != nil {
			h.logger.Error("collaborator addition failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "connect_failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome, "note": noteToPayload(note, false)})
}

func (h *httpHandler) handleLeaveNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	st := h.storeFor(c)
	if _, ok := h.loadAccessibleNote(c, st, noteID); !ok {
		return
	}
	if err := st.RemoveCollaborator(c.Request.Context(), noteID, notes.UserID(currentUser(c).UID)); err != nil {
		h.logger.Error("leave failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leave_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
