package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
	"github.com/scribehq/scribe/internal/sync"
	"go.uber.org/zap"
)

const streamBufferSize = 8

// handleStream pushes the caller's merged note collection over server-sent
// events: one snapshot immediately, then one per change until the client
// disconnects.
func (h *httpHandler) handleStream(c *gin.Context) {
	user := currentUser(c)
	source, err := sync.OpenNoteSource(c.Request.Context(), h.storeFor(c), notes.UserID(user.UID), h.logger)
	if err != nil {
		h.logger.Error("note stream unavailable", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stream_unavailable"})
		return
	}
	defer source.Close()

	snapshots := make(chan []store.Document, streamBufferSize)
	removeObserver := source.OnChange(func(documents []store.Document) {
		select {
		case snapshots <- documents:
		default:
		}
	})
	defer removeObserver()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("notes", collectionPayload(source.Snapshot()))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case documents := <-snapshots:
			c.SSEvent("notes", collectionPayload(documents))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func collectionPayload(documents []store.Document) gin.H {
	payload := make([]notePayload, 0, len(documents))
	for _, document := range documents {
		payload = append(payload, noteToPayload(document.Note, document.HasPendingWrites))
	}
	return gin.H{"notes": payload}
}
