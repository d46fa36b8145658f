package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scribehq/scribe/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const watchBufferSize = 8

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingContext    = errors.New("context is required")
	noOpLogger           = zap.NewNop()
)

type watchKind string

const (
	watchKindOwned  watchKind = "owned"
	watchKindShared watchKind = "shared"
)

// HubConfig describes the dependencies required to open a store hub.
type HubConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider notes.IDProvider
	Logger     *zap.Logger
}

// Hub owns the persisted note collection and the live watch registry. All
// client handles created from one hub share the same collection, so two
// handles observe each other's writes the way two browser tabs would.
type Hub struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider notes.IDProvider
	logger     *zap.Logger

	mu       sync.Mutex
	watchers map[int64]*watcher
	nextID   int64
}

type watcher struct {
	id       int64
	clientID string
	kind     watchKind
	userID   notes.UserID
	stream   chan Snapshot
}

// NewHub validates the configuration and returns a Hub.
func NewHub(cfg HubConfig) (*Hub, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("store: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("store: %w", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Hub{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		watchers:   make(map[int64]*watcher),
	}, nil
}

// Client returns a store handle bound to the given client identity. The
// identity scopes pending-write reporting, nothing else: a client's own
// mutations echo back through its watches flagged pending before the
// acknowledged snapshot is published to everyone.
func (h *Hub) Client(clientID string) *Client {
	return &Client{hub: h, clientID: clientID}
}

// Client is one tab's handle onto the hub. It implements Store.
type Client struct {
	hub      *Hub
	clientID string
}

var _ Store = (*Client)(nil)

func (c *Client) CreateNote(ctx context.Context, draft notes.Draft) (notes.Note, error) {
	h := c.hub
	if draft.OwnerID == "" {
		return notes.Note{}, fmt.Errorf("store: create note: %w", notes.ErrInvalidUserID)
	}
	noteID, err := h.idProvider.NewID()
	if err != nil {
		h.logError("store.create_note", "id_generation_failed", err)
		return notes.Note{}, fmt.Errorf("store: create note: %w", err)
	}
	align := draft.TitleAlign
	if align == "" {
		align = notes.AlignLeft
	}
	now := h.clock().UTC().Unix()
	record := NoteRecord{
		NoteID:           noteID,
		OwnerID:          draft.OwnerID.String(),
		Title:            draft.Title,
		Content:          draft.Content,
		TitleAlign:       align.String(),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := h.db.WithContext(ctx).Create(&record).Error; err != nil {
		h.logError("store.create_note", "insert_failed", err, zap.String("note_id", noteID))
		return notes.Note{}, fmt.Errorf("store: create note: %w", err)
	}
	h.publish(c.clientID, notes.NoteID(noteID))
	return record.toNote(nil), nil
}

func (c *Client) GetNote(ctx context.Context, noteID notes.NoteID) (notes.Note, error) {
	h := c.hub
	record, err := h.takeNote(ctx, noteID)
	if err != nil {
		return notes.Note{}, err
	}
	collaborators, err := h.loadCollaborators(ctx, []string{record.NoteID})
	if err != nil {
		return notes.Note{}, err
	}
	return record.toNote(collaborators[record.NoteID]), nil
}

func (c *Client) SaveContent(ctx context.Context, noteID notes.NoteID, revision ContentRevision) error {
	h := c.hub
	if _, err := h.takeNote(ctx, noteID); err != nil {
		return err
	}
	align := revision.TitleAlign
	if align == "" {
		align = notes.AlignLeft
	}
	updates := map[string]interface{}{
		"title":           revision.Title,
		"content":         revision.Content,
		"title_align":     align.String(),
		"updated_at_s":    h.clock().UTC().Unix(),
		"locked_by":       "",
		"locked_by_email": "",
		"locked_at_s":     int64(0),
	}
	err := h.db.WithContext(ctx).Model(&NoteRecord{}).
		Where("note_id = ?", noteID.String()).
		Updates(updates).Error
	if err != nil {
		h.logError("store.save_content", "update_failed", err, zap.String("note_id", noteID.String()))
		return fmt.Errorf("store: save content: %w", err)
	}
	h.publish(c.clientID, noteID)
	return nil
}

func (c *Client) AcquireLock(ctx context.Context, noteID notes.NoteID, holder notes.Lock) error {
	h := c.hub
	if holder.HolderID == "" {
		return fmt.Errorf("store: acquire lock: %w", notes.ErrInvalidUserID)
	}
	if _, err := h.takeNote(ctx, noteID); err != nil {
		return err
	}
	// Plain field write, deliberately not a compare-and-swap: the lock is
	// advisory and two racing acquisitions resolve last-write-wins.
	updates := map[string]interface{}{
		"locked_by":       holder.HolderID.String(),
		"locked_by_email": holder.HolderEmail,
		"locked_at_s":     h.clock().UTC().Unix(),
	}
	err := h.db.WithContext(ctx).Model(&NoteRecord{}).
		Where("note_id = ?", noteID.String()).
		Updates(updates).Error
	if err != nil {
		h.logError("store.acquire_lock", "update_failed", err, zap.String("note_id", noteID.String()))
		return fmt.Errorf("store: acquire lock: %w", err)
	}
	h.publish(c.clientID, noteID)
	return nil
}

func (c *Client) DeleteNote(ctx context.Context, noteID notes.NoteID) error {
	h := c.hub
	if _, err := h.takeNote(ctx, noteID); err != nil {
		return err
	}
	txErr := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("note_id = ?", noteID.String()).Delete(&CollaboratorRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("note_id = ?", noteID.String()).Delete(&NoteRecord{}).Error
	})
	if txErr != nil {
		h.logError("store.delete_note", "delete_failed", txErr, zap.String("note_id", noteID.String()))
		return fmt.Errorf("store: delete note: %w", txErr)
	}
	h.publish(c.clientID, noteID)
	return nil
}

func (c *Client) SetShareKey(ctx context.Context, noteID notes.NoteID, key notes.ShareKey) error {
	h := c.hub
	if _, err := notes.ParseShareKey(key.String()); err != nil {
		return err
	}
	record, err := h.takeNote(ctx, noteID)
	if err != nil {
		return err
	}
	if record.ShareKey == key.String() {
		return nil
	}
	if record.ShareKey != "" {
		return fmt.Errorf("%w: note %s", ErrShareKeyExists, noteID.String())
	}
	err = h.db.WithContext(ctx).Model(&NoteRecord{}).
		Where("note_id = ?", noteID.String()).
		Update("share_key", key.String()).Error
	if err != nil {
		h.logError("store.set_share_key", "update_failed", err, zap.String("note_id", noteID.String()))
		return fmt.Errorf("store: set share key: %w", err)
	}
	h.publish(c.clientID, noteID)
	return nil
}

func (c *Client) AddCollaborator(ctx context.Context, noteID notes.NoteID, userID notes.UserID) error {
	h := c.hub
	if userID == "" {
		return fmt.Errorf("store: add collaborator: %w", notes.ErrInvalidUserID)
	}
	record, err := h.takeNote(ctx, noteID)
	if err != nil {
		return err
	}
	if record.OwnerID == userID.String() {
		return fmt.Errorf("%w: note %s", ErrCollaboratorIsOwner, noteID.String())
	}
	membership := CollaboratorRecord{
		NoteID:         noteID.String(),
		UserID:         userID.String(),
		AddedAtSeconds: h.clock().UTC().Unix(),
	}
	err = h.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&membership).Error
	if err != nil {
		h.logError("store.add_collaborator", "insert_failed", err,
			zap.String("note_id", noteID.String()),
			zap.String("user_id", userID.String()))
		return fmt.Errorf("store: add collaborator: %w", err)
	}
	h.publish(c.clientID, noteID)
	return nil
}

func (c *Client) RemoveCollaborator(ctx context.Context, noteID notes.NoteID, userID notes.UserID) error {
	h := c.hub
	if userID == "" {
		return fmt.Errorf("store: remove collaborator: %w", notes.ErrInvalidUserID)
	}
	err := h.db.WithContext(ctx).
		Where("note_id = ? AND user_id = ?", noteID.String(), userID.String()).
		Delete(&CollaboratorRecord{}).Error
	if err != nil {
		h.logError("store.remove_collaborator", "delete_failed", err,
			zap.String("note_id", noteID.String()),
			zap.String("user_id", userID.String()))
		return fmt.Errorf("store: remove collaborator: %w", err)
	}
	h.publish(c.clientID, noteID)
	return nil
}

func (c *Client) FindByShareKey(ctx context.Context, key notes.ShareKey) (notes.Note, error) {
	h := c.hub
	if key == "" {
		return notes.Note{}, fmt.Errorf("%w: empty share key", ErrNoteNotFound)
	}
	var record NoteRecord
	err := h.db.WithContext(ctx).Where("share_key = ?", key.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notes.Note{}, fmt.Errorf("%w: share key %s", ErrNoteNotFound, key.String())
	}
	if err != nil {
		h.logError("store.find_by_share_key", "query_failed", err)
		return notes.Note{}, fmt.Errorf("store: find by share key: %w", err)
	}
	collaborators, err := h.loadCollaborators(ctx, []string{record.NoteID})
	if err != nil {
		return notes.Note{}, err
	}
	return record.toNote(collaborators[record.NoteID]), nil
}

func (c *Client) WatchOwned(ctx context.Context, userID notes.UserID) (<-chan Snapshot, CancelFunc, error) {
	return c.watch(ctx, watchKindOwned, userID)
}

func (c *Client) WatchShared(ctx context.Context, userID notes.UserID) (<-chan Snapshot, CancelFunc, error) {
	return c.watch(ctx, watchKindShared, userID)
}

func (c *Client) watch(ctx context.Context, kind watchKind, userID notes.UserID) (<-chan Snapshot, CancelFunc, error) {
	h := c.hub
	if ctx == nil {
		return nil, nil, fmt.Errorf("store: watch: %w", errMissingContext)
	}
	if userID == "" {
		return nil, nil, fmt.Errorf("store: watch: %w", notes.ErrInvalidUserID)
	}

	h.mu.Lock()
	h.nextID++
	subscriber := &watcher{
		id:       h.nextID,
		clientID: c.clientID,
		kind:     kind,
		userID:   userID,
		stream:   make(chan Snapshot, watchBufferSize),
	}
	initial, err := h.snapshotForLocked(subscriber, "")
	if err != nil {
		h.mu.Unlock()
		h.logError("store.watch", "initial_snapshot_failed", err, zap.String("user_id", userID.String()))
		return nil, nil, fmt.Errorf("store: watch: %w", err)
	}
	h.watchers[subscriber.id] = subscriber
	deliver(subscriber, initial)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, registered := h.watchers[subscriber.id]; registered {
			delete(h.watchers, subscriber.id)
			close(subscriber.stream)
		}
		h.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return subscriber.stream, cancel, nil
}

// publish recomputes and delivers watch snapshots after a mutation. The
// originating client's watchers first receive an optimistic delivery with the
// touched note flagged as a pending write, then every watcher receives the
// acknowledged result set.
func (h *Hub) publish(originClientID string, touched notes.NoteID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, subscriber := range h.watchers {
		if subscriber.clientID != originClientID {
			continue
		}
		snapshot, err := h.snapshotForLocked(subscriber, touched)
		if err != nil {
			h.logError("store.publish", "pending_snapshot_failed", err, zap.String("user_id", subscriber.userID.String()))
			continue
		}
		deliver(subscriber, snapshot)
	}

	for _, subscriber := range h.watchers {
		snapshot, err := h.snapshotForLocked(subscriber, "")
		if err != nil {
			h.logError("store.publish", "snapshot_failed", err, zap.String("user_id", subscriber.userID.String()))
			continue
		}
		deliver(subscriber, snapshot)
	}
}

// deliver keeps the newest snapshot when the subscriber lags: intermediate
// result sets are disposable because every delivery is a full rebuild.
func deliver(subscriber *watcher, snapshot Snapshot) {
	select {
	case subscriber.stream <- snapshot:
	default:
		select {
		case <-subscriber.stream:
		default:
		}
		select {
		case subscriber.stream <- snapshot:
		default:
		}
	}
}

func (h *Hub) snapshotForLocked(subscriber *watcher, pendingNoteID notes.NoteID) (Snapshot, error) {
	var records []NoteRecord
	query := h.db.Order("updated_at_s DESC")
	switch subscriber.kind {
	case watchKindShared:
		query = query.
			Joins("JOIN note_collaborators ON note_collaborators.note_id = notes.note_id").
			Where("note_collaborators.user_id = ?", subscriber.userID.String())
	default:
		query = query.Where("owner_id = ?", subscriber.userID.String())
	}
	if err := query.Find(&records).Error; err != nil {
		return Snapshot{}, err
	}

	noteIDs := make([]string, 0, len(records))
	for _, record := range records {
		noteIDs = append(noteIDs, record.NoteID)
	}
	collaborators, err := h.loadCollaborators(context.Background(), noteIDs)
	if err != nil {
		return Snapshot{}, err
	}

	documents := make([]Document, 0, len(records))
	for _, record := range records {
		documents = append(documents, Document{
			Note:             record.toNote(collaborators[record.NoteID]),
			HasPendingWrites: pendingNoteID != "" && record.NoteID == pendingNoteID.String(),
		})
	}
	return Snapshot{Documents: documents}, nil
}

// CollectionFor returns the user's merged collection in one shot: owned notes
// plus notes shared with them, newest first. Unsaved notes with a zero
// timestamp sort last.
func (h *Hub) CollectionFor(ctx context.Context, userID notes.UserID) ([]Document, error) {
	if userID == "" {
		return nil, fmt.Errorf("store: collection: %w", notes.ErrInvalidUserID)
	}
	var records []NoteRecord
	err := h.db.WithContext(ctx).
		Where("owner_id = ? OR note_id IN (?)",
			userID.String(),
			h.db.Model(&CollaboratorRecord{}).Select("note_id").Where("user_id = ?", userID.String())).
		Order("updated_at_s DESC").
		Find(&records).Error
	if err != nil {
		h.logError("store.collection", "query_failed", err, zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("store: collection: %w", err)
	}

	noteIDs := make([]string, 0, len(records))
	for _, record := range records {
		noteIDs = append(noteIDs, record.NoteID)
	}
	collaborators, err := h.loadCollaborators(ctx, noteIDs)
	if err != nil {
		return nil, err
	}
	documents := make([]Document, 0, len(records))
	for _, record := range records {
		documents = append(documents, Document{Note: record.toNote(collaborators[record.NoteID])})
	}
	return documents, nil
}

func (h *Hub) takeNote(ctx context.Context, noteID notes.NoteID) (NoteRecord, error) {
	if noteID == "" {
		return NoteRecord{}, fmt.Errorf("%w: empty note id", ErrNoteNotFound)
	}
	var record NoteRecord
	err := h.db.WithContext(ctx).Where("note_id = ?", noteID.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NoteRecord{}, fmt.Errorf("%w: %s", ErrNoteNotFound, noteID.String())
	}
	if err != nil {
		h.logError("store.take_note", "query_failed", err, zap.String("note_id", noteID.String()))
		return NoteRecord{}, fmt.Errorf("store: load note: %w", err)
	}
	return record, nil
}

func (h *Hub) loadCollaborators(ctx context.Context, noteIDs []string) (map[string][]notes.UserID, error) {
	grouped := make(map[string][]notes.UserID, len(noteIDs))
	if len(noteIDs) == 0 {
		return grouped, nil
	}
	var memberships []CollaboratorRecord
	err := h.db.WithContext(ctx).
		Where("note_id IN ?", noteIDs).
		Order("added_at_s ASC").
		Find(&memberships).Error
	if err != nil {
		h.logError("store.load_collaborators", "query_failed", err)
		return nil, fmt.Errorf("store: load collaborators: %w", err)
	}
	for _, membership := range memberships {
		grouped[membership.NoteID] = append(grouped[membership.NoteID], notes.UserID(membership.UserID))
	}
	return grouped, nil
}

func (h *Hub) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	h.logger.Error("store error", attrs...)
}
