// Package session implements the per-document actor that serializes every
// edit, cursor, and lock message for one document, plus the manager that owns
// one actor per document id.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docroom/internal/doc"
	"docroom/internal/lock"
	"docroom/internal/ot"
	"docroom/internal/storage"
	"docroom/internal/ws"
)

// Defaults for the coordinator's tunables.
const (
	DefaultMaxConnections    = 50
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultIdleTimeout       = 90 * time.Second

	inboxSize      = 256
	persistTimeout = 5 * time.Second
)

// Common errors.
var (
	ErrSessionFull   = errors.New("session at connection capacity")
	ErrSessionClosed = errors.New("session is closed")
)

// Config holds everything a coordinator needs.
type Config struct {
	DocID             string
	Store             storage.Store
	Logger            *slog.Logger
	MaxConnections    int
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	HistoryLimit      int

	// OnIdle, if set, is called (on its own goroutine) after the last
	// connection leaves.
	OnIdle func(docID string)
}

// Coordinator is the per-document actor. Exactly one exists per live document
// id; every message is processed one at a time by the run loop, so the
// document, history, locks, and registry need no locking of their own.
type Coordinator struct {
	docID  string
	store  storage.Store
	logger *slog.Logger

	maxConns          int
	heartbeatInterval time.Duration
	idleTimeout       time.Duration

	inbox chan func()
	quit  chan struct{}

	closeOnce sync.Once
	onIdle    func(string)

	// Actor-owned state. Touched only from the run loop.
	document       *doc.Document
	locks          *lock.Manager
	registry       *Registry
	heartbeatArmed bool
}

// New loads the session's persisted state (if any) and starts its run loop.
func New(cfg Config) (*Coordinator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		docID:             cfg.DocID,
		store:             cfg.Store,
		logger:            logger,
		maxConns:          cfg.MaxConnections,
		heartbeatInterval: cfg.HeartbeatInterval,
		idleTimeout:       cfg.IdleTimeout,
		inbox:             make(chan func(), inboxSize),
		quit:              make(chan struct{}),
		onIdle:            cfg.OnIdle,
		locks:             lock.NewManager(),
		registry:          NewRegistry(),
	}

	if c.maxConns <= 0 {
		c.maxConns = DefaultMaxConnections
	}

	if c.heartbeatInterval <= 0 {
		c.heartbeatInterval = DefaultHeartbeatInterval
	}

	if c.idleTimeout <= 0 {
		c.idleTimeout = DefaultIdleTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec, err := c.store.Load(ctx, c.docID)

	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.document = doc.New(cfg.HistoryLimit)
	case err != nil:
		return nil, fmt.Errorf("load session %q: %w", c.docID, err)
	default:
		c.document = doc.Restore(rec.Document, rec.History, cfg.HistoryLimit)
	}

	go c.run()

	return c, nil
}

// DocID returns the document id this coordinator serves.
func (c *Coordinator) DocID() string {
	return c.docID
}

func (c *Coordinator) run() {
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the actor loop and waits for it to finish.
func (c *Coordinator) do(fn func()) error {
	done := make(chan struct{})

	select {
	case c.inbox <- func() { fn(); close(done) }:
	case <-c.quit:
		return ErrSessionClosed
	}

	select {
	case <-done:
		return nil
	case <-c.quit:
		return ErrSessionClosed
	}
}

// post queues fn on the actor loop without waiting.
func (c *Coordinator) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.quit:
	}
}

// Connect registers a client with the session. The client immediately
// receives a full sync; everyone else sees join and refreshed presence.
func (c *Coordinator) Connect(client *ws.Client, userID, displayName string) error {
	if displayName == "" {
		displayName = userID
	}

	var connErr error

	err := c.do(func() {
		connErr = c.handleConnect(client, userID, displayName)
	})
	if err != nil {
		return err
	}

	return connErr
}

// Disconnect removes a connection, releases its locks, and tells everyone
// else. Unknown connection ids are ignored.
func (c *Coordinator) Disconnect(connID string) {
	_ = c.do(func() { c.handleDisconnect(connID) })
}

// HandleMessage processes one raw inbound frame from a connection. Malformed
// frames earn the sender a PARSE_ERROR; the session always continues.
func (c *Coordinator) HandleMessage(connID string, data []byte) {
	msg, err := ws.DecodeClientMessage(data)
	if err != nil {
		_ = c.do(func() {
			if conn := c.registry.Get(connID); conn != nil {
				c.sendError(conn, ws.CodeParseError, err.Error())
			}
		})

		return
	}

	_ = c.do(func() { c.dispatch(connID, msg) })
}

// ConnectionCount returns the number of live connections.
func (c *Coordinator) ConnectionCount() int {
	n := 0
	_ = c.do(func() { n = c.registry.Len() })

	return n
}

// Snapshot returns the current document state.
func (c *Coordinator) Snapshot() doc.State {
	var state doc.State

	_ = c.do(func() { state = c.document.State() })

	return state
}

// Collaborators returns the current presence view.
func (c *Coordinator) Collaborators() []ws.Collaborator {
	var out []ws.Collaborator

	_ = c.do(func() { out = c.registry.Collaborators(time.Now()) })

	return out
}

// History returns retained entries with revision > from, newest first, capped
// at limit.
func (c *Coordinator) History(from, limit int) []doc.HistoryEntry {
	var entries []doc.HistoryEntry

	_ = c.do(func() { entries = c.document.History(from) })

	// Newest window first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries
}

// Close persists a final snapshot, closes every connection, and stops the run
// loop. Safe to call more than once.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		_ = c.do(func() {
			c.persist()

			for _, conn := range c.registry.All() {
				_ = conn.client.Close()
				c.registry.Remove(conn.ID)
			}
		})

		close(c.quit)
	})

	return nil
}

// dispatch routes one decoded message to its handler.
func (c *Coordinator) dispatch(connID string, msg ws.Message) {
	conn := c.registry.Get(connID)
	if conn == nil {
		return
	}

	conn.LastActivity = time.Now()

	switch payload := msg.Payload.(type) {
	case ws.OperationPayload:
		c.handleEdit(conn, payload.Operation)
	case ws.CursorPayload:
		c.handleCursor(conn, payload.Cursor)
	case ws.LockPayload:
		switch msg.Type {
		case ws.TypeLock:
			c.handleLock(conn, payload.Range)
		case ws.TypeUnlock:
			c.handleUnlock(conn, payload.Range)
		default:
			c.sendError(conn, ws.CodeParseError, fmt.Sprintf("unexpected message type %q", msg.Type))
		}
	default:
		c.sendError(conn, ws.CodeParseError, fmt.Sprintf("unexpected message type %q", msg.Type))
	}
}

func (c *Coordinator) handleConnect(client *ws.Client, userID, displayName string) error {
	if c.registry.Len() >= c.maxConns {
		return ErrSessionFull
	}

	now := time.Now()
	conn := c.registry.Add(client, userID, displayName, now)

	c.send(conn, ws.NewMessage(ws.TypeSync, c.syncPayload(now)))
	c.broadcast(ws.NewMessage(ws.TypeJoin, ws.UserPayload{UserID: conn.UserID}), conn.ID)
	c.broadcast(ws.NewMessage(ws.TypePresence, ws.PresencePayload{
		Collaborators: c.registry.Collaborators(now),
	}), "")

	c.armHeartbeat()

	c.logger.Info("connection joined",
		"doc", c.docID, "conn", conn.ID, "user", userID, "connections", c.registry.Len())

	return nil
}

func (c *Coordinator) handleDisconnect(connID string) {
	conn := c.registry.Remove(connID)
	if conn == nil {
		return
	}

	_ = conn.client.Close()

	// A lock may only outlive its owner's interest, never their connection.
	for _, r := range c.locks.ReleaseAll(conn.UserID) {
		c.broadcast(ws.NewMessage(ws.TypeUnlock, ws.LockPayload{
			UserID: conn.UserID,
			Range:  r,
		}), "")
	}

	now := time.Now()
	c.broadcast(ws.NewMessage(ws.TypeLeave, ws.UserPayload{UserID: conn.UserID}), "")
	c.broadcast(ws.NewMessage(ws.TypePresence, ws.PresencePayload{
		Collaborators: c.registry.Collaborators(now),
	}), "")

	c.logger.Info("connection left",
		"doc", c.docID, "conn", conn.ID, "user", conn.UserID, "connections", c.registry.Len())

	if c.registry.Len() == 0 && c.onIdle != nil {
		go c.onIdle(c.docID)
	}
}

// handleEdit runs the revision reconciliation state machine for one edit.
func (c *Coordinator) handleEdit(conn *Connection, edit ot.Edit) {
	if edit.AuthorID == "" {
		edit.AuthorID = conn.UserID
	}

	if err := edit.Validate(); err != nil {
		c.sendError(conn, ws.CodeParseError, err.Error())

		return
	}

	current := c.document.Revision()

	// A client can never legitimately be ahead of the server. Reject and
	// force a rebase onto the server's state.
	if edit.BaseRevision > current {
		c.send(conn, ws.NewMessage(ws.TypeAck, ws.AckPayload{
			Revision: current,
			Accepted: false,
		}))
		c.send(conn, ws.NewMessage(ws.TypeSync, c.syncPayload(time.Now())))

		return
	}

	ops := edit.Operations
	transformed := false

	if edit.BaseRevision < current {
		var err error

		ops, err = c.document.Transform(edit.Operations, edit.BaseRevision)
		if err != nil {
			// Too far behind the retained history: a transform is no longer
			// possible, only a full resync.
			c.send(conn, ws.NewMessage(ws.TypeAck, ws.AckPayload{
				Revision: current,
				Accepted: false,
			}))
			c.send(conn, ws.NewMessage(ws.TypeSync, c.syncPayload(time.Now())))

			return
		}

		transformed = true
	}

	entry, err := c.document.Apply(ops, edit.AuthorID, edit.IssuedAt)
	if err != nil {
		c.sendError(conn, ws.CodeInternalError, err.Error())

		return
	}

	conn.LastEditAt = time.Now()

	// Durability before delivery: the ack and broadcasts for this edit go out
	// only after the mutation is persisted (or its failure logged).
	c.persist()

	ack := ws.AckPayload{Revision: entry.Revision, Accepted: true}
	if transformed {
		ack.TransformedOps = ops
	}

	c.send(conn, ws.NewMessage(ws.TypeAck, ack))

	c.broadcast(ws.NewMessage(ws.TypeOperation, ws.OperationPayload{
		Operation: ot.Edit{
			BaseRevision: entry.Edit.BaseRevision,
			Operations:   ops,
			AuthorID:     edit.AuthorID,
			IssuedAt:     edit.IssuedAt,
		},
		Revision: entry.Revision,
	}), conn.ID)
}

func (c *Coordinator) handleCursor(conn *Connection, cursor ws.UserCursor) {
	now := time.Now()

	// Identity fields are server-assigned; clients only choose the position.
	cursor.UserID = conn.UserID
	cursor.DisplayName = conn.DisplayName
	cursor.Color = conn.Color
	cursor.LastUpdated = now

	conn.Cursor = &cursor

	c.broadcast(ws.NewMessage(ws.TypeCursor, ws.CursorPayload{Cursor: cursor}), conn.ID)
}

func (c *Coordinator) handleLock(conn *Connection, r lock.Range) {
	granted := c.locks.Acquire(r, conn.UserID)

	c.send(conn, ws.NewMessage(ws.TypeLock, ws.LockPayload{
		UserID:  conn.UserID,
		Range:   r,
		Granted: &granted,
	}))

	if granted {
		c.broadcast(ws.NewMessage(ws.TypeLock, ws.LockPayload{
			UserID:  conn.UserID,
			Range:   r,
			Granted: &granted,
		}), conn.ID)
	}
}

func (c *Coordinator) handleUnlock(conn *Connection, r lock.Range) {
	if c.locks.Release(r, conn.UserID) {
		c.broadcast(ws.NewMessage(ws.TypeUnlock, ws.LockPayload{
			UserID: conn.UserID,
			Range:  r,
		}), "")
	}
}

// armHeartbeat schedules the next idle scan. The timer runs only while at
// least one connection remains.
func (c *Coordinator) armHeartbeat() {
	if c.heartbeatArmed || c.registry.Len() == 0 {
		return
	}

	c.heartbeatArmed = true

	time.AfterFunc(c.heartbeatInterval, func() {
		c.post(func() { c.handleHeartbeat() })
	})
}

func (c *Coordinator) handleHeartbeat() {
	c.heartbeatArmed = false
	now := time.Now()

	for _, conn := range c.registry.All() {
		if now.Sub(conn.LastActivity) > c.idleTimeout {
			c.logger.Info("connection timed out",
				"doc", c.docID, "conn", conn.ID, "user", conn.UserID)
			c.handleDisconnect(conn.ID)
		}
	}

	c.armHeartbeat()
}

// syncPayload builds the full snapshot a client needs to rebuild local state.
func (c *Coordinator) syncPayload(now time.Time) ws.SyncPayload {
	return ws.SyncPayload{
		Document:      c.document.State(),
		Cursors:       c.registry.Cursors(),
		Collaborators: c.registry.Collaborators(now),
		Locks:         c.locks.Locks(),
	}
}

// persist writes the document and its history as one record. Failures are
// logged, never fatal: the in-memory mutation stands and a later save will
// carry it.
func (c *Coordinator) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := storage.Record{
		Document: c.document.State(),
		History:  c.document.Entries(),
	}

	if err := c.store.Save(ctx, c.docID, rec); err != nil {
		c.logger.Error("persist failed", "doc", c.docID, "error", err)
	}
}

func (c *Coordinator) sendError(conn *Connection, code, message string) {
	c.send(conn, ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message}))
}

func (c *Coordinator) send(conn *Connection, msg ws.Message) {
	if err := conn.client.Send(msg); err != nil {
		c.logger.Warn("send failed",
			"doc", c.docID, "conn", conn.ID, "user", conn.UserID, "error", err)
	}
}

// broadcast fans a message out to every connection except exclude. Each
// recipient is isolated: one failed send never aborts the rest.
func (c *Coordinator) broadcast(msg ws.Message, excludeConnID string) {
	for _, conn := range c.registry.All() {
		if conn.ID == excludeConnID {
			continue
		}

		c.send(conn, msg)
	}
}
