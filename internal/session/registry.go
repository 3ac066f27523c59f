package session

import (
	"time"

	"docroom/internal/ws"
)

// editingWindow is how recently a connection must have submitted an accepted
// edit to be shown as editing in presence.
const editingWindow = 5 * time.Second

// palette is the fixed set of display colors handed out round-robin. Colors
// repeat once live users exceed the palette size.
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080",
}

// Connection is one live editor attached to a session. Connections are never
// persisted; they exist from socket open to socket close.
type Connection struct {
	ID           string
	UserID       string
	DisplayName  string
	Color        string
	ConnectedAt  time.Time
	LastActivity time.Time
	LastEditAt   time.Time
	Cursor       *ws.UserCursor

	client *ws.Client
}

// Registry tracks live connections for one session. It is owned by the
// coordinator, which serializes all access.
type Registry struct {
	conns      map[string]*Connection
	order      []string // connection ids in connect order
	colorIndex int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers a client, assigning the next palette color.
func (r *Registry) Add(client *ws.Client, userID, displayName string, now time.Time) *Connection {
	conn := &Connection{
		ID:           client.ID,
		UserID:       userID,
		DisplayName:  displayName,
		Color:        palette[r.colorIndex%len(palette)],
		ConnectedAt:  now,
		LastActivity: now,
		client:       client,
	}

	r.colorIndex++
	r.conns[conn.ID] = conn
	r.order = append(r.order, conn.ID)

	return conn
}

// Remove unregisters a connection and returns it, or nil if unknown.
func (r *Registry) Remove(connID string) *Connection {
	conn, ok := r.conns[connID]
	if !ok {
		return nil
	}

	delete(r.conns, connID)

	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)

			break
		}
	}

	return conn
}

// Get returns a connection by id, or nil.
func (r *Registry) Get(connID string) *Connection {
	return r.conns[connID]
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// All returns the live connections in connect order.
func (r *Registry) All() []*Connection {
	out := make([]*Connection, 0, len(r.order))

	for _, id := range r.order {
		out = append(out, r.conns[id])
	}

	return out
}

// Cursors returns the live cursors for every connection that has reported
// one.
func (r *Registry) Cursors() []ws.UserCursor {
	out := make([]ws.UserCursor, 0, len(r.order))

	for _, conn := range r.All() {
		if conn.Cursor != nil {
			out = append(out, *conn.Cursor)
		}
	}

	return out
}

// Collaborators returns the presence view over all live connections.
func (r *Registry) Collaborators(now time.Time) []ws.Collaborator {
	out := make([]ws.Collaborator, 0, len(r.order))

	for _, conn := range r.All() {
		out = append(out, ws.Collaborator{
			UserID:       conn.UserID,
			DisplayName:  conn.DisplayName,
			Color:        conn.Color,
			ConnectedAt:  conn.ConnectedAt,
			LastActivity: conn.LastActivity,
			IsEditing:    !conn.LastEditAt.IsZero() && now.Sub(conn.LastEditAt) < editingWindow,
		})
	}

	return out
}
