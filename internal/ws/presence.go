package ws

import "time"

// Cursor is a caret position in the document.
type Cursor struct {
	Line           int `json:"line"`
	Column         int `json:"column"`
	AbsoluteOffset int `json:"absoluteOffset"`
}

// Selection is a highlighted span between an anchor and the moving head.
type Selection struct {
	Anchor Cursor `json:"anchor"`
	Head   Cursor `json:"head"`
}

// UserCursor is the live cursor of one collaborator. It is ephemeral: never
// persisted, rebuilt from live connections on every snapshot.
type UserCursor struct {
	UserID      string     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Color       string     `json:"color"`
	Position    Cursor     `json:"position"`
	Selection   *Selection `json:"selection,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// Collaborator is the presence view of one live connection.
type Collaborator struct {
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	Color        string    `json:"color"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsEditing    bool      `json:"isEditing"`
}
