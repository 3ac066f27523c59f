package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"docroom/internal/session"
	"docroom/internal/ws"
)

// handleWebSocket handles GET /ws/{id}?userId={uid}&displayName={name}.
//
// Identity is resolved upstream; this endpoint only requires that a userId
// was handed over. Missing identity and capacity overruns are rejected before
// the upgrade, while plain HTTP status codes can still be sent.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)

		return
	}

	displayName := r.URL.Query().Get("displayName")
	if displayName == "" {
		displayName = userID
	}

	if coord := s.manager.Get(docID); coord != nil && coord.ConnectionCount() >= s.maxConnections {
		http.Error(w, "session at capacity", http.StatusServiceUnavailable)

		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "doc", docID, "error", err)

		return
	}

	client := ws.NewClient(uuid.New().String(), conn, s.logger)

	coord, err := s.manager.Connect(docID, client, userID, displayName)
	if err != nil {
		// The session filled up between the pre-upgrade check and now.
		if errors.Is(err, session.ErrSessionFull) {
			_ = client.SendError(ws.CodeInternalError, "session at capacity")
		} else {
			_ = client.SendError(ws.CodeInternalError, "failed to join session")
		}

		_ = client.Close()

		return
	}

	s.readLoop(coord, client)
}

// readLoop pumps inbound frames into the session actor until the socket
// closes, then detaches the connection.
func (s *Server) readLoop(coord *session.Coordinator, client *ws.Client) {
	defer func() {
		coord.Disconnect(client.ID)
		_ = client.Close()
	}()

	for {
		data, err := client.Read()
		if err != nil {
			return
		}

		coord.HandleMessage(client.ID, data)
	}
}
