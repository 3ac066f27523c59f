package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"docroom/internal/doc"
	"docroom/internal/storage"
	"docroom/internal/ws"
)

// defaultHistoryWindow caps the history endpoint when no limit is given.
const defaultHistoryWindow = 50

// DocumentResponse is the body for GET /documents/{id}.
type DocumentResponse struct {
	ID       string    `json:"id"`
	Document doc.State `json:"document"`
}

// CollaboratorsResponse is the body for GET /documents/{id}/collaborators.
type CollaboratorsResponse struct {
	ID            string            `json:"id"`
	Collaborators []ws.Collaborator `json:"collaborators"`
}

// HistoryResponse is the body for GET /documents/{id}/history.
type HistoryResponse struct {
	ID      string             `json:"id"`
	Entries []doc.HistoryEntry `json:"entries"`
}

// handleGetDocument returns the current document state. A live session
// answers from memory; an idle one is read straight from storage.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]

	if coord := s.manager.Get(docID); coord != nil {
		s.writeJSON(w, DocumentResponse{ID: docID, Document: coord.Snapshot()})

		return
	}

	rec, err := s.store.Load(r.Context(), docID)
	if err != nil {
		s.notFoundOrInternal(w, err)

		return
	}

	s.writeJSON(w, DocumentResponse{ID: docID, Document: rec.Document})
}

// handleGetCollaborators returns the live presence list. An idle session has
// no collaborators by definition.
func (s *Server) handleGetCollaborators(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]

	resp := CollaboratorsResponse{ID: docID, Collaborators: []ws.Collaborator{}}

	if coord := s.manager.Get(docID); coord != nil {
		resp.Collaborators = coord.Collaborators()
	}

	s.writeJSON(w, resp)
}

// handleGetHistory returns retained history entries with revision > from,
// newest first, capped at limit.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]
	from := queryInt(r, "from", 0)
	limit := queryInt(r, "limit", defaultHistoryWindow)

	if coord := s.manager.Get(docID); coord != nil {
		s.writeJSON(w, HistoryResponse{ID: docID, Entries: coord.History(from, limit)})

		return
	}

	rec, err := s.store.Load(r.Context(), docID)
	if err != nil {
		s.notFoundOrInternal(w, err)

		return
	}

	entries := make([]doc.HistoryEntry, 0, len(rec.History))

	for i := len(rec.History) - 1; i >= 0; i-- {
		if rec.History[i].Revision > from {
			entries = append(entries, rec.History[i])
		}
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	s.writeJSON(w, HistoryResponse{ID: docID, Entries: entries})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}

func (s *Server) notFoundOrInternal(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "document not found", http.StatusNotFound)

		return
	}

	s.logger.Error("storage read failed", "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}

	return parsed
}
