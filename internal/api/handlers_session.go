package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kotoba-ai/kotoba-assistant/internal/api/respond"
	"github.com/kotoba-ai/kotoba-assistant/internal/services"
	"github.com/kotoba-ai/kotoba-assistant/internal/session"
)

type SessionHandler struct {
	chat *services.ChatService
}

func NewSessionHandler(chat *services.ChatService) *SessionHandler {
	return &SessionHandler{chat: chat}
}

type sessionView struct {
	SessionID    string    `json:"sessionId"`
	CharacterID  string    `json:"characterId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActive   time.Time `json:"lastActive"`
	MessageCount int       `json:"messageCount"`
	TurnCount    int       `json:"turnCount"`
	TokenTotal   int       `json:"tokenTotal"`
	Summary      string    `json:"summary"`
}

func viewOf(s *session.Session) sessionView {
	return sessionView{
		SessionID:    s.ID,
		CharacterID:  s.Character(),
		CreatedAt:    s.CreatedAt,
		LastActive:   s.LastActive(),
		MessageCount: s.MessageCount(),
		TurnCount:    s.Ledger.TurnCount(),
		TokenTotal:   s.Ledger.CurrentTotal(),
		Summary:      s.Ledger.Summary(),
	}
}

// ListSessions GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.chat.Sessions()
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, viewOf(s))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions": out, "count": len(out)})
}

// GetSession GET /api/sessions/{sessionId}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.chat.Session(mux.Vars(r)["sessionId"])
	if err != nil {
		respond.WriteNotFound(w, "session not found")
		return
	}
	respond.WriteJSON(w, http.StatusOK, viewOf(s))
}

// DeleteSession DELETE /api/sessions/{sessionId}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteSession(mux.Vars(r)["sessionId"]); err != nil {
		respond.WriteNotFound(w, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory GET /api/sessions/{sessionId}/history
func (h *SessionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chat.History(mux.Vars(r)["sessionId"])
	if err != nil {
		respond.WriteNotFound(w, "session not found")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"history": turns, "count": len(turns)})
}

// SaveMemory POST /api/sessions/{sessionId}/save-memory
func (h *SessionHandler) SaveMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string   `json:"title"`
		Content    string   `json:"content"`
		Category   string   `json:"category"`
		Tags       []string `json:"tags"`
		Importance string   `json:"importance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	mem, err := h.chat.SaveMemory(r.Context(), mux.Vars(r)["sessionId"],
		req.Title, req.Content, req.Category, req.Tags, req.Importance)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, mem)
}

// ResumeMemory POST /api/memories/{memoryId}/resume
func (h *SessionHandler) ResumeMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	mem, err := h.chat.ResumeMemory(r.Context(), req.SessionID, mux.Vars(r)["memoryId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"memoryId": mem.MemoryID,
		"title":    mem.Title,
		"turns":    len(mem.Snapshot),
	})
}
