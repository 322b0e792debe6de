package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kotoba-ai/kotoba-assistant/internal/api/respond"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/services"
)

type MemoryHandler struct {
	svc *services.MemoryService
}

func NewMemoryHandler(svc *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

// CreateMemory POST /api/memories
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string                   `json:"title"`
		Content    string                   `json:"content"`
		Snapshot   []model.ConversationTurn `json:"snapshot"`
		Category   string                   `json:"category"`
		Tags       []string                 `json:"tags"`
		Importance string                   `json:"importance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	mem, err := h.svc.Create(r.Context(), &model.Memory{
		Title:      req.Title,
		Content:    req.Content,
		Snapshot:   req.Snapshot,
		Category:   req.Category,
		Tags:       req.Tags,
		Importance: req.Importance,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, mem)
}

// ListMemories GET /api/memories?sortBy=createdAt&descending=true
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := q.Get("sortBy")
	if sortBy == "" {
		sortBy = "createdAt"
	}
	descending := q.Get("descending") != "false"
	out, err := h.svc.List(r.Context(), sortBy, descending)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"memories": out, "count": len(out)})
}

// SearchMemories GET /api/memories/search?keyword=&characterId=&category=&importance=
func (h *MemoryHandler) SearchMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.svc.Search(r.Context(), model.MemorySearchRequest{
		Keyword:     q.Get("keyword"),
		CharacterID: q.Get("characterId"),
		Category:    q.Get("category"),
		Importance:  q.Get("importance"),
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"memories": out, "count": len(out)})
}

// GetMemory GET /api/memories/{memoryId}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	mem, err := h.svc.Get(r.Context(), mux.Vars(r)["memoryId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, mem)
}

// UpdateMemory PATCH /api/memories/{memoryId}
func (h *MemoryHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      *string  `json:"title"`
		Content    *string  `json:"content"`
		Category   *string  `json:"category"`
		Tags       []string `json:"tags"`
		Importance *string  `json:"importance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	mem, err := h.svc.Update(r.Context(), mux.Vars(r)["memoryId"], model.MemoryUpdate{
		Title:      req.Title,
		Content:    req.Content,
		Category:   req.Category,
		Tags:       req.Tags,
		Importance: req.Importance,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, mem)
}

// DeleteMemory DELETE /api/memories/{memoryId}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["memoryId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
