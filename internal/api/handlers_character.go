package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kotoba-ai/kotoba-assistant/internal/api/respond"
	"github.com/kotoba-ai/kotoba-assistant/internal/persona"
)

type CharacterHandler struct {
	catalog *persona.Catalog
}

func NewCharacterHandler(cat *persona.Catalog) *CharacterHandler {
	return &CharacterHandler{catalog: cat}
}

type characterRequest struct {
	Name               string `json:"name"`
	Personality        string `json:"personality"`
	SpeakingStyle      string `json:"speakingStyle"`
	Specialization     string `json:"specialization"`
	ResponseStyle      string `json:"responseStyle"`
	Background         string `json:"background"`
	Constraints        string `json:"constraints"`
	Catchphrase        string `json:"catchphrase"`
	Greeting           string `json:"greeting"`
	CustomInstructions string `json:"customInstructions"`
}

// CreateCharacter POST /api/characters
func (h *CharacterHandler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.Name == "" {
		respond.WriteBadRequest(w, "name is required")
		return
	}
	p := persona.NewPersona(req.Name)
	p.Personality = req.Personality
	p.SpeakingStyle = req.SpeakingStyle
	p.Specialization = req.Specialization
	p.ResponseStyle = req.ResponseStyle
	p.Background = req.Background
	p.Constraints = req.Constraints
	p.Catchphrase = req.Catchphrase
	p.Greeting = req.Greeting
	p.CustomInstructions = req.CustomInstructions
	respond.WriteJSON(w, http.StatusCreated, h.catalog.Create(p))
}

// ListCharacters GET /api/characters
func (h *CharacterHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	list := h.catalog.List()
	var activeID string
	if p := h.catalog.Active(); p != nil {
		activeID = p.CharacterID
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"characters": list,
		"count":      len(list),
		"activeId":   activeID,
	})
}

// GetCharacter GET /api/characters/{characterId}
func (h *CharacterHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(mux.Vars(r)["characterId"])
	if err != nil {
		respond.WriteNotFound(w, "character not found")
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// ActivateCharacter POST /api/characters/{characterId}/activate
func (h *CharacterHandler) ActivateCharacter(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Activate(mux.Vars(r)["characterId"])
	if err != nil {
		respond.WriteNotFound(w, "character not found")
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}
