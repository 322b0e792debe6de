package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kotoba-ai/kotoba-assistant/internal/api/respond"
	"github.com/kotoba-ai/kotoba-assistant/internal/dispatcher"
	"github.com/kotoba-ai/kotoba-assistant/internal/gateway"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/services"
	"github.com/kotoba-ai/kotoba-assistant/internal/timing"
	"github.com/kotoba-ai/kotoba-assistant/internal/worker"
)

type ChatHandler struct {
	chat   *services.ChatService
	timing *timing.Recorder
}

func NewChatHandler(chat *services.ChatService, rec *timing.Recorder) *ChatHandler {
	return &ChatHandler{chat: chat, timing: rec}
}

type chatResponse struct {
	SessionID      string  `json:"sessionId"`
	Response       string  `json:"response"`
	TokensUsed     int     `json:"tokensUsed"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// SendMessage POST /api/chat
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string `json:"sessionId"`
		CharacterID string `json:"characterId"`
		Message     string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	res, err := h.chat.SendMessage(r.Context(), req.SessionID, req.CharacterID, req.Message)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, chatResponse{
		SessionID:      req.SessionID,
		Response:       res.Text,
		TokensUsed:     res.TokensUsed,
		ElapsedSeconds: res.Elapsed.Seconds(),
	})
}

// SendImageMessage POST /api/chat/image
func (h *ChatHandler) SendImageMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string `json:"sessionId"`
		CharacterID string `json:"characterId"`
		Message     string `json:"message"`
		ImageData   string `json:"imageData"`
		MIMEType    string `json:"mimeType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		respond.WriteBadRequest(w, "imageData must be base64 encoded")
		return
	}
	if req.MIMEType == "" {
		req.MIMEType = "image/jpeg"
	}
	res, err := h.chat.SendImageMessage(r.Context(), req.SessionID, req.CharacterID, req.Message,
		&model.ImageAttachment{Data: data, MIMEType: req.MIMEType})
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, chatResponse{
		SessionID:      req.SessionID,
		Response:       res.Text,
		TokensUsed:     res.TokensUsed,
		ElapsedSeconds: res.Elapsed.Seconds(),
	})
}

// CancelPending POST /api/chat/cancel
func (h *ChatHandler) CancelPending(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lane string `json:"lane"`
	}
	// Body is optional; an empty or absent body cancels both lanes.
	_ = json.NewDecoder(r.Body).Decode(&req)
	switch req.Lane {
	case "", string(worker.LaneText), string(worker.LaneImage):
	default:
		respond.WriteBadRequest(w, "lane must be \"text\" or \"image\"")
		return
	}
	h.chat.CancelPending(worker.Lane(req.Lane))
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// TokenUsage GET /api/tokens/usage?days=N
func (h *ChatHandler) TokenUsage(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	respond.WriteJSON(w, http.StatusOK, h.chat.TokenUsageSummary(days))
}

// ResetTokenUsage POST /api/tokens/reset
func (h *ChatHandler) ResetTokenUsage(w http.ResponseWriter, r *http.Request) {
	discarded := h.chat.ResetTokenUsage()
	respond.WriteJSON(w, http.StatusOK, map[string]int{"discardedTokens": discarded})
}

// ResponseTimeStats GET /api/stats/response-times?days=N
func (h *ChatHandler) ResponseTimeStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	respond.WriteJSON(w, http.StatusOK, h.timing.Statistics(days))
}

// writeGenerationError maps a chat failure to a status code and replaces
// the raw error text with the user-facing message for gateway failures.
func writeGenerationError(w http.ResponseWriter, err error) {
	kind := gateway.KindOf(err)
	if kind == gateway.KindUnknown {
		respond.WriteServiceError(w, err)
		return
	}
	msg := dispatcher.UserMessage(err)
	switch kind {
	case gateway.KindRateLimited:
		respond.WriteError(w, http.StatusTooManyRequests, msg)
	case gateway.KindNetwork, gateway.KindServiceUnavailable:
		respond.WriteError(w, http.StatusBadGateway, msg)
	case gateway.KindInvalidInput:
		respond.WriteBadRequest(w, msg)
	default:
		respond.WriteInternalError(w, msg)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
