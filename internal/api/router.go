// Package api exposes the assistant's HTTP surface.
package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/api/recovery"
	"github.com/kotoba-ai/kotoba-assistant/internal/persona"
	"github.com/kotoba-ai/kotoba-assistant/internal/services"
	"github.com/kotoba-ai/kotoba-assistant/internal/store"
	"github.com/kotoba-ai/kotoba-assistant/internal/timing"
)

// NewRouter wires every API route onto a gorilla/mux router.
func NewRouter(chat *services.ChatService, mem *services.MemoryService, cat *persona.Catalog, rec *timing.Recorder, st store.Store, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware(log))

	chatHandler := NewChatHandler(chat, rec)
	sessionHandler := NewSessionHandler(chat)
	memoryHandler := NewMemoryHandler(mem)
	characterHandler := NewCharacterHandler(cat)
	healthHandler := NewHealthHandler(st)

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/db", healthHandler.CheckStorageHealth).Methods("GET")

	// Chat endpoints
	router.HandleFunc("/api/chat", chatHandler.SendMessage).Methods("POST")
	router.HandleFunc("/api/chat/image", chatHandler.SendImageMessage).Methods("POST")
	router.HandleFunc("/api/chat/cancel", chatHandler.CancelPending).Methods("POST")

	// Session endpoints
	router.HandleFunc("/api/sessions", sessionHandler.ListSessions).Methods("GET")
	router.HandleFunc("/api/sessions/{sessionId}", sessionHandler.GetSession).Methods("GET")
	router.HandleFunc("/api/sessions/{sessionId}", sessionHandler.DeleteSession).Methods("DELETE")
	router.HandleFunc("/api/sessions/{sessionId}/history", sessionHandler.GetHistory).Methods("GET")
	router.HandleFunc("/api/sessions/{sessionId}/save-memory", sessionHandler.SaveMemory).Methods("POST")

	// Token accounting
	router.HandleFunc("/api/tokens/usage", chatHandler.TokenUsage).Methods("GET")
	router.HandleFunc("/api/tokens/reset", chatHandler.ResetTokenUsage).Methods("POST")

	// Response-time statistics
	router.HandleFunc("/api/stats/response-times", chatHandler.ResponseTimeStats).Methods("GET")

	// Memory catalog (search registered before the id route so the literal
	// path wins)
	router.HandleFunc("/api/memories", memoryHandler.CreateMemory).Methods("POST")
	router.HandleFunc("/api/memories", memoryHandler.ListMemories).Methods("GET")
	router.HandleFunc("/api/memories/search", memoryHandler.SearchMemories).Methods("GET")
	router.HandleFunc("/api/memories/{memoryId}/resume", sessionHandler.ResumeMemory).Methods("POST")
	router.HandleFunc("/api/memories/{memoryId}", memoryHandler.GetMemory).Methods("GET")
	router.HandleFunc("/api/memories/{memoryId}", memoryHandler.UpdateMemory).Methods("PATCH")
	router.HandleFunc("/api/memories/{memoryId}", memoryHandler.DeleteMemory).Methods("DELETE")

	// Characters
	router.HandleFunc("/api/characters", characterHandler.CreateCharacter).Methods("POST")
	router.HandleFunc("/api/characters", characterHandler.ListCharacters).Methods("GET")
	router.HandleFunc("/api/characters/{characterId}", characterHandler.GetCharacter).Methods("GET")
	router.HandleFunc("/api/characters/{characterId}/activate", characterHandler.ActivateCharacter).Methods("POST")

	return router
}
