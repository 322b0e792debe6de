package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotoba-ai/kotoba-assistant/internal/dispatcher"
	"github.com/kotoba-ai/kotoba-assistant/internal/gateway"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/persona"
	"github.com/kotoba-ai/kotoba-assistant/internal/services"
	"github.com/kotoba-ai/kotoba-assistant/internal/session"
	"github.com/kotoba-ai/kotoba-assistant/internal/store/sqlite"
	"github.com/kotoba-ai/kotoba-assistant/internal/timing"
	"github.com/kotoba-ai/kotoba-assistant/internal/worker"
)

type fakeGateway struct {
	err error
}

func (g *fakeGateway) Invoke(ctx context.Context, req model.GenerationRequest) (*gateway.Completion, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Completion{Text: "reply to: " + req.Prompt}, nil
}

func newTestServer(t *testing.T, gw gateway.Gateway) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()

	st, err := sqlite.NewStorage(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rec := timing.NewRecorder(timing.Config{}, log)
	cat := persona.NewCatalog("", log)
	disp := dispatcher.New(gw, worker.Config{MaxRetries: 3, BaseWait: time.Millisecond}, rec, log)
	t.Cleanup(disp.Shutdown)

	memSvc := services.NewMemoryService(st, 1000, log)
	chatSvc := services.NewChatService(session.NewRegistry(), disp, cat, memSvc, log)

	srv := httptest.NewServer(NewRouter(chatSvc, memSvc, cat, rec, st, log))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestChatRoundTrip(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"sessionId": "s1", "message": "hello",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		SessionID  string `json:"sessionId"`
		Response   string `json:"response"`
		TokensUsed int    `json:"tokensUsed"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, "reply to: hello", out.Response)
	assert.Greater(t, out.TokensUsed, 0)

	// History reflects the exchange.
	histResp, err := http.Get(srv.URL + "/api/sessions/s1/history")
	require.NoError(t, err)
	var hist struct {
		Count   int                      `json:"count"`
		History []model.ConversationTurn `json:"history"`
	}
	decode(t, histResp, &hist)
	assert.Equal(t, 2, hist.Count)
}

func TestChatRateLimitMapsTo429(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{err: gateway.NewHTTPError(429, "limit")})

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestChatConnectivityMapsTo502(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{err: gateway.NewNetworkError(assert.AnError)})

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestImageChatRequiresValidBase64(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/chat/image", map[string]string{
		"message": "look", "imageData": "!!not-base64!!",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/chat/image", map[string]string{
		"message":   "look",
		"imageData": base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
		"mimeType":  "image/png",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		TokensUsed int `json:"tokensUsed"`
	}
	decode(t, resp, &out)
	assert.Greater(t, out.TokensUsed, dispatcher.ImageTokenSurcharge)
}

func TestCancelValidatesLane(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/chat/cancel", map[string]string{"lane": "bogus"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/chat/cancel", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMemoryCRUDOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/memories", map[string]interface{}{
		"title": "note", "content": "body", "category": "technote", "tags": []string{"go"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.Memory
	decode(t, resp, &created)
	require.NotEmpty(t, created.MemoryID)

	getResp, err := http.Get(srv.URL + "/api/memories/" + created.MemoryID)
	require.NoError(t, err)
	var got model.Memory
	decode(t, getResp, &got)
	assert.Equal(t, "note", got.Title)
	assert.Equal(t, 1, got.AccessCount)

	searchResp, err := http.Get(srv.URL + "/api/memories/search?keyword=NOTE")
	require.NoError(t, err)
	var search struct {
		Count int `json:"count"`
	}
	decode(t, searchResp, &search)
	assert.Equal(t, 1, search.Count)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/memories/"+created.MemoryID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	missing, err := http.Get(srv.URL + "/api/memories/" + created.MemoryID)
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestMemoryValidationMapsTo400(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/memories", map[string]string{
		"title": "x", "category": "bogus",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveAndResumeOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"sessionId": "s1", "message": "save me",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saveResp := postJSON(t, srv.URL+"/api/sessions/s1/save-memory", map[string]string{
		"category": "chat", "importance": "high",
	})
	require.Equal(t, http.StatusCreated, saveResp.StatusCode)
	var mem model.Memory
	decode(t, saveResp, &mem)
	assert.Equal(t, "save me", mem.Title)

	resumeResp := postJSON(t, srv.URL+"/api/memories/"+mem.MemoryID+"/resume", map[string]string{
		"sessionId": "s2",
	})
	require.Equal(t, http.StatusOK, resumeResp.StatusCode)
	var resumed struct {
		Turns int `json:"turns"`
	}
	decode(t, resumeResp, &resumed)
	assert.Equal(t, 2, resumed.Turns)
}

func TestCharacterLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/characters", map[string]string{
		"name": "Yuki", "personality": "calm",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created persona.Persona
	decode(t, resp, &created)
	require.NotEmpty(t, created.CharacterID)

	actResp := postJSON(t, srv.URL+"/api/characters/"+created.CharacterID+"/activate", map[string]string{})
	require.Equal(t, http.StatusOK, actResp.StatusCode)
	var activated persona.Persona
	decode(t, actResp, &activated)
	assert.Equal(t, 1, activated.UsageCount)

	listResp, err := http.Get(srv.URL + "/api/characters")
	require.NoError(t, err)
	var list struct {
		Count    int    `json:"count"`
		ActiveID string `json:"activeId"`
	}
	decode(t, listResp, &list)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, created.CharacterID, list.ActiveID)
}

func TestTokenUsageEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "count my tokens"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	usageResp, err := http.Get(srv.URL + "/api/tokens/usage?days=7")
	require.NoError(t, err)
	var usage services.TokenUsage
	decode(t, usageResp, &usage)
	assert.Greater(t, usage.Total, 0)
	assert.Equal(t, 1, usage.Records)

	resetResp := postJSON(t, srv.URL+"/api/tokens/reset", map[string]string{})
	resetResp.Body.Close()
	require.Equal(t, http.StatusOK, resetResp.StatusCode)

	usageResp, err = http.Get(srv.URL + "/api/tokens/usage")
	require.NoError(t, err)
	decode(t, usageResp, &usage)
	assert.Zero(t, usage.Total)
}

func TestResponseTimeStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "time me"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	statsResp, err := http.Get(srv.URL + "/api/stats/response-times?days=7")
	require.NoError(t, err)
	var stats timing.Stats
	decode(t, statsResp, &stats)
	assert.Equal(t, 1, stats.Count)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	for _, path := range []string{"/api/health", "/api/health/db"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp, err := http.Get(srv.URL + "/api/sessions/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
