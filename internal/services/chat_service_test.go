package services

import (
	"context"
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
	"github.com/kotoba-ai/kotoba-assistant/internal/session"
	"github.com/kotoba-ai/kotoba-assistant/internal/store/sqlite"
	"github.com/kotoba-ai/kotoba-assistant/internal/worker"
)

type echoGateway struct {
	err  error
	last model.GenerationRequest
}

func (g *echoGateway) Invoke(ctx context.Context, req model.GenerationRequest) (*gateway.Completion, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Completion{Text: "echo: " + req.Prompt}, nil
}

func newTestChatService(t *testing.T, gw gateway.Gateway) (*ChatService, *dispatcher.Dispatcher) {
	t.Helper()
	st, err := sqlite.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	d := dispatcher.New(gw, worker.Config{MaxRetries: 3, BaseWait: time.Millisecond}, nil, zerolog.Nop())
	t.Cleanup(d.Shutdown)

	mem := NewMemoryService(st, 1000, zerolog.Nop())
	cat := persona.NewCatalog("", zerolog.Nop())
	return NewChatService(session.NewRegistry(), d, cat, mem, zerolog.Nop()), d
}

func TestSendMessageCreatesSessionAndRecords(t *testing.T) {
	gw := &echoGateway{}
	svc, _ := newTestChatService(t, gw)

	res, err := svc.SendMessage(context.Background(), "s1", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", res.Text)

	sess, err := svc.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Ledger.TurnCount())
	assert.Equal(t, 1, sess.MessageCount())
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	svc, _ := newTestChatService(t, &echoGateway{})
	_, err := svc.SendMessage(context.Background(), "s1", "", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFailureLeavesSessionUnmutated(t *testing.T) {
	gw := &echoGateway{err: gateway.NewHTTPError(503, "down")}
	svc, _ := newTestChatService(t, gw)

	_, err := svc.SendMessage(context.Background(), "s1", "", "hello")
	require.Error(t, err)

	sess, err := svc.Session("s1")
	require.NoError(t, err)
	assert.Zero(t, sess.Ledger.TurnCount())
	assert.Zero(t, sess.MessageCount())
}

func TestSaveAndResumeMemory(t *testing.T) {
	svc, _ := newTestChatService(t, &echoGateway{})
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "s1", "", "remember this")
	require.NoError(t, err)

	mem, err := svc.SaveMemory(ctx, "s1", "", "", model.CategoryChat, nil, model.ImportanceHigh)
	require.NoError(t, err)
	// Title defaults to the conversation summary.
	assert.Equal(t, "remember this", mem.Title)
	require.Len(t, mem.Snapshot, 2)

	// Resume into a fresh session.
	restored, err := svc.ResumeMemory(ctx, "s2", mem.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, mem.MemoryID, restored.MemoryID)

	turns, err := svc.History("s2")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "remember this", turns[0].Text)
}

func TestSaveMemoryRequiresConversation(t *testing.T) {
	svc, _ := newTestChatService(t, &echoGateway{})
	svc.sessions.GetOrCreate("empty")

	_, err := svc.SaveMemory(context.Background(), "empty", "t", "", "", nil, "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestTokenUsageSummaryAndReset(t *testing.T) {
	svc, _ := newTestChatService(t, &echoGateway{})
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "s1", "", "one two three")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "s2", "", "four")
	require.NoError(t, err)

	usage := svc.TokenUsageSummary(7)
	assert.Equal(t, 2, usage.Records)
	assert.Greater(t, usage.Total, 0)
	require.Len(t, usage.Daily, 1)
	assert.Equal(t, usage.Total, usage.Daily[0].Tokens)

	discarded := svc.ResetTokenUsage()
	assert.Equal(t, usage.Total, discarded)
	assert.Zero(t, svc.TokenUsageSummary(7).Total)
}

func TestActivePersonaPrefixesRequests(t *testing.T) {
	gw := &echoGateway{}
	svc, _ := newTestChatService(t, gw)

	p := persona.NewPersona("Yuki")
	p.Personality = "direct"
	svc.personas.Create(p)

	_, err := svc.SendMessage(context.Background(), "s1", "", "hi")
	require.NoError(t, err)
	assert.Contains(t, gw.last.PersonaPrefix, `"Yuki"`)

	sess, err := svc.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, p.CharacterID, sess.Character())
}
