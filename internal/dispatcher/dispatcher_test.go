package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotoba-ai/kotoba-assistant/internal/gateway"
	"github.com/kotoba-ai/kotoba-assistant/internal/ledger"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/worker"
)

type stubGateway struct {
	reply string
	err   error
	last  model.GenerationRequest
}

func (g *stubGateway) Invoke(ctx context.Context, req model.GenerationRequest) (*gateway.Completion, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Completion{Text: g.reply}, nil
}

func newTestDispatcher(gw gateway.Gateway) *Dispatcher {
	return New(gw, worker.Config{MaxRetries: 3, BaseWait: time.Millisecond}, nil, zerolog.Nop())
}

func TestSubmitRecordsExchangeOnSuccess(t *testing.T) {
	gw := &stubGateway{reply: "two words"}
	d := newTestDispatcher(gw)
	defer d.Shutdown()

	led := ledger.New()
	res, err := d.Submit(context.Background(), led, "hello there friend", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "two words", res.Text)
	assert.Equal(t, 5, res.TokensUsed) // 3 prompt words + 2 reply words

	turns := led.History()
	require.Len(t, turns, 2)
	assert.Equal(t, "hello there friend", turns[0].Text)
	assert.Equal(t, "two words", turns[1].Text)
	assert.Equal(t, 5, led.CurrentTotal())
}

func TestSubmitLeavesLedgerUntouchedOnFailure(t *testing.T) {
	gw := &stubGateway{err: gateway.NewHTTPError(429, "limit")}
	d := newTestDispatcher(gw)
	defer d.Shutdown()

	led := ledger.New()
	_, err := d.Submit(context.Background(), led, "hi", "", nil)
	require.Error(t, err)
	assert.Equal(t, gateway.KindRateLimited, gateway.KindOf(err))

	assert.Zero(t, led.TurnCount())
	assert.Zero(t, led.CurrentTotal())
	assert.Empty(t, led.Usage())
}

func TestImageSubmissionAddsSurchargeAndMarker(t *testing.T) {
	gw := &stubGateway{reply: "ok"}
	d := newTestDispatcher(gw)
	defer d.Shutdown()

	led := ledger.New()
	img := &model.ImageAttachment{Data: []byte{1, 2, 3}, MIMEType: "image/png"}
	res, err := d.Submit(context.Background(), led, "look", "", img)
	require.NoError(t, err)
	assert.Equal(t, 1+1+ImageTokenSurcharge, res.TokensUsed)

	turns := led.History()
	require.Len(t, turns, 2)
	assert.Equal(t, "look [image attached]", turns[0].Text)
}

func TestSubmitSnapshotsHistoryBeforeGeneration(t *testing.T) {
	gw := &stubGateway{reply: "second"}
	d := newTestDispatcher(gw)
	defer d.Shutdown()

	led := ledger.New()
	led.RecordExchange("first question", "first answer", 2)

	_, err := d.Submit(context.Background(), led, "second question", "prefix", nil)
	require.NoError(t, err)

	require.Len(t, gw.last.History, 2)
	assert.Equal(t, "User: first question", gw.last.History[0])
	assert.Equal(t, "prefix", gw.last.PersonaPrefix)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 4, EstimateTokens("one two", "three four", false))
	assert.Equal(t, 4+ImageTokenSurcharge, EstimateTokens("one two", "three four", true))
	assert.Equal(t, 0, EstimateTokens("", "", false))
}

func TestUserMessageIsTotal(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{gateway.NewHTTPError(429, "x"), "rate limited"},
		{gateway.NewHTTPError(401, "x"), "Authentication"},
		{gateway.NewHTTPError(400, "x"), "invalid"},
		{gateway.NewHTTPError(503, "x"), "Could not reach"},
		{gateway.NewNetworkError(assert.AnError), "Could not reach"},
		{assert.AnError, "unexpected error"},
	}
	for _, tc := range cases {
		assert.Contains(t, UserMessage(tc.err), tc.want)
	}
}
