// Package dispatcher turns caller prompts into generation requests, routes
// them to the text or image lane, and applies the single ledger mutation a
// successful outcome earns.
package dispatcher

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/gateway"
	"github.com/kotoba-ai/kotoba-assistant/internal/ledger"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/timing"
	"github.com/kotoba-ai/kotoba-assistant/internal/worker"
)

// ImageTokenSurcharge is the fixed token estimate added for a processed image.
const ImageTokenSurcharge = 258

// Result is the caller-facing product of a successful generation.
type Result struct {
	Text       string
	TokensUsed int
	Elapsed    time.Duration
}

// Dispatcher owns the two worker lanes and the post-success bookkeeping.
type Dispatcher struct {
	text   *worker.Worker
	image  *worker.Worker
	timing *timing.Recorder
	log    zerolog.Logger
}

// New starts both lanes against the given gateway.
func New(gw gateway.Gateway, cfg worker.Config, rec *timing.Recorder, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		text:   worker.New(worker.LaneText, gw, cfg, log),
		image:  worker.New(worker.LaneImage, gw, cfg, log),
		timing: rec,
		log:    log,
	}
}

// Submit runs one prompt through the appropriate lane and awaits the
// terminal outcome. On success the ledger receives exactly one atomic
// mutation (user turn, assistant turn, token record); on failure it
// receives none and the returned error classifies the cause.
func (d *Dispatcher) Submit(ctx context.Context, led *ledger.Ledger, prompt, personaPrefix string, image *model.ImageAttachment) (*Result, error) {
	req := model.GenerationRequest{
		Prompt:        prompt,
		History:       led.HistoryLines(),
		PersonaPrefix: personaPrefix,
		Image:         image,
	}

	lane := d.text
	if image != nil {
		lane = d.image
	}
	pending, err := lane.Submit(req)
	if err != nil {
		return nil, err
	}
	out, err := pending.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if out.Err != nil {
		d.log.Error().Err(out.Err).Int("attempts", out.Attempts).
			Str("kind", gateway.KindOf(out.Err).String()).Msg("generation failed")
		return nil, out.Err
	}

	tokens := EstimateTokens(prompt, out.Text, image != nil)
	userTurn := prompt
	if image != nil {
		userTurn += " [image attached]"
	}
	led.RecordExchange(userTurn, out.Text, tokens)

	if d.timing != nil {
		d.timing.Add(out.Elapsed, len(prompt), len(out.Text))
	}
	return &Result{Text: out.Text, TokensUsed: tokens, Elapsed: out.Elapsed}, nil
}

// CancelPending clears not-yet-accepted requests from the named lane, or
// from both lanes for an empty name.
func (d *Dispatcher) CancelPending(lane worker.Lane) {
	switch lane {
	case worker.LaneText:
		d.text.CancelPending()
	case worker.LaneImage:
		d.image.CancelPending()
	default:
		d.text.CancelPending()
		d.image.CancelPending()
	}
}

// Shutdown stops both lanes and waits for their loops to exit.
func (d *Dispatcher) Shutdown() {
	d.text.Stop()
	d.image.Stop()
}

// EstimateTokens approximates token spend from word counts, plus the fixed
// surcharge when an image was processed.
func EstimateTokens(userText, responseText string, image bool) int {
	n := len(strings.Fields(userText)) + len(strings.Fields(responseText))
	if image {
		n += ImageTokenSurcharge
	}
	return n
}

// UserMessage maps a terminal failure to the displayable message category.
// The mapping is total: every kind lands on exactly one message.
func UserMessage(err error) string {
	switch gateway.KindOf(err) {
	case gateway.KindRateLimited:
		return "The model is rate limited right now. Please wait a moment and try again."
	case gateway.KindAuth:
		return "Authentication with the model service is required. Check the API key."
	case gateway.KindInvalidInput:
		return "The request was rejected as invalid. Adjust the prompt and retry."
	case gateway.KindServiceUnavailable, gateway.KindNetwork:
		return "Could not reach the model service. Check connectivity and try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
