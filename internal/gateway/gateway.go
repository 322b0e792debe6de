// Package gateway wraps a single call to the external generative-language
// API. Retry policy lives in the worker, never here.
package gateway

import (
	"context"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// Completion is the model's answer to one generation request.
type Completion struct {
	Text string
}

// Gateway issues exactly one model invocation per call. Failures carry a
// *Error classification; callers must not assume any retry happened.
type Gateway interface {
	Invoke(ctx context.Context, req model.GenerationRequest) (*Completion, error)
}
