package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// GenAIClient talks to a Gemini-style generateContent REST endpoint.
type GenAIClient struct {
	client *resty.Client
	model  string
	apiKey string
	log    zerolog.Logger
}

// NewGenAIClient builds a client for the given base URL and model name.
func NewGenAIClient(baseURL, modelName, apiKey string, log zerolog.Logger) *GenAIClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(2 * time.Minute)
	return &GenAIClient{client: c, model: modelName, apiKey: apiKey, log: log}
}

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *inlineDataPart `json:"inlineData,omitempty"`
}

type inlineDataPart struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Invoke sends one generateContent call. History and the optional persona
// prefix are flattened into the prompt text the way the conversation is
// rendered to the model ("User:"/"Assistant:" lines).
func (g *GenAIClient) Invoke(ctx context.Context, req model.GenerationRequest) (*Completion, error) {
	parts := []generatePart{{Text: buildPromptText(req)}}
	if req.Image != nil {
		parts = append(parts, generatePart{InlineData: &inlineDataPart{
			MIMEType: req.Image.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Image.Data),
		}})
	}
	body := generateRequest{Contents: []generateContent{{Parts: parts}}}

	var out generateResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(&body).
		SetResult(&out).
		// Decode the body as JSON even when the server mislabels the content type.
		ForceContentType("application/json").
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", g.model))
	if err != nil {
		return nil, NewNetworkError(err)
	}
	if resp.IsError() {
		g.log.Warn().Int("status", resp.StatusCode()).Msg("model API error response")
		return nil, NewHTTPError(resp.StatusCode(), resp.String())
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, &Error{Kind: KindUnknown, Underlying: fmt.Errorf("model API returned no candidates")}
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return &Completion{Text: strings.TrimSpace(sb.String())}, nil
}

// buildPromptText renders persona prefix, history and the new user prompt
// into the flat conversation transcript the model consumes.
func buildPromptText(req model.GenerationRequest) string {
	lines := make([]string, 0, len(req.History)+2)
	if req.PersonaPrefix != "" {
		lines = append(lines, "System: "+req.PersonaPrefix)
	}
	lines = append(lines, req.History...)
	user := "User: " + req.Prompt
	if req.Image != nil {
		user += "\n\n[image attached]"
	}
	lines = append(lines, user)
	return strings.Join(lines, "\n")
}
