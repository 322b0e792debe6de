package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/dispatcher"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
	"github.com/kotoba-ai/kotoba-assistant/internal/persona"
	"github.com/kotoba-ai/kotoba-assistant/internal/session"
	"github.com/kotoba-ai/kotoba-assistant/internal/worker"
)

// ChatService drives conversations: it resolves the session and persona,
// submits prompts to the dispatcher, and exposes the session-scoped
// operations (history, save-to-memory, resume, token accounting).
type ChatService struct {
	sessions *session.Registry
	dispatch *dispatcher.Dispatcher
	personas *persona.Catalog
	memories *MemoryService
	log      zerolog.Logger
}

// NewChatService wires the conversation pipeline together.
func NewChatService(reg *session.Registry, d *dispatcher.Dispatcher, cat *persona.Catalog, mem *MemoryService, log zerolog.Logger) *ChatService {
	return &ChatService{sessions: reg, dispatch: d, personas: cat, memories: mem, log: log}
}

// SendMessage runs one text prompt through the text lane for the given
// session. A non-empty characterID overrides the active persona for this
// message.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, characterID, text string) (*dispatcher.Result, error) {
	return s.send(ctx, sessionID, characterID, text, nil)
}

// SendImageMessage runs one prompt with an attached image through the
// image lane.
func (s *ChatService) SendImageMessage(ctx context.Context, sessionID, characterID, text string, img *model.ImageAttachment) (*dispatcher.Result, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, errors.Wrap(model.ErrValidation, "image data is required")
	}
	return s.send(ctx, sessionID, characterID, text, img)
}

func (s *ChatService) send(ctx context.Context, sessionID, characterID, text string, img *model.ImageAttachment) (*dispatcher.Result, error) {
	if text == "" {
		return nil, errors.Wrap(model.ErrValidation, "message text is required")
	}
	sess := s.sessions.GetOrCreate(sessionID)

	p := s.personas.Active()
	if characterID != "" {
		override, err := s.personas.Get(characterID)
		if err != nil {
			return nil, errors.Wrapf(err, "character %s", characterID)
		}
		p = override
	}
	var prefix string
	if p != nil {
		prefix = p.BuildSystemPrompt()
		sess.SetCharacter(p.CharacterID)
	}

	res, err := s.dispatch.Submit(ctx, sess.Ledger, text, prefix, img)
	if err != nil {
		return nil, err
	}
	sess.Touch()
	return res, nil
}

// CancelPending clears queued-but-unaccepted requests from the named lane,
// or from both lanes when lane is empty.
func (s *ChatService) CancelPending(lane worker.Lane) {
	s.dispatch.CancelPending(lane)
}

// Session returns one live session.
func (s *ChatService) Session(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

// Sessions lists live sessions, newest first.
func (s *ChatService) Sessions() []*session.Session {
	return s.sessions.List()
}

// DeleteSession discards a session and its ledger.
func (s *ChatService) DeleteSession(id string) error {
	return s.sessions.Delete(id)
}

// History returns the conversation turns of a session.
func (s *ChatService) History(id string) ([]model.ConversationTurn, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Ledger.History(), nil
}

// SaveMemory snapshots the session's conversation into the memory catalog.
// An empty title falls back to the ledger's summary line.
func (s *ChatService) SaveMemory(ctx context.Context, sessionID, title, content, category string, tags []string, importance string) (*model.Memory, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot := sess.Ledger.History()
	if len(snapshot) == 0 {
		return nil, errors.Wrap(model.ErrValidation, "session has no conversation to save")
	}
	if title == "" {
		title = sess.Ledger.Summary()
	}

	mem := &model.Memory{
		Title:      title,
		Content:    content,
		Snapshot:   snapshot,
		Category:   category,
		Tags:       tags,
		Importance: importance,
	}
	if p := s.personas.Active(); p != nil {
		mem.CharacterID = p.CharacterID
		mem.CharacterName = p.Name
	}
	return s.memories.Create(ctx, mem)
}

// ResumeMemory replaces the session's history with a stored snapshot. The
// memory's access counter is bumped by the lookup.
func (s *ChatService) ResumeMemory(ctx context.Context, sessionID, memoryID string) (*model.Memory, error) {
	mem, err := s.memories.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	sess := s.sessions.GetOrCreate(sessionID)
	sess.Ledger.ReplaceHistory(mem.Snapshot)
	s.log.Info().Str("sessionId", sessionID).Str("memoryId", memoryID).
		Int("turns", len(mem.Snapshot)).Msg("conversation resumed from memory")
	return mem, nil
}

// DayUsage is one day's aggregated token spend.
type DayUsage struct {
	Date   string `json:"date"`
	Tokens int    `json:"tokens"`
}

// TokenUsage is the aggregate token accounting across all live sessions.
type TokenUsage struct {
	Total      int        `json:"totalTokens"`
	Records    int        `json:"recordCount"`
	PeriodDays int        `json:"periodDays"`
	Daily      []DayUsage `json:"daily"`
}

// TokenUsageSummary aggregates token records across all sessions over the
// past `days` days, bucketed by UTC date.
func (s *ChatService) TokenUsageSummary(days int) TokenUsage {
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -days)

	buckets := make(map[string]int)
	out := TokenUsage{PeriodDays: days}
	for _, sess := range s.sessions.List() {
		for _, rec := range sess.Ledger.UsageBetween(start, now.Add(time.Second)) {
			out.Total += rec.Tokens
			out.Records++
			buckets[rec.Timestamp.Format("2006-01-02")] += rec.Tokens
		}
	}
	for d := 0; d < days; d++ {
		date := now.AddDate(0, 0, -d).Format("2006-01-02")
		if tokens, ok := buckets[date]; ok {
			out.Daily = append(out.Daily, DayUsage{Date: date, Tokens: tokens})
		}
	}
	return out
}

// ResetTokenUsage clears the token accounting of every live session and
// returns the total that was discarded.
func (s *ChatService) ResetTokenUsage() int {
	var discarded int
	for _, sess := range s.sessions.List() {
		discarded += sess.Ledger.CurrentTotal()
		sess.Ledger.ResetTokenUsage()
	}
	s.log.Info().Int("discardedTokens", discarded).Msg("token usage reset")
	return discarded
}
