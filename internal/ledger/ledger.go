// Package ledger holds the live conversation and token-accounting state
// for one session. All mutations take the ledger lock, so the token total
// always equals the sum of the usage records that survived the last reset.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// Ledger is the mutable record of message history and token usage for a
// single conversation. Safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	turns []model.ConversationTurn
	usage []model.TokenUsageRecord
	total int
}

// New returns an empty ledger.
func New() *Ledger { return &Ledger{} }

// AppendTurn appends one conversation turn.
func (l *Ledger) AppendTurn(speaker, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, model.ConversationTurn{Speaker: speaker, Text: text})
}

// RecordExchange appends the user turn, the assistant turn, and the token
// usage record for one completed generation under one lock acquisition.
// No reader can observe the user turn without the assistant turn.
func (l *Ledger) RecordExchange(userText, assistantText string, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns,
		model.ConversationTurn{Speaker: model.SpeakerUser, Text: userText},
		model.ConversationTurn{Speaker: model.SpeakerAssistant, Text: assistantText},
	)
	l.usage = append(l.usage, model.TokenUsageRecord{Timestamp: time.Now().UTC(), Tokens: tokens})
	l.total += tokens
}

// ReplaceHistory swaps the whole history for a memory snapshot. This is
// the explicit resume mutation, distinct from append.
func (l *Ledger) ReplaceHistory(snapshot []model.ConversationTurn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = make([]model.ConversationTurn, len(snapshot))
	copy(l.turns, snapshot)
}

// History returns a copy of the conversation turns.
func (l *Ledger) History() []model.ConversationTurn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ConversationTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

// HistoryLines renders the history as "User:"/"Assistant:" prefixed lines,
// the form the model gateway consumes.
func (l *Ledger) HistoryLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.turns))
	for _, t := range l.turns {
		prefix := "User: "
		if t.Speaker == model.SpeakerAssistant {
			prefix = "Assistant: "
		}
		out = append(out, prefix+t.Text)
	}
	return out
}

// TurnCount returns the number of turns in the history.
func (l *Ledger) TurnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// AddTokenUsage appends a usage record and raises the total.
func (l *Ledger) AddTokenUsage(tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usage = append(l.usage, model.TokenUsageRecord{Timestamp: time.Now().UTC(), Tokens: tokens})
	l.total += tokens
}

// ResetTokenUsage clears the total and the record list together. An append
// serialized before the reset is cleared with it; one serialized after
// survives in full.
func (l *Ledger) ResetTokenUsage() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usage = nil
	l.total = 0
}

// CurrentTotal returns the running token total since the last reset.
func (l *Ledger) CurrentTotal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Usage returns a copy of the usage records since the last reset.
func (l *Ledger) Usage() []model.TokenUsageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.TokenUsageRecord, len(l.usage))
	copy(out, l.usage)
	return out
}

// UsageBetween returns the records with start <= Timestamp < end.
func (l *Ledger) UsageBetween(start, end time.Time) []model.TokenUsageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.TokenUsageRecord
	for _, r := range l.usage {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out
}

// Summary renders the first user turn as a short conversation title,
// falling back to "Conversation" for an empty history.
func (l *Ledger) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.turns {
		if t.Speaker == model.SpeakerUser {
			s := strings.TrimSpace(t.Text)
			if r := []rune(s); len(r) > 60 {
				s = string(r[:60])
			}
			if s != "" {
				return s
			}
		}
	}
	return "Conversation"
}
