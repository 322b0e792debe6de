package model

import "time"

// Speaker tags for conversation turns.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// ConversationTurn is one utterance in a conversation.
type ConversationTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// TokenUsageRecord is one token-accounting entry.
type TokenUsageRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Tokens    int       `json:"tokens"`
}

// GenerationRequest is an immutable description of one generation call.
// History is a snapshot taken at submission time; the worker never reads
// live ledger state.
type GenerationRequest struct {
	Prompt        string
	History       []string
	PersonaPrefix string
	Image         *ImageAttachment
}

// ImageAttachment carries inline image data for the image lane.
type ImageAttachment struct {
	Data     []byte
	MIMEType string
}

// GenerationOutcome is the single terminal result the worker emits per
// accepted request. Err is nil on success; on failure it is a
// *RetryExhaustedError wrapping the last gateway error.
type GenerationOutcome struct {
	Text     string
	Elapsed  time.Duration
	Attempts int
	Err      error
}

// Memory categories, translated from the original fixed set.
const (
	CategoryProfile  = "profile"
	CategoryProject  = "project"
	CategoryTechnote = "technote"
	CategoryChat     = "chat"
	CategoryAdvice   = "advice"
	CategoryIdea     = "idea"
	CategoryOther    = "other"
)

// Categories lists the allowed memory categories.
var Categories = []string{
	CategoryProfile, CategoryProject, CategoryTechnote,
	CategoryChat, CategoryAdvice, CategoryIdea, CategoryOther,
}

// Importance levels.
const (
	ImportanceLow    = "low"
	ImportanceMedium = "medium"
	ImportanceHigh   = "high"
)

// ImportanceLevels lists the allowed importance values.
var ImportanceLevels = []string{ImportanceLow, ImportanceMedium, ImportanceHigh}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidImportance reports whether i is one of the fixed importance levels.
func ValidImportance(i string) bool {
	for _, v := range ImportanceLevels {
		if v == i {
			return true
		}
	}
	return false
}

// Memory is a durable, named snapshot of a past conversation plus metadata.
// Snapshot is immutable after creation; edit operations touch only
// title/content/category/tags/importance.
type Memory struct {
	MemoryID      string             `json:"memoryId"`
	Title         string             `json:"title"`
	Content       string             `json:"content"`
	CharacterID   string             `json:"characterId"`
	CharacterName string             `json:"characterName"`
	Snapshot      []ConversationTurn `json:"snapshot"`
	Category      string             `json:"category"`
	Tags          []string           `json:"tags"`
	Importance    string             `json:"importance"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	LastAccessed  *time.Time         `json:"lastAccessed,omitempty"`
	AccessCount   int                `json:"accessCount"`
}

// MemoryUpdate carries the mutable fields of a memory. Nil means unchanged.
type MemoryUpdate struct {
	Title      *string
	Content    *string
	Category   *string
	Tags       []string
	Importance *string
}

// MemorySearchRequest holds ANDed search filters. Keyword matches
// case-insensitively against title, content, character name and tags.
type MemorySearchRequest struct {
	Keyword     string
	CharacterID string
	Category    string
	Importance  string
}
