// Package persona manages the assistant's configurable characters and the
// system-prompt prefix built from them.
package persona

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Persona is a fully user-configurable character definition.
type Persona struct {
	CharacterID        string    `json:"characterId"`
	Name               string    `json:"name"`
	Personality        string    `json:"personality"`
	SpeakingStyle      string    `json:"speakingStyle"`
	Specialization     string    `json:"specialization"`
	ResponseStyle      string    `json:"responseStyle"`
	Background         string    `json:"background"`
	Constraints        string    `json:"constraints"`
	Catchphrase        string    `json:"catchphrase"`
	Greeting           string    `json:"greeting"`
	CustomInstructions string    `json:"customInstructions"`
	IsDefault          bool      `json:"isDefault"`
	UsageCount         int       `json:"usageCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// NewPersona creates a persona with a fresh id and timestamps.
func NewPersona(name string) *Persona {
	now := time.Now().UTC()
	return &Persona{
		CharacterID: uuid.New().String()[:8],
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// BuildSystemPrompt assembles the persona prefix from whichever fields the
// user filled in. Empty fields contribute nothing.
func (p *Persona) BuildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the character \"" + p.Name + "\".")

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		b.WriteString("\n\n[" + title + "]\n" + body)
	}
	section("Personality", p.Personality)
	section("Speaking style", p.SpeakingStyle)
	section("Specialization", p.Specialization)
	section("Response style", p.ResponseStyle)
	section("Background", p.Background)
	section("Constraints", p.Constraints)
	section("Catchphrase", p.Catchphrase)
	section("Greeting", p.Greeting)
	section("Additional instructions", p.CustomInstructions)
	return b.String()
}
