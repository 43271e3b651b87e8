package chat

import "time"

// Session captures a transient anonymous conversation, one per page view.
type Session struct {
	ID            string    `json:"id"`
	PersonaID     string    `json:"personaId"`
	SpeechEnabled bool      `json:"speechEnabled"`
	CreatedAt     time.Time `json:"createdAt"`
}
