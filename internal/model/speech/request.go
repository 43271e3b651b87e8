package speech

// TTSRequest asks the synthesizer to render text as audio.
type TTSRequest struct {
	SessionID string  `json:"sessionId"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Rate      float32 `json:"rate"`  // speed multiplier, 1.0 is normal
	Pitch     float32 `json:"pitch"` // pitch multiplier, 1.0 is normal
	Format    string  `json:"format"`
	Language  string  `json:"language"`
}
