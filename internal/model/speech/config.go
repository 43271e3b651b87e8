package speech

// SpeechConfig holds the Volcengine TTS settings.
type SpeechConfig struct {
	AppID       string `json:"appId"`
	AccessToken string `json:"accessToken"`
	BaseURL     string `json:"baseUrl"` // WebSocket endpoint override

	TTSVoice    string `json:"ttsVoice"`
	TTSLanguage string `json:"ttsLanguage"`
	TTSFormat   string `json:"ttsFormat"`

	Timeout int `json:"timeout"` // seconds
}
