package speech

import (
	"strings"
	"unicode"
)

// Fixed voice shaping applied to every mentor reply.
const (
	DefaultRate  float32 = 1.05
	DefaultPitch float32 = 1.3
)

// emojiRanges covers emoticons, miscellaneous symbols and pictographs,
// transport and map symbols, miscellaneous symbols and dingbats.
var emojiRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x26FF, Stride: 1},
		{Lo: 0x2700, Hi: 0x27BF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1},
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1},
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1},
	},
}

// StripEmoji removes emoji runes and trims surrounding whitespace.
func StripEmoji(text string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.Is(emojiRanges, r) {
			return -1
		}
		return r
	}, text))
}

// Utterance is a request to speak text for a session.
type Utterance struct {
	SessionID string
	Text      string
	Voice     string
	Rate      float32
	Pitch     float32
}

// NewUtterance strips emoji from text and applies the default rate and
// pitch. ok is false when nothing speakable remains.
func NewUtterance(sessionID, text, voice string) (u Utterance, ok bool) {
	clean := StripEmoji(text)
	if clean == "" {
		return Utterance{}, false
	}
	return Utterance{
		SessionID: sessionID,
		Text:      clean,
		Voice:     voice,
		Rate:      DefaultRate,
		Pitch:     DefaultPitch,
	}, true
}
