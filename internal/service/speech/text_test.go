package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripEmoji(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "Great job! 🎉🚀", want: "Great job!"},
		{in: "🎉", want: ""},
		{in: "Sunny ☀ day ✨", want: "Sunny  day"},
		{in: "plain text", want: "plain text"},
		{in: "  spaced  ", want: "spaced"},
		{in: "line one\nline two 🚀", want: "line one\nline two"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StripEmoji(tc.in), tc.in)
	}
}

func TestNewUtterance(t *testing.T) {
	u, ok := NewUtterance("s1", "Nursing is great! 🩺💖", "voice")
	assert.True(t, ok)
	assert.Equal(t, "Nursing is great! 🩺", u.Text)
	assert.Equal(t, DefaultRate, u.Rate)
	assert.Equal(t, DefaultPitch, u.Pitch)
	assert.Equal(t, "s1", u.SessionID)

	_, ok = NewUtterance("s1", "🎉🚀", "voice")
	assert.False(t, ok)
}
