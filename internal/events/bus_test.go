package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/service/speech"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestBusDeliversSessionEventsInOrder(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, bus.PublishTurn("s1", 1, chat.UserTurn("Tell me about nursing")))
	require.NoError(t, bus.PublishTurn("s1", 2, chat.BotTurn("Nursing is...")))
	require.NoError(t, bus.PublishSpeechToggled("s1", true))
	require.NoError(t, bus.PublishSpeech("s1", speech.Clip{Text: "Nursing is...", Audio: []byte("mp3"), Format: "mp3"}))

	first := receive(t, ch)
	assert.Equal(t, TypeTurn, first.Type)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, chat.UserTurn("Tell me about nursing"), *first.Turn)

	second := receive(t, ch)
	assert.Equal(t, 2, second.Index)
	assert.Equal(t, chat.SenderBot, second.Turn.Sender)

	toggled := receive(t, ch)
	assert.Equal(t, TypeSpeechToggled, toggled.Type)
	require.NotNil(t, toggled.Enabled)
	assert.True(t, *toggled.Enabled)

	spoken := receive(t, ch)
	assert.Equal(t, TypeSpeech, spoken.Type)
	assert.Equal(t, []byte("mp3"), spoken.Speech.Audio)
}

func TestBusIsolatesSessions(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, bus.PublishTurn("s2", 1, chat.UserTurn("other")))
	require.NoError(t, bus.PublishSessionEnded("s1"))

	ev := receive(t, ch)
	assert.Equal(t, TypeSessionEnded, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)
}

func TestPublishWithoutListeners(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	assert.NoError(t, bus.PublishTurn("nobody", 1, chat.UserTurn("hello")))
}
