// Package events fans conversation changes out to live session listeners
// over an in-memory watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/service/speech"
)

// Type names an event.
type Type string

const (
	TypeTurn          Type = "turn"
	TypeSpeech        Type = "speech"
	TypeSpeechToggled Type = "speech_toggled"
	TypeSessionEnded  Type = "session_ended"
)

// Event is the JSON payload carried on a session topic.
type Event struct {
	Type      Type         `json:"type"`
	SessionID string       `json:"sessionId"`
	Index     int          `json:"index,omitempty"`
	Turn      *chat.Turn   `json:"turn,omitempty"`
	Speech    *speech.Clip `json:"speech,omitempty"`
	Enabled   *bool        `json:"enabled,omitempty"`
}

// Bus publishes session events and hands out per-listener subscriptions.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

// NewBus creates an in-memory bus. Publishing waits for every current
// listener to receive the event, so a session's events arrive in order.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, NewZapLoggerAdapter(logger.Named("watermill")))

	return &Bus{pubsub: pubsub, logger: logger}
}

func topicFor(sessionID string) string {
	return "conversation." + sessionID
}

// PublishTurn announces the turn stored at index.
func (b *Bus) PublishTurn(sessionID string, index int, turn chat.Turn) error {
	return b.publish(Event{Type: TypeTurn, SessionID: sessionID, Index: index, Turn: &turn})
}

// PublishSpeech delivers a synthesized clip.
func (b *Bus) PublishSpeech(sessionID string, clip speech.Clip) error {
	return b.publish(Event{Type: TypeSpeech, SessionID: sessionID, Speech: &clip})
}

// PublishSpeechToggled announces a change of the speech flag.
func (b *Bus) PublishSpeechToggled(sessionID string, enabled bool) error {
	return b.publish(Event{Type: TypeSpeechToggled, SessionID: sessionID, Enabled: &enabled})
}

// PublishSessionEnded tells listeners the session is gone.
func (b *Bus) PublishSessionEnded(sessionID string) error {
	return b.publish(Event{Type: TypeSessionEnded, SessionID: sessionID})
}

func (b *Bus) publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	if err := b.pubsub.Publish(topicFor(ev.SessionID), message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Subscribe streams events for sessionID until ctx ends.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topicFor(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", sessionID, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			err := json.Unmarshal(msg.Payload, &ev)
			msg.Ack()
			if err != nil {
				b.logger.Warn("dropping undecodable event", zap.String("session", sessionID), zap.Error(err))
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes all subscriptions.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
