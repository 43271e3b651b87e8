package chat

import (
	"sync"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
)

// Conversation is the ordered, append-only turn sequence of one session.
// There is no size bound: it lives as long as the session.
type Conversation struct {
	mu    sync.RWMutex
	turns []chat.Turn
}

// NewConversation starts a conversation with the greeting as its first turn.
func NewConversation(greeting string) *Conversation {
	turns := make([]chat.Turn, 1, 16)
	turns[0] = chat.BotTurn(greeting)
	return &Conversation{turns: turns}
}

// Append adds turn at the end and returns its index.
func (c *Conversation) Append(turn chat.Turn) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
	return len(c.turns) - 1
}

// Snapshot returns a copy of all turns appended so far, in order.
func (c *Conversation) Snapshot() []chat.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	copied := make([]chat.Turn, len(c.turns))
	copy(copied, c.turns)
	return copied
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
