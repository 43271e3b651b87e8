package chat

// Sender identifies who produced a turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Turn is one exchanged message.
type Turn struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// UserTurn builds a turn submitted by the user.
func UserTurn(text string) Turn {
	return Turn{Text: text, Sender: SenderUser}
}

// BotTurn builds a turn produced by the mentor.
func BotTurn(text string) Turn {
	return Turn{Text: text, Sender: SenderBot}
}
