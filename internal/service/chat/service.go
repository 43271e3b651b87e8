package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/model/persona"
	"github.com/zhouzirui/career-fairy/backend/internal/service/ai"
	"github.com/zhouzirui/career-fairy/backend/internal/service/speech"
)

var (
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyInput      = errors.New("message is empty")
)

// Responder produces the mentor reply for a question given the
// conversation as it was before the question was asked.
type Responder interface {
	Respond(ctx context.Context, p persona.Persona, history []chat.Turn, question string) (string, error)
}

// Speaker is the optional speech capability. Speak is fire-and-forget.
type Speaker interface {
	Speak(ctx context.Context, u speech.Utterance)
}

// Publisher receives conversation changes for live listeners.
type Publisher interface {
	PublishTurn(sessionID string, index int, turn chat.Turn) error
	PublishSpeechToggled(sessionID string, enabled bool) error
	PublishSessionEnded(sessionID string) error
}

// SubmitResult describes the turns a submission appended.
type SubmitResult struct {
	UserTurn  chat.Turn    `json:"userTurn"`
	BotTurn   chat.Turn    `json:"botTurn"`
	ErrorKind ai.ErrorKind `json:"errorKind,omitempty"`
}

type sessionState struct {
	session      chat.Session
	persona      persona.Persona
	conversation *Conversation
	// inflight holds one token while a submission is running, so replies
	// are appended in the order questions were asked.
	inflight chan struct{}
}

// Service owns the sessions and their conversations and runs submissions
// against the responder.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	personas  persona.Store
	responder Responder
	speaker   Speaker
	publisher Publisher
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSpeaker installs the speech capability. Without it speech is a no-op.
func WithSpeaker(speaker Speaker) Option {
	return func(s *Service) {
		s.speaker = speaker
	}
}

// WithPublisher installs a listener for conversation changes.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates the in-memory chat service.
func NewService(personas persona.Store, responder Responder, opts ...Option) *Service {
	s := &Service{
		sessions:  make(map[string]*sessionState),
		personas:  personas,
		responder: responder,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a conversation holding only the persona greeting.
// An empty personaID selects the default mentor.
func (s *Service) CreateSession(_ context.Context, personaID string) (chat.Session, error) {
	if personaID == "" {
		personaID = persona.DefaultID
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, ErrPersonaNotFound
	}

	state := &sessionState{
		session: chat.Session{
			ID:        uuid.NewString(),
			PersonaID: p.ID,
			CreatedAt: time.Now().UTC(),
		},
		persona:      p,
		conversation: NewConversation(p.Greeting),
		inflight:     make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.sessions[state.session.ID] = state
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session", state.session.ID), zap.String("persona", p.ID))
	return state.session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return state.session, nil
}

// Snapshot returns the session's conversation in order.
func (s *Service) Snapshot(_ context.Context, sessionID string) ([]chat.Turn, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return state.conversation.Snapshot(), nil
}

// EndSession discards the session and its conversation.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSessionEnded(sessionID); err != nil {
			s.logger.Warn("failed to publish session end", zap.String("session", sessionID), zap.Error(err))
		}
	}
	s.logger.Info("session ended", zap.String("session", sessionID))
	return nil
}

// SetSpeech toggles spoken replies for the session.
func (s *Service) SetSpeech(_ context.Context, sessionID string, enabled bool) (chat.Session, error) {
	s.mu.Lock()
	state, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return chat.Session{}, ErrSessionNotFound
	}
	state.session.SpeechEnabled = enabled
	session := state.session
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.PublishSpeechToggled(sessionID, enabled); err != nil {
			s.logger.Warn("failed to publish speech toggle", zap.String("session", sessionID), zap.Error(err))
		}
	}
	return session, nil
}

// Submit appends the user's input, asks the responder for a reply and
// appends it. Generation failures never surface as errors: they become a
// fallback bot turn whose kind is reported in the result. Blank input is
// rejected with ErrEmptyInput and changes nothing.
func (s *Service) Submit(ctx context.Context, sessionID, input string) (SubmitResult, error) {
	if strings.TrimSpace(input) == "" {
		return SubmitResult{}, ErrEmptyInput
	}

	state, err := s.lookup(sessionID)
	if err != nil {
		return SubmitResult{}, err
	}

	select {
	case state.inflight <- struct{}{}:
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
	defer func() { <-state.inflight }()

	history := state.conversation.Snapshot()
	userTurn := chat.UserTurn(input)
	s.appendTurn(sessionID, state, userTurn)

	reply, err := s.responder.Respond(ctx, state.persona, history, input)
	kind := ai.Classify(err)
	if err != nil {
		s.logger.Warn("generation failed",
			zap.String("session", sessionID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		reply = kind.Message()
	}

	botTurn := chat.BotTurn(reply)
	s.appendTurn(sessionID, state, botTurn)

	if err == nil {
		s.speak(sessionID, state, reply)
	}

	return SubmitResult{UserTurn: userTurn, BotTurn: botTurn, ErrorKind: kind}, nil
}

func (s *Service) lookup(sessionID string) (*sessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

func (s *Service) appendTurn(sessionID string, state *sessionState, turn chat.Turn) {
	index := state.conversation.Append(turn)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTurn(sessionID, index, turn); err != nil {
		s.logger.Warn("failed to publish turn", zap.String("session", sessionID), zap.Int("index", index), zap.Error(err))
	}
}

func (s *Service) speak(sessionID string, state *sessionState, text string) {
	if s.speaker == nil {
		return
	}

	s.mu.RLock()
	enabled := state.session.SpeechEnabled
	s.mu.RUnlock()
	if !enabled {
		return
	}

	u, ok := speech.NewUtterance(sessionID, text, state.persona.VoiceID)
	if !ok {
		return
	}
	go s.speaker.Speak(context.Background(), u)
}
