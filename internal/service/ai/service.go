package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/model/persona"
)

// Service builds mentor prompts and sends them to the generation endpoint.
type Service struct {
	generator Generator
	prompts   *PromptBuilder
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds every generation call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
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

// NewService creates an AI service around generator.
func NewService(generator Generator, opts ...Option) *Service {
	if generator == nil {
		generator = Unavailable
	}

	s := &Service{
		generator: generator,
		prompts:   NewPromptBuilder(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Respond renders history plus question into one prompt and returns the
// generated reply verbatim, surrounding whitespace included. The exception
// is a reply that is blank after trimming: it is not returned at all and
// Respond fails with ErrEmptyReply, so callers store the malformed-reply
// fallback instead of an empty bubble.
func (s *Service) Respond(ctx context.Context, p persona.Persona, history []chat.Turn, question string) (string, error) {
	promptText, err := s.prompts.Build(ctx, p, history, question)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.generator.Generate(ctx, promptText)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}

	s.logger.Debug("generated reply",
		zap.String("persona", p.ID),
		zap.Int("history", len(history)),
		zap.Int("prompt_length", len(promptText)),
		zap.Int("reply_length", len(reply)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return reply, nil
}
