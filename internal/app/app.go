// Package app assembles the services shared by the server and the terminal
// chat.
package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/config"
	"github.com/zhouzirui/career-fairy/backend/internal/events"
	"github.com/zhouzirui/career-fairy/backend/internal/model/persona"
	speechModel "github.com/zhouzirui/career-fairy/backend/internal/model/speech"
	"github.com/zhouzirui/career-fairy/backend/internal/service/ai"
	"github.com/zhouzirui/career-fairy/backend/internal/service/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/service/speech"
)

// App holds the wired services.
type App struct {
	Personas persona.Store
	Bus      *events.Bus
	Chat     *chat.Service
	Logger   *zap.Logger
}

// New wires the services described by cfg. A missing generation provider
// is not fatal: every reply then falls back to the error message. A missing
// speech provider disables speech.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	personas := persona.NewMemoryStore(persona.Seed())
	bus := events.NewBus(logger.Named("events"))

	generator, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		logger.Warn("generation unavailable, replies will use the fallback message",
			zap.String("provider", cfg.AI.Provider),
			zap.Error(err),
		)
		generator = ai.Unavailable
	} else {
		logger.Info("generation provider ready", zap.String("provider", cfg.AI.Provider))
	}

	aiSvc := ai.NewService(generator,
		ai.WithTimeout(cfg.AI.Timeout),
		ai.WithLogger(logger.Named("ai")),
	)

	opts := []chat.Option{
		chat.WithPublisher(bus),
		chat.WithLogger(logger.Named("chat")),
	}
	if synth := NewSynthesizer(cfg.Speech, logger); synth != nil {
		narrator := speech.NewNarrator(synth, bus, cfg.Speech.TTSLanguage, logger.Named("narrator"))
		opts = append(opts, chat.WithSpeaker(narrator))
		logger.Info("speech enabled", zap.String("voice", cfg.Speech.TTSVoice))
	} else {
		logger.Info("speech credentials not configured, speech disabled")
	}

	return &App{
		Personas: personas,
		Bus:      bus,
		Chat:     chat.NewService(personas, aiSvc, opts...),
		Logger:   logger,
	}
}

// NewSynthesizer returns the TTS client, or nil when speech is not
// configured.
func NewSynthesizer(cfg config.SpeechConfig, logger *zap.Logger) *speech.VolcengineTTSClient {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return speech.NewVolcengineTTSClient(&speechModel.SpeechConfig{
		AppID:       cfg.AppID,
		AccessToken: cfg.AccessToken,
		BaseURL:     cfg.BaseURL,
		TTSVoice:    cfg.TTSVoice,
		TTSLanguage: cfg.TTSLanguage,
		TTSFormat:   cfg.TTSFormat,
		Timeout:     cfg.Timeout,
	}, logger.Named("tts"))
}

// Close releases the event bus.
func (a *App) Close() error {
	return a.Bus.Close()
}
