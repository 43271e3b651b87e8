package speech

import (
	"context"

	"go.uber.org/zap"

	speechmodel "github.com/zhouzirui/career-fairy/backend/internal/model/speech"
)

// Synthesizer turns text into audio.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
}

// Clip is a synthesized utterance ready for playback.
type Clip struct {
	Text     string `json:"text"`
	Audio    []byte `json:"audio"`
	Format   string `json:"format"`
	Duration int64  `json:"duration,omitempty"` // milliseconds
}

// AudioSink delivers clips to whoever renders the session.
type AudioSink interface {
	PublishSpeech(sessionID string, clip Clip) error
}

// Narrator speaks utterances by synthesizing them and handing the audio to
// a sink. Failures are logged and dropped.
type Narrator struct {
	synth    Synthesizer
	sink     AudioSink
	language string
	logger   *zap.Logger
}

// NewNarrator creates a Narrator.
func NewNarrator(synth Synthesizer, sink AudioSink, language string, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{synth: synth, sink: sink, language: language, logger: logger}
}

// Speak synthesizes u and publishes the resulting clip.
func (n *Narrator) Speak(ctx context.Context, u Utterance) {
	resp, err := n.synth.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		SessionID: u.SessionID,
		Text:      u.Text,
		Voice:     u.Voice,
		Rate:      u.Rate,
		Pitch:     u.Pitch,
		Language:  n.language,
	})
	if err != nil {
		n.logger.Warn("speech synthesis failed", zap.String("session", u.SessionID), zap.Error(err))
		return
	}

	clip := Clip{
		Text:     u.Text,
		Audio:    resp.AudioData,
		Format:   resp.Format,
		Duration: resp.Duration,
	}
	if err := n.sink.PublishSpeech(u.SessionID, clip); err != nil {
		n.logger.Warn("failed to publish speech", zap.String("session", u.SessionID), zap.Error(err))
		return
	}

	n.logger.Debug("spoke reply",
		zap.String("session", u.SessionID),
		zap.Int("audio_bytes", len(resp.AudioData)),
		zap.String("request_id", resp.RequestID),
	)
}
