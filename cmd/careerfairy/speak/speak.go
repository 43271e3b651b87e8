package speakcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/app"
	speechModel "github.com/zhouzirui/career-fairy/backend/internal/model/speech"
	"github.com/zhouzirui/career-fairy/backend/internal/service/speech"
)

const speakLongDesc string = `Synthesize text with the configured speech provider and save the audio.

The text goes through the same preparation as mentor replies: emoji
are removed and the mentor's rate and pitch are applied.

Examples:
  careerfairy speak --text "Great job! Keep going."
  careerfairy speak --text "Hello" --voice en_female_amy_jupiter_bigtts --out hello.mp3`

const speakShortDesc string = "Test the speech provider"

var errNothingToSay = errors.New("text is empty after removing emoji")

type speakCommander struct {
	text     string
	out      string
	voice    string
	language string
	timeout  time.Duration
	envFiles []string
}

func NewSpeakCmd() *cobra.Command {
	cmder := &speakCommander{}

	cmd := &cobra.Command{
		Use:   "speak",
		Short: speakShortDesc,
		Long:  speakLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.text, "text", "t", "", "Text to synthesize")
	cmd.Flags().StringVarP(&cmder.out, "out", "o", "", "Output file (default tts-output-<unix>.<format>)")
	cmd.Flags().StringVar(&cmder.voice, "voice", "", "Voice id (default SPEECH_TTS_VOICE)")
	cmd.Flags().StringVar(&cmder.language, "lang", "", "Language (default SPEECH_TTS_LANGUAGE)")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 45*time.Second, "Request timeout")
	cmd.Flags().StringSliceVar(&cmder.envFiles, "env-file", nil, "Env files to load (default .env)")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func (c *speakCommander) run(ctx context.Context, cmd *cobra.Command) error {
	u, ok := speech.NewUtterance(fmt.Sprintf("manual-%d", time.Now().UnixNano()), c.text, c.voice)
	if !ok {
		return errNothingToSay
	}

	cfg, logger, err := app.Bootstrap(c.envFiles...)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	synth := app.NewSynthesizer(cfg.Speech, logger)
	if synth == nil {
		return fmt.Errorf("speech is not configured: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN: %w", speech.ErrMissingCredentials)
	}

	language := c.language
	if language == "" {
		language = cfg.Speech.TTSLanguage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger.Info("synthesizing", zap.String("session", u.SessionID), zap.String("voice", u.Voice), zap.String("language", language))
	resp, err := synth.SynthesizeSpeech(ctx, &speechModel.TTSRequest{
		SessionID: u.SessionID,
		Text:      u.Text,
		Voice:     u.Voice,
		Rate:      u.Rate,
		Pitch:     u.Pitch,
		Format:    cfg.Speech.TTSFormat,
		Language:  language,
	})
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	out := c.out
	if out == "" {
		out = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), resp.Format)
	}
	if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes of %s audio to %s (request %s)\n",
		len(resp.AudioData), resp.Format, out, resp.RequestID)
	return nil
}
