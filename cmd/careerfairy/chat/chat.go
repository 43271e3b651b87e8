package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/app"
	"github.com/zhouzirui/career-fairy/backend/internal/events"
	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/model/persona"
	chatService "github.com/zhouzirui/career-fairy/backend/internal/service/chat"
)

const chatLongDesc string = `Chat with a mentor in the terminal.

Type a question and press enter. Lines starting with a slash are
commands:
  /speech on|off   toggle spoken replies (audio is saved to --audio-dir)
  /history         print the whole conversation
  /quit            leave

Examples:
  careerfairy chat
  careerfairy chat --persona career-fairy --audio-dir ./replies`

const chatShortDesc string = "Chat with a mentor in the terminal"

type chatCommander struct {
	personaID string
	audioDir  string
	envFiles  []string
}

// Subscriber hands out the event stream of one session.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error)
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.personaID, "persona", "p", persona.DefaultID, "Mentor persona")
	cmd.Flags().StringVar(&cmder.audioDir, "audio-dir", os.TempDir(), "Directory for spoken replies")
	cmd.Flags().StringSliceVar(&cmder.envFiles, "env-file", nil, "Env files to load (default .env)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, logger, err := app.Bootstrap(c.envFiles...)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a := app.New(ctx, cfg, logger)
	defer a.Close()

	p, ok := a.Personas.FindByID(c.personaID)
	if !ok {
		return fmt.Errorf("unknown persona %q", c.personaID)
	}

	s := &repl{
		chatSvc:  a.Chat,
		bus:      a.Bus,
		persona:  p,
		audioDir: c.audioDir,
		out:      out,
		logger:   logger,
	}
	return s.run(ctx, in)
}

type repl struct {
	chatSvc  *chatService.Service
	bus      Subscriber
	persona  persona.Persona
	audioDir string
	logger   *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) printTurn(turn chat.Turn) {
	if turn.Sender == chat.SenderUser {
		r.printf("You: %s\n", turn.Text)
		return
	}
	r.printf("%s: %s\n", r.persona.Name, turn.Text)
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, err := r.chatSvc.CreateSession(ctx, r.persona.ID)
	if err != nil {
		return err
	}
	defer func() { _ = r.chatSvc.EndSession(context.Background(), session.ID) }()

	if r.bus != nil {
		stream, err := r.bus.Subscribe(ctx, session.ID)
		if err != nil {
			return err
		}
		go r.saveSpeech(stream)
	}

	turns, err := r.chatSvc.Snapshot(ctx, session.ID)
	if err != nil {
		return err
	}
	for _, turn := range turns {
		r.printTurn(turn)
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := r.handleLine(ctx, session.ID, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (r *repl) handleLine(ctx context.Context, sessionID, line string) (quit bool, err error) {
	command := strings.TrimSpace(line)
	if !strings.HasPrefix(command, "/") {
		result, err := r.chatSvc.Submit(ctx, sessionID, line)
		if errors.Is(err, chatService.ErrEmptyInput) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		r.printTurn(result.BotTurn)
		return false, nil
	}

	fields := strings.Fields(command)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/history":
		turns, err := r.chatSvc.Snapshot(ctx, sessionID)
		if err != nil {
			return false, err
		}
		for _, turn := range turns {
			r.printTurn(turn)
		}
	case "/speech":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			r.printf("usage: /speech on|off\n")
			return false, nil
		}
		if _, err := r.chatSvc.SetSpeech(ctx, sessionID, fields[1] == "on"); err != nil {
			return false, err
		}
		r.printf("speech %s\n", fields[1])
	default:
		r.printf("unknown command %s\n", fields[0])
	}
	return false, nil
}

func (r *repl) saveSpeech(stream <-chan events.Event) {
	for ev := range stream {
		if ev.Type != events.TypeSpeech || ev.Speech == nil {
			continue
		}
		format := ev.Speech.Format
		if format == "" {
			format = "mp3"
		}
		path := filepath.Join(r.audioDir, fmt.Sprintf("careerfairy-%d.%s", time.Now().UnixNano(), format))
		if err := os.WriteFile(path, ev.Speech.Audio, 0o644); err != nil {
			r.logger.Warn("failed to save spoken reply", zap.Error(err))
			continue
		}
		r.printf("(spoken reply saved to %s)\n", path)
	}
}
