package chat_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/model/persona"
	"github.com/zhouzirui/career-fairy/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/career-fairy/backend/internal/service/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/service/speech"
)

type call struct {
	history  []chat.Turn
	question string
}

type stubResponder struct {
	mu      sync.Mutex
	calls   []call
	respond func(ctx context.Context, question string) (string, error)
}

func (r *stubResponder) Respond(ctx context.Context, _ persona.Persona, history []chat.Turn, question string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{history: history, question: question})
	r.mu.Unlock()
	return r.respond(ctx, question)
}

func (r *stubResponder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type stubSpeaker struct {
	spoken chan speech.Utterance
}

func (s *stubSpeaker) Speak(_ context.Context, u speech.Utterance) {
	s.spoken <- u
}

type recordingPublisher struct {
	mu      sync.Mutex
	indexes []int
	toggles []bool
	ended   []string
}

func (p *recordingPublisher) PublishTurn(_ string, index int, _ chat.Turn) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexes = append(p.indexes, index)
	return nil
}

func (p *recordingPublisher) PublishSpeechToggled(_ string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toggles = append(p.toggles, enabled)
	return nil
}

func (p *recordingPublisher) PublishSessionEnded(sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, sessionID)
	return nil
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		responder *stubResponder
		speaker   *stubSpeaker
		publisher *recordingPublisher
		svc       *chatservice.Service
		session   chat.Session
		greeting  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		responder = &stubResponder{respond: func(context.Context, string) (string, error) {
			return "Nursing is...", nil
		}}
		speaker = &stubSpeaker{spoken: make(chan speech.Utterance, 4)}
		publisher = &recordingPublisher{}

		store := persona.NewMemoryStore(persona.Seed())
		p, _ := store.FindByID(persona.DefaultID)
		greeting = p.Greeting

		svc = chatservice.NewService(store, responder,
			chatservice.WithSpeaker(speaker),
			chatservice.WithPublisher(publisher),
		)

		var err error
		session, err = svc.CreateSession(ctx, "")
		Expect(err).NotTo(HaveOccurred())
	})

	snapshot := func() []chat.Turn {
		turns, err := svc.Snapshot(ctx, session.ID)
		Expect(err).NotTo(HaveOccurred())
		return turns
	}

	Describe("CreateSession", func() {
		It("seeds the conversation with the bot greeting", func() {
			Expect(session.PersonaID).To(Equal(persona.DefaultID))
			Expect(session.SpeechEnabled).To(BeFalse())
			Expect(snapshot()).To(Equal([]chat.Turn{{Text: greeting, Sender: chat.SenderBot}}))
		})

		It("rejects unknown personas", func() {
			_, err := svc.CreateSession(ctx, "wizard")
			Expect(err).To(MatchError(chatservice.ErrPersonaNotFound))
		})
	})

	Describe("Submit", func() {
		It("appends the user turn and the reply", func() {
			result, err := svc.Submit(ctx, session.ID, "Tell me about nursing")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ErrorKind).To(Equal(ai.KindNone))

			turns := snapshot()
			Expect(turns).To(HaveLen(3))
			Expect(turns[1]).To(Equal(chat.Turn{Text: "Tell me about nursing", Sender: chat.SenderUser}))
			Expect(turns[2]).To(Equal(chat.Turn{Text: "Nursing is...", Sender: chat.SenderBot}))
			Expect(publisher.indexes).To(Equal([]int{1, 2}))
		})

		It("sends the pre-submission conversation as history", func() {
			_, err := svc.Submit(ctx, session.ID, "Tell me about nursing")
			Expect(err).NotTo(HaveOccurred())

			calls := responder.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].history).To(Equal([]chat.Turn{chat.BotTurn(greeting)}))
			Expect(calls[0].question).To(Equal("Tell me about nursing"))
		})

		DescribeTable("rejects blank input without side effects",
			func(input string) {
				for i := 0; i < 3; i++ {
					_, err := svc.Submit(ctx, session.ID, input)
					Expect(err).To(MatchError(chatservice.ErrEmptyInput))
				}
				Expect(snapshot()).To(HaveLen(1))
				Expect(responder.Calls()).To(BeEmpty())
			},
			Entry("empty", ""),
			Entry("spaces", "   "),
			Entry("newlines and tabs", "\n\t "),
		)

		It("appends the user turn before the reply arrives", func() {
			release := make(chan struct{})
			responder.respond = func(context.Context, string) (string, error) {
				<-release
				return "later", nil
			}

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				_, err := svc.Submit(ctx, session.ID, "Is coding for me?")
				Expect(err).NotTo(HaveOccurred())
			}()

			Eventually(snapshot).Should(HaveLen(2))
			Expect(snapshot()[1]).To(Equal(chat.UserTurn("Is coding for me?")))

			close(release)
			Eventually(done).Should(BeClosed())
			Expect(snapshot()).To(HaveLen(3))
		})

		It("turns an unclassified failure into the fallback reply", func() {
			responder.respond = func(context.Context, string) (string, error) {
				return "", errors.New("boom")
			}

			result, err := svc.Submit(ctx, session.ID, "Tell me about law")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ErrorKind).To(Equal(ai.KindUnknown))

			turns := snapshot()
			Expect(turns).To(HaveLen(3))
			Expect(turns[2]).To(Equal(chat.BotTurn("Oops! I encountered an error. Please try again later.")))
		})

		It("maps classified failures to their own message", func() {
			responder.respond = func(context.Context, string) (string, error) {
				return "", context.DeadlineExceeded
			}

			result, err := svc.Submit(ctx, session.ID, "Tell me about law")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ErrorKind).To(Equal(ai.KindTimeout))
			Expect(result.BotTurn.Text).To(Equal(ai.KindTimeout.Message()))
		})

		It("appends replies in submission order", func() {
			firstStarted := make(chan struct{})
			releaseFirst := make(chan struct{})
			responder.respond = func(_ context.Context, question string) (string, error) {
				if question == "first" {
					close(firstStarted)
					<-releaseFirst
				}
				return "answer to " + question, nil
			}

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := svc.Submit(ctx, session.ID, "first")
				Expect(err).NotTo(HaveOccurred())
			}()
			<-firstStarted
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := svc.Submit(ctx, session.ID, "second")
				Expect(err).NotTo(HaveOccurred())
			}()

			Consistently(snapshot, 50*time.Millisecond).Should(HaveLen(2))
			close(releaseFirst)
			wg.Wait()

			Expect(snapshot()).To(Equal([]chat.Turn{
				chat.BotTurn(greeting),
				chat.UserTurn("first"),
				chat.BotTurn("answer to first"),
				chat.UserTurn("second"),
				chat.BotTurn("answer to second"),
			}))
		})

		It("gives up waiting for a busy session when the context ends", func() {
			release := make(chan struct{})
			defer close(release)
			started := make(chan struct{})
			responder.respond = func(context.Context, string) (string, error) {
				close(started)
				<-release
				return "slow", nil
			}

			go func() {
				_, _ = svc.Submit(ctx, session.ID, "first")
			}()
			<-started

			waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err := svc.Submit(waitCtx, session.ID, "second")
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(snapshot()).To(HaveLen(2))
		})

		It("reports unknown sessions", func() {
			_, err := svc.Submit(ctx, "missing", "hello")
			Expect(err).To(MatchError(chatservice.ErrSessionNotFound))
		})
	})

	Describe("speech", func() {
		It("stays silent while speech is disabled", func() {
			_, err := svc.Submit(ctx, session.ID, "Tell me about nursing")
			Expect(err).NotTo(HaveOccurred())
			Consistently(speaker.spoken, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("speaks the emoji-free reply once enabled", func() {
			updated, err := svc.SetSpeech(ctx, session.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.SpeechEnabled).To(BeTrue())
			Expect(publisher.toggles).To(Equal([]bool{true}))

			responder.respond = func(context.Context, string) (string, error) {
				return "Great job! 🎉🚀", nil
			}
			_, err = svc.Submit(ctx, session.ID, "I passed my exam")
			Expect(err).NotTo(HaveOccurred())

			var u speech.Utterance
			Eventually(speaker.spoken).Should(Receive(&u))
			Expect(u.Text).To(Equal("Great job!"))
			Expect(u.Rate).To(Equal(speech.DefaultRate))
			Expect(u.Pitch).To(Equal(speech.DefaultPitch))
			Expect(u.SessionID).To(Equal(session.ID))
		})

		It("skips replies that are only emoji", func() {
			_, err := svc.SetSpeech(ctx, session.ID, true)
			Expect(err).NotTo(HaveOccurred())
			responder.respond = func(context.Context, string) (string, error) {
				return "🎉", nil
			}

			_, err = svc.Submit(ctx, session.ID, "yay")
			Expect(err).NotTo(HaveOccurred())
			Consistently(speaker.spoken, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("does not speak fallback replies", func() {
			_, err := svc.SetSpeech(ctx, session.ID, true)
			Expect(err).NotTo(HaveOccurred())
			responder.respond = func(context.Context, string) (string, error) {
				return "", errors.New("boom")
			}

			_, err = svc.Submit(ctx, session.ID, "hello")
			Expect(err).NotTo(HaveOccurred())
			Consistently(speaker.spoken, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("is a no-op without a speaker", func() {
			quiet := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), responder)
			s, err := quiet.CreateSession(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = quiet.SetSpeech(ctx, s.ID, true)
			Expect(err).NotTo(HaveOccurred())

			result, err := quiet.Submit(ctx, s.ID, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.BotTurn.Text).To(Equal("Nursing is..."))
		})
	})

	Describe("EndSession", func() {
		It("forgets the session", func() {
			Expect(svc.EndSession(ctx, session.ID)).To(Succeed())
			Expect(publisher.ended).To(Equal([]string{session.ID}))

			_, err := svc.GetSession(ctx, session.ID)
			Expect(err).To(MatchError(chatservice.ErrSessionNotFound))
			Expect(svc.EndSession(ctx, session.ID)).To(MatchError(chatservice.ErrSessionNotFound))
		})
	})
})
