package chat_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/career-fairy/backend/internal/service/chat"
)

var _ = Describe("Conversation", func() {
	var conv *chatservice.Conversation

	BeforeEach(func() {
		conv = chatservice.NewConversation("hello there")
	})

	It("starts with the greeting from the bot", func() {
		Expect(conv.Len()).To(Equal(1))
		Expect(conv.Snapshot()[0]).To(Equal(chat.BotTurn("hello there")))
	})

	It("appends turns in order and returns their index", func() {
		Expect(conv.Append(chat.UserTurn("A"))).To(Equal(1))
		Expect(conv.Append(chat.BotTurn("B"))).To(Equal(2))

		Expect(conv.Snapshot()).To(Equal([]chat.Turn{
			chat.BotTurn("hello there"),
			chat.UserTurn("A"),
			chat.BotTurn("B"),
		}))
	})

	It("does not enforce alternation or deduplicate", func() {
		conv.Append(chat.UserTurn("same"))
		conv.Append(chat.UserTurn("same"))

		Expect(conv.Len()).To(Equal(3))
	})

	It("hands out snapshots that do not alias the store", func() {
		snap := conv.Snapshot()
		snap[0].Text = "mutated"
		conv.Append(chat.UserTurn("next"))

		Expect(conv.Snapshot()[0].Text).To(Equal("hello there"))
		Expect(snap).To(HaveLen(1))
	})
})
