package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/model/persona"
)

const mentorTemplate = `{instruction}
Maintain conversation context from this chat history:
{history}

Current question: {question}

Guidelines:
{guidelines}

Example Flow:
{example}`

// PromptBuilder renders the single-prompt request sent to the generation
// endpoint.
type PromptBuilder struct {
	template prompt.ChatTemplate
}

// NewPromptBuilder creates a builder backed by the mentor template.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		template: prompt.FromMessages(schema.FString, schema.UserMessage(mentorTemplate)),
	}
}

// Build renders history (the conversation before the new question was
// appended) and question into one prompt string.
func (b *PromptBuilder) Build(ctx context.Context, p persona.Persona, history []chat.Turn, question string) (string, error) {
	messages, err := b.template.Format(ctx, map[string]any{
		"instruction": p.Instruction,
		"history":     RenderTranscript(p, history),
		"question":    question,
		"guidelines":  numberGuidelines(p.Guidelines),
		"example":     strings.Join(p.ExampleFlow, "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to format mentor prompt: %w", err)
	}
	if len(messages) != 1 {
		return "", fmt.Errorf("mentor prompt produced %d messages, want 1", len(messages))
	}
	return messages[0].Content, nil
}

// RenderTranscript flattens turns into "User: <text>" / "Mentor: <text>"
// lines joined by newlines, using the persona's labels.
func RenderTranscript(p persona.Persona, turns []chat.Turn) string {
	userLabel, mentorLabel := p.Labels()

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		label := mentorLabel
		if turn.Sender == chat.SenderUser {
			label = userLabel
		}
		lines = append(lines, label+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}

func numberGuidelines(guidelines []string) string {
	var builder strings.Builder
	for i, g := range guidelines {
		if i > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "%d. %s", i+1, g)
	}
	return builder.String()
}
