package brain

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/Varamadon/auto-refactor/internal/config"
	"github.com/Varamadon/auto-refactor/internal/history"
	"github.com/Varamadon/auto-refactor/internal/llm"
	"github.com/Varamadon/auto-refactor/internal/logger"
)

// Anthropic asks the Anthropic Messages API. System messages of the history
// travel in the request's system field.
type Anthropic struct {
	client    llm.MessageCreator
	model     anthropic.Model
	maxTokens int64
	prompt    string
}

func NewAnthropic(client llm.MessageCreator, cfg config.LLMConfig) *Anthropic {
	return &Anthropic{
		client:    client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(maxTokens(cfg)),
		prompt:    systemPrompt(cfg),
	}
}

func (b *Anthropic) SystemStartMessage() history.Message {
	return history.System(b.prompt)
}

func (b *Anthropic) NextAnswer(ctx context.Context, msgs []history.Message) history.Message {
	params := anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: b.maxTokens,
	}
	system, turns := dialogue(msgs)
	for _, text := range system {
		params.System = append(params.System, anthropic.TextBlockParam{Text: text})
	}
	for _, m := range turns {
		if m.Role == history.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := b.client.New(ctx, params)
	if err != nil {
		logger.L.Error("LLM call failed", "provider", config.ProviderAnthropic, "error", err)
		return finish()
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return answer(text.String())
}
