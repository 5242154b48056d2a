package brain

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/Varamadon/auto-refactor/internal/config"
	"github.com/Varamadon/auto-refactor/internal/history"
	"github.com/Varamadon/auto-refactor/internal/llm"
	"github.com/Varamadon/auto-refactor/internal/logger"
)

// OpenAI asks an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client    llm.Client
	model     string
	maxTokens int
	prompt    string
}

func NewOpenAI(client llm.Client, cfg config.LLMConfig) *OpenAI {
	return &OpenAI{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens(cfg),
		prompt:    systemPrompt(cfg),
	}
}

func (b *OpenAI) SystemStartMessage() history.Message {
	return history.System(b.prompt)
}

func (b *OpenAI) NextAnswer(ctx context.Context, msgs []history.Message) history.Message {
	req := openai.ChatCompletionRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	logger.L.Debug("calling chat completion", "model", b.model, "messages", len(msgs))
	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.L.Error("LLM call failed", "provider", config.ProviderOpenAI, "error", err)
		return finish()
	}
	if len(resp.Choices) == 0 {
		logger.L.Warn("LLM returned no choices", "provider", config.ProviderOpenAI)
		return finish()
	}
	return answer(resp.Choices[0].Message.Content)
}

func openAIRole(r history.Role) string {
	switch r {
	case history.RoleSystem:
		return openai.ChatMessageRoleSystem
	case history.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
