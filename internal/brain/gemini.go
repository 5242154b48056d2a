package brain

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/Varamadon/auto-refactor/internal/config"
	"github.com/Varamadon/auto-refactor/internal/history"
	"github.com/Varamadon/auto-refactor/internal/llm"
	"github.com/Varamadon/auto-refactor/internal/logger"
)

// Gemini asks a Gemini model through the GenAI SDK.
type Gemini struct {
	client    llm.ContentGenerator
	model     string
	maxTokens int32
	prompt    string
}

func NewGemini(client llm.ContentGenerator, cfg config.LLMConfig) *Gemini {
	return &Gemini{
		client:    client,
		model:     cfg.Model,
		maxTokens: int32(maxTokens(cfg)),
		prompt:    systemPrompt(cfg),
	}
}

func (b *Gemini) SystemStartMessage() history.Message {
	return history.System(b.prompt)
}

func (b *Gemini) NextAnswer(ctx context.Context, msgs []history.Message) history.Message {
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: b.maxTokens}

	system, turns := dialogue(msgs)
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == history.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	resp, err := b.client.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		logger.L.Error("LLM call failed", "provider", config.ProviderGemini, "error", err)
		return finish()
	}
	if resp == nil {
		return finish()
	}
	return answer(resp.Text())
}
