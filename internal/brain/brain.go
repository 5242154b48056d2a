// Package brain turns a conversation history into the next command of a
// refactoring session by asking a language model.
package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/Varamadon/auto-refactor/internal/config"
	"github.com/Varamadon/auto-refactor/internal/history"
	"github.com/Varamadon/auto-refactor/internal/llm"
)

// Commands a brain may answer with besides a JSON action plan.
const (
	CommandNextFile = "nextFile"
	CommandFinish   = "finish"
)

// Brain produces the next assistant message of a session.
//
// NextAnswer never fails: a broken provider connection degrades to a
// "finish" answer, since the orchestrator cannot recover it.
type Brain interface {
	SystemStartMessage() history.Message
	NextAnswer(ctx context.Context, msgs []history.Message) history.Message
}

const defaultSystemPrompt = `You are an experienced Java developer reviewing a repository file by file.
You can answer with exactly one of the following:
- nextFile: ask for the next file to analyze. Files arrive with line numbers prepended as "<n> | <line>".
- finish: end the session. Answer finish once a requested file comes back empty.
- an action plan: a JSON array of refactorings for the file you just received.
Supported refactorings are addComment, renameMethod and renameVariable, each bound to a specific line number.
Do not wrap the plan in markdown fences and do not quote nextFile or finish.
Start the session by answering nextFile.
Format an action plan like this example:
[
  {"type": "addComment", "line": 3, "content": "Calculate the discriminant"},
  {"type": "renameVariable", "line": 4, "oldName": "d", "newName": "discriminant"},
  {"type": "renameMethod", "line": 10, "oldName": "calc", "newName": "calculateDiscriminant"}
]`

const defaultMaxTokens = 4096

func systemPrompt(cfg config.LLMConfig) string {
	if cfg.SystemPrompt != "" {
		return cfg.SystemPrompt
	}
	return defaultSystemPrompt
}

func maxTokens(cfg config.LLMConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}

func finish() history.Message {
	return history.Assistant(CommandFinish)
}

// answer wraps provider text, treating an empty answer as finish.
func answer(text string) history.Message {
	text = strings.TrimSpace(text)
	if text == "" {
		return finish()
	}
	return history.Assistant(text)
}

// dialogue splits msgs into system instructions and conversation turns. The
// turns are padded with user turns so they never start or end with an
// assistant turn: providers reject the former and treat the latter as a
// prefix of their own answer.
func dialogue(msgs []history.Message) (system []string, turns []history.Message) {
	for _, m := range msgs {
		if m.Role == history.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if len(turns) == 0 && m.Role == history.RoleAssistant {
			turns = append(turns, history.User("Begin."))
		}
		turns = append(turns, m)
	}
	switch {
	case len(turns) == 0:
		turns = append(turns, history.User("Begin."))
	case turns[len(turns)-1].Role == history.RoleAssistant:
		turns = append(turns, history.User("Continue."))
	}
	return system, turns
}

// New builds the brain for cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Brain, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAI(llm.NewClient(cfg), cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropic(llm.NewAnthropicClient(cfg), cfg), nil
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewGemini(client, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
