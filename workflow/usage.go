package workflow

import (
	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
)

// TokenUsage is what one LLM call spent, counted with the model's tokenizer.
type TokenUsage struct {
	Stage            core.Stage `json:"stage"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// countUsage measures a call that sent prompt and got completion back.
// A failed call has an empty completion but still spent its prompt.
func countUsage(llm ai.LLM, stage core.Stage, prompt, completion string) []TokenUsage {
	return []TokenUsage{{
		Stage:            stage,
		PromptTokens:     llm.CountTokens(prompt),
		CompletionTokens: llm.CountTokens(completion),
	}}
}

// SumUsage adds up usage per stage, in order of first appearance.
func SumUsage(usage []TokenUsage) []TokenUsage {
	var out []TokenUsage
	index := map[core.Stage]int{}
	for _, u := range usage {
		i, ok := index[u.Stage]
		if !ok {
			index[u.Stage] = len(out)
			out = append(out, TokenUsage{Stage: u.Stage})
			i = len(out) - 1
		}
		out[i].PromptTokens += u.PromptTokens
		out[i].CompletionTokens += u.CompletionTokens
	}
	return out
}
