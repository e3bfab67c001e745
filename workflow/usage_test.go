package workflow

import (
	"testing"

	"github.com/poiesic/kinfolk/core"
	"github.com/stretchr/testify/assert"
)

func TestSumUsage(t *testing.T) {
	usage := []TokenUsage{
		{Stage: core.StageRouter, PromptTokens: 40, CompletionTokens: 12},
		{Stage: core.StageSynthesis, PromptTokens: 300, CompletionTokens: 80},
		{Stage: core.StageRouter, PromptTokens: 40, CompletionTokens: 0},
	}

	got := SumUsage(usage)
	assert.Equal(t, []TokenUsage{
		{Stage: core.StageRouter, PromptTokens: 80, CompletionTokens: 12},
		{Stage: core.StageSynthesis, PromptTokens: 300, CompletionTokens: 80},
	}, got)
	assert.Equal(t, 92, got[0].Total())

	assert.Nil(t, SumUsage(nil))

	resp := &Response{TokenUsage: got}
	assert.Equal(t, 472, resp.TotalTokens())
}
