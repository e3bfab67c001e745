package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	v1, err := m.EmbedText(ctx, "John Carpenter was born in 1850")
	require.NoError(t, err)
	v2, err := m.EmbedText(ctx, "John Carpenter was born in 1850")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, Dimensions)
	assert.InDelta(t, 1.0, cosine(v1, v1), 1e-5)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	query := BagOfWordsVector("when was john carpenter born", Dimensions)
	related := BagOfWordsVector("John Carpenter was born in Ohio", Dimensions)
	unrelated := BagOfWordsVector("the mill burned down", Dimensions)

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestMockEmbedder_EmptyText(t *testing.T) {
	v := BagOfWordsVector("", Dimensions)
	assert.Len(t, v, Dimensions)
	assert.Zero(t, cosine(v, v))
}

func TestMockEmbedder_CustomFunc(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("boom")
	}
	_, err := m.EmbedTexts(context.Background(), []string{"a"})
	assert.EqualError(t, err, "boom")

	m.Reset()
	out, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockLLM(t *testing.T) {
	m := NewMockLLM()
	ctx := context.Background()

	got, err := m.Complete(ctx, "first", 10)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)

	m.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "echo " + prompt, nil
	}
	got, err = m.Complete(ctx, "second", 10)
	require.NoError(t, err)
	assert.Equal(t, "echo second", got)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{"first", "second"}, m.Prompts())
	assert.Equal(t, 8192, m.ContextWindow())
	assert.Equal(t, 2, m.CountTokens("12345678"))

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp := p.(*MockProvider)

	assert.Same(t, mp.GetMockLLM(), p.LLM())
	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	require.NoError(t, p.Close())
	assert.True(t, mp.Closed())
}
