package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	ctx := context.Background()

	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "the same text"})
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "the same text"})
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Equal(t, LocalDimension, a.Dimension)
	assert.Len(t, a.Vector, LocalDimension)

	c, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "different text"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Vector, c.Vector)
}

func TestLocalProvider_VectorRange(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "range check"})
	require.NoError(t, err)

	for _, x := range emb.Vector {
		assert.GreaterOrEqual(t, x, float32(-1))
		assert.LessOrEqual(t, x, float32(1))
	}
}

func TestLocalProvider_Batch(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	texts := []string{"first", "second", "third"}
	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, ProviderLocal, resp.Provider)

	// Batch order matches input order.
	for i, text := range texts {
		single, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: text})
		require.NoError(t, err)
		assert.Equal(t, single.Vector, resp.Embeddings[i].Vector)
	}
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "ok"}))

	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"ok", ""}}), ErrEmptyText)
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"ok"}}))
}

func TestComputeHash(t *testing.T) {
	a := ComputeHash("payload")
	b := ComputeHash("payload")
	c := ComputeHash("other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex-encoded SHA-256
}

func TestCache_DeepCopy(t *testing.T) {
	cache := NewCache(10)

	original := &Embedding{
		Vector:    []float32{1, 2, 3},
		Dimension: 3,
		Provider:  ProviderLocal,
	}
	cache.Set("k", original)

	got, ok := cache.Get("k")
	require.True(t, ok)
	require.Equal(t, original.Vector, got.Vector)

	// Mutating the returned copy must not corrupt the cached entry.
	got.Vector[0] = 99

	again, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestCache_Miss(t *testing.T) {
	cache := NewCache(10)
	_, ok := cache.Get("absent")
	assert.False(t, ok)
}

func TestNew_ExplicitConfig(t *testing.T) {
	emb, err := New(Config{Provider: ProviderLocal})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	_, err = New(Config{Provider: "mystery"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoProviderEnabled, "openai without a key must fail")
}

func TestNewFromEnv_LocalFallback(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
}

func TestNewFromEnv_ExplicitProvider(t *testing.T) {
	t.Setenv(EnvProvider, "local")
	t.Setenv(EnvOpenAIAPIKey, "sk-unused")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider(), "explicit provider wins over key detection")
}
