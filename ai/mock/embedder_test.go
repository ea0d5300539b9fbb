package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedderWithDimension(16)
	ctx := context.Background()

	a1, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	a2, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "world")
	require.NoError(t, err)

	assert.Len(t, a1, 16)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)

	var norm float64
	for _, v := range a1 {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockEmbedder_Counts(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	_, _ = m.EmbedTexts(ctx, []string{"a", "b", "c"})
	_, _ = m.EmbedText(ctx, "d")
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, 4, m.TextCount())
	assert.Equal(t, DefaultDimension, m.Dimension())

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Zero(t, m.TextCount())
}

func TestMockEmbedder_ConcurrentUse(t *testing.T) {
	m := NewMockEmbedderWithDimension(4)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedTexts(context.Background(), []string{"x"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProviderWithEmbedder(NewMockEmbedderWithDimension(2))
	vec, err := p.Embedder().EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 2)

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
	assert.NotNil(t, p.GetMockEmbedder())
}
