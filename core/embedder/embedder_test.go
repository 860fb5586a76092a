package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedIsDeterministic(t *testing.T) {
	m := NewMock(32)
	v1, err := m.Embed(context.Background(), "authenticateUser")
	require.NoError(t, err)
	v2, err := m.Embed(context.Background(), "authenticateUser")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestMockEmbedDifferentTextsDiffer(t *testing.T) {
	m := NewMock(32)
	v1, _ := m.Embed(context.Background(), "authenticateUser")
	v2, _ := m.Embed(context.Background(), "connectDatabase")
	assert.NotEqual(t, v1, v2)
}

func TestMockEmbedHasExpectedDimensions(t *testing.T) {
	m := NewMock(64)
	v, err := m.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 64)
}

func TestMockEmbedBatchMatchesSingle(t *testing.T) {
	m := NewMock(16)
	texts := []string{"a", "b", "c"}
	batch, err := m.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, _ := m.Embed(context.Background(), text)
		assert.Equal(t, single, batch[i])
	}
}

func TestRegistryResolvesMock(t *testing.T) {
	e, err := New("mock", nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", e.Name())
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := New("does-not-exist", nil)
	require.ErrorIs(t, err, ErrUnknownProvider)
}

type erroringEmbedder struct{ dim int }

func (e *erroringEmbedder) Name() string    { return "erroring" }
func (e *erroringEmbedder) Model() string   { return "erroring" }
func (e *erroringEmbedder) Dimensions() int { return e.dim }
func (e *erroringEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("primary unavailable")
}
func (e *erroringEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("primary unavailable")
}

func TestWithFallbackUsesSecondaryOnError(t *testing.T) {
	primary := &erroringEmbedder{dim: 8}
	secondary := NewMock(8)
	combined := WithFallback(primary, secondary)

	v, err := combined.Embed(context.Background(), "foo")
	require.NoError(t, err)
	want, _ := secondary.Embed(context.Background(), "foo")
	assert.Equal(t, want, v)
}

func TestWithFallbackPrefersPrimaryOnSuccess(t *testing.T) {
	primary := NewMock(8)
	secondary := NewMock(8)
	combined := WithFallback(primary, secondary)

	v, err := combined.Embed(context.Background(), "foo")
	require.NoError(t, err)
	want, _ := primary.Embed(context.Background(), "foo")
	assert.Equal(t, want, v)
}
