package embedder

import "context"

// fallback composes two providers: Embed/EmbedBatch calls primary first and,
// on any error, falls back to secondary's result entirely. Retries and
// rate-limit backoff belong to the concrete providers, not here — this
// combinator only handles total failure of the primary.
type fallback struct {
	primary   Embedder
	secondary Embedder
}

// WithFallback returns an Embedder that prefers primary and falls back to
// secondary on error. The two providers must share the same Dimensions, or
// downstream consumers (the vector store, hybrid search) will see a
// DimensionMismatch depending on which provider actually served a request.
func WithFallback(primary, secondary Embedder) Embedder {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Name() string    { return f.primary.Name() + "+fallback(" + f.secondary.Name() + ")" }
func (f *fallback) Model() string   { return f.primary.Model() }
func (f *fallback) Dimensions() int { return f.primary.Dimensions() }

func (f *fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.primary.Embed(ctx, text)
	if err == nil {
		return v, nil
	}
	return f.secondary.Embed(ctx, text)
}

func (f *fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := f.primary.EmbedBatch(ctx, texts)
	if err == nil {
		return v, nil
	}
	return f.secondary.EmbedBatch(ctx, texts)
}
