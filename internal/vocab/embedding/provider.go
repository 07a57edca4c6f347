package embedding

import (
	"context"
)

// Provider turns text into fixed-length vectors. Implementations must be
// deterministic for identical input within one model version; failures are
// retryable, not fatal to callers.
type Provider interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedModel() string
}

// EmbedOne is a convenience for the common single-text case.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}
