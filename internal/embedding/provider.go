// Package embedding provides vector embedding access for hybrid retrieval.
// The engine itself is an external collaborator; this package defines the
// consumed interface, an Ollama-backed client, and an exact-text cache.
package embedding

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates the embedding for a single text. A nil vector with a
	// nil error means the provider declined (e.g. empty input).
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of produced embeddings.
	Dimensions() int

	// Name returns the provider name for logs.
	Name() string
}
