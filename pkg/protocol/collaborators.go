// Package protocol defines the contracts between the generation pipeline and
// its external collaborators. The pipeline depends on these interfaces only,
// never on a concrete transport, so tests can substitute deterministic fakes.
package protocol

import (
	"context"

	"github.com/dukex/flowgen/pkg/models"
)

// EmbeddingInput distinguishes query embeddings from document embeddings for
// providers that encode them asymmetrically.
type EmbeddingInput string

const (
	EmbeddingInputQuery    EmbeddingInput = "query"
	EmbeddingInputDocument EmbeddingInput = "document"
)

// Embedder turns text into a fixed-dimensionality vector.
type Embedder interface {
	// Embed encodes a single text. The returned vector always has
	// Dimensions() entries.
	Embed(ctx context.Context, text string, input EmbeddingInput) ([]float32, error)

	// EmbedBatch encodes several texts in one provider call, in input order.
	EmbedBatch(ctx context.Context, texts []string, input EmbeddingInput) ([][]float32, error)

	// Dimensions returns the vector size this embedder produces.
	Dimensions() int

	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
}

// VectorPoint is one indexed catalog entry: the operation, its embedding and
// the descriptive text the embedding was computed from.
type VectorPoint struct {
	ID        string
	Vector    []float32
	Operation models.ToolOperation
	Content   string
}

// VectorStore answers similarity queries over the indexed catalog. Search is
// the only call the pipeline makes; EnsureCollection and Upsert exist for the
// ingestion command that seeds the index.
type VectorStore interface {
	// Search returns the topK closest catalog entries for the query vector,
	// ordered by descending similarity score in [0,1].
	Search(ctx context.Context, vector []float32, topK int) ([]models.RetrievedCandidate, error)

	// EnsureCollection creates the backing collection when absent.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert writes points into the collection, replacing entries that share
	// an id.
	Upsert(ctx context.Context, points []VectorPoint) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// Generator produces text from a prompt. The pipeline parses workflow
// documents out of the returned text itself; the generator stays a plain
// prompt-in, text-out collaborator.
type Generator interface {
	// Generate runs one synchronous completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model identifies the underlying model, for logging and health output.
	Model() string

	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
}
