package memorystream

import (
	"context"
	"hash/fnv"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/beezlebug/agentgraph/engerr"
	"github.com/beezlebug/agentgraph/storage"
)

// HashEmbedder is a deterministic, network-free Embedder for tests: it
// maps text to a fixed-width pseudo-embedding by hashing overlapping
// shingles into buckets. It carries no semantic meaning, only stability,
// which is all retrieval-ordering tests need.
type HashEmbedder struct{}

var _ Embedder = HashEmbedder{}

func (HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, storage.EmbeddingDim)
	if text == "" {
		return out, nil
	}
	for i := 0; i < len(text); i++ {
		h := fnv.New32a()
		h.Write([]byte(text[:i+1]))
		bucket := h.Sum32() % uint32(storage.EmbeddingDim)
		out[bucket] += 1
	}
	normalize(out)
	return out, nil
}

func normalize(v []float32) {
	var sumSquares float64
	for _, f := range v {
		sumSquares += float64(f) * float64(f)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= norm
	}
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint through
// sashabaranov/go-openai, the same client the LLM adapter uses.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds an embedder against apiKey/baseURL. model
// defaults to text-embedding-3-small when empty.
func NewOpenAIEmbedder(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.SmallEmbedding3
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, engerr.NewTool("embedder", err)
	}
	if len(resp.Data) == 0 {
		return nil, engerr.NewTool("embedder", nil)
	}
	return resp.Data[0].Embedding, nil
}
