package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// OpenAIBackend embeds text through the OpenAI embeddings API.
type OpenAIBackend struct {
	client    *openai.Client
	model     string
	dimension int
	retry     RetryConfig
}

// NewOpenAIBackend creates a backend for the given model. Dimension must
// match what the model actually produces (1536 for text-embedding-3-small).
func NewOpenAIBackend(apiKey, model string, dimension int) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai backend: %w: missing API key", types.ErrBackendUnavailable)
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if dimension <= 0 {
		dimension = 1536
	}
	return &OpenAIBackend{
		client:    openai.NewClient(apiKey),
		model:     model,
		dimension: dimension,
		retry:     DefaultRetryConfig(),
	}, nil
}

func (b *OpenAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	resp, err := retryWithBackoff(ctx, b.retry, func() (openai.EmbeddingResponse, error) {
		return b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(b.model),
			Input: texts,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %v", types.ErrBackendUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d vectors for %d texts",
			types.ErrBackendUnavailable, len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai returned index %d out of range",
				types.ErrBackendUnavailable, d.Index)
		}
		if len(d.Embedding) != b.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrBadDimension, len(d.Embedding), b.dimension)
		}
		vec := make([]float32, b.dimension)
		copy(vec, d.Embedding)
		vecs[d.Index] = vec
	}
	return vecs, nil
}

func (b *OpenAIBackend) Dimension() int { return b.dimension }

func (b *OpenAIBackend) ModelID() string { return "openai/" + b.model }

func (b *OpenAIBackend) Close() error { return nil }

// OllamaBackend embeds text through a local Ollama server.
type OllamaBackend struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	retry     RetryConfig
}

// NewOllamaBackend creates a backend talking to an Ollama server. baseURL
// defaults to the standard local port.
func NewOllamaBackend(baseURL, model string, dimension int) (*OllamaBackend, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dimension <= 0 {
		dimension = 768
	}
	return &OllamaBackend{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 120 * time.Second},
		retry:     DefaultRetryConfig(),
	}, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func (b *OllamaBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: b.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	parsed, err := retryWithBackoff(ctx, b.retry, func() (*ollamaEmbedResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, truncate(string(raw), 200))
		}

		var out ollamaEmbedResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode ollama response: %w", err)
		}
		if out.Error != "" {
			return nil, fmt.Errorf("ollama error: %s", out.Error)
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embeddings: %v", types.ErrBackendUnavailable, err)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d vectors for %d texts",
			types.ErrBackendUnavailable, len(parsed.Embeddings), len(texts))
	}
	for _, vec := range parsed.Embeddings {
		if len(vec) != b.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrBadDimension, len(vec), b.dimension)
		}
	}
	return parsed.Embeddings, nil
}

func (b *OllamaBackend) Dimension() int { return b.dimension }

func (b *OllamaBackend) ModelID() string { return "ollama/" + b.model }

func (b *OllamaBackend) Close() error { return nil }

// HashBackend produces deterministic pseudo-embeddings from content
// hashes. No network, no model: useful for tests, CI, and air-gapped
// smoke runs. Similarity scores are meaningless but stable.
type HashBackend struct {
	dimension int
}

// NewHashBackend creates a deterministic offline backend.
func NewHashBackend(dimension int) *HashBackend {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashBackend{dimension: dimension}
}

func (b *HashBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = b.hashVector(text)
	}
	return vecs, nil
}

// hashVector expands the text's SHA-256 into dimension floats by
// re-hashing with a counter, then L2-normalizes.
func (b *HashBackend) hashVector(text string) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, b.dimension)

	var block [32]byte = seed
	var counter uint32
	idx := 0
	for idx < b.dimension {
		for off := 0; off+4 <= len(block) && idx < b.dimension; off += 4 {
			bits := binary.LittleEndian.Uint32(block[off:])
			// Map to [-1, 1).
			vec[idx] = float32(int32(bits)) / float32(math.MaxInt32)
			idx++
		}
		counter++
		var next [36]byte
		copy(next[:32], seed[:])
		binary.LittleEndian.PutUint32(next[32:], counter)
		block = sha256.Sum256(next[:])
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func (b *HashBackend) Dimension() int { return b.dimension }

func (b *HashBackend) ModelID() string { return fmt.Sprintf("hash/sha256-%d", b.dimension) }

func (b *HashBackend) Close() error { return nil }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
