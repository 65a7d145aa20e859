// Package providers implements embedding providers and the caches in front
// of them.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const (
	openaiDefaultBase  = "https://api.openai.com/v1"
	openaiDefaultModel = "text-embedding-ada-002"

	// maxEmbedTokens is the input budget of the OpenAI embedding models.
	// Longer inputs are truncated rather than rejected.
	maxEmbedTokens = 8192
)

// OpenAIEmbedding calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedding struct {
	name    string
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	encoder *tiktoken.Tiktoken
}

// NewOpenAIEmbedding creates an embedding provider. Empty apiBase and model
// fall back to the OpenAI defaults; compatible gateways just set apiBase.
func NewOpenAIEmbedding(name, apiKey, apiBase, model string) *OpenAIEmbedding {
	if name == "" {
		name = "openai"
	}
	if apiBase == "" {
		apiBase = openaiDefaultBase
	}
	if model == "" {
		model = openaiDefaultModel
	}
	// cl100k_base covers the embedding model family; a nil encoder just
	// disables truncation.
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &OpenAIEmbedding{
		name:    name,
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		encoder: enc,
	}
}

func (p *OpenAIEmbedding) Name() string  { return p.name }
func (p *OpenAIEmbedding) Model() string { return p.model }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates one embedding per input text, preserving order.
func (p *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = p.truncate(t)
	}

	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embeddings request: status %d: %s", resp.StatusCode, detail)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// truncate caps text at the model's token budget.
func (p *OpenAIEmbedding) truncate(text string) string {
	if p.encoder == nil {
		return text
	}
	tokens := p.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxEmbedTokens {
		return text
	}
	return p.encoder.Decode(tokens[:maxEmbedTokens])
}
