package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

// EmbeddingItem is one vector tagged with the index of its input
type EmbeddingItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Embedder embeds a batch of inputs. Items may come back in any order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([]EmbeddingItem, error)
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []EmbeddingItem `json:"data"`
}

// EmbeddingClient talks to an OpenAI-compatible embeddings endpoint
type EmbeddingClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewEmbeddingClient creates an embedding client from config
func NewEmbeddingClient(cfg *config.EmbeddingConfig) *EmbeddingClient {
	return &EmbeddingClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed returns one item per input
func (c *EmbeddingClient) Embed(ctx context.Context, inputs []string) ([]EmbeddingItem, error) {
	if c.apiKey == "" {
		return nil, apperrors.ErrMissingCredential("EMBEDDING_API_KEY")
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	b, err := json.Marshal(embeddingRequest{Model: c.model, Input: inputs, EncodingFormat: "float"})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.ErrExternalAPIFailed("embedding",
			fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings: %w", err)
	}
	if len(er.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(er.Data), len(inputs))
	}
	return er.Data, nil
}
