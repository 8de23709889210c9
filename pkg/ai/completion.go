package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

// Message is a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat requests structured output from the model
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Completer returns a single completion
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Streamer streams completion deltas to onDelta
type Streamer interface {
	Stream(ctx context.Context, req ChatRequest, onDelta func(string) error) error
}

// CompletionClient talks to an OpenAI-compatible chat completions endpoint
type CompletionClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewCompletionClient creates a completion client from config
func NewCompletionClient(cfg *config.LLMConfig) *CompletionClient {
	return &CompletionClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends a non-streaming request and returns the assistant content
func (c *CompletionClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	req.Stream = false
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response from completion service")
	}
	return cr.Choices[0].Message.Content, nil
}

// Stream sends a streaming request and forwards each content delta
func (c *CompletionClient) Stream(ctx context.Context, req ChatRequest, onDelta func(string) error) error {
	req.Stream = true
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onDelta(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func (c *CompletionClient) do(ctx context.Context, req ChatRequest) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, apperrors.ErrMissingCredential("LLM_API_KEY")
	}

	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, apperrors.ErrExternalAPIFailed("completion",
			fmt.Errorf("completion service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return resp, nil
}
