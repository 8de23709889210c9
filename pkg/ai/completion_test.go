package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

func TestComplete_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if req.MaxTokens != 1024 || len(req.Messages) != 1 {
			t.Fatalf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": "a summary"}}},
		})
	}))
	defer ts.Close()

	client := NewCompletionClient(&config.LLMConfig{APIKey: "test-key", BaseURL: ts.URL + "/", Timeout: time.Second})
	out, err := client.Complete(context.Background(), ChatRequest{
		Model:     "m",
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 1024,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if out != "a summary" {
		t.Fatalf("unexpected content %q", out)
	}
}

func TestComplete_ServerErrorIncludesStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewCompletionClient(&config.LLMConfig{APIKey: "k", BaseURL: ts.URL, Timeout: time.Second})
	_, err := client.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status 503 error got %v", err)
	}
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_INTEGRATION_EXTERNAL_API_FAILED {
		t.Fatalf("expected external api error got %v", err)
	}
}

func TestStream_ForwardsDeltas(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	client := NewCompletionClient(&config.LLMConfig{APIKey: "k", BaseURL: ts.URL, Timeout: time.Second})
	var sb strings.Builder
	err := client.Stream(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}}, func(d string) error {
		sb.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if sb.String() != "Hello world" {
		t.Fatalf("unexpected streamed content %q", sb.String())
	}
}

func TestEmbed_ReturnsIndexedItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		// answer in reverse order
		data := make([]EmbeddingItem, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, EmbeddingItem{Index: i, Embedding: []float32{float32(i)}})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer ts.Close()

	client := NewEmbeddingClient(&config.EmbeddingConfig{APIKey: "k", BaseURL: ts.URL, Model: "bge"})
	items, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(items) != 3 || items[0].Index != 2 {
		t.Fatalf("unexpected items %+v", items)
	}
}
