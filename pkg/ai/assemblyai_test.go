package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

func newAssemblyServer(t *testing.T, finalStatus string, polls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/v2/transcript"):
			var payload map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("invalid payload: %v", err)
			}
			if payload["speaker_labels"] != true {
				t.Fatalf("expected speaker_labels=true, got %v", payload["speaker_labels"])
			}
			if payload["audio_url"] != "http://example.com/audio.mp3" {
				t.Fatalf("unexpected audio_url %v", payload["audio_url"])
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "transcript-123", "status": "queued"})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/v2/transcript/transcript-123"):
			n := atomic.AddInt32(polls, 1)
			if n < 2 {
				json.NewEncoder(w).Encode(map[string]interface{}{"id": "transcript-123", "status": "processing"})
				return
			}
			if finalStatus == "error" {
				json.NewEncoder(w).Encode(map[string]interface{}{"id": "transcript-123", "status": "error", "error": "audio unreadable"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "transcript-123",
				"status": finalStatus,
				"text":   "Hello there. General Kenobi.",
				"utterances": []map[string]interface{}{
					{"text": "Hello there.", "start": 0, "end": 1500, "speaker": "A", "confidence": 0.9},
					{"text": "General Kenobi.", "start": 1600, "end": 3200, "speaker": "B", "confidence": 0.9},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestTranscribe_PollsUntilCompleted(t *testing.T) {
	var polls int32
	ts := newAssemblyServer(t, "completed", &polls)
	defer ts.Close()

	client := NewAssemblyAIClient(&config.AssemblyAIConfig{
		APIKey:       "test-key",
		BaseURL:      ts.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     10,
	}, nil)

	result, err := client.Transcribe(context.Background(), "http://example.com/audio.mp3")
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if result.ID != "transcript-123" {
		t.Fatalf("unexpected id %s", result.ID)
	}
	if len(result.Utterances) != 2 {
		t.Fatalf("expected 2 utterances got %d", len(result.Utterances))
	}
	second := result.Utterances[1]
	if second.Speaker != "B" || second.Start != 1.6 || second.End != 3.2 {
		t.Fatalf("unexpected utterance %+v", second)
	}
}

func TestTranscribe_ErrorStatusFails(t *testing.T) {
	var polls int32
	ts := newAssemblyServer(t, "error", &polls)
	defer ts.Close()

	client := NewAssemblyAIClient(&config.AssemblyAIConfig{
		APIKey:       "test-key",
		BaseURL:      ts.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     10,
	}, nil)

	_, err := client.Transcribe(context.Background(), "http://example.com/audio.mp3")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed got %v", err)
	}
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_AI_TRANSCRIPTION_FAILED {
		t.Fatalf("expected transcription error code got %v", err)
	}
}

func TestTranscribe_PollCeilingTimesOut(t *testing.T) {
	var polls int32
	ts := newAssemblyServer(t, "processing", &polls)
	defer ts.Close()

	client := NewAssemblyAIClient(&config.AssemblyAIConfig{
		APIKey:       "test-key",
		BaseURL:      ts.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     3,
	}, nil)

	_, err := client.Transcribe(context.Background(), "http://example.com/audio.mp3")
	if !errors.Is(err, ErrTranscriptionTimeout) {
		t.Fatalf("expected ErrTranscriptionTimeout got %v", err)
	}
	if got := atomic.LoadInt32(&polls); got != 3 {
		t.Fatalf("expected 3 polls got %d", got)
	}
}

func TestTranscribe_MissingKey(t *testing.T) {
	client := NewAssemblyAIClient(&config.AssemblyAIConfig{}, nil)
	if _, err := client.Transcribe(context.Background(), "http://example.com/a.mp3"); err == nil {
		t.Fatal("expected configuration error")
	}
}
