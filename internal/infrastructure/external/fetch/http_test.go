package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/vtt")
		_, _ = w.Write([]byte("WEBVTT\n"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(config.HTTPClientConfig{Timeout: time.Second, UserAgent: "test-agent"})

	body, ct, err := f.Fetch(context.Background(), srv.URL+"/ep.vtt")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != "WEBVTT\n" || ct != "text/vtt" {
		t.Fatalf("unexpected response %q %q", body, ct)
	}

	_, _, err = f.Fetch(context.Background(), srv.URL+"/missing")
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status error got %v", err)
	}
}
