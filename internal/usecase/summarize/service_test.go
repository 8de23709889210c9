package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

// fakeCompleter answers with reply(system, user) and records every call
type fakeCompleter struct {
	mu      sync.Mutex
	systems []string
	reply   func(system, user string) string
}

func (f *fakeCompleter) Complete(_ context.Context, req pkgai.ChatRequest) (string, error) {
	f.mu.Lock()
	f.systems = append(f.systems, req.Messages[0].Content)
	f.mu.Unlock()
	return f.reply(req.Messages[0].Content, req.Messages[1].Content), nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.systems)
}

func longText(lines, width int) string {
	var sb strings.Builder
	for i := 0; i < lines; i++ {
		line := fmt.Sprintf("line %04d ", i)
		sb.WriteString(line + strings.Repeat("x", width-len(line)) + "\n")
	}
	return sb.String()
}

func TestSummarize_ReducesUntilWithinBudget(t *testing.T) {
	completer := &fakeCompleter{reply: func(system, user string) string {
		if strings.Contains(system, "one-paragraph") {
			return "This episode covers everything."
		}
		return "A short chunk summary."
	}}
	svc := NewSummarizeService(completer, "fast", 100, nil, nil, nil)

	out, err := svc.Summarize(context.Background(), longText(40, 100), 100, &entities.Podcast{Title: "Go Time"}, nil)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if out != "This episode covers everything." {
		t.Fatalf("unexpected summary %q", out)
	}
	if len(out) > 400 {
		t.Fatal("summary exceeds budget")
	}

	last := completer.systems[len(completer.systems)-1]
	if !strings.Contains(last, "one-paragraph") || !strings.Contains(last, "Go Time") {
		t.Fatalf("final call should use the episode framing prompt, got %q", last)
	}
	if !strings.Contains(completer.systems[0], "podcast transcript") {
		t.Fatal("first round should use the transcript prompt")
	}
	if completer.calls() < 3 {
		t.Fatalf("expected several chunk calls plus a final call, got %d", completer.calls())
	}
}

func TestSummarize_MultipleRoundsTerminate(t *testing.T) {
	// each chunk summary is a third of its input, so several rounds are needed
	completer := &fakeCompleter{reply: func(system, user string) string {
		if strings.Contains(system, "one-paragraph") {
			return strings.Repeat("s", 1000)
		}
		return strings.Repeat("y", len(user)/3)
	}}
	svc := NewSummarizeService(completer, "fast", 50, nil, nil, nil)

	out, err := svc.Summarize(context.Background(), longText(200, 150), 50, nil, nil)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if len(out) > 200 {
		t.Fatalf("final output above budget: %d chars", len(out))
	}
}

func TestSummarize_ShortTextSingleCall(t *testing.T) {
	completer := &fakeCompleter{reply: func(string, string) string { return "This episode is short." }}
	svc := NewSummarizeService(completer, "fast", 1000, nil, nil, nil)

	if _, err := svc.Summarize(context.Background(), "hello\nworld", 1000, nil, nil); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if completer.calls() != 1 {
		t.Fatalf("expected one call got %d", completer.calls())
	}
}

func TestSummarize_NonShrinkingRoundFails(t *testing.T) {
	completer := &fakeCompleter{reply: func(_ string, user string) string { return user + " and more" }}
	svc := NewSummarizeService(completer, "fast", 10, nil, nil, nil)

	_, err := svc.Summarize(context.Background(), longText(10, 80), 10, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "did not shrink") {
		t.Fatalf("expected shrink error got %v", err)
	}
}

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, pkgai.ChatRequest) (string, error) {
	return "", errors.New("completion service returned status 503")
}

func TestSummarize_CompletionFailure(t *testing.T) {
	svc := NewSummarizeService(failingCompleter{}, "fast", 1000, nil, nil, nil)

	_, err := svc.Summarize(context.Background(), "hello\nworld", 1000, nil, nil)
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_AI_SUMMARY_FAILED {
		t.Fatalf("expected summary failure got %v", err)
	}
	if !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("cause should stay visible for retry classification: %v", err)
	}
}

func TestChunkText(t *testing.T) {
	chunks := chunkText("aaaa\n\n  bbbb  \ncccc\n"+strings.Repeat("z", 10), 2)
	want := []string{"aaaa", "bbbb", "cccc", "zzzzzzzz", "zz"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %v got %v", want, chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: expected %q got %q", i, want[i], chunks[i])
		}
	}
	for _, c := range chunks {
		if len(c) > 8 {
			t.Fatalf("chunk over budget: %q", c)
		}
	}
}

func TestChunkText_MultibyteLine(t *testing.T) {
	line := strings.Repeat("é", 10)
	chunks := chunkText(line, 1)
	if strings.Join(chunks, "") != line {
		t.Fatalf("chunks lost text: %q", chunks)
	}
	for _, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk is not valid utf-8: %q", c)
		}
		if len(c) > 4 {
			t.Fatalf("chunk over budget: %q", c)
		}
	}
}

type memStore struct {
	objects map[string]string
}

func (m *memStore) PutText(_ context.Context, key, content, _ string) (string, error) {
	m.objects[key] = content
	return "mem://" + key, nil
}

func (m *memStore) ReadText(_ context.Context, url string) (string, error) {
	return m.objects[strings.TrimPrefix(url, "mem://")], nil
}

type summaryEpisodes struct {
	summaryURL string
}

func (f *summaryEpisodes) FindByID(context.Context, uuid.UUID) (*entities.Episode, error) {
	return nil, nil
}

func (f *summaryEpisodes) ListByPodcast(context.Context, uuid.UUID) ([]entities.Episode, error) {
	return nil, nil
}

func (f *summaryEpisodes) UpdateState(context.Context, uuid.UUID, entities.EpisodeState, entities.ProcessingStatus, datatypes.JSON) error {
	return nil
}

func (f *summaryEpisodes) ClearErrors(context.Context, uuid.UUID) (int64, error) { return 0, nil }

func (f *summaryEpisodes) SetTranscriptURLs(context.Context, uuid.UUID, string, string) error {
	return nil
}

func (f *summaryEpisodes) SetSummaryURL(_ context.Context, _ uuid.UUID, url string) error {
	f.summaryURL = url
	return nil
}

func (f *summaryEpisodes) UpsertSpeaker(context.Context, uuid.UUID, string, string, bool) error {
	return nil
}

func TestSummarizeEpisode_StoresArtifact(t *testing.T) {
	completer := &fakeCompleter{reply: func(string, string) string { return "This episode is about Go." }}
	store := &memStore{objects: map[string]string{}}
	episodes := &summaryEpisodes{}
	svc := NewSummarizeService(completer, "fast", 1000, store, episodes, nil)

	ep := &entities.Episode{ID: uuid.New(), PodcastID: uuid.New(), Title: "Go"}
	tr := entities.BuildTimedTranscript("feed", []entities.Segment{{Text: "We talk about Go.", Start: 0, End: 2, Speaker: entities.NoSpeaker}}, entities.DefaultGrouping())

	url, err := svc.SummarizeEpisode(context.Background(), ep, nil, tr)
	if err != nil {
		t.Fatalf("summarize episode failed: %v", err)
	}
	if episodes.summaryURL != url {
		t.Fatal("summary url not saved")
	}
	key := entities.ArtifactKey(ep.PodcastID, ep.ID, entities.ArtifactSummary)
	if store.objects[key] != "This episode is about Go." {
		t.Fatalf("unexpected stored summary %q", store.objects[key])
	}
}
