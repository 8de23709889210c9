package transcription

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

type fakeResponse struct {
	body        string
	contentType string
	err         error
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	r, ok := f.responses[url]
	if !ok {
		return nil, "", fmt.Errorf("unexpected status 404 for %s", url)
	}
	if r.err != nil {
		return nil, "", r.err
	}
	return []byte(r.body), r.contentType, nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]string)}
}

func (m *memStore) PutText(_ context.Context, key, content, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content
	return "mem://" + key, nil
}

func (m *memStore) ReadText(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.objects[strings.TrimPrefix(url, "mem://")]
	if !ok {
		return "", entities.ErrNotFound
	}
	return v, nil
}

type fakeEpisodes struct {
	mu      sync.Mutex
	textURL string
	rawURL  string
	writes  int
}

func (f *fakeEpisodes) FindByID(context.Context, uuid.UUID) (*entities.Episode, error) {
	return nil, nil
}

func (f *fakeEpisodes) ListByPodcast(context.Context, uuid.UUID) ([]entities.Episode, error) {
	return nil, nil
}

func (f *fakeEpisodes) UpdateState(context.Context, uuid.UUID, entities.EpisodeState, entities.ProcessingStatus, datatypes.JSON) error {
	return nil
}

func (f *fakeEpisodes) ClearErrors(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeEpisodes) SetTranscriptURLs(_ context.Context, _ uuid.UUID, textURL, rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textURL, f.rawURL = textURL, rawURL
	f.writes++
	return nil
}

func (f *fakeEpisodes) SetSummaryURL(context.Context, uuid.UUID, string) error {
	return nil
}

func (f *fakeEpisodes) UpsertSpeaker(context.Context, uuid.UUID, string, string, bool) error {
	return nil
}

type fakeSTT struct {
	result *pkgai.TranscriptionResult
	err    error
	calls  int
}

func (f *fakeSTT) Transcribe(context.Context, string) (*pkgai.TranscriptionResult, error) {
	f.calls++
	return f.result, f.err
}

// prose returns n distinct words split into ten-word sentences
func prose(n int, prefix string) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s%03d", prefix, i)
		if i%10 == 9 {
			sb.WriteByte('.')
		}
	}
	if n%10 != 0 {
		sb.WriteByte('.')
	}
	return sb.String()
}
