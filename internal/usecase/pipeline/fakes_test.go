package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/transcription"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

type stateWrite struct {
	state  entities.EpisodeState
	status entities.ProcessingStatus
	err    datatypes.JSON
}

type memEpisodes struct {
	mu       sync.Mutex
	episodes map[uuid.UUID]*entities.Episode
	writes   map[uuid.UUID][]stateWrite
	// failOn makes UpdateState reject writes of this state.
	failOn entities.EpisodeState
}

func newMemEpisodes(eps ...*entities.Episode) *memEpisodes {
	m := &memEpisodes{episodes: map[uuid.UUID]*entities.Episode{}, writes: map[uuid.UUID][]stateWrite{}}
	for _, ep := range eps {
		m.episodes[ep.ID] = ep
	}
	return m
}

func (m *memEpisodes) FindByID(_ context.Context, id uuid.UUID) (*entities.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.episodes[id]
	if !ok {
		return nil, nil
	}
	cp := *ep
	return &cp, nil
}

func (m *memEpisodes) ListByPodcast(_ context.Context, podcastID uuid.UUID) ([]entities.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Episode
	for _, ep := range m.episodes {
		if ep.PodcastID == podcastID {
			out = append(out, *ep)
		}
	}
	return out, nil
}

func (m *memEpisodes) UpdateState(_ context.Context, id uuid.UUID, state entities.EpisodeState, status entities.ProcessingStatus, runErr datatypes.JSON) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.episodes[id]
	if !ok {
		return entities.ErrNotFound
	}
	if m.failOn != "" && state == m.failOn {
		return errors.New("connection reset")
	}
	ep.State, ep.Status, ep.Error = state, status, runErr
	m.writes[id] = append(m.writes[id], stateWrite{state: state, status: status, err: runErr})
	return nil
}

func (m *memEpisodes) ClearErrors(_ context.Context, podcastID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ep := range m.episodes {
		if ep.PodcastID == podcastID && (ep.Error != nil || ep.State == entities.EpisodeStateFailed) {
			ep.Error = nil
			ep.State = entities.EpisodeStatePending
			n++
		}
	}
	return n, nil
}

func (m *memEpisodes) SetTranscriptURLs(_ context.Context, id uuid.UUID, textURL, rawURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[id].TranscriptURL, m.episodes[id].RawTranscriptURL = textURL, rawURL
	return nil
}

func (m *memEpisodes) SetSummaryURL(_ context.Context, id uuid.UUID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[id].SummaryURL = url
	return nil
}

func (m *memEpisodes) UpsertSpeaker(_ context.Context, id uuid.UUID, speaker, name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep := m.episodes[id]
	if ep.SpeakerMap == nil {
		ep.SpeakerMap = entities.SpeakerMap{}
	}
	if _, ok := ep.SpeakerMap[speaker]; ok && !force {
		return nil
	}
	ep.SpeakerMap[speaker] = name
	return nil
}

func (m *memEpisodes) states(id uuid.UUID) []entities.EpisodeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.EpisodeState
	for _, w := range m.writes[id] {
		out = append(out, w.state)
	}
	return out
}

func (m *memEpisodes) last(id uuid.UUID) stateWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.writes[id]
	return w[len(w)-1]
}

type memPodcasts map[uuid.UUID]*entities.Podcast

func (m memPodcasts) FindByID(_ context.Context, id uuid.UUID) (*entities.Podcast, error) {
	return m[id], nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]string{}}
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

type memDocuments struct {
	mu      sync.Mutex
	docs    map[string]entities.Document
	chunks  map[uuid.UUID][]entities.Chunk
	deletes int
}

func newMemDocuments() *memDocuments {
	return &memDocuments{docs: map[string]entities.Document{}, chunks: map[uuid.UUID][]entities.Chunk{}}
}

func (m *memDocuments) FindByEpisode(_ context.Context, episodeID uuid.UUID) ([]entities.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Document
	for _, d := range m.docs {
		if d.EpisodeID == episodeID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocuments) DeleteByEpisode(_ context.Context, episodeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	for k, d := range m.docs {
		if d.EpisodeID == episodeID {
			delete(m.chunks, d.ID)
			delete(m.docs, k)
		}
	}
	return nil
}

func (m *memDocuments) UpsertDocument(_ context.Context, doc *entities.Document) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := doc.EpisodeID.String() + "|" + doc.Source
	if existing, ok := m.docs[key]; ok {
		return existing.ID, nil
	}
	m.docs[key] = *doc
	return doc.ID, nil
}

func (m *memDocuments) ReplaceChunks(_ context.Context, documentID uuid.UUID, chunks []entities.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[documentID] = append([]entities.Chunk(nil), chunks...)
	return nil
}

func (m *memDocuments) MatchChunks(context.Context, []float32, domainrepo.MatchParams) ([]entities.ChunkMatch, error) {
	return nil, nil
}

func (m *memDocuments) allChunks() []entities.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Chunk
	for _, c := range m.chunks {
		out = append(out, c...)
	}
	return out
}

type memTopicLinks struct {
	mu    sync.Mutex
	count map[uuid.UUID]int64
}

func (m *memTopicLinks) FindBySlug(context.Context, string) (*entities.Topic, error) { return nil, nil }

func (m *memTopicLinks) MatchTopics(context.Context, []float32, float64, int) ([]entities.TopicMatch, error) {
	return nil, nil
}

func (m *memTopicLinks) Create(context.Context, *entities.Topic) error { return nil }

func (m *memTopicLinks) UpsertEpisodeTopic(_ context.Context, link *entities.EpisodeTopic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == nil {
		m.count = map[uuid.UUID]int64{}
	}
	m.count[link.EpisodeID]++
	return nil
}

func (m *memTopicLinks) CountEpisodeTopics(_ context.Context, episodeID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count[episodeID], nil
}

func (m *memTopicLinks) EpisodesByTopic(context.Context, uuid.UUID) ([]entities.Episode, error) {
	return nil, nil
}

type memSuggestions struct {
	mu   sync.Mutex
	sets map[uuid.UUID][]string
}

func (m *memSuggestions) ListByEpisode(_ context.Context, episodeID uuid.UUID) ([]entities.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Suggestion
	for _, q := range m.sets[episodeID] {
		out = append(out, entities.Suggestion{EpisodeID: episodeID, Query: q})
	}
	return out, nil
}

func (m *memSuggestions) Replace(_ context.Context, episodeID uuid.UUID, queries []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets == nil {
		m.sets = map[uuid.UUID][]string{}
	}
	m.sets[episodeID] = queries
	return nil
}

type memLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLock) Acquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// stubTranscriber stores a fixed transcript the way the real chain does
type stubTranscriber struct {
	mu       sync.Mutex
	episodes *memEpisodes
	store    *memStore
	segments []entities.Segment
	err      error
	calls    int
	gate     chan struct{}
	inFlight int
	peak     int
}

func (s *stubTranscriber) Transcribe(ctx context.Context, episode *entities.Episode, _ *entities.Podcast) (*transcription.Result, error) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	s.peak = max(s.peak, s.inFlight)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}

	timed := entities.BuildTimedTranscript("stub", s.segments, entities.DefaultGrouping())
	raw, _ := json.Marshal(timed)
	rawURL, _ := s.store.PutText(ctx, entities.ArtifactKey(episode.PodcastID, episode.ID, entities.ArtifactTranscriptJSON), string(raw), "application/json")
	textURL, _ := s.store.PutText(ctx, entities.ArtifactKey(episode.PodcastID, episode.ID, entities.ArtifactTranscriptText), timed.Text(), "text/plain")
	_ = s.episodes.SetTranscriptURLs(ctx, episode.ID, textURL, rawURL)
	episode.TranscriptURL, episode.RawTranscriptURL = textURL, rawURL
	return &transcription.Result{Source: "stub", Transcript: timed, TextURL: textURL, RawURL: rawURL}, nil
}

type stubSummarizer struct {
	episodes *memEpisodes
	err      error
	calls    int
	mu       sync.Mutex
}

func (s *stubSummarizer) Summarize(context.Context, string, int, *entities.Podcast, *entities.Episode) (string, error) {
	return "summary", nil
}

func (s *stubSummarizer) SummarizeEpisode(ctx context.Context, episode *entities.Episode, _ *entities.Podcast, _ *entities.TimedTranscript) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	url := "mem://" + entities.ArtifactKey(episode.PodcastID, episode.ID, entities.ArtifactSummary)
	return url, s.episodes.SetSummaryURL(ctx, episode.ID, url)
}

type stubSpeakers struct {
	episodes *memEpisodes
	panics   bool
	calls    int
	mu       sync.Mutex
}

func (s *stubSpeakers) Identify(context.Context, string, *entities.Podcast, *entities.Episode) (map[string]string, error) {
	return map[string]string{"0": "Host"}, nil
}

func (s *stubSpeakers) IdentifyEpisode(ctx context.Context, episode *entities.Episode, _ *entities.Podcast, _ *entities.TimedTranscript, force bool) (map[string]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("speaker model exploded")
	}
	return map[string]string{"0": "Host"}, s.episodes.UpsertSpeaker(ctx, episode.ID, "0", "Host", force)
}

type stubTopics struct {
	links *memTopicLinks
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubTopics) Extract(context.Context, string) ([]string, error) { return []string{"AI"}, nil }

func (s *stubTopics) FindOrCreate(context.Context, string) (uuid.UUID, error) { return uuid.New(), nil }

func (s *stubTopics) AssignEpisode(ctx context.Context, episode *entities.Episode, _ string) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return 1, s.links.UpsertEpisodeTopic(ctx, &entities.EpisodeTopic{EpisodeID: episode.ID, TopicID: uuid.New(), Confidence: 1})
}

func (s *stubTopics) Search(context.Context, string) ([]entities.TopicMatch, error) { return nil, nil }

func (s *stubTopics) EpisodesByTopic(context.Context, string) ([]entities.Episode, error) {
	return nil, nil
}

type stubSuggester struct {
	suggestions *memSuggestions
	calls       int
	mu          sync.Mutex
}

func (s *stubSuggester) Suggest(context.Context, string, *entities.Podcast, *entities.Episode) ([]string, error) {
	return []string{"What is this about?"}, nil
}

func (s *stubSuggester) SuggestEpisode(ctx context.Context, episode *entities.Episode, _ *entities.Podcast, _ *entities.TimedTranscript) ([]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	queries := []string{"What is this about?"}
	return queries, s.suggestions.Replace(ctx, episode.ID, queries)
}

// lengthEmbedder encodes each input length as a one-dimensional vector
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, inputs []string) ([]pkgai.EmbeddingItem, error) {
	out := make([]pkgai.EmbeddingItem, len(inputs))
	for i, in := range inputs {
		out[i] = pkgai.EmbeddingItem{Index: i, Embedding: []float32{float32(len(in))}}
	}
	return out, nil
}

var errUpstream = errors.New("completion service returned status 500: internal server error")
