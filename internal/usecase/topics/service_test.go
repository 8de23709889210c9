package topics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

type staticCompleter struct {
	reply string
	err   error
}

func (c staticCompleter) Complete(context.Context, pkgai.ChatRequest) (string, error) {
	return c.reply, c.err
}

// vocabEmbedder maps known phrases to fixed vectors
type vocabEmbedder map[string][]float32

func (e vocabEmbedder) Embed(_ context.Context, inputs []string) ([]pkgai.EmbeddingItem, error) {
	out := make([]pkgai.EmbeddingItem, len(inputs))
	for i, in := range inputs {
		v, ok := e[in]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = pkgai.EmbeddingItem{Index: i, Embedding: v}
	}
	return out, nil
}

// memTopics keeps topics in memory and ranks them by cosine similarity
type memTopics struct {
	mu     sync.Mutex
	topics map[string]*entities.Topic
	links  map[[2]uuid.UUID]entities.EpisodeTopic
	// raceWith is inserted on the first Create, simulating a concurrent writer
	raceWith *entities.Topic
}

func newMemTopics() *memTopics {
	return &memTopics{
		topics: map[string]*entities.Topic{},
		links:  map[[2]uuid.UUID]entities.EpisodeTopic{},
	}
}

func (m *memTopics) FindBySlug(_ context.Context, slug string) (*entities.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[slug]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTopics) MatchTopics(_ context.Context, embedding []float32, threshold float64, count int) ([]entities.TopicMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.TopicMatch
	for _, t := range m.topics {
		if sim := entities.CosineSimilarity(embedding, t.Embedding); sim >= threshold {
			out = append(out, entities.TopicMatch{Topic: *t, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (m *memTopics) Create(_ context.Context, topic *entities.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceWith != nil {
		m.topics[m.raceWith.Slug] = m.raceWith
		m.raceWith = nil
	}
	if _, ok := m.topics[topic.Slug]; ok {
		return entities.ErrDuplicate
	}
	m.topics[topic.Slug] = topic
	return nil
}

func (m *memTopics) UpsertEpisodeTopic(_ context.Context, link *entities.EpisodeTopic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[[2]uuid.UUID{link.EpisodeID, link.TopicID}] = *link
	return nil
}

func (m *memTopics) CountEpisodeTopics(_ context.Context, episodeID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.links {
		if k[0] == episodeID {
			n++
		}
	}
	return n, nil
}

func (m *memTopics) EpisodesByTopic(_ context.Context, topicID uuid.UUID) ([]entities.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Episode
	for k := range m.links {
		if k[1] == topicID {
			out = append(out, entities.Episode{ID: k[0]})
		}
	}
	return out, nil
}

var vocab = vocabEmbedder{
	"Artificial Intelligence": {1, 0, 0},
	"AI":                      {0.98, 0.1, 0},
	"Gardening":               {0, 1, 0},
}

func TestAssignEpisode_ConvergesOnSimilarTopic(t *testing.T) {
	repo := newMemTopics()
	ctx := context.Background()

	first := NewTopicService(staticCompleter{reply: `{"topics": ["Artificial Intelligence"]}`}, "fast", vocab, repo, 0, nil)
	epA := &entities.Episode{ID: uuid.New()}
	if n, err := first.AssignEpisode(ctx, epA, "transcript a"); err != nil || n != 1 {
		t.Fatalf("assign a: n=%d err=%v", n, err)
	}

	second := NewTopicService(staticCompleter{reply: "```json\n{\"topics\": [\"AI\"]}\n```"}, "fast", vocab, repo, 0, nil)
	epB := &entities.Episode{ID: uuid.New()}
	if n, err := second.AssignEpisode(ctx, epB, "transcript b"); err != nil || n != 1 {
		t.Fatalf("assign b: n=%d err=%v", n, err)
	}

	if len(repo.topics) != 1 {
		t.Fatalf("expected 1 topic got %d", len(repo.topics))
	}
	if len(repo.links) != 2 {
		t.Fatalf("expected 2 episode links got %d", len(repo.links))
	}
	eps, err := first.EpisodesByTopic(ctx, "artificial-intelligence")
	if err != nil || len(eps) != 2 {
		t.Fatalf("expected both episodes under the topic, got %d (%v)", len(eps), err)
	}
}

func TestFindOrCreate_DistinctTopicsStaySeparate(t *testing.T) {
	repo := newMemTopics()
	svc := NewTopicService(staticCompleter{}, "fast", vocab, repo, 0, nil)
	ctx := context.Background()

	a, err := svc.FindOrCreate(ctx, "Artificial Intelligence")
	if err != nil {
		t.Fatal(err)
	}
	g, err := svc.FindOrCreate(ctx, "Gardening")
	if err != nil {
		t.Fatal(err)
	}
	if a == g {
		t.Fatal("unrelated topics must not merge")
	}
	again, err := svc.FindOrCreate(ctx, "  artificial   intelligence! ")
	if err != nil || again != a {
		t.Fatalf("slug match should return the existing topic, got %v %v", again, err)
	}
}

func TestFindOrCreate_DuplicateRaceRereads(t *testing.T) {
	repo := newMemTopics()
	winner := entities.NewTopic("Gardening", []float32{0, 1, 0})
	repo.raceWith = winner
	svc := NewTopicService(staticCompleter{}, "fast", vocab, repo, 0, nil)

	id, err := svc.FindOrCreate(context.Background(), "Gardening")
	if err != nil {
		t.Fatalf("find or create failed: %v", err)
	}
	if id != winner.ID {
		t.Fatalf("expected the concurrent writer's topic %s got %s", winner.ID, id)
	}
}

func TestExtract_UnparseableReplyYieldsNoTopics(t *testing.T) {
	svc := NewTopicService(staticCompleter{reply: "I could not find topics"}, "fast", vocab, newMemTopics(), 0, nil)
	names, err := svc.Extract(context.Background(), "text")
	if err != nil || len(names) != 0 {
		t.Fatalf("expected empty result got %v %v", names, err)
	}
}

func TestExtract_CompletionErrorPropagates(t *testing.T) {
	svc := NewTopicService(staticCompleter{err: errors.New("boom")}, "fast", vocab, newMemTopics(), 0, nil)
	if _, err := svc.Extract(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
}

func TestExtract_CapsTopics(t *testing.T) {
	reply := `{"topics": ["a","b","c","d","e","f","g","h","i","j"]}`
	svc := NewTopicService(staticCompleter{reply: reply}, "fast", vocab, newMemTopics(), 0, nil)
	names, err := svc.Extract(context.Background(), "text")
	if err != nil || len(names) != MaxTopics {
		t.Fatalf("expected %d topics got %v %v", MaxTopics, names, err)
	}
}

// recordingCompleter keeps the user message of the last request
type recordingCompleter struct {
	reply string
	user  string
}

func (c *recordingCompleter) Complete(_ context.Context, req pkgai.ChatRequest) (string, error) {
	for _, m := range req.Messages {
		if m.Role == "user" {
			c.user = m.Content
		}
	}
	return c.reply, nil
}

func TestExtract_TruncatesOnRuneBoundary(t *testing.T) {
	completer := &recordingCompleter{reply: `{"topics": ["Kaffee"]}`}
	svc := NewTopicService(completer, "fast", vocab, newMemTopics(), 0, nil)
	text := "x" + strings.Repeat("ö", MaxInputChars)
	if _, err := svc.Extract(context.Background(), text); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !utf8.ValidString(completer.user) {
		t.Fatal("prompt text is not valid utf-8")
	}
	if len(completer.user) != MaxInputChars-1 {
		t.Fatalf("expected %d bytes got %d", MaxInputChars-1, len(completer.user))
	}
}

func TestSearch(t *testing.T) {
	repo := newMemTopics()
	svc := NewTopicService(staticCompleter{}, "fast", vocab, repo, 0, nil)
	ctx := context.Background()
	if _, err := svc.FindOrCreate(ctx, "Artificial Intelligence"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.FindOrCreate(ctx, "Gardening"); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Search(ctx, "AI")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Slug != "artificial-intelligence" {
		t.Fatalf("unexpected matches %+v", got)
	}

	if _, err := svc.EpisodesByTopic(ctx, "missing"); !errors.Is(err, entities.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
