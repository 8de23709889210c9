// Package topics extracts episode topics and converges them onto a shared,
// deduplicated topic catalog.
package topics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/ai"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

const extractPrompt = `You are a topic extraction assistant. Given a podcast transcript or summary, extract 3-8 key topics discussed.
Each topic should be a concise phrase (1-4 words), like "Artificial Intelligence", "Mental Health", "Startup Funding", "Climate Change".
Topics should be general enough to appear across multiple podcast episodes but specific enough to be meaningful.
Return ONLY a JSON object with a "topics" key containing an array of topic strings. No explanations. Example: {"topics": ["AI", "Robotics"]}`

const (
	// MaxInputChars is the transcript prefix sent for extraction
	MaxInputChars = 12000
	// MaxTopics caps topics per episode
	MaxTopics = 8
	// DefaultMatchThreshold is the similarity at which two topic names are the same topic
	DefaultMatchThreshold = 0.85

	searchThreshold = 0.5
	searchCount     = 20
)

// Service defines topic extraction and discovery
type Service interface {
	Extract(ctx context.Context, text string) ([]string, error)
	FindOrCreate(ctx context.Context, name string) (uuid.UUID, error)
	// AssignEpisode extracts topics from text and links each to the episode. Returns the number linked.
	AssignEpisode(ctx context.Context, episode *entities.Episode, text string) (int, error)
	Search(ctx context.Context, query string) ([]entities.TopicMatch, error)
	EpisodesByTopic(ctx context.Context, slug string) ([]entities.Episode, error)
}

type topicService struct {
	completer pkgai.Completer
	model     string
	embedder  pkgai.Embedder
	topics    domainrepo.TopicRepository
	threshold float64
	parser    *ai.Parser
	logger    *zap.Logger
}

// NewTopicService creates a topic service. threshold <= 0 uses DefaultMatchThreshold.
func NewTopicService(
	completer pkgai.Completer,
	model string,
	embedder pkgai.Embedder,
	topics domainrepo.TopicRepository,
	threshold float64,
	logger *zap.Logger,
) Service {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &topicService{
		completer: completer,
		model:     model,
		embedder:  embedder,
		topics:    topics,
		threshold: threshold,
		parser:    ai.NewParser(),
		logger:    logger,
	}
}

// Extract asks for 3-8 topics. An unparseable reply yields no topics rather than an error.
func (s *topicService) Extract(ctx context.Context, text string) ([]string, error) {
	text = ai.TruncateBytes(text, MaxInputChars)

	reply, err := s.completer.Complete(ctx, pkgai.ChatRequest{
		Model:          s.model,
		MaxTokens:      ai.MaxTokens,
		ResponseFormat: &pkgai.ResponseFormat{Type: "json_object"},
		Messages: []pkgai.Message{
			{Role: "system", Content: extractPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, apperrors.ErrTopicExtractionFailed(err)
	}

	names, err := s.parser.ParseTopics(reply, MaxTopics)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("⚠️ Failed to parse topic extraction response", zap.Error(err))
		}
		return []string{}, nil
	}
	return names, nil
}

// FindOrCreate resolves a topic name to a topic id: exact slug, then embedding
// similarity, then insert. Losing an insert race re-reads the winner's row.
func (s *topicService) FindOrCreate(ctx context.Context, name string) (uuid.UUID, error) {
	slug := entities.Slugify(name)
	if slug == "" {
		return uuid.Nil, fmt.Errorf("topic %q has an empty slug", name)
	}

	existing, err := s.topics.FindBySlug(ctx, slug)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	embedding, err := s.embed(ctx, name)
	if err != nil {
		return uuid.Nil, err
	}

	matches, err := s.topics.MatchTopics(ctx, embedding, s.threshold, 1)
	if err != nil {
		return uuid.Nil, err
	}
	if len(matches) > 0 {
		return matches[0].ID, nil
	}

	topic := entities.NewTopic(strings.TrimSpace(name), embedding)
	err = s.topics.Create(ctx, topic)
	if err == nil {
		return topic.ID, nil
	}
	if !errors.Is(err, entities.ErrDuplicate) {
		return uuid.Nil, err
	}

	winner, err := s.topics.FindBySlug(ctx, slug)
	if err != nil {
		return uuid.Nil, err
	}
	if winner == nil {
		return uuid.Nil, fmt.Errorf("topic %q reported duplicate but was not found", slug)
	}
	return winner.ID, nil
}

func (s *topicService) AssignEpisode(ctx context.Context, episode *entities.Episode, text string) (int, error) {
	names, err := s.Extract(ctx, text)
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, name := range names {
		topicID, err := s.FindOrCreate(ctx, name)
		if err == nil {
			err = s.topics.UpsertEpisodeTopic(ctx, &entities.EpisodeTopic{
				EpisodeID:  episode.ID,
				TopicID:    topicID,
				Confidence: 1.0,
			})
		}
		if err != nil {
			if ctx.Err() != nil {
				return linked, ctx.Err()
			}
			if s.logger != nil {
				s.logger.Warn("⚠️ Failed to assign topic",
					zap.String("episode_id", episode.ID.String()),
					zap.String("topic", name),
					zap.Error(err),
				)
			}
			continue
		}
		linked++
	}

	if s.logger != nil {
		s.logger.Info("✅ Topics assigned",
			zap.String("episode_id", episode.ID.String()),
			zap.Int("extracted", len(names)),
			zap.Int("linked", linked),
		)
	}
	return linked, nil
}

func (s *topicService) Search(ctx context.Context, query string) ([]entities.TopicMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []entities.TopicMatch{}, nil
	}
	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.topics.MatchTopics(ctx, embedding, searchThreshold, searchCount)
}

func (s *topicService) EpisodesByTopic(ctx context.Context, slug string) ([]entities.Episode, error) {
	topic, err := s.topics.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, entities.ErrNotFound
	}
	return s.topics.EpisodesByTopic(ctx, topic.ID)
}

func (s *topicService) embed(ctx context.Context, text string) ([]float32, error) {
	items, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, apperrors.ErrEmbeddingFailed(err)
	}
	if len(items) != 1 {
		return nil, apperrors.ErrEmbeddingFailed(fmt.Errorf("expected 1 embedding got %d", len(items)))
	}
	return items[0].Embedding, nil
}
