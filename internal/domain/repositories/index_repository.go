package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
)

// MatchParams scopes a chunk similarity search
type MatchParams struct {
	Threshold        float64
	Count            int
	MinContentLength int
	EpisodeID        *uuid.UUID
	PodcastID        *uuid.UUID
}

// DocumentRepository persists documents and their chunks
type DocumentRepository interface {
	FindByEpisode(ctx context.Context, episodeID uuid.UUID) ([]entities.Document, error)
	DeleteByEpisode(ctx context.Context, episodeID uuid.UUID) error
	// UpsertDocument inserts or replaces the document keyed by (episode, source) and returns its id
	UpsertDocument(ctx context.Context, doc *entities.Document) (uuid.UUID, error)
	// ReplaceChunks atomically swaps the full chunk set of a document
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []entities.Chunk) error
	MatchChunks(ctx context.Context, embedding []float32, params MatchParams) ([]entities.ChunkMatch, error)
}

// TopicRepository persists topics and episode links
type TopicRepository interface {
	FindBySlug(ctx context.Context, slug string) (*entities.Topic, error)
	MatchTopics(ctx context.Context, embedding []float32, threshold float64, count int) ([]entities.TopicMatch, error)
	// Create returns entities.ErrDuplicate when the slug already exists
	Create(ctx context.Context, topic *entities.Topic) error
	UpsertEpisodeTopic(ctx context.Context, link *entities.EpisodeTopic) error
	CountEpisodeTopics(ctx context.Context, episodeID uuid.UUID) (int64, error)
	EpisodesByTopic(ctx context.Context, topicID uuid.UUID) ([]entities.Episode, error)
}

// SuggestionRepository persists suggested queries
type SuggestionRepository interface {
	ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]entities.Suggestion, error)
	// Replace swaps the full suggestion set of an episode
	Replace(ctx context.Context, episodeID uuid.UUID, queries []string) error
}
