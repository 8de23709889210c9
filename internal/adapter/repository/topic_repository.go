package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
)

// topicRepository stores the global topic table and episode links
type topicRepository struct {
	db *gorm.DB
}

// NewTopicRepository creates a new topic repository
func NewTopicRepository(db *gorm.DB) repositories.TopicRepository {
	return &topicRepository{db: db}
}

// FindBySlug retrieves a topic by slug, nil when missing
func (r *topicRepository) FindBySlug(ctx context.Context, slug string) (*entities.Topic, error) {
	var topic entities.Topic
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &topic, nil
}

// MatchTopics returns topics whose embedding is closer than threshold, best first
func (r *topicRepository) MatchTopics(ctx context.Context, embedding []float32, threshold float64, count int) ([]entities.TopicMatch, error) {
	vec := entities.Vector(embedding)

	var matches []entities.TopicMatch
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, name, slug, created_at, 1 - (embedding <=> ?::vector) AS similarity
		FROM topics
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> ?::vector) > ?
		ORDER BY embedding <=> ?::vector
		LIMIT ?`,
		vec, vec, threshold, vec, count,
	).Scan(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("topic search failed: %w", err)
	}
	return matches, nil
}

// Create inserts a topic; a slug collision yields entities.ErrDuplicate
func (r *topicRepository) Create(ctx context.Context, topic *entities.Topic) error {
	err := r.db.WithContext(ctx).Create(topic).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("topic %q: %w", topic.Slug, entities.ErrDuplicate)
	}
	return err
}

// UpsertEpisodeTopic links an episode to a topic, refreshing the confidence of an existing link
func (r *topicRepository) UpsertEpisodeTopic(ctx context.Context, link *entities.EpisodeTopic) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "episode_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"confidence"}),
	}).Create(link).Error
}

func (r *topicRepository) CountEpisodeTopics(ctx context.Context, episodeID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&entities.EpisodeTopic{}).
		Where("episode_id = ?", episodeID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// EpisodesByTopic lists episodes linked to a topic, most confident and newest first
func (r *topicRepository) EpisodesByTopic(ctx context.Context, topicID uuid.UUID) ([]entities.Episode, error) {
	var episodes []entities.Episode
	if err := r.db.WithContext(ctx).
		Joins("JOIN episode_topics et ON et.episode_id = episodes.id").
		Where("et.topic_id = ?", topicID).
		Order("et.confidence DESC").
		Order("episodes.published_at DESC NULLS LAST").
		Find(&episodes).Error; err != nil {
		return nil, err
	}
	return episodes, nil
}
