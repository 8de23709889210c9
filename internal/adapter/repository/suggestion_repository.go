package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
)

// suggestionRepository implements the SuggestionRepository interface
type suggestionRepository struct {
	db *gorm.DB
}

// NewSuggestionRepository creates a new suggestion repository
func NewSuggestionRepository(db *gorm.DB) repositories.SuggestionRepository {
	return &suggestionRepository{db: db}
}

func (r *suggestionRepository) ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]entities.Suggestion, error) {
	var suggestions []entities.Suggestion
	if err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("created_at ASC").
		Find(&suggestions).Error; err != nil {
		return nil, err
	}
	return suggestions, nil
}

// Replace swaps the suggestion set of an episode in one transaction
func (r *suggestionRepository) Replace(ctx context.Context, episodeID uuid.UUID, queries []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("episode_id = ?", episodeID).Delete(&entities.Suggestion{}).Error; err != nil {
			return err
		}
		if len(queries) == 0 {
			return nil
		}

		now := time.Now()
		rows := make([]entities.Suggestion, 0, len(queries))
		for i, q := range queries {
			rows = append(rows, entities.Suggestion{
				ID:        uuid.New(),
				EpisodeID: episodeID,
				Query:     q,
				// preserves order for ListByEpisode
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			})
		}
		return tx.Create(&rows).Error
	})
}
