package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
)

// podcastRepository implements the PodcastRepository interface
type podcastRepository struct {
	db *gorm.DB
}

// NewPodcastRepository creates a new podcast repository
func NewPodcastRepository(db *gorm.DB) repositories.PodcastRepository {
	return &podcastRepository{db: db}
}

// FindByID retrieves a podcast by its ID, nil when missing
func (r *podcastRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Podcast, error) {
	var podcast entities.Podcast
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&podcast).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &podcast, nil
}
