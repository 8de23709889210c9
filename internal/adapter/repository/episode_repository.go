package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
)

// episodeRepository implements the EpisodeRepository interface
type episodeRepository struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new episode repository
func NewEpisodeRepository(db *gorm.DB) repositories.EpisodeRepository {
	return &episodeRepository{db: db}
}

// FindByID retrieves an episode by its ID, nil when missing
func (r *episodeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Episode, error) {
	var episode entities.Episode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&episode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &episode, nil
}

// ListByPodcast returns a podcast's episodes, newest first
func (r *episodeRepository) ListByPodcast(ctx context.Context, podcastID uuid.UUID) ([]entities.Episode, error) {
	var episodes []entities.Episode
	if err := r.db.WithContext(ctx).
		Where("podcast_id = ?", podcastID).
		Order("published_at DESC NULLS LAST").
		Order("created_at DESC").
		Find(&episodes).Error; err != nil {
		return nil, err
	}
	return episodes, nil
}

// UpdateState writes the run state columns. A nil runErr clears the error column.
func (r *episodeRepository) UpdateState(ctx context.Context, id uuid.UUID, state entities.EpisodeState, status entities.ProcessingStatus, runErr datatypes.JSON) error {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	updates := map[string]interface{}{
		"state":      state,
		"status":     datatypes.JSON(statusJSON),
		"updated_at": time.Now(),
	}
	if runErr == nil {
		updates["error"] = gorm.Expr("NULL")
	} else {
		updates["error"] = runErr
	}

	return r.db.WithContext(ctx).
		Model(&entities.Episode{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClearErrors drops stored errors of a podcast's episodes and returns failed ones to pending
func (r *episodeRepository) ClearErrors(ctx context.Context, podcastID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Episode{}).
		Where("podcast_id = ?", podcastID).
		Where("error IS NOT NULL OR state = ?", entities.EpisodeStateFailed).
		Updates(map[string]interface{}{
			"error":      gorm.Expr("NULL"),
			"state":      gorm.Expr("CASE WHEN state = ? THEN ? ELSE state END", entities.EpisodeStateFailed, entities.EpisodeStatePending),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SetTranscriptURLs stores both transcript artifact URLs
func (r *episodeRepository) SetTranscriptURLs(ctx context.Context, id uuid.UUID, textURL, rawURL string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"transcript_url":     textURL,
			"raw_transcript_url": rawURL,
			"updated_at":         time.Now(),
		}).Error
}

// SetSummaryURL stores the summary artifact URL
func (r *episodeRepository) SetSummaryURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"summary_url": url,
			"updated_at":  time.Now(),
		}).Error
}

// UpsertSpeaker merges one speaker name into the speaker map.
// Without force an existing entry for the speaker is kept.
func (r *episodeRepository) UpsertSpeaker(ctx context.Context, id uuid.UUID, speaker, name string, force bool) error {
	// jsonb || keeps the right-hand value on key collision
	expr := gorm.Expr("jsonb_build_object(?::text, ?::text) || COALESCE(speaker_map, '{}'::jsonb)", speaker, name)
	if force {
		expr = gorm.Expr("COALESCE(speaker_map, '{}'::jsonb) || jsonb_build_object(?::text, ?::text)", speaker, name)
	}

	return r.db.WithContext(ctx).
		Model(&entities.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"speaker_map": expr,
			"updated_at":  time.Now(),
		}).Error
}
