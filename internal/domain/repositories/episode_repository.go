package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
)

// PodcastRepository reads podcasts
type PodcastRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Podcast, error)
}

// EpisodeRepository persists episodes. Each stage writes only its own columns.
type EpisodeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Episode, error)
	ListByPodcast(ctx context.Context, podcastID uuid.UUID) ([]entities.Episode, error)

	// Orchestrator-owned columns
	UpdateState(ctx context.Context, id uuid.UUID, state entities.EpisodeState, status entities.ProcessingStatus, runErr datatypes.JSON) error
	ClearErrors(ctx context.Context, podcastID uuid.UUID) (int64, error)

	// Stage-owned columns
	SetTranscriptURLs(ctx context.Context, id uuid.UUID, textURL, rawURL string) error
	SetSummaryURL(ctx context.Context, id uuid.UUID, url string) error
	UpsertSpeaker(ctx context.Context, id uuid.UUID, speaker, name string, force bool) error
}
