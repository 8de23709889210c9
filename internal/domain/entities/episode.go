package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EpisodeState is the pipeline state of an episode
type EpisodeState string

const (
	EpisodeStatePending      EpisodeState = "pending"
	EpisodeStateTranscribing EpisodeState = "transcribing"
	EpisodeStateEnriching    EpisodeState = "enriching"
	EpisodeStateReady        EpisodeState = "ready"
	EpisodeStateFailed       EpisodeState = "failed"
)

// ProcessingStatus is the human-facing progress record of the latest run
type ProcessingStatus struct {
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// SpeakerMap maps a raw speaker index ("0", "1", ...) to a display name
type SpeakerMap map[string]string

// Episode is a single podcast episode and its enrichment artifacts
type Episode struct {
	ID                uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PodcastID         uuid.UUID        `json:"podcast_id" gorm:"type:uuid;not null;index"`
	Slug              string           `json:"slug" gorm:"type:varchar(255);not null"`
	GUID              string           `json:"guid,omitempty" gorm:"type:text"`
	Title             string           `json:"title" gorm:"type:text;not null"`
	Description       string           `json:"description,omitempty" gorm:"type:text"`
	URL               string           `json:"url,omitempty" gorm:"type:text"`
	AudioURL          string           `json:"audio_url" gorm:"type:text"`
	DurationSeconds   float64          `json:"duration_seconds,omitempty"`
	PublishedAt       *time.Time       `json:"published_at,omitempty"`
	FeedTranscriptURL string           `json:"feed_transcript_url,omitempty" gorm:"type:text"`
	TranscriptURL     string           `json:"transcript_url,omitempty" gorm:"type:text"`
	RawTranscriptURL  string           `json:"raw_transcript_url,omitempty" gorm:"type:text"`
	SummaryURL        string           `json:"summary_url,omitempty" gorm:"type:text"`
	SpeakerMap        SpeakerMap       `json:"speaker_map,omitempty" gorm:"type:jsonb;serializer:json"`
	State             EpisodeState     `json:"state" gorm:"type:varchar(20);not null;default:'pending';index"`
	Status            ProcessingStatus `json:"status" gorm:"type:jsonb;serializer:json"`
	Error             datatypes.JSON   `json:"error,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Episode) TableName() string {
	return "episodes"
}

// IsReady reports whether every enrichment stage has completed
func (e *Episode) IsReady() bool {
	return e.State == EpisodeStateReady
}

// HasTranscript reports whether both transcript artifacts are present
func (e *Episode) HasTranscript() bool {
	return e.TranscriptURL != "" && e.RawTranscriptURL != ""
}

// RunError is the structured error payload stored on an episode
type RunError struct {
	Message string            `json:"message"`
	Stages  map[string]string `json:"stages,omitempty"`
	At      time.Time         `json:"at"`
}

// NewRunError builds the JSON payload for Episode.Error
func NewRunError(message string, stages map[string]string) datatypes.JSON {
	b, err := json.Marshal(RunError{Message: message, Stages: stages, At: time.Now().UTC()})
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// ArtifactKey returns the object storage key for an episode artifact
func ArtifactKey(podcastID, episodeID uuid.UUID, artifact string) string {
	return podcastID.String() + "/" + episodeID.String() + "/" + artifact
}

// Artifact names
const (
	ArtifactTranscriptText = "transcript.txt"
	ArtifactTranscriptJSON = "transcript.json"
	ArtifactSummary        = "summary.txt"
)
