package entities

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Document groups the chunks embedded from one (episode, source) pair
type Document struct {
	ID        uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EpisodeID uuid.UUID         `json:"episode_id" gorm:"type:uuid;not null;uniqueIndex:idx_documents_episode_source"`
	Source    string            `json:"source" gorm:"type:text;not null;uniqueIndex:idx_documents_episode_source"`
	Checksum  string            `json:"checksum" gorm:"type:varchar(64);not null"`
	Meta      datatypes.JSONMap `json:"meta,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Document) TableName() string {
	return "documents"
}

// NewDocument creates a document for an episode source
func NewDocument(episodeID uuid.UUID, source, content string, meta map[string]interface{}) *Document {
	return &Document{
		ID:        uuid.New(),
		EpisodeID: episodeID,
		Source:    source,
		Checksum:  Checksum(content),
		Meta:      datatypes.JSONMap(meta),
		CreatedAt: time.Now(),
	}
}

// Checksum is the base64 sha256 digest of content
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Chunk is an embedded span of a document
type Chunk struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DocumentID uuid.UUID         `json:"document_id" gorm:"type:uuid;not null;index"`
	Content    string            `json:"content" gorm:"type:text;not null"`
	Embedding  Vector            `json:"-" gorm:"type:vector"`
	Meta       datatypes.JSONMap `json:"meta,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Chunk) TableName() string {
	return "chunks"
}

// Chunk metadata keys
const (
	MetaStartTime = "startTime"
	MetaEndTime   = "endTime"
	MetaIndex     = "index"
)

// ChunkMatch is one similarity search hit with its resolved episode context
type ChunkMatch struct {
	ChunkID      uuid.UUID         `json:"chunk_id"`
	DocumentID   uuid.UUID         `json:"document_id"`
	Content      string            `json:"content"`
	Meta         datatypes.JSONMap `json:"meta"`
	Similarity   float64           `json:"similarity"`
	EpisodeID    *uuid.UUID        `json:"episode_id,omitempty"`
	EpisodeSlug  string            `json:"episode_slug,omitempty"`
	EpisodeTitle string            `json:"episode_title,omitempty"`
	PodcastSlug  string            `json:"podcast_slug,omitempty"`
	PodcastTitle string            `json:"podcast_title,omitempty"`
}

// StartTime returns the audio start time of the chunk if known
func (m ChunkMatch) StartTime() (float64, bool) {
	return metaFloat(m.Meta, MetaStartTime)
}

// EndTime returns the audio end time of the chunk if known
func (m ChunkMatch) EndTime() (float64, bool) {
	return metaFloat(m.Meta, MetaEndTime)
}

func metaFloat(meta datatypes.JSONMap, key string) (float64, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
