package entities

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Topic is a global, deduplicated subject shared across episodes
type Topic struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"type:text;not null"`
	Slug      string    `json:"slug" gorm:"type:varchar(255);uniqueIndex;not null"`
	Embedding Vector    `json:"-" gorm:"type:vector"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Topic) TableName() string {
	return "topics"
}

// NewTopic creates a topic with its slug derived from the name
func NewTopic(name string, embedding []float32) *Topic {
	return &Topic{
		ID:        uuid.New(),
		Name:      name,
		Slug:      Slugify(name),
		Embedding: Vector(embedding),
		CreatedAt: time.Now(),
	}
}

// EpisodeTopic links an episode to a topic
type EpisodeTopic struct {
	EpisodeID  uuid.UUID `json:"episode_id" gorm:"type:uuid;primaryKey"`
	TopicID    uuid.UUID `json:"topic_id" gorm:"type:uuid;primaryKey"`
	Confidence float64   `json:"confidence" gorm:"default:1"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (EpisodeTopic) TableName() string {
	return "episode_topics"
}

// TopicMatch is a topic returned by similarity search
type TopicMatch struct {
	Topic
	Similarity float64 `json:"similarity"`
}

var (
	slugStrip  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// Slugify lowercases, drops punctuation and joins words with single dashes
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
