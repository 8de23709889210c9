package entities

import (
	"time"

	"github.com/google/uuid"
)

// Suggestion is a suggested search query for an episode
type Suggestion struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EpisodeID uuid.UUID `json:"episode_id" gorm:"type:uuid;not null;index"`
	Query     string    `json:"query" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Suggestion) TableName() string {
	return "suggestions"
}
