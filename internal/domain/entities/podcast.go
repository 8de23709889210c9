package entities

import (
	"time"

	"github.com/google/uuid"
)

// Podcast is a show; read-only for the enrichment pipeline
type Podcast struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Slug        string     `json:"slug" gorm:"type:varchar(255);uniqueIndex;not null"`
	Title       string     `json:"title" gorm:"type:text;not null"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	FeedURL     string     `json:"feed_url" gorm:"column:rss_url;type:text"`
	ImageURL    string     `json:"image_url,omitempty" gorm:"type:text"`
	IsPrivate   bool       `json:"is_private" gorm:"default:false"`
	IsPublished bool       `json:"is_published" gorm:"default:true"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Podcast) TableName() string {
	return "podcasts"
}
