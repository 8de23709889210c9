package topic

import (
	"time"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
)

// TopicResponse is a topic search hit
type TopicResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Similarity float64 `json:"similarity,omitempty"`
}

// EpisodeResponse is an episode linked to a topic
type EpisodeResponse struct {
	ID          string     `json:"id"`
	PodcastID   string     `json:"podcast_id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	State       string     `json:"state"`
}

// FromMatches converts topic search hits
func FromMatches(matches []entities.TopicMatch) []TopicResponse {
	out := make([]TopicResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, TopicResponse{
			ID:         m.ID.String(),
			Name:       m.Name,
			Slug:       m.Slug,
			Similarity: m.Similarity,
		})
	}
	return out
}

// FromEpisodes converts linked episodes
func FromEpisodes(episodes []entities.Episode) []EpisodeResponse {
	out := make([]EpisodeResponse, 0, len(episodes))
	for _, e := range episodes {
		out = append(out, EpisodeResponse{
			ID:          e.ID.String(),
			PodcastID:   e.PodcastID.String(),
			Slug:        e.Slug,
			Title:       e.Title,
			PublishedAt: e.PublishedAt,
			State:       string(e.State),
		})
	}
	return out
}
