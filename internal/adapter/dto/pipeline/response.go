package pipeline

// ProcessEpisodeResponse acknowledges a queued episode run
type ProcessEpisodeResponse struct {
	EpisodeID string `json:"episode_id"`
	Status    string `json:"status"`
	Force     bool   `json:"force"`
}

// ProcessPodcastResponse reports how many episode runs were scheduled
type ProcessPodcastResponse struct {
	PodcastID string `json:"podcast_id"`
	Scheduled int    `json:"scheduled"`
}

// ClearErrorsResponse reports how many episodes were reset
type ClearErrorsResponse struct {
	PodcastID string `json:"podcast_id"`
	Cleared   int64  `json:"cleared"`
}
