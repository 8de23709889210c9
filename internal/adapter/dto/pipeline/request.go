package pipeline

// ProcessEpisodeRequest is the optional body of POST /v1/episodes/:id/process
type ProcessEpisodeRequest struct {
	Force bool `json:"force"`
}

// ProcessPodcastRequest is the optional body of POST /v1/podcasts/:id/process
type ProcessPodcastRequest struct {
	Force        bool     `json:"force"`
	EpisodeIDs   []string `json:"episode_ids,omitempty" validate:"omitempty,dive,uuid"`
	EpisodeLimit int      `json:"episode_limit,omitempty" validate:"gte=0"`
	MaxEpisodes  int      `json:"max_episodes,omitempty" validate:"gte=0"`
}
