package chat

// Message is one turn of the conversation
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// Request is the body of POST /v1/chat
type Request struct {
	Messages  []Message `json:"messages" validate:"required,min=1,dive"`
	EpisodeID *string   `json:"episodeId,omitempty" validate:"omitempty,uuid"`
	PodcastID *string   `json:"podcastId,omitempty" validate:"omitempty,uuid"`
}
