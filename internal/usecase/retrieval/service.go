// Package retrieval answers questions about podcasts from the vector index or,
// for a single episode, from its full annotated transcript.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

// Scope selects which part of the library a search covers
type Scope string

const (
	ScopeLibrary Scope = "library"
	ScopePodcast Scope = "podcast"
	ScopeEpisode Scope = "episode"
)

// Replies used when nothing relevant was retrieved
const (
	NoContextEpisode = "I could not find relevant transcript passages for that in this episode yet. Try rephrasing with specific keywords or ask about another moment."
	NoContextPodcast = "I could not find relevant transcript passages for that yet. Try rephrasing with specific keywords, or ask about a specific episode or topic."
)

// Options tunes retrieval and chat
type Options struct {
	ChatModel          string
	LongContextModel   string
	Threshold          float64
	Count              int
	MinContentLength   int
	FullContextCeiling int
}

// DefaultOptions returns the standard retrieval settings
func DefaultOptions() Options {
	return Options{
		Threshold:          0.3,
		Count:              10,
		MinContentLength:   50,
		FullContextCeiling: 100000,
	}
}

// ChatRequest is one chat turn. EpisodeID takes precedence over PodcastID.
type ChatRequest struct {
	Messages  []pkgai.Message
	EpisodeID *uuid.UUID
	PodcastID *uuid.UUID
}

// Scope returns the search scope implied by the request
func (r ChatRequest) Scope() Scope {
	switch {
	case r.EpisodeID != nil:
		return ScopeEpisode
	case r.PodcastID != nil:
		return ScopePodcast
	}
	return ScopeLibrary
}

// Service defines retrieval and grounded chat
type Service interface {
	// Search embeds the query and returns the top chunks in scope
	Search(ctx context.Context, query string, podcastID, episodeID *uuid.UUID) ([]entities.ChunkMatch, error)
	// Chat streams a grounded answer to onDelta
	Chat(ctx context.Context, req ChatRequest, onDelta func(string) error) error
}

type retrievalService struct {
	embedder  pkgai.Embedder
	streamer  pkgai.Streamer
	documents domainrepo.DocumentRepository
	episodes  domainrepo.EpisodeRepository
	podcasts  domainrepo.PodcastRepository
	store     domainrepo.ArtifactStore
	opts      Options
	logger    *zap.Logger
}

// NewRetrievalService creates the retrieval and chat service
func NewRetrievalService(
	embedder pkgai.Embedder,
	streamer pkgai.Streamer,
	documents domainrepo.DocumentRepository,
	episodes domainrepo.EpisodeRepository,
	podcasts domainrepo.PodcastRepository,
	store domainrepo.ArtifactStore,
	opts Options,
	logger *zap.Logger,
) Service {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.Count <= 0 {
		opts.Count = def.Count
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = def.MinContentLength
	}
	if opts.FullContextCeiling <= 0 {
		opts.FullContextCeiling = def.FullContextCeiling
	}
	return &retrievalService{
		embedder:  embedder,
		streamer:  streamer,
		documents: documents,
		episodes:  episodes,
		podcasts:  podcasts,
		store:     store,
		opts:      opts,
		logger:    logger,
	}
}

func (s *retrievalService) Search(ctx context.Context, query string, podcastID, episodeID *uuid.UUID) ([]entities.ChunkMatch, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, nil
	}

	items, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperrors.ErrEmbeddingFailed(err)
	}
	if len(items) != 1 {
		return nil, apperrors.ErrEmbeddingFailed(fmt.Errorf("expected 1 embedding got %d", len(items)))
	}

	params := domainrepo.MatchParams{
		Threshold:        s.opts.Threshold,
		Count:            s.opts.Count,
		MinContentLength: s.opts.MinContentLength,
	}
	// episode scope wins over podcast scope
	if episodeID != nil {
		params.EpisodeID = episodeID
	} else {
		params.PodcastID = podcastID
	}

	matches, err := s.documents.MatchChunks(ctx, items[0].Embedding, params)
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Debug("🔎 Vector search",
			zap.Int("matches", len(matches)),
			zap.Bool("episode_scope", episodeID != nil),
			zap.Bool("podcast_scope", podcastID != nil && episodeID == nil),
		)
	}
	return matches, nil
}

func (s *retrievalService) Chat(ctx context.Context, req ChatRequest, onDelta func(string) error) error {
	if req.EpisodeID != nil {
		streamed := false
		track := func(delta string) error {
			streamed = true
			return onDelta(delta)
		}
		ok, err := s.chatFullContext(ctx, *req.EpisodeID, req.Messages, track)
		if ok && err == nil {
			return nil
		}
		if err != nil {
			if streamed {
				return apperrors.ErrChatFailed(err)
			}
			if s.logger != nil {
				s.logger.Warn("⚠️ Full transcript chat failed, falling back to retrieval",
					zap.String("episode_id", req.EpisodeID.String()),
					zap.Error(err),
				)
			}
		}
	}
	return s.chatRetrieval(ctx, req, onDelta)
}

// chatFullContext returns false without error when the episode is not eligible
func (s *retrievalService) chatFullContext(ctx context.Context, episodeID uuid.UUID, messages []pkgai.Message, onDelta func(string) error) (bool, error) {
	if s.opts.LongContextModel == "" {
		return false, nil
	}

	episode, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return false, err
	}
	if episode == nil || episode.RawTranscriptURL == "" {
		return false, nil
	}

	raw, err := s.store.ReadText(ctx, episode.RawTranscriptURL)
	if err != nil {
		return false, err
	}
	var transcript entities.TimedTranscript
	if err := json.Unmarshal([]byte(raw), &transcript); err != nil {
		return false, fmt.Errorf("failed to decode transcript: %w", err)
	}

	annotated := Annotate(&transcript, episode.SpeakerMap)
	if annotated.Text == "" || annotated.TokenEstimate > s.opts.FullContextCeiling {
		return false, nil
	}

	podcastTitle := "Unknown Podcast"
	if podcast, err := s.podcasts.FindByID(ctx, episode.PodcastID); err == nil && podcast != nil && podcast.Title != "" {
		podcastTitle = podcast.Title
	}
	episodeTitle := episode.Title
	if episodeTitle == "" {
		episodeTitle = "Unknown Episode"
	}

	chat := append([]pkgai.Message{{Role: "system", Content: fullTranscriptPrompt(podcastTitle, episodeTitle, annotated.Text)}}, CleanMessages(messages)...)
	if err := s.streamer.Stream(ctx, pkgai.ChatRequest{
		Model:     s.opts.LongContextModel,
		MaxTokens: 2048,
		Messages:  chat,
	}, onDelta); err != nil {
		return false, err
	}
	return true, nil
}

func (s *retrievalService) chatRetrieval(ctx context.Context, req ChatRequest, onDelta func(string) error) error {
	query := LatestUserMessage(req.Messages)

	var contextText string
	matches, err := s.Search(ctx, query, req.PodcastID, req.EpisodeID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("❌ Vector search failed", zap.Error(err))
		}
	} else if len(matches) > 0 {
		contextText = BuildContext(matches)
	}

	if query != "" && contextText == "" {
		if req.Scope() == ScopeEpisode {
			return onDelta(NoContextEpisode)
		}
		return onDelta(NoContextPodcast)
	}

	system := podcastSystemPrompt
	if req.Scope() == ScopeEpisode {
		system = episodeSystemPrompt
	}
	if contextText != "" {
		system += "\n\nHere is relevant context from the podcast to help you answer:\n\n" + contextText
	}

	chat := append([]pkgai.Message{{Role: "system", Content: system}}, CleanMessages(req.Messages)...)
	if err := s.streamer.Stream(ctx, pkgai.ChatRequest{
		Model:     s.opts.ChatModel,
		MaxTokens: 1024,
		Messages:  chat,
	}, onDelta); err != nil {
		return apperrors.ErrChatFailed(err)
	}
	return nil
}

// BuildContext renders search hits as numbered context entries with their citation metadata
func BuildContext(matches []entities.ChunkMatch) string {
	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Context entry %d:\n", i+1)
		fmt.Fprintf(&sb, "BEGINNING OF TEXT:\n\"%s\"\nEND OF TEXT.\n", m.Content)
		if start, ok := m.StartTime(); ok {
			fmt.Fprintf(&sb, "AUDIO START TIME: %g\n", start)
			if end, ok := m.EndTime(); ok && end > 0 {
				fmt.Fprintf(&sb, "AUDIO END TIME: %g\n", end)
			}
		}
		if m.PodcastSlug != "" && m.EpisodeSlug != "" {
			fmt.Fprintf(&sb, "EPISODE LINK: %s\n", EpisodeLink(m.PodcastSlug, m.EpisodeSlug))
			fmt.Fprintf(&sb, "EPISODE TITLE: %s\n", m.EpisodeTitle)
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n---\n")
}

// EpisodeLink is the site-relative episode path
func EpisodeLink(podcastSlug, episodeSlug string) string {
	return "/podcast/" + podcastSlug + "/episode/" + episodeSlug
}

// CleanMessages keeps user and assistant turns, merges consecutive turns of the
// same role, and guarantees the conversation opens with a user turn.
func CleanMessages(messages []pkgai.Message) []pkgai.Message {
	var out []pkgai.Message
	for _, m := range messages {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if len(out) == 0 {
			if m.Role == "user" {
				out = append(out, pkgai.Message{Role: m.Role, Content: m.Content})
			}
			continue
		}
		last := &out[len(out)-1]
		if last.Role == m.Role {
			last.Content += "\n" + m.Content
			continue
		}
		out = append(out, pkgai.Message{Role: m.Role, Content: m.Content})
	}
	if len(out) == 0 {
		out = append(out, pkgai.Message{Role: "user", Content: "Hello"})
	}
	return out
}

// LatestUserMessage returns the content of the last user turn
func LatestUserMessage(messages []pkgai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
