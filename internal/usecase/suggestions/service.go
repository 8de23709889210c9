// Package suggestions generates suggested search questions for an episode.
package suggestions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/ai"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

const suggestQueriesPrompt = `The following is a transcript of a conversation between
multiple individuals. Your task is to suggest queries that could be used to search for
interesting segments of the conversation. For example, a query might be "What did the
Beatles say about their music?" or "What did the guest say about the economy?". Your job
is only to suggest interesting or insightful queries about the provided content, not to
provide answers. DO NOT suggest queries for portions of the conversation that are not
about the main topic of the conversation. In particular, do not suggest queries related
to advertising that may appear in the middle of the transcript. Your response should be a
JSON array of 3 to 6 strings, where each string is a query. For example, your response might be:
["What did the Beatles say about their music?", "What did the guest say about the economy?"]
ONLY return a JSON formatted array response. DO NOT return any other information or context.
DO NOT prefix your response with backquotes.`

// MaxQueries caps suggestions per episode
const MaxQueries = 6

// Service defines suggested query generation
type Service interface {
	Suggest(ctx context.Context, text string, podcast *entities.Podcast, episode *entities.Episode) ([]string, error)
	// SuggestEpisode generates suggestions from the transcript and replaces the stored set
	SuggestEpisode(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, transcript *entities.TimedTranscript) ([]string, error)
}

type suggestionService struct {
	completer   pkgai.Completer
	model       string
	maxTokenLen int
	parser      *ai.Parser
	suggestions domainrepo.SuggestionRepository
	logger      *zap.Logger
}

func NewSuggestionService(
	completer pkgai.Completer,
	model string,
	maxTokenLen int,
	suggestions domainrepo.SuggestionRepository,
	logger *zap.Logger,
) Service {
	return &suggestionService{
		completer:   completer,
		model:       model,
		maxTokenLen: maxTokenLen,
		parser:      ai.NewParser(),
		suggestions: suggestions,
		logger:      logger,
	}
}

func (s *suggestionService) Suggest(ctx context.Context, text string, podcast *entities.Podcast, episode *entities.Episode) ([]string, error) {
	reply, err := s.completer.Complete(ctx, pkgai.ChatRequest{
		Model:     s.model,
		MaxTokens: ai.MaxTokens,
		Messages: []pkgai.Message{
			{Role: "system", Content: ai.SystemPrompt(suggestQueriesPrompt, podcast, episode)},
			{Role: "user", Content: ai.TruncateTokens(text, s.maxTokenLen)},
		},
	})
	if err != nil {
		return nil, err
	}
	return s.parser.ParseQueries(reply, MaxQueries)
}

func (s *suggestionService) SuggestEpisode(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, transcript *entities.TimedTranscript) ([]string, error) {
	text := transcript.Text()
	if strings.TrimSpace(text) == "" {
		return nil, entities.ErrNoTranscript
	}

	queries, err := s.Suggest(ctx, text, podcast, episode)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("completion returned no suggested queries")
	}

	if err := s.suggestions.Replace(ctx, episode.ID, queries); err != nil {
		return nil, fmt.Errorf("failed to save suggestions: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("✅ Suggestions stored",
			zap.String("episode_id", episode.ID.String()),
			zap.Int("count", len(queries)),
		)
	}
	return queries, nil
}
