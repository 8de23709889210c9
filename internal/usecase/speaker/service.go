// Package speaker names the diarized speakers of an episode transcript.
package speaker

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/ai"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

const speakerIDPrompt = `The following is a transcript of a conversation between multiple
individuals, identified as "Speaker 0", "Speaker 1", and so forth. Please identify the
speakers in the conversation, based on the contents of the transcript. Your response should
be a JSON object, with the keys representing the original speaker identifications
(e.g., "Speaker 0", "Speaker 1") and the values representing the identified speaker names
(e.g., "John Smith", "Jane Doe"). For example, your response might be:

{ "Speaker 0": "John Smith", "Speaker 1": "Jane Doe" }

ONLY return a JSON formatted response. DO NOT return any other information or context.
DO NOT use backquotes in your reply.`

// MaxAttempts is the number of completion calls made before giving up
const MaxAttempts = 3

// Service defines speaker identification
type Service interface {
	// Identify returns raw speaker index -> name for the given transcript text
	Identify(ctx context.Context, text string, podcast *entities.Podcast, episode *entities.Episode) (map[string]string, error)
	// IdentifyEpisode identifies speakers and merges them into the episode speaker map
	IdentifyEpisode(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, transcript *entities.TimedTranscript, force bool) (map[string]string, error)
}

type speakerService struct {
	completer   pkgai.Completer
	model       string
	maxTokenLen int
	parser      *ai.Parser
	episodes    domainrepo.EpisodeRepository
	logger      *zap.Logger
}

// NewSpeakerService creates a speaker identifier. Input longer than maxTokenLen is truncated.
func NewSpeakerService(
	completer pkgai.Completer,
	model string,
	maxTokenLen int,
	episodes domainrepo.EpisodeRepository,
	logger *zap.Logger,
) Service {
	return &speakerService{
		completer:   completer,
		model:       model,
		maxTokenLen: maxTokenLen,
		parser:      ai.NewParser(),
		episodes:    episodes,
		logger:      logger,
	}
}

func (s *speakerService) Identify(ctx context.Context, text string, podcast *entities.Podcast, episode *entities.Episode) (map[string]string, error) {
	system := ai.SystemPrompt(speakerIDPrompt, podcast, episode)
	text = ai.TruncateTokens(text, s.maxTokenLen)

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		reply, err := s.completer.Complete(ctx, pkgai.ChatRequest{
			Model:     s.model,
			MaxTokens: ai.MaxTokens,
			Messages: []pkgai.Message{
				{Role: "system", Content: system},
				{Role: "user", Content: text},
			},
		})
		if err != nil {
			return nil, err
		}

		speakers, err := s.parser.ParseSpeakerMap(reply)
		if err == nil {
			return speakers, nil
		}
		lastErr = err
		if s.logger != nil {
			s.logger.Warn("⚠️ Failed to parse speaker identification",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", MaxAttempts),
				zap.Error(err),
			)
		}
	}

	return nil, apperrors.ErrAISpeakerIDFailed(fmt.Errorf("no valid response after %d attempts: %w", MaxAttempts, lastErr))
}

func (s *speakerService) IdentifyEpisode(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, transcript *entities.TimedTranscript, force bool) (map[string]string, error) {
	if !transcript.HasSpeakers() {
		return nil, nil
	}

	speakers, err := s.Identify(ctx, ai.SpeakerTranscript(transcript), podcast, episode)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(speakers))
	for k := range speakers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// one entry at a time so concurrent identifications never clobber each other
	for _, k := range keys {
		if err := s.episodes.UpsertSpeaker(ctx, episode.ID, k, speakers[k], force); err != nil {
			return nil, fmt.Errorf("failed to save speaker %s: %w", k, err)
		}
	}

	if s.logger != nil {
		s.logger.Info("✅ Speakers identified",
			zap.String("episode_id", episode.ID.String()),
			zap.Int("speakers", len(speakers)),
		)
	}
	return speakers, nil
}
