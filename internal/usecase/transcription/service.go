// Package transcription acquires a usable transcript for an episode by trying
// sources in order of cost and keeping the first one that passes the quality gate.
package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/quality"
)

// Strategy is one transcript source. Fetch returns entities.ErrNoTranscript
// when the source does not apply to the episode.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast) (*entities.Candidate, error)
}

// Result is the accepted transcript and where it was stored
type Result struct {
	Source     string
	Transcript *entities.TimedTranscript
	TextURL    string
	RawURL     string
}

// Service defines transcript acquisition
type Service interface {
	Transcribe(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast) (*Result, error)
}

type transcriptionService struct {
	strategies []Strategy
	evaluator  *quality.Evaluator
	grouping   entities.GroupingOptions
	store      domainrepo.ArtifactStore
	episodes   domainrepo.EpisodeRepository
	logger     *zap.Logger
}

// NewTranscriptionService builds the fallback chain. Strategies run in the given order.
func NewTranscriptionService(
	strategies []Strategy,
	evaluator *quality.Evaluator,
	grouping entities.GroupingOptions,
	store domainrepo.ArtifactStore,
	episodes domainrepo.EpisodeRepository,
	logger *zap.Logger,
) Service {
	return &transcriptionService{
		strategies: strategies,
		evaluator:  evaluator,
		grouping:   grouping,
		store:      store,
		episodes:   episodes,
		logger:     logger,
	}
}

// Transcribe walks the chain and persists the first accepted candidate.
// Failures of all but the last strategy fall through to the next one.
func (s *transcriptionService) Transcribe(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast) (*Result, error) {
	var lastReason string

	for i, strategy := range s.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate, err := strategy.Fetch(ctx, episode, podcast)
		if errors.Is(err, entities.ErrNoTranscript) {
			if s.logger != nil {
				s.logger.Debug("⏭️ Transcript source not applicable",
					zap.String("episode_id", episode.ID.String()),
					zap.String("source", strategy.Name()),
				)
			}
			continue
		}
		if err != nil {
			if i == len(s.strategies)-1 {
				return nil, fmt.Errorf("%s transcription failed: %w", strategy.Name(), err)
			}
			if s.logger != nil {
				s.logger.Warn("⚠️ Transcript source failed, trying next",
					zap.String("episode_id", episode.ID.String()),
					zap.String("source", strategy.Name()),
					zap.Error(err),
				)
			}
			lastReason = fmt.Sprintf("%s: %v", strategy.Name(), err)
			continue
		}

		text := candidate.Text
		if text == "" {
			text = JoinSegments(candidate.Segments)
		}
		verdict := s.evaluator.Evaluate(text, candidate.Segments, episode.DurationSeconds)
		if !verdict.Accepted {
			if s.logger != nil {
				s.logger.Info("🚫 Transcript rejected by quality gate",
					zap.String("episode_id", episode.ID.String()),
					zap.String("source", candidate.Source),
					zap.String("reason", verdict.Reason),
				)
			}
			lastReason = fmt.Sprintf("%s: %s", candidate.Source, verdict.Reason)
			continue
		}

		return s.persist(ctx, episode, candidate)
	}

	if lastReason != "" {
		return nil, fmt.Errorf("%w (last: %s)", entities.ErrTranscriptNotAvail, lastReason)
	}
	return nil, entities.ErrTranscriptNotAvail
}

func (s *transcriptionService) persist(ctx context.Context, episode *entities.Episode, candidate *entities.Candidate) (*Result, error) {
	timed := entities.BuildTimedTranscript(candidate.Source, candidate.Segments, s.grouping)

	raw, err := json.Marshal(timed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}

	textKey := entities.ArtifactKey(episode.PodcastID, episode.ID, entities.ArtifactTranscriptText)
	textURL, err := s.store.PutText(ctx, textKey, timed.Results.Channels[0].Alternatives[0].Paragraphs.Transcript, "text/plain; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to store transcript text: %w", err)
	}

	rawKey := entities.ArtifactKey(episode.PodcastID, episode.ID, entities.ArtifactTranscriptJSON)
	rawURL, err := s.store.PutText(ctx, rawKey, string(raw), "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to store transcript json: %w", err)
	}

	// both references are written together
	if err := s.episodes.SetTranscriptURLs(ctx, episode.ID, textURL, rawURL); err != nil {
		return nil, fmt.Errorf("failed to save transcript urls: %w", err)
	}
	episode.TranscriptURL = textURL
	episode.RawTranscriptURL = rawURL

	if s.logger != nil {
		s.logger.Info("✅ Transcript stored",
			zap.String("episode_id", episode.ID.String()),
			zap.String("source", candidate.Source),
			zap.Int("segments", len(candidate.Segments)),
			zap.Int("paragraphs", len(timed.ParagraphList())),
		)
	}

	return &Result{Source: candidate.Source, Transcript: timed, TextURL: textURL, RawURL: rawURL}, nil
}
