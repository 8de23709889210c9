// Package summarize reduces a transcript of any length to a short episode summary.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/ai"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

const transcriptSummaryPrompt = `Provide a one or two sentence summary of the
following podcast transcript. Only use the information
provided in the text; DO NOT use any information you know about the world.
Include the title of the podcast, the name of the episode, and the
names of the speakers, if known.`

const textSummaryPrompt = `Provide a one or two sentence summary of the
following text. Only use the information provided in the text; DO NOT
use any information you know about the world. Include the title of the
podcast, the name of the episode, and the names of the speakers, if known.`

const podcastSummaryPrompt = `Provide a one-paragraph summary of the
following text, which describes a single podcast episode. Start out with
"This episode..." or "The topic of this episode is...".
If the title of the podcast, the name of the episode, or the names of
the speakers are mentioned, include them in your summary. Only use the
information provided in the text; DO NOT use any information you know
about the world.`

// maxParallelChunks bounds in-flight chunk summaries per round
const maxParallelChunks = 8

// Service defines summarization
type Service interface {
	// Summarize reduces text to a summary whose estimated token length is within maxTokenLen
	Summarize(ctx context.Context, text string, maxTokenLen int, podcast *entities.Podcast, episode *entities.Episode) (string, error)
	// SummarizeEpisode summarizes the transcript and stores it as the episode summary artifact
	SummarizeEpisode(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, transcript *entities.TimedTranscript) (string, error)
}

type summarizeService struct {
	completer pkgai.Completer
	model     string
	budget    int
	store     domainrepo.ArtifactStore
	episodes  domainrepo.EpisodeRepository
	logger    *zap.Logger
}

// NewSummarizeService creates a summarizer. budget is the token budget used by SummarizeEpisode.
func NewSummarizeService(
	completer pkgai.Completer,
	model string,
	budget int,
	store domainrepo.ArtifactStore,
	episodes domainrepo.EpisodeRepository,
	logger *zap.Logger,
) Service {
	return &summarizeService{
		completer: completer,
		model:     model,
		budget:    budget,
		store:     store,
		episodes:  episodes,
		logger:    logger,
	}
}

// Summarize runs map-reduce rounds until the text fits, then one final framing call.
// Every round must strictly shrink the text, which bounds the number of rounds by its length.
func (s *summarizeService) Summarize(ctx context.Context, text string, maxTokenLen int, podcast *entities.Podcast, episode *entities.Episode) (string, error) {
	if maxTokenLen <= 0 {
		return "", fmt.Errorf("token budget must be positive")
	}

	system := ai.SystemPrompt(transcriptSummaryPrompt, podcast, episode)
	for round := 1; ai.TokenLen(text) > float64(maxTokenLen); round++ {
		before := len(text)
		chunks := chunkText(text, maxTokenLen)

		if s.logger != nil {
			s.logger.Debug("📝 Summarization round",
				zap.Int("round", round),
				zap.Int("chars", before),
				zap.Int("chunks", len(chunks)),
			)
		}

		summaries, err := s.summarizeChunks(ctx, chunks, system)
		if err != nil {
			return "", err
		}
		text = strings.Join(chunkText(strings.Join(summaries, "\n"), maxTokenLen), "\n")
		if len(text) >= before {
			return "", fmt.Errorf("summarization round %d did not shrink text (%d >= %d chars)", round, len(text), before)
		}
		system = ai.SystemPrompt(textSummaryPrompt, podcast, episode)
	}

	summary, err := s.complete(ctx, ai.SystemPrompt(podcastSummaryPrompt, podcast, episode), text)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("completion returned an empty summary")
	}
	return ai.TruncateTokens(summary, maxTokenLen), nil
}

func (s *summarizeService) SummarizeEpisode(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, transcript *entities.TimedTranscript) (string, error) {
	text := transcript.Text()
	if strings.TrimSpace(text) == "" {
		return "", entities.ErrNoTranscript
	}

	summary, err := s.Summarize(ctx, text, s.budget, podcast, episode)
	if err != nil {
		return "", err
	}

	key := entities.ArtifactKey(episode.PodcastID, episode.ID, entities.ArtifactSummary)
	url, err := s.store.PutText(ctx, key, summary, "text/plain; charset=utf-8")
	if err != nil {
		return "", fmt.Errorf("failed to store summary: %w", err)
	}
	if err := s.episodes.SetSummaryURL(ctx, episode.ID, url); err != nil {
		return "", fmt.Errorf("failed to save summary url: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("✅ Summary stored",
			zap.String("episode_id", episode.ID.String()),
			zap.Int("transcript_chars", len(text)),
			zap.Int("summary_chars", len(summary)),
		)
	}
	return url, nil
}

func (s *summarizeService) summarizeChunks(ctx context.Context, chunks []string, system string) ([]string, error) {
	out := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChunks)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			summary, err := s.complete(gctx, system, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			out[i] = strings.TrimSpace(summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *summarizeService) complete(ctx context.Context, system, text string) (string, error) {
	reply, err := s.completer.Complete(ctx, pkgai.ChatRequest{
		Model:     s.model,
		MaxTokens: ai.MaxTokens,
		Messages: []pkgai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", apperrors.ErrAISummaryFailed(err)
	}
	return reply, nil
}

// chunkText groups non-empty lines into chunks within maxTokenLen. A single line
// longer than the budget is hard-split.
func chunkText(text string, maxTokenLen int) []string {
	limit := maxTokenLen * 4
	var (
		chunks []string
		chunk  strings.Builder
	)
	flush := func() {
		if chunk.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(chunk.String(), "\n"))
			chunk.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for len(line) > limit {
			flush()
			head := ai.TruncateBytes(line, limit)
			chunks = append(chunks, head)
			line = line[len(head):]
		}
		if line == "" {
			continue
		}
		if chunk.Len()+len(line) > limit {
			flush()
		}
		chunk.WriteString(line)
		chunk.WriteString("\n")
	}
	flush()
	return chunks
}
