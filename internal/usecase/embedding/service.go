// Package embedding splits episode text into chunks and writes them to the vector index.
package embedding

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
	"github.com/johnquangdev/podcast-assistant/pkg/jobcontext"
)

const (
	// DefaultBatchSize is the number of inputs per embedding call
	DefaultBatchSize = 50

	maxParallelBatches = 4
)

// Service defines chunk embedding
type Service interface {
	// EmbedTranscript indexes a time-coded transcript under source and returns the document id
	EmbedTranscript(ctx context.Context, episode *entities.Episode, source string, transcript *entities.TimedTranscript) (uuid.UUID, error)
	// EmbedText indexes untimed text under source and returns the document id
	EmbedText(ctx context.Context, episode *entities.Episode, source, text string) (uuid.UUID, error)
	// EmbedBatch embeds inputs and returns vectors in input order
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)
}

type embeddingService struct {
	embedder  pkgai.Embedder
	documents domainrepo.DocumentRepository
	chunkSize int
	batchSize int
	logger    *zap.Logger
}

// NewEmbeddingService creates the chunk embedder. Non-positive sizes use the defaults.
func NewEmbeddingService(
	embedder pkgai.Embedder,
	documents domainrepo.DocumentRepository,
	chunkSize int,
	batchSize int,
	logger *zap.Logger,
) Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &embeddingService{
		embedder:  embedder,
		documents: documents,
		chunkSize: chunkSize,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (s *embeddingService) EmbedTranscript(ctx context.Context, episode *entities.Episode, source string, transcript *entities.TimedTranscript) (uuid.UUID, error) {
	chunks := SplitTranscript(transcript, s.chunkSize)
	return s.index(ctx, episode, source, transcript.Text(), chunks)
}

func (s *embeddingService) EmbedText(ctx context.Context, episode *entities.Episode, source, text string) (uuid.UUID, error) {
	return s.index(ctx, episode, source, text, SplitText(text, s.chunkSize))
}

// index embeds every chunk before touching the store, so a failed embedding leaves the previous chunk set live
func (s *embeddingService) index(ctx context.Context, episode *entities.Episode, source, content string, chunks []TextChunk) (uuid.UUID, error) {
	if len(chunks) == 0 {
		return uuid.Nil, fmt.Errorf("nothing to embed for episode %s: %w", episode.ID, entities.ErrNoTranscript)
	}

	if s.logger != nil {
		s.logger.Info("🧮 Embedding chunks",
			zap.String("episode_id", episode.ID.String()),
			zap.String("source", source),
			zap.Int("chunks", len(chunks)),
		)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.EmbedBatch(ctx, texts)
	if err != nil {
		return uuid.Nil, err
	}

	doc := entities.NewDocument(episode.ID, source, content, map[string]interface{}{
		"podcast_id": episode.PodcastID.String(),
		"chunks":     len(chunks),
	})
	docID, err := s.documents.UpsertDocument(ctx, doc)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	rows := make([]entities.Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = entities.Chunk{
			ID:         uuid.New(),
			DocumentID: docID,
			Content:    c.Text,
			Embedding:  entities.Vector(vectors[i]),
			Meta:       c.Meta,
			CreatedAt:  time.Now(),
		}
	}
	if err := s.documents.ReplaceChunks(ctx, docID, rows); err != nil {
		return uuid.Nil, fmt.Errorf("failed to write chunks: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("✅ Chunks embedded",
			zap.String("episode_id", episode.ID.String()),
			zap.String("document_id", docID.String()),
			zap.Int("chunks", len(rows)),
		)
	}
	return docID, nil
}

// EmbedBatch sends fixed-size batches concurrently and places every returned
// vector by its index field, never by response order.
func (s *embeddingService) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	if len(inputs) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBatches)
	for start := 0; start < len(inputs); start += s.batchSize {
		start := start
		end := min(start+s.batchSize, len(inputs))
		g.Go(func() error {
			items, err := s.embedWithRetry(gctx, inputs[start:end])
			if err != nil {
				return apperrors.ErrEmbeddingFailed(fmt.Errorf("batch %d-%d: %w", start, end, err))
			}
			for _, item := range items {
				if item.Index < 0 || item.Index >= end-start {
					return apperrors.ErrEmbeddingFailed(fmt.Errorf("batch %d-%d: index %d out of range", start, end, item.Index))
				}
				if out[start+item.Index] != nil {
					return apperrors.ErrEmbeddingFailed(fmt.Errorf("batch %d-%d: duplicate index %d", start, end, item.Index))
				}
				out[start+item.Index] = item.Embedding
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, v := range out {
		if v == nil {
			return nil, apperrors.ErrEmbeddingFailed(fmt.Errorf("missing embedding for input %d", i))
		}
	}
	return out, nil
}

func (s *embeddingService) embedWithRetry(ctx context.Context, batch []string) ([]pkgai.EmbeddingItem, error) {
	var items []pkgai.EmbeddingItem
	embedFn := func() error {
		var err error
		items, err = s.embedder.Embed(ctx, batch)
		if err != nil && (ctx.Err() != nil || !jobcontext.IsRetryableError(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 8 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(embedFn, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return items, nil
}
