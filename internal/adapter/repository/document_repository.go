package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	"github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
)

const chunkInsertBatch = 100

// documentRepository stores documents and pgvector chunks
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *gorm.DB) repositories.DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) FindByEpisode(ctx context.Context, episodeID uuid.UUID) ([]entities.Document, error) {
	var docs []entities.Document
	if err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteByEpisode removes every document of an episode together with its chunks
func (r *documentRepository) DeleteByEpisode(ctx context.Context, episodeID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id IN (?)",
			tx.Model(&entities.Document{}).Select("id").Where("episode_id = ?", episodeID),
		).Delete(&entities.Chunk{}).Error; err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		return tx.Where("episode_id = ?", episodeID).Delete(&entities.Document{}).Error
	})
}

// UpsertDocument keeps one document per (episode, source); the stored row's id is returned
func (r *documentRepository) UpsertDocument(ctx context.Context, doc *entities.Document) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "episode_id"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{"checksum", "meta"}),
		}).Create(doc).Error; err != nil {
			return err
		}

		var stored entities.Document
		if err := tx.Select("id").
			Where("episode_id = ? AND source = ?", doc.EpisodeID, doc.Source).
			First(&stored).Error; err != nil {
			return err
		}
		id = stored.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert document: %w", err)
	}
	return id, nil
}

// ReplaceChunks swaps the chunk set of a document in one transaction.
// The document row is locked first so concurrent replacements run one after another.
func (r *documentRepository) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []entities.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc entities.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", documentID).
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("document %s: %w", documentID, entities.ErrNotFound)
			}
			return fmt.Errorf("failed to lock document: %w", err)
		}

		if err := tx.Where("document_id = ?", documentID).Delete(&entities.Chunk{}).Error; err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		for i := range chunks {
			chunks[i].DocumentID = documentID
			if chunks[i].ID == uuid.Nil {
				chunks[i].ID = uuid.New()
			}
		}
		return tx.CreateInBatches(chunks, chunkInsertBatch).Error
	})
}

// MatchChunks runs a cosine similarity search over chunk embeddings,
// resolving each hit's episode and podcast for citations.
func (r *documentRepository) MatchChunks(ctx context.Context, embedding []float32, params repositories.MatchParams) ([]entities.ChunkMatch, error) {
	vec := entities.Vector(embedding)

	var (
		where = []string{"1 - (c.embedding <=> ?::vector) > ?", "char_length(c.content) >= ?"}
		args  = []interface{}{vec, params.Threshold, params.MinContentLength}
	)
	if params.EpisodeID != nil {
		where = append(where, "d.episode_id = ?")
		args = append(args, *params.EpisodeID)
	}
	if params.PodcastID != nil {
		where = append(where, "e.podcast_id = ?")
		args = append(args, *params.PodcastID)
	}

	query := `
		SELECT
			c.id AS chunk_id,
			c.document_id,
			c.content,
			c.meta,
			1 - (c.embedding <=> ?::vector) AS similarity,
			e.id AS episode_id,
			e.slug AS episode_slug,
			e.title AS episode_title,
			p.slug AS podcast_slug,
			p.title AS podcast_title
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		LEFT JOIN episodes e ON e.id = d.episode_id
		LEFT JOIN podcasts p ON p.id = e.podcast_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.embedding <=> ?::vector
		LIMIT ?`

	allArgs := append([]interface{}{vec}, args...)
	allArgs = append(allArgs, vec, params.Count)

	var matches []entities.ChunkMatch
	if err := r.db.WithContext(ctx).Raw(query, allArgs...).Scan(&matches).Error; err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	return matches, nil
}
