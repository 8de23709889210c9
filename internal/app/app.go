// Package app assembles the pipeline, retrieval and HTTP layers from configuration.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnquangdev/podcast-assistant/internal/adapter/handler"
	"github.com/johnquangdev/podcast-assistant/internal/adapter/repository"
	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/infrastructure/cache"
	"github.com/johnquangdev/podcast-assistant/internal/infrastructure/database"
	"github.com/johnquangdev/podcast-assistant/internal/infrastructure/external/feed"
	"github.com/johnquangdev/podcast-assistant/internal/infrastructure/external/fetch"
	"github.com/johnquangdev/podcast-assistant/internal/infrastructure/storage"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/embedding"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/pipeline"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/quality"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/retrieval"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/speaker"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/suggestions"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/summarize"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/topics"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/transcription"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

// App holds the wired services and the resources they own
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB

	Pipeline  pipeline.Service
	Retrieval retrieval.Service
	Topics    topics.Service
	Episodes  domainrepo.EpisodeRepository

	storage *storage.MinIOClient
	redis   *redis.Client
	memory  *cache.MemoryStore
}

// New connects to every backing service and builds the object graph
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			a.Close()
			return nil, fmt.Errorf("DB_AUTO_MIGRATE must be disabled in production")
		}
		if err := database.AutoMigrate(db); err != nil {
			a.Close()
			return nil, err
		}
	}

	log.Println("🗄️  Connecting to object storage...")
	store, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.storage = store

	a.memory = cache.NewMemoryStore()
	var lock domainrepo.RunLock
	if cfg.Redis.Enabled {
		log.Println("📦 Connecting to Redis...")
		client, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		lock = cache.NewRedisLock(client, cfg.Pipeline.RunTimeout)
	} else {
		log.Println("⚠️  Redis disabled, episode locks are process-local")
		lock = cache.NewMemoryLock(a.memory, cfg.Pipeline.RunTimeout)
	}

	// Repositories
	podcasts := repository.NewPodcastRepository(db)
	episodes := repository.NewEpisodeRepository(db)
	documents := repository.NewDocumentRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	a.Episodes = episodes

	// External services
	llm := pkgai.NewCompletionClient(&cfg.LLM)
	embedder := pkgai.NewEmbeddingClient(&cfg.Embedding)
	stt := pkgai.NewAssemblyAIClient(&cfg.Assembly, logger)
	fetcher := fetch.NewHTTPFetcher(cfg.HTTPClient)
	resolver := feed.NewResolver(fetcher, a.memory, cfg.Pipeline.FeedCacheTTL, logger)

	language := cfg.Assembly.LanguageCode
	if language == "" {
		language = "en"
	}
	strategies := []transcription.Strategy{
		transcription.NewFeedStrategy(fetcher, resolver, logger),
		transcription.NewYouTubeStrategy(fetcher, language, logger),
		transcription.NewMachineStrategy(stt),
	}

	grouping := entities.DefaultGrouping()
	if cfg.Pipeline.ParagraphGapSeconds > 0 {
		grouping.MaxGapSeconds = cfg.Pipeline.ParagraphGapSeconds
	}

	p := cfg.Pipeline
	transcriber := transcription.NewTranscriptionService(strategies, quality.NewEvaluator(qualityPolicy(p.Quality)), grouping, store, episodes, logger)
	summarizer := summarize.NewSummarizeService(llm, cfg.LLM.FastModel, p.SummaryTokenBudget, store, episodes, logger)
	speakers := speaker.NewSpeakerService(llm, cfg.LLM.FastModel, p.SummaryTokenBudget, episodes, logger)
	a.Topics = topics.NewTopicService(llm, cfg.LLM.FastModel, embedder, topicRepo, p.TopicMatchThreshold, logger)
	chunker := embedding.NewEmbeddingService(embedder, documents, p.ChunkSize, cfg.Embedding.BatchSize, logger)
	suggester := suggestions.NewSuggestionService(llm, cfg.LLM.FastModel, p.SummaryTokenBudget, suggestionRepo, logger)

	a.Pipeline = pipeline.NewPipelineService(pipeline.Dependencies{
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Speakers:    speakers,
		Topics:      a.Topics,
		Embedder:    chunker,
		Suggester:   suggester,
		Episodes:    episodes,
		Podcasts:    podcasts,
		Documents:   documents,
		TopicLinks:  topicRepo,
		Suggestions: suggestionRepo,
		Store:       store,
		Lock:        lock,
	}, pipeline.Options{
		Concurrency: p.Concurrency,
		RunTimeout:  p.RunTimeout,
		RunRetries:  p.RunRetries,
		QueueSize:   p.QueueSize,
	}, logger)

	a.Retrieval = retrieval.NewRetrievalService(embedder, llm, documents, episodes, podcasts, store, retrieval.Options{
		ChatModel:          cfg.LLM.ChatModel,
		LongContextModel:   cfg.LLM.LongContextModel,
		Threshold:          p.RetrievalThreshold,
		Count:              p.RetrievalCount,
		MinContentLength:   p.RetrievalMinContent,
		FullContextCeiling: p.FullContextTokenCeiling,
	}, logger)

	return a, nil
}

// HealthChecks returns the dependency checks served by GET /health
func (a *App) HealthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"storage": func(ctx context.Context) error {
			_, err := a.storage.GetBucketInfo(ctx)
			return err
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases every resource New acquired
func (a *App) Close() {
	if a.memory != nil {
		a.memory.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := database.CloseDB(a.DB); err != nil && a.Logger != nil {
			a.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

func qualityPolicy(q config.QualityConfig) quality.Policy {
	return quality.Policy{
		MinChars:           q.MinChars,
		MinWords:           q.MinWords,
		RepetitionMinWords: q.RepetitionMinWords,
		MinUniqueRatio:     q.MinUniqueRatio,
		LongEpisodeSeconds: q.LongEpisodeSeconds,
		WordsPerSecond:     q.WordsPerSecond,
		MinCoverage:        q.MinCoverage,
	}
}
