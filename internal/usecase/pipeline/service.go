// Package pipeline runs the per-episode enrichment state machine and the
// worker pool that drains podcast-wide runs.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johnquangdev/podcast-assistant/internal/domain/entities"
	domainrepo "github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/embedding"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/speaker"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/suggestions"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/summarize"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/topics"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/transcription"
	"github.com/johnquangdev/podcast-assistant/pkg/jobcontext"
)

// Stage names used in run results and error payloads
const (
	StageTranscribe = "transcribe"
	StageEnrich     = "enrich"
	StageSummarize  = "summarize"
	StageSpeakers   = "speakers"
	StageTopics     = "topics"
	StageEmbed      = "embed"
	StageSuggest    = "suggest"
)

// Stage outcomes
const (
	OutcomeDone    = "done"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

const (
	jobTypeProcessEpisode = "process_episode"
	lockPrefix            = "episode:"
	bookkeepingTimeout    = 30 * time.Second
)

// Options tunes the orchestrator
type Options struct {
	Concurrency int
	RunTimeout  time.Duration
	RunRetries  int
	QueueSize   int
}

// DefaultOptions returns the standard orchestrator settings
func DefaultOptions() Options {
	return Options{
		Concurrency: 5,
		RunTimeout:  45 * time.Minute,
		RunRetries:  1,
		QueueSize:   500,
	}
}

// Dependencies are the stages and stores a run touches
type Dependencies struct {
	Transcriber transcription.Service
	Summarizer  summarize.Service
	Speakers    speaker.Service
	Topics      topics.Service
	Embedder    embedding.Service
	Suggester   suggestions.Service

	Episodes    domainrepo.EpisodeRepository
	Podcasts    domainrepo.PodcastRepository
	Documents   domainrepo.DocumentRepository
	TopicLinks  domainrepo.TopicRepository
	Suggestions domainrepo.SuggestionRepository
	Store       domainrepo.ArtifactStore
	Lock        domainrepo.RunLock
}

// RunResult reports what one episode run did
type RunResult struct {
	EpisodeID        uuid.UUID
	State            entities.EpisodeState
	TranscriptSource string
	Stages           map[string]string
	Errors           map[string]string
}

// ProcessPodcastOptions selects which episodes of a podcast are run.
// EpisodeLimit caps the number of runs; MaxEpisodes caps the number of ready
// episodes the podcast may reach and is ignored when Force is set.
type ProcessPodcastOptions struct {
	Force        bool
	EpisodeIDs   []uuid.UUID
	EpisodeLimit int
	MaxEpisodes  int
}

// Service defines pipeline orchestration
type Service interface {
	// ProcessEpisode runs the full pipeline for one episode
	ProcessEpisode(ctx context.Context, episodeID uuid.UUID, force bool) (*RunResult, error)
	// ProcessPodcast schedules one run per selected episode and returns how many were scheduled
	ProcessPodcast(ctx context.Context, podcastID uuid.UUID, opts ProcessPodcastOptions) (int, error)
	// ClearPodcastErrors resets error payloads and failed states for a podcast
	ClearPodcastErrors(ctx context.Context, podcastID uuid.UUID) (int64, error)
	// Enqueue hands an episode run to the worker pool
	Enqueue(episodeID uuid.UUID, force bool) error

	StartWorkerPool(ctx context.Context, workerCount int) error
	StopWorkerPool() error
}

type episodeJob struct {
	episodeID uuid.UUID
	force     bool
}

type pipelineService struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger

	runSemaphore        chan struct{} // global cap on in-flight episode runs
	jobs                chan episodeJob
	workerStopChan      chan struct{}
	workerWg            sync.WaitGroup
	isWorkerPoolRunning bool
	workerMutex         sync.Mutex
}

// NewPipelineService creates the orchestrator. Non-positive options use the defaults.
func NewPipelineService(deps Dependencies, opts Options, logger *zap.Logger) Service {
	def := DefaultOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = def.RunTimeout
	}
	if opts.RunRetries <= 0 {
		opts.RunRetries = def.RunRetries
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	return &pipelineService{
		deps:           deps,
		opts:           opts,
		logger:         logger,
		runSemaphore:   make(chan struct{}, opts.Concurrency),
		jobs:           make(chan episodeJob, opts.QueueSize),
		workerStopChan: make(chan struct{}),
	}
}

// ProcessEpisode moves the episode through pending → transcribing → enriching → ready.
// Enrichment stage failures are recorded on the episode and in the result without
// returning an error; a failed transcription is returned so callers can retry it.
func (s *pipelineService) ProcessEpisode(ctx context.Context, episodeID uuid.UUID, force bool) (*RunResult, error) {
	select {
	case s.runSemaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.runSemaphore }()

	episode, err := s.deps.Episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode: %w", err)
	}
	if episode == nil {
		return nil, fmt.Errorf("episode %s: %w", episodeID, entities.ErrNotFound)
	}
	podcast, err := s.deps.Podcasts.FindByID(ctx, episode.PodcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to load podcast: %w", err)
	}
	if podcast == nil {
		return nil, fmt.Errorf("podcast %s: %w", episode.PodcastID, entities.ErrNotFound)
	}

	release, err := s.acquire(ctx, episodeID, force)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.logger != nil {
		s.logger.Info("🚀 Processing episode",
			zap.String("episode_id", episodeID.String()),
			zap.String("podcast_id", podcast.ID.String()),
			zap.Bool("force", force),
		)
	}

	result := &RunResult{
		EpisodeID: episodeID,
		Stages:    map[string]string{},
		Errors:    map[string]string{},
	}

	startedAt := time.Now().UTC()
	status := entities.ProcessingStatus{StartedAt: &startedAt, Message: "Starting processing"}
	if err := s.deps.Episodes.UpdateState(ctx, episodeID, entities.EpisodeStateTranscribing, status, nil); err != nil {
		return nil, fmt.Errorf("failed to mark episode transcribing: %w", err)
	}

	transcript, source, err := s.transcript(ctx, episode, podcast, force)
	if err != nil {
		result.Stages[StageTranscribe] = OutcomeFailed
		result.Errors[StageTranscribe] = err.Error()
		s.finish(ctx, result, status, fmt.Sprintf("Error: %v", err))
		return result, fmt.Errorf("transcription failed: %w", err)
	}
	result.TranscriptSource = source
	result.Stages[StageTranscribe] = OutcomeDone
	if source == "" {
		result.Stages[StageTranscribe] = OutcomeSkipped
	}

	status.Message = "Enriching transcript"
	if err := s.deps.Episodes.UpdateState(ctx, episodeID, entities.EpisodeStateEnriching, status, nil); err != nil {
		err = fmt.Errorf("failed to mark episode enriching: %w", err)
		result.Stages[StageEnrich] = OutcomeFailed
		result.Errors[StageEnrich] = err.Error()
		s.finish(ctx, result, status, fmt.Sprintf("Error: %v", err))
		return result, err
	}

	s.enrich(ctx, episode, podcast, transcript, force, result)

	message := "Finished processing"
	if len(result.Errors) > 0 {
		message = "Finished with failed stages: " + strings.Join(failedStages(result.Errors), ", ")
	}
	s.finish(ctx, result, status, message)
	return result, nil
}

// acquire takes the per-episode run lock. A forced run proceeds when the lock
// is held elsewhere and never releases a lock it did not take.
func (s *pipelineService) acquire(ctx context.Context, episodeID uuid.UUID, force bool) (func(), error) {
	noop := func() {}
	if s.deps.Lock == nil {
		return noop, nil
	}

	key := lockPrefix + episodeID.String()
	acquired, err := s.deps.Lock.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		if !force {
			return nil, fmt.Errorf("episode %s: %w", episodeID, entities.ErrRunInProgress)
		}
		if s.logger != nil {
			s.logger.Warn("⚠️ Forced run while another run holds the lock",
				zap.String("episode_id", episodeID.String()),
			)
		}
		return noop, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
		defer cancel()
		if err := s.deps.Lock.Release(releaseCtx, key); err != nil && s.logger != nil {
			s.logger.Warn("⚠️ Failed to release run lock",
				zap.String("episode_id", episodeID.String()),
				zap.Error(err),
			)
		}
	}, nil
}

// transcript reuses the stored transcript unless forced. An empty source means it was reused.
func (s *pipelineService) transcript(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, force bool) (*entities.TimedTranscript, string, error) {
	if episode.HasTranscript() && !force {
		stored, err := s.loadTranscript(ctx, episode.RawTranscriptURL)
		if err == nil {
			if s.logger != nil {
				s.logger.Info("⏭️ Reusing stored transcript",
					zap.String("episode_id", episode.ID.String()),
				)
			}
			return stored, "", nil
		}
		if s.logger != nil {
			s.logger.Warn("⚠️ Stored transcript unreadable, transcribing again",
				zap.String("episode_id", episode.ID.String()),
				zap.Error(err),
			)
		}
	}

	res, err := s.deps.Transcriber.Transcribe(ctx, episode, podcast)
	if err != nil {
		return nil, "", err
	}
	return res.Transcript, res.Source, nil
}

func (s *pipelineService) loadTranscript(ctx context.Context, url string) (*entities.TimedTranscript, error) {
	raw, err := s.deps.Store.ReadText(ctx, url)
	if err != nil {
		return nil, err
	}
	var t entities.TimedTranscript
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	if strings.TrimSpace(t.Text()) == "" {
		return nil, entities.ErrNoTranscript
	}
	return &t, nil
}

type stageFunc func(ctx context.Context) (string, error)

// enrich runs the enrichment stages concurrently. A failing stage never cancels its siblings.
func (s *pipelineService) enrich(ctx context.Context, episode *entities.Episode, podcast *entities.Podcast, transcript *entities.TimedTranscript, force bool, result *RunResult) {
	stages := map[string]stageFunc{
		StageSummarize: func(ctx context.Context) (string, error) {
			if episode.SummaryURL != "" && !force {
				return OutcomeSkipped, nil
			}
			_, err := s.deps.Summarizer.SummarizeEpisode(ctx, episode, podcast, transcript)
			return OutcomeDone, err
		},
		StageSpeakers: func(ctx context.Context) (string, error) {
			if len(episode.SpeakerMap) > 0 && !force {
				return OutcomeSkipped, nil
			}
			speakers, err := s.deps.Speakers.IdentifyEpisode(ctx, episode, podcast, transcript, force)
			if err == nil && speakers == nil {
				return OutcomeSkipped, nil
			}
			return OutcomeDone, err
		},
		StageTopics: func(ctx context.Context) (string, error) {
			if !force {
				n, err := s.deps.TopicLinks.CountEpisodeTopics(ctx, episode.ID)
				if err != nil {
					return OutcomeFailed, err
				}
				if n > 0 {
					return OutcomeSkipped, nil
				}
			}
			_, err := s.deps.Topics.AssignEpisode(ctx, episode, transcript.Text())
			return OutcomeDone, err
		},
		StageEmbed: func(ctx context.Context) (string, error) {
			return s.embed(ctx, episode, transcript, force)
		},
		StageSuggest: func(ctx context.Context) (string, error) {
			if !force {
				existing, err := s.deps.Suggestions.ListByEpisode(ctx, episode.ID)
				if err != nil {
					return OutcomeFailed, err
				}
				if len(existing) > 0 {
					return OutcomeSkipped, nil
				}
			}
			_, err := s.deps.Suggester.SuggestEpisode(ctx, episode, podcast, transcript)
			return OutcomeDone, err
		},
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, run := range stages {
		name, run := name, run
		g.Go(func() error {
			outcome, err := s.runStage(ctx, episode.ID, name, run)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Stages[name] = OutcomeFailed
				result.Errors[name] = err.Error()
				return nil
			}
			result.Stages[name] = outcome
			return nil
		})
	}
	_ = g.Wait()
}

func (s *pipelineService) runStage(ctx context.Context, episodeID uuid.UUID, name string, run stageFunc) (outcome string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic recovered: %v", p)
		}
		if s.logger == nil {
			return
		}
		if err != nil {
			s.logger.Error("❌ Stage failed",
				zap.String("episode_id", episodeID.String()),
				zap.String("stage", name),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("✅ Stage finished",
			zap.String("episode_id", episodeID.String()),
			zap.String("stage", name),
			zap.String("outcome", outcome),
		)
	}()
	return run(ctx)
}

// embed indexes the time-coded transcript. Documents from another source are
// removed on a forced run; the same source is replaced by the embedder itself.
func (s *pipelineService) embed(ctx context.Context, episode *entities.Episode, transcript *entities.TimedTranscript, force bool) (string, error) {
	docs, err := s.deps.Documents.FindByEpisode(ctx, episode.ID)
	if err != nil {
		return OutcomeFailed, err
	}
	if len(docs) > 0 && !force {
		return OutcomeSkipped, nil
	}

	source := episode.RawTranscriptURL
	for _, d := range docs {
		if d.Source != source {
			if err := s.deps.Documents.DeleteByEpisode(ctx, episode.ID); err != nil {
				return OutcomeFailed, fmt.Errorf("failed to remove stale documents: %w", err)
			}
			break
		}
	}

	if _, err := s.deps.Embedder.EmbedTranscript(ctx, episode, source, transcript); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDone, nil
}

// finish stamps completion on a context that outlives the run's own deadline
func (s *pipelineService) finish(ctx context.Context, result *RunResult, status entities.ProcessingStatus, message string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	completedAt := time.Now().UTC()
	status.CompletedAt = &completedAt
	status.Message = message

	result.State = entities.EpisodeStateReady
	var runErr []byte
	if len(result.Errors) > 0 {
		result.State = entities.EpisodeStateFailed
		runErr = entities.NewRunError(message, result.Errors)
	}

	if err := s.deps.Episodes.UpdateState(ctx, result.EpisodeID, result.State, status, runErr); err != nil {
		if s.logger != nil {
			s.logger.Error("❌ Failed to save episode state",
				zap.String("episode_id", result.EpisodeID.String()),
				zap.Error(err),
			)
		}
		return
	}

	if s.logger != nil {
		s.logger.Info("🏁 Episode run finished",
			zap.String("episode_id", result.EpisodeID.String()),
			zap.String("state", string(result.State)),
			zap.String("message", message),
		)
	}
}

func failedStages(errs map[string]string) []string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProcessPodcast selects episodes and either enqueues them on the running
// worker pool or runs them directly, bounded by the global semaphore.
func (s *pipelineService) ProcessPodcast(ctx context.Context, podcastID uuid.UUID, opts ProcessPodcastOptions) (int, error) {
	podcast, err := s.deps.Podcasts.FindByID(ctx, podcastID)
	if err != nil {
		return 0, fmt.Errorf("failed to load podcast: %w", err)
	}
	if podcast == nil {
		return 0, fmt.Errorf("podcast %s: %w", podcastID, entities.ErrNotFound)
	}

	episodes, err := s.deps.Episodes.ListByPodcast(ctx, podcastID)
	if err != nil {
		return 0, fmt.Errorf("failed to list episodes: %w", err)
	}

	selected := SelectEpisodes(episodes, opts)
	if s.logger != nil {
		s.logger.Info("📻 Processing podcast",
			zap.String("podcast_id", podcastID.String()),
			zap.Int("episodes", len(episodes)),
			zap.Int("selected", len(selected)),
			zap.Bool("force", opts.Force),
		)
	}
	if len(selected) == 0 {
		return 0, nil
	}

	if s.poolRunning() {
		queued := 0
		for _, ep := range selected {
			if err := s.Enqueue(ep.ID, opts.Force); err != nil {
				return queued, err
			}
			queued++
		}
		return queued, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for _, ep := range selected {
		ep := ep
		g.Go(func() error {
			if err := s.runJob(ctx, ep.ID, opts.Force, -1); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("episode %s: %w", ep.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(selected), errors.Join(errs...)
}

// SelectEpisodes applies the force flag, the explicit episode list and both caps
func SelectEpisodes(episodes []entities.Episode, opts ProcessPodcastOptions) []entities.Episode {
	wanted := make(map[uuid.UUID]bool, len(opts.EpisodeIDs))
	for _, id := range opts.EpisodeIDs {
		wanted[id] = true
	}

	var selected []entities.Episode
	ready := 0
	for _, ep := range episodes {
		if ep.IsReady() {
			ready++
		}
		switch {
		case opts.Force:
			selected = append(selected, ep)
		case len(wanted) > 0:
			if wanted[ep.ID] {
				selected = append(selected, ep)
			}
		case !ep.IsReady():
			selected = append(selected, ep)
		}
	}

	limit := -1
	if opts.EpisodeLimit > 0 {
		limit = opts.EpisodeLimit
	}
	if opts.MaxEpisodes > 0 && !opts.Force {
		room := max(0, opts.MaxEpisodes-ready)
		if limit < 0 || room < limit {
			limit = room
		}
	}
	if limit >= 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

func (s *pipelineService) ClearPodcastErrors(ctx context.Context, podcastID uuid.UUID) (int64, error) {
	n, err := s.deps.Episodes.ClearErrors(ctx, podcastID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear errors: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("🧹 Cleared episode errors",
			zap.String("podcast_id", podcastID.String()),
			zap.Int64("episodes", n),
		)
	}
	return n, nil
}

// runJob wraps one episode run in a job context with a timeout and transient-error retries
func (s *pipelineService) runJob(parentCtx context.Context, episodeID uuid.UUID, force bool, workerID int) error {
	jobCtx, cancel := jobcontext.JobBegin(parentCtx, uuid.New(), jobTypeProcessEpisode, workerID, s.opts.RunTimeout)
	defer cancel()
	jobCtx = jobcontext.SetMaxRetries(jobCtx, s.opts.RunRetries)

	return jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
		_, err := s.ProcessEpisode(ctx, episodeID, force)
		return err
	})
}
