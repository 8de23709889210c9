package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the job queue has no room
var ErrQueueFull = errors.New("pipeline queue is full")

// ErrPoolNotRunning is returned by Enqueue before StartWorkerPool
var ErrPoolNotRunning = errors.New("worker pool not running")

func (s *pipelineService) Enqueue(episodeID uuid.UUID, force bool) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.isWorkerPoolRunning {
		return ErrPoolNotRunning
	}

	select {
	case s.jobs <- episodeJob{episodeID: episodeID, force: force}:
		if s.logger != nil {
			s.logger.Debug("📥 Episode queued",
				zap.String("episode_id", episodeID.String()),
				zap.Int("queued", len(s.jobs)),
			)
		}
		return nil
	default:
		return fmt.Errorf("episode %s: %w", episodeID, ErrQueueFull)
	}
}

// StartWorkerPool starts workers draining the episode queue
func (s *pipelineService) StartWorkerPool(ctx context.Context, workerCount int) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool already running")
	}
	if workerCount <= 0 {
		workerCount = s.opts.Concurrency
	}

	s.isWorkerPoolRunning = true
	s.workerStopChan = make(chan struct{})

	if s.logger != nil {
		s.logger.Info("🚀 Starting pipeline worker pool",
			zap.Int("worker_count", workerCount),
			zap.Int("concurrency", s.opts.Concurrency),
		)
	}

	for i := 0; i < workerCount; i++ {
		s.workerWg.Add(1)
		go s.episodeWorker(ctx, i)
	}

	return nil
}

// StopWorkerPool stops accepting jobs and waits for in-flight runs to finish.
// Jobs still queued are left for the next pool start.
func (s *pipelineService) StopWorkerPool() error {
	s.workerMutex.Lock()
	if !s.isWorkerPoolRunning {
		s.workerMutex.Unlock()
		return fmt.Errorf("worker pool not running")
	}
	s.isWorkerPoolRunning = false
	close(s.workerStopChan)
	s.workerMutex.Unlock()

	if s.logger != nil {
		s.logger.Info("🛑 Stopping pipeline worker pool...")
	}

	s.workerWg.Wait()

	if s.logger != nil {
		s.logger.Info("✅ Pipeline worker pool stopped",
			zap.Int("left_in_queue", len(s.jobs)),
		)
	}
	return nil
}

func (s *pipelineService) poolRunning() bool {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()
	return s.isWorkerPoolRunning
}

func (s *pipelineService) episodeWorker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()

	s.workerMutex.Lock()
	stop := s.workerStopChan
	s.workerMutex.Unlock()

	if s.logger != nil {
		s.logger.Info("👷 Worker started",
			zap.Int("worker_id", workerID),
		)
	}

	for {
		// stop wins over a non-empty queue
		select {
		case <-stop:
			s.logWorkerStop(workerID)
			return
		case <-parentCtx.Done():
			s.logWorkerStop(workerID)
			return
		default:
		}

		select {
		case <-stop:
			s.logWorkerStop(workerID)
			return

		case <-parentCtx.Done():
			s.logWorkerStop(workerID)
			return

		case job := <-s.jobs:
			if s.logger != nil {
				s.logger.Info("👷 Worker claimed episode",
					zap.Int("worker_id", workerID),
					zap.String("episode_id", job.episodeID.String()),
					zap.Bool("force", job.force),
				)
			}

			if err := s.runJob(parentCtx, job.episodeID, job.force, workerID); err != nil {
				if s.logger != nil {
					s.logger.Error("❌ Episode run failed",
						zap.Int("worker_id", workerID),
						zap.String("episode_id", job.episodeID.String()),
						zap.Error(err),
					)
				}
				continue
			}

			if s.logger != nil {
				s.logger.Info("✅ Episode run completed",
					zap.Int("worker_id", workerID),
					zap.String("episode_id", job.episodeID.String()),
				)
			}
		}
	}
}

func (s *pipelineService) logWorkerStop(workerID int) {
	if s.logger != nil {
		s.logger.Info("👷 Worker stopping",
			zap.Int("worker_id", workerID),
		)
	}
}
