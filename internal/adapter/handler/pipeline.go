package handler

import (
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/errors"
	dto "github.com/johnquangdev/podcast-assistant/internal/adapter/dto/pipeline"
	"github.com/johnquangdev/podcast-assistant/internal/domain/repositories"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/pipeline"
)

// Pipeline exposes the enrichment pipeline triggers
type Pipeline struct {
	svc      pipeline.Service
	episodes repositories.EpisodeRepository
	logger   *zap.Logger
}

// NewPipeline creates the pipeline handler
func NewPipeline(svc pipeline.Service, episodes repositories.EpisodeRepository, logger *zap.Logger) *Pipeline {
	return &Pipeline{svc: svc, episodes: episodes, logger: logger}
}

// ProcessEpisode queues one episode run
// @Router /episodes/{id}/process [post]
func (h *Pipeline) ProcessEpisode(c echo.Context) error {
	episodeID, err := parseUUIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req dto.ProcessEpisodeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	if c.QueryParam("force") == "true" {
		req.Force = true
	}

	episode, err := h.episodes.FindByID(c.Request().Context(), episodeID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrDBQueryFailed("find episode", err))
	}
	if episode == nil {
		return HandleError(h.logger, c, errors.ErrEpisodeNotFound(episodeID.String()))
	}

	if err := h.svc.Enqueue(episodeID, req.Force); err != nil {
		if stdErrors.Is(err, pipeline.ErrPoolNotRunning) {
			return HandleError(h.logger, c, errors.ErrProcessingFailed(err))
		}
		return HandleError(h.logger, c, toAppError(err, "episode", episodeID.String()))
	}

	return HandleAccepted(h.logger, c, dto.ProcessEpisodeResponse{
		EpisodeID: episodeID.String(),
		Status:    "queued",
		Force:     req.Force,
	})
}

// ProcessPodcast schedules runs for a podcast's episodes
// @Router /podcasts/{id}/process [post]
func (h *Pipeline) ProcessPodcast(c echo.Context) error {
	podcastID, err := parseUUIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req dto.ProcessPodcastRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	opts := pipeline.ProcessPodcastOptions{
		Force:        req.Force,
		EpisodeLimit: req.EpisodeLimit,
		MaxEpisodes:  req.MaxEpisodes,
	}
	for _, raw := range req.EpisodeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return HandleError(h.logger, c, errors.ErrInvalidArgument(fmt.Sprintf("invalid episode id %q", raw)))
		}
		opts.EpisodeIDs = append(opts.EpisodeIDs, id)
	}

	n, err := h.svc.ProcessPodcast(c.Request().Context(), podcastID, opts)
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, "podcast", podcastID.String()))
	}

	return HandleAccepted(h.logger, c, dto.ProcessPodcastResponse{
		PodcastID: podcastID.String(),
		Scheduled: n,
	})
}

// ClearErrors resets failed episodes of a podcast
// @Router /podcasts/{id}/errors [delete]
func (h *Pipeline) ClearErrors(c echo.Context) error {
	podcastID, err := parseUUIDParam(c, "id")
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	n, err := h.svc.ClearPodcastErrors(c.Request().Context(), podcastID)
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, "podcast", podcastID.String()))
	}

	return HandleSuccess(h.logger, c, dto.ClearErrorsResponse{
		PodcastID: podcastID.String(),
		Cleared:   n,
	})
}
