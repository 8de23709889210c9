package handler

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/internal/adapter/dto/common"
	dto "github.com/johnquangdev/podcast-assistant/internal/adapter/dto/topic"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/topics"
)

// Topic serves topic search and browsing
type Topic struct {
	svc    topics.Service
	logger *zap.Logger
}

// NewTopic creates the topic handler
func NewTopic(svc topics.Service, logger *zap.Logger) *Topic {
	return &Topic{svc: svc, logger: logger}
}

// Search finds topics similar to q
// @Router /topics/search [get]
func (h *Topic) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("q is required"))
	}

	matches, err := h.svc.Search(c.Request().Context(), q)
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, "topic", q))
	}

	data := dto.FromMatches(matches)
	return HandleSuccess(h.logger, c, common.ListResponse{Data: data, Count: len(data)})
}

// Episodes lists the episodes linked to a topic
// @Router /topics/{slug}/episodes [get]
func (h *Topic) Episodes(c echo.Context) error {
	slug := c.Param("slug")

	episodes, err := h.svc.EpisodesByTopic(c.Request().Context(), slug)
	if err != nil {
		return HandleError(h.logger, c, toAppError(err, "topic", slug))
	}

	data := dto.FromEpisodes(episodes)
	return HandleSuccess(h.logger, c, common.ListResponse{Data: data, Count: len(data)})
}
