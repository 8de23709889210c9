package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/podcast-assistant/errors"
	dto "github.com/johnquangdev/podcast-assistant/internal/adapter/dto/chat"
	"github.com/johnquangdev/podcast-assistant/internal/usecase/retrieval"
	pkgai "github.com/johnquangdev/podcast-assistant/pkg/ai"
)

// Chat streams grounded answers about podcasts
type Chat struct {
	svc    retrieval.Service
	logger *zap.Logger
}

// NewChat creates the chat handler
func NewChat(svc retrieval.Service, logger *zap.Logger) *Chat {
	return &Chat{svc: svc, logger: logger}
}

// Stream answers the latest user message as a plain text token stream
// @Router /chat [post]
func (h *Chat) Stream(c echo.Context) error {
	var req dto.Request
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	chatReq := retrieval.ChatRequest{
		Messages: make([]pkgai.Message, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, pkgai.Message{Role: m.Role, Content: m.Content})
	}
	if req.EpisodeID != nil {
		id := uuid.MustParse(*req.EpisodeID)
		chatReq.EpisodeID = &id
	}
	if req.PodcastID != nil {
		id := uuid.MustParse(*req.PodcastID)
		chatReq.PodcastID = &id
	}

	resp := c.Response()
	started := false
	onDelta := func(delta string) error {
		if !started {
			resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
			resp.Header().Set("Cache-Control", "no-cache")
			resp.Header().Set("X-Accel-Buffering", "no")
			resp.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := resp.Write([]byte(delta)); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	if err := h.svc.Chat(c.Request().Context(), chatReq, onDelta); err != nil {
		if !started {
			return HandleError(h.logger, c, toChatError(err))
		}
		// headers are already sent; the client sees a truncated answer
		if h.logger != nil {
			h.logger.Error("❌ Chat stream interrupted",
				zap.String("request_id", getRequestID(c)),
				zap.String("scope", string(chatReq.Scope())),
				zap.Error(err),
			)
		}
		return nil
	}

	if !started {
		// nothing streamed, still answer with an empty body
		return c.NoContent(http.StatusOK)
	}
	return nil
}

func toChatError(err error) error {
	appErr := toAppError(err, "chat", "")
	if e, ok := appErr.(errors.AppError); ok && e.Code == errors.ErrorCode_INTERNAL {
		return errors.ErrChatFailed(err)
	}
	return appErr
}
