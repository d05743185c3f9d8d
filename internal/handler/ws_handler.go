package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/learnhub/learnhub-backend/internal/middleware"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/learnhub/learnhub-backend/internal/service"
	ws "github.com/learnhub/learnhub-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// WSHandler streams autosaves and the final submission of one attempt.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       ws.NewUpgrader(allowedOrigins),
	}
}

// ResultStream godoc
// WS /ws/v1/results/:result_id/stream?token=...
// Answers are buffered in Redis and persisted by the answer worker; submit
// scores the attempt from the buffer.
func (h *WSHandler) ResultStream(c *gin.Context) {
	resultID, ok := paramID(c, "result_id")
	if !ok {
		return
	}
	user := middleware.GetUser(c)

	// Reject before upgrading so the client gets a normal HTTP error.
	res, err := h.attemptService.VerifyOpen(c.Request.Context(), user.ID, resultID)
	if err != nil {
		failWith(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	stream := ws.NewStream(conn)

	wsLog := h.log.With().
		Int64("user_id", user.ID).
		Int64("result_id", resultID).
		Logger()
	wsLog.Info().Msg("Attempt stream connected")

	for {
		msg, err := stream.Next()
		if err != nil {
			if ws.Closed(err) {
				wsLog.Debug().Msg("Connection closed")
			} else {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			if h.handleAutosave(stream, wsLog, res, &msg) {
				return
			}
		case ws.ActionSubmit:
			if h.handleSubmit(stream, wsLog, res, &msg) {
				return
			}
		case ws.ActionPing:
			stream.Pong()
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			stream.Fail(response.ErrInvalidPayload, "unknown action: "+string(msg.Action))
		}
	}
}

// handleAutosave reports whether the stream is done, which happens once the
// attempt has been submitted elsewhere.
func (h *WSHandler) handleAutosave(stream *ws.Stream, wsLog zerolog.Logger, res *model.Result, msg *ws.RequestPayload) bool {
	saved, err := h.attemptService.Autosave(context.Background(), res, msg.Answers)
	switch {
	case errors.Is(err, service.ErrResultFinalized):
		stream.Fail(response.ErrResultFinalized, err.Error())
		return true
	case errors.Is(err, service.ErrInvalidAnswer):
		stream.Fail(response.ErrInvalidAnswer, err.Error())
	case err != nil:
		wsLog.Error().Err(err).Msg("Autosave failed")
		stream.Fail(response.ErrInternal, "save failed")
	default:
		stream.Saved(saved)
	}
	return false
}

// handleSubmit reports whether the stream is done.
func (h *WSHandler) handleSubmit(stream *ws.Stream, wsLog zerolog.Logger, res *model.Result, msg *ws.RequestPayload) bool {
	ctx := context.Background()

	if len(msg.Answers) > 0 {
		if _, err := h.attemptService.Autosave(ctx, res, msg.Answers); err != nil {
			if errors.Is(err, service.ErrResultFinalized) {
				stream.Fail(response.ErrResultFinalized, err.Error())
				return true
			}
			wsLog.Warn().Err(err).Msg("Answers sent with submit rejected")
			stream.Fail(response.ErrInvalidAnswer, err.Error())
			return false
		}
	}

	out, err := h.attemptService.SubmitBuffered(ctx, res, msg.DurationSeconds)
	if err != nil {
		if errors.Is(err, service.ErrResultFinalized) {
			stream.Fail(response.ErrResultFinalized, err.Error())
			return true
		}
		wsLog.Error().Err(err).Msg("Submit failed")
		stream.Fail(response.ErrInternal, "submit failed")
		return false
	}

	stream.Graded(out)
	return true
}
