package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/internal/nlu"
)

type chatRequest struct {
	Message string `json:"message"`
}

// postChat classifies the utterance and resolves it against the catalog.
// With no agent configured the endpoint still answers, with an UNKNOWN
// reply, so chat clients can fall back to their local rules.
func (s *Server) postChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	var reply nlu.Reply
	if s.deps.Agent != nil {
		reply = s.deps.Agent.Answer(c.Request().Context(), message)
	} else {
		reply = nlu.Reply{
			Kind:    nlu.QueryUnknown,
			Message: "Chat understanding is not configured",
			Unknown: &nlu.UnknownPayload{},
		}
	}

	data, err := reply.Encode()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode chat reply")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode reply")
	}
	return c.JSONBlob(http.StatusOK, data)
}
