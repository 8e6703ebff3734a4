package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fastflow/nexus/internal/agent/model"
	"github.com/fastflow/nexus/internal/chat"
	"github.com/fastflow/nexus/internal/core/errx"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// Server is the HTTP boundary. It owns routing and SSE framing only; all
// agent behaviour lives in the chat package.
type Server struct {
	echo  *echo.Echo
	agent *chat.Agent
}

func New(agent *chat.Agent) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, agent: agent}
	// The builder flow is intentionally not routed; only the chat agent is
	// reachable over HTTP.
	e.POST("/api/agent/chat", s.handleChat)
	return s
}

// Start blocks serving HTTP on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// handleChat validates the request and streams the agent's event stream as
// server-sent events: one JSON object per data line, closed by [DONE]. A
// fatal error emits a final error event before the terminator; the stream is
// never left open.
func (s *Server) handleChat(c echo.Context) error {
	var reqCtx model.ChatRequestContext
	if err := c.Bind(&reqCtx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reqCtx.AuthToken = c.Request().Header.Get("Authorization")
	if reqCtx.AuthToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authorization token is required")
	}
	if reqCtx.ModelConfigID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "model_config_id is required")
	}
	if reqCtx.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	reqCtx.UserPrompt = strings.TrimSpace(reqCtx.UserPrompt)
	if reqCtx.UserPrompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_prompt is required")
	}

	logx.Info().
		Str("session_id", reqCtx.SessionID).
		Str("model_config_id", reqCtx.ModelConfigID).
		Msg("Received chat agent request")

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	writeEvent := func(ev chat.Event) {
		b, err := json.Marshal(ev)
		if err != nil {
			logx.Error().Err(err).Msg("Failed to marshal event")
			return
		}
		if _, err := resp.Write(append(append([]byte("data: "), b...), '\n', '\n')); err != nil {
			logx.Warn().Err(err).Msg("Failed to write event to client")
			return
		}
		resp.Flush()
	}

	if err := s.agent.Chat(c.Request().Context(), &reqCtx, writeEvent); err != nil {
		logx.Error().
			Err(err).
			Str("session_id", reqCtx.SessionID).
			Msg("Chat agent request failed")
		writeEvent(chat.ErrorEvent(safeErrorMessage(err)))
	}

	if _, err := resp.Write([]byte("data: [DONE]\n\n")); err != nil {
		logx.Warn().Err(err).Msg("Failed to write stream terminator")
	}
	resp.Flush()
	return nil
}

// safeErrorMessage exposes the curated message of an errx error and hides
// everything else behind a generic one.
func safeErrorMessage(err error) string {
	var appErr *errx.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return errx.SystemErrorMessage
}
