package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/steploop/application"
	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
)

// Terminate results.
const (
	resultTerminated = "terminated"
	resultNotFound   = "not_found"
)

type runRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId"`
}

type runResponse struct {
	ChatID string `json:"chatId"`
	State  string `json:"state"`
	Steps  int    `json:"steps"`
	Result string `json:"result"`
}

type terminateResponse struct {
	ChatID string `json:"chatId"`
	OK     bool   `json:"ok"`
	Result string `json:"result"`
}

func (s *Server) handleLiteMind(c *gin.Context) {
	sess, err := s.svc.StartStream(c.Request.Context(), c.Query("message"), c.Query("chatId"), c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	s.stream(c, sess)
}

func (s *Server) handleSimple(c *gin.Context) {
	sess, err := s.svc.StartChat(c.Request.Context(), c.Query("message"), c.Query("chatId"), c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	s.stream(c, sess)
}

func (s *Server) handleTerminate(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
		return
	}
	hard := false
	if raw := c.Query("final"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "final must be a boolean"})
			return
		}
		hard = v
	}

	if !s.svc.Terminate(chatID, hard) {
		c.JSON(http.StatusNotFound, terminateResponse{ChatID: chatID, OK: false, Result: resultNotFound})
		return
	}
	c.JSON(http.StatusOK, terminateResponse{ChatID: chatID, OK: true, Result: resultTerminated})
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.svc.Run(c.Request.Context(), req.Message, req.ChatID, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, runResponse{
		ChatID: res.ChatID,
		State:  string(res.State),
		Steps:  res.Steps,
		Result: res.Result,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.svc.Registry().Len(),
	})
}

// stream relays a session as SSE until it ends or the client goes away.
func (s *Server) stream(c *gin.Context, sess *application.Session) {
	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	w, err := newSSEWriter(c.Writer)
	if err != nil {
		sess.Cancel()
		logging.Error().
			Add(logging.SessionID(sess.ID)).
			Add(logging.ErrorField(err)).
			Msg("sse setup failed")
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			sess.Cancel()
			logging.Debug().
				Add(logging.SessionID(sess.ID)).
				Msg("client disconnected")
			return
		case item, ok := <-sess.Events:
			if !ok {
				_ = w.WriteEvent("done", "")
				return
			}
			if err := w.WriteData(item); err != nil {
				sess.Cancel()
				return
			}
		case <-ticker.C:
			if err := w.WriteKeepAlive(); err != nil {
				sess.Cancel()
				return
			}
		}
	}
}

// writeError maps admission errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, resilience.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, agent.ErrInvalidState):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
