package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/ahrav/go-pricescout/internal/application"
	"github.com/ahrav/go-pricescout/internal/domain"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type quoteRequest struct {
	CallerID string `json:"caller_id" binding:"required,max=128"`
	Item     string `json:"item" binding:"required,max=256"`
}

type failureView struct {
	Provider domain.ProviderID  `json:"provider"`
	Phase    int                `json:"phase"`
	Kind     domain.FailureKind `json:"kind"`
	Error    string             `json:"error"`
}

type quoteResponse struct {
	RequestID string `json:"request_id"`
	application.Quote
	Failures []failureView `json:"failures,omitempty"`
}

type turnView struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func errorBody(kind, message string) gin.H {
	return gin.H{"error": gin.H{"type": kind, "message": message}}
}

func (s *Server) healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.health != nil {
		for k, v := range s.health() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) createQuote(c *gin.Context) {
	requestID := c.GetString(requestIDKey)

	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}

	ctx := c.Request.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	quote, err := s.quotes.Quote(ctx, req.CallerID, req.Item)
	resp := quoteResponse{RequestID: requestID, Quote: quote}
	for _, f := range quote.Result.Failures {
		view := failureView{Provider: f.Provider, Phase: f.Phase, Kind: f.Kind}
		if f.Err != nil {
			view.Error = f.Err.Error()
		}
		resp.Failures = append(resp.Failures, view)
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, domain.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
	case errors.Is(err, domain.ErrThrottled):
		c.JSON(http.StatusTooManyRequests, resp)
	case domain.IsUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, resp)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, errorBody("timeout", "quote did not finish in time"))
	default:
		s.logger.WithFields(log.Fields{
			"event":      "quote_failed",
			"request_id": requestID,
		}).WithError(err).Error("Quote failed")
		c.JSON(http.StatusInternalServerError, errorBody("internal", "quote failed"))
	}
}

func (s *Server) callerHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, errorBody("invalid_request", "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	callerID := c.Param("id")
	turns, err := s.quotes.History(c.Request.Context(), callerID, limit)
	if err != nil {
		s.logger.WithFields(log.Fields{
			"event":      "history_failed",
			"request_id": c.GetString(requestIDKey),
		}).WithError(err).Warn("History lookup failed")
		c.JSON(http.StatusServiceUnavailable, errorBody("unavailable", "history is unavailable"))
		return
	}

	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, turnView{Role: t.Role, Content: t.Content, At: t.At})
	}
	c.JSON(http.StatusOK, gin.H{"caller_id": callerID, "turns": views})
}
