package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aluiziolira/sheethook/models"
	"github.com/aluiziolira/sheethook/pipeline"
	"github.com/aluiziolira/sheethook/service"
	"github.com/aluiziolira/sheethook/sheet"
	"github.com/gin-gonic/gin"
)

// Service is the part of service.Service the HTTP surface drives.
type Service interface {
	Edit(ctx context.Context, ev models.EditEvent) (service.EditOutcome, error)
	Callback(ctx context.Context, result models.CallbackResult) (models.Status, error)
	Row(ctx context.Context, index int) (models.Row, error)
	Archive(ctx context.Context) (models.ArchiveResult, error)
}

// Handler serves the tracker endpoints.
type Handler struct {
	svc          Service
	maxBodyBytes int64
}

// NewHandler creates a handler. Request bodies above maxBodyBytes are
// rejected with 413.
func NewHandler(svc Service, maxBodyBytes int64) *Handler {
	return &Handler{svc: svc, maxBodyBytes: maxBodyBytes}
}

type callbackResponse struct {
	RowNumber int           `json:"row_number"`
	Status    models.Status `json:"status"`
}

type archiveResponse struct {
	Archived int `json:"archived"`
	Skipped  int `json:"skipped"`
}

// Callback applies a workflow result. POST /callback
func (h *Handler) Callback(c *gin.Context) {
	var result models.CallbackResult
	if !h.bind(c, &result) {
		return
	}

	status, err := h.svc.Callback(c.Request.Context(), result)
	if err != nil {
		h.fail(c, "callback", err)
		return
	}
	c.JSON(http.StatusOK, callbackResponse{RowNumber: result.RowNumber, Status: status})
}

// Edit runs the edit path for one row. POST /edits
func (h *Handler) Edit(c *gin.Context) {
	var ev models.EditEvent
	if !h.bind(c, &ev) {
		return
	}

	outcome, err := h.svc.Edit(c.Request.Context(), ev)
	if err != nil {
		h.fail(c, "edit", err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// GetRow returns the current state of a row. GET /rows/:row
func (h *Handler) GetRow(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "row must be a number"})
		return
	}

	row, err := h.svc.Row(c.Request.Context(), index)
	if err != nil {
		h.fail(c, "row", err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Archive runs one sweep. POST /archive
func (h *Handler) Archive(c *gin.Context) {
	result, err := h.svc.Archive(c.Request.Context())
	if err != nil {
		h.fail(c, "archive", err)
		return
	}
	c.JSON(http.StatusOK, archiveResponse{Archived: result.Archived, Skipped: result.Skipped})
}

// bind decodes a capped JSON body into v and writes the error response
// itself when that fails.
func (h *Handler) bind(c *gin.Context, v any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body", "details": err.Error()})
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sheet.ErrSheetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrPipelineClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
