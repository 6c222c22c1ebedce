package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vixsrc-go/internal/app"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

// BatchHandler handles batch-related HTTP requests
type BatchHandler struct {
	service *app.BatchService
	logger  *zap.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(service *app.BatchService, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		service: service,
		logger:  logger,
	}
}

// EntryRequest is one structured batch entry
type EntryRequest struct {
	Kind    string `json:"kind" binding:"required"` // movie, tv, season, series
	ID      int    `json:"id" binding:"required"`
	Season  int    `json:"season,omitempty"`
	Episode int    `json:"episode,omitempty"`
	Output  string `json:"output,omitempty"`
	Lang    string `json:"lang,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// SubmitBatchRequest represents a request to start a batch
type SubmitBatchRequest struct {
	Lines     string         `json:"lines,omitempty"`
	Entries   []EntryRequest `json:"entries,omitempty"`
	Parallel  int            `json:"parallel,omitempty"`
	OutputDir string         `json:"output_dir,omitempty"`
	Quality   string         `json:"quality,omitempty"`
	Lang      string         `json:"lang,omitempty"`
}

// SkippedLine reports a malformed line of a submitted batch
type SkippedLine struct {
	Line  int    `json:"line"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

// SubmitBatchResponse is returned for an accepted batch
type SubmitBatchResponse struct {
	BatchID string                `json:"batch_id"`
	Total   int                   `json:"total"`
	Tasks   []domain.DownloadTask `json:"tasks"`
	Skipped []SkippedLine         `json:"skipped,omitempty"`
}

// BatchResponse is a batch record with its tasks
type BatchResponse struct {
	Batch *domain.BatchRecord    `json:"batch"`
	Tasks []*domain.DownloadTask `json:"tasks"`
}

// SubmitBatch handles POST /api/v1/batches
func (h *BatchHandler) SubmitBatch(c *gin.Context) {
	var req SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries := make([]app.BatchEntry, 0, len(req.Entries))
	for i, e := range req.Entries {
		ref, err := e.ref()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("entry %d: %v", i, err)})
			return
		}
		entries = append(entries, app.BatchEntry{Ref: ref, Output: e.Output, Lang: e.Lang, Quality: e.Quality})
	}

	result, err := h.service.Submit(c.Request.Context(), app.SubmitRequest{
		Source:    "api",
		Lines:     req.Lines,
		Entries:   entries,
		Parallel:  req.Parallel,
		OutputDir: req.OutputDir,
		Quality:   req.Quality,
		Lang:      req.Lang,
	})
	if err != nil {
		var expErr *domain.CatalogExpansionError
		switch {
		case errors.As(err, &expErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, app.ErrServiceStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.logger.Warn("Rejected batch", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	resp := SubmitBatchResponse{
		BatchID: result.Batch.ID,
		Total:   result.Batch.Total,
		Tasks:   result.Tasks,
	}
	for _, skipped := range result.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedLine{Line: skipped.Line, Text: skipped.Text, Error: skipped.Err.Error()})
	}

	c.JSON(http.StatusAccepted, resp)
}

// ListBatches handles GET /api/v1/batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}

	batches, err := h.service.ListBatches(limit)
	if err != nil {
		h.logger.Error("Failed to list batches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, batches)
}

// GetBatch handles GET /api/v1/batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id := c.Param("id")

	batch, tasks, err := h.service.GetBatch(id)
	if err != nil {
		h.logger.Error("Failed to get batch", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if batch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}

	c.JSON(http.StatusOK, BatchResponse{Batch: batch, Tasks: tasks})
}

func (e EntryRequest) ref() (domain.ContentRef, error) {
	var ref domain.ContentRef
	switch strings.ToLower(e.Kind) {
	case "movie":
		ref = domain.NewMovieRef(e.ID)
	case "tv", "episode":
		if e.Episode == 0 {
			return ref, fmt.Errorf("%s entries need season and episode", e.Kind)
		}
		ref = domain.NewEpisodeRef(e.ID, e.Season, e.Episode)
	case "season":
		ref = domain.NewSeasonRef(e.ID, e.Season)
	case "series":
		ref = domain.NewSeriesRef(e.ID)
	default:
		return ref, fmt.Errorf("unknown kind %q", e.Kind)
	}
	return ref, ref.Validate()
}
