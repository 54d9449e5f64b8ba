package server

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/memovox/errors"
	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/segment"
	"github.com/skillsenselab/memovox/store"
	"github.com/skillsenselab/memovox/transcription"
)

// Scheduler is the queue surface the API uses. *queue.Queue implements it.
type Scheduler interface {
	Enqueue(id string) bool
	Reschedule(ctx context.Context, id string) error
	RescheduleAllFailed(ctx context.Context) (int64, error)
}

// Handlers holds the API route handlers and their dependencies.
type Handlers struct {
	store       store.Store
	queue       Scheduler
	recognizer  transcription.Recognizer
	mergeTarget float64
	log         *logger.Logger
}

// NewHandlers creates the API handlers. mergeTarget is the target merged
// segment length in seconds for transcript reads; zero selects the default.
func NewHandlers(st store.Store, q Scheduler, rec transcription.Recognizer, mergeTarget float64, log *logger.Logger) *Handlers {
	return &Handlers{store: st, queue: q, recognizer: rec, mergeTarget: mergeTarget, log: log.WithComponent("api")}
}

// Register mounts all routes on the engine.
func (h *Handlers) Register(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.POST("/recordings", h.createRecording)
	api.GET("/recordings", h.listRecordings)
	api.GET("/recordings/:id", h.getRecording)
	api.GET("/recordings/:id/segments", h.getSegments)
	api.POST("/recordings/:id/transcribe", h.transcribeRecording)
	api.POST("/recordings/:id/reschedule", h.rescheduleRecording)
	api.POST("/recordings/reschedule-failed", h.rescheduleFailed)
}

func (h *Handlers) health(c *gin.Context) {
	RespondOK(c, gin.H{
		"status":     "ok",
		"recognizer": h.recognizer.IsAvailable(c.Request.Context()),
	})
}

type createRecordingRequest struct {
	FilePath string `json:"file_path" binding:"required"`
}

// createRecording registers an uploaded audio file and queues it for
// transcription.
func (h *Handlers) createRecording(c *gin.Context) {
	var req createRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput(err.Error()))
		return
	}

	rec := &store.Recording{FilePath: req.FilePath, Status: store.StatusPending}
	if err := h.store.Create(c.Request.Context(), rec); err != nil {
		RespondWithError(c, err)
		return
	}
	h.queue.Enqueue(rec.ID)
	h.log.Info("recording created", logger.Fields(logger.FieldRecording, rec.ID))
	RespondCreated(c, recordingView(rec))
}

func (h *Handlers) listRecordings(c *gin.Context) {
	recs, err := h.store.List(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	views := make([]gin.H, 0, len(recs))
	for i := range recs {
		views = append(views, recordingView(&recs[i]))
	}
	RespondOK(c, views)
}

func (h *Handlers) getRecording(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, mapStoreErr(err, id))
		return
	}
	view := recordingView(rec)
	if rec.Transcription != nil {
		view["transcription"] = *rec.Transcription
	}
	RespondOK(c, view)
}

// getSegments returns the display-ready transcript segments for a
// recording, resolved from the best available stored representation.
func (h *Handlers) getSegments(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, mapStoreErr(err, id))
		return
	}
	segments := segment.Resolve(segment.Stored{
		RevisedSegments: rec.RevisedSegments,
		WhisperData:     rec.WhisperData,
		Transcription:   rec.Transcription,
		Duration:        rec.Duration,
	}, h.mergeTarget)
	if segments == nil {
		segments = []transcription.RevisedSegment{}
	}
	RespondOK(c, gin.H{"segments": segments})
}

func (h *Handlers) transcribeRecording(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.Get(c.Request.Context(), id); err != nil {
		RespondWithError(c, mapStoreErr(err, id))
		return
	}
	queued := h.queue.Enqueue(id)
	RespondAccepted(c, gin.H{"queued": queued})
}

func (h *Handlers) rescheduleRecording(c *gin.Context) {
	id := c.Param("id")
	if err := h.queue.Reschedule(c.Request.Context(), id); err != nil {
		RespondWithError(c, mapStoreErr(err, id))
		return
	}
	RespondAccepted(c, gin.H{"id": id})
}

func (h *Handlers) rescheduleFailed(c *gin.Context) {
	count, err := h.queue.RescheduleAllFailed(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{"count": count})
}

func recordingView(rec *store.Recording) gin.H {
	view := gin.H{
		"id":         rec.ID,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"file_path":  rec.FilePath,
		"status":     rec.Status,
		"progress":   rec.TranscriptionProgress,
	}
	if rec.Duration != nil {
		view["duration"] = *rec.Duration
	}
	if rec.TranscriptionError != nil {
		view["error"] = *rec.TranscriptionError
	}
	return view
}

func mapStoreErr(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("recording", id)
	}
	return err
}
