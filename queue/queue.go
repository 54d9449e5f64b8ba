// Package queue runs the background transcription pipeline. A single worker
// goroutine drains an in-process FIFO of recording IDs, taking each recording
// from PENDING through conversion, streaming recognition, and punctuation
// revision to a terminal COMPLETED or FAILED status.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/observability"
	"github.com/skillsenselab/memovox/revise"
	"github.com/skillsenselab/memovox/store"
	"github.com/skillsenselab/memovox/transcription"
)

// AudioConverter prepares audio for recognition. *media.Converter
// implements it.
type AudioConverter interface {
	ToRecognitionFormat(ctx context.Context, audioPath string) (string, error)
	ProbeDuration(ctx context.Context, audioPath string) float64
}

// Config holds pipeline settings.
type Config struct {
	// Language is the recognition language hint.
	Language string
	// InitialPrompt biases the recognizer toward domain vocabulary.
	InitialPrompt string
	// RecoverProcessing resets recordings left in PROCESSING by a previous
	// run back to PENDING during Initialize, so they are picked up again.
	// When false such recordings stay stuck until rescheduled explicitly.
	RecoverProcessing bool
	// ProgressInterval is the minimum gap between persisted progress
	// updates. Terminal progress is always written.
	ProgressInterval time.Duration
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = 500 * time.Millisecond
	}
}

// Queue is the transcription job queue. All dependencies are injected; the
// zero value is not usable, construct with New.
type Queue struct {
	store      store.Store
	recognizer transcription.Recognizer
	reviser    *revise.Reviser
	converter  AudioConverter
	log        *logger.Logger
	metrics    *observability.PipelineMetrics
	cfg        Config

	mu      sync.Mutex
	pending []string
	queued  map[string]struct{}
	inited  bool

	// wake has capacity 1; Enqueue nudges it so an idle worker re-checks
	// the pending list.
	wake chan struct{}
	done chan struct{}
}

// New creates a queue. The reviser and metrics may be nil; revision and
// instrument recording are skipped respectively.
func New(st store.Store, rec transcription.Recognizer, rev *revise.Reviser, conv AudioConverter, log *logger.Logger, metrics *observability.PipelineMetrics, cfg Config) *Queue {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Global()
	}
	return &Queue{
		store:      st,
		recognizer: rec,
		reviser:    rev,
		converter:  conv,
		log:        log.WithComponent("queue"),
		metrics:    metrics,
		cfg:        cfg,
		queued:     make(map[string]struct{}),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start launches the worker goroutine. It returns immediately; the worker
// runs until ctx is canceled. Start must be called at most once.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

// Wait blocks until the worker goroutine has exited after ctx cancellation.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		id, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		q.process(ctx, id)
		q.finish(id)
		if ctx.Err() != nil {
			return
		}
	}
}

// Enqueue adds a recording to the queue. Returns false when the recording is
// already queued or currently being processed.
func (q *Queue) Enqueue(id string) bool {
	q.mu.Lock()
	if _, dup := q.queued[id]; dup {
		q.mu.Unlock()
		return false
	}
	q.queued[id] = struct{}{}
	q.pending = append(q.pending, id)
	q.mu.Unlock()

	q.metrics.AddQueueDepth(context.Background(), 1)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of recordings waiting, excluding the one currently
// being processed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// next pops the oldest pending ID. The ID stays in the dedup set until
// finish so re-enqueues during processing are ignored.
func (q *Queue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	return id, true
}

func (q *Queue) finish(id string) {
	q.mu.Lock()
	delete(q.queued, id)
	q.mu.Unlock()
	q.metrics.AddQueueDepth(context.Background(), -1)
}

// Initialize prepares the queue at startup: optionally recovers recordings
// stuck in PROCESSING, then enqueues everything PENDING. It is idempotent.
func (q *Queue) Initialize(ctx context.Context) error {
	q.mu.Lock()
	if q.inited {
		q.mu.Unlock()
		return nil
	}
	q.inited = true
	q.mu.Unlock()

	if q.cfg.RecoverProcessing {
		n, err := q.store.ResetToPending(ctx, store.StatusProcessing)
		if err != nil {
			return err
		}
		if n > 0 {
			q.log.Info("recovered recordings stuck in processing", logger.Fields("count", n))
		}
	}

	n, err := q.Rescan(ctx)
	if err != nil {
		return err
	}
	q.log.Info("queue initialized", logger.Fields("pending", n))
	return nil
}

// Rescan enqueues every PENDING recording and returns how many were newly
// added to the queue.
func (q *Queue) Rescan(ctx context.Context) (int, error) {
	recs, err := q.store.FindByStatus(ctx, store.StatusPending)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, rec := range recs {
		if q.Enqueue(rec.ID) {
			added++
		}
	}
	return added, nil
}

// Reschedule flips one recording back to PENDING, clearing its previous
// error and progress, and enqueues it. FAILED, COMPLETED, and stuck
// PROCESSING recordings can all be rescheduled.
func (q *Queue) Reschedule(ctx context.Context, id string) error {
	rec, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := q.store.Update(ctx, id, store.Fields{
		store.ColStatus:   store.StatusPending,
		store.ColProgress: 0,
		store.ColError:    nil,
	}); err != nil {
		return err
	}
	q.log.Info("recording rescheduled", logger.Fields(
		logger.FieldRecording, id,
		"previous_status", string(rec.Status),
	))
	q.Enqueue(id)
	return nil
}

// RescheduleAllFailed flips every FAILED recording back to PENDING and
// enqueues them. Returns the number of recordings rescheduled.
func (q *Queue) RescheduleAllFailed(ctx context.Context) (int64, error) {
	n, err := q.store.ResetToPending(ctx, store.StatusFailed)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := q.Rescan(ctx); err != nil {
			return n, err
		}
		q.log.Info("failed recordings rescheduled", logger.Fields("count", n))
	}
	return n, nil
}
