package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/store"
	"github.com/skillsenselab/memovox/store/memory"
	"github.com/skillsenselab/memovox/transcription"
)

type fakeScheduler struct {
	enqueued     []string
	rescheduled  []string
	failedCount  int64
	enqueueReply bool
	err          error
}

func (f *fakeScheduler) Enqueue(id string) bool {
	f.enqueued = append(f.enqueued, id)
	return f.enqueueReply
}

func (f *fakeScheduler) Reschedule(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.rescheduled = append(f.rescheduled, id)
	return nil
}

func (f *fakeScheduler) RescheduleAllFailed(_ context.Context) (int64, error) {
	return f.failedCount, f.err
}

type fakeRecognizer struct{ available bool }

func (f *fakeRecognizer) Name() string                     { return "fake" }
func (f *fakeRecognizer) IsAvailable(context.Context) bool { return f.available }

func (f *fakeRecognizer) Transcribe(context.Context, transcription.Request, transcription.Hooks) (*transcription.VerboseResult, error) {
	return nil, nil
}

func newTestServer(t *testing.T, st store.Store, q Scheduler) *gin.Engine {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Output: "stderr"}, "test")
	h := NewHandlers(st, q, &fakeRecognizer{available: true}, 0, log)
	s := New(Config{Mode: "test"}, h, log)
	return s.Engine()
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return envelope.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding error response %q: %v", w.Body.String(), err)
	}
	return envelope.Error.Code
}

func TestHealth(t *testing.T) {
	engine := newTestServer(t, memory.New(), &fakeScheduler{})

	w := doRequest(engine, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	data := decodeData(t, w)
	if data["status"] != "ok" {
		t.Errorf("status field = %v", data["status"])
	}
	if data["recognizer"] != true {
		t.Errorf("recognizer field = %v, want true", data["recognizer"])
	}
}

func TestCreateRecording(t *testing.T) {
	st := memory.New()
	sched := &fakeScheduler{enqueueReply: true}
	engine := newTestServer(t, st, sched)

	w := doRequest(engine, http.MethodPost, "/api/recordings", `{"file_path":"/audio/memo.m4a"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatal("no id in response")
	}
	if len(sched.enqueued) != 1 || sched.enqueued[0] != id {
		t.Errorf("enqueued = %v, want [%s]", sched.enqueued, id)
	}

	rec, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("created recording not in store: %v", err)
	}
	if rec.Status != store.StatusPending {
		t.Errorf("status = %s, want PENDING", rec.Status)
	}
}

func TestCreateRecordingValidation(t *testing.T) {
	engine := newTestServer(t, memory.New(), &fakeScheduler{})

	w := doRequest(engine, http.MethodPost, "/api/recordings", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != "INVALID_INPUT" {
		t.Errorf("error code = %s, want INVALID_INPUT", code)
	}
}

func TestGetRecordingNotFound(t *testing.T) {
	engine := newTestServer(t, memory.New(), &fakeScheduler{})

	w := doRequest(engine, http.MethodGet, "/api/recordings/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if code := errorCode(t, w); code != "NOT_FOUND" {
		t.Errorf("error code = %s, want NOT_FOUND", code)
	}
}

func TestListRecordings(t *testing.T) {
	st := memory.New()
	st.MustCreate(store.Recording{FilePath: "/a"})
	st.MustCreate(store.Recording{FilePath: "/b"})
	engine := newTestServer(t, st, &fakeScheduler{})

	w := doRequest(engine, http.MethodGet, "/api/recordings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if len(envelope.Data) != 2 {
		t.Errorf("listed %d recordings, want 2", len(envelope.Data))
	}
}

func TestGetSegmentsFromRevised(t *testing.T) {
	st := memory.New()
	revised := `{"segments":[{"start":0,"end":2,"words":[{"word":"Hello ","start":0,"end":1},{"word":"world.","start":1,"end":2}]}]}`
	rec := st.MustCreate(store.Recording{FilePath: "/a", Status: store.StatusCompleted, RevisedSegments: &revised})
	engine := newTestServer(t, st, &fakeScheduler{})

	w := doRequest(engine, http.MethodGet, "/api/recordings/"+rec.ID+"/segments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var envelope struct {
		Data struct {
			Segments []transcription.RevisedSegment `json:"segments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if len(envelope.Data.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(envelope.Data.Segments))
	}
	if len(envelope.Data.Segments[0].Words) != 2 {
		t.Errorf("words = %d, want 2", len(envelope.Data.Segments[0].Words))
	}
}

func TestGetSegmentsUsesConfiguredMergeTarget(t *testing.T) {
	st := memory.New()
	revised := `{"segments":[` +
		`{"start":0,"end":2,"words":[{"word":"one.","start":0,"end":2}]},` +
		`{"start":2,"end":4,"words":[{"word":"two.","start":2,"end":4}]},` +
		`{"start":4,"end":6,"words":[{"word":"three.","start":4,"end":6}]}]}`
	rec := st.MustCreate(store.Recording{FilePath: "/a", Status: store.StatusCompleted, RevisedSegments: &revised})

	log := logger.New(&logger.Config{Level: "error", Output: "stderr"}, "test")
	h := NewHandlers(st, &fakeScheduler{}, &fakeRecognizer{available: true}, 3, log)
	engine := New(Config{Mode: "test"}, h, log).Engine()

	w := doRequest(engine, http.MethodGet, "/api/recordings/"+rec.ID+"/segments", "")
	var envelope struct {
		Data struct {
			Segments []transcription.RevisedSegment `json:"segments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if len(envelope.Data.Segments) != 3 {
		t.Errorf("segments = %d, want 3 with a 3s merge target", len(envelope.Data.Segments))
	}
}

func TestGetSegmentsFallsBackToTranscript(t *testing.T) {
	st := memory.New()
	text := "just a plain transcript"
	dur := 12.5
	rec := st.MustCreate(store.Recording{FilePath: "/a", Status: store.StatusCompleted, Transcription: &text, Duration: &dur})
	engine := newTestServer(t, st, &fakeScheduler{})

	w := doRequest(engine, http.MethodGet, "/api/recordings/"+rec.ID+"/segments", "")
	var envelope struct {
		Data struct {
			Segments []transcription.RevisedSegment `json:"segments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	segs := envelope.Data.Segments
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1 synthetic", len(segs))
	}
	if segs[0].End != dur {
		t.Errorf("synthetic segment end = %v, want %v", segs[0].End, dur)
	}
	if len(segs[0].Words) != 1 || segs[0].Words[0].Word != text {
		t.Errorf("synthetic words = %+v", segs[0].Words)
	}
}

func TestGetSegmentsEmpty(t *testing.T) {
	st := memory.New()
	rec := st.MustCreate(store.Recording{FilePath: "/a"})
	engine := newTestServer(t, st, &fakeScheduler{})

	w := doRequest(engine, http.MethodGet, "/api/recordings/"+rec.ID+"/segments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"segments":[]`) {
		t.Errorf("expected empty segments array, got %s", w.Body.String())
	}
}

func TestTranscribeRecording(t *testing.T) {
	st := memory.New()
	rec := st.MustCreate(store.Recording{FilePath: "/a"})
	sched := &fakeScheduler{enqueueReply: true}
	engine := newTestServer(t, st, sched)

	w := doRequest(engine, http.MethodPost, "/api/recordings/"+rec.ID+"/transcribe", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	data := decodeData(t, w)
	if data["queued"] != true {
		t.Errorf("queued = %v, want true", data["queued"])
	}

	w = doRequest(engine, http.MethodPost, "/api/recordings/missing/transcribe", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status for missing = %d, want 404", w.Code)
	}
}

func TestRescheduleFailed(t *testing.T) {
	sched := &fakeScheduler{failedCount: 3}
	engine := newTestServer(t, memory.New(), sched)

	w := doRequest(engine, http.MethodPost, "/api/recordings/reschedule-failed", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	data := decodeData(t, w)
	if data["count"] != float64(3) {
		t.Errorf("count = %v, want 3", data["count"])
	}
}
