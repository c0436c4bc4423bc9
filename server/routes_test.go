package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/workshopkit/capture"
	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/logger"
	"github.com/skillsenselab/workshopkit/session"
	"github.com/skillsenselab/workshopkit/sse"
	"github.com/skillsenselab/workshopkit/storage"
	"github.com/skillsenselab/workshopkit/transcription"
)

// --- fakes ---

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStorage) Upload(_ context.Context, path string, r io.Reader) error {
	data, _ := io.ReadAll(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *memStorage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, path string) error { return nil }
func (m *memStorage) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}
func (m *memStorage) URL(_ context.Context, path string) (string, error) {
	return "mem://" + path, nil
}
func (m *memStorage) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Path: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Name() string                       { return "stub" }
func (stubTranscriber) IsAvailable(_ context.Context) bool { return true }
func (stubTranscriber) Transcribe(_ context.Context, req transcription.Request) (*transcription.Response, error) {
	return &transcription.Response{Text: "the budget is ten thousand"}, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, transcript string, _ *checklist.Definition) (checklist.ExtractionResult, error) {
	if transcript == "" {
		return checklist.ExtractionResult{}, nil
	}
	return checklist.ExtractionResult{
		Satisfied: []checklist.SatisfiedEntry{{EntryID: "budget", Confidence: 0.9}},
	}, nil
}

// --- harness ---

type apiHarness struct {
	engine *gin.Engine
	hub    *sse.Hub
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewDefault("test")

	hub := sse.NewHub(log)
	go hub.Run()
	t.Cleanup(hub.Stop)

	answers := session.NewMemoryAnswerStore()
	snapshots := checklist.NewMemoryStore()
	agg := checklist.NewAggregator(snapshots, log, nil)
	store := &memStorage{objects: make(map[string][]byte)}

	worker := session.NewWorker(session.WorkerDeps{
		Storage:     store,
		Transcriber: stubTranscriber{},
		Extractor:   stubExtractor{},
		Answers:     answers,
		Aggregator:  agg,
		Logger:      log,
	})

	manager := session.NewManager(session.ManagerDeps{
		Source: func() capture.Source {
			return &capture.SyntheticSource{TotalDuration: 60 * time.Second, FrameDuration: time.Second}
		},
		Capture:   capture.Config{SegmentDuration: 60 * time.Second},
		Answers:   answers,
		Snapshots: snapshots,
		Worker:    worker,
		Events:    EventBridge(hub, log),
		Logger:    log,
	})

	engine := gin.New()
	NewAPI(manager, hub, store, log).Register(engine)
	return &apiHarness{engine: engine, hub: hub}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) openAnswer(t *testing.T) string {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/answers", openAnswerRequest{
		QuestionID: "q-1",
		Version:    1,
		Entries: []checklist.Entry{
			{ID: "budget", Description: "project budget", Importance: checklist.ImportanceCritical},
			{ID: "timeline", Description: "delivery timeline", Importance: checklist.ImportanceNiceToHave},
		},
		Respondent: "facilitator",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("open answer: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data openAnswerResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding open response: %v", err)
	}
	if resp.Data.AnswerID == "" {
		t.Fatal("open answer returned no answer ID")
	}
	return resp.Data.AnswerID
}

func (h *apiHarness) waitIdleDone(t *testing.T, answerID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := h.do(t, http.MethodGet, "/api/answers/"+answerID+"/progress", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("progress: status %d", w.Code)
		}
		var resp struct {
			Data session.Progress `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding progress: %v", err)
		}
		if resp.Data.State == session.StateIdle && len(resp.Data.Segments) > 0 {
			allSettled := true
			for _, s := range resp.Data.Segments {
				if s.Status != session.StatusDone && s.Status != session.StatusFailed {
					allSettled = false
				}
			}
			if allSettled {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("pipeline never settled")
}

// --- tests ---

func TestAPI_OpenAndList(t *testing.T) {
	h := newAPIHarness(t)
	id := h.openAnswer(t)

	w := h.do(t, http.MethodGet, "/api/answers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), id) {
		t.Errorf("list missing answer %s: %s", id, w.Body.String())
	}
}

func TestAPI_OpenRejectsInvalidDefinition(t *testing.T) {
	h := newAPIHarness(t)

	w := h.do(t, http.MethodPost, "/api/answers", openAnswerRequest{
		QuestionID: "q-1",
		Version:    1,
		// no entries
		Respondent: "facilitator",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400; body %s", w.Code, w.Body.String())
	}
}

func TestAPI_UnknownAnswerIs404(t *testing.T) {
	h := newAPIHarness(t)

	for _, path := range []string{
		"/api/answers/nope/progress",
		"/api/answers/nope/snapshot",
		"/api/answers/nope/segments",
		"/api/events/nope",
	} {
		if w := h.do(t, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s: status %d, want 404", path, w.Code)
		}
	}
	if w := h.do(t, http.MethodPost, "/api/answers/nope/recording/start", nil); w.Code != http.StatusNotFound {
		t.Errorf("start on unknown answer: status %d, want 404", w.Code)
	}
}

func TestAPI_RecordingFlow(t *testing.T) {
	h := newAPIHarness(t)
	id := h.openAnswer(t)

	w := h.do(t, http.MethodPost, "/api/answers/"+id+"/recording/start", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: status %d, body %s", w.Code, w.Body.String())
	}

	h.waitIdleDone(t, id)

	w = h.do(t, http.MethodGet, "/api/answers/"+id+"/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot: status %d", w.Code)
	}
	var snapResp struct {
		Data *checklist.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snapResp); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snapResp.Data == nil || snapResp.Data.Version != 1 {
		t.Fatalf("expected snapshot version 1, got %+v", snapResp.Data)
	}
	ids := snapResp.Data.ObtainedIDs()
	if !ids["budget"] {
		t.Errorf("budget should be obtained, got %v", ids)
	}

	w = h.do(t, http.MethodGet, "/api/answers/"+id+"/segments", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("segments: status %d", w.Code)
	}
	var segResp struct {
		Data []session.SegmentRecord `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &segResp); err != nil {
		t.Fatalf("decoding segments: %v", err)
	}
	if len(segResp.Data) != 1 || segResp.Data[0].Status != session.StatusDone {
		t.Fatalf("expected one done segment, got %+v", segResp.Data)
	}

	// Analyze from idle is allowed and returns the next version.
	w = h.do(t, http.MethodPost, "/api/answers/"+id+"/analyze", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze: status %d, body %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snapResp); err != nil {
		t.Fatalf("decoding analyze snapshot: %v", err)
	}
	if snapResp.Data == nil || snapResp.Data.Version != 2 {
		t.Errorf("expected snapshot version 2 after analyze, got %+v", snapResp.Data)
	}
}

// A finished recording is listed with a retrieval link per stored
// segment.
func TestAPI_Recordings(t *testing.T) {
	h := newAPIHarness(t)
	id := h.openAnswer(t)

	// Nothing stored yet.
	w := h.do(t, http.MethodGet, "/api/answers/"+id+"/recordings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recordings: status %d", w.Code)
	}

	w = h.do(t, http.MethodPost, "/api/answers/"+id+"/recording/start", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: status %d", w.Code)
	}
	h.waitIdleDone(t, id)

	w = h.do(t, http.MethodGet, "/api/answers/"+id+"/recordings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recordings: status %d", w.Code)
	}
	var resp struct {
		Data []recordingObject `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding recordings: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 recording object, got %+v", resp.Data)
	}
	obj := resp.Data[0]
	if !strings.HasSuffix(obj.Path, "0000.wav") || obj.Size == 0 {
		t.Errorf("unexpected recording object %+v", obj)
	}
	if !strings.HasPrefix(obj.URL, "mem://sessions/") {
		t.Errorf("recording url = %q", obj.URL)
	}
}

func TestAPI_StateConflicts(t *testing.T) {
	h := newAPIHarness(t)
	id := h.openAnswer(t)

	// Stop before any recording has started.
	w := h.do(t, http.MethodPost, "/api/answers/"+id+"/recording/stop", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("stop while idle: status %d, want 409", w.Code)
	}

	// Snapshot before any merge is a 200 with null data.
	w = h.do(t, http.MethodGet, "/api/answers/"+id+"/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot: status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"data":null`) {
		t.Errorf("expected null snapshot, got %s", w.Body.String())
	}
}

func TestAPI_RetrySegment(t *testing.T) {
	h := newAPIHarness(t)
	id := h.openAnswer(t)

	// Non-numeric index is rejected before reaching the controller.
	w := h.do(t, http.MethodPost, "/api/answers/"+id+"/segments/abc/retry", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric index: status %d, want 400", w.Code)
	}

	// Unknown segment index.
	w = h.do(t, http.MethodPost, "/api/answers/"+id+"/segments/7/retry", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown segment: status %d, want 404", w.Code)
	}
}

func TestAPI_CloseAnswer(t *testing.T) {
	h := newAPIHarness(t)
	id := h.openAnswer(t)

	w := h.do(t, http.MethodDelete, "/api/answers/"+id, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("close: status %d", w.Code)
	}
	w = h.do(t, http.MethodGet, "/api/answers/"+id+"/progress", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("progress after close: status %d, want 404", w.Code)
	}
}
