package server

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsenselab/workshopkit/checklist"
	apperrors "github.com/skillsenselab/workshopkit/errors"
	"github.com/skillsenselab/workshopkit/logger"
	"github.com/skillsenselab/workshopkit/session"
	"github.com/skillsenselab/workshopkit/sse"
	"github.com/skillsenselab/workshopkit/storage"
)

// API exposes answer sessions over HTTP.
type API struct {
	manager *session.Manager
	hub     *sse.Hub
	store   storage.Storage
	log     *logger.Logger
}

// NewAPI creates the HTTP API over the given session manager, SSE hub,
// and the object store holding segment audio.
func NewAPI(manager *session.Manager, hub *sse.Hub, store storage.Storage, log *logger.Logger) *API {
	return &API{
		manager: manager,
		hub:     hub,
		store:   store,
		log:     log.WithComponent("api"),
	}
}

// Register mounts all answer-session routes under /api.
func (a *API) Register(r gin.IRouter) {
	api := r.Group("/api")

	api.POST("/answers", a.openAnswer)
	api.GET("/answers", a.listAnswers)
	api.DELETE("/answers/:id", a.closeAnswer)

	api.POST("/answers/:id/recording/start", a.startRecording)
	api.POST("/answers/:id/recording/stop", a.stopRecording)
	api.POST("/answers/:id/analyze", a.analyze)
	api.POST("/answers/:id/segments/:index/retry", a.retrySegment)

	api.GET("/answers/:id/segments", a.segments)
	api.GET("/answers/:id/snapshot", a.snapshot)
	api.GET("/answers/:id/progress", a.progress)
	api.GET("/answers/:id/recordings", a.recordings)

	api.GET("/events/:id", a.events)
}

// EventBridge returns an EventSink that fans pipeline events out to
// every SSE client watching the event's answer.
func EventBridge(b sse.Broadcaster, log *logger.Logger) session.EventSink {
	blog := log.WithComponent("event-bridge")
	return func(e session.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			blog.Error("marshaling event", logger.ErrorFields("broadcast", err))
			return
		}
		pattern := sse.AllAnswersPattern
		if e.AnswerID != "" {
			pattern = sse.AnswerPattern(e.AnswerID)
		}
		b.BroadcastToPattern(pattern, data)
	}
}

// openAnswerRequest is the body for POST /api/answers.
type openAnswerRequest struct {
	QuestionID             string            `json:"question_id"`
	Version                int               `json:"version"`
	Entries                []checklist.Entry `json:"entries"`
	Respondent             string            `json:"respondent"`
	SegmentDurationSeconds int               `json:"segment_duration_seconds"`
}

type openAnswerResponse struct {
	AnswerID  string        `json:"answer_id"`
	SessionID string        `json:"session_id"`
	State     session.State `json:"state"`
}

func (a *API) openAnswer(c *gin.Context) {
	var req openAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	def := &checklist.Definition{
		QuestionID: req.QuestionID,
		Version:    req.Version,
		Entries:    req.Entries,
	}

	ctrl, err := a.manager.Open(c.Request.Context(), def, req.Respondent)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	if req.SegmentDurationSeconds > 0 {
		d := time.Duration(req.SegmentDurationSeconds) * time.Second
		if err := ctrl.SetSegmentDuration(d); err != nil {
			RespondWithError(c, err)
			return
		}
	}

	RespondCreated(c, openAnswerResponse{
		AnswerID:  ctrl.AnswerID(),
		SessionID: ctrl.SessionID(),
		State:     ctrl.State(),
	})
}

func (a *API) listAnswers(c *gin.Context) {
	RespondOK(c, gin.H{"answer_ids": a.manager.AnswerIDs()})
}

func (a *API) closeAnswer(c *gin.Context) {
	if err := a.manager.Close(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (a *API) controller(c *gin.Context) (*session.Controller, bool) {
	ctrl, err := a.manager.Get(c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (a *API) startRecording(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	if err := ctrl.StartRecording(c.Request.Context()); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"state": ctrl.State()})
}

func (a *API) stopRecording(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	if err := ctrl.StopRecording(c.Request.Context()); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"state": ctrl.State()})
}

func (a *API) analyze(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	snap, err := ctrl.Analyze(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, snap)
}

func (a *API) retrySegment(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	var req struct {
		ID    string `uri:"id"`
		Index int    `uri:"index"`
	}
	if err := c.ShouldBindUri(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("index", "must be a segment index"))
		return
	}
	if err := ctrl.RetrySegment(c.Request.Context(), req.Index); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"segment_index": req.Index})
}

func (a *API) segments(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	RespondOK(c, ctrl.Segments())
}

func (a *API) snapshot(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	snap, err := ctrl.Snapshot(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	// snap is nil before the first merge; the envelope carries null.
	RespondOK(c, snap)
}

func (a *API) progress(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	p, err := ctrl.Progress(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, p)
}

// recordingObject is one stored segment audio file.
type recordingObject struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// recordings lists the stored audio of an answer's recording session
// with retrieval links, so a facilitator can replay or download it.
func (a *API) recordings(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	objects, err := a.store.List(ctx, storage.SessionPrefix(ctrl.SessionID()))
	if err != nil {
		RespondWithError(c, apperrors.Internal(err))
		return
	}

	out := make([]recordingObject, 0, len(objects))
	for _, obj := range objects {
		url, err := a.store.URL(ctx, obj.Path)
		if err != nil {
			RespondWithError(c, apperrors.Internal(err))
			return
		}
		out = append(out, recordingObject{Path: obj.Path, Size: obj.Size, URL: url})
	}
	RespondOK(c, out)
}

// events attaches the caller to the SSE stream for one answer.
func (a *API) events(c *gin.Context) {
	answerID := c.Param("id")
	if _, err := a.manager.Get(answerID); err != nil {
		RespondWithError(c, err)
		return
	}
	clientID := sse.ClientID(answerID, uuid.NewString())
	sse.ServeSSE(a.hub, c.Writer, c.Request, clientID, sse.WithAnswerID(answerID))
}
