package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-blueprint/internal/domain/entity"
	apperrors "z-novel-blueprint/pkg/errors"
)

type fakePublisher struct {
	published []*entity.BlueprintJob
	err       error
}

func (p *fakePublisher) PublishBlueprintJob(_ context.Context, job *entity.BlueprintJob) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if job.ID == "" {
		job.ID = "job-1"
	}
	p.published = append(p.published, job)
	return "1-0", nil
}

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]entity.BlueprintJob
}

func (r *memJobRepo) Save(_ context.Context, job *entity.BlueprintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs == nil {
		r.jobs = make(map[string]entity.BlueprintJob)
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *memJobRepo) Get(_ context.Context, id string) (*entity.BlueprintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func newJobEngine(h *JobHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.POST("/v1/novels/:nid/jobs", h.CreateJob)
	e.GET("/v1/jobs/:id", h.GetJob)
	return e
}

func serve(e *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestJobHandler_CreateAndGet(t *testing.T) {
	pub := &fakePublisher{}
	repo := &memJobRepo{}
	e := newJobEngine(NewJobHandler(pub, repo))

	w := serve(e, http.MethodPost, "/v1/novels/n1/jobs", `{"start":1,"end":10,"total_chapters":100,"fill":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pub.published, 1)
	job := pub.published[0]
	assert.Equal(t, entity.JobTypeBlueprintRange, job.Type)
	assert.Equal(t, "n1", job.NovelID)
	assert.Equal(t, "fill", job.Mode)
	assert.Contains(t, w.Body.String(), `"stream_id":"1-0"`)

	w = serve(e, http.MethodGet, "/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	w = serve(e, http.MethodGet, "/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobHandler_ResumeJob(t *testing.T) {
	pub := &fakePublisher{}
	e := newJobEngine(NewJobHandler(pub, &memJobRepo{}))

	w := serve(e, http.MethodPost, "/v1/novels/n1/jobs", `{"total_chapters":50}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pub.published, 1)
	assert.Equal(t, entity.JobTypeBlueprintResume, pub.published[0].Type)
	assert.Equal(t, 50, pub.published[0].TotalChapters)
}

func TestJobHandler_Errors(t *testing.T) {
	e := newJobEngine(NewJobHandler(nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodGet, "/v1/jobs/x", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodPost, "/v1/novels/n1/jobs", `{"start":1,"end":2}`).Code)

	pub := &fakePublisher{err: apperrors.ErrQueue.WithError(errors.New("connection refused"))}
	e = newJobEngine(NewJobHandler(pub, &memJobRepo{}))
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodPost, "/v1/novels/n1/jobs", `{"start":1,"end":2}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodPost, "/v1/novels/n1/jobs", `{"start":3,"end":2}`).Code)
}
