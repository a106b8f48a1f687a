package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webinarwins/backend/internal/middleware"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/queue"
)

type fakeJobs struct {
	payload queue.GenerationPayload
	status  *queue.Status
}

func (f *fakeJobs) EnqueueGeneration(_ context.Context, p queue.GenerationPayload) (string, error) {
	f.payload = p
	return "job-1", nil
}

func (f *fakeJobs) GetStatus(_ context.Context, id string) (*queue.Status, error) {
	if f.status == nil || f.status.ID != id {
		return nil, queue.ErrJobNotFound
	}
	return f.status, nil
}

type harness struct {
	router *gin.Engine
	store  *memStore
	jobs   *fakeJobs
	owner  uuid.UUID
	list   []models.Attendee
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	owner := uuid.New()
	w := testWebinar(owner)
	list := mixedAttendees()
	store := newMemStore(owner, w.ID, list)
	src := &fakeAttendees{list: list}
	orch := NewOrchestrator(store, src, NewGenerator(echoOracle(nil), testConfig(), nil), 5, 0, nil)
	sender := newTestSender(store, src, &fakeChannel{})
	jobs := &fakeJobs{}
	h := NewHandler(store, orch, sender, jobs, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, owner)
		c.Set(middleware.ContextWebinar, w)
	})
	r.POST("/webinars/:id/emails/generate", h.Generate)
	r.GET("/webinars/:id/emails", h.List)
	r.GET("/webinars/:id/emails/export", h.Export)
	r.PATCH("/emails/:id", h.Update)
	r.POST("/emails/:id/send", h.Send)
	r.GET("/generation-jobs/:id", h.JobStatus)
	return &harness{router: r, store: store, jobs: jobs, owner: owner, list: list}
}

func (h *harness) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestHandlerGenerateAndList(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/webinars/x/emails/generate?tier=warm-lead", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Generated)
	assert.Equal(t, StatusCompleted, body.Data.Status)

	w = h.do(http.MethodPost, "/webinars/x/emails/generate?tier=lukewarm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/webinars/x/emails/export", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Name,Email,Engagement Tier")
}

func TestHandlerAsyncGenerate(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/webinars/x/emails/generate?async=true&regenerate=true&tier=hot", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, h.owner, h.jobs.payload.UserID)
	assert.Equal(t, "Hot Lead", h.jobs.payload.Tier)
	assert.True(t, h.jobs.payload.Regenerate)

	h.jobs.status = &queue.Status{ID: "job-1", State: queue.StateCompleted, OwnerID: h.owner,
		Result: json.RawMessage(`{"status":"completed","generated":2}`)}
	w = h.do(http.MethodGet, "/generation-jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"generated":2`)

	h.jobs.status.OwnerID = uuid.New()
	w = h.do(http.MethodGet, "/generation-jobs/job-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerUpdateAndSend(t *testing.T) {
	h := newHarness(t)
	e := seededEmail(t, h.store, h.list[0])

	subject := "A better subject"
	w := h.do(http.MethodPatch, "/emails/"+e.ID.String(), UpdateRequest{Subject: &subject})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, h.store.emails[h.list[0].ID].UserEdited)
	assert.Equal(t, subject, h.store.emails[h.list[0].ID].Subject)

	w = h.do(http.MethodPost, "/emails/"+e.ID.String()+"/send", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/emails/"+e.ID.String()+"/send", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/emails/"+e.ID.String()+"/send", SendOverride{To: "me@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/emails/"+uuid.NewString()+"/send", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
