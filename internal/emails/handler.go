package emails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webinarwins/backend/internal/middleware"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/queue"
	"github.com/webinarwins/backend/pkg/response"
)

// Jobs enqueues generation runs and reports their status.
type Jobs interface {
	EnqueueGeneration(ctx context.Context, payload queue.GenerationPayload) (string, error)
	GetStatus(ctx context.Context, id string) (*queue.Status, error)
}

// Handler handles generated email HTTP endpoints. Webinar-scoped routes are
// mounted behind the webinar ownership middleware.
type Handler struct {
	store        Store
	orchestrator *Orchestrator
	sender       *Sender
	jobs         Jobs
	logger       *zap.Logger
}

// NewHandler creates an email handler. A nil jobs disables async generation.
func NewHandler(store Store, orchestrator *Orchestrator, sender *Sender, jobs Jobs, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, orchestrator: orchestrator, sender: sender, jobs: jobs, logger: logger}
}

// UpdateRequest is the body for PATCH /emails/:id.
type UpdateRequest struct {
	Subject   *string `json:"subject_line"`
	Body      *string `json:"email_body"`
	UserNotes *string `json:"user_notes"`
}

// JobAccepted is returned when generation is queued.
type JobAccepted struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

func parseGenerateRequest(c *gin.Context) (GenerateRequest, error) {
	var req GenerateRequest
	if s := c.Query("tier"); s != "" {
		t, err := models.ParseTier(s)
		if err != nil {
			return req, err
		}
		req.Tier = &t
	}
	if s := c.Query("regenerate"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return req, fmt.Errorf("invalid regenerate value %q", s)
		}
		req.Regenerate = v
	}
	return req, nil
}

// Generate handles POST /webinars/:id/emails/generate?tier=&regenerate=&async=.
func (h *Handler) Generate(c *gin.Context) {
	w := middleware.Webinar(c)
	req, err := parseGenerateRequest(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.jobs == nil {
			response.ServiceUnavailable(c, "async generation is not available")
			return
		}
		payload := queue.GenerationPayload{UserID: middleware.UserID(c), WebinarID: w.ID, Regenerate: req.Regenerate}
		if req.Tier != nil {
			payload.Tier = req.Tier.String()
		}
		id, err := h.jobs.EnqueueGeneration(c.Request.Context(), payload)
		if err != nil {
			h.logger.Error("enqueue generation", zap.Error(err))
			response.Internal(c, "failed to queue generation")
			return
		}
		response.Accepted(c, JobAccepted{JobID: id, StatusURL: "/api/v1/generation-jobs/" + id})
		return
	}

	report, err := h.orchestrator.Generate(c.Request.Context(), w, req)
	if err != nil {
		h.writeError(c, "generate emails", err)
		return
	}
	response.OK(c, report)
}

// List handles GET /webinars/:id/emails.
func (h *Handler) List(c *gin.Context) {
	w := middleware.Webinar(c)
	list, err := h.store.ListByWebinar(c.Request.Context(), w.ID)
	if err != nil {
		h.writeError(c, "list emails", err)
		return
	}
	if list == nil {
		list = []models.EmailWithRecipient{}
	}
	response.OK(c, list)
}

// Export handles GET /webinars/:id/emails/export.
func (h *Handler) Export(c *gin.Context) {
	w := middleware.Webinar(c)
	list, err := h.store.ListByWebinar(c.Request.Context(), w.ID)
	if err != nil {
		h.writeError(c, "list emails", err)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="emails-%s.csv"`, w.ID))
	if err := WriteCSV(c.Writer, list); err != nil {
		h.logger.Error("write email export", zap.Error(err))
	}
}

// SendNoShowTemplate handles POST /webinars/:id/emails/send-no-show-template.
func (h *Handler) SendNoShowTemplate(c *gin.Context) {
	report, err := h.sender.BulkSendNoShowTemplate(c.Request.Context(), middleware.Webinar(c))
	if err != nil {
		h.writeError(c, "send no-show template", err)
		return
	}
	response.OK(c, report)
}

// Update handles PATCH /emails/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid email id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Subject != nil && *req.Subject == "" || req.Body != nil && *req.Body == "" {
		response.BadRequest(c, "subject and body cannot be empty")
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	if _, err := h.store.GetForOwner(ctx, id, userID); err != nil {
		h.writeError(c, "load email", err)
		return
	}
	if err := h.store.UpdateContent(ctx, id, req.Subject, req.Body, req.UserNotes); err != nil {
		h.writeError(c, "update email", err)
		return
	}
	e, err := h.store.GetForOwner(ctx, id, userID)
	if err != nil {
		h.writeError(c, "load email", err)
		return
	}
	response.OK(c, e)
}

// Send handles POST /emails/:id/send with an optional override body.
func (h *Handler) Send(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid email id")
		return
	}
	var override *SendOverride
	if c.Request.ContentLength != 0 {
		override = &SendOverride{}
		if err := c.ShouldBindJSON(override); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	res, err := h.sender.Send(c.Request.Context(), middleware.UserID(c), id, override)
	if err != nil {
		h.writeError(c, "send email", err)
		return
	}
	response.OK(c, res)
}

// JobStatus handles GET /generation-jobs/:id.
func (h *Handler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "async generation is not available")
		return
	}
	st, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil || st.OwnerID != middleware.UserID(c) {
		if err != nil && !errors.Is(err, queue.ErrJobNotFound) {
			h.logger.Error("load job status", zap.Error(err))
			response.Internal(c, "failed to load job")
			return
		}
		response.NotFound(c, "job not found")
		return
	}
	out := struct {
		*queue.Status
		Report *Report `json:"report,omitempty"`
	}{Status: st}
	if len(st.Result) > 0 {
		var r Report
		if err := json.Unmarshal(st.Result, &r); err == nil {
			out.Report = &r
			out.Status.Result = nil
		}
	}
	response.OK(c, out)
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "email not found")
	case errors.Is(err, ErrAlreadySent):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNoTemplate):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrOracleNotConfigured), errors.Is(err, ErrChannelNotConfigured):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error(op, zap.Error(err))
		if op == "send email" {
			response.BadGateway(c, "failed to deliver email")
			return
		}
		response.Internal(c, "failed to "+op)
	}
}
