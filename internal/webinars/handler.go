package webinars

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/webinarwins/backend/internal/middleware"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/response"
	"github.com/webinarwins/backend/pkg/storage"
)

// Upload form fields.
const (
	FieldAttendanceCSV = "attendance_csv"
	FieldChatCSV       = "chat_csv"
)

// DefaultMaxUploadBytes caps each uploaded CSV file.
const DefaultMaxUploadBytes = 20 << 20

// UpdateRequest is the body for PATCH /webinars/:id. Omitted fields keep their value.
type UpdateRequest struct {
	Title                 *string  `json:"title"`
	Topic                 *string  `json:"topic"`
	OfferName             *string  `json:"offer_name"`
	OfferDescription      *string  `json:"offer_description"`
	Price                 *float64 `json:"price"`
	ClearPrice            bool     `json:"clear_price"`
	Deadline              *string  `json:"deadline"`
	ReplayURL             *string  `json:"replay_url"`
	NoShowTemplateSubject *string  `json:"no_show_template_subject"`
	NoShowTemplateBody    *string  `json:"no_show_template_body"`
}

// Detail is the response for GET /webinars/:id.
type Detail struct {
	Webinar *models.Webinar      `json:"webinar"`
	Stats   *models.WebinarStats `json:"stats"`
}

// Handler handles webinar HTTP endpoints.
type Handler struct {
	store          Store
	service        *Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a webinar handler. maxUploadBytes <= 0 uses DefaultMaxUploadBytes.
func NewHandler(store Store, service *Service, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{store: store, service: service, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Create handles POST /webinars (multipart form with both CSV exports).
func (h *Handler) Create(c *gin.Context) {
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		response.BadRequest(c, "title is required")
		return
	}
	price, err := parsePrice(c.PostForm("price"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	attendance, err := h.readCSV(c, FieldAttendanceCSV)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	chat, err := h.readCSV(c, FieldChatCSV)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	w := &models.Webinar{
		UserID: middleware.UserID(c),
		Title:  title,
		Topic:  strings.TrimSpace(c.PostForm("topic")),
		Offer: models.Offer{
			Name:        strings.TrimSpace(c.PostForm("offer_name")),
			Description: strings.TrimSpace(c.PostForm("offer_description")),
			Price:       price,
			Deadline:    strings.TrimSpace(c.PostForm("deadline")),
			ReplayURL:   strings.TrimSpace(c.PostForm("replay_url")),
		},
	}
	subject, body := c.PostForm("no_show_template_subject"), c.PostForm("no_show_template_body")
	if subject != "" || body != "" {
		w.NoShowTemplate = &models.EmailTemplate{Subject: subject, Body: body}
	}

	res, err := h.service.Ingest(c.Request.Context(), w, attendance, chat)
	if err != nil {
		if errors.Is(err, ErrInvalidUpload) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("create webinar", zap.Error(err))
		response.Internal(c, "failed to create webinar")
		return
	}
	response.Created(c, res)
}

func (h *Handler) readCSV(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file is required", field)
	}
	if !isCSV(fh) {
		return nil, fmt.Errorf("%s must be a .csv file", field)
	}
	if fh.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d MB", field, h.maxUploadBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", field, err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d MB", field, h.maxUploadBytes>>20)
	}
	return data, nil
}

func isCSV(fh *multipart.FileHeader) bool {
	if strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		return true
	}
	ct := strings.ToLower(fh.Header.Get("Content-Type"))
	return strings.HasPrefix(ct, "text/csv") || strings.HasPrefix(ct, "application/csv")
}

func parsePrice(s string) (*float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &v, nil
}

// List handles GET /webinars.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list webinars", zap.Error(err))
		response.Internal(c, "failed to list webinars")
		return
	}
	if list == nil {
		list = []models.Webinar{}
	}
	response.OK(c, list)
}

// Get handles GET /webinars/:id.
func (h *Handler) Get(c *gin.Context) {
	w := middleware.Webinar(c)
	stats, err := h.store.Stats(c.Request.Context(), w.ID)
	if err != nil {
		h.logger.Error("webinar stats", zap.String("webinar_id", w.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load webinar stats")
		return
	}
	response.OK(c, Detail{Webinar: w, Stats: stats})
}

// Update handles PATCH /webinars/:id.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w := *middleware.Webinar(c)
	if err := req.apply(&w); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Update(c.Request.Context(), &w); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "webinar not found")
			return
		}
		h.logger.Error("update webinar", zap.Error(err))
		response.Internal(c, "failed to update webinar")
		return
	}
	response.OK(c, &w)
}

func (r UpdateRequest) apply(w *models.Webinar) error {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return errors.New("title cannot be empty")
		}
		w.Title = t
	}
	setString(&w.Topic, r.Topic)
	setString(&w.Offer.Name, r.OfferName)
	setString(&w.Offer.Description, r.OfferDescription)
	setString(&w.Offer.Deadline, r.Deadline)
	setString(&w.Offer.ReplayURL, r.ReplayURL)
	switch {
	case r.ClearPrice:
		w.Offer.Price = nil
	case r.Price != nil:
		if *r.Price < 0 {
			return errors.New("price cannot be negative")
		}
		p := *r.Price
		w.Offer.Price = &p
	}
	if r.NoShowTemplateSubject != nil || r.NoShowTemplateBody != nil {
		t := models.EmailTemplate{}
		if w.NoShowTemplate != nil {
			t = *w.NoShowTemplate
		}
		setString(&t.Subject, r.NoShowTemplateSubject)
		setString(&t.Body, r.NoShowTemplateBody)
		w.NoShowTemplate = &t
		if t.Subject == "" && t.Body == "" {
			w.NoShowTemplate = nil
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Delete handles DELETE /webinars/:id.
func (h *Handler) Delete(c *gin.Context) {
	w := middleware.Webinar(c)
	if err := h.service.Delete(c.Request.Context(), w.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "webinar not found")
			return
		}
		h.logger.Error("delete webinar", zap.Error(err))
		response.Internal(c, "failed to delete webinar")
		return
	}
	response.NoContent(c)
}

// UploadURL handles GET /webinars/:id/uploads/:kind.
func (h *Handler) UploadURL(c *gin.Context) {
	w := middleware.Webinar(c)
	url, err := h.service.UploadURL(c.Request.Context(), w.ID, c.Param("kind"))
	switch {
	case errors.Is(err, storage.ErrUnknownKind):
		response.BadRequest(c, "kind must be attendance or chat")
	case errors.Is(err, ErrArchiveDisabled):
		response.ServiceUnavailable(c, err.Error())
	case err != nil:
		h.logger.Error("presign upload", zap.Error(err))
		response.Internal(c, "failed to create download link")
	default:
		response.OK(c, gin.H{"url": url})
	}
}
