package attendees

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/response"
)

// Handler handles attendee HTTP endpoints. Routes are mounted behind the
// webinar ownership middleware.
type Handler struct {
	store   Store
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an attendee handler.
func NewHandler(store Store, service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, service: service, logger: logger}
}

// ListByWebinar handles GET /webinars/:id/attendees?tier=hot-lead.
func (h *Handler) ListByWebinar(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var tier *models.Tier
	if s := c.Query("tier"); s != "" {
		t, err := models.ParseTier(s)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		tier = &t
	}
	list, err := h.store.ListByWebinar(c.Request.Context(), webinarID, tier)
	if err != nil {
		h.logger.Error("list attendees", zap.Error(err))
		response.Internal(c, "failed to list attendees")
		return
	}
	if list == nil {
		list = []models.Attendee{}
	}
	response.OK(c, list)
}

// Export handles GET /webinars/:id/attendees/export.
func (h *Handler) Export(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	list, err := h.store.ListByWebinar(c.Request.Context(), webinarID, nil)
	if err != nil {
		response.Internal(c, "failed to list attendees")
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendees-%s.csv"`, webinarID))
	if err := WriteCSV(c.Writer, list); err != nil {
		h.logger.Error("write attendee export", zap.Error(err))
	}
}

// Rescore handles POST /webinars/:id/rescore.
func (h *Handler) Rescore(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	res, err := h.service.Rescore(c.Request.Context(), webinarID)
	if err != nil {
		h.logger.Error("rescore", zap.Error(err))
		response.Internal(c, "failed to rescore attendees")
		return
	}
	response.OK(c, res)
}
