package webinars

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/webinarwins/backend/internal/middleware"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/response"
)

// Getter loads one webinar.
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// RequireOwner loads the webinar named by :id and stores it in the context
// when it belongs to the caller. Other users' webinars are reported as not
// found. Call after JWT.
func RequireOwner(webinars Getter) gin.HandlerFunc {
	return func(c *gin.Context) {
		webinarID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid webinar id")
			c.Abort()
			return
		}
		w, err := webinars.GetByID(c.Request.Context(), webinarID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			response.Internal(c, "failed to load webinar")
			c.Abort()
			return
		}
		if w == nil || w.UserID != middleware.UserID(c) {
			response.NotFound(c, "webinar not found")
			c.Abort()
			return
		}
		c.Set(middleware.ContextWebinar, w)
		c.Next()
	}
}
