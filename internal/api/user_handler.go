package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plansync-backend-go/internal/core"
	"plansync-backend-go/internal/middleware"
)

// UserHandler handles user-profile related API endpoints.
type UserHandler struct {
	userService  core.UserService
	eventService core.BillingEventService
	logger       *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, es core.BillingEventService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: us, eventService: es, logger: logger}
}

// GetCurrentUserProfile handles the GET /api/v1/users/me endpoint.
// It returns the billing view of the authenticated user.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	userID := middleware.UserIDFrom(c)
	if userID == "" {
		middleware.AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication error: User ID not found in context")
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, core.CodeUserNotFound, "User profile not found")
			return
		}
		h.logger.Error("userService.GetByID failed", zap.String("user_id", userID), zap.Error(err))
		middleware.AbortWithError(c, http.StatusServiceUnavailable, core.CodeStoreUnavailable, "Failed to retrieve user profile")
		return
	}

	c.JSON(http.StatusOK, newBillingView(user))
}

// ListBillingEvents handles GET /api/v1/users/me/billing-events?limit=N.
func (h *UserHandler) ListBillingEvents(c *gin.Context) {
	userID := middleware.UserIDFrom(c)
	if userID == "" {
		middleware.AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication error: User ID not found in context")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.AbortWithError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.eventService.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("eventService.ListForUser failed", zap.String("user_id", userID), zap.Error(err))
		middleware.AbortWithError(c, http.StatusServiceUnavailable, core.CodeStoreUnavailable, "Failed to list billing events")
		return
	}

	c.JSON(http.StatusOK, BillingEventsResponse{Events: events})
}
