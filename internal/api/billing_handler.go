package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plansync-backend-go/internal/billing"
	"plansync-backend-go/internal/core"
	"plansync-backend-go/internal/middleware"
)

// maxWebhookBodyBytes caps webhook payloads. Stripe events are far smaller.
const maxWebhookBodyBytes = 1 << 20

// BillingHandler handles billing-related API endpoints.
type BillingHandler struct {
	billingService core.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, logger: logger}
}

// mapBillingErrorToStatus maps errors from the checkout and portal flows to HTTP responses.
func (h *BillingHandler) mapBillingErrorToStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrPlanNotFound):
		middleware.AbortWithError(c, http.StatusNotFound, "plan_not_found", "Plan or Price not found")
	case errors.Is(err, core.ErrUserNotFound):
		middleware.AbortWithError(c, http.StatusNotFound, core.CodeUserNotFound, "User profile not found")
	case errors.Is(err, core.ErrUserStripeNotLinked):
		middleware.AbortWithError(c, http.StatusBadRequest, "user_not_linked", "User not linked to payment provider")
	case errors.Is(err, billing.ErrProvider):
		h.logger.Error("Payment provider error", zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "provider_error", "Could not complete the operation with the payment provider.")
	case errors.Is(err, core.ErrStoreUnavailable):
		h.logger.Error("User store unavailable", zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
		middleware.AbortWithError(c, http.StatusServiceUnavailable, core.CodeStoreUnavailable, "User store unavailable")
	default:
		h.logger.Error("Internal Server Error in BillingHandler", zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
		middleware.AbortWithError(c, http.StatusInternalServerError, core.CodeInternalError, "An unexpected internal server error occurred.")
	}
}

// mapWebhookErrorToStatus maps a webhook failure to the status the provider sees.
// Only store outages ask for a retry (5xx); rejected events get 4xx so the
// provider stops redelivering them.
func mapWebhookErrorToStatus(err error) (int, string) {
	code := core.WebhookErrorCode(err)
	switch code {
	case core.CodeSignatureInvalid, core.CodeMalformedEvent:
		return http.StatusBadRequest, code
	case core.CodeUserNotFound:
		return http.StatusNotFound, code
	case core.CodeStoreUnavailable:
		return http.StatusServiceUnavailable, code
	default:
		return http.StatusInternalServerError, core.CodeInternalError
	}
}

var webhookErrorMessages = map[string]string{
	core.CodeSignatureInvalid: "Webhook signature verification failed",
	core.CodeMalformedEvent:   "Webhook event is malformed",
	core.CodeUserNotFound:     "No user is linked to this customer",
	core.CodeStoreUnavailable: "User store unavailable, retry later",
	core.CodeInternalError:    "An unexpected internal server error occurred.",
}

// CreateCheckoutSession handles POST /billing/create-checkout-session
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	userID := middleware.UserIDFrom(c)
	if userID == "" {
		middleware.AbortWithError(c, http.StatusUnauthorized, "unauthorized", "User ID not found in context")
		return
	}

	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request payload: priceId is required")
		return
	}

	session, err := h.billingService.CreateCheckoutSession(c.Request.Context(), userID, req.PriceID)
	if err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, CreateCheckoutSessionResponse{SessionID: session.SessionID, URL: session.URL})
}

// CreatePortalSession handles POST /billing/create-portal-session
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	userID := middleware.UserIDFrom(c)
	if userID == "" {
		middleware.AbortWithError(c, http.StatusUnauthorized, "unauthorized", "User ID not found in context")
		return
	}

	portalURL, err := h.billingService.CreatePortalSession(c.Request.Context(), userID)
	if err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, CreatePortalSessionResponse{URL: portalURL})
}

// HandleStripeWebhook handles POST /billing/webhooks/stripe
// This endpoint is public; Stripe authenticates deliveries with the
// Stripe-Signature header, which the service verifies against the raw body.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.AbortWithError(c, http.StatusRequestEntityTooLarge, "payload_too_large", "Webhook payload is too large")
			return
		}
		h.logger.Warn("Failed to read webhook payload", zap.Error(err))
		middleware.AbortWithError(c, http.StatusBadRequest, core.CodeMalformedEvent, "Failed to read webhook payload")
		return
	}

	res, err := h.billingService.HandleStripeWebhook(c.Request.Context(), c.GetHeader("Stripe-Signature"), payload)
	if err != nil {
		status, code := mapWebhookErrorToStatus(err)
		_ = c.Error(err)
		middleware.AbortWithError(c, status, code, webhookErrorMessages[code])
		return
	}

	h.logger.Debug("Stripe webhook acknowledged",
		zap.String("event_id", res.EventID),
		zap.String("kind", string(res.Kind)),
		zap.String("outcome", string(res.Outcome)),
	)
	c.JSON(http.StatusOK, WebhookAckResponse{Received: true})
}
