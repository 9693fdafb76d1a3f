package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"commerce-app/subscription-service/internal/billing"
	"commerce-app/subscription-service/internal/models"
	"commerce-app/subscription-service/internal/services"
)

type SubscriptionService interface {
	List(ctx context.Context, p services.ListParams) []models.Subscription
	Save(ctx context.Context, entity *models.Subscription) (*models.Subscription, error)
	Import(ctx context.Context, role string, entities []*models.Subscription) ([]*models.Subscription, error)
	Suspend(ctx context.Context, idHex, userID string, isAdmin bool) (*services.TransitionResult, error)
	Reactivate(ctx context.Context, idHex, userID string, isAdmin bool) (*services.TransitionResult, error)
}

type OrderConverter interface {
	OrderToSubscriptions(ctx context.Context, order *models.OrderTemplate, remoteAddr string) ([]*models.Subscription, error)
}

type RenewalRunner interface {
	RunSubscriptions(ctx context.Context) ([]services.RenewalResult, error)
}

type SubscriptionHandler struct {
	service   SubscriptionService
	converter OrderConverter
	renewals  RenewalRunner
}

func NewSubscriptionHandler(svc SubscriptionService, converter OrderConverter, renewals RenewalRunner) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:   svc,
		converter: converter,
		renewals:  renewals,
	}
}

// GET /api/subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID := c.GetString("userId")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	params := services.ListParams{
		UserID:  userID,
		IsAdmin: c.GetString("role") == "admin",
		Sort:    c.Query("sort"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.Offset = n
		}
	}
	params.FullData = c.Query("full_data") == "true"

	query := bson.M{}
	if status := c.Query("status"); status != "" {
		query["status"] = status
	}
	if id := c.Query("id"); id != "" {
		query["_id"] = id
	}
	params.Query = query

	subs := h.service.List(c.Request.Context(), params)
	if subs == nil {
		subs = make([]models.Subscription, 0)
	}
	c.JSON(http.StatusOK, subs)
}

// POST /api/subscriptions
func (h *SubscriptionHandler) Save(c *gin.Context) {
	var in struct {
		Entity *models.Subscription `json:"entity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// non-admin callers can only save their own records
	if c.GetString("role") != "admin" {
		in.Entity.UserID = c.GetString("userId")
	}

	saved, err := h.service.Save(c.Request.Context(), in.Entity)
	if err != nil {
		var vErr *models.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		}
		return
	}
	c.JSON(http.StatusOK, saved)
}

// POST /api/subscriptions/import
func (h *SubscriptionHandler) Import(c *gin.Context) {
	var in struct {
		Subscriptions []*models.Subscription `json:"subscriptions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.service.Import(c.Request.Context(), c.GetString("role"), in.Subscriptions)
	if err != nil {
		if errors.Is(err, models.ErrPermissionDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// POST /api/subscriptions/:id/suspend
func (h *SubscriptionHandler) Suspend(c *gin.Context) {
	result, err := h.service.Suspend(
		c.Request.Context(),
		c.Param("id"),
		c.GetString("userId"),
		c.GetString("role") == "admin",
	)
	h.respondTransition(c, result, err)
}

// POST /api/subscriptions/:id/reactivate
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	result, err := h.service.Reactivate(
		c.Request.Context(),
		c.Param("id"),
		c.GetString("userId"),
		c.GetString("role") == "admin",
	)
	h.respondTransition(c, result, err)
}

func (h *SubscriptionHandler) respondTransition(c *gin.Context, result *services.TransitionResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		case errors.Is(err, models.ErrInvalidTransition):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/subscriptions/run
// Manual batch trigger for operational debugging; the scheduler drives the
// same path daily.
func (h *SubscriptionHandler) Run(c *gin.Context) {
	role := c.GetString("role")
	if role != "admin" && role != "manager" {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	results, err := h.renewals.RunSubscriptions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "renewal batch failed"})
		return
	}

	processed := 0
	for _, r := range results {
		if r.Success {
			processed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed, "results": results})
}

// POST /api/subscriptions/order-to-subscription
// Called by the order service after checkout of an order containing
// subscribable items.
func (h *SubscriptionHandler) OrderToSubscription(c *gin.Context) {
	var in struct {
		Order *models.OrderTemplate `json:"order" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subs, err := h.converter.OrderToSubscriptions(c.Request.Context(), in.Order, c.ClientIP())
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order conversion failed"})
		return
	}
	if subs == nil {
		subs = make([]*models.Subscription, 0)
	}
	c.JSON(http.StatusCreated, subs)
}

// GET /api/subscriptions/next-order-date
// Pure calculator endpoint used by the storefront to preview renewal dates.
func (h *SubscriptionHandler) NextOrderDate(c *gin.Context) {
	period := models.BillingPeriod(c.Query("period"))
	switch period {
	case models.PeriodDay, models.PeriodWeek, models.PeriodMonth, models.PeriodYear:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period"})
		return
	}

	duration := 1.0
	if v := c.Query("duration"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
			return
		}
		duration = parsed
	}

	from := time.Now().UTC()
	if v := c.Query("date_start"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_start"})
			return
		}
		from = parsed
	}

	c.JSON(http.StatusOK, gin.H{"dateOrderNext": billing.NextOrderDate(period, duration, from)})
}
