package api

import (
	"net/http"
	"strconv"
	"time"

	"lostid-service/internal/errs"
	"lostid-service/internal/gateway"
	"lostid-service/internal/service"
	"lostid-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	paymentService *service.PaymentService
	claimService   *service.ClaimService
	catalogService *service.CatalogService
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(paymentService *service.PaymentService, claimService *service.ClaimService, catalogService *service.CatalogService) *Handler {
	return &Handler{
		paymentService: paymentService,
		claimService:   claimService,
		catalogService: catalogService,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments/initiate", h.initiatePayment)
		v1.POST("/payments/callback", h.paymentCallback)
		v1.GET("/payments/callback", h.callbackLiveness)
		v1.GET("/payments/status", h.paymentStatus)
		v1.POST("/claims", h.submitClaim)
		v1.GET("/claims", h.listClaims)
		v1.GET("/lost-ids", h.listLostIDs)
		v1.GET("/lost-ids/:id", h.getLostID)
		v1.POST("/lost-ids", h.uploadLostID)
		v1.GET("/categories", h.listCategories)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// initiatePayment starts an STK push payment
func (h *Handler) initiatePayment(c *gin.Context) {
	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.paymentService.Initiate(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":             "STK push initiated successfully",
		"checkout_request_id": resp.CheckoutRequestID,
		"status":              resp.Status,
		"customer_message":    resp.CustomerMessage,
	})
}

// paymentCallback receives the provider's asynchronous payment result
func (h *Handler) paymentCallback(c *gin.Context) {
	var envelope gateway.STKCallbackEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil || envelope.Body.STKCallback == nil {
		util.CallbacksReceivedTotal.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid M-Pesa callback format"})
		return
	}

	if err := h.paymentService.ProcessCallback(c.Request.Context(), envelope.Body.STKCallback); err != nil {
		h.logger.Error("callback processing failed",
			zap.String("checkout_request_id", envelope.Body.STKCallback.CheckoutRequestID),
			zap.Error(err))
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// callbackLiveness answers the provider's callback URL verification probe
func (h *Handler) callbackLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Callback URL is active"})
}

// paymentStatus reports payment or claim status for the client polling loop
func (h *Handler) paymentStatus(c *gin.Context) {
	checkoutRequestID := c.Query("checkout_request_id")
	claimID := c.Query("claim_id")

	if checkoutRequestID == "" && claimID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing checkout_request_id or claim_id"})
		return
	}

	var resp *service.StatusResponse
	var err error
	if checkoutRequestID != "" {
		resp, err = h.paymentService.PaymentStatus(c.Request.Context(), checkoutRequestID)
	} else {
		resp, err = h.claimService.ClaimStatus(c.Request.Context(), claimID)
	}

	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// submitClaim creates a claim once payment is confirmed
func (h *Handler) submitClaim(c *gin.Context) {
	var req service.SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required claim parameters"})
		return
	}

	claim, err := h.claimService.SubmitClaim(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Claim submitted successfully",
		"claim":   claim,
	})
}

// listClaims returns a user's claims
func (h *Handler) listClaims(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user_id"})
		return
	}

	claims, err := h.claimService.ClaimsByUser(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, claims)
}

// listLostIDs returns all lost ID records
func (h *Handler) listLostIDs(c *gin.Context) {
	lostIDs, err := h.catalogService.ListLostIDs(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, lostIDs)
}

// getLostID returns a single lost ID record
func (h *Handler) getLostID(c *gin.Context) {
	lostID, err := h.catalogService.GetLostID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, lostID)
}

// uploadLostID registers a found document
func (h *Handler) uploadLostID(c *gin.Context) {
	var req service.UploadLostIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all required fields must be provided"})
		return
	}

	lostID, err := h.catalogService.UploadLostID(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Lost ID uploaded successfully",
		"lost_id": lostID,
	})
}

// listCategories returns all categories
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	if appErr, ok := errs.AsAppError(err); ok {
		c.JSON(appErr.HTTPCode, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
