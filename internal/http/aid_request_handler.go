package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"ayuda-red/internal/domain"
	"ayuda-red/internal/repository"
	"ayuda-red/internal/service"
)

// AidRequestHandler mantiene dependencias para endpoints de solicitudes de ayuda.
type AidRequestHandler struct {
	logger   *zap.Logger
	requests repository.AidRequestRepository
}

// NewAidRequestHandler crea una instancia de AidRequestHandler con dependencias necesarias.
func NewAidRequestHandler(logger *zap.Logger, requests repository.AidRequestRepository) *AidRequestHandler {
	return &AidRequestHandler{
		logger:   logger,
		requests: requests,
	}
}

// Create maneja POST /aid-requests. La solicitud queda ligada al principal autenticado.
func (h *AidRequestHandler) Create(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description" binding:"required"`
		Category    string `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid aid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	now := time.Now().UTC()
	aidReq := domain.AidRequest{
		ID:          uuid.NewString(),
		UserID:      claims.UserID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      domain.AidRequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.requests.Create(c.Request.Context(), aidReq); err != nil {
		h.logger.Error("create aid request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create aid request"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"aid_request": aidReq})
}

// ListMine maneja GET /aid-requests y lista las solicitudes del principal.
func (h *AidRequestHandler) ListMine(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	items, err := h.requests.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list aid requests failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list aid requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"aid_requests": items})
}

// Get maneja GET /aid-requests/:id con regla dueño-o-admin.
func (h *AidRequestHandler) Get(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	aidReq, err := h.requests.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "aid request not found"})
			return
		}
		h.logger.Error("get aid request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get aid request"})
		return
	}

	if !service.CanAccessAidRequest(claims.Role, claims.UserID, aidReq) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"aid_request": aidReq})
}

// UpdateStatus maneja PATCH /aid-requests/:id/status (solo admin, vía RequireAbility).
func (h *AidRequestHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid status update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !domain.ValidAidRequestStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	err := h.requests.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "aid request not found"})
			return
		}
		h.logger.Error("update aid request status failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// Delete maneja DELETE /aid-requests/:id (solo admin, vía RequireAbility).
func (h *AidRequestHandler) Delete(c *gin.Context) {
	err := h.requests.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "aid request not found"})
			return
		}
		h.logger.Error("delete aid request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete aid request"})
		return
	}

	c.Status(http.StatusNoContent)
}
