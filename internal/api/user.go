package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodia/backend/internal/middleware"
	"github.com/foodia/backend/internal/models"
	"github.com/foodia/backend/internal/service"
)

// UserHandler serves the current user and the quota endpoints.
type UserHandler struct {
	db    *gorm.DB
	quota *service.QuotaService
	auth  *service.AuthService
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(db *gorm.DB, quota *service.QuotaService, auth *service.AuthService) *UserHandler {
	return &UserHandler{db: db, quota: quota, auth: auth}
}

// RegisterRoutes registers the user routes
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users", middleware.AuthMiddleware(h.auth))
	{
		users.GET("/me", h.Me)
		users.GET("/quota", h.QuotaStatus)
		users.POST("/rewards", h.WatchAdReward)
	}
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// QuotaStatus reports remaining credits, applying the daily reset first.
func (h *UserHandler) QuotaStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	status, err := h.quota.Status(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[UserHandler] quota status failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get quota status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// WatchAdReward grants one rewarded generation credit.
func (h *UserHandler) WatchAdReward(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	user, err := h.quota.GrantReward(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[UserHandler] reward grant failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant reward"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":              "one extra generation granted",
		"dailyGenerationCount": user.DailyGenerationCount,
		"rewardedGenerations":  user.RewardedGenerations,
	})
}

// currentUserID resolves the authenticated user id stored by the auth
// middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}
