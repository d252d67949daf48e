package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sadopc/habitlab/internal/notify"
)

type testNotificationRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type deviceTokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Token  string `json:"token" binding:"required,max=4096"`
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func TestNotification(n Notifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req testNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		delivery, err := n.SendTest(c.Request.Context(), req.UserID)
		switch {
		case errors.Is(err, notify.ErrNoDevices):
			c.JSON(http.StatusNotFound, gin.H{"error": "no registered devices"})
			return
		case err != nil:
			logger.Error("test notification failed", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send test notification"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":      delivery.SuccessCount > 0,
			"deviceCount":  delivery.DeviceCount,
			"successCount": delivery.SuccessCount,
		})
	}
}

func RegisterDeviceToken(n Notifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deviceTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and token are required"})
			return
		}

		err := n.Register(c.Request.Context(), req.UserID, req.Token)
		switch {
		case errors.Is(err, notify.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "notification permission denied"})
			return
		case err != nil:
			logger.Error("register device token failed", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device token"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "registered"})
	}
}
