package controller

import (
	"errors"
	"finchat/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SettingsController struct{}

func (ctrl SettingsController) Get(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))
	view, err := settingsService.Get(userID)
	if err != nil {
		logger.Warnf("[%s] Failed to load settings: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (ctrl SettingsController) Update(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))

	var input service.SettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid settings input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	view, err := settingsService.Upsert(userID, &input)
	if err != nil {
		logger.Warnf("[%s] Failed to save settings: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[%s] Settings saved for user %d", c.GetString("requestId"), userID)
	c.JSON(http.StatusOK, view)
}

func (ctrl SettingsController) TestConnection(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))

	var input service.TestConnectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid test-connection input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	latency, err := settingsService.TestConnection(c.Request.Context(), userID, &input, service.NewProvider)
	if err != nil {
		logger.Warnf("[%s] Test connection failed: %s", c.GetString("requestId"), err)
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrNotConfigured) {
			status = http.StatusPreconditionFailed
		} else if errors.Is(err, service.ErrProviderAuth) {
			status = http.StatusUnauthorized
		} else if errors.Is(err, service.ErrProviderRateLimited) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "latency_ms": latency})
}
