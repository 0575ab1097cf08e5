package controller

import (
	"finchat/platform"
	"finchat/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserController ...
type UserController struct{}

var userService = service.UserService{}

var logger = platform.Logger

func (ctrl UserController) Register(c *gin.Context) {
	logger.Infof("[%s] Handling user registration request", c.GetString("requestId"))

	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Email    string `json:"email" binding:"email"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	user := &service.User{
		Username: input.Username,
		Password: input.Password,
		Email:    input.Email,
	}
	if err := userService.Register(user); err != nil {
		logger.Warnf("[%s] Failed to register user %s: %s", c.GetString("requestId"), user.Username, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Infof("[%s] User %s registered successfully", c.GetString("requestId"), user.Username)
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully"})
}

func (ctrl UserController) Login(c *gin.Context) {
	logger.Infof("[%s] Handling user login request", c.GetString("requestId"))

	var loginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginRequest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	token, err := userService.Login(&service.User{
		Username: loginRequest.Username,
		Password: loginRequest.Password,
	})
	if err != nil {
		logger.Warnf("[%s] User %s failed to login: %s", c.GetString("requestId"), loginRequest.Username, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	logger.Infof("[%s] User %s login successfully", c.GetString("requestId"), loginRequest.Username)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
