package main

import (
	"finchat/controller"
	"finchat/model"
	"finchat/platform"
	"finchat/service"
	"fmt"
	"os"
	"time"

	_uuid "github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CORSMiddleware ...
// CORS (Cross-Origin Resource Sharing)
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "http://localhost")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, UPDATE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Origin, Authorization, Accept, Client-Security-Token, Accept-Encoding, x-access-token")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
		} else {
			c.Next()
		}
	}
}

// RequestIDMiddleware ...
// Generate a unique ID and attach it to each request for future reference or use
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := _uuid.New()
		c.Writer.Header().Set("X-Request-Id", uuid.String())
		c.Set("requestId", uuid.String())
		c.Next()
	}
}

func LogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		if raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		latency := time.Since(start)

		status := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		userAgent := c.Request.UserAgent()
		requestId := c.GetString("requestId")

		logrus.Infof(
			" [%s] %d | %v | %s | %s | %s | %s ",
			requestId,
			status,
			latency,
			clientIP,
			method,
			path,
			userAgent,
		)
	}
}

var auth = new(controller.AuthController)

// TokenAuthMiddleware ...
// JWT Authentication middleware attached to each request that needs to be authenitcated to
// validate the access_token in the header
func TokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth.TokenValid(c)
		c.Next()
	}
}

func main() {
	fmt.Println("Server started...")

	//Load the .env file
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("failed to load the env file")
	}

	platform.InitFile("./log", "gin")

	r := gin.Default()
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LogMiddleware())

	//init database
	platform.InitDB()
	model.InstallDB()

	if err := controller.InitServices(); err != nil {
		logrus.Fatalf("failed to init services: %v", err)
	}

	v1 := r.Group("/v1")
	{
		user := new(controller.UserController)
		v1.POST("/user/register", user.Register)
		v1.POST("/user/login", user.Login)

		//Refresh the token
		v1.POST("/token/refresh", auth.Refresh)

		// AI settings
		settings := new(controller.SettingsController)
		v1.GET("/ai/settings", TokenAuthMiddleware(), settings.Get)
		v1.POST("/ai/settings", TokenAuthMiddleware(), settings.Update)
		v1.POST("/ai/test-connection", TokenAuthMiddleware(), settings.TestConnection)

		// Conversations
		conv := new(controller.ConversationController)
		v1.GET("/conversations", TokenAuthMiddleware(), conv.List)
		v1.POST("/conversations", TokenAuthMiddleware(), conv.Create)
		v1.GET("/conversations/:id", TokenAuthMiddleware(), conv.Get)
		v1.DELETE("/conversations/:id", TokenAuthMiddleware(), conv.Delete)
		v1.POST("/conversations/:id/archive", TokenAuthMiddleware(), conv.Archive)
		v1.GET("/conversations/:id/export", TokenAuthMiddleware(), conv.Export)

		// Chat
		chat := new(controller.ChatController)
		v1.POST("/chat", TokenAuthMiddleware(), chat.Chat)
	}

	digestSchedule := os.Getenv("DIGEST_CRON")
	if digestSchedule != "" {
		digest := service.NewDigestService()
		c := cron.New()
		c.AddFunc(digestSchedule, func() {
			if err := digest.SendDigests(); err != nil {
				logrus.Warnf("digest run failed: %v", err)
			}
		})
		c.Start()
	}

	port := os.Getenv("PORT")
	r.Run(":" + port)
}
