package controller

import (
	"errors"
	"finchat/model"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/google/uuid"
)

type ConversationController struct{}

func (ctrl ConversationController) List(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	summaries, err := model.ListConversations(userID, limit)
	if err != nil {
		logger.Warnf("[%s] Failed to list conversations: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

func (ctrl ConversationController) Create(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))

	var input struct {
		Title string `json:"title"`
	}
	// Empty body is fine, the title defaults.
	_ = c.ShouldBindJSON(&input)

	conv, err := model.CreateConversation(uuid.New().String(), userID, input.Title)
	if err != nil {
		logger.Warnf("[%s] Failed to create conversation: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (ctrl ConversationController) Get(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))
	id := c.Param("id")

	conv, err := model.GetConversation(id, userID)
	if err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		logger.Warnf("[%s] Failed to load conversation: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}

	messages, err := model.ListMessages(id)
	if err != nil {
		logger.Warnf("[%s] Failed to load messages: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": messages})
}

func (ctrl ConversationController) Delete(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))
	id := c.Param("id")

	if err := model.DeleteConversation(id, userID); err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		logger.Warnf("[%s] Failed to delete conversation: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

func (ctrl ConversationController) Archive(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))
	id := c.Param("id")

	var input struct {
		Archived *bool `json:"archived"`
	}
	archived := true
	if err := c.ShouldBindJSON(&input); err == nil && input.Archived != nil {
		archived = *input.Archived
	}

	if err := model.SetConversationArchived(id, userID, archived); err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		logger.Warnf("[%s] Failed to archive conversation: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation updated"})
}

// Export renders the transcript as a standalone HTML page.
func (ctrl ConversationController) Export(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))
	id := c.Param("id")

	conv, err := model.GetConversation(id, userID)
	if err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		logger.Warnf("[%s] Failed to load conversation: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}
	messages, err := model.ListMessages(id)
	if err != nil {
		logger.Warnf("[%s] Failed to load messages: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	for _, m := range messages {
		fmt.Fprintf(&b, "**%s** _%s_\n\n%s\n\n---\n\n",
			m.Role, m.CreatedAt.Format("2006-01-02 15:04"), m.Content)
	}

	html := markdown.ToHTML([]byte(b.String()), nil, nil)
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
