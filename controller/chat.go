package controller

import (
	"encoding/json"
	"errors"
	"finchat/model"
	"finchat/service"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ChatController struct{}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
	Stream         bool   `json:"stream"`
}

// Chat runs one assistant turn. With stream=true the reply is sent as SSE
// events: start, chunk*, metadata, then done. An error event ends the stream
// and nothing else follows.
func (ch ChatController) Chat(c *gin.Context) {
	userID := uint(c.GetInt64("UserId"))

	var reqData chatRequest
	if err := c.ShouldBindJSON(&reqData); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	turn := &service.TurnRequest{
		UserID:         userID,
		ConversationID: reqData.ConversationID,
		Message:        reqData.Message,
	}

	if !reqData.Stream {
		result, err := chatService.RunTurn(c.Request.Context(), turn, nil)
		if err != nil {
			logger.Warnf("[%s] Turn failed: %s", c.GetString("requestId"), err)
			c.JSON(turnStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"conversation_id": result.ConversationID,
			"message":         result.Assistant,
		})
		return
	}

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Warnf("[%s] get Writer flusher error", c.GetString("requestId"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming unsupported"})
		return
	}

	streaming := false
	writeEvent := func(name string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		flusher.Flush()
	}

	events := &service.TurnEvents{
		OnStart: func(conversationID string) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			streaming = true
			writeEvent("start", gin.H{"conversation_id": conversationID})
		},
		OnChunk: func(content string) {
			writeEvent("chunk", gin.H{"content": content})
		},
		OnMetadata: func(dataSources []string, confidence float64) {
			writeEvent("metadata", gin.H{
				"data_sources":     dataSources,
				"confidence_score": confidence,
			})
		},
	}

	result, err := chatService.RunTurn(c.Request.Context(), turn, events)
	if err != nil {
		logger.Warnf("[%s] Turn failed: %s", c.GetString("requestId"), err)
		if streaming {
			writeEvent("error", gin.H{"message": err.Error()})
			return
		}
		c.JSON(turnStatus(err), gin.H{"error": err.Error()})
		return
	}

	done := gin.H{}
	if result.Assistant.TokensUsed != nil {
		done["tokens_used"] = *result.Assistant.TokensUsed
	}
	if result.Assistant.ProcessingMs != nil {
		done["processing_time_ms"] = *result.Assistant.ProcessingMs
	}
	writeEvent("done", done)
}

// turnStatus maps the turn error taxonomy onto HTTP statuses.
func turnStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConversationNotFound):
		return http.StatusNotFound
	case service.IsConfigurationError(err):
		return http.StatusPreconditionFailed
	case errors.Is(err, service.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrProviderRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrTurnTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrProviderAuth), errors.Is(err, service.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
