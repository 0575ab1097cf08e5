package model

import (
	"errors"
	"finchat/platform"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Conversation groups the messages of one chat thread. Counters are only
// touched by AppendTurn so that a turn's user+assistant pair and the counter
// bump land in the same transaction.
type Conversation struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserId          uint      `gorm:"index" json:"user_id"`
	Title           string    `gorm:"type:varchar(255)" json:"title"`
	TotalMessages   int       `json:"total_messages"`
	TotalTokensUsed int       `json:"total_tokens_used"`
	IsArchived      bool      `gorm:"default:false" json:"is_archived"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ConversationSummary is the list-view projection with a preview of the most
// recent message.
type ConversationSummary struct {
	Conversation
	LastMessage string `json:"last_message"`
}

func CreateConversation(id string, userID uint, title string) (*Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	conv := &Conversation{ID: id, UserId: userID, Title: title}
	if err := platform.DB.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func GetConversation(id string, userID uint) (*Conversation, error) {
	var conv Conversation
	err := platform.DB.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &conv, nil
}

func ListConversations(userID uint, limit int) ([]ConversationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var convs []Conversation
	err := platform.DB.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		var last Message
		preview := ""
		err := platform.DB.Where("conversation_id = ?", conv.ID).
			Order("created_at DESC, id DESC").
			First(&last).Error
		if err == nil {
			preview = previewOf(last.Content)
		}
		summaries = append(summaries, ConversationSummary{Conversation: conv, LastMessage: preview})
	}
	return summaries, nil
}

func previewOf(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) > 80 {
		return string(runes[:80]) + "…"
	}
	return content
}

// ListMessages returns the full transcript in creation order.
func ListMessages(conversationID string) ([]Message, error) {
	var messages []Message
	err := platform.DB.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// DeleteConversation removes the conversation and all owned messages.
func DeleteConversation(id string, userID uint) error {
	return platform.DB.Transaction(func(tx *gorm.DB) error {
		var conv Conversation
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return fmt.Errorf("database query failed: %w", err)
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.Delete(&conv).Error; err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return nil
	})
}

func SetConversationArchived(id string, userID uint, archived bool) error {
	res := platform.DB.Model(&Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_archived", archived)
	if res.Error != nil {
		return fmt.Errorf("failed to update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// AppendTurn persists one completed turn: the user message, the assistant
// message, and the parent counter updates, atomically. When createIfMissing
// is set and the conversation row does not exist yet, it is created in the
// same transaction (lazy creation on first message).
func AppendTurn(conversationID string, userID uint, title string, createIfMissing bool, userMsg, assistantMsg *Message) error {
	return platform.DB.Transaction(func(tx *gorm.DB) error {
		var conv Conversation
		err := tx.Where("id = ? AND user_id = ?", conversationID, userID).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !createIfMissing {
				return ErrConversationNotFound
			}
			if title == "" {
				title = "New Conversation"
			}
			conv = Conversation{ID: conversationID, UserId: userID, Title: title}
			if err := tx.Create(&conv).Error; err != nil {
				return fmt.Errorf("failed to create conversation: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("database query failed: %w", err)
		}

		userMsg.ConversationId = conversationID
		assistantMsg.ConversationId = conversationID
		if err := tx.Create(userMsg).Error; err != nil {
			return fmt.Errorf("failed to create user message: %w", err)
		}
		if err := tx.Create(assistantMsg).Error; err != nil {
			return fmt.Errorf("failed to create assistant message: %w", err)
		}

		tokens := 0
		if assistantMsg.TokensUsed != nil {
			tokens = *assistantMsg.TokensUsed
		}
		err = tx.Model(&Conversation{}).Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"total_messages":    gorm.Expr("total_messages + ?", 2),
				"total_tokens_used": gorm.Expr("total_tokens_used + ?", tokens),
				"updated_at":        time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update conversation counters: %w", err)
		}
		return nil
	})
}
