package model

import "time"

// Message is one entry of a conversation transcript. Messages are append-only;
// the assistant-only metadata columns stay NULL for user and system rows.
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationId string    `json:"conversation_id" gorm:"type:varchar(64);index:idx_conversation_id_created_at"`
	Role           string    `gorm:"type:varchar(64)" json:"role"`
	Content        string    `gorm:"type:text" json:"content"`
	DataSources    *string   `gorm:"type:varchar(255)" json:"data_sources,omitempty"`
	Confidence     *float64  `json:"confidence_score,omitempty"`
	TokensUsed     *int      `json:"tokens_used,omitempty"`
	ProcessingMs   *int64    `json:"processing_time_ms,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_conversation_id_created_at"`
}

const (
	RoleSystemMsg    = "system"
	RoleUserMsg      = "user"
	RoleAssistantMsg = "assistant"
)
