package model

import (
	"fmt"
	"testing"
	"time"

	"finchat/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendTurnCreatesConversationLazily(t *testing.T) {
	setupTestDB(t)

	userMsg := &Message{Role: RoleUserMsg, Content: "How much did I spend?"}
	assistantMsg := &Message{Role: RoleAssistantMsg, Content: "You spent 70.50.", TokensUsed: intPtr(42)}

	err := AppendTurn("conv-1", 1, "How much did I spend?", true, userMsg, assistantMsg)
	require.NoError(t, err)

	conv, err := GetConversation("conv-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "How much did I spend?", conv.Title)
	assert.Equal(t, 2, conv.TotalMessages)
	assert.Equal(t, 42, conv.TotalTokensUsed)

	messages, err := ListMessages("conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUserMsg, messages[0].Role)
	assert.Equal(t, RoleAssistantMsg, messages[1].Role)
}

func TestAppendTurnAccumulatesCounters(t *testing.T) {
	setupTestDB(t)

	for i := 0; i < 3; i++ {
		err := AppendTurn("conv-1", 1, "t", true,
			&Message{Role: RoleUserMsg, Content: "q"},
			&Message{Role: RoleAssistantMsg, Content: "a", TokensUsed: intPtr(10)})
		require.NoError(t, err)
	}

	conv, err := GetConversation("conv-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 6, conv.TotalMessages)
	assert.Equal(t, 30, conv.TotalTokensUsed)
}

func TestAppendTurnMissingConversation(t *testing.T) {
	setupTestDB(t)

	err := AppendTurn("nope", 1, "", false,
		&Message{Role: RoleUserMsg, Content: "q"},
		&Message{Role: RoleAssistantMsg, Content: "a"})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	var count int64
	require.NoError(t, platform.DB.Model(&Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAppendTurnDefaultsTitle(t *testing.T) {
	setupTestDB(t)

	err := AppendTurn("conv-1", 1, "", true,
		&Message{Role: RoleUserMsg, Content: "q"},
		&Message{Role: RoleAssistantMsg, Content: "a"})
	require.NoError(t, err)

	conv, err := GetConversation("conv-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", conv.Title)
}

func TestGetConversationScopedToOwner(t *testing.T) {
	setupTestDB(t)

	_, err := CreateConversation("conv-1", 1, "mine")
	require.NoError(t, err)

	_, err = GetConversation("conv-1", 2)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	setupTestDB(t)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("conv-%d", i)
		conv := &Conversation{
			ID: id, UserId: 1, Title: id,
			UpdatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, platform.DB.Create(conv).Error)
		require.NoError(t, platform.DB.Create(&Message{
			ConversationId: id, Role: RoleAssistantMsg, Content: "last answer for " + id,
		}).Error)
	}

	summaries, err := ListConversations(1, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "conv-2", summaries[0].ID)
	assert.Equal(t, "conv-0", summaries[2].ID)
	assert.Equal(t, "last answer for conv-2", summaries[0].LastMessage)
}

func TestListConversationsExcludesOtherUsers(t *testing.T) {
	setupTestDB(t)

	_, err := CreateConversation("mine", 1, "mine")
	require.NoError(t, err)
	_, err = CreateConversation("theirs", 2, "theirs")
	require.NoError(t, err)

	summaries, err := ListConversations(1, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "mine", summaries[0].ID)
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	setupTestDB(t)

	err := AppendTurn("conv-1", 1, "t", true,
		&Message{Role: RoleUserMsg, Content: "q"},
		&Message{Role: RoleAssistantMsg, Content: "a"})
	require.NoError(t, err)

	require.NoError(t, DeleteConversation("conv-1", 1))

	_, err = GetConversation("conv-1", 1)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	var count int64
	require.NoError(t, platform.DB.Model(&Message{}).Where("conversation_id = ?", "conv-1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteConversationWrongOwner(t *testing.T) {
	setupTestDB(t)

	_, err := CreateConversation("conv-1", 1, "t")
	require.NoError(t, err)

	assert.ErrorIs(t, DeleteConversation("conv-1", 2), ErrConversationNotFound)

	_, err = GetConversation("conv-1", 1)
	assert.NoError(t, err)
}

func TestSetConversationArchived(t *testing.T) {
	setupTestDB(t)

	_, err := CreateConversation("conv-1", 1, "t")
	require.NoError(t, err)

	require.NoError(t, SetConversationArchived("conv-1", 1, true))
	conv, err := GetConversation("conv-1", 1)
	require.NoError(t, err)
	assert.True(t, conv.IsArchived)

	require.NoError(t, SetConversationArchived("conv-1", 1, false))
	conv, err = GetConversation("conv-1", 1)
	require.NoError(t, err)
	assert.False(t, conv.IsArchived)

	assert.ErrorIs(t, SetConversationArchived("nope", 1, true), ErrConversationNotFound)
}

func TestListMessagesInCreationOrder(t *testing.T) {
	setupTestDB(t)

	_, err := CreateConversation("conv-1", 1, "t")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		msg := &Message{
			ConversationId: "conv-1",
			Role:           RoleUserMsg,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, platform.DB.Create(msg).Error)
	}

	messages, err := ListMessages("conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 4)
	for i, m := range messages {
		assert.Equal(t, fmt.Sprintf("message %d", i), m.Content)
	}
}
