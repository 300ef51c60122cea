package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectConversationKey(t *testing.T) {
	assert.Equal(t, "d:3:7", DirectConversationKey(3, 7))
	assert.Equal(t, "d:3:7", DirectConversationKey(7, 3))
	assert.Equal(t, DirectConversationKey(42, 1), DirectConversationKey(1, 42))
	assert.Equal(t, "d:5:5", DirectConversationKey(5, 5))
}

func TestConversation_IsDirect(t *testing.T) {
	assert.True(t, (&Conversation{Type: ConversationTypeDirect}).IsDirect())
	assert.False(t, (&Conversation{Type: ConversationTypeGroup}).IsDirect())
}

func TestUser_Name(t *testing.T) {
	u := &User{Username: "alice", DisplayName: "Alice Chen"}
	assert.Equal(t, "Alice Chen", u.Name())

	u.DisplayName = ""
	assert.Equal(t, "alice", u.Name())
}
