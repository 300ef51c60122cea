// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"time"
)

// Conversation types.
const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

// Participant roles.
const (
	ParticipantRoleAdmin  = "admin"
	ParticipantRoleMember = "member"
)

// Conversation represents a direct or group conversation.
type Conversation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Type          string     `gorm:"not null;index" json:"type"`
	Name          string     `json:"name"` // For group conversations
	Description   string     `gorm:"type:text" json:"description,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	CreatedBy     uint       `gorm:"not null" json:"created_by"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	// DirectKey is a canonical order-independent key for direct conversations
	// ("d:<minUserID>:<maxUserID>"). The unique index is what makes duplicate
	// direct conversations impossible under concurrent creation. NULL for groups.
	DirectKey *string   `gorm:"uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// IsDirect reports whether the conversation is a two-party direct conversation.
func (c *Conversation) IsDirect() bool {
	return c.Type == ConversationTypeDirect
}

// DirectConversationKey builds the canonical dedup key for a direct
// conversation between two users, independent of argument order.
func DirectConversationKey(userA, userB uint) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("d:%d:%d", userA, userB)
}

// ConversationParticipant tracks a user's membership in a conversation,
// including their read cursor. The (conversation_id, user_id) pair is unique;
// soft removal flips IsActive and re-adding reactivates the same row.
type ConversationParticipant struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConversationID uint       `gorm:"not null;uniqueIndex:idx_conversation_user" json:"conversation_id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_conversation_user;index" json:"user_id"`
	Role           string     `gorm:"not null;default:'member'" json:"role"`
	JoinedAt       time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"` // nil means never read
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// ConversationSummary is the read-model returned by the conversation listing:
// one row per active membership with display fields resolved for the caller.
type ConversationSummary struct {
	ID            uint                      `json:"id"`
	Type          string                    `json:"type"`
	Name          string                    `json:"name"`
	Avatar        string                    `json:"avatar,omitempty"`
	Participants  []ConversationParticipant `json:"participants"`
	LastMessage   *Message                  `json:"last_message,omitempty"`
	LastMessageAt *time.Time                `json:"last_message_at,omitempty"`
	UnreadCount   int64                     `json:"unread_count"`
}
