package models

import "time"

// Message types.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Message is an append-only chat message. The auto-incremented ID doubles as
// the global sequence number used to break ties when timestamps collide.
// Only Content/IsEdited/EditedAt ever change after creation (on edit).
type Message struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint   `gorm:"not null;index" json:"sender_id"`
	Sender         *User  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content        string `gorm:"type:text" json:"content"`
	Type           string `gorm:"not null;default:'text'" json:"type"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	// ReplyToID is a weak reference to an earlier message in the same
	// conversation, kept for display threading only. A dangling reference is
	// tolerated; clients render it as "message unavailable".
	ReplyToID *uint      `json:"reply_to_id,omitempty"`
	ReplyTo   *Message   `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
	IsEdited  bool       `gorm:"not null;default:false" json:"is_edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

// MessagePage describes pagination metadata for a message listing. Total is
// counted within the read snapshot, so concatenating consecutive pages never
// skips or duplicates a message even while new messages are appended.
type MessagePage struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}
