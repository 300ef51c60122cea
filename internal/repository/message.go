package repository

import (
	"context"
	"time"

	"hearth/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines data operations for the append-only message store.
type MessageRepository interface {
	// Append persists the message and bumps the conversation's
	// last_message_at in a single transaction.
	Append(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListPageAndAdvanceCursor returns one page of messages ordered by
	// (created_at, id) ascending, bounded by a snapshot timestamp taken
	// inside the transaction, and advances the requester's read cursor to
	// that same snapshot. Messages appended after the snapshot are excluded
	// from both the page and the cursor advance, so nothing arriving
	// mid-read is silently marked as read.
	ListPageAndAdvanceCursor(ctx context.Context, convID, userID uint, limit, offset int) ([]*models.Message, int64, time.Time, error)
	LatestForConversation(ctx context.Context, convID uint) (*models.Message, error)
	// CountUnread counts messages in the conversation sent by others after
	// the given read cursor (nil cursor means never read).
	CountUnread(ctx context.Context, convID, userID uint, lastReadAt *time.Time) (int64, error)
	// CountTotalUnread sums unread counts across every active membership of
	// the user, skipping deactivated conversations.
	CountTotalUnread(ctx context.Context, userID uint) (int64, error)
	UpdateContent(ctx context.Context, id uint, content string, editedAt time.Time) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Preload("Sender").First(&msg, id).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListPageAndAdvanceCursor(ctx context.Context, convID, userID uint, limit, offset int) ([]*models.Message, int64, time.Time, error) {
	var messages []*models.Message
	var total int64
	readAt := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bounded := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND created_at <= ?", convID, readAt)
		if err := bounded.Count(&total).Error; err != nil {
			return err
		}

		if err := tx.
			Where("conversation_id = ? AND created_at <= ?", convID, readAt).
			Preload("Sender").
			Preload("ReplyTo").
			Order("created_at ASC, id ASC").
			Limit(limit).
			Offset(offset).
			Find(&messages).Error; err != nil {
			return err
		}

		// Cursor only moves forward; a stale snapshot never rewinds it.
		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", convID, userID).
			Where("last_read_at IS NULL OR last_read_at < ?", readAt).
			Update("last_read_at", readAt).Error
	})
	if err != nil {
		return nil, 0, time.Time{}, err
	}
	return messages, total, readAt, nil
}

func (r *messageRepository) LatestForConversation(ctx context.Context, convID uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", convID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, convID, userID uint, lastReadAt *time.Time) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", convID, userID)
	if lastReadAt != nil {
		q = q.Where("created_at > ?", *lastReadAt)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *messageRepository) CountTotalUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = messages.conversation_id").
		Joins("JOIN conversations c ON c.id = messages.conversation_id").
		Where("cp.user_id = ? AND cp.is_active = ?", userID, true).
		Where("c.is_active = ?", true).
		Where("messages.sender_id <> ?", userID).
		Where("cp.last_read_at IS NULL OR messages.created_at > cp.last_read_at").
		Count(&count).Error
	return count, err
}

func (r *messageRepository) UpdateContent(ctx context.Context, id uint, content string, editedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
			"edited_at": editedAt,
		}).Error
}
