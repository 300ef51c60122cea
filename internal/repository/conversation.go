// Package repository provides data access for conversations, participants,
// messages, and the user directory.
package repository

import (
	"context"
	"errors"

	"hearth/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateKey is returned when an insert violates a uniqueness
// constraint. The conversation resolver relies on it to detect that a
// concurrent caller won the direct-conversation creation race.
var ErrDuplicateKey = errors.New("duplicate key")

// IsUniqueViolation reports whether err is a uniqueness-constraint violation,
// either translated by GORM or surfaced raw from the postgres driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ConversationRepository defines data operations for conversations and their
// participant rows.
type ConversationRepository interface {
	// CreateWithParticipants inserts the conversation and its initial
	// participant rows in a single transaction. A uniqueness violation on the
	// direct key aborts the whole unit of work.
	CreateWithParticipants(ctx context.Context, conv *models.Conversation, participants []*models.ConversationParticipant) error
	GetByID(ctx context.Context, id uint) (*models.Conversation, error)
	GetByDirectKey(ctx context.Context, key string) (*models.Conversation, error)
	// ListForUser returns active conversations the user actively belongs to,
	// ordered by last_message_at descending with never-messaged ones last.
	ListForUser(ctx context.Context, userID uint) ([]*models.Conversation, error)
	Deactivate(ctx context.Context, id uint) error

	GetParticipant(ctx context.Context, convID, userID uint) (*models.ConversationParticipant, error)
	ListActiveParticipants(ctx context.Context, convID uint) ([]models.ConversationParticipant, error)
	ListActiveMembershipsForUser(ctx context.Context, userID uint) ([]models.ConversationParticipant, error)
	// UpsertParticipant inserts a membership row, or reactivates the existing
	// (conversation_id, user_id) row with the given role.
	UpsertParticipant(ctx context.Context, p *models.ConversationParticipant) error
	DeactivateParticipant(ctx context.Context, convID, userID uint) error
	SetParticipantRole(ctx context.Context, convID, userID uint, role string) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) CreateWithParticipants(ctx context.Context, conv *models.Conversation, participants []*models.ConversationParticipant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, p := range participants {
			p.ConversationID = conv.ID
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *conversationRepository) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", "is_active = ?", true).
		Preload("Participants.User").
		First(&conv, id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetByDirectKey(ctx context.Context, key string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", "is_active = ?", true).
		Preload("Participants.User").
		Where("direct_key = ?", key).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ? AND cp.is_active = ?", userID, true).
		Where("conversations.is_active = ?", true).
		Preload("Participants", "is_active = ?", true).
		Preload("Participants.User").
		// NULLS LAST spelled portably for both postgres and sqlite.
		Order("conversations.last_message_at IS NULL, conversations.last_message_at DESC").
		Find(&conversations).Error
	return conversations, err
}

func (r *conversationRepository) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *conversationRepository) GetParticipant(ctx context.Context, convID, userID uint) (*models.ConversationParticipant, error) {
	var p models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *conversationRepository) ListActiveParticipants(ctx context.Context, convID uint) ([]models.ConversationParticipant, error) {
	var participants []models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("conversation_id = ? AND is_active = ?", convID, true).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}

func (r *conversationRepository) ListActiveMembershipsForUser(ctx context.Context, userID uint) ([]models.ConversationParticipant, error) {
	var memberships []models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&memberships).Error
	return memberships, err
}

func (r *conversationRepository) UpsertParticipant(ctx context.Context, p *models.ConversationParticipant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_active": true,
			"role":      p.Role,
		}),
	}).Create(p).Error
}

func (r *conversationRepository) DeactivateParticipant(ctx context.Context, convID, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("is_active", false).Error
}

func (r *conversationRepository) SetParticipantRole(ctx context.Context, convID, userID uint, role string) error {
	return r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", convID, userID, true).
		Update("role", role).Error
}
