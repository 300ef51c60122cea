// Package seed provides helpers to create demo and test data for the
// messaging database. These helpers are intended for development and testing
// only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"hearth/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateUser constructs and persists a sample directory user.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username:    gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		DisplayName: gofakeit.Name(),
		Email:       gofakeit.Email(),
		Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		IsActive:    true,
	}

	// Allow skipping bcrypt in dev fast mode.
	if f.opts.SkipBcrypt {
		user.PasswordHash = "password123"
	} else {
		hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.PasswordHash = string(hashed)
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateDirectConversation persists a direct conversation between two users,
// including the canonical direct key and both membership rows.
func (f *Factory) CreateDirectConversation(a, b *models.User) (*models.Conversation, error) {
	key := models.DirectConversationKey(a.ID, b.ID)
	conv := &models.Conversation{
		Type:      models.ConversationTypeDirect,
		CreatedBy: a.ID,
		IsActive:  true,
		DirectKey: &key,
	}
	return conv, f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		participants := []models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: a.ID, Role: models.ParticipantRoleMember, IsActive: true},
			{ConversationID: conv.ID, UserID: b.ID, Role: models.ParticipantRoleMember, IsActive: true},
		}
		return tx.Create(&participants).Error
	})
}

// CreateGroupConversation persists a group conversation with the first user
// as admin and the rest as members.
func (f *Factory) CreateGroupConversation(name string, users []*models.User) (*models.Conversation, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("group conversation requires at least one user")
	}
	conv := &models.Conversation{
		Type:        models.ConversationTypeGroup,
		Name:        name,
		Description: gofakeit.Sentence(8),
		CreatedBy:   users[0].ID,
		IsActive:    true,
	}
	return conv, f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		participants := make([]models.ConversationParticipant, 0, len(users))
		for i, u := range users {
			role := models.ParticipantRoleMember
			if i == 0 {
				role = models.ParticipantRoleAdmin
			}
			participants = append(participants, models.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         u.ID,
				Role:           role,
				IsActive:       true,
			})
		}
		return tx.Create(&participants).Error
	})
}

// CreateMessage persists a text message with a realistic created_at spread
// and advances the conversation's last-activity timestamp.
func (f *Factory) CreateMessage(conv *models.Conversation, sender *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	maxHours := f.opts.MaxHoursBack
	if maxHours <= 0 {
		maxHours = 24 * 14
	}
	createdAt := time.Now().UTC().
		Add(-time.Duration(f.rng.Intn(maxHours)) * time.Hour).
		Add(-time.Duration(f.rng.Intn(60)) * time.Minute)

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        gofakeit.Sentence(f.rng.Intn(12) + 3),
		Type:           models.MessageTypeText,
		CreatedAt:      createdAt,
	}
	for _, override := range overrides {
		override(msg)
	}

	return msg, f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", conv.ID, msg.CreatedAt).
			Update("last_message_at", msg.CreatedAt).Error
	})
}
