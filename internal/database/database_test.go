package database

import (
	"testing"

	"hearth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestModels_MigrationOrder(t *testing.T) {
	registered := Models()
	require.Len(t, registered, 4)

	// Users must come before the tables that reference them.
	assert.IsType(t, &models.User{}, registered[0])
	assert.IsType(t, &models.Message{}, registered[len(registered)-1])
}

func TestModels_AutoMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(Models()...))

	for _, table := range []string{"users", "conversations", "conversation_participants", "messages"} {
		assert.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}

	// The direct-conversation dedup constraint must exist after migration.
	assert.True(t, db.Migrator().HasIndex(&models.Conversation{}, "DirectKey"))
	assert.True(t, db.Migrator().HasIndex(&models.ConversationParticipant{}, "idx_conversation_user"))
}
