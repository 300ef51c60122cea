package seed

import (
	"os"
	"path/filepath"
	"testing"

	"hearth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
	))
	return db
}

func TestSeeder_Run(t *testing.T) {
	db := setupSeedDB(t)
	seeder := NewSeeder(db, Options{
		NumUsers:          6,
		NumConversations:  8,
		MessagesPerConv:   3,
		GroupRatioPercent: 50,
		SkipBcrypt:        true,
	})

	require.NoError(t, seeder.Run())

	var userCount, convCount, participantCount, msgCount int64
	db.Model(&models.User{}).Count(&userCount)
	db.Model(&models.Conversation{}).Count(&convCount)
	db.Model(&models.ConversationParticipant{}).Count(&participantCount)
	db.Model(&models.Message{}).Count(&msgCount)

	assert.Equal(t, int64(6), userCount)
	assert.Equal(t, int64(8), convCount)
	assert.GreaterOrEqual(t, participantCount, convCount*2)
	assert.Greater(t, msgCount, int64(0))

	// Every direct conversation carries its dedup key, and no key repeats.
	var directs []models.Conversation
	require.NoError(t, db.Where("type = ?", models.ConversationTypeDirect).Find(&directs).Error)
	keys := make(map[string]bool)
	for _, c := range directs {
		require.NotNil(t, c.DirectKey)
		assert.False(t, keys[*c.DirectKey], "duplicate direct key %s", *c.DirectKey)
		keys[*c.DirectKey] = true
	}

	// Group conversations have names and an admin.
	var groups []models.Conversation
	require.NoError(t, db.Where("type = ?", models.ConversationTypeGroup).Find(&groups).Error)
	for _, g := range groups {
		assert.NotEmpty(t, g.Name)
		var adminCount int64
		db.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND role = ?", g.ID, models.ParticipantRoleAdmin).
			Count(&adminCount)
		assert.Equal(t, int64(1), adminCount)
	}
}

func TestSeeder_CleanRun(t *testing.T) {
	db := setupSeedDB(t)
	opts := Options{NumUsers: 3, NumConversations: 2, MessagesPerConv: 2, SkipBcrypt: true}

	require.NoError(t, NewSeeder(db, opts).Run())

	opts.ShouldClean = true
	require.NoError(t, NewSeeder(db, opts).Run())

	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	assert.Equal(t, int64(3), userCount)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
users: 50
conversations: 80
messages_per_conversation: 20
group_ratio_percent: 25
clean: true
skip_bcrypt: true
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	opts := p.Options()
	assert.Equal(t, 50, opts.NumUsers)
	assert.Equal(t, 80, opts.NumConversations)
	assert.Equal(t, 20, opts.MessagesPerConv)
	assert.Equal(t, 25, opts.GroupRatioPercent)
	assert.True(t, opts.ShouldClean)
	assert.True(t, opts.SkipBcrypt)

	_, err = LoadProfile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("users: [not an int"), 0o644))
	_, err = LoadProfile(bad)
	assert.Error(t, err)
}
