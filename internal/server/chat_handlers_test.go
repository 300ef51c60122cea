package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"hearth/internal/cache"
	"hearth/internal/config"
	"hearth/internal/featureflags"
	"hearth/internal/models"
	"hearth/internal/repository"
	"hearth/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testUserHeader = "X-Test-User"

// setupServerTest wires a Server against an in-memory database and returns a
// Fiber app with the real routes mounted behind a stub auth middleware that
// takes the caller's user ID from the X-Test-User header.
func setupServerTest(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
	))
	cache.SetClient(nil)

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)

	s := &Server{
		config:       &config.Config{JWTSecret: "test_secret", Env: "test"},
		db:           db,
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		userRepo:     userRepo,
		featureFlags: featureflags.NewManager("group_conversations=on,message_editing=on"),
		chatService:  service.NewChatService(convRepo, msgRepo, userRepo),
		userService:  service.NewUserService(userRepo),
	}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		var userID uint
		fmt.Sscanf(c.Get(testUserHeader), "%d", &userID)
		if userID == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Missing or invalid token"))
		}
		c.Locals("userID", userID)
		return c.Next()
	})

	app.Post("/conversations", s.CreateConversation)
	app.Get("/conversations", s.GetConversations)
	app.Get("/conversations/unread", s.GetTotalUnread)
	app.Get("/conversations/:id/messages", s.GetMessages)
	app.Post("/conversations/:id/messages", s.SendMessage)
	app.Put("/conversations/:id/messages/:messageId", s.EditMessage)
	app.Get("/conversations/:id/unread", s.GetUnreadCount)
	app.Post("/conversations/:id/participants", s.AddParticipant)
	app.Delete("/conversations/:id/participants/:userId", s.RemoveParticipant)
	app.Put("/conversations/:id/participants/:userId/role", s.SetParticipantRole)
	app.Delete("/conversations/:id", s.DeactivateConversation)
	app.Get("/conversations/:id", s.GetConversation)
	app.Get("/users/search", s.SearchUsers)
	app.Get("/users/me", s.GetMyProfile)
	app.Get("/users/:id", s.GetUserProfile)

	return s, app, db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		IsActive:    true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID uint, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set(testUserHeader, fmt.Sprintf("%d", userID))
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCreateConversationEndpoint(t *testing.T) {
	_, app, db := setupServerTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	t.Run("direct created then resolved", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
			"participant_ids": []uint{bob.ID},
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var created models.Conversation
		decodeBody(t, resp, &created)

		// Bob asking for the same pair resolves to the existing conversation.
		resp = doJSON(t, app, http.MethodPost, "/conversations", bob.ID, map[string]interface{}{
			"participant_ids": []uint{alice.ID},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var resolved models.Conversation
		decodeBody(t, resp, &resolved)
		assert.Equal(t, created.ID, resolved.ID)
	})

	t.Run("direct requires exactly one participant", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
			"participant_ids": []uint{},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
			"participant_ids": []uint{bob.ID, carol.ID},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("self conversation rejected", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
			"participant_ids": []uint{alice.ID},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("group created", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
			"type":            "group",
			"name":            "Pantry Shift",
			"participant_ids": []uint{bob.ID, carol.ID},
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var conv models.Conversation
		decodeBody(t, resp, &conv)
		assert.Equal(t, models.ConversationTypeGroup, conv.Type)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
			"type":            "broadcast",
			"participant_ids": []uint{bob.ID},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations", 0, map[string]interface{}{
			"participant_ids": []uint{bob.ID},
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestCreateConversationEndpoint_GroupFlagOff(t *testing.T) {
	s, app, db := setupServerTest(t)
	s.featureFlags = featureflags.NewManager("group_conversations=off")
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
		"type":            "group",
		"name":            "Pantry Shift",
		"participant_ids": []uint{bob.ID},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSendMessageEndpoint(t *testing.T) {
	_, app, db := setupServerTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	mallory := createUser(t, db, "mallory")

	resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
		"participant_ids": []uint{bob.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv models.Conversation
	decodeBody(t, resp, &conv)

	messagesPath := fmt.Sprintf("/conversations/%d/messages", conv.ID)

	t.Run("participant sends", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, messagesPath, alice.ID, map[string]interface{}{
			"content": "hello bob",
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var msg models.Message
		decodeBody(t, resp, &msg)
		assert.Equal(t, "hello bob", msg.Content)
		assert.Equal(t, alice.ID, msg.SenderID)
	})

	t.Run("non-participant forbidden", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, messagesPath, mallory.ID, map[string]interface{}{
			"content": "intruder",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing conversation", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations/9999/messages", alice.ID, map[string]interface{}{
			"content": "anyone?",
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("blank content rejected", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, messagesPath, alice.ID, map[string]interface{}{
			"content": "   ",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed conversation id", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/conversations/abc/messages", alice.ID, map[string]interface{}{
			"content": "hi",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMessageListingAndUnreadEndpoints(t *testing.T) {
	_, app, db := setupServerTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
		"participant_ids": []uint{bob.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv models.Conversation
	decodeBody(t, resp, &conv)

	for _, content := range []string{"one", "two", "three"} {
		resp := doJSON(t, app, http.MethodPost,
			fmt.Sprintf("/conversations/%d/messages", conv.ID), alice.ID,
			map[string]interface{}{"content": content})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	unreadPath := fmt.Sprintf("/conversations/%d/unread", conv.ID)

	var unread struct {
		UnreadCount int64 `json:"unread_count"`
	}
	resp = doJSON(t, app, http.MethodGet, unreadPath, bob.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &unread)
	assert.Equal(t, int64(3), unread.UnreadCount)

	resp = doJSON(t, app, http.MethodGet, "/conversations/unread", bob.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &unread)
	assert.Equal(t, int64(3), unread.UnreadCount)

	// Reading the page marks the conversation read.
	var page MessagesResponse
	resp = doJSON(t, app, http.MethodGet,
		fmt.Sprintf("/conversations/%d/messages?page=1&page_size=2", conv.ID), bob.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &page)
	assert.Len(t, page.Messages, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	resp = doJSON(t, app, http.MethodGet, unreadPath, bob.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &unread)
	assert.Equal(t, int64(0), unread.UnreadCount)

	// Alice's own messages were never unread for her.
	resp = doJSON(t, app, http.MethodGet, unreadPath, alice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &unread)
	assert.Equal(t, int64(0), unread.UnreadCount)
}

func TestEditMessageEndpoint(t *testing.T) {
	s, app, db := setupServerTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
		"participant_ids": []uint{bob.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv models.Conversation
	decodeBody(t, resp, &conv)

	resp = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/conversations/%d/messages", conv.ID), alice.ID,
		map[string]interface{}{"content": "typo"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg models.Message
	decodeBody(t, resp, &msg)

	editPath := fmt.Sprintf("/conversations/%d/messages/%d", conv.ID, msg.ID)

	t.Run("sender edits", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPut, editPath, alice.ID,
			map[string]interface{}{"content": "fixed"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var edited models.Message
		decodeBody(t, resp, &edited)
		assert.Equal(t, "fixed", edited.Content)
		assert.True(t, edited.IsEdited)
	})

	t.Run("other participant forbidden", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPut, editPath, bob.ID,
			map[string]interface{}{"content": "hijacked"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("flag off", func(t *testing.T) {
		s.featureFlags = featureflags.NewManager("message_editing=off")
		defer func() {
			s.featureFlags = featureflags.NewManager("group_conversations=on,message_editing=on")
		}()
		resp := doJSON(t, app, http.MethodPut, editPath, alice.ID,
			map[string]interface{}{"content": "nope"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestParticipantEndpoints(t *testing.T) {
	_, app, db := setupServerTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	dave := createUser(t, db, "dave")

	resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
		"type":            "group",
		"name":            "Drivers",
		"participant_ids": []uint{bob.ID, carol.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var group models.Conversation
	decodeBody(t, resp, &group)

	participantsPath := fmt.Sprintf("/conversations/%d/participants", group.ID)

	t.Run("member cannot add", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, participantsPath, bob.ID,
			map[string]interface{}{"user_id": dave.ID})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin adds", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, participantsPath, alice.ID,
			map[string]interface{}{"user_id": dave.ID})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing user_id rejected", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, participantsPath, alice.ID,
			map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("member leaves", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodDelete,
			fmt.Sprintf("%s/%d", participantsPath, carol.ID), carol.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("promotion requires admin", func(t *testing.T) {
		rolePath := fmt.Sprintf("%s/%d/role", participantsPath, bob.ID)
		resp := doJSON(t, app, http.MethodPut, rolePath, dave.ID,
			map[string]interface{}{"role": "admin"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = doJSON(t, app, http.MethodPut, rolePath, alice.ID,
			map[string]interface{}{"role": "admin"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestConversationLifecycleEndpoints(t *testing.T) {
	_, app, db := setupServerTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	mallory := createUser(t, db, "mallory")

	resp := doJSON(t, app, http.MethodPost, "/conversations", alice.ID, map[string]interface{}{
		"participant_ids": []uint{bob.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv models.Conversation
	decodeBody(t, resp, &conv)

	convPath := fmt.Sprintf("/conversations/%d", conv.ID)

	t.Run("participant fetches", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, convPath, alice.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("outsider cannot fetch", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, convPath, mallory.ID, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("listing shows counterpart name", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/conversations", alice.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var summaries []models.ConversationSummary
		decodeBody(t, resp, &summaries)
		require.Len(t, summaries, 1)
		assert.Equal(t, "bob", summaries[0].Name)
	})

	t.Run("deactivate then gone from listings", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodDelete, convPath, bob.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doJSON(t, app, http.MethodGet, "/conversations", alice.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var summaries []models.ConversationSummary
		decodeBody(t, resp, &summaries)
		assert.Empty(t, summaries)

		// History stays readable after deactivation.
		resp = doJSON(t, app, http.MethodGet, convPath+"/messages", alice.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doJSON(t, app, http.MethodDelete, convPath, alice.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
