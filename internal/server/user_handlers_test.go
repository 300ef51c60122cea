package server

import (
	"fmt"
	"net/http"
	"testing"

	"hearth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserEndpoints(t *testing.T) {
	_, app, db := setupServerTest(t)
	alice := createUser(t, db, "alice")
	createUser(t, db, "alicia")
	createUser(t, db, "bob")

	t.Run("me", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/users/me", alice.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var me models.User
		decodeBody(t, resp, &me)
		assert.Equal(t, "alice", me.Username)
	})

	t.Run("profile by id", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/users/%d", alice.ID), alice.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doJSON(t, app, http.MethodGet, "/users/9999", alice.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("search", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/users/search?q=ali", alice.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var users []models.User
		decodeBody(t, resp, &users)
		assert.Len(t, users, 2)
	})

	t.Run("blank search returns empty list", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/users/search?q=", alice.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var users []models.User
		decodeBody(t, resp, &users)
		assert.Empty(t, users)
	})
}
