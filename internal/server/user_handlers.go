// Package server contains the HTTP handlers for the messaging API endpoints.
package server

import (
	"hearth/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetByID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, uerr := s.userService.GetByID(ctx, userID)
	if uerr != nil {
		return models.RespondWithError(c, errorStatus(uerr), uerr)
	}

	return c.JSON(user)
}

// SearchUsers handles GET /api/users/search.
//
//	@Summary	Search the user directory
//	@Tags		users
//	@Produce	json
//	@Param		q		query	string	true	"Query matched against username and display name"
//	@Param		limit	query	int		false	"Max results (default 20, max 50)"
//	@Param		offset	query	int		false	"Offset"
//	@Success	200	{array}	models.User
//	@Security	BearerAuth
//	@Router		/users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	ctx := c.UserContext()

	query := c.Query("q")
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	users, err := s.userService.Search(ctx, query, limit, offset)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(users)
}
