// Package server contains the HTTP handlers for the messaging API endpoints.
package server

import (
	"hearth/internal/models"
	"hearth/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversationRequest is the request body for POST /api/conversations.
type CreateConversationRequest struct {
	Type           string `json:"type"`
	ParticipantIDs []uint `json:"participant_ids"`
	Name           string `json:"name,omitempty"`
	Description    string `json:"description,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
}

// SendMessageRequest is the request body for POST /api/conversations/:id/messages.
type SendMessageRequest struct {
	Content       string `json:"content"`
	Type          string `json:"type,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	ReplyToID     *uint  `json:"reply_to_id,omitempty"`
}

// MessagesResponse is the response shape for a message listing page.
type MessagesResponse struct {
	Messages   []*models.Message  `json:"messages"`
	Pagination *models.MessagePage `json:"pagination"`
}

// CreateConversation handles POST /api/conversations.
// For direct conversations the endpoint is a resolver: it returns the
// existing conversation (200) when the pair already has one, and creates it
// (201) otherwise.
//
//	@Summary		Create or resolve a conversation
//	@Tags			conversations
//	@Accept			json
//	@Produce		json
//	@Param			request	body	CreateConversationRequest	true	"Conversation details"
//	@Success		200		{object}	models.Conversation
//	@Success		201		{object}	models.Conversation
//	@Failure		400		{object}	models.ErrorResponse
//	@Security		BearerAuth
//	@Router			/conversations [post]
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req CreateConversationRequest
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	switch req.Type {
	case models.ConversationTypeDirect, "":
		if len(req.ParticipantIDs) != 1 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Direct conversations require exactly one other participant"))
		}
		conv, existed, err := s.chatService.CreateOrGetDirect(ctx, userID, req.ParticipantIDs[0])
		if err != nil {
			return models.RespondWithError(c, errorStatus(err), err)
		}
		if existed {
			return c.Status(fiber.StatusOK).JSON(conv)
		}
		return c.Status(fiber.StatusCreated).JSON(conv)

	case models.ConversationTypeGroup:
		if !s.featureFlags.Enabled("group_conversations", userID) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Group conversations are not available for your account yet"))
		}
		conv, err := s.chatService.CreateGroup(ctx, service.CreateGroupInput{
			RequesterID:    userID,
			ParticipantIDs: req.ParticipantIDs,
			Name:           req.Name,
			Description:    req.Description,
			Avatar:         req.Avatar,
		})
		if err != nil {
			return models.RespondWithError(c, errorStatus(err), err)
		}
		return c.Status(fiber.StatusCreated).JSON(conv)

	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Conversation type must be direct or group"))
	}
}

// GetConversations handles GET /api/conversations.
//
//	@Summary	List the caller's conversations
//	@Tags		conversations
//	@Produce	json
//	@Success	200	{array}	models.ConversationSummary
//	@Security	BearerAuth
//	@Router		/conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	summaries, err := s.chatService.ListConversations(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(summaries)
}

// GetConversation handles GET /api/conversations/:id.
func (s *Server) GetConversation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	conv, err := s.chatService.GetConversationForUser(ctx, convID, userID)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(conv)
}

// GetMessages handles GET /api/conversations/:id/messages.
// Fetching a page also advances the caller's read cursor: reading is what
// marks messages read.
//
//	@Summary	List messages in a conversation
//	@Tags		messages
//	@Produce	json
//	@Param		id			path	int	true	"Conversation ID"
//	@Param		page		query	int	false	"Page (1-based)"
//	@Param		page_size	query	int	false	"Page size (max 100)"
//	@Success	200	{object}	MessagesResponse
//	@Security	BearerAuth
//	@Router		/conversations/{id}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 50)

	messages, pagination, err := s.chatService.ListMessages(ctx, convID, userID, page.Page, page.PageSize)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(MessagesResponse{
		Messages:   messages,
		Pagination: pagination,
	})
}

// SendMessage handles POST /api/conversations/:id/messages.
//
//	@Summary	Send a message
//	@Tags		messages
//	@Accept		json
//	@Produce	json
//	@Param		id		path	int					true	"Conversation ID"
//	@Param		request	body	SendMessageRequest	true	"Message"
//	@Success	201	{object}	models.Message
//	@Failure	400	{object}	models.ErrorResponse
//	@Failure	403	{object}	models.ErrorResponse
//	@Security	BearerAuth
//	@Router		/conversations/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req SendMessageRequest
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
		ConversationID: convID,
		SenderID:       userID,
		Content:        req.Content,
		Type:           req.Type,
		AttachmentURL:  req.AttachmentURL,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// EditMessage handles PUT /api/conversations/:id/messages/:messageId.
func (s *Server) EditMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	messageID, err := s.parseID(c, "messageId")
	if err != nil {
		return nil
	}

	if !s.featureFlags.Enabled("message_editing", userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Message editing is not available for your account yet"))
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.chatService.EditMessage(ctx, convID, messageID, userID, req.Content)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(message)
}

// GetUnreadCount handles GET /api/conversations/:id/unread.
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.chatService.UnreadCount(ctx, convID, userID)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(fiber.Map{"unread_count": count})
}

// GetTotalUnread handles GET /api/conversations/unread.
//
//	@Summary	Total unread messages across all conversations
//	@Tags		conversations
//	@Produce	json
//	@Success	200	{object}	map[string]int64
//	@Security	BearerAuth
//	@Router		/conversations/unread [get]
func (s *Server) GetTotalUnread(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	count, err := s.chatService.TotalUnread(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(fiber.Map{"unread_count": count})
}

// AddParticipant handles POST /api/conversations/:id/participants.
func (s *Server) AddParticipant(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		UserID uint `json:"user_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil || req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.chatService.AddParticipant(ctx, convID, userID, req.UserID); err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(fiber.Map{"message": "Participant added"})
}

// RemoveParticipant handles DELETE /api/conversations/:id/participants/:userId.
// Admins may remove anyone; a member may remove themselves to leave.
func (s *Server) RemoveParticipant(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.chatService.RemoveParticipant(ctx, convID, userID, targetID); err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(fiber.Map{"message": "Participant removed"})
}

// SetParticipantRole handles PUT /api/conversations/:id/participants/:userId/role.
func (s *Server) SetParticipantRole(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Role string `json:"role"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.chatService.SetRole(ctx, convID, userID, targetID, req.Role); err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(fiber.Map{"message": "Role updated"})
}

// DeactivateConversation handles DELETE /api/conversations/:id.
// Deactivation is terminal: the conversation stops accepting messages and
// disappears from listings, but its history stays readable.
func (s *Server) DeactivateConversation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.chatService.Deactivate(ctx, convID, userID); err != nil {
		return models.RespondWithError(c, errorStatus(err), err)
	}

	return c.JSON(fiber.Map{"message": "Conversation deactivated"})
}
