// Package service provides the application business logic for conversations,
// messages, and the user directory.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hearth/internal/middleware"
	"hearth/internal/models"
	"hearth/internal/observability"
	"hearth/internal/repository"
	"hearth/internal/validation"

	"gorm.io/gorm"
)

// accessDeniedMessage is deliberately generic: it must not confirm or deny
// whether the conversation exists.
const accessDeniedMessage = "You do not have access to this conversation"

// ChatService composes the conversation, participant, and message stores into
// the public messaging operations, including authorization and unread
// tracking.
type ChatService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
}

// NewChatService returns a new ChatService.
func NewChatService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *ChatService {
	return &ChatService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
	}
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	ConversationID uint
	SenderID       uint
	Content        string
	Type           string
	AttachmentURL  string
	ReplyToID      *uint
}

// CreateGroupInput is the input for creating a group conversation.
type CreateGroupInput struct {
	RequesterID    uint
	ParticipantIDs []uint
	Name           string
	Description    string
	Avatar         string
}

// CreateOrGetDirect resolves a request for a direct conversation between the
// requester and another user to a single canonical conversation. The returned
// bool reports whether the conversation already existed. Lookup and creation
// race safely against concurrent callers: the unique direct key constraint
// makes a duplicate insert fail, and the loser transparently re-fetches the
// winner.
func (s *ChatService) CreateOrGetDirect(ctx context.Context, requesterID, otherUserID uint) (*models.Conversation, bool, error) {
	if otherUserID == requesterID {
		return nil, false, models.NewValidationError("Cannot start a direct conversation with yourself")
	}
	if err := s.resolveUsers(ctx, []uint{otherUserID}); err != nil {
		return nil, false, err
	}

	key := models.DirectConversationKey(requesterID, otherUserID)

	conv, err := s.convRepo.GetByDirectKey(ctx, key)
	switch {
	case err == nil:
		observability.DirectDedupHits.WithLabelValues("lookup").Inc()
		return conv, true, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, models.NewInternalError(err)
	}

	newConv := &models.Conversation{
		Type:      models.ConversationTypeDirect,
		CreatedBy: requesterID,
		IsActive:  true,
		DirectKey: &key,
	}
	// Roles are not meaningful in a two-party conversation.
	participants := []*models.ConversationParticipant{
		{UserID: requesterID, Role: models.ParticipantRoleMember, IsActive: true},
		{UserID: otherUserID, Role: models.ParticipantRoleMember, IsActive: true},
	}

	if err := s.convRepo.CreateWithParticipants(ctx, newConv, participants); err != nil {
		if repository.IsUniqueViolation(err) {
			// A concurrent caller created the same pair first. Resolve the
			// conflict internally and hand back the winner.
			observability.DirectDedupHits.WithLabelValues("conflict").Inc()
			middleware.Logger.InfoContext(ctx, "direct conversation dedup conflict resolved",
				slog.String("direct_key", key))
			winner, ferr := s.convRepo.GetByDirectKey(ctx, key)
			if ferr != nil {
				return nil, false, models.NewInternalError(
					models.NewConflictError("direct conversation already exists but could not be fetched", ferr))
			}
			return winner, true, nil
		}
		return nil, false, models.NewInternalError(err)
	}

	observability.ConversationsCreated.WithLabelValues(models.ConversationTypeDirect).Inc()

	created, err := s.convRepo.GetByID(ctx, newConv.ID)
	if err != nil {
		return nil, false, models.NewInternalError(err)
	}
	return created, false, nil
}

// CreateGroup creates a group conversation with the requester as admin and
// the given users as members, atomically.
func (s *ChatService) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Conversation, error) {
	if err := validation.ValidateGroupName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if len(in.ParticipantIDs) == 0 {
		return nil, models.NewValidationError("At least one participant is required")
	}

	memberIDs := dedupeIDs(in.ParticipantIDs, in.RequesterID)
	if err := s.resolveUsers(ctx, memberIDs); err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		Type:        models.ConversationTypeGroup,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Avatar:      in.Avatar,
		CreatedBy:   in.RequesterID,
		IsActive:    true,
	}
	participants := []*models.ConversationParticipant{
		{UserID: in.RequesterID, Role: models.ParticipantRoleAdmin, IsActive: true},
	}
	for _, id := range memberIDs {
		participants = append(participants, &models.ConversationParticipant{
			UserID: id, Role: models.ParticipantRoleMember, IsActive: true,
		})
	}

	if err := s.convRepo.CreateWithParticipants(ctx, conv, participants); err != nil {
		return nil, models.NewInternalError(err)
	}

	observability.ConversationsCreated.WithLabelValues(models.ConversationTypeGroup).Inc()
	s.appendSystemMessage(ctx, conv.ID, in.RequesterID, "created the group")

	return s.convRepo.GetByID(ctx, conv.ID)
}

// SendMessage appends a message to a conversation. The conversation must be
// active and the sender an active participant. The conversation's
// last-activity timestamp advances as part of the same unit of work.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	switch in.Type {
	case models.MessageTypeText:
		if err := validation.ValidateMessageContent(in.Content); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	case models.MessageTypeImage, models.MessageTypeFile:
		if in.AttachmentURL == "" {
			return nil, models.NewValidationError("An attachment URL is required for image and file messages")
		}
		if len(in.Content) > validation.MessageContentMaxLen {
			return nil, models.NewValidationError("Message content too long")
		}
	default:
		return nil, models.NewValidationError("Unsupported message type")
	}

	conv, err := s.getConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, models.NewNotFoundError("Conversation", in.ConversationID)
	}
	if !isActiveParticipant(conv, in.SenderID) {
		return nil, models.NewForbiddenError(accessDeniedMessage)
	}

	if in.ReplyToID != nil {
		// Reply references are weak pointers, but a reply may only target a
		// message of the same conversation.
		target, terr := s.msgRepo.GetByID(ctx, *in.ReplyToID)
		if terr != nil {
			if errors.Is(terr, gorm.ErrRecordNotFound) {
				return nil, models.NewValidationError("Reply target does not exist in this conversation")
			}
			return nil, models.NewInternalError(terr)
		}
		if target.ConversationID != in.ConversationID {
			return nil, models.NewValidationError("Reply target does not exist in this conversation")
		}
	}

	message := &models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           in.Type,
		AttachmentURL:  in.AttachmentURL,
		ReplyToID:      in.ReplyToID,
	}
	if err := s.msgRepo.Append(ctx, message); err != nil {
		return nil, models.NewInternalError(err)
	}

	observability.MessagesSent.WithLabelValues(in.Type).Inc()

	if sender, err := s.userRepo.GetByID(ctx, in.SenderID); err == nil {
		message.Sender = sender
	}
	return message, nil
}

// ListMessages returns one page of a conversation's messages ordered by
// (created_at, id) ascending and advances the requester's read cursor to the
// page's snapshot time. This is the sole mechanism that marks a conversation
// read. History stays readable for participants after deactivation.
func (s *ChatService) ListMessages(ctx context.Context, convID, requesterID uint, page, pageSize int) ([]*models.Message, *models.MessagePage, error) {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return nil, nil, err
	}
	if !isActiveParticipant(conv, requesterID) {
		return nil, nil, models.NewForbiddenError(accessDeniedMessage)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 100 {
		pageSize = 100
	}

	messages, total, _, err := s.msgRepo.ListPageAndAdvanceCursor(ctx, convID, requesterID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return messages, &models.MessagePage{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// EditMessage updates the content of the requester's own text message.
func (s *ChatService) EditMessage(ctx context.Context, convID, messageID, requesterID uint, content string) (*models.Message, error) {
	if verr := validation.ValidateMessageContent(content); verr != nil {
		return nil, models.NewValidationError(verr.Error())
	}

	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !isActiveParticipant(conv, requesterID) {
		return nil, models.NewForbiddenError(accessDeniedMessage)
	}

	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil || msg.ConversationID != convID {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewInternalError(err)
		}
		return nil, models.NewNotFoundError("Message", messageID)
	}
	if msg.SenderID != requesterID {
		return nil, models.NewForbiddenError("You can only edit your own messages")
	}
	if msg.Type != models.MessageTypeText {
		return nil, models.NewValidationError("Only text messages can be edited")
	}

	if err := s.msgRepo.UpdateContent(ctx, messageID, content, time.Now().UTC()); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.msgRepo.GetByID(ctx, messageID)
}

// ListConversations returns the caller's active conversations as summaries:
// resolved display name, last message preview, and unread count, ordered by
// recent activity with never-messaged conversations last.
func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	conversations, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := models.ConversationSummary{
			ID:            conv.ID,
			Type:          conv.Type,
			Name:          conv.Name,
			Avatar:        conv.Avatar,
			Participants:  conv.Participants,
			LastMessageAt: conv.LastMessageAt,
		}

		if conv.IsDirect() {
			if other := counterpart(conv, userID); other != nil && other.User != nil {
				summary.Name = other.User.Name()
				summary.Avatar = other.User.Avatar
			}
		}

		last, lerr := s.msgRepo.LatestForConversation(ctx, conv.ID)
		if lerr != nil && !errors.Is(lerr, gorm.ErrRecordNotFound) {
			return nil, models.NewInternalError(lerr)
		}
		summary.LastMessage = last

		self := participantOf(conv, userID)
		if self != nil {
			unread, uerr := s.msgRepo.CountUnread(ctx, conv.ID, userID, self.LastReadAt)
			if uerr != nil {
				return nil, models.NewInternalError(uerr)
			}
			summary.UnreadCount = unread
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// UnreadCount derives the number of unread messages for the user in one
// conversation from their read cursor. Messages they sent never count.
func (s *ChatService) UnreadCount(ctx context.Context, convID, userID uint) (int64, error) {
	p, err := s.convRepo.GetParticipant(ctx, convID, userID)
	if err != nil || !p.IsActive {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.NewInternalError(err)
		}
		return 0, models.NewForbiddenError(accessDeniedMessage)
	}
	count, err := s.msgRepo.CountUnread(ctx, convID, userID, p.LastReadAt)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// TotalUnread sums unread counts across all of the user's active memberships.
func (s *ChatService) TotalUnread(ctx context.Context, userID uint) (int64, error) {
	count, err := s.msgRepo.CountTotalUnread(ctx, userID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// AddParticipant adds (or reactivates) a member in a group conversation.
// Only admin participants may change membership; direct conversations have a
// fixed membership for life.
func (s *ChatService) AddParticipant(ctx context.Context, convID, actorID, newUserID uint) error {
	conv, err := s.requireGroupAdmin(ctx, convID, actorID)
	if err != nil {
		return err
	}
	if err := s.resolveUsers(ctx, []uint{newUserID}); err != nil {
		return err
	}
	if p := participantOf(conv, newUserID); p != nil {
		return models.NewValidationError("User is already a participant")
	}

	if err := s.convRepo.UpsertParticipant(ctx, &models.ConversationParticipant{
		ConversationID: convID,
		UserID:         newUserID,
		Role:           models.ParticipantRoleMember,
		IsActive:       true,
	}); err != nil {
		return models.NewInternalError(err)
	}

	if user, uerr := s.userRepo.GetByID(ctx, newUserID); uerr == nil {
		s.appendSystemMessage(ctx, convID, actorID, fmt.Sprintf("added %s", user.Name()))
	}
	return nil
}

// RemoveParticipant soft-removes a member from a group conversation. Admins
// may remove anyone; a member may remove themselves (leave).
func (s *ChatService) RemoveParticipant(ctx context.Context, convID, actorID, targetID uint) error {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsActive {
		return models.NewNotFoundError("Conversation", convID)
	}
	if conv.IsDirect() {
		return models.NewValidationError("Direct conversation membership is fixed at creation")
	}

	actor := participantOf(conv, actorID)
	if actor == nil {
		return models.NewForbiddenError(accessDeniedMessage)
	}
	if actorID != targetID && actor.Role != models.ParticipantRoleAdmin {
		return models.NewForbiddenError("Only group admins can remove participants")
	}
	if participantOf(conv, targetID) == nil {
		return models.NewValidationError("User is not a participant")
	}

	if err := s.convRepo.DeactivateParticipant(ctx, convID, targetID); err != nil {
		return models.NewInternalError(err)
	}

	if actorID == targetID {
		s.appendSystemMessage(ctx, convID, actorID, "left the group")
	} else if user, uerr := s.userRepo.GetByID(ctx, targetID); uerr == nil {
		s.appendSystemMessage(ctx, convID, actorID, fmt.Sprintf("removed %s", user.Name()))
	}
	return nil
}

// SetRole changes a group participant's role. Admin participants only.
func (s *ChatService) SetRole(ctx context.Context, convID, actorID, targetID uint, role string) error {
	if role != models.ParticipantRoleAdmin && role != models.ParticipantRoleMember {
		return models.NewValidationError("Role must be admin or member")
	}
	conv, err := s.requireGroupAdmin(ctx, convID, actorID)
	if err != nil {
		return err
	}
	if participantOf(conv, targetID) == nil {
		return models.NewValidationError("User is not a participant")
	}
	if err := s.convRepo.SetParticipantRole(ctx, convID, targetID, role); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetConversationForUser returns the conversation if the user participates in
// it. Deactivated conversations remain readable so history stays accessible.
func (s *ChatService) GetConversationForUser(ctx context.Context, convID, userID uint) (*models.Conversation, error) {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !isActiveParticipant(conv, userID) {
		return nil, models.NewForbiddenError(accessDeniedMessage)
	}
	return conv, nil
}

// Deactivate retires a conversation. Terminal: it disappears from listings
// and rejects further sends; nothing reactivates it. Direct conversations may
// be deactivated by either participant, groups by admins only.
func (s *ChatService) Deactivate(ctx context.Context, convID, actorID uint) error {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsActive {
		return models.NewNotFoundError("Conversation", convID)
	}

	actor := participantOf(conv, actorID)
	if actor == nil {
		return models.NewForbiddenError(accessDeniedMessage)
	}
	if !conv.IsDirect() && actor.Role != models.ParticipantRoleAdmin {
		return models.NewForbiddenError("Only group admins can deactivate a conversation")
	}

	if err := s.convRepo.Deactivate(ctx, convID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *ChatService) getConversation(ctx context.Context, convID uint) (*models.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Conversation", convID)
		}
		return nil, models.NewInternalError(err)
	}
	return conv, nil
}

func (s *ChatService) requireGroupAdmin(ctx context.Context, convID, actorID uint) (*models.Conversation, error) {
	conv, err := s.getConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, models.NewNotFoundError("Conversation", convID)
	}
	if conv.IsDirect() {
		return nil, models.NewValidationError("Direct conversation membership is fixed at creation")
	}
	actor := participantOf(conv, actorID)
	if actor == nil {
		return nil, models.NewForbiddenError(accessDeniedMessage)
	}
	if actor.Role != models.ParticipantRoleAdmin {
		return nil, models.NewForbiddenError("Only group admins can manage participants")
	}
	return conv, nil
}

// resolveUsers validates that every id resolves to an existing active user in
// the directory.
func (s *ChatService) resolveUsers(ctx context.Context, ids []uint) error {
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(users) == len(ids) {
		return nil
	}
	found := make(map[uint]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return models.NewValidationError(fmt.Sprintf("User %d does not exist", id))
		}
	}
	return nil
}

// appendSystemMessage records a membership event in the conversation. Best
// effort: a failure is logged, not surfaced.
func (s *ChatService) appendSystemMessage(ctx context.Context, convID, actorID uint, text string) {
	msg := &models.Message{
		ConversationID: convID,
		SenderID:       actorID,
		Content:        text,
		Type:           models.MessageTypeSystem,
	}
	if err := s.msgRepo.Append(ctx, msg); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to append system message",
			slog.Uint64("conversation_id", uint64(convID)),
			slog.String("error", err.Error()))
		return
	}
	observability.MessagesSent.WithLabelValues(models.MessageTypeSystem).Inc()
}

func isActiveParticipant(conv *models.Conversation, userID uint) bool {
	return participantOf(conv, userID) != nil
}

// participantOf returns the user's active participant row, nil if absent.
// GetByID only preloads active rows, so no IsActive re-check is needed.
func participantOf(conv *models.Conversation, userID uint) *models.ConversationParticipant {
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID && conv.Participants[i].IsActive {
			return &conv.Participants[i]
		}
	}
	return nil
}

// counterpart returns the other participant of a direct conversation.
func counterpart(conv *models.Conversation, userID uint) *models.ConversationParticipant {
	for i := range conv.Participants {
		if conv.Participants[i].UserID != userID {
			return &conv.Participants[i]
		}
	}
	return nil
}

func dedupeIDs(ids []uint, exclude uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
