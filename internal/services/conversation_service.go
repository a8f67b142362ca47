package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"converso-backend/internal/models"
	"converso-backend/internal/store"
)

// defaultAIChatName is the stored display name of assistant conversations.
const defaultAIChatName = "AI Assistant"

// ConversationService is the conversation registry and read-state tracker:
// lifecycle, membership, private-pair uniqueness, authorization, unread
// accounting.
type ConversationService struct {
	store store.Store
}

// NewConversationService creates a new ConversationService.
func NewConversationService(s store.Store) *ConversationService {
	return &ConversationService{store: s}
}

// --- DTO mapping helpers shared by the conversation and message services ---

func mapUserSummary(u models.User) models.UserSummary {
	return models.UserSummary{ID: u.ID, Name: u.Name}
}

func mapMessage(item store.MessageWithAuthor) models.MessageResponse {
	resp := models.MessageResponse{
		ID:             item.Message.ID,
		ConversationID: item.Message.ConversationID,
		Content:        item.Message.Content,
		Type:           item.Message.Type,
		CreatedAt:      item.Message.CreatedAt,
	}
	if item.Author != nil {
		summary := mapUserSummary(*item.Author)
		resp.User = &summary
	}
	return resp
}

// otherParticipants drops the viewer from a participant list.
func otherParticipants(participants []models.User, viewerID uuid.UUID) []models.UserSummary {
	others := make([]models.UserSummary, 0, len(participants))
	for _, p := range participants {
		if p.ID == viewerID {
			continue
		}
		others = append(others, mapUserSummary(p))
	}
	return others
}

// displayName resolves what the viewer should call the conversation: the
// other participant's name for private chats, the stored name otherwise.
func displayName(c models.Conversation, participants []models.User, viewerID uuid.UUID) string {
	if c.Type == models.ConversationTypePrivate {
		for _, p := range participants {
			if p.ID != viewerID {
				return p.Name
			}
		}
		return "Unknown"
	}
	if c.Name != nil {
		return *c.Name
	}
	return "Unknown"
}

func mapSummary(s store.ConversationSummary, viewerID uuid.UUID) models.ConversationResponse {
	resp := models.ConversationResponse{
		ID:           s.Conversation.ID,
		Type:         s.Conversation.Type,
		Name:         displayName(s.Conversation, s.Participants, viewerID),
		Participants: otherParticipants(s.Participants, viewerID),
		UnreadCount:  s.UnreadCount,
		UpdatedAt:    s.Conversation.UpdatedAt,
	}
	if s.LatestMessage != nil {
		latest := mapMessage(*s.LatestMessage)
		resp.LatestMessage = &latest
	}
	return resp
}

// --- Registry operations ---

// GetOrCreatePrivate returns the unique private conversation between the
// caller and the friend, creating it if absent. Safe under concurrent first
// contact from both sides: the loser of the pair-claim race re-queries the
// winner, so (A,B) and (B,A) always converge on the same conversation.
func (s *ConversationService) GetOrCreatePrivate(ctx context.Context, userID, friendID uuid.UUID) (*models.ConversationResponse, error) {
	if friendID == uuid.Nil {
		return nil, invalid("friend_id", "friend_id is required")
	}
	if friendID == userID {
		return nil, invalid("friend_id", "cannot open a private conversation with yourself")
	}
	if _, err := s.store.GetUserByID(ctx, friendID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("friend_id", "user does not exist")
		}
		return nil, fmt.Errorf("failed to verify friend: %w", err)
	}

	conv, err := s.store.GetPrivateConversation(ctx, userID, friendID)
	if errors.Is(err, store.ErrNotFound) {
		conv, err = s.store.CreateConversation(ctx, store.CreateConversationParams{
			ID:             uuid.New(),
			Type:           models.ConversationTypePrivate,
			ParticipantIDs: []uuid.UUID{userID, friendID},
		})
		if errors.Is(err, store.ErrDuplicatePrivatePair) {
			// Lost the race: the other side created it first.
			conv, err = s.store.GetPrivateConversation(ctx, userID, friendID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get or create private conversation: %w", err)
	}

	return s.buildResponse(ctx, conv, userID)
}

// CreateGroup creates a named group conversation with the creator and the
// given participants attached atomically.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID uuid.UUID, req models.CreateGroupConversationRequest) (*models.ConversationResponse, error) {
	name := req.Name
	if name == "" {
		return nil, invalid("name", "name is required for group conversations")
	}

	ids := map[uuid.UUID]struct{}{creatorID: {}}
	for _, id := range req.ParticipantIDs {
		ids[id] = struct{}{}
	}
	if len(ids) < 2 {
		return nil, invalid("participant_ids", "a group needs at least one participant besides the creator")
	}

	participantIDs := make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		if _, err := s.store.GetUserByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, invalid("participant_ids", fmt.Sprintf("user %s does not exist", id))
			}
			return nil, fmt.Errorf("failed to verify participant: %w", err)
		}
		participantIDs = append(participantIDs, id)
	}

	conv, err := s.store.CreateConversation(ctx, store.CreateConversationParams{
		ID:             uuid.New(),
		Type:           models.ConversationTypeGroup,
		Name:           &name,
		ParticipantIDs: participantIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group conversation: %w", err)
	}
	return s.buildResponse(ctx, conv, creatorID)
}

// CreateAIChat creates an assistant conversation for the caller.
func (s *ConversationService) CreateAIChat(ctx context.Context, userID uuid.UUID) (*models.ConversationResponse, error) {
	name := defaultAIChatName
	conv, err := s.store.CreateConversation(ctx, store.CreateConversationParams{
		ID:             uuid.New(),
		Type:           models.ConversationTypeAI,
		Name:           &name,
		ParticipantIDs: []uuid.UUID{userID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ai conversation: %w", err)
	}
	return s.buildResponse(ctx, conv, userID)
}

// List returns the caller's conversations ordered by latest activity, each
// annotated with display name, latest message and unread count.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) (*models.ListConversationsResponse, error) {
	summaries, err := s.store.ListUserConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	out := make([]models.ConversationResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, mapSummary(summary, userID))
	}
	return &models.ListConversationsResponse{Conversations: out}, nil
}

// Get returns one conversation for a participant.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationResponse, error) {
	if err := s.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return s.buildResponse(ctx, conv, userID)
}

// Authorize fails with ErrUnauthorized unless the user is a participant.
// A missing conversation is indistinguishable from a foreign one.
func (s *ConversationService) Authorize(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to check participation: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// Delete removes a conversation and, via cascade, its messages and
// participation rows. Deleting an id that no longer exists is a no-op so
// client retries succeed.
func (s *ConversationService) Delete(ctx context.Context, conversationID, userID uuid.UUID) error {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get conversation: %w", err)
	}
	if err := s.Authorize(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// --- Read-state tracking ---

// MarkRead stamps the participant's read marker at now.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := s.store.MarkRead(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

// UnreadCount derives the participant's unread count. A participant who has
// viewed the conversation more recently than its last message gets 0.
func (s *ConversationService) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	n, err := s.store.UnreadCount(ctx, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func (s *ConversationService) buildResponse(ctx context.Context, conv *models.Conversation, viewerID uuid.UUID) (*models.ConversationResponse, error) {
	participants, err := s.store.GetParticipants(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	latest, err := s.store.LatestMessage(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest message: %w", err)
	}
	unread, err := s.store.UnreadCount(ctx, conv.ID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	resp := mapSummary(store.ConversationSummary{
		Conversation:  *conv,
		Participants:  participants,
		LatestMessage: latest,
		UnreadCount:   unread,
	}, viewerID)
	return &resp, nil
}
