package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"converso-backend/internal/models"
	"converso-backend/internal/queue"
	"converso-backend/internal/search"
	"converso-backend/internal/store"
)

// defaultSearchLimit bounds a search when the client does not pass one.
const defaultSearchLimit = 100

// Broadcaster fans an event payload out to a conversation's live subscribers.
// Satisfied by realtime.Hub.
type Broadcaster interface {
	Publish(conversationID uuid.UUID, payload []byte, excludeUserID uuid.UUID) int
}

// MessageService owns the append-only message log and everything that hangs
// off an append: realtime fan-out, search indexing and bot-job dispatch.
type MessageService struct {
	store       store.Store
	convos      *ConversationService
	hub         Broadcaster
	gateway     *search.Gateway
	botQueue    queue.Client
	botTaskType string
}

// NewMessageService creates a new MessageService.
func NewMessageService(s store.Store, convos *ConversationService, hub Broadcaster, gateway *search.Gateway, botQueue queue.Client) *MessageService {
	return &MessageService{
		store:       s,
		convos:      convos,
		hub:         hub,
		gateway:     gateway,
		botQueue:    botQueue,
		botTaskType: TaskTypeBotResponse,
	}
}

// Send appends a user message. The message is durable once this returns;
// broadcast, indexing and bot dispatch happen after the commit and their
// failures never roll it back.
func (s *MessageService) Send(ctx context.Context, conversationID, userID uuid.UUID, req models.SendMessageRequest) (*models.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalid("content", "content cannot be empty")
	}

	if err := s.convos.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	msg, err := s.store.AppendMessage(ctx, store.AppendMessageParams{
		ID:             uuid.New(),
		ConversationID: conversationID,
		AuthorID:       &userID,
		Content:        content,
		Type:           models.MessageTypeUser,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	resp := models.MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		Type:           msg.Type,
		CreatedAt:      msg.CreatedAt,
	}
	if author, err := s.store.GetUserByID(ctx, userID); err == nil {
		summary := mapUserSummary(*author)
		resp.User = &summary
	}

	s.publish(conversationID, resp, userID)
	s.index(ctx, *msg)

	if conv.Type == models.ConversationTypeAI {
		s.dispatchBotJob(ctx, *msg, userID)
	}

	return &resp, nil
}

// AppendBot appends an assistant reply. The caller passes the triggering
// entry point's context; author is nil and the event excludes nobody.
func (s *MessageService) AppendBot(ctx context.Context, conversationID uuid.UUID, content string) (*models.MessageResponse, error) {
	msg, err := s.store.AppendMessage(ctx, store.AppendMessageParams{
		ID:             uuid.New(),
		ConversationID: conversationID,
		AuthorID:       nil,
		Content:        content,
		Type:           models.MessageTypeBot,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to append bot message: %w", err)
	}

	resp := models.MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		Type:           msg.Type,
		CreatedAt:      msg.CreatedAt,
	}
	s.publish(conversationID, resp, uuid.Nil)
	s.index(ctx, *msg)
	return &resp, nil
}

// List returns a conversation's full log in insertion order and stamps the
// caller's read marker, so fetching the log always zeroes the unread count.
func (s *MessageService) List(ctx context.Context, conversationID, userID uuid.UUID) (*models.MessagesResponse, error) {
	if err := s.convos.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	items, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if err := s.store.MarkRead(ctx, conversationID, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("WARN [MessageService] List: failed to mark read for user %s: %v", userID, err)
	}

	out := make([]models.MessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, mapMessage(item))
	}
	return &models.MessagesResponse{Messages: out}, nil
}

// Search finds the caller's conversations containing messages that match the
// term. Results are grouped per conversation, each carrying its newest
// matching message, ordered by match recency. Matches in conversations the
// caller does not belong to are filtered out regardless of where they came
// from.
func (s *MessageService) Search(ctx context.Context, userID uuid.UUID, term string, limit int) (*models.SearchResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, invalid("q", "search term cannot be empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	summaries, err := s.store.ListUserConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	allowed := make(map[uuid.UUID]store.ConversationSummary, len(summaries))
	for _, summary := range summaries {
		allowed[summary.Conversation.ID] = summary
	}

	matches, err := s.gateway.Search(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	// matches arrive newest first, so the first hit per conversation is the
	// one to keep.
	var ordered []uuid.UUID
	newest := make(map[uuid.UUID]store.MessageWithAuthor)
	for _, item := range matches {
		convID := item.Message.ConversationID
		if _, ok := allowed[convID]; !ok {
			continue
		}
		if _, seen := newest[convID]; seen {
			continue
		}
		newest[convID] = item
		ordered = append(ordered, convID)
	}

	results := make([]models.SearchResult, 0, len(ordered))
	for _, convID := range ordered {
		summary := allowed[convID]
		match := mapMessage(newest[convID])
		results = append(results, models.SearchResult{
			ID:             summary.Conversation.ID,
			Type:           summary.Conversation.Type,
			Name:           displayName(summary.Conversation, summary.Participants, userID),
			Participants:   otherParticipants(summary.Participants, userID),
			MatchedMessage: &match,
			UpdatedAt:      summary.Conversation.UpdatedAt,
		})
	}
	return &models.SearchResponse{Conversations: results}, nil
}

func (s *MessageService) publish(conversationID uuid.UUID, msg models.MessageResponse, excludeUserID uuid.UUID) {
	if s.hub == nil {
		return
	}
	event := models.MessageEvent{
		Event:          models.EventMessageCreated,
		ConversationID: conversationID,
		Message:        msg,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR [MessageService] publish: failed to marshal event: %v", err)
		return
	}
	s.hub.Publish(conversationID, payload, excludeUserID)
}

func (s *MessageService) index(ctx context.Context, msg models.Message) {
	if s.gateway == nil {
		return
	}
	s.gateway.IndexMessage(ctx, search.Document{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.AuthorID,
		Content:        msg.Content,
		Type:           string(msg.Type),
		CreatedAt:      msg.CreatedAt,
	})
}

// dispatchBotJob enqueues the assistant reply for the triggering message.
// Task ID is the message id: a retried send of the same message never queues
// a second reply. Enqueue failure is logged, not surfaced; the user message
// is already committed.
func (s *MessageService) dispatchBotJob(ctx context.Context, msg models.Message, requesterID uuid.UUID) {
	if s.botQueue == nil {
		return
	}
	job := models.BotJob{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Content:        msg.Content,
		RequesterID:    requesterID,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		log.Printf("ERROR [MessageService] dispatchBotJob: failed to marshal job: %v", err)
		return
	}
	task := queue.Task{
		Type:    s.botTaskType,
		ID:      msg.ID.String(),
		Payload: payload,
	}
	if err := s.botQueue.Enqueue(ctx, task); err != nil {
		log.Printf("ERROR [MessageService] dispatchBotJob: failed to enqueue bot response for message %s: %v", msg.ID, err)
	}
}
