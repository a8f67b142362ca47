package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"converso-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// ErrDuplicatePrivatePair is returned when creating a private conversation for
// a pair of users that already has one. Callers recover by re-querying the
// existing conversation; the error never reaches a client.
var ErrDuplicatePrivatePair = errors.New("private conversation already exists for pair")

// CreateConversationParams contains parameters for creating a conversation
// with its participants attached atomically.
type CreateConversationParams struct {
	ID             uuid.UUID
	Type           models.ConversationType
	Name           *string
	ParticipantIDs []uuid.UUID
}

// AppendMessageParams contains parameters for appending a message.
// AuthorID is nil for bot/system messages.
type AppendMessageParams struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	AuthorID       *uuid.UUID
	Content        string
	Type           models.MessageType
}

// MessageWithAuthor is the typed projection of a message joined with its
// author summary. Author is nil for bot/system messages.
type MessageWithAuthor struct {
	Message models.Message
	Author  *models.User
}

// ConversationSummary is the typed projection backing the conversation list
// view: the conversation, all participants, the newest message (if any) and
// the requesting user's unread count.
type ConversationSummary struct {
	Conversation  models.Conversation
	Participants  []models.User
	LatestMessage *MessageWithAuthor
	UnreadCount   int
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// User operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Conversation operations
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetPrivateConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error)
	CreateConversation(ctx context.Context, arg CreateConversationParams) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	ListUserConversations(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error)
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]models.User, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)

	// Message operations
	AppendMessage(ctx context.Context, arg AppendMessageParams) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]MessageWithAuthor, error)
	LatestMessage(ctx context.Context, conversationID uuid.UUID) (*MessageWithAuthor, error)
	RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)
	MessagesByIDs(ctx context.Context, ids []uuid.UUID) ([]MessageWithAuthor, error)
	SearchMessages(ctx context.Context, term string, limit int) ([]MessageWithAuthor, error)

	// Read-state operations
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error
	UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
}
