package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreatePrivateConversationRequest asks for the unique private conversation
// with the given friend, creating it if absent.
type CreatePrivateConversationRequest struct {
	FriendID uuid.UUID `json:"friend_id"`
}

// CreateGroupConversationRequest creates a named group conversation.
type CreateGroupConversationRequest struct {
	Name           string      `json:"name"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

// SendMessageRequest defines the body for posting a message to a conversation.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Never includes the password hash.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// UserSummary is the compact author projection attached to messages and
// participant lists.
type UserSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// MessageResponse is the API projection of a stored message. User is nil for
// bot and system messages.
type MessageResponse struct {
	ID             uuid.UUID    `json:"id"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	User           *UserSummary `json:"user"`
	Content        string       `json:"content"`
	Type           MessageType  `json:"type"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ConversationResponse annotates a conversation with everything the client
// list view needs: derived display name, the other participants, the latest
// message and the caller's unread count.
type ConversationResponse struct {
	ID            uuid.UUID        `json:"id"`
	Type          ConversationType `json:"type"`
	Name          string           `json:"name"`
	Participants  []UserSummary    `json:"participants"`
	LatestMessage *MessageResponse `json:"latest_message"`
	UnreadCount   int              `json:"unread_count"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ListConversationsResponse wraps the conversation list payload.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// MessagesResponse wraps a conversation's message log.
type MessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// SearchResult is one conversation matched by a message-content search,
// carrying the newest matching message.
type SearchResult struct {
	ID             uuid.UUID        `json:"id"`
	Type           ConversationType `json:"type"`
	Name           string           `json:"name"`
	Participants   []UserSummary    `json:"participants"`
	MatchedMessage *MessageResponse `json:"matched_message"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Conversations []SearchResult `json:"conversations"`
}

// ErrorResponse defines the standard structure for API errors. Fields carries
// per-field validation messages for 422 responses.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// --- Realtime events ---

// EventMessageCreated is the event name broadcast on a conversation channel
// when a message is appended.
const EventMessageCreated = "message.created"

// MessageEvent is the frame delivered to websocket subscribers. Delivery is
// at-least-once: the message id is the consumer's de-duplication key, and a
// consumer that already holds that id must discard the duplicate instead of
// re-inserting it.
type MessageEvent struct {
	Event          string          `json:"event"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Message        MessageResponse `json:"message"`
}

// BotJob is the payload of one asynchronous bot-response task. The queue task
// id is the triggering message id, which keeps replies idempotent under retry.
type BotJob struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	Content        string    `json:"content"`
	RequesterID    uuid.UUID `json:"requester_id"`
}
