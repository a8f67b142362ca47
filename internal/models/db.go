package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationType enumerates the kinds of conversations the engine supports.
type ConversationType string

const (
	ConversationTypePrivate ConversationType = "private"
	ConversationTypeGroup   ConversationType = "group"
	ConversationTypeAI      ConversationType = "ai"
)

// MessageType describes who produced a message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeBot    MessageType = "bot"
	MessageTypeSystem MessageType = "system"
)

// User represents a user in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Conversation is a container of ordered messages among a fixed set of participants.
// Name is NULL for private conversations; their display name is derived from the
// other participant at read time.
type Conversation struct {
	ID        uuid.UUID        `db:"id"`
	Type      ConversationType `db:"type"`
	Name      *string          `db:"name"`
	CreatedAt time.Time        `db:"created_at"`
	UpdatedAt time.Time        `db:"updated_at"`
}

// Participant is a user's membership record in a conversation. LastReadAt stays
// NULL until the user first reads the conversation, which counts as "everything
// unread".
type Participant struct {
	ConversationID uuid.UUID  `db:"conversation_id"`
	UserID         uuid.UUID  `db:"user_id"`
	LastReadAt     *time.Time `db:"last_read_at"`
}

// Message is an immutable entry in a conversation's append-only log.
// AuthorID is NULL for bot and system messages; bot authorship is
// conversation-scoped, not user-scoped. Seq breaks created_at ties so the
// ordering within a conversation is total.
type Message struct {
	ID             uuid.UUID   `db:"id"`
	ConversationID uuid.UUID   `db:"conversation_id"`
	AuthorID       *uuid.UUID  `db:"user_id"`
	Content        string      `db:"content"`
	Type           MessageType `db:"type"`
	Seq            int64       `db:"seq"`
	CreatedAt      time.Time   `db:"created_at"`
}
