package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"converso-backend/internal/models"
	"converso-backend/internal/store"
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// orderPair returns the pair sorted by byte order so (a,b) and (b,a) map to
// the same unique key.
func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

const getConversation = `-- name: GetConversation :one
SELECT id, type, name, created_at, updated_at
FROM conversations
WHERE id = $1;
`

func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(ctx, getConversation, id).Scan(
		&c.ID,
		&c.Type,
		&c.Name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning conversation: %w", err)
	}
	return &c, nil
}

const getPrivateConversation = `-- name: GetPrivateConversation :one
SELECT c.id, c.type, c.name, c.created_at, c.updated_at
FROM conversations c
JOIN conversation_private_pairs p ON p.conversation_id = c.id
WHERE p.user_lo = $1 AND p.user_hi = $2;
`

// GetPrivateConversation returns the unique private conversation between the
// two users, in either argument order. store.ErrNotFound when none exists.
func (s *PostgresStore) GetPrivateConversation(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	lo, hi := orderPair(userA, userB)

	var c models.Conversation
	err := s.db.QueryRow(ctx, getPrivateConversation, lo, hi).Scan(
		&c.ID,
		&c.Type,
		&c.Name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning private conversation: %w", err)
	}
	return &c, nil
}

// CreateConversation inserts a conversation and attaches its participants in a
// single transaction. For private conversations it also claims the unordered
// pair row; a concurrent claim surfaces as store.ErrDuplicatePrivatePair and
// the caller re-queries the winner.
func (s *PostgresStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertConversation = `
		INSERT INTO conversations (id, type, name)
		VALUES ($1, $2, $3)
		RETURNING id, type, name, created_at, updated_at;`

	var c models.Conversation
	err = tx.QueryRow(ctx, insertConversation, arg.ID, arg.Type, arg.Name).Scan(
		&c.ID,
		&c.Type,
		&c.Name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error inserting conversation: %w", err)
	}

	if arg.Type == models.ConversationTypePrivate {
		if len(arg.ParticipantIDs) != 2 {
			return nil, fmt.Errorf("private conversation requires exactly 2 participants, got %d", len(arg.ParticipantIDs))
		}
		lo, hi := orderPair(arg.ParticipantIDs[0], arg.ParticipantIDs[1])

		const insertPair = `
			INSERT INTO conversation_private_pairs (conversation_id, user_lo, user_hi)
			VALUES ($1, $2, $3);`
		if _, err := tx.Exec(ctx, insertPair, c.ID, lo, hi); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return nil, store.ErrDuplicatePrivatePair
			}
			return nil, fmt.Errorf("error claiming private pair: %w", err)
		}
	}

	const insertParticipant = `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id, user_id) DO NOTHING;`
	for _, userID := range arg.ParticipantIDs {
		if _, err := tx.Exec(ctx, insertParticipant, c.ID, userID); err != nil {
			return nil, fmt.Errorf("error attaching participant %s: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("error committing conversation: %w", err)
	}
	return &c, nil
}

const deleteConversation = `-- name: DeleteConversation :exec
DELETE FROM conversations
WHERE id = $1;
`

// DeleteConversation removes a conversation; messages, participation rows and
// the private-pair claim go with it via ON DELETE CASCADE. Deleting an absent
// id is a no-op so client retries stay cheap.
func (s *PostgresStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, deleteConversation, id); err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	return nil
}

const listUserConversations = `-- name: ListUserConversations :many
SELECT c.id, c.type, c.name, c.created_at, c.updated_at
FROM conversations c
JOIN conversation_participants cp ON cp.conversation_id = c.id
WHERE cp.user_id = $1
ORDER BY c.updated_at DESC;
`

// ListUserConversations returns the user's conversations newest-activity
// first, each annotated with participants, latest message and the user's
// unread count.
func (s *PostgresStore) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]store.ConversationSummary, error) {
	rows, err := s.db.Query(ctx, listUserConversations, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Type, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}

	summaries := make([]store.ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		participants, err := s.GetParticipants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		latest, err := s.LatestMessage(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		unread, err := s.UnreadCount(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, store.ConversationSummary{
			Conversation:  c,
			Participants:  participants,
			LatestMessage: latest,
			UnreadCount:   unread,
		})
	}
	return summaries, nil
}

const getParticipants = `-- name: GetParticipants :many
SELECT u.id, u.name, u.email, u.hashed_password, u.created_at, u.updated_at
FROM users u
JOIN conversation_participants cp ON cp.user_id = u.id
WHERE cp.conversation_id = $1
ORDER BY u.name ASC;
`

func (s *PostgresStore) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]models.User, error) {
	rows, err := s.db.Query(ctx, getParticipants, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying participants: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning participant row: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return users, nil
}

const isParticipant = `-- name: IsParticipant :one
SELECT EXISTS (
	SELECT 1 FROM conversation_participants
	WHERE conversation_id = $1 AND user_id = $2
);
`

func (s *PostgresStore) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var ok bool
	if err := s.db.QueryRow(ctx, isParticipant, conversationID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("error checking participation: %w", err)
	}
	return ok, nil
}

const markRead = `-- name: MarkRead :exec
UPDATE conversation_participants
SET last_read_at = NOW()
WHERE conversation_id = $1 AND user_id = $2;
`

// MarkRead stamps the participant's last_read_at. store.ErrNotFound when the
// participation row does not exist.
func (s *PostgresStore) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, markRead, conversationID, userID)
	if err != nil {
		return fmt.Errorf("error marking conversation read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const unreadCount = `-- name: UnreadCount :one
SELECT COUNT(*)
FROM messages m
JOIN conversation_participants cp
  ON cp.conversation_id = m.conversation_id AND cp.user_id = $2
WHERE m.conversation_id = $1
  AND (cp.last_read_at IS NULL OR m.created_at > cp.last_read_at)
  AND m.user_id IS DISTINCT FROM $2;
`

// UnreadCount counts messages newer than the participant's read marker.
// A NULL marker means everything is unread; the participant's own messages
// never count against them.
func (s *PostgresStore) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, unreadCount, conversationID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting unread messages: %w", err)
	}
	return n, nil
}
