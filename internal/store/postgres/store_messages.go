package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"converso-backend/internal/models"
	"converso-backend/internal/store"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

const messageColumns = `m.id, m.conversation_id, m.user_id, m.content, m.type, m.seq, m.created_at,
	u.id, u.name, u.email, u.hashed_password, u.created_at, u.updated_at`

// scanMessageWithAuthor scans a message row left-joined with users. The author
// columns are NULL for bot/system messages.
func scanMessageWithAuthor(row pgx.Row) (store.MessageWithAuthor, error) {
	var m models.Message
	var authorID *uuid.UUID
	var name, email, hashed *string
	var createdAt, updatedAt *time.Time

	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.AuthorID,
		&m.Content,
		&m.Type,
		&m.Seq,
		&m.CreatedAt,
		&authorID,
		&name,
		&email,
		&hashed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return store.MessageWithAuthor{}, err
	}

	out := store.MessageWithAuthor{Message: m}
	if authorID != nil {
		out.Author = &models.User{
			ID:             *authorID,
			Name:           deref(name),
			Email:          deref(email),
			HashedPassword: deref(hashed),
			CreatedAt:      derefTime(createdAt),
			UpdatedAt:      derefTime(updatedAt),
		}
	}
	return out, nil
}

// AppendMessage inserts a message and bumps the conversation's updated_at in
// the same transaction; the update doubles as the existence check. The store
// is the only component allowed to touch updated_at.
func (s *PostgresStore) AppendMessage(ctx context.Context, arg store.AppendMessageParams) (*models.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const touchConversation = `
		UPDATE conversations SET updated_at = NOW() WHERE id = $1;`
	tag, err := tx.Exec(ctx, touchConversation, arg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("error touching conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}

	const insertMessage = `
		INSERT INTO messages (id, conversation_id, user_id, content, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, conversation_id, user_id, content, type, seq, created_at;`

	var m models.Message
	err = tx.QueryRow(ctx, insertMessage,
		arg.ID,
		arg.ConversationID,
		arg.AuthorID,
		arg.Content,
		arg.Type,
	).Scan(
		&m.ID,
		&m.ConversationID,
		&m.AuthorID,
		&m.Content,
		&m.Type,
		&m.Seq,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error inserting message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("error committing message: %w", err)
	}
	return &m, nil
}

const listMessages = `-- name: ListMessages :many
SELECT ` + messageColumns + `
FROM messages m
LEFT JOIN users u ON u.id = m.user_id
WHERE m.conversation_id = $1
ORDER BY m.created_at ASC, m.seq ASC;
`

// ListMessages returns the conversation's full log oldest first; seq breaks
// created_at ties so the order is total.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]store.MessageWithAuthor, error) {
	rows, err := s.db.Query(ctx, listMessages, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var items []store.MessageWithAuthor
	for rows.Next() {
		item, err := scanMessageWithAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return items, nil
}

const recentMessages = `-- name: RecentMessages :many
SELECT id, conversation_id, user_id, content, type, seq, created_at
FROM (
	SELECT id, conversation_id, user_id, content, type, seq, created_at
	FROM messages
	WHERE conversation_id = $1
	ORDER BY created_at DESC, seq DESC
	LIMIT $2
) recent
ORDER BY created_at ASC, seq ASC;
`

// RecentMessages returns the last `limit` messages re-ordered oldest first,
// the shape a generation context window wants.
func (s *PostgresStore) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, recentMessages, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent messages: %w", err)
	}
	defer rows.Close()

	var items []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Content, &m.Type, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning recent message row: %w", err)
		}
		items = append(items, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent message rows: %w", err)
	}
	return items, nil
}

const messagesByIDs = `-- name: MessagesByIDs :many
SELECT ` + messageColumns + `
FROM messages m
LEFT JOIN users u ON u.id = m.user_id
WHERE m.id = ANY($1);
`

// MessagesByIDs resolves index hits back to stored messages. Order is not
// preserved; callers re-rank by their own criteria.
func (s *PostgresStore) MessagesByIDs(ctx context.Context, ids []uuid.UUID) ([]store.MessageWithAuthor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, messagesByIDs, ids)
	if err != nil {
		return nil, fmt.Errorf("error querying messages by ids: %w", err)
	}
	defer rows.Close()

	var items []store.MessageWithAuthor
	for rows.Next() {
		item, err := scanMessageWithAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return items, nil
}

const searchMessages = `-- name: SearchMessages :many
SELECT ` + messageColumns + `
FROM messages m
LEFT JOIN users u ON u.id = m.user_id
WHERE m.content ILIKE '%' || $1 || '%'
ORDER BY m.created_at DESC, m.seq DESC
LIMIT $2;
`

// SearchMessages is the linear-scan fallback behind the search gateway:
// case-insensitive substring match ordered by recency. Authorization filtering
// happens in the caller, never here.
func (s *PostgresStore) SearchMessages(ctx context.Context, term string, limit int) ([]store.MessageWithAuthor, error) {
	rows, err := s.db.Query(ctx, searchMessages, term, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching messages: %w", err)
	}
	defer rows.Close()

	var items []store.MessageWithAuthor
	for rows.Next() {
		item, err := scanMessageWithAuthor(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning search row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search rows: %w", err)
	}
	return items, nil
}

// LatestMessage returns the newest message of a conversation with its author,
// or nil when the conversation is empty.
func (s *PostgresStore) LatestMessage(ctx context.Context, conversationID uuid.UUID) (*store.MessageWithAuthor, error) {
	const query = `
		SELECT ` + messageColumns + `
		FROM messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT 1;`

	item, err := scanMessageWithAuthor(s.db.QueryRow(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error scanning latest message: %w", err)
	}
	return &item, nil
}
