// Package storetest provides an in-memory store.Store with the same observable
// semantics as the postgres implementation: total message order, unique
// private pairs, cascade deletes and NULL-means-all-unread read markers.
// It backs service and property tests that must not depend on a database.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"converso-backend/internal/models"
	"converso-backend/internal/store"
)

// Compile-time check to ensure MemoryStore implements store.Store
var _ store.Store = (*MemoryStore)(nil)

type pairKey struct {
	lo uuid.UUID
	hi uuid.UUID
}

type MemoryStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	conversations map[uuid.UUID]*models.Conversation
	participants  map[uuid.UUID]map[uuid.UUID]*models.Participant
	messages      map[uuid.UUID][]*models.Message
	pairs         map[pairKey]uuid.UUID
	seq           int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uuid.UUID]*models.User),
		conversations: make(map[uuid.UUID]*models.Conversation),
		participants:  make(map[uuid.UUID]map[uuid.UUID]*models.Participant),
		messages:      make(map[uuid.UUID][]*models.Message),
		pairs:         make(map[pairKey]uuid.UUID),
	}
}

func makePairKey(a, b uuid.UUID) pairKey {
	if strings.Compare(a.String(), b.String()) <= 0 {
		return pairKey{lo: a, hi: b}
	}
	return pairKey{lo: b, hi: a}
}

// --- Users ---

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	cp := *user
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.users[cp.ID] = &cp
	return nil
}

// --- Conversations ---

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetPrivateConversation(_ context.Context, userA, userB uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pairs[makePairKey(userA, userB)]
	if !ok {
		return nil, store.ErrNotFound
	}
	c, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) CreateConversation(_ context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if arg.Type == models.ConversationTypePrivate {
		key := makePairKey(arg.ParticipantIDs[0], arg.ParticipantIDs[1])
		if _, exists := s.pairs[key]; exists {
			return nil, store.ErrDuplicatePrivatePair
		}
		s.pairs[key] = arg.ID
	}

	now := time.Now()
	c := &models.Conversation{
		ID:        arg.ID,
		Type:      arg.Type,
		Name:      arg.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[c.ID] = c

	members := make(map[uuid.UUID]*models.Participant, len(arg.ParticipantIDs))
	for _, userID := range arg.ParticipantIDs {
		members[userID] = &models.Participant{ConversationID: c.ID, UserID: userID}
	}
	s.participants[c.ID] = members

	cp := *c
	return &cp, nil
}

func (s *MemoryStore) DeleteConversation(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	delete(s.participants, id)
	delete(s.messages, id)
	for key, convID := range s.pairs {
		if convID == id {
			delete(s.pairs, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]store.ConversationSummary, error) {
	s.mu.Lock()
	var conversations []models.Conversation
	for id, c := range s.conversations {
		if _, ok := s.participants[id][userID]; ok {
			conversations = append(conversations, *c)
		}
	}
	s.mu.Unlock()

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	summaries := make([]store.ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		participants, err := s.GetParticipants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		unread, err := s.UnreadCount(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		summary := store.ConversationSummary{
			Conversation: c,
			Participants: participants,
			UnreadCount:  unread,
		}
		s.mu.Lock()
		if log := s.messages[c.ID]; len(log) > 0 {
			last := *log[len(log)-1]
			item := store.MessageWithAuthor{Message: last}
			if last.AuthorID != nil {
				if u, ok := s.users[*last.AuthorID]; ok {
					cp := *u
					item.Author = &cp
				}
			}
			summary.LatestMessage = &item
		}
		s.mu.Unlock()
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *MemoryStore) GetParticipants(_ context.Context, conversationID uuid.UUID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []models.User
	for userID := range s.participants[conversationID] {
		if u, ok := s.users[userID]; ok {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *MemoryStore) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[conversationID][userID]
	return ok, nil
}

// --- Messages ---

func (s *MemoryStore) AppendMessage(_ context.Context, arg store.AppendMessageParams) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[arg.ConversationID]
	if !ok {
		return nil, store.ErrNotFound
	}

	s.seq++
	now := time.Now()
	m := &models.Message{
		ID:             arg.ID,
		ConversationID: arg.ConversationID,
		AuthorID:       arg.AuthorID,
		Content:        arg.Content,
		Type:           arg.Type,
		Seq:            s.seq,
		CreatedAt:      now,
	}
	s.messages[arg.ConversationID] = append(s.messages[arg.ConversationID], m)
	c.UpdatedAt = now

	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID uuid.UUID) ([]store.MessageWithAuthor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[conversationID]
	items := make([]store.MessageWithAuthor, 0, len(log))
	for _, m := range log {
		items = append(items, s.withAuthorLocked(m))
	}
	return items, nil
}

func (s *MemoryStore) LatestMessage(_ context.Context, conversationID uuid.UUID) (*store.MessageWithAuthor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[conversationID]
	if len(log) == 0 {
		return nil, nil
	}
	item := s.withAuthorLocked(log[len(log)-1])
	return &item, nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[conversationID]
	start := len(log) - limit
	if start < 0 {
		start = 0
	}
	items := make([]models.Message, 0, len(log)-start)
	for _, m := range log[start:] {
		items = append(items, *m)
	}
	return items, nil
}

func (s *MemoryStore) MessagesByIDs(_ context.Context, ids []uuid.UUID) ([]store.MessageWithAuthor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var items []store.MessageWithAuthor
	for _, log := range s.messages {
		for _, m := range log {
			if _, ok := want[m.ID]; ok {
				items = append(items, s.withAuthorLocked(m))
			}
		}
	}
	return items, nil
}

func (s *MemoryStore) SearchMessages(_ context.Context, term string, limit int) ([]store.MessageWithAuthor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(term)
	var items []store.MessageWithAuthor
	for _, log := range s.messages {
		for _, m := range log {
			if strings.Contains(strings.ToLower(m.Content), needle) {
				items = append(items, s.withAuthorLocked(m))
			}
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Message.Seq > items[j].Message.Seq
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// --- Read state ---

func (s *MemoryStore) MarkRead(_ context.Context, conversationID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[conversationID][userID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	p.LastReadAt = &now
	return nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, conversationID, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[conversationID][userID]
	if !ok {
		return 0, store.ErrNotFound
	}
	count := 0
	for _, m := range s.messages[conversationID] {
		if m.AuthorID != nil && *m.AuthorID == userID {
			continue
		}
		if p.LastReadAt == nil || m.CreatedAt.After(*p.LastReadAt) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) withAuthorLocked(m *models.Message) store.MessageWithAuthor {
	item := store.MessageWithAuthor{Message: *m}
	if m.AuthorID != nil {
		if u, ok := s.users[*m.AuthorID]; ok {
			cp := *u
			item.Author = &cp
		}
	}
	return item
}
