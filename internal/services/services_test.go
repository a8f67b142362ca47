package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"converso-backend/internal/config"
	"converso-backend/internal/integrations"
	"converso-backend/internal/models"
	"converso-backend/internal/queue"
	"converso-backend/internal/search"
	"converso-backend/internal/store/storetest"
)

// recordingHub captures Publish calls instead of touching websockets.
type recordingHub struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	ConversationID uuid.UUID
	Payload        []byte
	ExcludeUserID  uuid.UUID
}

func (h *recordingHub) Publish(conversationID uuid.UUID, payload []byte, excludeUserID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, publishedEvent{conversationID, payload, excludeUserID})
	return 1
}

func (h *recordingHub) published() []publishedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]publishedEvent, len(h.events))
	copy(out, h.events)
	return out
}

// recordingQueue captures enqueued tasks and applies the per-ID dedup the real
// adapters guarantee.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
	seen  map[string]struct{}
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{seen: make(map[string]struct{})}
}

func (q *recordingQueue) Enqueue(_ context.Context, t queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t.ID != "" {
		if _, dup := q.seen[t.ID]; dup {
			return nil
		}
		q.seen[t.ID] = struct{}{}
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) enqueued() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// fakeGenerator is a scripted reply provider.
type fakeGenerator struct {
	configured bool
	reply      string
	err        error
	calls      int
	lastInput  []integrations.ChatMessage
}

func (g *fakeGenerator) Configured() bool { return g.configured }

func (g *fakeGenerator) CreateChatCompletion(_ context.Context, messages []integrations.ChatMessage, _ float64, _ int) (string, error) {
	g.calls++
	g.lastInput = messages
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type testEnv struct {
	store    *storetest.MemoryStore
	hub      *recordingHub
	queue    *recordingQueue
	provider *fakeGenerator

	convos   *ConversationService
	messages *MessageService
	bots     *BotService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    storetest.NewMemoryStore(),
		hub:      &recordingHub{},
		queue:    newRecordingQueue(),
		provider: &fakeGenerator{},
	}
	env.convos = NewConversationService(env.store)
	gateway := search.NewGateway(nil, env.store)
	env.messages = NewMessageService(env.store, env.convos, env.hub, gateway, env.queue)
	env.bots = NewBotService(env.store, env.messages, env.provider)
	return env
}

func (e *testEnv) createUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:             uuid.New(),
		Name:           name,
		Email:          email,
		HashedPassword: "x",
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) privateConversation(t *testing.T, a, b *models.User) uuid.UUID {
	t.Helper()
	conv, err := e.convos.GetOrCreatePrivate(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	return conv.ID
}

func (e *testEnv) aiConversation(t *testing.T, owner *models.User) uuid.UUID {
	t.Helper()
	conv, err := e.convos.CreateAIChat(context.Background(), owner.ID)
	require.NoError(t, err)
	return conv.ID
}

func (e *testEnv) send(t *testing.T, convID uuid.UUID, author *models.User, content string) *models.MessageResponse {
	t.Helper()
	msg, err := e.messages.Send(context.Background(), convID, author.ID, models.SendMessageRequest{Content: content})
	require.NoError(t, err)
	return msg
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		TokenExpiration: time.Hour,
	}
}
