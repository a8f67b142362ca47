package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converso-backend/internal/models"
)

// Two users with no prior history: open the private conversation, exchange a
// greeting, and watch the unread count move.
func TestScenario_TwoUserHello(t *testing.T) {
	env := newTestEnv(t)
	user1 := env.createUser(t, "User One", "one@example.com")
	user2 := env.createUser(t, "User Two", "two@example.com")
	ctx := context.Background()

	conv, err := env.convos.GetOrCreatePrivate(ctx, user1.ID, user2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationTypePrivate, conv.Type)

	env.send(t, conv.ID, user1, "hello")

	// user1 lists without disturbing user2's read state.
	log, err := env.messages.List(ctx, conv.ID, user1.ID)
	require.NoError(t, err)
	require.Len(t, log.Messages, 1)
	require.NotNil(t, log.Messages[0].User)
	assert.Equal(t, user1.ID, log.Messages[0].User.ID)
	assert.Equal(t, "hello", log.Messages[0].Content)

	unread, err := env.convos.UnreadCount(ctx, conv.ID, user2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, env.convos.MarkRead(ctx, conv.ID, user2.ID))

	unread, err = env.convos.UnreadCount(ctx, conv.ID, user2.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	// A new message makes the conversation unread again.
	env.send(t, conv.ID, user1, "still there?")
	unread, err = env.convos.UnreadCount(ctx, conv.ID, user2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

// With provider credentials unset, "olá" must get the keyword greeting, not
// the generic echo.
func TestScenario_GreetingFallbackVerbatim(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	aiID := env.aiConversation(t, alice)
	ctx := context.Background()

	env.send(t, aiID, alice, "olá")
	tasks := env.queue.enqueued()
	require.Len(t, tasks, 1)
	require.NoError(t, env.bots.HandleTask(ctx, tasks[0]))

	log, err := env.messages.List(ctx, aiID, alice.ID)
	require.NoError(t, err)
	require.Len(t, log.Messages, 2)
	assert.Equal(t, models.MessageTypeBot, log.Messages[1].Type)
	assert.Equal(t, "👋 Olá! Como posso ajudar você hoje?", log.Messages[1].Content)
}
