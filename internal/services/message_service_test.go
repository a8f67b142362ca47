package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converso-backend/internal/models"
)

func TestSend_AppendsAndBroadcastsExcludingSender(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	convID := env.privateConversation(t, alice, bob)

	msg := env.send(t, convID, alice, "  hello bob  ")
	assert.Equal(t, "hello bob", msg.Content, "content is trimmed before storage")
	require.NotNil(t, msg.User)
	assert.Equal(t, "Alice", msg.User.Name)

	events := env.hub.published()
	require.Len(t, events, 1)
	assert.Equal(t, convID, events[0].ConversationID)
	assert.Equal(t, alice.ID, events[0].ExcludeUserID, "sender already holds the message")

	var event models.MessageEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, models.EventMessageCreated, event.Event)
	assert.Equal(t, msg.ID, event.Message.ID)
}

func TestSend_Validation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	mallory := env.createUser(t, "Mallory", "mallory@example.com")
	convID := env.privateConversation(t, alice, bob)
	ctx := context.Background()

	_, err := env.messages.Send(ctx, convID, alice.ID, models.SendMessageRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrValidation, "whitespace-only content is rejected")

	_, err = env.messages.Send(ctx, convID, mallory.ID, models.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Empty(t, env.hub.published(), "nothing is broadcast for rejected sends")
}

func TestSend_OrderIsStableAcrossReaders(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	convID := env.privateConversation(t, alice, bob)
	ctx := context.Background()

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		author := alice
		if i%2 == 1 {
			author = bob
		}
		env.send(t, convID, author, c)
	}

	forAlice, err := env.messages.List(ctx, convID, alice.ID)
	require.NoError(t, err)
	forBob, err := env.messages.List(ctx, convID, bob.ID)
	require.NoError(t, err)

	require.Len(t, forAlice.Messages, len(contents))
	for i, c := range contents {
		assert.Equal(t, c, forAlice.Messages[i].Content)
	}
	assert.Equal(t, forAlice.Messages, forBob.Messages, "every reader sees the same order")
}

func TestList_MarksConversationRead(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	convID := env.privateConversation(t, alice, bob)
	ctx := context.Background()

	env.send(t, convID, alice, "one")
	env.send(t, convID, alice, "two")

	unread, err := env.convos.UnreadCount(ctx, convID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	_, err = env.messages.List(ctx, convID, bob.ID)
	require.NoError(t, err)

	unread, err = env.convos.UnreadCount(ctx, convID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread, "fetching the log stamps the read marker")
}

func TestSend_DispatchesBotJobOnlyForAIConversations(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	privateID := env.privateConversation(t, alice, bob)
	aiID := env.aiConversation(t, alice)

	env.send(t, privateID, alice, "just chatting")
	assert.Empty(t, env.queue.enqueued(), "human conversations never dispatch bot jobs")

	msg := env.send(t, aiID, alice, "hello assistant")
	tasks := env.queue.enqueued()
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTypeBotResponse, tasks[0].Type)
	assert.Equal(t, msg.ID.String(), tasks[0].ID, "task id is the triggering message id")

	var job models.BotJob
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &job))
	assert.Equal(t, aiID, job.ConversationID)
	assert.Equal(t, msg.ID, job.MessageID)
	assert.Equal(t, "hello assistant", job.Content)
	assert.Equal(t, alice.ID, job.RequesterID)
}

func TestAppendBot_BroadcastsToEveryone(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	aiID := env.aiConversation(t, alice)

	reply, err := env.messages.AppendBot(context.Background(), aiID, "here to help")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeBot, reply.Type)
	assert.Nil(t, reply.User)

	events := env.hub.published()
	require.Len(t, events, 1)
	assert.Equal(t, uuid.Nil, events[0].ExcludeUserID, "bot replies reach every subscriber")
}

func TestSearch_GroupsPerConversationNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	carol := env.createUser(t, "Carol", "carol@example.com")
	ctx := context.Background()

	withBob := env.privateConversation(t, alice, bob)
	withCarol := env.privateConversation(t, alice, carol)

	env.send(t, withBob, alice, "project kickoff tomorrow")
	env.send(t, withBob, bob, "project notes attached")
	env.send(t, withCarol, carol, "the project deadline moved")

	resp, err := env.messages.Search(ctx, alice.ID, "project", 0)
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 2)

	// Newest match overall leads, and each conversation surfaces only its
	// newest matching message.
	assert.Equal(t, withCarol, resp.Conversations[0].ID)
	assert.Equal(t, "the project deadline moved", resp.Conversations[0].MatchedMessage.Content)
	assert.Equal(t, withBob, resp.Conversations[1].ID)
	assert.Equal(t, "project notes attached", resp.Conversations[1].MatchedMessage.Content)
}

func TestSearch_ExcludesForeignConversations(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	carol := env.createUser(t, "Carol", "carol@example.com")
	ctx := context.Background()

	bobAndCarol := env.privateConversation(t, bob, carol)
	env.send(t, bobAndCarol, bob, "secret plans")

	resp, err := env.messages.Search(ctx, alice.ID, "secret", 0)
	require.NoError(t, err)
	assert.Empty(t, resp.Conversations, "matches outside the caller's conversations are invisible")
}

func TestSearch_RejectsEmptyTerm(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")

	_, err := env.messages.Search(context.Background(), alice.ID, "   ", 0)
	assert.ErrorIs(t, err, ErrValidation)
}
