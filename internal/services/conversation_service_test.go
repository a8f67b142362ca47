package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converso-backend/internal/models"
)

func TestGetOrCreatePrivate_SamePairBothDirections(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	ctx := context.Background()

	first, err := env.convos.GetOrCreatePrivate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	second, err := env.convos.GetOrCreatePrivate(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "both directions must resolve to one conversation")
	assert.Equal(t, models.ConversationTypePrivate, first.Type)
}

func TestGetOrCreatePrivate_DisplayNameIsOtherParticipant(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	ctx := context.Background()

	fromAlice, err := env.convos.GetOrCreatePrivate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", fromAlice.Name)

	fromBob, err := env.convos.Get(ctx, fromAlice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", fromBob.Name)
}

func TestGetOrCreatePrivate_RejectsSelfAndUnknownFriend(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	ctx := context.Background()

	_, err := env.convos.GetOrCreatePrivate(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.convos.GetOrCreatePrivate(ctx, alice.ID, uuid.New())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	carol := env.createUser(t, "Carol", "carol@example.com")
	ctx := context.Background()

	conv, err := env.convos.CreateGroup(ctx, alice.ID, models.CreateGroupConversationRequest{
		Name:           "Weekend plans",
		ParticipantIDs: []uuid.UUID{bob.ID, carol.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConversationTypeGroup, conv.Type)
	assert.Equal(t, "Weekend plans", conv.Name)
	assert.Len(t, conv.Participants, 2, "creator is excluded from own participant view")

	_, err = env.convos.CreateGroup(ctx, alice.ID, models.CreateGroupConversationRequest{
		ParticipantIDs: []uuid.UUID{bob.ID},
	})
	assert.ErrorIs(t, err, ErrValidation, "group name is required")

	_, err = env.convos.CreateGroup(ctx, alice.ID, models.CreateGroupConversationRequest{
		Name: "Just me",
	})
	assert.ErrorIs(t, err, ErrValidation, "a group needs someone besides the creator")
}

func TestCreateAIChat(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")

	conv, err := env.convos.CreateAIChat(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationTypeAI, conv.Type)
	assert.Equal(t, "AI Assistant", conv.Name)
	assert.Empty(t, conv.Participants)
}

func TestAuthorize_MissingAndForeignLookAlike(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	mallory := env.createUser(t, "Mallory", "mallory@example.com")
	ctx := context.Background()

	convID := env.privateConversation(t, alice, bob)

	assert.NoError(t, env.convos.Authorize(ctx, convID, alice.ID))

	err := env.convos.Authorize(ctx, convID, mallory.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = env.convos.Authorize(ctx, uuid.New(), mallory.ID)
	assert.ErrorIs(t, err, ErrUnauthorized, "missing conversation is indistinguishable from a foreign one")
}

func TestDelete_CascadesAndFreshRecreate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	ctx := context.Background()

	convID := env.privateConversation(t, alice, bob)
	env.send(t, convID, alice, "hello")
	env.send(t, convID, bob, "hi back")

	require.NoError(t, env.convos.Delete(ctx, convID, alice.ID))

	_, err := env.messages.List(ctx, convID, alice.ID)
	assert.ErrorIs(t, err, ErrUnauthorized, "deleted conversation is gone for everyone")

	// Deleting again is a no-op so client retries succeed.
	assert.NoError(t, env.convos.Delete(ctx, convID, alice.ID))

	// A new private conversation for the pair starts empty.
	fresh, err := env.convos.GetOrCreatePrivate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.NotEqual(t, convID, fresh.ID)
	msgs, err := env.messages.List(ctx, fresh.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs.Messages)
}

func TestDelete_RequiresParticipation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	mallory := env.createUser(t, "Mallory", "mallory@example.com")

	convID := env.privateConversation(t, alice, bob)
	err := env.convos.Delete(context.Background(), convID, mallory.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestList_OrderAndUnreadCounts(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	carol := env.createUser(t, "Carol", "carol@example.com")
	ctx := context.Background()

	withBob := env.privateConversation(t, alice, bob)
	withCarol := env.privateConversation(t, alice, carol)

	env.send(t, withBob, bob, "message one")
	env.send(t, withBob, bob, "message two")
	env.send(t, withCarol, carol, "newer message")

	list, err := env.convos.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list.Conversations, 2)

	// Latest activity first.
	assert.Equal(t, withCarol, list.Conversations[0].ID)
	assert.Equal(t, withBob, list.Conversations[1].ID)

	assert.Equal(t, 1, list.Conversations[0].UnreadCount)
	assert.Equal(t, 2, list.Conversations[1].UnreadCount)
	require.NotNil(t, list.Conversations[1].LatestMessage)
	assert.Equal(t, "message two", list.Conversations[1].LatestMessage.Content)
}

func TestUnread_OwnMessagesDoNotCount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	ctx := context.Background()

	convID := env.privateConversation(t, alice, bob)
	env.send(t, convID, alice, "hello bob")

	aliceUnread, err := env.convos.UnreadCount(ctx, convID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, aliceUnread, "sender never counts own message as unread")

	bobUnread, err := env.convos.UnreadCount(ctx, convID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bobUnread)
}

func TestMarkRead_ZeroesUnread(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	ctx := context.Background()

	convID := env.privateConversation(t, alice, bob)
	env.send(t, convID, alice, "one")
	env.send(t, convID, alice, "two")

	require.NoError(t, env.convos.MarkRead(ctx, convID, bob.ID))

	unread, err := env.convos.UnreadCount(ctx, convID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
