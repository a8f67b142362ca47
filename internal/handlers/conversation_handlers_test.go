package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converso-backend/internal/auth"
	"converso-backend/internal/models"
	"converso-backend/internal/search"
	"converso-backend/internal/services"
	"converso-backend/internal/store/storetest"
)

type handlerEnv struct {
	store    *storetest.MemoryStore
	convos   *services.ConversationService
	messages *services.MessageService
	h        *ConversationHandlers
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	st := storetest.NewMemoryStore()
	convos := services.NewConversationService(st)
	messages := services.NewMessageService(st, convos, nil, search.NewGateway(nil, st), nil)
	return &handlerEnv{
		store:    st,
		convos:   convos,
		messages: messages,
		h:        NewConversationHandlers(convos, messages),
	}
}

func (e *handlerEnv) createUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Name: name, Email: email, HashedPassword: "x"}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

// request builds an authenticated request carrying the optional
// {conversationID} route parameter.
func request(method, target string, body any, userID uuid.UUID, conversationID *uuid.UUID) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	if conversationID != nil {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("conversationID", conversationID.String())
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestHandleCreatePrivate(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")

	rec := httptest.NewRecorder()
	env.h.HandleCreatePrivate(rec, request(http.MethodPost, "/v1/conversations/private",
		models.CreatePrivateConversationRequest{FriendID: bob.ID}, alice.ID, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.ConversationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.ConversationTypePrivate, resp.Type)
	assert.Equal(t, "Bob", resp.Name)
}

func TestHandleCreatePrivate_SelfIs422(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")

	rec := httptest.NewRecorder()
	env.h.HandleCreatePrivate(rec, request(http.MethodPost, "/v1/conversations/private",
		models.CreatePrivateConversationRequest{FriendID: alice.ID}, alice.ID, nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Fields, "friend_id")
}

func TestHandleSendMessage_NonParticipantIs403(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")
	mallory := env.createUser(t, "Mallory", "mallory@example.com")

	conv, err := env.convos.GetOrCreatePrivate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.h.HandleSendMessage(rec, request(http.MethodPost, "/v1/conversations/x/messages",
		models.SendMessageRequest{Content: "hi"}, mallory.ID, &conv.ID))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleSendMessage_MissingConversationIs403(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	missing := uuid.New()

	rec := httptest.NewRecorder()
	env.h.HandleSendMessage(rec, request(http.MethodPost, "/v1/conversations/x/messages",
		models.SendMessageRequest{Content: "hi"}, alice.ID, &missing))

	assert.Equal(t, http.StatusForbidden, rec.Code,
		"missing conversations are indistinguishable from foreign ones")
}

func TestHandleSendMessage_EmptyContentIs422(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")

	conv, err := env.convos.GetOrCreatePrivate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.h.HandleSendMessage(rec, request(http.MethodPost, "/v1/conversations/x/messages",
		models.SendMessageRequest{Content: "   "}, alice.ID, &conv.ID))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Fields, "content")
}

func TestHandleDeleteConversation(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")

	conv, err := env.convos.GetOrCreatePrivate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.h.HandleDeleteConversation(rec, request(http.MethodDelete, "/v1/conversations/x", nil, alice.ID, &conv.ID))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Retrying the delete is a no-op, not an error.
	rec = httptest.NewRecorder()
	env.h.HandleDeleteConversation(rec, request(http.MethodDelete, "/v1/conversations/x", nil, alice.ID, &conv.ID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleGetConversation_BadIDIs400(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/not-a-uuid", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("conversationID", "not-a-uuid")
	ctx := context.WithValue(req.Context(), auth.UserIDKey, alice.ID)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	rec := httptest.NewRecorder()
	env.h.HandleGetConversation(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearch(t *testing.T) {
	env := newHandlerEnv(t)
	alice := env.createUser(t, "Alice", "alice@example.com")
	bob := env.createUser(t, "Bob", "bob@example.com")

	conv, err := env.convos.GetOrCreatePrivate(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = env.messages.Send(context.Background(), conv.ID, alice.ID, models.SendMessageRequest{Content: "quarterly report draft"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	env.h.HandleSearch(rec, request(http.MethodGet, "/v1/conversations/search?q=quarterly", nil, alice.ID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, conv.ID, resp.Conversations[0].ID)
	assert.Equal(t, "quarterly report draft", resp.Conversations[0].MatchedMessage.Content)

	// Empty term is a validation failure.
	rec = httptest.NewRecorder()
	env.h.HandleSearch(rec, request(http.MethodGet, "/v1/conversations/search?q=", nil, alice.ID, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
