package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"converso-backend/internal/models"
	"converso-backend/internal/services"
	"converso-backend/pkg/httputil"
)

// ConversationHandlers handles HTTP requests related to conversations and
// their messages.
type ConversationHandlers struct {
	convoService   *services.ConversationService
	messageService *services.MessageService
}

// NewConversationHandlers creates a new ConversationHandlers instance.
func NewConversationHandlers(convoSvc *services.ConversationService, messageSvc *services.MessageService) *ConversationHandlers {
	return &ConversationHandlers{
		convoService:   convoSvc,
		messageService: messageSvc,
	}
}

// HandleListConversations handles GET /v1/conversations.
func (h *ConversationHandlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	resp, err := h.convoService.List(r.Context(), userID)
	if err != nil {
		log.Printf("ListConversations handler failed for user %s: %v", userID, err)
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleGetConversation handles GET /v1/conversations/{conversationID}.
func (h *ConversationHandlers) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	conversationID, err := conversationIDFromRequest(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	resp, err := h.convoService.Get(r.Context(), conversationID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleCreatePrivate handles POST /v1/conversations/private.
func (h *ConversationHandlers) HandleCreatePrivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CreatePrivateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.convoService.GetOrCreatePrivate(r.Context(), userID, req.FriendID)
	if err != nil {
		log.Printf("CreatePrivate handler failed for user %s: %v", userID, err)
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleCreateGroup handles POST /v1/conversations/group.
func (h *ConversationHandlers) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CreateGroupConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.convoService.CreateGroup(r.Context(), userID, req)
	if err != nil {
		log.Printf("CreateGroup handler failed for user %s: %v", userID, err)
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleCreateAIChat handles POST /v1/conversations/ai.
func (h *ConversationHandlers) HandleCreateAIChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	resp, err := h.convoService.CreateAIChat(r.Context(), userID)
	if err != nil {
		log.Printf("CreateAIChat handler failed for user %s: %v", userID, err)
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleDeleteConversation handles DELETE /v1/conversations/{conversationID}.
func (h *ConversationHandlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	conversationID, err := conversationIDFromRequest(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.convoService.Delete(r.Context(), conversationID, userID); err != nil {
		log.Printf("DeleteConversation handler failed for user %s: %v", userID, err)
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMessages handles GET /v1/conversations/{conversationID}/messages.
// Fetching the log stamps the caller's read marker.
func (h *ConversationHandlers) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	conversationID, err := conversationIDFromRequest(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	resp, err := h.messageService.List(r.Context(), conversationID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleSendMessage handles POST /v1/conversations/{conversationID}/messages.
func (h *ConversationHandlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	conversationID, err := conversationIDFromRequest(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.messageService.Send(r.Context(), conversationID, userID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleSearch handles GET /v1/conversations/search?q=&limit=.
func (h *ConversationHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	term := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	resp, err := h.messageService.Search(r.Context(), userID, term, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
