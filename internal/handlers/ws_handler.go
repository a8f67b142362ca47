package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"converso-backend/internal/realtime"
	"converso-backend/internal/services"
	"converso-backend/pkg/httputil"
)

const (
	wsReadTimeout     = 60 * time.Second
	wsInflightTimeout = 5 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS middleware already vets browser origins for the REST surface;
		// the websocket endpoint relies on the bearer token instead.
		return true
	},
}

type inboundFrame struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
}

type ackFrame struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// WSHandler upgrades authenticated clients to websocket and processes
// subscribe/unsubscribe frames until the client disconnects. Message events
// only flow outward; sending stays on the REST surface.
type WSHandler struct {
	hub          *realtime.Hub
	convoService *services.ConversationService
}

// NewWSHandler creates a new WSHandler instance.
func NewWSHandler(hub *realtime.Hub, convoSvc *services.ConversationService) *WSHandler {
	return &WSHandler{
		hub:          hub,
		convoService: convoSvc,
	}
}

// HandleWebSocket handles GET /v1/ws.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response; just log and return.
		log.Printf("WS Handler: upgrade failed for user %s: %v", userID, err)
		return
	}

	conn := realtime.NewConnection(userID, ws)
	h.hub.Attach(conn)
	defer func() {
		h.hub.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(1 << 20) // 1MB payload cap
	_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	if payload, err := json.Marshal(ackFrame{Type: "connected"}); err == nil {
		_ = conn.Send(payload)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return
			}
			h.replyError(conn, "read_error", err.Error())
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.replyError(conn, "bad_request", "invalid payload")
			continue
		}

		switch frame.Type {
		case "subscribe":
			h.handleSubscribe(r.Context(), conn, frame)
		case "unsubscribe":
			h.handleUnsubscribe(conn, frame)
		default:
			h.replyError(conn, "unsupported_type", "unknown frame type")
		}
	}
}

func (h *WSHandler) handleSubscribe(ctx context.Context, conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == uuid.Nil {
		h.replyError(conn, "bad_request", "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, wsInflightTimeout)
	defer cancel()

	if err := h.convoService.Authorize(ctx, frame.ConversationID, conn.UserID); err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			h.replyError(conn, "forbidden", "user is not a participant in this conversation")
			return
		}
		h.replyError(conn, "internal_error", "failed to verify participation")
		return
	}

	h.hub.Subscribe(frame.ConversationID, conn)

	if payload, err := json.Marshal(ackFrame{Type: "subscribed", ConversationID: frame.ConversationID}); err == nil {
		_ = conn.Send(payload)
	}
}

func (h *WSHandler) handleUnsubscribe(conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == uuid.Nil {
		h.replyError(conn, "bad_request", "conversation_id is required")
		return
	}
	h.hub.Unsubscribe(frame.ConversationID, conn)

	if payload, err := json.Marshal(ackFrame{Type: "unsubscribed", ConversationID: frame.ConversationID}); err == nil {
		_ = conn.Send(payload)
	}
}

func (h *WSHandler) replyError(conn *realtime.Connection, code string, message string) {
	frame := errorFrame{
		Type:  "error",
		Code:  code,
		Error: message,
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
