package api

import (
	"converso-backend/internal/config"
	"converso-backend/internal/handlers"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler         *handlers.AuthHandler
	ConversationHandler *handlers.ConversationHandlers
	WSHandler           *handlers.WSHandler
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)                 // Inject request ID into context
	r.Use(middleware.RealIP)                    // Use X-Forwarded-For or X-Real-IP
	r.Use(middleware.Logger)                    // Log requests (consider a structured logger)
	r.Use(middleware.Recoverer)                 // Recover from panics, return 500
	r.Use(middleware.Timeout(60 * time.Second)) // Set a request timeout

	// --- CORS Configuration ---
	// Adjust AllowedOrigins for your frontend deployment(s)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "https://*.vercel.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		if deps.ConversationHandler == nil {
			panic("ConversationHandler dependency is nil in router setup")
		}
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", deps.ConversationHandler.HandleListConversations)
			r.Get("/search", deps.ConversationHandler.HandleSearch)
			r.Post("/private", deps.ConversationHandler.HandleCreatePrivate)
			r.Post("/group", deps.ConversationHandler.HandleCreateGroup)
			r.Post("/ai", deps.ConversationHandler.HandleCreateAIChat)

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", deps.ConversationHandler.HandleGetConversation)
				r.Delete("/", deps.ConversationHandler.HandleDeleteConversation)
				r.Get("/messages", deps.ConversationHandler.HandleListMessages)
				r.Post("/messages", deps.ConversationHandler.HandleSendMessage)
			})
		})

		if deps.WSHandler == nil {
			panic("WSHandler dependency is nil in router setup")
		}
		r.Get("/ws", deps.WSHandler.HandleWebSocket)
	})

	return r
}
