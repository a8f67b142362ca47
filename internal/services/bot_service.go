package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"converso-backend/internal/integrations"
	"converso-backend/internal/models"
	"converso-backend/internal/queue"
	"converso-backend/internal/store"
)

// TaskTypeBotResponse is the queue task type of one assistant reply job.
const TaskTypeBotResponse = "bot:response"

// contextWindowSize is how many recent messages are replayed to the provider
// as conversation history, triggering message included.
const contextWindowSize = 10

const (
	systemDirective = "You are a helpful AI assistant. Be concise, friendly, and informative."
	temperature     = 0.7
	maxTokens       = 500
)

// quotaPreface is prepended to the canned reply when the provider rejected
// the call over exhausted quota or billing.
const quotaPreface = "🤖 A chave da OpenAI não tem créditos disponíveis. Usando resposta simulada:\n\n"

// fallbackReply pairs a lowercase keyword with its canned response. Order
// matters: the first keyword contained in the message wins.
type fallbackReply struct {
	keyword  string
	response string
}

var fallbackReplies = []fallbackReply{
	{"olá", "👋 Olá! Como posso ajudar você hoje?"},
	{"oi", "👋 Oi! Sou seu assistente de IA. No que posso ajudar?"},
	{"como você está", "😊 Estou funcionando perfeitamente! Como posso ajudar você?"},
	{"quem é você", "🤖 Sou um assistente de IA integrado neste sistema de chat. Posso conversar sobre diversos assuntos!"},
	{"o que você faz", "💬 Posso responder perguntas, ajudar com informações e manter conversas interessantes com você!"},
}

// Generator produces assistant replies. Satisfied by integrations.OpenAIClient.
type Generator interface {
	Configured() bool
	CreateChatCompletion(ctx context.Context, messages []integrations.ChatMessage, temperature float64, maxTokens int) (string, error)
}

// BotService consumes bot-response tasks from the queue and appends exactly
// one assistant reply per triggering message. Provider failures degrade to
// canned replies; the pipeline never leaves an assistant conversation
// without an answer.
type BotService struct {
	store    store.Store
	messages *MessageService
	provider Generator
}

// NewBotService creates a new BotService.
func NewBotService(s store.Store, messages *MessageService, provider Generator) *BotService {
	return &BotService{store: s, messages: messages, provider: provider}
}

// Register attaches the service's handler to a queue server.
func (s *BotService) Register(srv queue.Server) {
	srv.Register(TaskTypeBotResponse, s.HandleTask)
}

// HandleTask processes one bot-response job. A malformed payload or a deleted
// conversation drops the task without error: retrying either can never
// succeed, and a retry after a successful append would duplicate the reply.
func (s *BotService) HandleTask(ctx context.Context, task queue.Task) error {
	var job models.BotJob
	if err := json.Unmarshal(task.Payload, &job); err != nil {
		log.Printf("ERROR [BotService] HandleTask: dropping malformed payload for task %s: %v", task.ID, err)
		return nil
	}

	reply := s.generateReply(ctx, job)

	if _, err := s.messages.AppendBot(ctx, job.ConversationID, reply); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("WARN [BotService] HandleTask: conversation %s gone, dropping reply", job.ConversationID)
			return nil
		}
		return fmt.Errorf("failed to append bot reply: %w", err)
	}
	return nil
}

// generateReply asks the provider for a completion over the recent
// conversation window and degrades to a canned reply on any failure.
func (s *BotService) generateReply(ctx context.Context, job models.BotJob) string {
	if s.provider == nil || !s.provider.Configured() {
		return fallbackResponse(job.Content)
	}

	messages := []integrations.ChatMessage{{Role: "system", Content: systemDirective}}
	messages = append(messages, s.contextWindow(ctx, job)...)
	messages = append(messages, integrations.ChatMessage{Role: "user", Content: job.Content})

	reply, err := s.provider.CreateChatCompletion(ctx, messages, temperature, maxTokens)
	if err != nil {
		if integrations.IsQuotaError(err) {
			log.Printf("WARN [BotService] generateReply: provider quota exhausted: %v", err)
			return quotaPreface + fallbackResponse(job.Content)
		}
		log.Printf("ERROR [BotService] generateReply: provider call failed: %v", err)
		return fallbackResponse(job.Content)
	}
	return reply
}

// contextWindow loads the recent history preceding the triggering message,
// oldest first, with bot entries tagged assistant. History load failures
// shrink the window to just the triggering message.
func (s *BotService) contextWindow(ctx context.Context, job models.BotJob) []integrations.ChatMessage {
	history, err := s.store.RecentMessages(ctx, job.ConversationID, contextWindowSize)
	if err != nil {
		log.Printf("WARN [BotService] contextWindow: failed to load history for %s: %v", job.ConversationID, err)
		return nil
	}
	window := make([]integrations.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.ID == job.MessageID {
			continue
		}
		role := "user"
		if msg.Type == models.MessageTypeBot {
			role = "assistant"
		}
		window = append(window, integrations.ChatMessage{Role: role, Content: msg.Content})
	}
	return window
}

// fallbackResponse answers from the keyword table, or echoes the message in a
// generic canned reply when nothing matches.
func fallbackResponse(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range fallbackReplies {
		if strings.Contains(lower, entry.keyword) {
			return entry.response
		}
	}
	return fmt.Sprintf("🤖 Recebi sua mensagem: %q\n\n"+
		"Eu sou um assistente de IA simulado (a chave OpenAI real está sem créditos). Posso:\n\n"+
		"✅ Responder saudações\n"+
		"✅ Manter conversas básicas\n"+
		"✅ Demonstrar o funcionamento do sistema\n\n"+
		"Para respostas reais da IA, adicione créditos na sua conta OpenAI em: https://platform.openai.com/account/billing", message)
}
