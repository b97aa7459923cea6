package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// fallbackShopPrompt is used when no PromptStore is configured.
const fallbackShopPrompt = `You are a hair care product expert for an Italian online shop.
Recommend ONLY products from the list below, always with their ID, price and link.

%s`

// ChatConfig holds chat service settings.
type ChatConfig struct {
	// TopK is the number of products retrieved per message.
	TopK int

	// ContextProducts caps how many retrieved products reach the model. Zero means all.
	ContextProducts int

	// MaxHistory is the number of stored messages replayed to the model.
	MaxHistory int

	// SessionLifetime expires idle sessions. Zero disables expiry.
	SessionLifetime time.Duration

	// MaxTokens and Temperature are passed to the LLM.
	MaxTokens   int
	Temperature float64
}

// Default chat settings.
const (
	DefaultChatMaxHistory = 10
	DefaultChatMaxTokens  = 2048
)

// ChatService answers shopper messages: it retrieves products for the
// message, grounds the model on them, and records the exchange.
type ChatService struct {
	search       driving.SearchService
	llm          driven.LLMService
	sessions     driven.SessionStore
	prompts      driven.PromptStore
	conversation *ConversationManager
	cfg          ChatConfig
	now          func() time.Time
}

// NewChatService creates a chat service.
// sessions and prompts are optional (can be nil); without a session store
// every message is answered without history.
func NewChatService(
	search driving.SearchService,
	llm driven.LLMService,
	sessions driven.SessionStore,
	prompts driven.PromptStore,
	conversation *ConversationManager,
	cfg ChatConfig,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultChatMaxHistory
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultChatMaxTokens
	}
	if conversation == nil {
		conversation = NewConversationManager(0, nil)
	}
	return &ChatService{
		search:       search,
		llm:          llm,
		sessions:     sessions,
		prompts:      prompts,
		conversation: conversation,
		cfg:          cfg,
		now:          time.Now,
	}
}

// StartSession opens a new conversation.
func (s *ChatService) StartSession(ctx context.Context) (string, error) {
	now := s.now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.sessions != nil {
		if err := s.sessions.Create(ctx, session); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
	}
	logger.Debug("Session started: %s", session.ID)
	return session.ID, nil
}

// EndSession discards a conversation.
func (s *ChatService) EndSession(ctx context.Context, sessionID string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Reply answers message within sessionID, starting a session when sessionID is empty.
// Retrieval failures are returned as errors; an empty retrieval still produces a reply.
func (s *ChatService) Reply(ctx context.Context, sessionID, message string) (*domain.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.NewError("chat", "message", domain.ErrInvalidQuery, errors.New("message is empty"))
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	if sessionID == "" {
		id, err := s.StartSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = id
	}

	history, err := s.history(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	query := EnrichQuery(message, history)
	logger.Debug("Chat query: %q", query)

	opts := domain.DefaultSearchOptions()
	opts.TopK = s.cfg.TopK
	products, err := s.search.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve products: %w", err)
	}

	system, err := s.systemPrompt(products)
	if err != nil {
		return nil, err
	}

	transcript := s.conversation.Format(history, message)
	text, err := s.llm.Chat(ctx, system, transcript, driven.ChatOptions{
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	if err := s.record(ctx, sessionID, message, text); err != nil {
		return nil, err
	}

	return &domain.ChatReply{
		SessionID: sessionID,
		Text:      text,
		Products:  products,
	}, nil
}

// history loads the replayable history, expiring idle sessions.
func (s *ChatService) history(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if s.sessions == nil {
		return nil, nil
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.Expired(s.now(), s.cfg.SessionLifetime) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			logger.Warn("Failed to delete expired session %s: %v", sessionID, err)
		}
		return nil, domain.ErrSessionExpired
	}

	history, err := s.sessions.History(ctx, sessionID, s.cfg.MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

func (s *ChatService) record(ctx context.Context, sessionID, message, reply string) error {
	if s.sessions == nil {
		return nil
	}
	now := s.now()
	if err := s.sessions.AppendMessage(ctx, sessionID, domain.Message{
		Role: domain.RoleUser, Content: message, CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	if err := s.sessions.AppendMessage(ctx, sessionID, domain.Message{
		Role: domain.RoleAssistant, Content: reply, CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}
	return nil
}

// systemPrompt fills the shop assistant template with the product context.
func (s *ChatService) systemPrompt(products []domain.ProductRecord) (string, error) {
	template := fallbackShopPrompt
	productsText := FormatProductsForContext(products, s.cfg.ContextProducts)

	if s.prompts != nil {
		t, err := s.prompts.Load(driven.PromptShopAssistant)
		if err != nil {
			return "", fmt.Errorf("load prompt: %w", err)
		}
		template = t
		if len(products) == 0 {
			if empty, err := s.prompts.Load(driven.PromptNoProducts); err == nil && empty != "" {
				productsText = empty
			}
		}
	}

	if !strings.Contains(template, "%s") {
		return template + "\n\n" + productsText, nil
	}
	return strings.Replace(template, "%s", productsText, 1), nil
}
