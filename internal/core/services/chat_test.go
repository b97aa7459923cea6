package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

func newTestChat(
	search *mockSearchService, llm *mockLLMService, sessions driven.SessionStore, prompts driven.PromptStore, cfg ChatConfig,
) *ChatService {
	var l driven.LLMService
	if llm != nil {
		l = llm
	}
	return NewChatService(search, l, sessions, prompts, NewConversationManager(0, nil), cfg)
}

func TestChatService_ReplyStartsSession(t *testing.T) {
	search := &mockSearchService{results: testProducts()[:2]}
	llm := &mockLLMService{reply: "Ti consiglio Hydrate Shampoo (p0)."}
	sessions := memory.NewSessionStore()
	svc := newTestChat(search, llm, sessions, nil, ChatConfig{TopK: 7, MaxTokens: 512, Temperature: 0.2})

	reply, err := svc.Reply(context.Background(), "", "  shampoo wella  ")
	require.NoError(t, err)

	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "Ti consiglio Hydrate Shampoo (p0).", reply.Text)
	assert.Equal(t, []string{"p0", "p1"}, ids(reply.Products))

	assert.Equal(t, []string{"shampoo wella"}, search.queries)
	assert.Equal(t, 7, search.lastOpts.TopK)

	require.Len(t, llm.systems, 1)
	assert.Contains(t, llm.systems[0], "hair care product expert")
	assert.Contains(t, llm.systems[0], "# AVAILABLE PRODUCTS (2 results)")
	assert.Contains(t, llm.systems[0], "Hydrate Shampoo")
	assert.Equal(t, []driven.ChatMessage{{Role: "user", Content: "shampoo wella"}}, llm.messages[0])
	assert.Equal(t, driven.ChatOptions{MaxTokens: 512, Temperature: 0.2}, llm.opts[0])

	history, err := sessions.History(context.Background(), reply.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "shampoo wella", history[0].Content)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
}

func TestChatService_FollowUpUsesHistory(t *testing.T) {
	search := &mockSearchService{results: testProducts()[:1]}
	llm := &mockLLMService{reply: "ok"}
	svc := newTestChat(search, llm, memory.NewSessionStore(), nil, ChatConfig{})

	first, err := svc.Reply(context.Background(), "", "shampoo per capelli ricci")
	require.NoError(t, err)
	second, err := svc.Reply(context.Background(), first.SessionID, "sotto 20 euro?")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	assert.Equal(t, []string{
		"shampoo per capelli ricci",
		"shampoo per capelli ricci sotto 20 euro?",
	}, search.queries)
	assert.Equal(t, domain.DefaultTopK, search.lastOpts.TopK)

	require.Len(t, llm.messages, 2)
	assert.Equal(t, []driven.ChatMessage{
		{Role: "user", Content: "shampoo per capelli ricci"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "sotto 20 euro?"},
	}, llm.messages[1])
}

func TestChatService_HistoryLimit(t *testing.T) {
	search := &mockSearchService{}
	llm := &mockLLMService{reply: "ok"}
	svc := newTestChat(search, llm, memory.NewSessionStore(), nil, ChatConfig{MaxHistory: 2})

	reply, err := svc.Reply(context.Background(), "", "primo messaggio")
	require.NoError(t, err)
	_, err = svc.Reply(context.Background(), reply.SessionID, "secondo messaggio")
	require.NoError(t, err)
	_, err = svc.Reply(context.Background(), reply.SessionID, "terzo messaggio")
	require.NoError(t, err)

	assert.Equal(t, []driven.ChatMessage{
		{Role: "user", Content: "secondo messaggio"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "terzo messaggio"},
	}, llm.messages[2])
}

func TestChatService_EmptyMessage(t *testing.T) {
	search := &mockSearchService{}
	svc := newTestChat(search, &mockLLMService{}, nil, nil, ChatConfig{})

	_, err := svc.Reply(context.Background(), "", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.Equal(t, "message", domain.FieldOf(err))
	assert.Empty(t, search.queries)
}

func TestChatService_NoLLM(t *testing.T) {
	svc := newTestChat(&mockSearchService{}, nil, nil, nil, ChatConfig{})

	_, err := svc.Reply(context.Background(), "", "shampoo")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestChatService_SearchFailure(t *testing.T) {
	search := &mockSearchService{err: domain.NewError("search", "", domain.ErrEmbeddingUnavailable, nil)}
	llm := &mockLLMService{reply: "ok"}
	sessions := memory.NewSessionStore()
	svc := newTestChat(search, llm, sessions, nil, ChatConfig{})

	id, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), id, "shampoo")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Empty(t, llm.systems)

	history, err := sessions.History(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChatService_LLMFailure(t *testing.T) {
	llm := &mockLLMService{err: errors.New("overloaded")}
	sessions := memory.NewSessionStore()
	svc := newTestChat(&mockSearchService{}, llm, sessions, nil, ChatConfig{})

	id, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), id, "shampoo")
	assert.ErrorContains(t, err, "overloaded")

	history, err := sessions.History(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChatService_UnknownSession(t *testing.T) {
	svc := newTestChat(&mockSearchService{}, &mockLLMService{reply: "ok"}, memory.NewSessionStore(), nil, ChatConfig{})

	_, err := svc.Reply(context.Background(), "missing", "shampoo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatService_ExpiredSession(t *testing.T) {
	sessions := memory.NewSessionStore()
	svc := newTestChat(&mockSearchService{}, &mockLLMService{reply: "ok"}, sessions, nil,
		ChatConfig{SessionLifetime: 30 * time.Minute})

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	id, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(31 * time.Minute) }
	_, err = svc.Reply(context.Background(), id, "shampoo")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = sessions.Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatService_WithoutSessionStore(t *testing.T) {
	llm := &mockLLMService{reply: "ok"}
	svc := newTestChat(&mockSearchService{}, llm, nil, nil, ChatConfig{})

	first, err := svc.Reply(context.Background(), "", "shampoo")
	require.NoError(t, err)
	_, err = svc.Reply(context.Background(), first.SessionID, "balsamo")
	require.NoError(t, err)

	assert.Len(t, llm.messages[1], 1)
	assert.NoError(t, svc.EndSession(context.Background(), first.SessionID))
}

func TestChatService_PromptStore(t *testing.T) {
	prompts := &mockPromptStore{prompts: map[string]string{
		driven.PromptShopAssistant: "Sei un commesso.\n\n%s\n\nRispondi in italiano.",
		driven.PromptNoProducts:    "Nessun prodotto trovato.",
	}}
	llm := &mockLLMService{reply: "ok"}

	svc := newTestChat(&mockSearchService{results: testProducts()[:1]}, llm, nil, prompts, ChatConfig{})
	_, err := svc.Reply(context.Background(), "", "shampoo")
	require.NoError(t, err)
	assert.Contains(t, llm.systems[0], "Sei un commesso.\n\n# AVAILABLE PRODUCTS (1 results)")
	assert.Contains(t, llm.systems[0], "Rispondi in italiano.")

	svc = newTestChat(&mockSearchService{}, llm, nil, prompts, ChatConfig{})
	_, err = svc.Reply(context.Background(), "", "shampoo")
	require.NoError(t, err)
	assert.Equal(t, "Sei un commesso.\n\nNessun prodotto trovato.\n\nRispondi in italiano.", llm.systems[1])
}

func TestChatService_PromptWithoutPlaceholder(t *testing.T) {
	prompts := &mockPromptStore{prompts: map[string]string{
		driven.PromptShopAssistant: "Sei un commesso.",
	}}
	llm := &mockLLMService{reply: "ok"}
	svc := newTestChat(&mockSearchService{}, llm, nil, prompts, ChatConfig{})

	_, err := svc.Reply(context.Background(), "", "shampoo")
	require.NoError(t, err)
	assert.Equal(t, "Sei un commesso.\n\n"+NoProductsText, llm.systems[0])
}

func TestChatService_PromptLoadFailure(t *testing.T) {
	svc := newTestChat(&mockSearchService{}, &mockLLMService{reply: "ok"}, nil,
		&mockPromptStore{prompts: map[string]string{}}, ChatConfig{})

	_, err := svc.Reply(context.Background(), "", "shampoo")
	assert.ErrorContains(t, err, "load prompt")
}

func TestChatService_ContextProducts(t *testing.T) {
	llm := &mockLLMService{reply: "ok"}
	svc := newTestChat(&mockSearchService{results: testProducts()}, llm, nil, nil, ChatConfig{ContextProducts: 2})

	reply, err := svc.Reply(context.Background(), "", "shampoo")
	require.NoError(t, err)
	assert.Len(t, reply.Products, 5)
	assert.Contains(t, llm.systems[0], "(2 results)")
}

func TestChatService_EndSession(t *testing.T) {
	sessions := memory.NewSessionStore()
	svc := newTestChat(&mockSearchService{}, &mockLLMService{reply: "ok"}, sessions, nil, ChatConfig{})

	id, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.EndSession(context.Background(), id))

	_, err = sessions.Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
