package mcp

import (
	"context"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.ProductRecord
	stats    domain.CatalogStats
	err      error
	gotQuery string
	gotOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.ProductRecord, error) {
	m.gotQuery = query
	m.gotOpts = opts
	return m.results, m.err
}

func (m *mockSearchService) Stats() domain.CatalogStats {
	return m.stats
}

func (m *mockSearchService) Product(_ context.Context, id string) (domain.ProductRecord, error) {
	for _, rec := range m.results {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.ProductRecord{}, domain.NewError("product", id, domain.ErrNotFound, nil)
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	reply      *domain.ChatReply
	err        error
	gotSession string
	gotMessage string
}

func (m *mockChatService) StartSession(_ context.Context) (string, error) {
	return "session-1", m.err
}

func (m *mockChatService) Reply(_ context.Context, sessionID, message string) (*domain.ChatReply, error) {
	m.gotSession = sessionID
	m.gotMessage = message
	return m.reply, m.err
}

func (m *mockChatService) EndSession(_ context.Context, _ string) error {
	return m.err
}
