package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// SearchInput is the input schema for the search_products tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"what the shopper is looking for, in any language"`
	TopK          int      `json:"top_k,omitempty" jsonschema:"maximum number of products to return (default 20)"`
	MinSimilarity float64  `json:"min_similarity,omitempty" jsonschema:"drop semantic matches below this score, between 0 and 1"`
	PriceMax      *float64 `json:"price_max,omitempty" jsonschema:"maximum price in euro, inclusive"`
	Category      string   `json:"category,omitempty" jsonschema:"only products whose category contains this text"`
	Brand         string   `json:"brand,omitempty" jsonschema:"only products whose brand contains this text"`
}

// SearchOutput is the output schema for the search_products tool.
type SearchOutput struct {
	Products []ProductOutput `json:"products"`
	Count    int             `json:"count"`
}

// ProductOutput represents a single retrieved product.
type ProductOutput struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Price       float64 `json:"price,omitempty"`
	URL         string  `json:"url,omitempty"`
	Description string  `json:"description,omitempty"`
	Similarity  float64 `json:"similarity"`
	MatchType   string  `json:"match_type"`
}

// StatsInput is the (empty) input schema for the catalog_stats tool.
type StatsInput struct{}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation to continue; empty starts a new one"`
	Message   string `json:"message" jsonschema:"the shopper's message"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	SessionID string          `json:"session_id"`
	Reply     string          `json:"reply"`
	Products  []ProductOutput `json:"products"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_products",
		Description: "Find hair-care products by brand, category, price or free-text need",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "catalog_stats",
		Description: "Describe the loaded product catalog",
	}, s.handleStats)

	if s.ports.Chat != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chat",
			Description: "Ask the shop assistant; replies are grounded on catalog products",
		}, s.handleChat)
	}
}

// handleSearch handles the search_products tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := s.opts.Defaults
	if input.TopK > 0 {
		opts.TopK = input.TopK
	}
	if input.MinSimilarity > 0 {
		opts.MinSimilarity = input.MinSimilarity
	}
	opts.PriceMax = input.PriceMax
	opts.Category = input.Category
	opts.Brand = input.Brand

	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, toolError(err)
	}

	return nil, SearchOutput{
		Products: toProductOutputs(results),
		Count:    len(results),
	}, nil
}

// handleStats handles the catalog_stats tool invocation.
func (s *Server) handleStats(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, domain.CatalogStats, error) {
	return nil, s.ports.Search.Stats(), nil
}

// handleChat handles the chat tool invocation.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	if s.ports.Chat == nil {
		return nil, ChatOutput{}, ErrChatDisabled
	}
	reply, err := s.ports.Chat.Reply(ctx, input.SessionID, input.Message)
	if err != nil {
		return nil, ChatOutput{}, toolError(err)
	}
	return nil, ChatOutput{
		SessionID: reply.SessionID,
		Reply:     reply.Text,
		Products:  toProductOutputs(reply.Products),
	}, nil
}

func toProductOutputs(results []domain.ProductRecord) []ProductOutput {
	out := make([]ProductOutput, len(results))
	for i := range results {
		p := &results[i]
		out[i] = ProductOutput{
			ID:          p.ID,
			Name:        p.Name,
			Brand:       p.Brand,
			Category:    p.Category,
			Price:       p.Price,
			URL:         p.URL,
			Description: p.Description,
			Similarity:  p.SimilarityScore,
			MatchType:   p.MatchType.String(),
		}
	}
	return out
}

// toolError tells the caller whether rephrasing the request could help.
func toolError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		if f := domain.FieldOf(err); f != "" {
			return fmt.Errorf("invalid %s: %w", f, err)
		}
		return fmt.Errorf("invalid request: %w", err)
	case errors.Is(err, domain.ErrCatalogNotLoaded), errors.Is(err, domain.ErrIndexCorrupt):
		return fmt.Errorf("catalog unavailable, try again later: %w", err)
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrIndexUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable):
		return fmt.Errorf("search temporarily unavailable: %w", err)
	default:
		return err
	}
}
