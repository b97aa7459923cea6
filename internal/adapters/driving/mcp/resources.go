package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

const (
	uriScheme      = "vetrina://"
	statsURI       = uriScheme + "catalog/stats"
	productsPrefix = uriScheme + "products/"
	jsonMIME       = "application/json"
)

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         statsURI,
		Name:        "catalog-stats",
		Description: "Size, model and index details of the loaded product catalog",
		MIMEType:    jsonMIME,
	}, s.handleStatsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: productsPrefix + "{productId}",
		Name:        "product",
		Description: "Full catalog record of one product, by shop ID",
		MIMEType:    jsonMIME,
	}, s.handleProductResource)
}

func (s *Server) handleStatsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.Search.Stats())
}

// handleProductResource serves vetrina://products/{productId}. Unknown IDs
// and an unloaded catalog both read as a missing resource.
func (s *Server) handleProductResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := strings.CutPrefix(req.Params.URI, productsPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rec, err := s.ports.Search.Product(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCatalogNotLoaded):
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	case err != nil:
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	return jsonResource(req.Params.URI, rec)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: jsonMIME,
			Text:     string(data),
		}},
	}, nil
}
