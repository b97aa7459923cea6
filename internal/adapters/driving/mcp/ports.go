// Package mcp serves the product catalog and the shop assistant to MCP
// clients, over stdio or streamable HTTP.
package mcp

import (
	"errors"

	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
)

var (
	ErrMissingSearchService = errors.New("mcp: search service is required")

	// ErrChatDisabled is returned by the chat tool when no LLM is configured.
	ErrChatDisabled = errors.New("mcp: chat is not configured")
)

// Ports are the core services behind the tools. Search is required; Chat
// may be nil, in which case the chat tool is not offered.
type Ports struct {
	Search driving.SearchService
	Chat   driving.ChatService
}

// Validate reports a missing required service.
func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
