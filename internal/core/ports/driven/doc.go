// Package driven declares the infrastructure the core calls out to.
//
// Search needs a VectorIndex, a CatalogStore aligned with it and an
// EmbeddingService for queries. Everything else is optional and degrades
// gracefully when nil: no LLMService disables chat, no SessionStore keeps
// conversations in memory only, no TokenCounter falls back to a character
// estimate, and no SearchObserver records nothing.
package driven
