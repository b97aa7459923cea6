// Package domain holds vetrina's core types: product records, query
// filters, search options, catalog stats, chat sessions and settings,
// plus the error kinds shared by every layer. It imports only the
// standard library.
package domain
