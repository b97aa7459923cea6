// Package qdrant provides a VectorIndex backed by a Qdrant collection.
//
// Points are keyed by their numeric catalog position, so a hit maps straight
// back to the metadata record at the same position. The collection uses
// cosine distance and Qdrant returns cosine similarity as the score.
package qdrant
