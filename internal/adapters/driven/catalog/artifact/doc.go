// Package artifact reads and writes the paired catalog artifact: a vector
// index and a metadata file whose entries are position-aligned.
//
// The flat backend stores both files in the catalog directory. The qdrant
// backend keeps the vectors in a collection and only the metadata on disk.
package artifact
