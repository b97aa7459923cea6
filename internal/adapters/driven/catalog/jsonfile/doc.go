// Package jsonfile provides a CatalogStore backed by a JSON metadata file.
//
// The file is a JSON array with one object per product, in the same order
// as the vectors of the paired index. Canonical keys are English
// (name, category, description, ...). Files written by the legacy scraping
// pipeline use Italian keys (nome, categoria, descrizione_completa, ...)
// and are accepted as well.
package jsonfile
