package jsonfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.CatalogStore = (*Store)(nil)

// Store holds the ordered product records of one catalog build.
// It is read-only after construction and safe for concurrent use.
type Store struct {
	records []domain.ProductRecord
	digest  [32]byte
}

// NewStore creates a store from records, validating them.
func NewStore(records []domain.ProductRecord) (*Store, error) {
	if err := validate(records); err != nil {
		return nil, err
	}
	return &Store{records: records}, nil
}

// Load reads a metadata file. A missing file fails with domain.ErrNotFound,
// a malformed one with domain.ErrCorruptData.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewError("load metadata", path, domain.ErrNotFound, err)
		}
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a metadata JSON array from r. The store keeps the Digest of
// the bytes it was parsed from.
func Parse(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var raw []rawRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.NewError("parse metadata", "", domain.ErrCorruptData, err)
	}
	if dec.More() {
		return nil, domain.NewError("parse metadata", "", domain.ErrCorruptData,
			errors.New("trailing data after JSON array"))
	}

	records := make([]domain.ProductRecord, len(raw))
	for i := range raw {
		records[i] = raw[i].toDomain()
	}
	s, err := NewStore(records)
	if err != nil {
		return nil, err
	}
	s.digest = Digest(data)
	return s, nil
}

// Digest fingerprints encoded metadata. Index artifacts record it so a
// loader can tell whether an index and a metadata file were built together.
func Digest(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// validate requires every record to carry a unique id.
func validate(records []domain.ProductRecord) error {
	seen := make(map[string]int, len(records))
	for i := range records {
		id := records[i].ID
		if id == "" {
			return domain.NewError("validate metadata", fmt.Sprintf("records[%d].id", i),
				domain.ErrCorruptData, errors.New("missing id"))
		}
		if prev, dup := seen[id]; dup {
			return domain.NewError("validate metadata", fmt.Sprintf("records[%d].id", i),
				domain.ErrCorruptData, fmt.Errorf("duplicate id %q (first at %d)", id, prev))
		}
		seen[id] = i
	}
	return nil
}

// Get returns the record at position.
func (s *Store) Get(position int) (domain.ProductRecord, error) {
	if position < 0 || position >= len(s.records) {
		return domain.ProductRecord{}, domain.NewError("get record", "position", domain.ErrOutOfRange,
			fmt.Errorf("position %d, size %d", position, len(s.records)))
	}
	return s.records[position], nil
}

// Size returns the number of records.
func (s *Store) Size() int {
	return len(s.records)
}

// All returns every record in catalog order.
func (s *Store) All() []domain.ProductRecord {
	return s.records
}

// Digest returns the fingerprint of the file the store was parsed from,
// zero for stores built in memory.
func (s *Store) Digest() [32]byte {
	return s.digest
}

// Marshal encodes records in the canonical metadata layout.
func Marshal(records []domain.ProductRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(stripQueryFields(records)); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes records as a canonical metadata file.
func Write(path string, records []domain.ProductRecord) error {
	data, err := Marshal(records)
	if err != nil {
		return err
	}
	return WriteEncoded(path, data)
}

// WriteEncoded replaces path with data through a temporary file and a rename.
func WriteEncoded(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp metadata: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// stripQueryFields drops values that only exist at query time.
func stripQueryFields(records []domain.ProductRecord) []domain.ProductRecord {
	out := make([]domain.ProductRecord, len(records))
	for i, r := range records {
		r.SimilarityScore = 0
		r.MatchType = ""
		out[i] = r
	}
	return out
}
