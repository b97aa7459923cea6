package jsonfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

func TestParse_CanonicalKeys(t *testing.T) {
	s, err := Parse(strings.NewReader(`[
		{"id": "P1", "brand": "Wella", "category": "Shampoo", "name": "Color Brilliance",
		 "price": 18.5, "promo_price": 15.9, "description": "Per capelli colorati"},
		{"id": "P2", "brand": "Davines", "category": "Maschera", "name": "Nounou", "price": 32}
	]`))
	require.NoError(t, err)
	require.Equal(t, 2, s.Size())

	p, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "P1", p.ID)
	assert.Equal(t, "Wella", p.Brand)
	assert.Equal(t, "Color Brilliance", p.Name)
	assert.Equal(t, 18.5, p.Price)
	assert.Equal(t, 15.9, p.PromoPrice)
	assert.Equal(t, "Per capelli colorati", p.Description)
}

func TestParse_LegacyKeys(t *testing.T) {
	s, err := Parse(strings.NewReader(`[{
		"id": "GLAM_PARR_0001",
		"brand": "Kerastase",
		"nome": "Bain Satin",
		"categoria": "Shampoo",
		"subcategoria": "Nutrienti",
		"descrizione_completa": "Shampoo nutriente",
		"ingredienti": "Aqua",
		"modo_uso": "Applicare",
		"benefici": "Morbidezza",
		"tecnologie": "Irisome",
		"immagine": "https://example.com/a.jpg",
		"price": "24,90",
		"regular_price": null,
		"promo_price": null,
		"discount_percent": null
	}]`))
	require.NoError(t, err)

	p, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Bain Satin", p.Name)
	assert.Equal(t, "Shampoo", p.Category)
	assert.Equal(t, "Nutrienti", p.Subcategory)
	assert.Equal(t, "Shampoo nutriente", p.Description)
	assert.Equal(t, "Aqua", p.Ingredients)
	assert.Equal(t, "Applicare", p.UsageInstructions)
	assert.Equal(t, "Morbidezza", p.Benefits)
	assert.Equal(t, "Irisome", p.Technologies)
	assert.Equal(t, "https://example.com/a.jpg", p.ImageURL)
	assert.InDelta(t, 24.9, p.Price, 1e-9)
	assert.Zero(t, p.PromoPrice)
}

func TestParse_CanonicalWinsOverLegacy(t *testing.T) {
	s, err := Parse(strings.NewReader(`[{"id": "1", "name": "English", "nome": "Italiano"}]`))
	require.NoError(t, err)
	p, _ := s.Get(0)
	assert.Equal(t, "English", p.Name)
}

func TestParse_NumericIDAndRegularPriceFallback(t *testing.T) {
	s, err := Parse(strings.NewReader(`[{"id": 42, "name": "X", "regular_price": 12}]`))
	require.NoError(t, err)
	p, _ := s.Get(0)
	assert.Equal(t, "42", p.ID)
	assert.Equal(t, 12.0, p.Price)
}

func TestParse_Corrupt(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", `[{"id": "1"`},
		{"not an array", `{"id": "1"}`},
		{"missing id", `[{"name": "x"}]`},
		{"duplicate id", `[{"id": "1"}, {"id": "1"}]`},
		{"bad price", `[{"id": "1", "price": "cheap"}]`},
		{"trailing data", `[] []`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, domain.ErrCorruptData)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	s, err := Parse(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.All())
}

func TestStore_GetOutOfRange(t *testing.T) {
	s, err := NewStore([]domain.ProductRecord{{ID: "a"}})
	require.NoError(t, err)

	_, err = s.Get(1)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)
	_, err = s.Get(-1)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products_metadata.json")
	records := []domain.ProductRecord{
		{ID: "a", Brand: "Wella", Name: "One", Price: 10},
		{ID: "b", Brand: "Davines", Name: "Two & Three", Price: 20,
			SimilarityScore: 0.9, MatchType: domain.MatchTypeSemantic},
	}

	require.NoError(t, Write(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "similarity_score")
	assert.Contains(t, string(data), "Two & Three")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Size())
	b, _ := s.Get(1)
	assert.Equal(t, "Two & Three", b.Name)
	assert.Empty(t, b.MatchType)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoad_DigestMatchesEncodedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products_metadata.json")
	records := []domain.ProductRecord{{ID: "a", Name: "One"}, {ID: "b", Name: "Two"}}

	data, err := Marshal(records)
	require.NoError(t, err)
	require.NoError(t, WriteEncoded(path, data))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Digest(data), s.Digest())

	// Same records in another order fingerprint differently.
	reordered, err := Marshal([]domain.ProductRecord{records[1], records[0]})
	require.NoError(t, err)
	assert.NotEqual(t, Digest(data), Digest(reordered))

	mem, err := NewStore(records)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{}, mem.Digest())
}
