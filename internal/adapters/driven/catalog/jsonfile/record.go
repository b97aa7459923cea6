package jsonfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// rawRecord accepts both the canonical and the legacy key set.
type rawRecord struct {
	ID              flexString `json:"id"`
	URL             string     `json:"url"`
	Brand           string     `json:"brand"`
	Price           flexFloat  `json:"price"`
	RegularPrice    flexFloat  `json:"regular_price"`
	PromoPrice      flexFloat  `json:"promo_price"`
	DiscountPercent flexFloat  `json:"discount_percent"`

	Name              string `json:"name"`
	Category          string `json:"category"`
	Subcategory       string `json:"subcategory"`
	Description       string `json:"description"`
	Ingredients       string `json:"ingredients"`
	UsageInstructions string `json:"usage_instructions"`
	Benefits          string `json:"benefits"`
	Technologies      string `json:"technologies"`
	ImageURL          string `json:"image_url"`

	Nome                string `json:"nome"`
	Categoria           string `json:"categoria"`
	Subcategoria        string `json:"subcategoria"`
	DescrizioneCompleta string `json:"descrizione_completa"`
	Ingredienti         string `json:"ingredienti"`
	ModoUso             string `json:"modo_uso"`
	Benefici            string `json:"benefici"`
	Tecnologie          string `json:"tecnologie"`
	Immagine            string `json:"immagine"`
}

func (r *rawRecord) toDomain() domain.ProductRecord {
	p := domain.ProductRecord{
		ID:                strings.TrimSpace(string(r.ID)),
		URL:               r.URL,
		Brand:             strings.TrimSpace(r.Brand),
		Category:          first(r.Category, r.Categoria),
		Subcategory:       first(r.Subcategory, r.Subcategoria),
		Price:             float64(r.Price),
		RegularPrice:      float64(r.RegularPrice),
		PromoPrice:        float64(r.PromoPrice),
		DiscountPercent:   float64(r.DiscountPercent),
		Name:              first(r.Name, r.Nome),
		Description:       first(r.Description, r.DescrizioneCompleta),
		Ingredients:       first(r.Ingredients, r.Ingredienti),
		UsageInstructions: first(r.UsageInstructions, r.ModoUso),
		Benefits:          first(r.Benefits, r.Benefici),
		Technologies:      first(r.Technologies, r.Tecnologie),
		ImageURL:          first(r.ImageURL, r.Immagine),
	}
	if p.Price <= 0 {
		p.Price = p.RegularPrice
	}
	return p
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// flexString decodes a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*s = flexString(n.String())
	return nil
}

// flexFloat decodes a JSON number, a numeric string ("12,50") or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
