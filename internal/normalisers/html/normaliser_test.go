package html

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Shampoo idratante", want: "Shampoo idratante"},
		{name: "empty", input: "", want: ""},
		{name: "paragraphs", input: "<p>Deterge</p><p>Nutre</p>", want: "Deterge\nNutre"},
		{name: "line breaks", input: "Primo<br>Secondo<br/>Terzo", want: "Primo\nSecondo\nTerzo"},
		{name: "entities", input: "Cheratina &amp; Argan &egrave; ottimo", want: "Cheratina & Argan è ottimo"},
		{name: "inline tags", input: "Con <strong>olio</strong> di <em>argan</em>", want: "Con olio di argan"},
		{name: "script removed", input: "Testo<script>alert(1)</script>", want: "Testo"},
		{name: "comments removed", input: "A<!-- nascosto -->B", want: "AB"},
		{name: "list", input: "<ul><li>Uno</li><li>Due</li></ul>", want: "Uno\nDue"},
		{name: "collapse spaces", input: "  molto    lucido  \n\n\n  ", want: "molto lucido"},
		{name: "non-breaking space", input: "Lucido&nbsp;&nbsp;intenso", want: "Lucido intenso"},
		{name: "style and svg removed", input: "<style>p{color:red}</style>Riflessi<svg><g><text>icona</text></g></svg> dorati", want: "Riflessi dorati"},
		{name: "nested hidden", input: "<noscript><script>x()</script>vecchio browser</noscript>Visibile", want: "Visibile"},
		{name: "bare less-than", input: "pH < 5 &gt; acido", want: "pH < 5 > acido"},
		{name: "uppercase tags", input: "<P>Uno</P><DIV>Due</DIV>", want: "Uno\nDue"},
		{name: "unclosed tag", input: "Lucentezza <b>extra", want: "Lucentezza extra"},
		{name: "windows line endings", input: "Riga uno\r\n\r\nRiga due", want: "Riga uno\nRiga due"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.input))
		})
	}
}

func TestNormalise(t *testing.T) {
	in := domain.ProductRecord{
		ID:           "p1",
		URL:          "https://shop.example/p1?a=1&b=2",
		Name:         "  Shampoo\n Nutriente ",
		Brand:        "Wella   SP",
		Category:     "Shampoo",
		Price:        24.9,
		Description:  "<p>Deterge <b>delicatamente</b>.</p><p>Per capelli secchi.</p>",
		Ingredients:  "<p>Aqua,</p><p>Glycerin</p>",
		Technologies: "Micro<br>Light",
	}

	out := New().Normalise(in)

	assert.Equal(t, "p1", out.ID)
	assert.Equal(t, in.URL, out.URL)
	assert.Equal(t, 24.9, out.Price)
	assert.Equal(t, "Shampoo Nutriente", out.Name)
	assert.Equal(t, "Wella SP", out.Brand)
	assert.Equal(t, "Deterge delicatamente.\nPer capelli secchi.", out.Description)
	assert.Equal(t, "Aqua, Glycerin", out.Ingredients)
	assert.Equal(t, "Micro Light", out.Technologies)
	assert.Empty(t, out.UsageInstructions)
	assert.Equal(t, "<p>Deterge <b>delicatamente</b>.</p><p>Per capelli secchi.</p>", in.Description, "input must not change")
}
