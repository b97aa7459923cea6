package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// DefaultCategoryKeywords is the controlled category vocabulary, Italian first
// because the catalog is published in Italian.
var DefaultCategoryKeywords = []string{
	"shampoo", "balsamo", "maschera", "trattamento", "olio", "siero",
	"spray", "mousse", "gel", "phon", "piastra", "spazzola", "diffusore",
	"conditioner", "mask", "treatment", "oil", "serum", "balm",
	"dryer", "straightener", "brush", "diffuser",
}

// queryStopwords never count as a brand token on their own.
var queryStopwords = map[string]struct{}{
	"hai": {}, "avete": {}, "che": {}, "per": {}, "con": {}, "una": {}, "uno": {},
	"del": {}, "della": {}, "dei": {}, "delle": {}, "gli": {}, "quale": {},
	"vorrei": {}, "cerco": {}, "sono": {}, "capelli": {}, "prodotto": {}, "prodotti": {},
	"the": {}, "and": {}, "for": {}, "with": {}, "have": {}, "you": {}, "any": {},
	"hair": {}, "product": {}, "products": {}, "under": {}, "below": {}, "less": {},
	"than": {}, "sotto": {}, "meno": {}, "entro": {}, "fino": {}, "euro": {},
}

// genericBrandWords are words of multi-word brands too common to identify
// one: "Wella Professionals" is found by "wella", not by "professionals".
var genericBrandWords = map[string]struct{}{
	"professional": {}, "professionals": {}, "professionnel": {}, "pro": {},
	"paris": {}, "milano": {}, "milan": {}, "italia": {}, "italy": {}, "london": {},
	"new": {}, "york": {}, "hair": {}, "care": {}, "haircare": {}, "beauty": {},
	"cosmetics": {}, "cosmetici": {}, "cosmetic": {}, "lab": {}, "labs": {},
	"laboratoire": {}, "laboratories": {}, "group": {}, "company": {}, "line": {},
	"collection": {}, "salon": {}, "studio": {}, "style": {}, "styling": {},
	"natural": {}, "organic": {}, "bio": {}, "color": {}, "colour": {},
	"the": {}, "and": {}, "per": {}, "for": {}, "man": {}, "men": {}, "uomo": {},
	"donna": {}, "system": {}, "expert": {}, "series": {}, "original": {},
}

// measureUnits follow numbers that are durations, temperatures or sizes
// rather than prices: "entro 5 minuti", "fino a 230 gradi".
var measureUnits = map[string]struct{}{
	"secondi": {}, "secondo": {}, "sec": {}, "minuti": {}, "minuto": {}, "min": {},
	"ore": {}, "ora": {}, "giorni": {}, "giorno": {}, "settimane": {}, "settimana": {},
	"mesi": {}, "mese": {}, "anni": {}, "anno": {}, "lavaggi": {}, "applicazioni": {},
	"seconds": {}, "minutes": {}, "minute": {}, "mins": {}, "hours": {}, "hour": {},
	"days": {}, "day": {}, "weeks": {}, "week": {}, "months": {}, "month": {},
	"years": {}, "year": {}, "washes": {}, "uses": {},
	"gradi": {}, "grado": {}, "degrees": {},
	"ml": {}, "lt": {}, "litri": {}, "litro": {}, "cl": {}, "oz": {},
	"gr": {}, "grammi": {}, "kg": {}, "cm": {}, "mm": {}, "w": {}, "watt": {},
	"pezzi": {}, "pz": {}, "pieces": {},
}

// minBrandTokenLen is the shortest query token that may match a brand word.
const minBrandTokenLen = 3

var (
	priceNumber = `(\d+(?:[.,]\d{1,2})?)`

	// "under 20", "sotto i 20€", "meno di 15 euro", "max 30", "entro 25".
	// Group 1 is the currency marker, group 2 the amount.
	priceQualifierRe = regexp.MustCompile(
		`\b(?:under|below|less than|up to|max(?:imum)?|massimo|sotto(?: i)?|meno di|entro(?: i)?|fino a(?:i)?|non più di)\b` +
			`\s*(€|\$|eur(?:o)?\b)?\s*` + priceNumber)

	// "20€", "20 euro", "15 eur".
	priceSuffixRe = regexp.MustCompile(`\b` + priceNumber + `\s*(?:€|euro\b|eur\b|\$)`)

	// "€20", "$15".
	pricePrefixRe = regexp.MustCompile(`(?:€|\$)\s*` + priceNumber)
)

// FilterExtractor finds brand, category and price signals in raw query text.
type FilterExtractor struct {
	brands     []string            // longest first
	brandWords map[string]struct{} // single words of multi-word brands
	categories []string
}

// NewFilterExtractor creates an extractor over a brand vocabulary.
// An empty categories slice selects DefaultCategoryKeywords.
func NewFilterExtractor(brands, categories []string) *FilterExtractor {
	e := &FilterExtractor{
		brandWords: make(map[string]struct{}),
	}

	for _, b := range brands {
		b = normaliseBrand(b)
		if b == "" {
			continue
		}
		e.brands = append(e.brands, b)
		for _, w := range tokenize(b) {
			if _, generic := genericBrandWords[w]; generic {
				continue
			}
			if utf8.RuneCountInString(w) >= minBrandTokenLen {
				e.brandWords[w] = struct{}{}
			}
		}
	}
	sort.SliceStable(e.brands, func(i, j int) bool {
		if len(e.brands[i]) != len(e.brands[j]) {
			return len(e.brands[i]) > len(e.brands[j])
		}
		return e.brands[i] < e.brands[j]
	})

	if len(categories) == 0 {
		categories = DefaultCategoryKeywords
	}
	for _, c := range categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			e.categories = append(e.categories, c)
		}
	}

	return e
}

// Extract parses query into a FilterSet. A query with no signals yields an
// empty set, which is the common case.
func (e *FilterExtractor) Extract(query string) domain.FilterSet {
	q := strings.ToLower(query)
	tokens := tokenize(q)

	categories := e.detectCategories(tokens)
	return domain.FilterSet{
		Brand:            e.detectBrand(q, tokens, categories),
		CategoryKeywords: categories,
		PriceMax:         detectPriceMax(q),
	}
}

// detectBrand prefers the longest full brand name found at word boundaries.
// Failing that, the first query token equal to a word of some brand is used,
// so "wella" is found for the catalog brand "wella sp".
func (e *FilterExtractor) detectBrand(q string, tokens, categories []string) string {
	for _, b := range e.brands {
		if containsWord(q, b) {
			return b
		}
	}

	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minBrandTokenLen {
			continue
		}
		if _, stop := queryStopwords[tok]; stop {
			continue
		}
		if isCategoryToken(tok, categories) {
			continue
		}
		if _, ok := e.brandWords[tok]; ok {
			return tok
		}
	}
	return ""
}

// detectCategories returns, in vocabulary order, every keyword contained in a query token.
func (e *FilterExtractor) detectCategories(tokens []string) []string {
	var found []string
	for _, kw := range e.categories {
		for _, tok := range tokens {
			if strings.Contains(tok, kw) {
				found = append(found, kw)
				break
			}
		}
	}
	return found
}

func isCategoryToken(tok string, categories []string) bool {
	for _, kw := range categories {
		if strings.Contains(tok, kw) {
			return true
		}
	}
	return false
}

// detectPriceMax returns the first price ceiling in q. A qualified number
// with no currency marker is skipped when a unit of measure follows it.
func detectPriceMax(q string) *float64 {
	for _, m := range priceQualifierRe.FindAllStringSubmatchIndex(q, -1) {
		if m[2] < 0 && followedByUnit(q[m[1]:]) {
			continue
		}
		if v, ok := parsePrice(q[m[4]:m[5]]); ok {
			return &v
		}
	}
	for _, re := range []*regexp.Regexp{priceSuffixRe, pricePrefixRe} {
		if m := re.FindStringSubmatch(q); m != nil {
			if v, ok := parsePrice(m[1]); ok {
				return &v
			}
		}
	}
	return nil
}

func parsePrice(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	return v, err == nil
}

// followedByUnit reports whether rest opens with a unit of measure.
func followedByUnit(rest string) bool {
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if strings.HasPrefix(rest, "%") || strings.HasPrefix(rest, "°") {
		return true
	}
	end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(rest)
	}
	_, unit := measureUnits[rest[:end]]
	return unit
}

// tokenize splits s on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsWord reports whether needle occurs in s with no letter or digit
// immediately before or after it.
func containsWord(s, needle string) bool {
	if needle == "" {
		return false
	}
	for start := 0; start <= len(s)-len(needle); {
		i := strings.Index(s[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)

		before, _ := utf8.DecodeLastRuneInString(s[:i])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (i == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
