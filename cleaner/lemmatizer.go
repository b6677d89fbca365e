package cleaner

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const lemmaCacheSize = 4096

// lemmatizer reduces lowercase English tokens to their dictionary base form
// with an irregular-form table plus noun suffix rules. The rules are a fixed
// point: applying them to their own output changes nothing, which keeps the
// whole clean stage idempotent.
type lemmatizer struct {
	irregular map[string]string
	keepAsIs  map[string]struct{}
	cache     *lru.Cache[string, string]
}

type suffixRule struct {
	suffix  string
	replace string
}

// Ordered: specific suffixes first so generic s-stripping never fires on
// forms the earlier rules own.
var nounRules = []suffixRule{
	{"ies", "y"},
	{"sses", "ss"},
	{"ches", "ch"},
	{"shes", "sh"},
	{"xes", "x"},
	{"men", "man"},
}

var irregularNouns = map[string]string{
	"children":   "child",
	"feet":       "foot",
	"geese":      "goose",
	"mice":       "mouse",
	"teeth":      "tooth",
	"criteria":   "criterion",
	"phenomena":  "phenomenon",
	"analyses":   "analysis",
	"hypotheses": "hypothesis",
	"theses":     "thesis",
	"indices":    "index",
	"matrices":   "matrix",
	"corpora":    "corpus",
}

// Words that end in s but are not plurals.
var singularInS = map[string]struct{}{
	"bias": {}, "alias": {}, "atlas": {}, "canvas": {}, "lens": {},
	"series": {}, "species": {}, "news": {}, "physics": {},
	"mathematics": {}, "economics": {}, "statistics": {}, "linguistics": {},
	"robotics": {}, "dynamics": {}, "genomics": {}, "semantics": {},
}

func newLemmatizer() *lemmatizer {
	// Cache construction only fails on a non-positive size.
	cache, _ := lru.New[string, string](lemmaCacheSize)
	return &lemmatizer{
		irregular: irregularNouns,
		keepAsIs:  singularInS,
		cache:     cache,
	}
}

// Lemma returns the base form of a lowercase token.
func (l *lemmatizer) Lemma(token string) string {
	if cached, ok := l.cache.Get(token); ok {
		return cached
	}
	lemma := l.resolve(token)
	l.cache.Add(token, lemma)
	return lemma
}

func (l *lemmatizer) resolve(token string) string {
	if base, ok := l.irregular[token]; ok {
		return base
	}
	if _, ok := l.keepAsIs[token]; ok {
		return token
	}

	for _, rule := range nounRules {
		if strings.HasSuffix(token, rule.suffix) && len(token) > len(rule.suffix)+1 {
			return strings.TrimSuffix(token, rule.suffix) + rule.replace
		}
	}

	// Plain plural s, guarding endings where a final s is part of the stem.
	if len(token) > 3 && strings.HasSuffix(token, "s") &&
		!strings.HasSuffix(token, "ss") &&
		!strings.HasSuffix(token, "us") &&
		!strings.HasSuffix(token, "is") {
		return strings.TrimSuffix(token, "s")
	}
	return token
}
