package textkit

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var caseFolder = cases.Fold()

// Normalizer lowercases, folds, and strips transcript text into a canonical
// token stream suitable for comparison. Normalization is idempotent: feeding
// its own output back produces the same string.
type Normalizer struct {
	stopwords map[string]struct{}
}

// NewNormalizer builds a normalizer that drops the provided filler words.
func NewNormalizer(stopwords []string) *Normalizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, word := range stopwords {
		word = foldString(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		set[word] = struct{}{}
	}
	return &Normalizer{stopwords: set}
}

// Normalize canonicalizes raw transcript text: Unicode NFKC, case folding,
// punctuation stripped to spaces, whitespace collapsed, filler words removed.
func (n *Normalizer) Normalize(text string) string {
	tokens := n.Tokens(text)
	return strings.Join(tokens, " ")
}

// Tokens returns the normalized token stream for the provided text.
func (n *Normalizer) Tokens(text string) []string {
	folded := foldString(text)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "'")
		if field == "" {
			continue
		}
		if _, drop := n.stopwords[field]; drop {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

func foldString(text string) string {
	return caseFolder.String(norm.NFKC.String(text))
}
