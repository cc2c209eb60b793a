package discovery

import (
	"strings"
	"unicode"
)

// DefaultKeyword is appended to every discovery query.
const DefaultKeyword = "careers"

var entitySuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "corp": {}, "corporation": {}, "co": {},
	"company": {}, "llc": {}, "llp": {}, "ltd": {}, "limited": {}, "lp": {},
	"plc": {}, "group": {}, "holdings": {}, "bank": {},
}

// BuildQuery turns a company name into a search query: lower-cased,
// punctuation trimmed, trailing legal-entity suffixes and EDGAR state
// markers ("/de/") removed, keyword appended. At least one name token is
// always kept.
func BuildQuery(name, keyword string) string {
	if keyword == "" {
		keyword = DefaultKeyword
	}

	var tokens []string
	for _, raw := range strings.Fields(strings.ToLower(name)) {
		if isStateMarker(raw) {
			continue
		}
		tok := strings.TrimFunc(raw, func(r rune) bool {
			return unicode.IsPunct(r) && r != '&'
		})
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	for len(tokens) > 1 {
		last := strings.ReplaceAll(tokens[len(tokens)-1], ".", "")
		if _, ok := entitySuffixes[last]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	if len(tokens) == 0 {
		return keyword
	}
	return strings.Join(tokens, " ") + " " + keyword
}

// isStateMarker reports tokens like "/de/" or "/ny" that EDGAR appends to
// names to mark the state of incorporation.
func isStateMarker(tok string) bool {
	if !strings.HasPrefix(tok, "/") {
		return false
	}
	inner := strings.Trim(tok, "/")
	if len(inner) < 2 || len(inner) > 3 {
		return false
	}
	for _, r := range inner {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
