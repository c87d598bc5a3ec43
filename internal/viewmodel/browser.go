package viewmodel

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

// maxBrowserItems is how many results the simulated page shows.
const maxBrowserItems = 3

// BrowserView is the data the simulated browser viewport renders.
type BrowserView struct {
	URL         string
	SearchTerm  string
	ActiveStore string
	Title       string
	Items       []domain.ShoppingItem
}

// BuildBrowserView derives the simulated page for a navigation URL.
func BuildBrowserView(rawURL string, items []domain.ShoppingItem) BrowserView {
	store := StoreName(rawURL)
	return BrowserView{
		URL:         rawURL,
		SearchTerm:  SearchTerm(rawURL),
		ActiveStore: store,
		Title:       PageTitle(rawURL),
		Items:       StoreItems(items, store),
	}
}

// SearchTerm returns the decoded q parameter of a URL, or "".
func SearchTerm(rawURL string) string {
	_, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return ""
	}
	query, _, _ = strings.Cut(query, "#")
	for _, pair := range strings.Split(query, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key == "q" {
			return strings.TrimSpace(decodeQueryValue(value))
		}
	}
	return ""
}

// decodeQueryValue maps + to space and percent-decodes, keeping the raw text
// when the escapes are malformed.
func decodeQueryValue(raw string) string {
	raw = strings.ReplaceAll(raw, "+", " ")
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// StoreName returns the capitalized first label of the URL's host.
func StoreName(rawURL string) string {
	host := strings.TrimSpace(rawURL)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if len(host) >= 4 && strings.EqualFold(host[:4], "www.") {
		host = host[4:]
	}
	if label, _, ok := strings.Cut(host, "."); ok {
		host = label
	}
	if i := strings.IndexAny(host, "/:?#"); i >= 0 {
		host = host[:i]
	}
	return capitalize(host)
}

// PageTitle synthesizes a tab title for a navigation URL.
func PageTitle(rawURL string) string {
	store := StoreName(rawURL)
	if term := SearchTerm(rawURL); term != "" {
		if store == "" {
			return term
		}
		return term + " - " + store
	}
	return store
}

// StoreItems returns up to three items sold by store, falling back to the
// first three items when none match.
func StoreItems(items []domain.ShoppingItem, store string) []domain.ShoppingItem {
	needle := strings.ToLower(store)
	var matched []domain.ShoppingItem
	if needle != "" {
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Store), needle) {
				matched = append(matched, item)
				if len(matched) == maxBrowserItems {
					break
				}
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}
	return domain.CloneItems(items[:min(len(items), maxBrowserItems)])
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
