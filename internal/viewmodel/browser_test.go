package viewmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

func TestBrowserDerivation(t *testing.T) {
	const u = "https://www.bestbuy.com/search?q=gaming+laptop"

	assert.Equal(t, "gaming laptop", SearchTerm(u))
	assert.Equal(t, "Bestbuy", StoreName(u))
	assert.Equal(t, "gaming laptop - Bestbuy", PageTitle(u))
}

func TestSearchTermPercentDecoding(t *testing.T) {
	assert.Equal(t, "4k tv & soundbar", SearchTerm("https://www.target.com/s?q=4k%20tv+%26+soundbar&page=2"))
	assert.Equal(t, "", SearchTerm("https://www.target.com/"))
	assert.Equal(t, "", SearchTerm("https://www.target.com/s?k=tv"))
}

func TestSearchTermToleratesMalformedQuery(t *testing.T) {
	tests := map[string]string{
		"https://www.x.com/s?q=salt;pepper":       "salt;pepper",
		"https://www.x.com/s?q=100%":              "100%",
		"https://www.x.com/s?q=50%25+off&bad=%zz": "50% off",
		"https://www.x.com/s?page=2&q=tea#top":    "tea",
	}
	for in, want := range tests {
		assert.Equal(t, want, SearchTerm(in), in)
	}
	assert.Equal(t, "100% - X", PageTitle("https://www.x.com/s?q=100%"))
}

func TestStoreNameVariants(t *testing.T) {
	tests := map[string]string{
		"http://walmart.com/search?q=milk": "Walmart",
		"https://WWW.Kayak.com/flights":    "Kayak",
		"www.expedia.com":                  "Expedia",
		"https://localhost:3000/cart":      "Localhost",
		"":                                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, StoreName(in), in)
	}
}

func TestPageTitleWithoutSearchTerm(t *testing.T) {
	assert.Equal(t, "Newegg", PageTitle("https://www.newegg.com/p/123"))
}

func TestStoreItemsFiltersByActiveStore(t *testing.T) {
	items := []domain.ShoppingItem{
		{Name: "A", Store: "Amazon"},
		{Name: "B", Store: "Best Buy"},
		{Name: "C", Store: "amazon fresh"},
		{Name: "D", Store: "Amazon"},
		{Name: "E", Store: "Amazon"},
	}
	got := StoreItems(items, "Amazon")
	names := []string{}
	for _, it := range got {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"A", "C", "D"}, names)
}

func TestStoreItemsFallsBackToFirstThree(t *testing.T) {
	items := []domain.ShoppingItem{{Name: "A", Store: "Dell"}, {Name: "B", Store: "Apple"}, {Name: "C"}, {Name: "D"}}
	got := StoreItems(items, "Bestbuy")
	assert.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Name)

	assert.Empty(t, StoreItems(nil, "Bestbuy"))
}

func TestBuildBrowserView(t *testing.T) {
	items := []domain.ShoppingItem{{Name: "MacBook", Store: "Apple"}, {Name: "XPS", Store: "Dell"}}
	view := BuildBrowserView("https://www.dell.com/search?q=laptop", items)

	assert.Equal(t, "Dell", view.ActiveStore)
	assert.Equal(t, "laptop", view.SearchTerm)
	assert.Equal(t, "laptop - Dell", view.Title)
	assert.Len(t, view.Items, 1)
	assert.Equal(t, "XPS", view.Items[0].Name)
}
