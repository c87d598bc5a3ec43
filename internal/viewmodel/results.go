// Package viewmodel computes presentation data from session state.
//
// Everything here is a pure function of its inputs; nothing in this package
// is a source of truth.
package viewmodel

import (
	"strings"

	"github.com/ashureev/shopping-assistant/internal/domain"
)

// GroupKey selects the field results are grouped by.
type GroupKey string

const (
	GroupByStore    GroupKey = "store"
	GroupByCategory GroupKey = "category"
)

// OtherGroup labels items that have no value for the grouping field.
const OtherGroup = "Other"

// ParseGroupKey maps user input to a GroupKey, defaulting to store.
func ParseGroupKey(s string) GroupKey {
	if strings.EqualFold(strings.TrimSpace(s), string(GroupByCategory)) {
		return GroupByCategory
	}
	return GroupByStore
}

// Toggle returns the other grouping key.
func (k GroupKey) Toggle() GroupKey {
	if k == GroupByCategory {
		return GroupByStore
	}
	return GroupByCategory
}

// ResultKind classifies a whole result set.
type ResultKind string

const (
	KindTech    ResultKind = "tech"
	KindTravel  ResultKind = "travel"
	KindFinance ResultKind = "finance"
	KindGeneric ResultKind = "generic"
)

type kindRule struct {
	kind       ResultKind
	categories []string
	title      string
	checkout   string
}

// kindRules are checked in priority order.
var kindRules = []kindRule{
	{KindTech, []string{"laptop", "smartphone", "computer", "tablet", "electronics"}, "Tech Products", "Purchase Selected"},
	{KindTravel, []string{"hotel", "flight", "resort", "airbnb"}, "Travel Options", "Book Selected"},
	{KindFinance, []string{"etf", "stock", "fund", "bond", "crypto"}, "Investment Options", "Invest Now"},
}

var genericRule = kindRule{KindGeneric, nil, "Shopping List", "Checkout"}

// Line is an item together with its line total.
type Line struct {
	Item  domain.ShoppingItem
	Total float64
}

// Group is a set of lines sharing a grouping value.
type Group struct {
	Name     string
	Lines    []Line
	Subtotal float64
}

// Results is the render-ready results view.
type Results struct {
	GroupedBy     GroupKey
	Groups        []Group
	GrandTotal    float64
	ItemCount     int
	Kind          ResultKind
	Title         string
	CheckoutLabel string
}

// Empty reports whether there is nothing to show.
func (r Results) Empty() bool {
	return r.ItemCount == 0
}

// BuildResults groups items by key and computes totals and classification.
func BuildResults(items []domain.ShoppingItem, key GroupKey) Results {
	if key != GroupByCategory {
		key = GroupByStore
	}

	rule := classify(items)
	res := Results{
		GroupedBy:     key,
		ItemCount:     len(items),
		Kind:          rule.kind,
		Title:         rule.title,
		CheckoutLabel: rule.checkout,
	}

	index := make(map[string]int)
	for _, item := range items {
		name := groupValue(item, key)
		i, ok := index[name]
		if !ok {
			i = len(res.Groups)
			index[name] = i
			res.Groups = append(res.Groups, Group{Name: name})
		}
		line := Line{Item: item, Total: item.LineTotal()}
		res.Groups[i].Lines = append(res.Groups[i].Lines, line)
		res.Groups[i].Subtotal += line.Total
		res.GrandTotal += line.Total
	}
	return res
}

// Classify returns the kind of a result set.
func Classify(items []domain.ShoppingItem) ResultKind {
	return classify(items).kind
}

func classify(items []domain.ShoppingItem) kindRule {
	categories := make(map[string]struct{}, len(items))
	for _, item := range items {
		if c := strings.ToLower(strings.TrimSpace(item.Category)); c != "" {
			categories[c] = struct{}{}
		}
	}
	for _, rule := range kindRules {
		for _, c := range rule.categories {
			if _, ok := categories[c]; ok {
				return rule
			}
		}
	}
	return genericRule
}

func groupValue(item domain.ShoppingItem, key GroupKey) string {
	var v string
	if key == GroupByCategory {
		v = item.Category
	} else {
		v = item.Store
	}
	if strings.TrimSpace(v) == "" {
		return OtherGroup
	}
	return v
}
