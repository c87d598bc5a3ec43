// Package agent runs the simulated multi-agent shopping assistant: query
// classification, scripted agent steps, browser navigation and the final
// shopping list.
package agent

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/shopping-assistant/internal/domain"
	"github.com/ashureev/shopping-assistant/internal/protocol"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Step activates one agent and logs what it did.
type Step struct {
	Agent   string `yaml:"agent"`
	Message string `yaml:"message"`
}

// Browse describes the sites the browser agent visits.
type Browse struct {
	Message string   `yaml:"message"`
	Sites   []string `yaml:"sites"`
}

// Variant overrides the result items when the query contains When.
type Variant struct {
	When  string                `yaml:"when"`
	Items []domain.ShoppingItem `yaml:"items"`
}

// Scenario is the script for one query kind.
type Scenario struct {
	Kind     domain.QueryKind      `yaml:"kind"`
	Keywords []string              `yaml:"keywords"`
	Steps    []Step                `yaml:"steps"`
	Browse   Browse                `yaml:"browse"`
	Variants []Variant             `yaml:"variants"`
	Items    []domain.ShoppingItem `yaml:"items"`
}

// Catalog is the ordered set of scenarios.
type Catalog struct {
	Scenarios []Scenario `yaml:"scenarios"`

	fallback *Scenario
}

// DefaultCatalog parses the embedded scenario catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("catalog has no scenarios")
	}
	seen := make(map[domain.QueryKind]bool, len(c.Scenarios))
	known := make(map[string]bool, len(domain.AgentNames))
	for _, name := range domain.AgentNames {
		known[name] = true
	}

	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		if s.Kind == "" {
			return fmt.Errorf("scenario %d: kind is required", i)
		}
		if seen[s.Kind] {
			return fmt.Errorf("scenario %q: duplicate kind", s.Kind)
		}
		seen[s.Kind] = true

		if len(s.Keywords) == 0 {
			if c.fallback != nil {
				return fmt.Errorf("scenario %q: only one scenario may omit keywords", s.Kind)
			}
			c.fallback = s
		}
		for _, step := range s.Steps {
			if !known[step.Agent] {
				return fmt.Errorf("scenario %q: unknown agent %q", s.Kind, step.Agent)
			}
		}
		if err := protocol.ValidateItems(s.Items); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Kind, err)
		}
		for _, v := range s.Variants {
			if err := protocol.ValidateItems(v.Items); err != nil {
				return fmt.Errorf("scenario %q variant %q: %w", s.Kind, v.When, err)
			}
		}
	}
	if c.fallback == nil {
		return fmt.Errorf("catalog needs one scenario without keywords")
	}
	return nil
}

// Classify returns the first scenario with a keyword contained in query,
// or the fallback scenario.
func (c *Catalog) Classify(query string) *Scenario {
	q := strings.ToLower(query)
	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		for _, kw := range s.Keywords {
			if strings.Contains(q, kw) {
				return s
			}
		}
	}
	return c.fallback
}

// Scenario returns the scenario for kind.
func (c *Catalog) Scenario(kind domain.QueryKind) (*Scenario, bool) {
	for i := range c.Scenarios {
		if c.Scenarios[i].Kind == kind {
			return &c.Scenarios[i], true
		}
	}
	return nil, false
}

// Products lists every item a scenario can produce, variants first.
func (c *Catalog) Products(kind domain.QueryKind) []domain.ShoppingItem {
	s, ok := c.Scenario(kind)
	if !ok {
		return []domain.ShoppingItem{}
	}
	out := make([]domain.ShoppingItem, 0, len(s.Items))
	for _, v := range s.Variants {
		out = append(out, v.Items...)
	}
	return append(out, s.Items...)
}

// ItemsFor returns the result list for query: the first matching variant, or
// the scenario's default items.
func (s *Scenario) ItemsFor(query string) []domain.ShoppingItem {
	q := strings.ToLower(query)
	for _, v := range s.Variants {
		if strings.Contains(q, strings.ToLower(v.When)) {
			return domain.CloneItems(v.Items)
		}
	}
	out := domain.CloneItems(s.Items)
	if out == nil {
		out = []domain.ShoppingItem{}
	}
	return out
}

// BrowseMessage renders the browser agent log line for site.
func (s *Scenario) BrowseMessage(site string) string {
	return strings.ReplaceAll(s.Browse.Message, "{site}", site)
}

// Answer is the one-shot response for a direct query.
type Answer struct {
	QueryType domain.QueryKind      `json:"query_type"`
	Response  string                `json:"response"`
	Items     []domain.ShoppingItem `json:"items"`
}

// Answer classifies query and returns its items without running agents.
func (c *Catalog) Answer(query string) Answer {
	s := c.Classify(query)
	items := s.ItemsFor(query)
	return Answer{
		QueryType: s.Kind,
		Response:  fmt.Sprintf("Found %d %s options for %q", len(items), s.Kind, query),
		Items:     items,
	}
}

// NavigationURL builds the search URL the browser agent visits on site.
func NavigationURL(site, query string) string {
	host := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return -1
		}
		return r
	}, site)
	return "https://www." + host + ".com/search?q=" + url.QueryEscape(query)
}
