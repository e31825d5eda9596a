package catalog

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultData []byte

var ErrNotFound = errors.New("not found")

type Product struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Price       float64  `yaml:"price" json:"price"`
	ImageURL    string   `yaml:"imageUrl" json:"imageUrl"`
	Category    string   `yaml:"category" json:"category"`
	Features    []string `yaml:"features" json:"features"`
	RoomType    []string `yaml:"roomType" json:"roomType"`
	FinishType  string   `yaml:"finishType" json:"finishType"`
	Capacity    string   `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	SoapType    string   `yaml:"soapType,omitempty" json:"soapType,omitempty"`
}

type Category struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Subcategories  []string `yaml:"subcategories" json:"subcategories"`
	RoomTypes      []string `yaml:"roomTypes" json:"roomTypes"`
	FeatureOptions []string `yaml:"featureOptions" json:"featureOptions"`
}

type Issue struct {
	ID    string   `yaml:"-" json:"id"`
	Issue string   `yaml:"issue" json:"issue"`
	Steps []string `yaml:"steps" json:"steps"`
}

type Starter struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	InitialMessage string `yaml:"initialMessage" json:"initialMessage"`
	FollowUp       string `yaml:"followUp" json:"followUp"`
	Resolution     string `yaml:"resolution" json:"resolution"`
}

type ScenarioLine struct {
	Sender  string `yaml:"sender" json:"sender"`
	Message string `yaml:"message" json:"message"`
	Image   string `yaml:"image,omitempty" json:"image,omitempty"`
}

type Scenario struct {
	ID           string         `yaml:"-" json:"id"`
	Title        string         `yaml:"title" json:"title"`
	Description  string         `yaml:"description" json:"description"`
	Conversation []ScenarioLine `yaml:"conversation" json:"conversation"`
	Outcomes     []string       `yaml:"outcomes" json:"outcomes"`
}

type document struct {
	Products        []Product                   `yaml:"products"`
	Categories      []Category                  `yaml:"categories"`
	Questions       map[string][]string         `yaml:"questions"`
	Troubleshooting map[string]map[string]Issue `yaml:"troubleshooting"`
	Answers         map[string]string           `yaml:"answers"`
	Starters        []Starter                   `yaml:"starters"`
	Scenarios       map[string]Scenario         `yaml:"scenarios"`
}

// Catalog is the read-only demo product and support content.
type Catalog struct {
	products        []Product
	byID            map[string]int
	categories      []Category
	questions       map[string][]string
	troubleshooting map[string][]Issue
	answers         map[string]string
	starters        []Starter
	scenarios       []Scenario
}

// Filter narrows Products. Empty fields match everything.
type Filter struct {
	Category string
	Room     string
	Query    string
}

// Default loads the embedded catalog, or the file at path when path is set.
func Default(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultData)
	}
	return Load(path)
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	c := &Catalog{
		products:        doc.Products,
		byID:            make(map[string]int, len(doc.Products)),
		categories:      doc.Categories,
		questions:       doc.Questions,
		troubleshooting: make(map[string][]Issue, len(doc.Troubleshooting)),
		answers:         doc.Answers,
		starters:        doc.Starters,
	}
	for i, p := range doc.Products {
		if p.ID == "" {
			return nil, errors.Errorf("product %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, errors.Errorf("duplicate product id %q", p.ID)
		}
		c.byID[p.ID] = i
	}
	for category, issues := range doc.Troubleshooting {
		list := make([]Issue, 0, len(issues))
		for key, issue := range issues {
			issue.ID = key
			list = append(list, issue)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		c.troubleshooting[category] = list
	}
	for id, s := range doc.Scenarios {
		s.ID = id
		c.scenarios = append(c.scenarios, s)
	}
	sort.Slice(c.scenarios, func(i, j int) bool { return c.scenarios[i].ID < c.scenarios[j].ID })
	return c, nil
}

// Products returns the products matching f in catalog order.
func (c *Catalog) Products(f Filter) []Product {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.Room != "" && !containsFold(p.RoomType, f.Room) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Catalog) Product(id string) (Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, errors.Wrapf(ErrNotFound, "product %q", id)
	}
	return c.products[i], nil
}

func (c *Catalog) Categories() []Category {
	return c.categories
}

func (c *Catalog) HasCategory(id string) bool {
	for _, cat := range c.categories {
		if cat.ID == id {
			return true
		}
	}
	return false
}

func (c *Catalog) Questions(category string) ([]string, error) {
	q, ok := c.questions[category]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "questions for %q", category)
	}
	return q, nil
}

// Troubleshooting returns the known issues for a category sorted by issue id.
func (c *Catalog) Troubleshooting(category string) ([]Issue, error) {
	issues, ok := c.troubleshooting[category]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "troubleshooting for %q", category)
	}
	return issues, nil
}

func (c *Catalog) Answer(topic string) (string, error) {
	a, ok := c.answers[topic]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "answer %q", topic)
	}
	return a, nil
}

// Topics lists the canned answer topics, sorted.
func (c *Catalog) Topics() []string {
	topics := make([]string, 0, len(c.answers))
	for t := range c.answers {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (c *Catalog) Starters() []Starter {
	return c.starters
}

func (c *Catalog) Scenarios() []Scenario {
	return c.scenarios
}

func (c *Catalog) Scenario(id string) (Scenario, error) {
	for _, s := range c.scenarios {
		if s.ID == id {
			return s, nil
		}
	}
	return Scenario{}, errors.Wrapf(ErrNotFound, "scenario %q", id)
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
