package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider names understood by Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderBedrock   = "bedrock"
)

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID            string `yaml:"id" json:"id"`
	Label         string `yaml:"label" json:"label"`
	APIIdentifier string `yaml:"apiIdentifier" json:"apiIdentifier"`
	Provider      string `yaml:"provider" json:"provider"`
	Description   string `yaml:"description" json:"description"`
}

// Catalog is the fixed set of models a chat request may select.
type Catalog struct {
	models []ModelInfo
	byID   map[string]ModelInfo
}

var defaultModels = []ModelInfo{
	{
		ID:            "gpt-4o-mini",
		Label:         "GPT 4o mini",
		APIIdentifier: "gpt-4o-mini",
		Provider:      ProviderOpenAI,
		Description:   "Small model for fast, lightweight tasks",
	},
	{
		ID:            "gpt-4o",
		Label:         "GPT 4o",
		APIIdentifier: "gpt-4o",
		Provider:      ProviderOpenAI,
		Description:   "For complex, multi-step tasks",
	},
}

// DefaultCatalog returns the built-in model list.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(defaultModels)
	return c
}

// NewCatalog builds a catalog, rejecting empty or duplicate ids and unknown
// providers.
func NewCatalog(models []ModelInfo) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog: no models")
	}
	c := &Catalog{byID: make(map[string]ModelInfo, len(models))}
	for _, m := range models {
		if m.ID == "" || m.APIIdentifier == "" {
			return nil, fmt.Errorf("catalog: model %q needs id and apiIdentifier", m.ID)
		}
		switch m.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderBedrock:
		default:
			return nil, fmt.Errorf("catalog: model %q: unsupported provider %q", m.ID, m.Provider)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate model id %q", m.ID)
		}
		c.byID[m.ID] = m
		c.models = append(c.models, m)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog of the form
//
//	models:
//	  - id: gpt-4o
//	    label: GPT 4o
//	    apiIdentifier: gpt-4o
//	    provider: openai
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file struct {
		Models []ModelInfo `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return NewCatalog(file.Models)
}

// Lookup returns the model with the given id or ErrModelNotFound.
func (c *Catalog) Lookup(id string) (ModelInfo, error) {
	m, ok := c.byID[id]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: %q", ErrModelNotFound, id)
	}
	return m, nil
}

// Models returns the catalog entries in declaration order.
func (c *Catalog) Models() []ModelInfo {
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}
