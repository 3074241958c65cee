// Package prompt builds the text sent to the language model.
//
// Prompt wording lives in a versioned YAML catalogue (templates.yaml, embedded
// in the binary and overridable from disk). Each template uses named
// {{ slot }} placeholders that the Builder fills in.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Template names the Builder requires.
const (
	AnalysisScript = "analysis_script"
	Interpretation = "interpretation"
	ReportAnalysis = "report_analysis"
	Campaign       = "campaign"
	Opportunities  = "opportunities"
	StyleAdvice    = "style_advice"
)

// requiredSlots lists the slots each template must declare.
var requiredSlots = map[string][]string{
	AnalysisScript: {"question", "columns", "types", "binding"},
	Interpretation: {"question", "result"},
	ReportAnalysis: {"data"},
	Campaign:       {"goal", "channel", "weak_service", "weak_day"},
	Opportunities:  {"areas", "key_data"},
	StyleAdvice:    nil,
}

// optionalSlots are filled by the Builder but need not appear.
var optionalSlots = map[string][]string{
	AnalysisScript: {"tabular"},
	ReportAnalysis: {"row_count"},
}

//go:embed templates.yaml
var defaultCatalog []byte

// Catalog is a parsed, validated set of prompt templates.
type Catalog struct {
	Version   int
	Source    string
	templates map[string]*Template
}

type catalogFile struct {
	Version   int                     `yaml:"version"`
	Templates map[string]templateFile `yaml:"templates"`
}

type templateFile struct {
	Description string `yaml:"description"`
	Text        string `yaml:"text"`
}

// DefaultCatalog returns the embedded catalogue.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog("templates.yaml", defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded prompt catalogue: %v", err))
	}
	return c
}

// DefaultCatalogYAML returns a copy of the embedded catalogue source, as a
// starting point for a custom catalogue.
func DefaultCatalogYAML() []byte {
	return bytes.Clone(defaultCatalog)
}

// LoadCatalog reads a catalogue from path. An empty path yields the
// embedded catalogue.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt catalogue: %w", err)
	}
	return ParseCatalog(path, data)
}

// ParseCatalog parses and validates catalogue YAML. Unknown fields are
// rejected, and every template the Builder uses must be present with its
// required slots and no slot the Builder does not fill.
func ParseCatalog(source string, data []byte) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%s: invalid prompt catalogue: %w", source, err)
	}
	if file.Version < 1 {
		return nil, fmt.Errorf("%s: prompt catalogue version must be >= 1", source)
	}

	tmpls := make([]*Template, 0, len(file.Templates))
	for name, tf := range file.Templates {
		tmpl, err := Parse(name, tf.Text)
		if err != nil {
			return nil, fmt.Errorf("%s: template %s: %w", source, name, err)
		}
		tmpls = append(tmpls, tmpl)
	}
	c := NewCatalog(source, file.Version, tmpls...)

	for name, slots := range requiredSlots {
		tmpl, ok := c.templates[name]
		if !ok {
			return nil, fmt.Errorf("%s: missing template %q", source, name)
		}
		declared := tmpl.Slots()
		for _, slot := range slots {
			if !slices.Contains(declared, slot) {
				return nil, fmt.Errorf("%s: template %q does not use slot %q", source, name, slot)
			}
		}
		for _, slot := range declared {
			if !slices.Contains(slots, slot) && !slices.Contains(optionalSlots[name], slot) {
				return nil, fmt.Errorf("%s: template %q uses unknown slot %q", source, name, slot)
			}
		}
	}
	return c, nil
}

// NewCatalog assembles a catalogue from parsed templates, keyed by name.
// It does not check that the Builder's templates and slots are present.
func NewCatalog(source string, version int, templates ...*Template) *Catalog {
	c := &Catalog{Version: version, Source: source, templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		c.templates[t.Name] = t
	}
	return c
}

// Template returns the named template.
func (c *Catalog) Template(name string) (*Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// Names returns the template names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render renders the named template.
func (c *Catalog) Render(name string, values map[string]string) (string, error) {
	t, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	return t.Render(values)
}
