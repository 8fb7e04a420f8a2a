package wizard

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind decides how a step collects its answer.
type Kind string

const (
	KindSingleSelect  Kind = "single-select"
	KindSingleSpecify Kind = "single-select-specify" // single select, some options open a free-text field
	KindMultiSelect   Kind = "multi-select"          // bounded by MaxSelections
	KindText          Kind = "text"
	KindUpload        Kind = "upload" // local file path
	KindGroup         Kind = "group"  // several select fields answered on one screen
)

func (k Kind) valid() bool {
	switch k {
	case KindSingleSelect, KindSingleSpecify, KindMultiSelect, KindText, KindUpload, KindGroup:
		return true
	}
	return false
}

// Selects reports whether the kind picks from Options.
func (k Kind) Selects() bool {
	return k == KindSingleSelect || k == KindSingleSpecify || k == KindMultiSelect
}

// FreeForm reports whether the kind takes typed input.
func (k Kind) FreeForm() bool {
	return k == KindText || k == KindUpload
}

// Option is one selectable label. Specify marks options that open the
// supplementary free-text field on single-select-specify steps.
type Option struct {
	Label   string `yaml:"label" json:"label"`
	Specify bool   `yaml:"specify,omitempty" json:"specify,omitempty"`
}

// UnmarshalYAML accepts either a bare label or a {label, specify} mapping.
func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		return fmt.Errorf("invalid option")
	}
	if node.Kind == yaml.ScalarNode {
		o.Label = strings.TrimSpace(node.Value)
		o.Specify = false
		return nil
	}
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			switch key := node.Content[i].Value; key {
			case "label", "specify":
			default:
				return fmt.Errorf("line %d: field %s not found in option", node.Content[i].Line, key)
			}
		}
	}
	type rawOption Option
	var raw rawOption
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw.Label = strings.TrimSpace(raw.Label)
	*o = Option(raw)
	return nil
}

// StepDefinition describes one screen of a wizard.
type StepDefinition struct {
	ID            string           `yaml:"id" json:"id"`
	Kind          Kind             `yaml:"kind" json:"kind"`
	Prompt        string           `yaml:"prompt" json:"prompt"`
	Hint          string           `yaml:"hint,omitempty" json:"hint,omitempty"`
	Placeholder   string           `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Options       []Option         `yaml:"options,omitempty" json:"options,omitempty"`
	MaxSelections int              `yaml:"max_selections,omitempty" json:"max_selections,omitempty"`
	Optional      bool             `yaml:"optional,omitempty" json:"optional,omitempty"`
	Local         bool             `yaml:"local,omitempty" json:"local,omitempty"` // never sent to the backend
	Fields        []StepDefinition `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Option returns the option with the given label.
func (d StepDefinition) Option(label string) (Option, bool) {
	for _, o := range d.Options {
		if o.Label == label {
			return o, true
		}
	}
	return Option{}, false
}

// Labels returns the option labels in catalog order.
func (d StepDefinition) Labels() []string {
	labels := make([]string, 0, len(d.Options))
	for _, o := range d.Options {
		labels = append(labels, o.Label)
	}
	return labels
}

func (d StepDefinition) clone() StepDefinition {
	d.Options = slices.Clone(d.Options)
	if d.Fields != nil {
		fields := make([]StepDefinition, len(d.Fields))
		for i, f := range d.Fields {
			fields[i] = f.clone()
		}
		d.Fields = fields
	}
	return d
}

// Submission names the backend endpoint a catalog's answers are posted
// to and the message shown when the backend gives no reason.
type Submission struct {
	Path    string `yaml:"path" json:"path"`
	Failure string `yaml:"failure" json:"failure"`
}

type location struct {
	step  int
	field int // -1 for the step itself
}

// Catalog is an ordered, read-only sequence of steps.
type Catalog struct {
	name      string
	title     string
	skippable bool
	submit    Submission
	steps     []StepDefinition
	index     map[string]location
}

// CatalogOption configures optional catalog metadata.
type CatalogOption func(*Catalog)

// Skippable lets the user leave the wizard from any step.
func Skippable() CatalogOption {
	return func(c *Catalog) { c.skippable = true }
}

func WithTitle(title string) CatalogOption {
	return func(c *Catalog) { c.title = title }
}

func WithSubmission(s Submission) CatalogOption {
	return func(c *Catalog) { c.submit = s }
}

// NewCatalog validates steps and freezes them into a catalog.
func NewCatalog(name string, steps []StepDefinition, opts ...CatalogOption) (*Catalog, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("catalog has no name")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("catalog %s: no steps", name)
	}

	c := &Catalog{
		name:  name,
		title: name,
		index: make(map[string]location),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.steps = make([]StepDefinition, len(steps))
	for i, step := range steps {
		if err := c.add(i, -1, step); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		c.steps[i] = step.clone()
		if step.Kind == KindGroup {
			for j, field := range step.Fields {
				if err := c.add(i, j, field); err != nil {
					return nil, fmt.Errorf("catalog %s: step %s: %w", name, step.ID, err)
				}
			}
		}
	}
	return c, nil
}

func (c *Catalog) add(step, field int, d StepDefinition) error {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return fmt.Errorf("step %d has no id", step+1)
	}
	if _, dup := c.index[id]; dup {
		return fmt.Errorf("duplicate id %q", id)
	}
	if !d.Kind.valid() {
		return fmt.Errorf("step %s: unknown kind %q", id, d.Kind)
	}
	if err := validateStep(d, field >= 0); err != nil {
		return fmt.Errorf("step %s: %w", id, err)
	}
	c.index[id] = location{step: step, field: field}
	return nil
}

func validateStep(d StepDefinition, inGroup bool) error {
	if inGroup && !d.Kind.Selects() {
		return fmt.Errorf("group fields must be select kinds, got %s", d.Kind)
	}
	if d.Kind == KindGroup {
		if len(d.Fields) == 0 {
			return fmt.Errorf("group has no fields")
		}
	} else if len(d.Fields) > 0 {
		return fmt.Errorf("fields are only allowed on %s steps", KindGroup)
	}

	if !d.Kind.Selects() {
		if len(d.Options) > 0 {
			return fmt.Errorf("%s steps take no options", d.Kind)
		}
		return nil
	}

	if len(d.Options) == 0 {
		return fmt.Errorf("no options")
	}
	seen := make(map[string]bool, len(d.Options))
	for _, o := range d.Options {
		if o.Label == "" {
			return fmt.Errorf("empty option label")
		}
		if seen[o.Label] {
			return fmt.Errorf("duplicate option %q", o.Label)
		}
		seen[o.Label] = true
		if o.Specify && d.Kind != KindSingleSpecify {
			return fmt.Errorf("option %q: specify is only allowed on %s steps", o.Label, KindSingleSpecify)
		}
	}
	if d.Kind == KindMultiSelect && d.MaxSelections <= 0 {
		return fmt.Errorf("max_selections must be positive")
	}
	if d.Kind != KindMultiSelect && d.MaxSelections != 0 {
		return fmt.Errorf("max_selections is only allowed on %s steps", KindMultiSelect)
	}
	return nil
}

func (c *Catalog) Name() string  { return c.name }
func (c *Catalog) Title() string { return c.title }
func (c *Catalog) Len() int      { return len(c.steps) }

// IsSkippable reports whether the wizard offers a skip transition.
func (c *Catalog) IsSkippable() bool { return c.skippable }

func (c *Catalog) Submission() Submission { return c.submit }

// Step returns a copy of step i. It panics when i is out of range, like
// slice indexing.
func (c *Catalog) Step(i int) StepDefinition {
	return c.steps[i].clone()
}

// Steps returns a copy of all steps.
func (c *Catalog) Steps() []StepDefinition {
	out := make([]StepDefinition, len(c.steps))
	for i := range c.steps {
		out[i] = c.steps[i].clone()
	}
	return out
}

// Lookup finds a step or group field by id and reports the index of the
// step that owns it.
func (c *Catalog) Lookup(id string) (StepDefinition, int, bool) {
	loc, ok := c.index[id]
	if !ok {
		return StepDefinition{}, 0, false
	}
	step := c.steps[loc.step]
	if loc.field >= 0 {
		return step.Fields[loc.field].clone(), loc.step, true
	}
	return step.clone(), loc.step, true
}

// answerable returns the definitions holding values for step i: the step
// itself, or its fields for a group.
func (c *Catalog) answerable(i int) []StepDefinition {
	step := c.steps[i]
	if step.Kind == KindGroup {
		return step.Fields
	}
	return []StepDefinition{step}
}
