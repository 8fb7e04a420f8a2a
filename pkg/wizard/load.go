package wizard

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	OnboardingCatalog = "onboarding"
	QuizCatalog       = "quiz"
)

//go:embed catalogs/*.yaml
var builtinCatalogs embed.FS

// catalogSpec is the YAML form of a catalog.
type catalogSpec struct {
	Name      string           `yaml:"name"`
	Title     string           `yaml:"title"`
	Skippable bool             `yaml:"skippable"`
	Submit    Submission       `yaml:"submit"`
	Steps     []StepDefinition `yaml:"steps"`
}

// LoadCatalog decodes and validates a YAML catalog. Unknown keys are errors.
func LoadCatalog(data []byte) (*Catalog, error) {
	var spec catalogSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	opts := []CatalogOption{WithSubmission(spec.Submit)}
	if strings.TrimSpace(spec.Title) != "" {
		opts = append(opts, WithTitle(spec.Title))
	}
	if spec.Skippable {
		opts = append(opts, Skippable())
	}
	return NewCatalog(spec.Name, spec.Steps, opts...)
}

// Registry holds the catalogs available by name.
var Registry = make(map[string]*Catalog)

// Register adds a catalog, replacing any with the same name.
func Register(c *Catalog) {
	Registry[c.Name()] = c
}

// Get retrieves a catalog by name.
func Get(name string) (*Catalog, error) {
	c, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown catalog: %s", name)
	}
	return c, nil
}

// Names lists registered catalogs in sorted order.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	if err := registerFS(builtinCatalogs, "catalogs"); err != nil {
		// Built-in catalogs ship with the binary; a bad one is a build defect.
		panic(err)
	}
}

func registerFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("catalog registry: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("catalog registry: read %s: %w", p, err)
		}
		c, err := LoadCatalog(data)
		if err != nil {
			return fmt.Errorf("catalog registry: %s: %w", e.Name(), err)
		}
		Register(c)
	}
	return nil
}

// LoadDir registers every *.yaml catalog in dir. Catalogs with a built-in
// name override the built-in.
func LoadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("catalog dir: %w", err)
	}
	return registerFS(os.DirFS(dir), ".")
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
