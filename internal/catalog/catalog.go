// Package catalog holds the resources the pipeline knows how to ingest.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/BartekS5/paysync/internal/config"
	"github.com/BartekS5/paysync/internal/etl"
	"github.com/BartekS5/paysync/pkg/models"
)

//go:embed resources/*.json
var builtins embed.FS

// Catalog maps resource names to descriptors. It is read-only once built.
type Catalog struct {
	resources map[string]*models.Resource
}

// New builds a catalog from specs. Duplicate names are rejected.
func New(specs ...*models.ResourceSpec) (*Catalog, error) {
	c := &Catalog{resources: make(map[string]*models.Resource, len(specs))}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", etl.ErrInvalidSchema, err)
		}
		if _, dup := c.resources[spec.Name]; dup {
			return nil, fmt.Errorf("%w: resource %s declared twice", etl.ErrInvalidSchema, spec.Name)
		}
		c.resources[spec.Name] = &models.Resource{
			ResourceSpec: *spec,
			Transform:    etl.Projector(spec.Schema),
		}
	}
	return c, nil
}

// BuiltinSpecs parses the embedded resource definitions.
func BuiltinSpecs() ([]*models.ResourceSpec, error) {
	paths, err := fs.Glob(builtins, "resources/*.json")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	specs := make([]*models.ResourceSpec, 0, len(paths))
	for _, p := range paths {
		data, err := builtins.ReadFile(p)
		if err != nil {
			return nil, err
		}
		spec, err := models.ParseResourceSpec(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", etl.ErrInvalidSchema, p, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Default returns the catalog of built-in resources.
func Default() (*Catalog, error) {
	specs, err := BuiltinSpecs()
	if err != nil {
		return nil, err
	}
	return New(specs...)
}

// Load returns the built-in resources with every definition found in dir
// added, replacing built-ins of the same name. An empty dir yields the
// built-ins alone.
func Load(dir string) (*Catalog, error) {
	specs, err := BuiltinSpecs()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return New(specs...)
	}

	overrides, err := config.LoadResourceSpecs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", etl.ErrInvalidSchema, err)
	}
	byName := make(map[string]int, len(specs))
	for i, s := range specs {
		byName[s.Name] = i
	}
	for _, o := range overrides {
		if i, ok := byName[o.Name]; ok {
			specs[i] = o
			continue
		}
		byName[o.Name] = len(specs)
		specs = append(specs, o)
	}
	return New(specs...)
}

func (c *Catalog) Lookup(name string) (*models.Resource, error) {
	res, ok := c.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", etl.ErrUnknownResource, name)
	}
	return res, nil
}

// Names returns the resource names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.resources))
	for n := range c.resources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
