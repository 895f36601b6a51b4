package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BartekS5/paysync/pkg/models"
)

// LoadResourceSpec reads and parses a single resource definition file.
func LoadResourceSpec(filePath string) (*models.ResourceSpec, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource file '%s': %w", filePath, err)
	}

	spec, err := models.ParseResourceSpec(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resource file '%s': %w", filePath, err)
	}
	return spec, nil
}

// LoadResourceSpecs parses every *.json file in dir, in file name order.
func LoadResourceSpecs(dir string) ([]*models.ResourceSpec, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no resource files found in '%s'", dir)
	}
	sort.Strings(paths)

	specs := make([]*models.ResourceSpec, 0, len(paths))
	for _, p := range paths {
		spec, err := LoadResourceSpec(p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
