package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
	"github.com/felixgeelhaar/smartreviewer/pkg/storage"
)

//go:embed default_checks.yaml
var defaultCatalogue []byte

// DefaultCatalogue returns the built-in basic design and test plan checks.
func DefaultCatalogue() (*review.Catalogue, error) {
	return ParseCatalogue(defaultCatalogue)
}

// ParseCatalogue decodes and validates a catalogue document.
func ParseCatalogue(data []byte) (*review.Catalogue, error) {
	var c review.Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalogue: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for _, item := range c.Items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// LoadCatalogue reads .smartreviewer/checks.yaml, falling back to the
// built-in catalogue when the workspace has none.
func LoadCatalogue(root string) (*review.Catalogue, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.CatalogueFile)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to the workspace directory
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalogue()
		}
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// LoadCatalogueFile reads a catalogue from an explicit path.
func LoadCatalogueFile(path string) (*review.Catalogue, error) {
	// #nosec G304 -- path is user-supplied on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// WriteDefaultCatalogue copies the built-in catalogue to checks.yaml so it
// can be edited. An existing file is left alone and reported as false.
func WriteDefaultCatalogue(root string) (bool, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.CatalogueFile)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, defaultCatalogue, 0600); err != nil {
		return false, fmt.Errorf("failed to write catalogue: %w", err)
	}
	return true, nil
}
