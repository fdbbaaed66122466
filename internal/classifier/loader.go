package classifier

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a category catalog.
type catalogFile struct {
	UrgentKeywords []string         `yaml:"urgent_keywords"`
	Categories     []CategoryConfig `yaml:"categories"`
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("catalog defines no categories")
	}
	return NewCatalog(file.Categories, file.UrgentKeywords)
}

// LoadCatalogFile reads a catalog from path. An empty path yields the defaults.
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// Reloader refreshes a Classifier from its catalog file.
type Reloader struct {
	path       string
	classifier *Classifier
	logger     *zap.Logger
}

// NewReloader binds a catalog file to a classifier.
func NewReloader(path string, classifier *Classifier, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{path: path, classifier: classifier, logger: logger}
}

// Reload parses the file and swaps it in. On error the active catalog is kept.
func (r *Reloader) Reload() (*Catalog, error) {
	cat, err := LoadCatalogFile(r.path)
	if err != nil {
		r.logger.Warn("category catalog reload failed", zap.String("path", r.path), zap.Error(err))
		return nil, err
	}
	r.classifier.Swap(cat)
	r.logger.Info("category catalog loaded",
		zap.String("path", r.path),
		zap.Int("categories", len(cat.all)))
	return cat, nil
}
