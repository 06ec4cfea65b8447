package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/catalog"
)

// Directory is a loaded model directory: full class definitions and extra relation URIs
type Directory struct {
	Path      string
	Files     []string
	Catalog   *catalog.Catalog
	Relations []string
}

// LoadDirectory reads every YAML file below dir into one set of class definitions
func LoadDirectory(dir string) (*Directory, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model directory %s is not a directory", dir)
	}

	files, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.{yaml,yml}"))
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	merged := &catalog.Document{}
	for _, file := range files {
		doc, err := catalog.ReadDocumentFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read model file %s: %w", file, err)
		}
		merged.Classes = append(merged.Classes, doc.Classes...)
		merged.Relations = append(merged.Relations, doc.Relations...)
	}

	cat, err := catalog.FromDocument(dir, merged)
	if err != nil {
		return nil, err
	}
	return &Directory{Path: dir, Files: files, Catalog: cat, Relations: merged.Relations}, nil
}

// Resolver builds and caches the Type of each class. Classes defined in the model directory
// replace the subset definition.
type Resolver struct {
	catalog   *catalog.Catalog
	directory *Directory
	relations *RelationRegistry
	logger    *zap.Logger

	mu    sync.Mutex
	types map[string]*Type
}

// NewResolver creates a resolver over a catalog. directory may be nil.
func NewResolver(cat *catalog.Catalog, directory *Directory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	relations := NewRelationRegistry()
	if directory != nil {
		relations.Add(directory.Relations...)
	}
	return &Resolver{
		catalog:   cat,
		directory: directory,
		relations: relations,
		logger:    logger,
		types:     make(map[string]*Type),
	}
}

// Relations returns the relation registry in use
func (r *Resolver) Relations() *RelationRegistry {
	return r.relations
}

// IsRelation reports whether the class is a relation
func (r *Resolver) IsRelation(uri string) bool {
	return r.relations.IsRelation(uri)
}

// Type returns the object type of a class URI
func (r *Resolver) Type(uri string) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.types[uri]; ok {
		return t, nil
	}

	class, ok := r.lookupClass(uri)
	if !ok {
		return nil, fmt.Errorf("class %s not found in subset or model directory", uri)
	}
	t := NewType(class, r.relations.IsRelation(uri))
	r.types[uri] = t
	return t, nil
}

func (r *Resolver) lookupClass(uri string) (*catalog.ClassDescriptor, bool) {
	if r.directory != nil {
		if class, ok := r.directory.Catalog.Class(uri); ok {
			r.logger.Debug("using model directory definition", zap.String("class", uri))
			return class, true
		}
	}
	return r.catalog.Class(uri)
}
