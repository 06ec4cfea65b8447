package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LoadError reports a subset source that could not be read. It aborts a generation run.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load subset %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ErrUnknownSourceFormat is returned (wrapped in a LoadError) for unsupported extensions
var ErrUnknownSourceFormat = errors.New("unknown subset format")

// Load reads a subset source, choosing the reader from the file extension
func Load(ctx context.Context, locator string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(locator)
	if err != nil {
		return nil, &LoadError{Source: locator, Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Source: locator, Err: fmt.Errorf("%s is a directory", locator)}
	}

	var cat *Catalog
	switch ext := strings.ToLower(filepath.Ext(locator)); ext {
	case ".db", ".sqlite", ".sqlite3":
		cat, err = LoadSQLite(ctx, locator)
	case ".yaml", ".yml":
		cat, err = LoadYAML(locator)
	default:
		err = &LoadError{Source: locator, Err: fmt.Errorf("%w: %q", ErrUnknownSourceFormat, ext)}
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("subset loaded",
		zap.String("source", locator),
		zap.Int("classes", len(cat.classes)))
	return cat, nil
}

// geometryBases are the abstract classes that give a class a geometry attribute
var geometryBases = map[string]struct{}{
	"https://wegenenverkeer.data.vlaanderen.be/ns/abstracten#Geometrie":      {},
	"https://wegenenverkeer.data.vlaanderen.be/ns/abstracten#Puntgeometrie":  {},
	"https://wegenenverkeer.data.vlaanderen.be/ns/abstracten#Lijngeometrie":  {},
	"https://wegenenverkeer.data.vlaanderen.be/ns/abstracten#Vlakgeometrie":  {},
	"https://wegenenverkeer.data.vlaanderen.be/ns/abstracten#VlakGeometrie":  {},
	"https://wegenenverkeer.data.vlaanderen.be/ns/abstracten#Puntgeometrie3D": {},
}

// resolveInheritance merges ancestor attributes into every class (own first, then ancestors
// nearest first, first name wins) and derives geometry exposure from the ancestry.
func resolveInheritance(classes []*ClassDescriptor) {
	byURI := make(map[string]*ClassDescriptor, len(classes))
	own := make(map[string][]*AttributeDescriptor, len(classes))
	for _, cl := range classes {
		byURI[cl.URI] = cl
		own[cl.URI] = cl.Attributes
	}

	for _, cl := range classes {
		seen := map[string]struct{}{cl.URI: {}}
		names := make(map[string]struct{}, len(cl.Attributes))
		merged := make([]*AttributeDescriptor, 0, len(cl.Attributes))
		for _, a := range own[cl.URI] {
			names[a.Name] = struct{}{}
			merged = append(merged, a)
		}

		queue := append([]string(nil), cl.Bases...)
		for len(queue) > 0 {
			uri := queue[0]
			queue = queue[1:]
			if _, ok := seen[uri]; ok {
				continue
			}
			seen[uri] = struct{}{}

			if _, ok := geometryBases[uri]; ok {
				cl.Geometry = true
			}
			base, ok := byURI[uri]
			if !ok {
				continue
			}
			if base.Geometry {
				cl.Geometry = true
			}
			for _, a := range own[uri] {
				if _, dup := names[a.Name]; dup {
					continue
				}
				names[a.Name] = struct{}{}
				merged = append(merged, a)
			}
			queue = append(queue, base.Bases...)
		}

		cl.Attributes = merged
	}
}

// xsdDatatype maps an XML schema datatype URI to a kind and scalar datatype
func xsdDatatype(typeURI string) (Kind, string, bool) {
	idx := strings.LastIndex(typeURI, "#")
	if idx < 0 {
		return KindScalar, "", false
	}
	ns, local := typeURI[:idx], typeURI[idx+1:]

	if strings.HasSuffix(ns, "geosparql") && local == "wktLiteral" {
		return KindScalar, DatatypeWKT, true
	}
	if !strings.HasSuffix(ns, "XMLSchema") && !strings.HasSuffix(ns, "rdf-schema") {
		return KindScalar, "", false
	}

	switch local {
	case "boolean":
		return KindBoolean, "", true
	case "integer", "int", "long", "nonNegativeInteger", "positiveInteger":
		return KindScalar, DatatypeInteger, true
	case "decimal", "float", "double":
		return KindScalar, DatatypeDecimal, true
	case "date":
		return KindScalar, DatatypeDate, true
	case "dateTime":
		return KindScalar, DatatypeDateTime, true
	case "time":
		return KindScalar, DatatypeTime, true
	case "anyURI":
		return KindScalar, DatatypeURI, true
	default:
		return KindScalar, DatatypeString, true
	}
}

// repeatedCardinality reports whether a kardinaliteit_max value allows more than one value
func repeatedCardinality(max string) bool {
	max = strings.TrimSpace(max)
	return max != "" && max != "1"
}
