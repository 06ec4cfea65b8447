// Package model turns catalog classes into typed object definitions with a path index, and
// holds the placeholder instances built from them.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/otl-tools/otltemplate/internal/catalog"
)

// Fixed column paths
const (
	TypeURIPath   = "typeURI"
	GeometryPath  = "geometry"
	AssetIDPath   = "assetId"
	IdentityPath  = "assetId.identificator"
	AssetVersie   = "assetVersie"
	RepeatedMark  = "[]"
	PathSeparator = "."
)

// TypeURIDefinition is the description shown for the typeURI column
const TypeURIDefinition = "De URI van het object volgens https://www.w3.org/2001/XMLSchema#anyURI ."

// TypeURIAttribute describes the typeURI column every type carries
var TypeURIAttribute = &catalog.AttributeDescriptor{
	Name:       TypeURIPath,
	Label:      "typeURI",
	Definition: TypeURIDefinition,
	Kind:       catalog.FieldKind{Kind: catalog.KindScalar},
	Datatype:   catalog.DatatypeURI,
}

// GeometryAttribute is the geometry attribute exposed by classes with a geometry base
var GeometryAttribute = &catalog.AttributeDescriptor{
	Name:       GeometryPath,
	Label:      "geometrie",
	Definition: "geometry voor DAVIE",
	Kind:       catalog.FieldKind{Kind: catalog.KindScalar},
	Datatype:   catalog.DatatypeWKT,
}

// AttributeResolutionError reports a column path that does not resolve against a type
type AttributeResolutionError struct {
	TypeURI string
	Path    string
}

func (e *AttributeResolutionError) Error() string {
	return fmt.Sprintf("attribute %s does not resolve on %s", e.Path, e.TypeURI)
}

// Type is the full object definition of one class
type Type struct {
	URI        string
	Name       string
	Abstract   bool
	Relation   bool
	Attributes []*catalog.AttributeDescriptor
	Geometry   *catalog.AttributeDescriptor

	paths map[string]*catalog.AttributeDescriptor
}

// NewType builds the type for a class. The path index is computed once here.
func NewType(class *catalog.ClassDescriptor, relation bool) *Type {
	t := &Type{
		URI:        class.URI,
		Name:       class.Name,
		Abstract:   class.Abstract,
		Relation:   relation,
		Attributes: append([]*catalog.AttributeDescriptor(nil), class.Attributes...),
	}
	if relation {
		t.Attributes = withRelationAttributes(t.Attributes)
	}
	if class.Geometry {
		t.Geometry = GeometryAttribute
	}

	t.paths = map[string]*catalog.AttributeDescriptor{TypeURIPath: TypeURIAttribute}
	t.index("", t.Attributes)
	if t.Geometry != nil {
		t.paths[GeometryPath] = t.Geometry
	}
	return t
}

func (t *Type) index(prefix string, attrs []*catalog.AttributeDescriptor) {
	for _, a := range attrs {
		path := prefix + SegmentOf(a)
		t.paths[path] = a
		if a.IsComplex() {
			t.index(path+PathSeparator, a.Children)
		}
	}
}

// SegmentOf returns the path segment of an attribute, with the repeated marker when needed
func SegmentOf(a *catalog.AttributeDescriptor) string {
	if a.Kind.Repeated {
		return a.Name + RepeatedMark
	}
	return a.Name
}

// Attribute returns the top-level attribute with the given name, geometry included
func (t *Type) Attribute(name string) *catalog.AttributeDescriptor {
	if name == GeometryPath && t.Geometry != nil {
		return t.Geometry
	}
	for _, a := range t.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Lookup resolves a column path such as "testComplexTypeMetKard[].testKwantWrd"
func (t *Type) Lookup(path string) (*catalog.AttributeDescriptor, error) {
	if a, ok := t.paths[path]; ok {
		return a, nil
	}
	return nil, &AttributeResolutionError{TypeURI: t.URI, Path: path}
}

// Paths returns every indexed path, sorted
func (t *Type) Paths() []string {
	out := make([]string, 0, len(t.paths))
	for p := range t.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasIdentity reports whether the type carries assetId.identificator
func (t *Type) HasIdentity() bool {
	_, ok := t.paths[IdentityPath]
	return ok
}

// ShortURI returns the namespace-qualified class name, e.g. onderdeel#Camera
func ShortURI(uri string) string {
	hash := strings.LastIndex(uri, "#")
	if hash < 0 {
		return uri[strings.LastIndex(uri, "/")+1:]
	}
	ns := uri[:hash]
	return ns[strings.LastIndex(ns, "/")+1:] + "#" + uri[hash+1:]
}
