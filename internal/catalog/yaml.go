package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a subset (and of model-directory definitions)
type Document struct {
	Classes   []YAMLClass `yaml:"classes"`
	Relations []string    `yaml:"relations,omitempty"`
}

// YAMLClass is one class entry of a Document
type YAMLClass struct {
	URI               string          `yaml:"uri"`
	Name              string          `yaml:"name"`
	Label             string          `yaml:"label,omitempty"`
	Definition        string          `yaml:"definition,omitempty"`
	Abstract          bool            `yaml:"abstract,omitempty"`
	DeprecatedVersion string          `yaml:"deprecated_version,omitempty"`
	Geometry          bool            `yaml:"geometry,omitempty"`
	Inherits          []string        `yaml:"inherits,omitempty"`
	Attributes        []YAMLAttribute `yaml:"attributes,omitempty"`
}

// YAMLAttribute is one attribute entry, nested for complex kinds
type YAMLAttribute struct {
	Name              string          `yaml:"name"`
	Label             string          `yaml:"label,omitempty"`
	Definition        string          `yaml:"definition,omitempty"`
	Kind              string          `yaml:"kind"`
	Repeated          bool            `yaml:"repeated,omitempty"`
	DeprecatedVersion string          `yaml:"deprecated_version,omitempty"`
	Enumeration       string          `yaml:"enumeration,omitempty"`
	Options           []YAMLOption    `yaml:"options,omitempty"`
	Attributes        []YAMLAttribute `yaml:"attributes,omitempty"`
}

// YAMLOption is one enumeration option
type YAMLOption struct {
	Value  string `yaml:"value"`
	Label  string `yaml:"label,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// ReadDocument decodes a YAML subset document
func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to decode subset document: %w", err)
	}
	return &doc, nil
}

// ReadDocumentFile decodes the YAML document at path
func ReadDocumentFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDocument(f)
}

// LoadYAML reads a YAML subset
func LoadYAML(path string) (*Catalog, error) {
	doc, err := ReadDocumentFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return FromDocument(path, doc)
}

// FromDocument builds a catalog from a decoded document
func FromDocument(source string, doc *Document) (*Catalog, error) {
	classes, err := doc.Descriptors()
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	resolveInheritance(classes)
	return New(source, classes), nil
}

// Descriptors converts the document classes without resolving inheritance
func (d *Document) Descriptors() ([]*ClassDescriptor, error) {
	classes := make([]*ClassDescriptor, 0, len(d.Classes))
	seen := make(map[string]struct{}, len(d.Classes))
	for _, c := range d.Classes {
		if c.URI == "" {
			return nil, fmt.Errorf("class %q has no uri", c.Name)
		}
		if _, dup := seen[c.URI]; dup {
			return nil, fmt.Errorf("class %s declared twice", c.URI)
		}
		seen[c.URI] = struct{}{}

		name := c.Name
		if name == "" {
			name = c.URI[strings.LastIndexAny(c.URI, "#/")+1:]
		}
		cl := &ClassDescriptor{
			URI:               c.URI,
			Name:              name,
			Label:             c.Label,
			Definition:        c.Definition,
			Abstract:          c.Abstract,
			DeprecatedVersion: c.DeprecatedVersion,
			Geometry:          c.Geometry,
			Bases:             append([]string(nil), c.Inherits...),
		}
		for _, a := range c.Attributes {
			attr, err := a.descriptor()
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", c.URI, err)
			}
			cl.Attributes = append(cl.Attributes, attr)
		}
		classes = append(classes, cl)
	}
	return classes, nil
}

func (a YAMLAttribute) descriptor() (*AttributeDescriptor, error) {
	if a.Name == "" {
		return nil, fmt.Errorf("attribute without name")
	}
	attr := &AttributeDescriptor{
		Name:              a.Name,
		Label:             a.Label,
		Definition:        a.Definition,
		DeprecatedVersion: a.DeprecatedVersion,
		Kind:              FieldKind{Kind: KindScalar, Repeated: a.Repeated},
	}

	switch strings.ToLower(a.Kind) {
	case "", DatatypeString:
		attr.Datatype = DatatypeString
	case DatatypeInteger, DatatypeDecimal, DatatypeDate, DatatypeDateTime, DatatypeTime, DatatypeURI, DatatypeWKT:
		attr.Datatype = strings.ToLower(a.Kind)
	case "boolean":
		attr.Kind.Kind = KindBoolean
	case "enum", "enumeration":
		attr.Kind.Kind = KindEnumerated
		attr.Enumeration = a.Enumeration
		if attr.Enumeration == "" {
			return nil, fmt.Errorf("attribute %s: enumeration name required", a.Name)
		}
		for _, o := range a.Options {
			attr.Options = append(attr.Options, Option{Value: o.Value, Label: o.Label, Status: o.Status})
		}
	case "complex", "union":
		attr.Kind.Kind = KindComplex
		attr.Union = strings.EqualFold(a.Kind, "union")
		for _, child := range a.Attributes {
			c, err := child.descriptor()
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
			}
			attr.Children = append(attr.Children, c)
		}
	default:
		return nil, fmt.Errorf("attribute %s: unknown kind %q", a.Name, a.Kind)
	}
	return attr, nil
}
