// Package catalog loads subset sources (OSLO subset databases or YAML subsets) into an
// immutable, read-only view of classes and their attributes.
package catalog

import (
	"strings"
)

// Kind is the base shape of an attribute value
type Kind int

const (
	// KindScalar is any single primitive value (string, number, date, uri, geometry)
	KindScalar Kind = iota
	// KindBoolean is a true/false value
	KindBoolean
	// KindEnumerated is a value restricted to a choice list
	KindEnumerated
	// KindComplex is a nested object with its own attributes
	KindComplex
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindEnumerated:
		return "enumerated"
	case KindComplex:
		return "complex"
	default:
		return "scalar"
	}
}

// FieldKind is the closed set of attribute shapes: a base kind, optionally repeated
type FieldKind struct {
	Kind     Kind
	Repeated bool
}

// String renders the kind, e.g. "complex" or "repeated(enumerated)"
func (f FieldKind) String() string {
	if f.Repeated {
		return "repeated(" + f.Kind.String() + ")"
	}
	return f.Kind.String()
}

// Scalar datatypes understood by the placeholder synthesizer
const (
	DatatypeString   = "string"
	DatatypeInteger  = "integer"
	DatatypeDecimal  = "decimal"
	DatatypeDate     = "date"
	DatatypeDateTime = "datetime"
	DatatypeTime     = "time"
	DatatypeURI      = "uri"
	DatatypeWKT      = "wkt"
)

// StatusRemoved marks an option that may no longer be used
const StatusRemoved = "verwijderd"

// Option is one valid value of an enumerated attribute
type Option struct {
	Value  string // machine value (invulwaarde)
	Label  string
	Status string
}

// Removed reports whether the option is excluded from choice lists
func (o Option) Removed() bool {
	return strings.EqualFold(o.Status, StatusRemoved)
}

// AttributeDescriptor describes one attribute of a class or of a complex datatype
type AttributeDescriptor struct {
	Name              string
	Label             string
	URI               string
	Definition        string
	Kind              FieldKind
	Datatype          string // scalar datatype, empty for non-scalars
	TypeURI           string // datatype URI as declared in the subset
	DeprecatedVersion string

	// Enumerated attributes
	Enumeration string // choice list name, e.g. KlAIMToestand
	Options     []Option

	// Complex attributes
	Union    bool
	Children []*AttributeDescriptor
}

// Deprecated reports whether the attribute carries a deprecation marker
func (a *AttributeDescriptor) Deprecated() bool {
	return a.DeprecatedVersion != ""
}

// IsComplex reports whether the attribute holds nested attributes
func (a *AttributeDescriptor) IsComplex() bool {
	return a.Kind.Kind == KindComplex
}

// Child returns the nested attribute with the given name
func (a *AttributeDescriptor) Child(name string) *AttributeDescriptor {
	for _, c := range a.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ActiveOptions returns the options that are not removed, in declaration order
func (a *AttributeDescriptor) ActiveOptions() []Option {
	active := make([]Option, 0, len(a.Options))
	for _, o := range a.Options {
		if !o.Removed() {
			active = append(active, o)
		}
	}
	return active
}

// ClassDescriptor describes a class of the subset
type ClassDescriptor struct {
	URI               string
	Name              string
	Label             string
	Definition        string
	Abstract          bool
	DeprecatedVersion string
	Geometry          bool
	Bases             []string
	Attributes        []*AttributeDescriptor
}

// Attribute returns the top-level attribute with the given name
func (c *ClassDescriptor) Attribute(name string) *AttributeDescriptor {
	for _, a := range c.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Catalog is the read-only set of classes loaded from a subset source
type Catalog struct {
	source  string
	classes []*ClassDescriptor
	byURI   map[string]*ClassDescriptor
}

// New builds a catalog from already-resolved classes. Order is preserved.
func New(source string, classes []*ClassDescriptor) *Catalog {
	c := &Catalog{
		source:  source,
		classes: classes,
		byURI:   make(map[string]*ClassDescriptor, len(classes)),
	}
	for _, cl := range classes {
		c.byURI[cl.URI] = cl
	}
	return c
}

// Source returns the locator the catalog was loaded from
func (c *Catalog) Source() string {
	return c.source
}

// Classes returns the catalog classes, abstract ones included.
//
// A nil filter means no filtering. A non-nil filter keeps only classes whose URI is in it,
// so an explicitly empty filter yields no classes. Catalog order is preserved.
func (c *Catalog) Classes(filter []string) []*ClassDescriptor {
	if filter == nil {
		out := make([]*ClassDescriptor, len(c.classes))
		copy(out, c.classes)
		return out
	}

	allowed := make(map[string]struct{}, len(filter))
	for _, uri := range filter {
		allowed[uri] = struct{}{}
	}

	out := make([]*ClassDescriptor, 0, len(filter))
	for _, cl := range c.classes {
		if _, ok := allowed[cl.URI]; ok {
			out = append(out, cl)
		}
	}
	return out
}

// ConcreteClasses is Classes without the abstract ones
func (c *Catalog) ConcreteClasses(filter []string) []*ClassDescriptor {
	all := c.Classes(filter)
	out := all[:0]
	for _, cl := range all {
		if !cl.Abstract {
			out = append(out, cl)
		}
	}
	return out
}

// Class returns the class with the given URI
func (c *Catalog) Class(uri string) (*ClassDescriptor, bool) {
	cl, ok := c.byURI[uri]
	return cl, ok
}

// AttributesOf returns the attributes the subset declares for a class
func (c *Catalog) AttributesOf(class *ClassDescriptor) []*AttributeDescriptor {
	if class == nil {
		return nil
	}
	if cl, ok := c.byURI[class.URI]; ok {
		return cl.Attributes
	}
	return class.Attributes
}

// URIs returns every class URI in catalog order
func (c *Catalog) URIs() []string {
	uris := make([]string, len(c.classes))
	for i, cl := range c.classes {
		uris[i] = cl.URI
	}
	return uris
}
