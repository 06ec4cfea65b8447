package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Subset tables. OSLOClass and OSLOAttributen are required, the others are optional.
const (
	tableClass                = "OSLOClass"
	tableAttributes           = "OSLOAttributen"
	tableInheritances         = "OSLOInheritances"
	tableComplex              = "OSLODatatypeComplex"
	tableComplexAttributes    = "OSLODatatypeComplexAttributen"
	tableUnion                = "OSLODatatypeUnion"
	tableUnionAttributes      = "OSLODatatypeUnionAttributen"
	tablePrimitive            = "OSLODatatypePrimitive"
	tablePrimitiveAttributes  = "OSLODatatypePrimitiveAttributen"
	tableEnumeration          = "OSLOEnumeration"
	tableEnumerationValues    = "OSLOEnumerationValues"
	attributeColumns          = "name, label, objectUri, definition, class_uri, kardinaliteit_max, type, deprecated_version"
	primitiveValueMemberQuery = "SELECT class_uri, type FROM " + tablePrimitiveAttributes + " WHERE name = 'waarde'"
)

// LoadSQLite reads an OSLO subset database
func LoadSQLite(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer db.Close()

	return LoadDB(ctx, db, path)
}

// LoadDB reads the subset tables from an open database handle
func LoadDB(ctx context.Context, db *sql.DB, source string) (*Catalog, error) {
	r := &subsetReader{db: db}
	classes, err := r.read(ctx)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	resolveInheritance(classes)
	return New(source, classes), nil
}

type rawAttribute struct {
	name, label, uri, definition, owner, kardMax, typeURI, deprecated string
}

type enumeration struct {
	name       string
	definition string
	options    []Option
}

// subsetReader collects the raw subset rows and builds typed descriptors from them
type subsetReader struct {
	db *sql.DB

	tables    map[string]struct{}
	enums     map[string]*enumeration
	complex   map[string][]rawAttribute
	union     map[string][]rawAttribute
	primitive map[string]string
}

func (r *subsetReader) read(ctx context.Context) ([]*ClassDescriptor, error) {
	if err := r.readTables(ctx); err != nil {
		return nil, err
	}
	for _, required := range []string{tableClass, tableAttributes} {
		if !r.has(required) {
			return nil, fmt.Errorf("missing table %s", required)
		}
	}

	if err := r.readEnumerations(ctx); err != nil {
		return nil, err
	}
	if err := r.readDatatypes(ctx); err != nil {
		return nil, err
	}

	classes, err := r.readClasses(ctx)
	if err != nil {
		return nil, err
	}
	byURI := make(map[string]*ClassDescriptor, len(classes))
	for _, cl := range classes {
		byURI[cl.URI] = cl
	}

	attrs, err := r.readAttributes(ctx, tableAttributes)
	if err != nil {
		return nil, err
	}
	for _, raw := range attrs {
		cl, ok := byURI[raw.owner]
		if !ok {
			continue
		}
		cl.Attributes = append(cl.Attributes, r.describe(raw, map[string]struct{}{}))
	}

	if r.has(tableInheritances) {
		rows, err := r.db.QueryContext(ctx, "SELECT base_uri, class_uri FROM "+tableInheritances)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", tableInheritances, err)
		}
		defer rows.Close()
		for rows.Next() {
			var base, class string
			if err := rows.Scan(&base, &class); err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", tableInheritances, err)
			}
			if cl, ok := byURI[class]; ok {
				cl.Bases = append(cl.Bases, base)
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	return classes, nil
}

func (r *subsetReader) has(table string) bool {
	_, ok := r.tables[table]
	return ok
}

func (r *subsetReader) readTables(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	r.tables = make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		r.tables[name] = struct{}{}
	}
	return rows.Err()
}

func (r *subsetReader) readClasses(ctx context.Context) ([]*ClassDescriptor, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name, label, objectUri, definition, abstract, deprecated_version FROM "+tableClass+" ORDER BY objectUri")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableClass, err)
	}
	defer rows.Close()

	var classes []*ClassDescriptor
	for rows.Next() {
		var (
			name, uri                     string
			label, definition, deprecated sql.NullString
			abstract                      sql.NullInt64
		)
		if err := rows.Scan(&name, &label, &uri, &definition, &abstract, &deprecated); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", tableClass, err)
		}
		classes = append(classes, &ClassDescriptor{
			URI:               uri,
			Name:              name,
			Label:             label.String,
			Definition:        definition.String,
			Abstract:          abstract.Int64 != 0,
			DeprecatedVersion: deprecated.String,
		})
	}
	return classes, rows.Err()
}

func (r *subsetReader) readAttributes(ctx context.Context, table string) ([]rawAttribute, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+attributeColumns+" FROM "+table+" ORDER BY class_uri, name")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []rawAttribute
	for rows.Next() {
		var (
			a                                                   rawAttribute
			label, uri, definition, kardMax, typeURI, deprecated sql.NullString
		)
		if err := rows.Scan(&a.name, &label, &uri, &definition, &a.owner, &kardMax, &typeURI, &deprecated); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		a.label = label.String
		a.uri = uri.String
		a.definition = definition.String
		a.kardMax = kardMax.String
		a.typeURI = typeURI.String
		a.deprecated = deprecated.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *subsetReader) readEnumerations(ctx context.Context) error {
	r.enums = make(map[string]*enumeration)
	if !r.has(tableEnumeration) {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, "SELECT name, objectUri, definition FROM "+tableEnumeration)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", tableEnumeration, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name, uri  string
			definition sql.NullString
		)
		if err := rows.Scan(&name, &uri, &definition); err != nil {
			return fmt.Errorf("failed to scan %s: %w", tableEnumeration, err)
		}
		r.enums[uri] = &enumeration{name: name, definition: definition.String}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !r.has(tableEnumerationValues) {
		return nil
	}
	values, err := r.db.QueryContext(ctx,
		"SELECT enumeration_uri, invulwaarde, label, status FROM "+tableEnumerationValues+
			" ORDER BY enumeration_uri, sort_order, invulwaarde")
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", tableEnumerationValues, err)
	}
	defer values.Close()
	for values.Next() {
		var (
			uri, value    string
			label, status sql.NullString
		)
		if err := values.Scan(&uri, &value, &label, &status); err != nil {
			return fmt.Errorf("failed to scan %s: %w", tableEnumerationValues, err)
		}
		if e, ok := r.enums[uri]; ok {
			e.options = append(e.options, Option{Value: value, Label: label.String, Status: status.String})
		}
	}
	return values.Err()
}

func (r *subsetReader) readDatatypes(ctx context.Context) error {
	r.complex = make(map[string][]rawAttribute)
	r.union = make(map[string][]rawAttribute)
	r.primitive = make(map[string]string)

	groups := []struct {
		types, members string
		into           map[string][]rawAttribute
	}{
		{tableComplex, tableComplexAttributes, r.complex},
		{tableUnion, tableUnionAttributes, r.union},
	}
	for _, g := range groups {
		if !r.has(g.types) {
			continue
		}
		uris, err := r.readURIs(ctx, g.types)
		if err != nil {
			return err
		}
		for _, uri := range uris {
			g.into[uri] = nil
		}
		if !r.has(g.members) {
			continue
		}
		members, err := r.readAttributes(ctx, g.members)
		if err != nil {
			return err
		}
		for _, m := range members {
			if _, ok := g.into[m.owner]; ok {
				g.into[m.owner] = append(g.into[m.owner], m)
			}
		}
	}

	if !r.has(tablePrimitive) {
		return nil
	}
	uris, err := r.readURIs(ctx, tablePrimitive)
	if err != nil {
		return err
	}
	for _, uri := range uris {
		r.primitive[uri] = DatatypeString
	}
	if !r.has(tablePrimitiveAttributes) {
		return nil
	}
	rows, err := r.db.QueryContext(ctx, primitiveValueMemberQuery)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", tablePrimitiveAttributes, err)
	}
	defer rows.Close()
	for rows.Next() {
		var owner string
		var typeURI sql.NullString
		if err := rows.Scan(&owner, &typeURI); err != nil {
			return fmt.Errorf("failed to scan %s: %w", tablePrimitiveAttributes, err)
		}
		if _, ok := r.primitive[owner]; !ok {
			continue
		}
		if kind, datatype, ok := xsdDatatype(typeURI.String); ok && kind == KindScalar {
			r.primitive[owner] = datatype
		}
	}
	return rows.Err()
}

func (r *subsetReader) readURIs(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT objectUri FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}

// describe turns a raw attribute row into a typed descriptor. walk holds the complex datatypes
// already being expanded, so recursive datatypes end in an empty complex.
func (r *subsetReader) describe(raw rawAttribute, walk map[string]struct{}) *AttributeDescriptor {
	attr := &AttributeDescriptor{
		Name:              raw.name,
		Label:             raw.label,
		URI:               raw.uri,
		Definition:        raw.definition,
		TypeURI:           raw.typeURI,
		DeprecatedVersion: raw.deprecated,
		Kind:              FieldKind{Kind: KindScalar, Repeated: repeatedCardinality(raw.kardMax)},
	}

	if e, ok := r.enums[raw.typeURI]; ok {
		attr.Kind.Kind = KindEnumerated
		attr.Enumeration = e.name
		attr.Options = append([]Option(nil), e.options...)
		return attr
	}
	if datatype, ok := r.primitive[raw.typeURI]; ok {
		attr.Datatype = datatype
		return attr
	}

	members, isComplex := r.complex[raw.typeURI]
	if !isComplex {
		if members, isComplex = r.union[raw.typeURI]; isComplex {
			attr.Union = true
		}
	}
	if isComplex {
		attr.Kind.Kind = KindComplex
		if _, cycle := walk[raw.typeURI]; cycle {
			return attr
		}
		walk[raw.typeURI] = struct{}{}
		for _, m := range members {
			attr.Children = append(attr.Children, r.describe(m, walk))
		}
		delete(walk, raw.typeURI)
		return attr
	}

	kind, datatype, ok := xsdDatatype(raw.typeURI)
	if !ok {
		datatype = DatatypeString
		if strings.Contains(strings.ToLower(raw.typeURI), "geometr") {
			datatype = DatatypeWKT
		}
	}
	attr.Kind.Kind = kind
	attr.Datatype = datatype
	return attr
}
