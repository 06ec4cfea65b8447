package model

import (
	"sort"
	"sync"

	"github.com/otl-tools/otltemplate/internal/catalog"
)

const onderdeelNS = "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#"

// builtinRelations are the OTL relation classes
var builtinRelations = []string{
	"Bevestiging",
	"HeeftAanvullendeGeometrie",
	"HeeftBetrokkene",
	"HeeftBijlage",
	"HeeftNetwerkProtectie",
	"HeeftNetwerktoegang",
	"HeeftToegang",
	"HoortBij",
	"IsAdmOnderdeelVan",
	"IsInspectieVan",
	"IsNetwerkECC",
	"IsSWOnderdeelVan",
	"LigtOp",
	"Omhult",
	"SluitAanOp",
	"Sturing",
	"Voedt",
	"VoedtAangestuurd",
}

// RelationRegistry tells relation classes apart from object classes
type RelationRegistry struct {
	mu   sync.RWMutex
	uris map[string]struct{}
}

// NewRelationRegistry returns a registry holding the built-in relations plus extra
func NewRelationRegistry(extra ...string) *RelationRegistry {
	r := &RelationRegistry{uris: make(map[string]struct{}, len(builtinRelations)+len(extra))}
	for _, name := range builtinRelations {
		r.uris[onderdeelNS+name] = struct{}{}
	}
	r.Add(extra...)
	return r
}

// Add registers relation class URIs
func (r *RelationRegistry) Add(uris ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uri := range uris {
		r.uris[uri] = struct{}{}
	}
}

// IsRelation reports whether uri names a relation class
func (r *RelationRegistry) IsRelation(uri string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.uris[uri]
	return ok
}

// URIs returns the registered relation URIs, sorted
func (r *RelationRegistry) URIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.uris))
	for uri := range r.uris {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// Structural attributes of relation types
const (
	SourcePath         = "bron"
	SourceAssetIDPath  = "bronAssetId"
	TargetPath         = "doel"
	TargetAssetIDPath  = "doelAssetId"
	identificatorName  = "identificator"
	toegekendDoorName  = "toegekendDoor"
	relationEndTypeURI = "typeURI"
)

func identifierAttribute(name, definition string) *catalog.AttributeDescriptor {
	return &catalog.AttributeDescriptor{
		Name:       name,
		Definition: definition,
		Kind:       catalog.FieldKind{Kind: catalog.KindComplex},
		Children: []*catalog.AttributeDescriptor{
			{
				Name:       identificatorName,
				Definition: "Een groep van tekens om een AIM object te identificeren of te benoemen.",
				Kind:       catalog.FieldKind{Kind: catalog.KindScalar},
				Datatype:   catalog.DatatypeString,
			},
			{
				Name:       toegekendDoorName,
				Definition: "Gegevens van de organisatie die de toekenning deed.",
				Kind:       catalog.FieldKind{Kind: catalog.KindScalar},
				Datatype:   catalog.DatatypeString,
			},
		},
	}
}

func relationEnd(name, definition string) *catalog.AttributeDescriptor {
	return &catalog.AttributeDescriptor{
		Name:       name,
		Definition: definition,
		Kind:       catalog.FieldKind{Kind: catalog.KindComplex},
		Children: []*catalog.AttributeDescriptor{{
			Name:       relationEndTypeURI,
			Definition: TypeURIDefinition,
			Kind:       catalog.FieldKind{Kind: catalog.KindScalar},
			Datatype:   catalog.DatatypeURI,
		}},
	}
}

// withRelationAttributes adds assetId (when missing) and the bron/doel ends to a relation type
func withRelationAttributes(attrs []*catalog.AttributeDescriptor) []*catalog.AttributeDescriptor {
	has := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		has[a.Name] = struct{}{}
	}

	structural := []*catalog.AttributeDescriptor{
		identifierAttribute(AssetIDPath, "Unieke identificatie van de relatie."),
		relationEnd(SourcePath, "Het object waar de relatie vertrekt."),
		identifierAttribute(SourceAssetIDPath, "De identificatie van het bronobject."),
		relationEnd(TargetPath, "Het object waar de relatie toekomt."),
		identifierAttribute(TargetAssetIDPath, "De identificatie van het doelobject."),
	}
	for _, s := range structural {
		if _, ok := has[s.Name]; !ok {
			attrs = append(attrs, s)
		}
	}
	return attrs
}

// IsStructural reports whether name is one of the relation attributes that are always filled
func IsStructural(name string) bool {
	switch name {
	case AssetIDPath, SourcePath, SourceAssetIDPath, TargetPath, TargetAssetIDPath:
		return true
	}
	return false
}

// Structural returns the attributes of a relation type that are filled regardless of the
// subset filter. Object types have none.
func (t *Type) Structural() []*catalog.AttributeDescriptor {
	if !t.Relation {
		return nil
	}
	var out []*catalog.AttributeDescriptor
	for _, a := range t.Attributes {
		if IsStructural(a.Name) {
			out = append(out, a)
		}
	}
	return out
}
