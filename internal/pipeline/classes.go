package pipeline

import (
	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/model"
)

// ClassInfo summarises one class of a subset
type ClassInfo struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Abstract   bool   `json:"abstract"`
	Relation   bool   `json:"relation"`
	Deprecated bool   `json:"deprecated"`
	Attributes int    `json:"attributes"`
}

// ListClasses describes the classes of cat in catalog order. Abstract classes are only
// listed when all is set.
func ListClasses(cat *catalog.Catalog, all bool) []ClassInfo {
	relations := model.NewRelationRegistry()

	classes := cat.ConcreteClasses(nil)
	if all {
		classes = cat.Classes(nil)
	}

	out := make([]ClassInfo, 0, len(classes))
	for _, cl := range classes {
		out = append(out, ClassInfo{
			URI:        cl.URI,
			Name:       cl.Name,
			Abstract:   cl.Abstract,
			Relation:   relations.IsRelation(cl.URI),
			Deprecated: cl.DeprecatedVersion != "",
			Attributes: len(cat.AttributesOf(cl)),
		})
	}
	return out
}

// Selectable returns the URIs of the concrete classes req may include. When req ignores
// relations, those declared in its model directory are left out as well.
func Selectable(cat *catalog.Catalog, req TemplateRequest) ([]string, error) {
	relations := model.NewRelationRegistry()
	if req.ModelDirectory != "" {
		directory, err := model.LoadDirectory(req.ModelDirectory)
		if err != nil {
			return nil, err
		}
		relations.Add(directory.Relations...)
	}

	var uris []string
	for _, cl := range cat.ConcreteClasses(nil) {
		if req.IgnoreRelations && relations.IsRelation(cl.URI) {
			continue
		}
		uris = append(uris, cl.URI)
	}
	return uris, nil
}
