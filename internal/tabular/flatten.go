package tabular

import (
	"sort"
	"strconv"
	"strings"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/model"
)

// ValueSeparator joins the values of a repeated attribute in one cell
const ValueSeparator = "|"

// Flatten converts an instance into a row keyed by column path. typeURI is always present.
func Flatten(inst *model.Instance) map[string]string {
	row := map[string]string{model.TypeURIPath: inst.TypeURI()}
	flattenObject(inst.Values, "", row)
	return row
}

func flattenObject(obj model.Object, prefix string, row map[string]string) {
	for name, v := range obj {
		switch val := v.(type) {
		case model.Object:
			flattenObject(val, prefix+name+model.PathSeparator, row)
		case []any:
			flattenList(val, prefix+name+model.RepeatedMark, row)
		default:
			row[prefix+name] = formatScalar(val)
		}
	}
}

func flattenList(items []any, path string, row map[string]string) {
	if len(items) == 0 {
		return
	}
	if _, complexItems := items[0].(model.Object); !complexItems {
		values := make([]string, len(items))
		for i, item := range items {
			values[i] = formatScalar(item)
		}
		row[path] = strings.Join(values, ValueSeparator)
		return
	}

	perItem := make([]map[string]string, len(items))
	leaves := map[string]struct{}{}
	for i, item := range items {
		obj, _ := item.(model.Object)
		perItem[i] = map[string]string{}
		flattenObject(obj, path+model.PathSeparator, perItem[i])
		for leaf := range perItem[i] {
			leaves[leaf] = struct{}{}
		}
	}
	for leaf := range leaves {
		values := make([]string, len(items))
		for i := range perItem {
			values[i] = perItem[i][leaf]
		}
		row[leaf] = strings.Join(values, ValueSeparator)
	}
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// Unflatten rebuilds the attribute values of a row. Empty cells and typeURI are skipped.
// When t is given, boolean columns are parsed back into booleans.
func Unflatten(t *model.Type, row map[string]string) model.Object {
	obj := model.Object{}
	paths := make([]string, 0, len(row))
	for path := range row {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		raw := row[path]
		if raw == "" || path == model.TypeURIPath {
			continue
		}
		conv := identity
		if t != nil {
			if attr, err := t.Lookup(path); err == nil && attr.Kind.Kind == catalog.KindBoolean {
				conv = parseBool
			}
		}
		assign(obj, strings.Split(path, model.PathSeparator), raw, conv)
	}
	return obj
}

func identity(s string) any { return s }

func parseBool(s string) any {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return s
	}
	return b
}

func assign(obj model.Object, segs []string, raw string, conv func(string) any) {
	seg := segs[0]
	name := strings.TrimSuffix(seg, model.RepeatedMark)
	repeated := name != seg

	if len(segs) == 1 {
		if !repeated {
			obj[name] = conv(raw)
			return
		}
		parts := strings.Split(raw, ValueSeparator)
		list := make([]any, len(parts))
		for i, p := range parts {
			list[i] = conv(p)
		}
		obj[name] = list
		return
	}

	if !repeated {
		child, ok := obj[name].(model.Object)
		if !ok {
			child = model.Object{}
			obj[name] = child
		}
		assign(child, segs[1:], raw, conv)
		return
	}

	parts := strings.Split(raw, ValueSeparator)
	list, _ := obj[name].([]any)
	for len(list) < len(parts) {
		list = append(list, model.Object{})
	}
	for i, p := range parts {
		if p == "" {
			continue
		}
		if item, ok := list[i].(model.Object); ok {
			assign(item, segs[1:], p, conv)
		}
	}
	obj[name] = list
}
