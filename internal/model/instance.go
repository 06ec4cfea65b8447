package model

// Object holds attribute values by name. Values are string (scalars and enumerations), bool,
// Object (complex) or []any (repeated, holding one of the former).
type Object map[string]any

// Instance is one placeholder object of a type
type Instance struct {
	Type   *Type
	Values Object
}

// NewInstance returns a blank instance of t
func NewInstance(t *Type) *Instance {
	return &Instance{Type: t, Values: Object{}}
}

// TypeURI returns the class URI of the instance
func (i *Instance) TypeURI() string {
	return i.Type.URI
}

// Identity returns the assetId.identificator value, if any
func (i *Instance) Identity() (string, bool) {
	assetID, ok := i.Values[AssetIDPath].(Object)
	if !ok {
		return "", false
	}
	id, ok := assetID[identificatorName].(string)
	return id, ok && id != ""
}

// ResetVersion empties the assetVersie structure
func (i *Instance) ResetVersion() {
	delete(i.Values, AssetVersie)
}

// ClearListOfLists removes repeated values nested inside repeated complex values. A table
// cell can hold one level of repetition, not two.
func ClearListOfLists(obj Object) {
	clearNested(obj, false)
}

func clearNested(obj Object, insideList bool) {
	for name, v := range obj {
		switch val := v.(type) {
		case Object:
			clearNested(val, insideList)
		case []any:
			if insideList {
				delete(obj, name)
				continue
			}
			for _, item := range val {
				if nested, ok := item.(Object); ok {
					clearNested(nested, true)
				}
			}
		}
	}
}
