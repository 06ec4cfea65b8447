package postprocess

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/otl-tools/otltemplate/internal/tabular"
)

// ErrDuplicateChoiceList is returned when a choice list name is registered twice
var ErrDuplicateChoiceList = errors.New("choice list already registered")

// ChoiceList is one registered choice list: its values live in Column of the choice list
// sheet, from row 2 down, under a header with the list name
type ChoiceList struct {
	Name   string
	Column string
	Values []string
}

// Range returns the absolute reference to the values, e.g. Keuzelijsten!$A$2:$A$5
func (c *ChoiceList) Range() string {
	return fmt.Sprintf("%s!$%s$2:$%s$%d", tabular.ChoiceListSheet, c.Column, c.Column, len(c.Values)+1)
}

// ChoiceListRegistry assigns each choice list one column of the shared sheet. It belongs to
// a single generation run.
type ChoiceListRegistry struct {
	lists map[string]*ChoiceList
	order []string
	mutex sync.RWMutex
}

// NewChoiceListRegistry creates an empty registry
func NewChoiceListRegistry() *ChoiceListRegistry {
	return &ChoiceListRegistry{
		lists: make(map[string]*ChoiceList),
	}
}

// Register places a new choice list in the next free column
func (r *ChoiceListRegistry) Register(name string, values []string) (*ChoiceList, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.register(name, values)
}

func (r *ChoiceListRegistry) register(name string, values []string) (*ChoiceList, error) {
	if _, exists := r.lists[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateChoiceList, name)
	}

	column, err := excelize.ColumnNumberToName(len(r.order) + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to place choice list %s: %w", name, err)
	}
	list := &ChoiceList{Name: name, Column: column, Values: append([]string(nil), values...)}
	r.lists[name] = list
	r.order = append(r.order, name)
	return list, nil
}

// Resolve returns the registered list for name, registering values the first time. Later
// calls reuse the first registration.
func (r *ChoiceListRegistry) Resolve(name string, values []string) (*ChoiceList, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if list, exists := r.lists[name]; exists {
		return list, nil
	}
	return r.register(name, values)
}

// Get retrieves a choice list by name
func (r *ChoiceListRegistry) Get(name string) (*ChoiceList, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	list, exists := r.lists[name]
	return list, exists
}

// List returns the choice lists in registration order
func (r *ChoiceListRegistry) List() []*ChoiceList {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*ChoiceList, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.lists[name])
	}
	return out
}

// Len returns the number of registered choice lists
func (r *ChoiceListRegistry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.order)
}
