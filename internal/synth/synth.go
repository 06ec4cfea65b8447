// Package synth fills placeholder instances for the classes of a subset.
package synth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/model"
)

// DefaultMaxAttempts bounds the identifier uniqueness retries
const DefaultMaxAttempts = 5

// GenerationError reports identifiers that kept colliding after every attempt
type GenerationError struct {
	Attempts  int
	Duplicate string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("duplicate identificator %q after %d attempts", e.Duplicate, e.Attempts)
}

// Runner schedules n independent units of work
type Runner interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// Options control which classes and attributes are synthesized
type Options struct {
	IgnoreRelations  bool
	FilterAttributes bool
	// ClassFilter restricts the classes; nil means all, empty means none
	ClassFilter []string
	// Rows is the requested example row count; at least one instance is always built
	Rows        int
	Geometry    bool
	Seed        int64
	MaxAttempts int
}

// Synthesizer builds placeholder instances from a catalog
type Synthesizer struct {
	catalog   *catalog.Catalog
	resolver  *model.Resolver
	logger    *zap.Logger
	newSource SourceFactory
}

// New creates a synthesizer using the seeded FakeSource
func New(cat *catalog.Catalog, resolver *model.Resolver, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		catalog:   cat,
		resolver:  resolver,
		logger:    logger,
		newSource: NewFakeSource,
	}
}

// WithSource replaces the value source factory
func (s *Synthesizer) WithSource(factory SourceFactory) *Synthesizer {
	s.newSource = factory
	return s
}

// Classes returns the concrete classes in scope, in catalog order
func (s *Synthesizer) Classes(opts Options) []*catalog.ClassDescriptor {
	var out []*catalog.ClassDescriptor
	for _, class := range s.catalog.ConcreteClasses(opts.ClassFilter) {
		if opts.IgnoreRelations && s.resolver.IsRelation(class.URI) {
			s.logger.Debug("skipping relation", zap.String("class", class.URI))
			continue
		}
		out = append(out, class)
	}
	return out
}

// Synthesize builds the instances of every class in scope. Classes are synthesized as
// separate units on runner; the result keeps catalog order. When identificators collide the
// whole batch is regenerated, up to opts.MaxAttempts times.
func (s *Synthesizer) Synthesize(ctx context.Context, runner Runner, opts Options) ([]*model.Instance, error) {
	classes := s.Classes(opts)
	if len(classes) == 0 {
		return nil, nil
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var duplicate string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		perClass := make([][]*model.Instance, len(classes))
		err := runner.Run(ctx, len(classes), func(ctx context.Context, i int) error {
			seed := opts.Seed + int64(attempt)*1_000_003 + int64(i)
			instances, err := s.SynthesizeClass(ctx, classes[i], opts, s.newSource(seed))
			if err != nil {
				return err
			}
			perClass[i] = instances
			return nil
		})
		if err != nil {
			return nil, err
		}

		var batch []*model.Instance
		for _, instances := range perClass {
			batch = append(batch, instances...)
		}

		var ok bool
		if duplicate, ok = firstDuplicate(batch); ok {
			s.logger.Warn("duplicate identificator, regenerating",
				zap.String("identificator", duplicate),
				zap.Int("attempt", attempt+1))
			continue
		}
		return batch, nil
	}
	return nil, &GenerationError{Attempts: maxAttempts, Duplicate: duplicate}
}

func firstDuplicate(instances []*model.Instance) (string, bool) {
	seen := make(map[string]struct{}, len(instances))
	for _, inst := range instances {
		id, ok := inst.Identity()
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}

// SynthesizeClass builds max(1, opts.Rows) instances of one class
func (s *Synthesizer) SynthesizeClass(ctx context.Context, class *catalog.ClassDescriptor, opts Options, src ValueSource) ([]*model.Instance, error) {
	t, err := s.resolver.Type(class.URI)
	if err != nil {
		return nil, err
	}

	n := opts.Rows
	if n < 1 {
		n = 1
	}
	instances := make([]*model.Instance, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		instances = append(instances, s.fill(t, class, opts, src))
	}
	return instances, nil
}

func (s *Synthesizer) fill(t *model.Type, class *catalog.ClassDescriptor, opts Options, src ValueSource) *model.Instance {
	inst := model.NewInstance(t)

	var names []string
	if opts.FilterAttributes {
		for _, a := range s.catalog.AttributesOf(class) {
			names = append(names, a.Name)
		}
	} else {
		for _, a := range t.Attributes {
			names = append(names, a.Name)
		}
	}
	for _, a := range t.Structural() {
		names = append(names, a.Name)
	}

	for _, name := range names {
		if name == model.GeometryPath {
			continue
		}
		if _, done := inst.Values[name]; done {
			continue
		}
		attr := t.Attribute(name)
		if attr == nil {
			s.logger.Warn("attribute not found on type, skipping",
				zap.String("class", t.URI),
				zap.String("path", name),
				zap.Error(&model.AttributeResolutionError{TypeURI: t.URI, Path: name}))
			continue
		}
		inst.Values[name] = value(attr, src)
	}

	if opts.Geometry && t.Geometry != nil {
		inst.Values[model.GeometryPath] = src.Scalar(t.Geometry)
	}

	inst.ResetVersion()
	model.ClearListOfLists(inst.Values)
	return inst
}

func value(attr *catalog.AttributeDescriptor, src ValueSource) any {
	if !attr.Kind.Repeated {
		return single(attr, src, -1)
	}

	member := -1
	if attr.Union && len(attr.Children) > 0 {
		member = src.Intn(len(attr.Children))
	}
	n := 1 + src.Intn(2)
	items := make([]any, n)
	for i := range items {
		items[i] = single(attr, src, member)
	}
	return items
}

// single builds one value. member selects the union member to fill, -1 picks one.
func single(attr *catalog.AttributeDescriptor, src ValueSource, member int) any {
	switch attr.Kind.Kind {
	case catalog.KindBoolean:
		return src.Boolean()
	case catalog.KindEnumerated:
		return src.Option(attr)
	case catalog.KindComplex:
		obj := model.Object{}
		if attr.Union {
			if len(attr.Children) == 0 {
				return obj
			}
			if member < 0 {
				member = src.Intn(len(attr.Children))
			}
			child := attr.Children[member]
			obj[child.Name] = value(child, src)
			return obj
		}
		for _, child := range attr.Children {
			obj[child.Name] = value(child, src)
		}
		return obj
	default:
		if attr.Name == "identificator" {
			return src.Identifier()
		}
		return src.Scalar(attr)
	}
}
