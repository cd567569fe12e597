package factory

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/funvibe/thunkjit/internal/backend"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/thunk"
)

// Options configure a Factory.
type Options struct {
	Policy    thunk.Policy
	Threshold int
	Logger    *slog.Logger
	Backends  backend.Set
}

// FromConfig builds options from a loaded configuration.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Options, error) {
	policy, err := thunk.ParsePolicy(cfg.Policy)
	if err != nil {
		return Options{}, err
	}
	return Options{Policy: policy, Threshold: cfg.TieredThreshold, Logger: logger}, nil
}

type closedKey struct {
	template *Template
	shape    string
	closure  reflect.Type
	policy   thunk.Policy
}

// Factory hands out thunk types. It is safe for concurrent use.
type Factory struct {
	policy thunk.Policy
	env    thunk.Env
	logger *slog.Logger

	mu        sync.Mutex
	generated map[string]*Template
	closed    map[closedKey]*thunk.Type
}

// New creates a factory.
func New(opts Options) *Factory {
	logger := opts.Logger
	if logger == nil {
		logger = config.DiscardLogger()
	}
	return &Factory{
		policy:    opts.Policy,
		env:       thunk.Env{Backends: opts.Backends, Threshold: opts.Threshold, Logger: logger},
		logger:    logger,
		generated: make(map[string]*Template),
		closed:    make(map[closedKey]*thunk.Type),
	}
}

// Policy returns the policy used by ThunkType.
func (f *Factory) Policy() thunk.Policy { return f.policy }

// Template returns the template serving shape, generating one when no
// precompiled template exists. A shape is never given two templates.
func (f *Factory) Template(shape thunk.Shape) *Template {
	if t, ok := Lookup(shape); ok {
		return t
	}
	key := shape.Key()

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generate(key, shape)
}

// generate must be called with f.mu held.
func (f *Factory) generate(key string, shape thunk.Shape) *Template {
	if t, ok := f.generated[key]; ok {
		return t
	}
	t := &Template{
		ID:     uuid.New(),
		Name:   templateName(shape.Arity(), shape.IsAction()),
		Arity:  shape.Arity(),
		Action: shape.IsAction(),
		key:    key,
	}
	f.generated[key] = t
	f.logger.Info("generated thunk template", "template", t.Name, "id", t.ID, "shape", key)
	return t
}

// Generated reports how many templates were generated on demand.
func (f *Factory) Generated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.generated)
}

// ThunkType returns the thunk type for shape closed over closureType with
// the factory's policy.
func (f *Factory) ThunkType(shape thunk.Shape, closureType reflect.Type) (*thunk.Type, error) {
	return f.ThunkTypeFor(f.policy, shape, closureType)
}

// ThunkTypeFor is ThunkType with an explicit policy.
func (f *Factory) ThunkTypeFor(policy thunk.Policy, shape thunk.Shape, closureType reflect.Type) (*thunk.Type, error) {
	tmpl, precompiled := Lookup(shape)
	key := closedKey{template: tmpl, shape: shape.Key(), closure: closureType, policy: policy}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !precompiled {
		tmpl = f.generate(key.shape, shape)
		key.template = tmpl
	}
	if typ, ok := f.closed[key]; ok {
		return typ, nil
	}
	typ, err := tmpl.Close(shape, closureType, policy, f.env)
	if err != nil {
		return nil, fmt.Errorf("closing %s over %s: %w", tmpl.Name, closureType, err)
	}
	f.closed[key] = typ
	return typ, nil
}

// Thunk wraps tree in a thunk of the matching type. The tree's first
// parameter is the closure.
func (f *Factory) Thunk(tree *expr.Lambda) (*thunk.Thunk, error) {
	closureType, shape, err := thunk.ShapeOf(tree)
	if err != nil {
		return nil, err
	}
	typ, err := f.ThunkType(shape, closureType)
	if err != nil {
		return nil, err
	}
	return typ.New(tree)
}
