// Package factory supplies thunk types for delegate shapes. Shapes up to
// config.MaxArity parameters are served from a precompiled registry; larger
// shapes get a template generated on demand and cached for the factory's
// lifetime.
package factory

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/thunk"
)

// Template is a thunk type definition that is generic over parameter types
// and the closure type. Closing it yields a concrete thunk.Type.
type Template struct {
	ID          uuid.UUID
	Name        string
	Arity       int
	Action      bool
	Precompiled bool

	// key is the full shape key of a generated template; empty for
	// precompiled ones.
	key string
}

func (t *Template) String() string { return t.Name }

// Matches reports whether the template can serve shape.
func (t *Template) Matches(shape thunk.Shape) bool {
	if t.Arity != shape.Arity() || t.Action != shape.IsAction() {
		return false
	}
	return t.Precompiled || t.key == shape.Key()
}

// Close instantiates the template for shape over closureType.
func (t *Template) Close(shape thunk.Shape, closureType reflect.Type, policy thunk.Policy, env thunk.Env) (*thunk.Type, error) {
	if !t.Matches(shape) {
		return nil, fmt.Errorf("template %s cannot serve %s", t.Name, shape.Key())
	}
	return thunk.NewType(t.Name, shape, closureType, policy, env)
}

func templateName(arity int, action bool) string {
	if action {
		return fmt.Sprintf("Action%d", arity)
	}
	return fmt.Sprintf("Func%d", arity)
}

// registry holds the precompiled templates, indexed by [action][arity].
type registry [2][config.MaxArity + 1]*Template

var (
	precompiledOnce sync.Once
	precompiled     *registry
)

func templates() *registry {
	precompiledOnce.Do(func() {
		r := new(registry)
		for kind := range r {
			for arity := range r[kind] {
				action := kind == 1
				r[kind][arity] = &Template{
					ID:          uuid.New(),
					Name:        templateName(arity, action),
					Arity:       arity,
					Action:      action,
					Precompiled: true,
				}
			}
		}
		precompiled = r
	})
	return precompiled
}

// Lookup returns the precompiled template for shape, if there is one.
func Lookup(shape thunk.Shape) (*Template, bool) {
	arity := shape.Arity()
	if arity > config.MaxArity {
		return nil, false
	}
	kind := 0
	if shape.IsAction() {
		kind = 1
	}
	return templates()[kind][arity], true
}

// Precompiled lists every precompiled template.
func Precompiled() []*Template {
	r := templates()
	out := make([]*Template, 0, len(r)*len(r[0]))
	for kind := range r {
		out = append(out, r[kind][:]...)
	}
	return out
}
