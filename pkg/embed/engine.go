// Package thunkjit is the embedding API: it turns expression trees into
// lazily compiled delegates and keeps them by name.
package thunkjit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/funvibe/thunkjit/internal/backend"
	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/factory"
	"github.com/funvibe/thunkjit/internal/pipeline"
	"github.com/funvibe/thunkjit/internal/quote"
	"github.com/funvibe/thunkjit/internal/scope"
	"github.com/funvibe/thunkjit/internal/thunk"
	"github.com/funvibe/thunkjit/internal/treefile"
)

// Options configure an Engine. A nil Config means config.Default().
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Backends backend.Set
}

// Engine compiles trees through the quote and factory stages.
type Engine struct {
	factory  *factory.Factory
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	mu        sync.RWMutex
	delegates map[string]*Delegate
}

// Delegate is a compiled entry point.
type Delegate struct {
	*thunk.Dispatcher
	Name string
	// Args are the default arguments of a delegate loaded from a document.
	Args []any
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = config.DiscardLogger()
	}
	fopts, err := factory.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	fopts.Backends = opts.Backends
	f := factory.New(fopts)
	return &Engine{
		factory:   f,
		pipeline:  pipeline.New(&quote.Processor{}, &factory.Processor{Factory: f}),
		logger:    logger,
		delegates: make(map[string]*Delegate),
	}, nil
}

// Factory returns the engine's thunk factory.
func (e *Engine) Factory() *factory.Factory { return e.factory }

// Compile quotes tree against frame and rec and registers the resulting
// delegate under name. frame and rec may be nil for trees without captures.
func (e *Engine) Compile(name string, tree *expr.Lambda, frame scope.Frame, rec *closure.Record) (*Delegate, error) {
	ctx := pipeline.NewPipelineContext(name, tree)
	ctx.Frame = frame
	ctx.Closure = rec
	ctx.Logger = e.logger
	ctx = e.pipeline.Run(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	d := &Delegate{Dispatcher: ctx.Delegate, Name: name}
	e.mu.Lock()
	e.delegates[name] = d
	e.mu.Unlock()
	e.logger.Debug("delegate registered", "name", name, "type", ctx.ThunkType.String())
	return d, nil
}

// LoadFile compiles the tree document at path.
func (e *Engine) LoadFile(path string) (*Delegate, error) {
	doc, err := treefile.Load(path)
	if err != nil {
		return nil, err
	}
	var frame scope.Frame
	if doc.Frame != nil {
		frame = doc.Frame
	}
	d, err := e.Compile(doc.Name, doc.Tree, frame, doc.Closure)
	if err != nil {
		return nil, err
	}
	d.Args = doc.Args
	return d, nil
}

// Lookup returns the delegate registered under name.
func (e *Engine) Lookup(name string) (*Delegate, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.delegates[name]
	return d, ok
}

// Delegates returns the registered delegates ordered by name.
func (e *Engine) Delegates() []*Delegate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Delegate, 0, len(e.delegates))
	for _, d := range e.delegates {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Delegate) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Call invokes the delegate registered under name.
func (e *Engine) Call(name string, args ...any) (any, error) {
	d, ok := e.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no delegate named %q", name)
	}
	return d.Invoke(args...)
}

// InvokeContext invokes d and gives up waiting when ctx is done. The call
// itself is not interrupted and runs to completion in the background.
func (d *Delegate) InvokeContext(ctx context.Context, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := d.Invoke(args...)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", d.Name, ctx.Err())
	}
}
