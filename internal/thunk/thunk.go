package thunk

import (
	"sync"
	"sync/atomic"

	"github.com/funvibe/thunkjit/internal/expr"
)

// resolution is the single authority of a thunk: either the pending tree
// with the trampoline as target, or a lowered callable. It is replaced as a
// whole so the tree and the target are never observed out of step.
type resolution struct {
	state  State
	tree   *expr.Lambda
	target expr.Callable
}

// Thunk holds a tree until its first call and a callable afterwards.
type Thunk struct {
	typ     *Type
	current atomic.Pointer[resolution]
	mu      sync.Mutex
	hits    atomic.Int64
}

// Type returns the thunk type that created t.
func (t *Thunk) Type() *Type { return t.typ }

// State reports how far t has progressed.
func (t *Thunk) State() State { return t.current.Load().state }

// Hits reports how many calls a tiered thunk has counted.
func (t *Thunk) Hits() int64 { return t.hits.Load() }

// Compiler returns the currently installed target. Called while the thunk
// is pending, it lowers the tree first. The closure is the first argument.
func (t *Thunk) Compiler() expr.Callable {
	return t.current.Load().target
}

// Invoke calls the installed target with the closure followed by args.
func (t *Thunk) Invoke(closure any, args ...any) (any, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, closure)
	full = append(full, args...)
	return t.current.Load().target(full...)
}

// CreateDelegate binds t to closure. It never compiles.
func (t *Thunk) CreateDelegate(closure any) *Dispatcher {
	return &Dispatcher{thunk: t, closure: closure}
}

func (t *Thunk) trampoline(args ...any) (any, error) {
	var target expr.Callable
	var err error
	switch t.typ.policy {
	case Immediate:
		target, err = t.compileOnce()
	case Interpreted:
		target, err = t.interpret()
	case Tiered:
		target, err = t.startTiered()
	}
	if err != nil {
		return nil, err
	}
	return target(args...)
}

// compileOnce lowers the tree natively under the thunk's lock. Callers that
// lose the race wait and use the winner's result.
func (t *Thunk) compileOnce() (expr.Callable, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.current.Load()
	if r.state != Pending {
		return r.target, nil
	}
	fn, err := t.typ.env.Backends.Lower(r.tree, false)
	if err != nil {
		t.typ.env.Logger.Debug("thunk compile failed", "type", t.typ.name, "error", err)
		return nil, err
	}
	t.current.Store(&resolution{state: Compiled, target: fn})
	t.typ.env.Logger.Debug("thunk compiled", "type", t.typ.name, "policy", t.typ.policy)
	return fn, nil
}

// interpret installs an interpreted callable without locking. Concurrent
// first calls may each build one; the first to be installed is kept.
func (t *Thunk) interpret() (expr.Callable, error) {
	r := t.current.Load()
	if r.state != Pending {
		return r.target, nil
	}
	fn, err := t.typ.env.Backends.Lower(r.tree, true)
	if err != nil {
		return nil, err
	}
	if !t.current.CompareAndSwap(r, &resolution{state: Interpreting, target: fn}) {
		return t.current.Load().target, nil
	}
	t.typ.env.Logger.Debug("thunk interpreting", "type", t.typ.name, "policy", t.typ.policy)
	return fn, nil
}

// startTiered installs the interpreted callable behind a counting adapter.
func (t *Thunk) startTiered() (expr.Callable, error) {
	r := t.current.Load()
	if r.state != Pending {
		return r.target, nil
	}
	interp, err := t.typ.env.Backends.Lower(r.tree, true)
	if err != nil {
		return nil, err
	}
	installed := &resolution{state: Interpreting}
	installed.target = t.counting(r.tree, interp, installed)
	if !t.current.CompareAndSwap(r, installed) {
		return t.current.Load().target, nil
	}
	t.typ.env.Logger.Debug("thunk interpreting", "type", t.typ.name, "policy", t.typ.policy,
		"threshold", t.typ.env.Threshold)
	return installed.target, nil
}

// counting returns the tiered adapter. Once the hit count reaches the
// threshold the tree is compiled and the adapter replaces itself. Racing
// callers past the threshold may compile more than once; only one result is
// installed and the others are equivalent.
func (t *Thunk) counting(tree *expr.Lambda, interp expr.Callable, self *resolution) expr.Callable {
	threshold := int64(t.typ.env.Threshold)
	return func(args ...any) (any, error) {
		if t.hits.Add(1) < threshold {
			return interp(args...)
		}
		if cur := t.current.Load(); cur != self {
			return cur.target(args...)
		}
		fn, err := t.typ.env.Backends.Lower(tree, false)
		if err != nil {
			t.typ.env.Logger.Debug("thunk promotion failed", "type", t.typ.name, "error", err)
			return nil, err
		}
		if t.current.CompareAndSwap(self, &resolution{state: Compiled, target: fn}) {
			t.typ.env.Logger.Debug("thunk promoted", "type", t.typ.name, "hits", t.hits.Load())
		}
		return t.current.Load().target(args...)
	}
}
