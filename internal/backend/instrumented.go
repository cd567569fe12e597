package backend

import (
	"sync/atomic"

	"github.com/funvibe/thunkjit/internal/expr"
)

// Instrumented counts compilations and invocations of the callables another
// back end produces.
type Instrumented struct {
	inner       Backend
	compiles    atomic.Int64
	invocations atomic.Int64
}

// Instrument wraps b.
func Instrument(b Backend) *Instrumented {
	return &Instrumented{inner: b}
}

func (b *Instrumented) Compile(l *expr.Lambda) (expr.Callable, error) {
	b.compiles.Add(1)
	fn, err := b.inner.Compile(l)
	if err != nil {
		return nil, err
	}
	return func(args ...any) (any, error) {
		b.invocations.Add(1)
		return fn(args...)
	}, nil
}

func (b *Instrumented) Name() string { return b.inner.Name() }

// Compiles reports how many times Compile was called.
func (b *Instrumented) Compiles() int64 { return b.compiles.Load() }

// Invocations reports how many times a produced callable was called.
func (b *Instrumented) Invocations() int64 { return b.invocations.Load() }

// Stats is a snapshot of an instrumented back end.
type Stats struct {
	Name        string
	Compiles    int64
	Invocations int64
}

func (b *Instrumented) Stats() Stats {
	return Stats{Name: b.Name(), Compiles: b.Compiles(), Invocations: b.Invocations()}
}

// InstrumentSet wraps both back ends of s.
func InstrumentSet(s Set) (Set, *Instrumented, *Instrumented) {
	native, interp := Instrument(s.Native), Instrument(s.Interpreter)
	return Set{Native: native, Interpreter: interp}, native, interp
}
