// Package quote rewrites an expression tree so that every variable it does
// not bind itself refers directly to the storage cell that captured it.
// The result is self-contained: it can be compiled or interpreted without
// the capture frames it was quoted against.
package quote

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/scope"
)

// ErrUnresolved is reported when a free variable is not found anywhere in
// the frame chain. It means the tree and the frames do not belong together.
var ErrUnresolved = errors.New("quote: unresolved variable")

// ResolutionError names the variable that could not be resolved.
type ResolutionError struct {
	Var   *expr.Parameter
	Depth int // number of frames searched
	Cause error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("quote: variable %q not found after %d frame(s)", e.Var.Name, e.Depth)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResolutionError) Is(target error) bool { return target == ErrUnresolved }

func (e *ResolutionError) Unwrap() error { return e.Cause }

// Record is the ordinal view of a closure record the quoter needs.
// *closure.Record implements it.
type Record interface {
	Cell(i int) (closure.Cell, error)
}

type quoter struct {
	frame  scope.Frame
	record Record
	scopes []map[*expr.Parameter]struct{}
}

// Quote resolves the free variables of tree against the frame chain and the
// live record of the innermost frame. A tree without free variables is
// returned as is.
func Quote(tree expr.Node, frame scope.Frame, record Record) (expr.Node, error) {
	if isNil(frame) {
		frame = nil
	}
	if isNil(record) {
		record = nil
	}
	q := &quoter{frame: frame, record: record}
	return q.Visit(tree)
}

// QuoteLambda is Quote for a lambda root.
func QuoteLambda(tree *expr.Lambda, frame scope.Frame, record Record) (*expr.Lambda, error) {
	out, err := Quote(tree, frame, record)
	if err != nil {
		return nil, err
	}
	return out.(*expr.Lambda), nil
}

func (q *quoter) Visit(n expr.Node) (expr.Node, error) {
	switch n := n.(type) {
	case *expr.Lambda:
		q.push(n.Params...)
		defer q.pop()
		return expr.Transform(q, n)

	case *expr.Block:
		q.push(n.Vars...)
		defer q.pop()
		return expr.Transform(q, n)

	case *expr.Catch:
		if n.Var != nil {
			q.push(n.Var)
		} else {
			q.push()
		}
		defer q.pop()
		return expr.Transform(q, n)

	case *expr.Parameter:
		if q.isLocal(n) {
			return n, nil
		}
		cell, err := q.resolve(n)
		if err != nil {
			return nil, err
		}
		return expr.CellRef(cell), nil

	case *expr.RuntimeVariables:
		return q.runtimeVariables(n)
	}
	return expr.Transform(q, n)
}

// runtimeVariables splits the list into variables bound inside the tree and
// variables reached through the frames. Locals get non-negative indexes
// into the local group, captured ones -1-i into the hoisted group.
func (q *quoter) runtimeVariables(n *expr.RuntimeVariables) (expr.Node, error) {
	if len(n.Vars) == 0 {
		return n, nil
	}

	var locals []*expr.Parameter
	var hoisted closure.Cells
	indexes := make([]int, 0, len(n.Vars))
	for _, v := range n.Vars {
		if q.isLocal(v) {
			indexes = append(indexes, len(locals))
			locals = append(locals, v)
			continue
		}
		cell, err := q.resolve(v)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, -1-len(hoisted))
		hoisted = append(hoisted, cell)
	}

	switch {
	case len(hoisted) == 0:
		return n, nil
	case len(locals) == 0:
		return expr.ConstOf(expr.VariablesType, closure.Variables(hoisted)), nil
	}
	return expr.Merge(expr.Vars(locals...), hoisted, indexes), nil
}

// resolve walks the frame chain and the record chain in lockstep: moving to
// the parent frame means moving to the record held in the parent slot.
func (q *quoter) resolve(v *expr.Parameter) (closure.Cell, error) {
	frame, rec := q.frame, q.record
	depth := 0
	for frame != nil && rec != nil {
		depth++
		if slot, ok := frame.Lookup(v); ok {
			cell, err := rec.Cell(slot)
			if err != nil {
				return nil, &ResolutionError{Var: v, Depth: depth, Cause: err}
			}
			return cell, nil
		}

		frame = frame.Parent()
		if frame == nil {
			break
		}
		parent, err := parentRecord(rec)
		if err != nil {
			return nil, &ResolutionError{Var: v, Depth: depth, Cause: err}
		}
		rec = parent
	}
	return nil, &ResolutionError{Var: v, Depth: depth}
}

func parentRecord(rec Record) (Record, error) {
	cell, err := rec.Cell(config.ParentSlot)
	if err != nil {
		return nil, err
	}
	parent, ok := cell.Load().(Record)
	if !ok || isNil(parent) {
		return nil, fmt.Errorf("parent slot holds %T, not a record", cell.Load())
	}
	return parent, nil
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func (q *quoter) push(vars ...*expr.Parameter) {
	set := make(map[*expr.Parameter]struct{}, len(vars))
	for _, v := range vars {
		set[v] = struct{}{}
	}
	q.scopes = append(q.scopes, set)
}

func (q *quoter) pop() {
	q.scopes = q.scopes[:len(q.scopes)-1]
}

func (q *quoter) isLocal(v *expr.Parameter) bool {
	for i := len(q.scopes) - 1; i >= 0; i-- {
		if _, ok := q.scopes[i][v]; ok {
			return true
		}
	}
	return false
}
