// Package native is the compiling back end. A lambda is checked and lowered
// once into a tree of Go closures with every variable resolved to a fixed
// (depth, slot) position; invoking the result does no tree walking.
package native

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/expr"
)

// ErrIllTyped is reported for trees the compiler cannot lower.
var ErrIllTyped = errors.New("native: ill-typed tree")

// CompileError describes why a node could not be lowered.
type CompileError struct {
	Node expr.Node
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("native: %s: %s", e.Node.Kind(), e.Msg)
}

func (e *CompileError) Unwrap() error { return ErrIllTyped }

// instruction is one lowered node.
type instruction func(f *frame) (any, error)

// frame is one activation of a compiled lambda.
type frame struct {
	cells  []closure.Cell
	parent *frame
}

func (f *frame) cell(depth, slot int) closure.Cell {
	for ; depth > 0; depth-- {
		f = f.parent
	}
	return f.cells[slot]
}

// Compiler lowers lambdas to callables. It holds no state between
// compilations and is safe for concurrent use.
type Compiler struct{}

// New creates a native compiler.
func New() *Compiler {
	return &Compiler{}
}

// Compile checks and lowers l. The returned callable is safe for concurrent
// use.
func (*Compiler) Compile(l *expr.Lambda) (fn expr.Callable, err error) {
	defer catch(&err)
	cp := &compiler{}
	create := cp.emitLambda(l)
	v, err := create(nil)
	if err != nil {
		return nil, err
	}
	return v.(expr.Callable), nil
}

// compiler is the state of one compilation.
type compiler struct {
	scope *funcScope
}

func catch(err *error) {
	if r := recover(); r != nil {
		ce, ok := r.(*CompileError)
		if !ok {
			panic(r)
		}
		*err = ce
	}
}

func fail(n expr.Node, format string, args ...any) {
	panic(&CompileError{Node: n, Msg: fmt.Sprintf(format, args...)})
}

func (c *compiler) compile(n expr.Node) instruction {
	switch n := n.(type) {
	case nil:
		return func(*frame) (any, error) { return nil, nil }

	case *expr.Constant:
		value := n.Value
		return func(*frame) (any, error) { return value, nil }

	case *expr.Parameter:
		depth, slot := c.reach(n)
		if depth == 0 {
			return func(f *frame) (any, error) { return f.cells[slot].Load(), nil }
		}
		return func(f *frame) (any, error) { return f.cell(depth, slot).Load(), nil }

	case *expr.CellValue:
		cell := n.Cell
		return func(*frame) (any, error) { return cell.Load(), nil }

	case *expr.Lambda:
		return c.emitLambda(n)

	case *expr.Block:
		return c.emitBlock(n)

	case *expr.Binary:
		return c.emitBinary(n)

	case *expr.Assign:
		return c.emitAssign(n)

	case *expr.Conditional:
		return c.emitConditional(n)

	case *expr.Try:
		return c.emitTry(n)

	case *expr.Catch:
		fail(n, "handler outside of try")

	case *expr.Throw:
		value := c.compile(n.Value)
		return func(f *frame) (any, error) {
			v, err := value(f)
			if err != nil {
				return nil, err
			}
			return nil, &expr.ThrownError{Value: v}
		}

	case *expr.Invoke:
		return c.emitInvoke(n)

	case *expr.RuntimeVariables:
		return c.emitRuntimeVariables(n)

	case *expr.MergeVariables:
		local := c.emitRuntimeVariables(n.Local)
		hoisted, indexes := n.Hoisted, n.Indexes
		return func(f *frame) (any, error) {
			v, err := local(f)
			if err != nil {
				return nil, err
			}
			return closure.Merge(v.(closure.Variables), hoisted, indexes)
		}

	case *expr.Slot:
		vars := c.emitVariables(n.Record)
		index := n.Index
		return func(f *frame) (any, error) {
			v, err := vars(f)
			if err != nil {
				return nil, err
			}
			return v.Get(index)
		}
	}
	fail(n, "unsupported node %T", n)
	return nil
}

// emitLambda returns an instruction that creates the callable, closing over
// the frame it runs in.
func (c *compiler) emitLambda(l *expr.Lambda) instruction {
	if l.Body == nil {
		fail(l, "lambda %q has no body", l.Name)
	}
	c.beginFunction()
	for _, p := range l.Params {
		c.declare(p)
	}
	body := c.compile(l.Body)
	if l.Result != nil && !assignable(l.Body.Type(), l.Result) {
		fail(l, "body of type %s does not fit result %s", typeName(l.Body.Type()), l.Result)
	}
	capacity := c.endFunction()

	name := l.Name
	types := l.ParamTypes()
	params := l.Params
	action := l.IsAction()
	return func(parent *frame) (any, error) {
		return expr.Callable(func(args ...any) (any, error) {
			if len(args) != len(types) {
				return nil, expr.ArityError(name, len(types), len(args))
			}
			f := &frame{cells: make([]closure.Cell, capacity), parent: parent}
			for i, typ := range types {
				cell, err := closure.NewCellOf(typ, args[i])
				if err != nil {
					return nil, fmt.Errorf("argument %d (%s): %w", i, params[i].Name, err)
				}
				f.cells[i] = cell
			}
			v, err := body(f)
			if err != nil || action {
				return nil, err
			}
			return v, nil
		}), nil
	}
}

func (c *compiler) emitBlock(b *expr.Block) instruction {
	slots := make([]int, len(b.Vars))
	types := make([]reflect.Type, len(b.Vars))
	for i, v := range b.Vars {
		slots[i] = c.declare(v)
		types[i] = v.Type()
	}
	body := make([]instruction, len(b.Body))
	for i, n := range b.Body {
		body[i] = c.compile(n)
	}
	for _, v := range b.Vars {
		c.undeclare(v)
	}

	return func(f *frame) (any, error) {
		for i, slot := range slots {
			f.cells[slot] = closure.NewCell(types[i])
		}
		var result any
		for _, ins := range body {
			v, err := ins(f)
			if err != nil {
				return nil, err
			}
			result = v
		}
		return result, nil
	}
}

func (c *compiler) emitBinary(b *expr.Binary) instruction {
	lt, rt := b.Left.Type(), b.Right.Type()
	if lt == nil || rt == nil {
		fail(b, "operand has no value")
	}
	if lt != rt && lt != expr.AnyType && rt != expr.AnyType {
		fail(b, "mismatched operands %s %s %s", lt, b.Op, rt)
	}
	if !b.Op.IsComparison() && lt.Kind() == reflect.Bool {
		fail(b, "arithmetic %s on bool", b.Op)
	}
	left, right := c.compile(b.Left), c.compile(b.Right)
	op := b.Op
	return func(f *frame) (any, error) {
		l, err := left(f)
		if err != nil {
			return nil, err
		}
		r, err := right(f)
		if err != nil {
			return nil, err
		}
		return expr.Apply(op, l, r)
	}
}

func (c *compiler) emitAssign(a *expr.Assign) instruction {
	if !assignable(a.Value.Type(), a.Target.Type()) {
		fail(a, "cannot assign %s to %s", typeName(a.Value.Type()), typeName(a.Target.Type()))
	}
	value := c.compile(a.Value)

	var store func(f *frame, v any) error
	switch t := a.Target.(type) {
	case *expr.Parameter:
		depth, slot := c.reach(t)
		store = func(f *frame, v any) error { return f.cell(depth, slot).Store(v) }
	case *expr.CellValue:
		cell := t.Cell
		store = func(_ *frame, v any) error { return cell.Store(v) }
	case *expr.Slot:
		vars := c.emitVariables(t.Record)
		index := t.Index
		store = func(f *frame, v any) error {
			rec, err := vars(f)
			if err != nil {
				return err
			}
			return rec.Set(index, v)
		}
	default:
		fail(a, "cannot assign to %s", a.Target.Kind())
	}

	return func(f *frame) (any, error) {
		v, err := value(f)
		if err != nil {
			return nil, err
		}
		if err := store(f, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func (c *compiler) emitConditional(n *expr.Conditional) instruction {
	if tt := n.Test.Type(); tt != expr.BoolType && tt != expr.AnyType {
		fail(n, "condition of type %s", typeName(tt))
	}
	test, then, els := c.compile(n.Test), c.compile(n.Then), c.compile(n.Else)
	return func(f *frame) (any, error) {
		t, err := test(f)
		if err != nil {
			return nil, err
		}
		ok, err := expr.Truth(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return then(f)
		}
		return els(f)
	}
}

func (c *compiler) emitTry(n *expr.Try) instruction {
	body := c.compile(n.Body)

	var handler instruction
	handlerSlot := -1
	if len(n.Handlers) > 0 {
		h := n.Handlers[0]
		if h.Var != nil {
			if !expr.ErrorType.AssignableTo(h.Var.Type()) {
				fail(h, "handler variable %s of type %s cannot hold an error", h.Var.Name, h.Var.Type())
			}
			handlerSlot = c.declare(h.Var)
		}
		handler = c.compile(h.Body)
		if h.Var != nil {
			c.undeclare(h.Var)
		}
	}
	var finally instruction
	if n.Finally != nil {
		finally = c.compile(n.Finally)
	}

	var handlerType reflect.Type
	if handlerSlot >= 0 {
		handlerType = n.Handlers[0].Var.Type()
	}
	return func(f *frame) (result any, err error) {
		if finally != nil {
			defer func() {
				if _, ferr := finally(f); ferr != nil {
					result, err = nil, ferr
				}
			}()
		}
		result, err = body(f)
		if err == nil || handler == nil {
			return result, err
		}
		if handlerSlot >= 0 {
			cell, cerr := closure.NewCellOf(handlerType, err)
			if cerr != nil {
				return nil, cerr
			}
			f.cells[handlerSlot] = cell
		}
		return handler(f)
	}
}

func (c *compiler) emitInvoke(n *expr.Invoke) instruction {
	tt := n.Target.Type()
	if tt == nil {
		fail(n, "target has no value")
	}
	if tt != expr.CallableType && tt != expr.AnyType && !tt.Implements(invokerType) && tt.Kind() != reflect.Func {
		fail(n, "target of type %s is not callable", typeName(tt))
	}
	target := c.compile(n.Target)
	args := make([]instruction, len(n.Args))
	for i, a := range n.Args {
		args[i] = c.compile(a)
	}
	return func(f *frame) (any, error) {
		fn, err := target(f)
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(args))
		for i, a := range args {
			if vals[i], err = a(f); err != nil {
				return nil, err
			}
		}
		return expr.Call(fn, vals...)
	}
}

func (c *compiler) emitRuntimeVariables(n *expr.RuntimeVariables) instruction {
	type ref struct{ depth, slot int }
	refs := make([]ref, len(n.Vars))
	for i, v := range n.Vars {
		refs[i].depth, refs[i].slot = c.reach(v)
	}
	return func(f *frame) (any, error) {
		cells := make(closure.Cells, len(refs))
		for i, r := range refs {
			cells[i] = f.cell(r.depth, r.slot)
		}
		return closure.Variables(cells), nil
	}
}

func (c *compiler) emitVariables(n expr.Node) func(f *frame) (closure.Variables, error) {
	if t := n.Type(); t != expr.RecordType && t != expr.VariablesType && t != expr.AnyType {
		fail(n, "slot access on %s", typeName(t))
	}
	if k, ok := n.(*expr.Constant); ok {
		if rec, ok := k.Value.(*closure.Record); ok && rec == nil {
			fail(n, "slot access on nil record")
		}
	}
	ins := c.compile(n)
	return func(f *frame) (closure.Variables, error) {
		v, err := ins(f)
		if err != nil {
			return nil, err
		}
		vars, ok := v.(closure.Variables)
		if !ok || vars == (*closure.Record)(nil) {
			return nil, fmt.Errorf("%w: %T", expr.ErrNotVariables, v)
		}
		return vars, nil
	}
}

var invokerType = reflect.TypeFor[expr.Invoker]()

func assignable(from, to reflect.Type) bool {
	if from == nil || to == nil {
		return from == to
	}
	return from == expr.AnyType || from.AssignableTo(to)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}
