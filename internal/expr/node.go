// Package expr is the expression tree model: an immutable, statically typed
// tree of lambdas, blocks, parameters, exception handlers and runtime
// variable captures. Trees are built once and never mutated; rewriting
// passes return new nodes and share every unchanged subtree.
package expr

import (
	"reflect"

	"github.com/funvibe/thunkjit/internal/closure"
)

// Kind identifies the node type.
type Kind int

const (
	KindConstant Kind = iota
	KindParameter
	KindLambda
	KindBlock
	KindBinary
	KindAssign
	KindConditional
	KindTry
	KindCatch
	KindThrow
	KindInvoke
	KindRuntimeVariables
	KindMergeVariables
	KindCellValue
	KindSlot
)

var kindNames = [...]string{
	KindConstant:         "Constant",
	KindParameter:        "Parameter",
	KindLambda:           "Lambda",
	KindBlock:            "Block",
	KindBinary:           "Binary",
	KindAssign:           "Assign",
	KindConditional:      "Conditional",
	KindTry:              "Try",
	KindCatch:            "Catch",
	KindThrow:            "Throw",
	KindInvoke:           "Invoke",
	KindRuntimeVariables: "RuntimeVariables",
	KindMergeVariables:   "MergeVariables",
	KindCellValue:        "CellValue",
	KindSlot:             "Slot",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Node is the base interface for all tree nodes. Type returns the static
// type of the value the node produces, or nil for nodes without a value.
type Node interface {
	Kind() Kind
	Type() reflect.Type
}

// Callable is the uniform calling convention of compiled and interpreted
// lambdas.
type Callable func(args ...any) (any, error)

// Invoker is implemented by values that can be called like a Callable
// without being one (dispatchers, for instance).
type Invoker interface {
	Invoke(args ...any) (any, error)
}

var (
	AnyType       = reflect.TypeFor[any]()
	BoolType      = reflect.TypeFor[bool]()
	IntType       = reflect.TypeFor[int]()
	FloatType     = reflect.TypeFor[float64]()
	StringType    = reflect.TypeFor[string]()
	ErrorType     = reflect.TypeFor[error]()
	CallableType  = reflect.TypeFor[Callable]()
	VariablesType = reflect.TypeFor[closure.Variables]()
	RecordType    = closure.RecordPtrType
)

// Constant is a literal value.
type Constant struct {
	Value any
	typ   reflect.Type
}

// Const returns a constant typed by the dynamic type of v.
func Const(v any) *Constant {
	if v == nil {
		return &Constant{typ: AnyType}
	}
	return &Constant{Value: v, typ: reflect.TypeOf(v)}
}

// ConstOf returns a constant with an explicit static type.
func ConstOf(typ reflect.Type, v any) *Constant {
	return &Constant{Value: v, typ: typ}
}

func (c *Constant) Kind() Kind         { return KindConstant }
func (c *Constant) Type() reflect.Type { return c.typ }

// Parameter is a variable. Identity is the pointer: two parameters with the
// same name are different variables.
type Parameter struct {
	Name string
	typ  reflect.Type
}

// Param declares a new variable.
func Param(name string, typ reflect.Type) *Parameter {
	return &Parameter{Name: name, typ: typ}
}

func (p *Parameter) Kind() Kind         { return KindParameter }
func (p *Parameter) Type() reflect.Type { return p.typ }

// Lambda is a function literal. A nil Result declares an action.
type Lambda struct {
	Name   string
	Params []*Parameter
	Body   Node
	Result reflect.Type
}

// NewLambda builds a lambda returning result.
func NewLambda(name string, result reflect.Type, body Node, params ...*Parameter) *Lambda {
	return &Lambda{Name: name, Params: params, Body: body, Result: result}
}

// NewAction builds a lambda with no result.
func NewAction(name string, body Node, params ...*Parameter) *Lambda {
	return &Lambda{Name: name, Params: params, Body: body}
}

func (l *Lambda) Kind() Kind         { return KindLambda }
func (l *Lambda) Type() reflect.Type { return CallableType }

// IsAction reports whether the lambda produces no result.
func (l *Lambda) IsAction() bool { return l.Result == nil }

// ParamTypes returns the declared parameter types.
func (l *Lambda) ParamTypes() []reflect.Type {
	types := make([]reflect.Type, len(l.Params))
	for i, p := range l.Params {
		types[i] = p.Type()
	}
	return types
}

// Block declares Vars and evaluates Body in order; its value is the value
// of the last expression.
type Block struct {
	Vars []*Parameter
	Body []Node
}

func NewBlock(vars []*Parameter, body ...Node) *Block {
	return &Block{Vars: vars, Body: body}
}

func (b *Block) Kind() Kind { return KindBlock }
func (b *Block) Type() reflect.Type {
	if len(b.Body) == 0 {
		return nil
	}
	return b.Body[len(b.Body)-1].Type()
}

// Binary applies an arithmetic or comparison operator.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

func NewBinary(op Op, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

func Add(l, r Node) *Binary { return NewBinary(OpAdd, l, r) }
func Sub(l, r Node) *Binary { return NewBinary(OpSub, l, r) }
func Mul(l, r Node) *Binary { return NewBinary(OpMul, l, r) }
func Lt(l, r Node) *Binary  { return NewBinary(OpLt, l, r) }
func Eq(l, r Node) *Binary  { return NewBinary(OpEq, l, r) }

func (b *Binary) Kind() Kind { return KindBinary }
func (b *Binary) Type() reflect.Type {
	if b.Op.IsComparison() {
		return BoolType
	}
	return b.Left.Type()
}

// Assign stores Value into Target, which must be a *Parameter, *CellValue
// or *Slot. Its value is the stored value.
type Assign struct {
	Target Node
	Value  Node
}

func NewAssign(target, value Node) *Assign {
	return &Assign{Target: target, Value: value}
}

func (a *Assign) Kind() Kind         { return KindAssign }
func (a *Assign) Type() reflect.Type { return a.Target.Type() }

// Conditional evaluates Then or Else depending on Test. Else may be nil.
type Conditional struct {
	Test Node
	Then Node
	Else Node
}

func If(test, then, els Node) *Conditional {
	return &Conditional{Test: test, Then: then, Else: els}
}

func (c *Conditional) Kind() Kind         { return KindConditional }
func (c *Conditional) Type() reflect.Type {
	if t := c.Then.Type(); t != nil || c.Else == nil {
		return t
	}
	return c.Else.Type()
}

// Try evaluates Body; an error raised by it is handed to the first handler.
// Finally, when present, always runs.
type Try struct {
	Body     Node
	Handlers []*Catch
	Finally  Node
}

func NewTry(body Node, finally Node, handlers ...*Catch) *Try {
	return &Try{Body: body, Handlers: handlers, Finally: finally}
}

func (t *Try) Kind() Kind         { return KindTry }
func (t *Try) Type() reflect.Type { return t.Body.Type() }

// Catch is an exception handler. Var, when set, is bound to the error and
// must be of type error.
type Catch struct {
	Var  *Parameter
	Body Node
}

func NewCatch(v *Parameter, body Node) *Catch {
	return &Catch{Var: v, Body: body}
}

func (c *Catch) Kind() Kind         { return KindCatch }
func (c *Catch) Type() reflect.Type { return c.Body.Type() }

// Throw raises a ThrownError carrying the value of Value.
type Throw struct {
	Value Node
}

func NewThrow(v Node) *Throw { return &Throw{Value: v} }

func (t *Throw) Kind() Kind         { return KindThrow }
func (t *Throw) Type() reflect.Type { return nil }

// Invoke calls a Callable or Invoker value.
type Invoke struct {
	Target Node
	Args   []Node
	typ    reflect.Type
}

func NewInvoke(typ reflect.Type, target Node, args ...Node) *Invoke {
	return &Invoke{Target: target, Args: args, typ: typ}
}

func (i *Invoke) Kind() Kind         { return KindInvoke }
func (i *Invoke) Type() reflect.Type { return i.typ }

// RuntimeVariables produces a closure.Variables giving read/write access to
// the listed variables.
type RuntimeVariables struct {
	Vars []*Parameter
}

func Vars(vars ...*Parameter) *RuntimeVariables {
	return &RuntimeVariables{Vars: vars}
}

func (r *RuntimeVariables) Kind() Kind         { return KindRuntimeVariables }
func (r *RuntimeVariables) Type() reflect.Type { return VariablesType }

// MergeVariables joins a local runtime-variables group with a group of
// already resolved captured cells, see closure.Merge.
type MergeVariables struct {
	Local   *RuntimeVariables
	Hoisted closure.Variables
	Indexes []int
}

func Merge(local *RuntimeVariables, hoisted closure.Variables, indexes []int) *MergeVariables {
	return &MergeVariables{Local: local, Hoisted: hoisted, Indexes: indexes}
}

func (m *MergeVariables) Kind() Kind         { return KindMergeVariables }
func (m *MergeVariables) Type() reflect.Type { return VariablesType }

// CellValue reads or, as an assignment target, writes a storage cell.
type CellValue struct {
	Cell closure.Cell
}

func CellRef(c closure.Cell) *CellValue { return &CellValue{Cell: c} }

func (c *CellValue) Kind() Kind         { return KindCellValue }
func (c *CellValue) Type() reflect.Type { return c.Cell.Type() }

// Slot reads or writes slot Index of the closure record produced by Record.
type Slot struct {
	Record Node
	Index  int
	typ    reflect.Type
}

func SlotOf(typ reflect.Type, record Node, index int) *Slot {
	return &Slot{Record: record, Index: index, typ: typ}
}

func (s *Slot) Kind() Kind         { return KindSlot }
func (s *Slot) Type() reflect.Type { return s.typ }
