package quote

import (
	"errors"
	"testing"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/interp"
	"github.com/funvibe/thunkjit/internal/native"
	"github.com/funvibe/thunkjit/internal/scope"
)

// closedTree has no free variables but uses every scoping construct.
func closedTree() *expr.Lambda {
	c := expr.Param("c", expr.RecordType)
	x := expr.Param("x", expr.IntType)
	tmp := expr.Param("tmp", expr.IntType)
	e := expr.Param("e", expr.ErrorType)
	y := expr.Param("y", expr.IntType)
	return expr.NewLambda("closed", expr.VariablesType,
		expr.NewBlock([]*expr.Parameter{tmp},
			expr.NewAssign(tmp, x),
			expr.NewTry(expr.NewThrow(expr.Const("x")), nil, expr.NewCatch(e, e)),
			expr.NewTry(x, nil, expr.NewCatch(nil, tmp)),
			expr.NewInvoke(expr.IntType, expr.NewLambda("inner", expr.IntType, expr.Add(y, tmp), y), x),
			expr.Vars(),
			expr.Vars(x, tmp),
		),
		c, x)
}

func TestQuoteSharesClosedTree(t *testing.T) {
	tree := closedTree()
	out, err := Quote(tree, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != expr.Node(tree) {
		t.Error("quoting a closed tree copied it")
	}

	// The same holds with a frame chain present.
	rec, _ := closure.New(closure.NewSlot(1))
	out, err = Quote(tree, scope.NewFrame(nil, expr.Param("unused", expr.IntType)), rec)
	if err != nil {
		t.Fatal(err)
	}
	if out != expr.Node(tree) {
		t.Error("quoting a closed tree against frames copied it")
	}
}

func TestEmptyVariablesListUnchanged(t *testing.T) {
	empty := expr.Vars()
	out, err := Quote(empty, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != expr.Node(empty) {
		t.Error("empty variables list was rewritten")
	}
}

// cells collects the captured cells referenced by a quoted tree.
func cells(t *testing.T, n expr.Node) []closure.Cell {
	t.Helper()
	var found []closure.Cell
	var v expr.VisitorFunc
	v = func(n expr.Node) (expr.Node, error) {
		if cv, ok := n.(*expr.CellValue); ok {
			found = append(found, cv.Cell)
		}
		return expr.Transform(v, n)
	}
	if _, err := v.Visit(n); err != nil {
		t.Fatal(err)
	}
	return found
}

func TestThreeLevelResolution(t *testing.T) {
	a := expr.Param("a", expr.IntType)
	m := expr.Param("m", expr.StringType)

	// Level 1 holds a, level 2 holds m, level 3 captures nothing.
	f1 := scope.NewFrame(nil, a)
	f2 := scope.NewFrame(f1, m)
	f3 := scope.NewFrame(f2)
	r1, _ := closure.New(closure.NewSlot(5))
	r2, _ := closure.NewNested(r1, closure.NewSlot("m"))
	r3, _ := closure.NewNested(r2)

	c := expr.Param("c", expr.RecordType)
	x := expr.Param("x", expr.IntType)
	tree := expr.NewLambda("bump", expr.IntType,
		expr.NewBlock(nil, expr.NewAssign(a, expr.Add(a, x)), a), c, x)

	quoted, err := QuoteLambda(tree, f3, r3)
	if err != nil {
		t.Fatal(err)
	}

	// Walk the chain by hand.
	p2, ok := r3.Parent()
	if !ok {
		t.Fatal("r3 has no parent")
	}
	p1, ok := p2.Parent()
	if !ok {
		t.Fatal("r2 has no parent")
	}
	want, err := p1.Cell(0)
	if err != nil {
		t.Fatal(err)
	}

	got := cells(t, quoted)
	if len(got) != 3 {
		t.Fatalf("Expected 3 cell references, got %d", len(got))
	}
	for _, cell := range got {
		if cell != want {
			t.Fatal("quoted tree references a different cell")
		}
	}

	interpreted := interp.New().Interpret(quoted)
	if v, err := interpreted(r3, 2); err != nil || v != 7 {
		t.Fatalf("interpreted = %v, %v; want 7", v, err)
	}
	compiled, err := native.New().Compile(quoted)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := compiled(r3, 3); err != nil || v != 10 {
		t.Fatalf("compiled = %v, %v; want 10", v, err)
	}
	if want.Load() != 10 {
		t.Errorf("Expected the captured cell to hold 10, got %v", want.Load())
	}
	if v, _ := r1.Get(0); v != 10 {
		t.Errorf("Expected the outer record to hold 10, got %v", v)
	}
}

func TestMixedVariablesMerge(t *testing.T) {
	h0 := expr.Param("h0", expr.IntType)
	h1 := expr.Param("h1", expr.IntType)
	rec, _ := closure.New(closure.NewSlot(10), closure.NewSlot(20))
	frame := scope.NewFrame(nil, h0, h1)

	c := expr.Param("c", expr.RecordType)
	l0 := expr.Param("l0", expr.IntType)
	l1 := expr.Param("l1", expr.IntType)
	vars := expr.Vars(h0, l0, h1, l1)
	tree := expr.NewLambda("mixed", expr.VariablesType,
		expr.NewBlock([]*expr.Parameter{l0, l1},
			expr.NewAssign(l0, expr.Const(1)),
			expr.NewAssign(l1, expr.Const(2)),
			vars,
		), c)

	quoted, err := QuoteLambda(tree, frame, rec)
	if err != nil {
		t.Fatal(err)
	}
	block := quoted.Body.(*expr.Block)
	merge, ok := block.Body[2].(*expr.MergeVariables)
	if !ok {
		t.Fatalf("Expected a merge node, got %s", block.Body[2].Kind())
	}
	wantIdx := []int{-1, 0, -2, 1}
	for i, idx := range merge.Indexes {
		if idx != wantIdx[i] {
			t.Fatalf("indexes = %v, want %v", merge.Indexes, wantIdx)
		}
	}
	if merge.Local.Vars[0] != l0 || merge.Local.Vars[1] != l1 {
		t.Error("local group out of order")
	}

	compiled, err := native.New().Compile(quoted)
	if err != nil {
		t.Fatal(err)
	}
	callables := map[string]expr.Callable{
		"interp": interp.New().Interpret(quoted),
		"native": compiled,
	}
	for name, fn := range callables {
		if err := rec.Set(0, 10); err != nil {
			t.Fatal(err)
		}
		if err := rec.Set(1, 20); err != nil {
			t.Fatal(err)
		}
		v, err := fn(rec)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		view := v.(closure.Variables)
		if view.Count() != 4 {
			t.Fatalf("%s: Expected 4 variables, got %d", name, view.Count())
		}
		for i, want := range []int{10, 1, 20, 2} {
			if got, err := view.Get(i); err != nil || got != want {
				t.Errorf("%s: Get(%d) = %v, %v; want %d", name, i, got, err, want)
			}
		}
		for i := 0; i < 4; i++ {
			if err := view.Set(i, 100+i); err != nil {
				t.Fatalf("%s: Set(%d): %v", name, i, err)
			}
		}
		if got, _ := rec.Get(0); got != 100 {
			t.Errorf("%s: hoisted h0 not written through: %v", name, got)
		}
		if got, _ := rec.Get(1); got != 102 {
			t.Errorf("%s: hoisted h1 not written through: %v", name, got)
		}
		if got, _ := view.Get(1); got != 101 {
			t.Errorf("%s: local l0 not writable: %v", name, got)
		}
		if got, _ := view.Get(3); got != 103 {
			t.Errorf("%s: local l1 not writable: %v", name, got)
		}
	}
}

func TestAllHoistedBecomesConstant(t *testing.T) {
	h0 := expr.Param("h0", expr.IntType)
	h1 := expr.Param("h1", expr.StringType)
	rec, _ := closure.New(closure.NewSlot(1), closure.NewSlot("s"))
	frame := scope.NewFrame(nil, h0, h1)

	out, err := Quote(expr.Vars(h1, h0), frame, rec)
	if err != nil {
		t.Fatal(err)
	}
	k, ok := out.(*expr.Constant)
	if !ok {
		t.Fatalf("Expected a constant, got %s", out.Kind())
	}
	cs := k.Value.(closure.Cells)
	c0, _ := rec.Cell(0)
	c1, _ := rec.Cell(1)
	if len(cs) != 2 || cs[0] != c1 || cs[1] != c0 {
		t.Error("constant does not hold the record cells in list order")
	}
}

func TestLocalDeclarationsShadowCaptures(t *testing.T) {
	v := expr.Param("v", expr.IntType)
	e := expr.Param("e", expr.ErrorType)
	rec, _ := closure.New(closure.NewSlot(1), closure.NewSlot[error](nil))
	frame := scope.NewFrame(nil, v, e)

	// v is redeclared by the inner lambda and e by the handler.
	inner := expr.NewLambda("inner", expr.IntType, v, v)
	handler := expr.NewTry(expr.Const(0), nil, expr.NewCatch(e, e))
	tree := expr.NewBlock(nil, inner, handler)

	out, err := Quote(tree, frame, rec)
	if err != nil {
		t.Fatal(err)
	}
	if out != expr.Node(tree) {
		t.Error("locally declared variables were resolved against the frame")
	}
}

func TestUnresolvedVariable(t *testing.T) {
	known := expr.Param("known", expr.IntType)
	missing := expr.Param("missing", expr.IntType)
	f1 := scope.NewFrame(nil, known)
	f2 := scope.NewFrame(f1)
	r1, _ := closure.New(closure.NewSlot(1))
	r2, _ := closure.NewNested(r1)

	_, err := Quote(expr.Add(known, missing), f2, r2)
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("Expected unresolved error, got %v", err)
	}
	var re *ResolutionError
	if !errors.As(err, &re) || re.Var != missing || re.Depth != 2 {
		t.Errorf("unexpected resolution error %+v", re)
	}

	if _, err := Quote(missing, nil, nil); !errors.Is(err, ErrUnresolved) {
		t.Errorf("Expected unresolved error without frames, got %v", err)
	}
}

func TestBrokenParentChain(t *testing.T) {
	outer := expr.Param("outer", expr.IntType)
	f1 := scope.NewFrame(nil, outer)
	f2 := scope.NewFrame(f1)
	// Slot 0 holds an int instead of the parent record.
	rec, _ := closure.New(closure.NewSlot(3))

	_, err := Quote(outer, f2, rec)
	var re *ResolutionError
	if !errors.As(err, &re) || re.Cause == nil {
		t.Fatalf("Expected a resolution error with a cause, got %v", err)
	}
}
