package expr

import (
	"errors"
	"testing"
)

// identity returns every node unchanged after visiting its children.
type identity struct{}

func (v identity) Visit(n Node) (Node, error) { return Transform(v, n) }

func sampleTree() *Lambda {
	c := Param("c", RecordType)
	x := Param("x", IntType)
	tmp := Param("tmp", IntType)
	e := Param("e", ErrorType)
	body := NewBlock([]*Parameter{tmp},
		NewAssign(tmp, Add(SlotOf(IntType, c, 1), x)),
		NewTry(
			If(Lt(tmp, Const(0)), NewThrow(Const("negative")), tmp),
			nil,
			NewCatch(e, Const(-1)),
		),
		Vars(x, tmp),
		NewInvoke(AnyType, NewLambda("inner", IntType, tmp), Const(1)),
	)
	return NewLambda("f", IntType, body, c, x)
}

func TestTransformSharesUnchangedTree(t *testing.T) {
	tree := sampleTree()
	out, err := identity{}.Visit(tree)
	if err != nil {
		t.Fatal(err)
	}
	if out != Node(tree) {
		t.Errorf("identity rewrite copied the tree")
	}
}

func TestTransformRebuildsChangedPath(t *testing.T) {
	tree := sampleTree()
	block := tree.Body.(*Block)
	try := block.Body[1].(*Try)

	// Replace constant -1 inside the catch handler.
	v := VisitorFunc(nil)
	v = func(n Node) (Node, error) {
		if c, ok := n.(*Constant); ok && c.Value == -1 {
			return Const(-2), nil
		}
		return Transform(v, n)
	}
	out, err := v.Visit(tree)
	if err != nil {
		t.Fatal(err)
	}
	lam := out.(*Lambda)
	if lam == tree {
		t.Fatal("changed tree returned the original lambda")
	}
	newBlock := lam.Body.(*Block)
	if newBlock.Body[0] != block.Body[0] {
		t.Error("unchanged sibling was rebuilt")
	}
	newTry := newBlock.Body[1].(*Try)
	if newTry.Body != try.Body {
		t.Error("unchanged try body was rebuilt")
	}
	if try.Handlers[0].Body.(*Constant).Value != -1 {
		t.Error("original tree was mutated")
	}
	if got := newTry.Handlers[0].Body.(*Constant).Value; got != -2 {
		t.Errorf("handler constant = %v, want -2", got)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		op   Op
		l, r any
		want any
	}{
		{OpAdd, 10, 5, 15},
		{OpSub, int64(10), int64(5), int64(5)},
		{OpMul, 2.5, 2.0, 5.0},
		{OpDiv, 7, 2, 3},
		{OpAdd, "a", "b", "ab"},
		{OpLt, 1, 2, true},
		{OpGe, "a", "b", false},
		{OpEq, true, true, true},
		{OpNe, nil, 1, true},
	}
	for _, tt := range tests {
		got, err := Apply(tt.op, tt.l, tt.r)
		if err != nil {
			t.Errorf("Apply(%s, %v, %v): %v", tt.op, tt.l, tt.r, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Apply(%s, %v, %v) = %v, want %v", tt.op, tt.l, tt.r, got, tt.want)
		}
	}

	if _, err := Apply(OpDiv, 1, 0); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("divide by zero error = %v", err)
	}
	if _, err := Apply(OpAdd, 1, "x"); !errors.Is(err, ErrOperand) {
		t.Errorf("mixed operands error = %v", err)
	}
	if _, err := Apply(OpEq, []int{1}, []int{1}); !errors.Is(err, ErrOperand) {
		t.Errorf("slice equality error = %v", err)
	}
}

func TestParseOp(t *testing.T) {
	for _, s := range []string{"+", "add", "<=", "le"} {
		if _, ok := ParseOp(s); !ok {
			t.Errorf("ParseOp(%q) failed", s)
		}
	}
	if _, ok := ParseOp("%"); ok {
		t.Error("ParseOp(%) should fail")
	}
}

func TestString(t *testing.T) {
	x := Param("x", IntType)
	got := String(NewLambda("", IntType, Add(x, Const(1)), x))
	want := "(lambda (x) (+ x 1))"
	if got != want {
		t.Errorf("String = %s, want %s", got, want)
	}
}

func TestThrownError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&ThrownError{Value: inner})
	if !errors.Is(err, inner) {
		t.Error("thrown error should unwrap to its value")
	}
	if (&ThrownError{Value: 3}).Error() != "thrown: 3" {
		t.Error("unexpected message")
	}
}
