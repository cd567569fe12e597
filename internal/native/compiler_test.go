package native

import (
	"errors"
	"testing"

	"github.com/funvibe/thunkjit/internal/expr"
)

func TestCompileRejectsIllTypedTrees(t *testing.T) {
	x := expr.Param("x", expr.IntType)
	free := expr.Param("free", expr.IntType)
	flag := expr.Param("flag", expr.BoolType)

	tests := []struct {
		name string
		tree *expr.Lambda
	}{
		{"mismatched operands", expr.NewLambda("f", expr.IntType, expr.Add(x, expr.Const("a")), x)},
		{"arithmetic on bool", expr.NewLambda("f", expr.BoolType, expr.Add(flag, flag), flag)},
		{"condition not bool", expr.NewLambda("f", expr.IntType, expr.If(x, x, x), x)},
		{"unbound variable", expr.NewLambda("f", expr.IntType, expr.Add(x, free), x)},
		{"result mismatch", expr.NewLambda("f", expr.StringType, x, x)},
		{"handler variable", expr.NewLambda("f", expr.IntType,
			expr.NewTry(x, nil, expr.NewCatch(expr.Param("e", expr.IntType), x)), x)},
		{"assign mismatch", expr.NewLambda("f", expr.IntType, expr.NewAssign(x, expr.Const("s")), x)},
		{"not callable", expr.NewLambda("f", expr.AnyType, expr.NewInvoke(expr.AnyType, x), x)},
		{"slot on int", expr.NewLambda("f", expr.IntType, expr.SlotOf(expr.IntType, x, 0), x)},
		{"no body", expr.NewLambda("f", expr.IntType, nil, x)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Compile(tt.tree)
			if !errors.Is(err, ErrIllTyped) {
				t.Fatalf("Expected ill-typed error, got %v", err)
			}
			var ce *CompileError
			if !errors.As(err, &ce) || ce.Node == nil {
				t.Errorf("Expected a compile error naming the node, got %v", err)
			}
		})
	}
}

func TestNestedCaptureDepth(t *testing.T) {
	// (a) => ((b) => ((c) => a + b + c)(3))(2)
	a := expr.Param("a", expr.IntType)
	b := expr.Param("b", expr.IntType)
	c := expr.Param("c", expr.IntType)
	innermost := expr.NewLambda("inner", expr.IntType, expr.Add(expr.Add(a, b), c), c)
	middle := expr.NewLambda("middle", expr.AnyType, expr.NewInvoke(expr.AnyType, innermost, expr.Const(3)), b)
	outer := expr.NewLambda("outer", expr.AnyType, expr.NewInvoke(expr.AnyType, middle, expr.Const(2)), a)

	fn, err := New().Compile(outer)
	if err != nil {
		t.Fatal(err)
	}
	got, err := fn(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("Expected 6, got %v", got)
	}
}

func TestBlockVariablesAreFreshPerCall(t *testing.T) {
	x := expr.Param("x", expr.IntType)
	acc := expr.Param("acc", expr.IntType)
	tree := expr.NewLambda("f", expr.IntType,
		expr.NewBlock([]*expr.Parameter{acc},
			expr.NewAssign(acc, expr.Add(acc, x)),
			acc), x)

	fn, err := New().Compile(tree)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if got, _ := fn(5); got != 5 {
			t.Fatalf("call %d: Expected 5, got %v", i, got)
		}
	}
}

func TestFinallyErrorWins(t *testing.T) {
	x := expr.Param("x", expr.IntType)
	tree := expr.NewLambda("f", expr.IntType,
		expr.NewTry(x, expr.NewThrow(expr.Const("finally"))), x)
	fn, err := New().Compile(tree)
	if err != nil {
		t.Fatal(err)
	}
	_, err = fn(1)
	var thrown *expr.ThrownError
	if !errors.As(err, &thrown) || thrown.Value != "finally" {
		t.Errorf("Expected the finally error, got %v", err)
	}
}
