package thunkjit_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/scope"
	"github.com/funvibe/thunkjit/internal/thunk"
	thunkjit "github.com/funvibe/thunkjit/pkg/embed"
)

func TestEngineCompileAndCall(t *testing.T) {
	cfg := config.Default()
	cfg.Policy = config.PolicyImmediate
	engine, err := thunkjit.New(thunkjit.Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}

	total := expr.Param("total", expr.IntType)
	frame := scope.NewFrame(nil, total)
	rec, err := closure.New(closure.NewSlot(0))
	if err != nil {
		t.Fatal(err)
	}

	// (c, n) => total = total + n
	c := expr.Param("c", expr.RecordType)
	n := expr.Param("n", expr.IntType)
	tree := expr.NewLambda("accumulate", expr.IntType, expr.NewAssign(total, expr.Add(total, n)), c, n)

	d, err := engine.Compile("accumulate", tree, frame, rec)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 4; i++ {
		if _, err := engine.Call("accumulate", i); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := rec.Get(0); v != 10 {
		t.Errorf("Expected total 10, got %v", v)
	}
	if d.Thunk().State() != thunk.Compiled {
		t.Errorf("Expected compiled, got %s", d.Thunk().State())
	}
	if ds := engine.Delegates(); len(ds) != 1 || ds[0] != d {
		t.Errorf("Expected the accumulate delegate, got %v", ds)
	}
	if _, err := engine.Call("missing"); err == nil {
		t.Error("Expected an error for an unknown delegate")
	}
}

func TestLoadFile(t *testing.T) {
	doc := `
captures:
  - {name: greeting, type: string, value: "hello, "}
tree:
  lambda:
    result: string
    params: [{name: c, type: record}, {name: who, type: string}]
    body: {binary: {op: "+", left: {param: greeting}, right: {param: who}}}
args: [world]
`
	path := filepath.Join(t.TempDir(), "greet.tree.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	engine, err := thunkjit.New(thunkjit.Options{})
	if err != nil {
		t.Fatal(err)
	}
	d, err := engine.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "greet.tree" {
		t.Errorf("unexpected delegate name %q", d.Name)
	}
	got, err := d.Invoke(d.Args...)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello, world" {
		t.Errorf("Expected greeting, got %v", got)
	}
}

func TestInvokeContextTimeout(t *testing.T) {
	engine, err := thunkjit.New(thunkjit.Options{})
	if err != nil {
		t.Fatal(err)
	}
	release := make(chan struct{})
	defer close(release)
	wait := expr.Callable(func(...any) (any, error) {
		<-release
		return 1, nil
	})

	c := expr.Param("c", expr.RecordType)
	tree := expr.NewLambda("wait", expr.AnyType, expr.NewInvoke(expr.AnyType, expr.ConstOf(expr.CallableType, wait)), c)
	d, err := engine.Compile("wait", tree, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := d.InvokeContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestInvalidPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Policy = "eager"
	if _, err := thunkjit.New(thunkjit.Options{Config: cfg}); err == nil {
		t.Error("Expected an error for an unknown policy")
	}
}
