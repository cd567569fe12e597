package treefile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/interp"
	"github.com/funvibe/thunkjit/internal/native"
	"github.com/funvibe/thunkjit/internal/quote"
)

const addY = `
name: addY
captures:
  - {name: y, type: int, value: 7}
tree:
  lambda:
    result: int
    params: [{name: c, type: record}, {name: x, type: int}]
    body:
      block:
        vars: [{name: t, type: int}]
        body:
          - assign: {target: {param: t}, value: {binary: {op: "*", left: {param: x}, right: {const: 2}}}}
          - if:
              test: {binary: {op: "<", left: {param: t}, right: {const: 0}}}
              then: {throw: {const: negative}}
              else: {binary: {op: "+", left: {param: t}, right: {param: y}}}
args: [5]
`

func TestParseYAML(t *testing.T) {
	doc, err := Parse([]byte(addY), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "addY" || doc.Tree.Name != "addY" {
		t.Errorf("unexpected names %q, %q", doc.Name, doc.Tree.Name)
	}
	if len(doc.Captures) != 1 || doc.Frame == nil || doc.Closure.Count() != 1 {
		t.Fatalf("captures not decoded: %+v", doc)
	}
	if len(doc.Args) != 1 || doc.Args[0] != 5 {
		t.Errorf("Expected args [5], got %v", doc.Args)
	}

	quoted, err := quote.QuoteLambda(doc.Tree, doc.Frame, doc.Closure)
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := native.New().Compile(quoted)
	if err != nil {
		t.Fatal(err)
	}
	for _, fn := range []expr.Callable{compiled, interp.New().Interpret(quoted)} {
		got, err := fn(doc.Closure, 5)
		if err != nil {
			t.Fatal(err)
		}
		if got != 17 {
			t.Errorf("Expected 17, got %v", got)
		}
	}
}

func TestProtoRoundTrip(t *testing.T) {
	pb, err := ConvertYAML([]byte(addY))
	if err != nil {
		t.Fatal(err)
	}
	fromYAML, err := Parse([]byte(addY), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	fromProto, err := Parse(pb, FormatProto)
	if err != nil {
		t.Fatal(err)
	}
	if a, b := expr.String(fromYAML.Tree), expr.String(fromProto.Tree); a != b {
		t.Errorf("trees differ:\n%s\n%s", a, b)
	}
	if fromProto.Args[0] != 5 {
		t.Errorf("numbers not normalized: %T", fromProto.Args[0])
	}
	if v, _ := fromProto.Closure.Get(0); v != 7 {
		t.Errorf("Expected captured 7, got %v", v)
	}
}

func TestLoadPicksFormat(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "add.tree.yaml")
	if err := os.WriteFile(yamlPath, []byte(addY), 0o644); err != nil {
		t.Fatal(err)
	}
	pb, err := ConvertYAML([]byte(addY))
	if err != nil {
		t.Fatal(err)
	}
	pbPath := filepath.Join(dir, "add.pb")
	if err := os.WriteFile(pbPath, pb, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{yamlPath, pbPath} {
		doc, err := Load(path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if doc.Tree == nil {
			t.Errorf("%s: no tree", path)
		}
	}
	if _, err := Load(filepath.Join(dir, "add.txt")); err == nil {
		t.Error("Expected an error for an unknown extension")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no tree", "name: x", "missing tree"},
		{"not a lambda", "tree: {const: 1}", "expected lambda"},
		{"undeclared", "tree: {lambda: {params: [{name: c, type: record}], body: {param: nope}}}", "undeclared parameter"},
		{"bad type", "tree: {lambda: {params: [{name: c, type: widget}], body: {const: 1}}}", "unknown type"},
		{"bad op", "tree: {lambda: {body: {binary: {op: \"%\", left: {const: 1}, right: {const: 2}}}}}", "unknown operator"},
		{"two kinds", "tree: {lambda: {body: {const: 1, param: x}}}", "exactly one kind"},
		{"redeclared", "tree: {lambda: {params: [{name: a, type: int}, {name: a, type: bool}], body: {const: 1}}}", "redeclared"},
		{"capture value", "captures: [{name: y, type: int, value: nope}]\ntree: {lambda: {body: {const: 1}}}", "y:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatYAML)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	params := []reflect.Type{expr.IntType, expr.FloatType, expr.BoolType, expr.StringType}

	got, err := ParseArgs(params, []string{"3", "1.5", "true", "hi"})
	if err != nil {
		t.Fatal(err)
	}
	want := []any{3, 1.5, true, "hi"}
	for k := range want {
		if got[k] != want[k] {
			t.Errorf("arg %d: Expected %v, got %v", k, want[k], got[k])
		}
	}
	if _, err := ParseArgs(params, []string{"x", "1", "true", ""}); err == nil {
		t.Error("Expected an error for a non-integer")
	}
	if _, err := ParseArgs(params, nil); err == nil {
		t.Error("Expected an arity error")
	}
	if _, err := ParseArgs([]reflect.Type{expr.RecordType}, []string{"r"}); err == nil {
		t.Error("Expected an error for a record argument")
	}
}

func TestConvertArgs(t *testing.T) {
	params := []reflect.Type{expr.IntType, expr.FloatType, expr.BoolType, expr.StringType}

	got, err := ConvertArgs(params, []any{float64(4), "2.5", true, "7"})
	if err != nil {
		t.Fatal(err)
	}
	want := []any{4, 2.5, true, "7"}
	for k := range want {
		if got[k] != want[k] {
			t.Errorf("arg %d: Expected %v (%T), got %v (%T)", k, want[k], want[k], got[k], got[k])
		}
	}
	if _, err := ConvertArgs(params[:1], []any{1.5}); err == nil {
		t.Error("Expected an error for a fractional integer")
	}
	if _, err := ConvertArgs(params, []any{1}); err == nil {
		t.Error("Expected an arity error")
	}
}
