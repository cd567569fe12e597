package treefile

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/funvibe/thunkjit/internal/expr"
)

var typeNames = map[string]reflect.Type{
	"int":       expr.IntType,
	"float":     expr.FloatType,
	"string":    expr.StringType,
	"bool":      expr.BoolType,
	"any":       expr.AnyType,
	"record":    expr.RecordType,
	"error":     expr.ErrorType,
	"callable":  expr.CallableType,
	"variables": expr.VariablesType,
}

// ParseType maps a document type name to its Go type.
func ParseType(name string) (reflect.Type, error) {
	if t, ok := typeNames[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// TypeName is the inverse of ParseType.
func TypeName(t reflect.Type) string {
	for name, typ := range typeNames {
		if typ == t {
			return name
		}
	}
	return t.String()
}

// decoder turns generic document values into nodes. Parameters are
// identified by name across the whole document.
type decoder struct {
	params map[string]*expr.Parameter
}

func newDecoder() *decoder {
	return &decoder{params: make(map[string]*expr.Parameter)}
}

// declare handles a {name, type} declaration.
func (d *decoder) declare(v any) (*expr.Parameter, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("declaration: expected map, got %T", v)
	}
	name, err := str(m, "name")
	if err != nil {
		return nil, err
	}
	typeName, err := str(m, "type")
	if err != nil {
		return nil, err
	}
	typ, err := ParseType(typeName)
	if err != nil {
		return nil, err
	}
	if p, ok := d.params[name]; ok {
		if p.Type() != typ {
			return nil, fmt.Errorf("%s redeclared as %s, was %s", name, typeName, TypeName(p.Type()))
		}
		return p, nil
	}
	p := expr.Param(name, typ)
	d.params[name] = p
	return p, nil
}

func (d *decoder) declareList(v any) ([]*expr.Parameter, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected declaration list, got %T", v)
	}
	out := make([]*expr.Parameter, len(list))
	for i, item := range list {
		p, err := d.declare(item)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (d *decoder) lookup(v any) (*expr.Parameter, error) {
	name, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("parameter reference: expected name, got %T", v)
	}
	p, ok := d.params[name]
	if !ok {
		return nil, fmt.Errorf("undeclared parameter %q", name)
	}
	return p, nil
}

// node decodes a single-key map {kind: body}.
func (d *decoder) node(v any) (expr.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("node: expected map, got %T", v)
	}
	keys := sortedKeys(m)
	if len(keys) != 1 {
		return nil, fmt.Errorf("node: expected exactly one kind, got %v", keys)
	}
	kind := keys[0]

	n, err := d.decodeKind(kind, m[kind])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return n, nil
}

func (d *decoder) decodeKind(kind string, body any) (expr.Node, error) {
	switch kind {
	case "const":
		return constant(body)

	case "param":
		return d.lookup(body)

	case "throw":
		value, err := d.node(body)
		if err != nil {
			return nil, err
		}
		return expr.NewThrow(value), nil

	case "vars":
		list, ok := body.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list of names, got %T", body)
		}
		vars := make([]*expr.Parameter, len(list))
		for i, name := range list {
			p, err := d.lookup(name)
			if err != nil {
				return nil, err
			}
			vars[i] = p
		}
		return expr.Vars(vars...), nil
	}

	m, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", body)
	}
	switch kind {
	case "lambda":
		return d.lambda(m)
	case "block":
		return d.block(m)
	case "binary":
		return d.binary(m)
	case "assign":
		target, err := d.child(m, "target")
		if err != nil {
			return nil, err
		}
		value, err := d.child(m, "value")
		if err != nil {
			return nil, err
		}
		return expr.NewAssign(target, value), nil
	case "if":
		return d.conditional(m)
	case "try":
		return d.try(m)
	case "slot":
		return d.slot(m)
	case "invoke":
		return d.invoke(m)
	}
	return nil, fmt.Errorf("unknown node kind")
}

func (d *decoder) child(m map[string]any, key string) (expr.Node, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("missing %s", key)
	}
	n, err := d.node(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (d *decoder) optChild(m map[string]any, key string) (expr.Node, error) {
	if m[key] == nil {
		return nil, nil
	}
	return d.child(m, key)
}

func (d *decoder) lambda(m map[string]any) (*expr.Lambda, error) {
	params, err := d.declareList(m["params"])
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	body, err := d.child(m, "body")
	if err != nil {
		return nil, err
	}
	name, _ := m["name"].(string)
	if m["result"] == nil {
		return expr.NewAction(name, body, params...), nil
	}
	result, err := typeOf(m, "result")
	if err != nil {
		return nil, err
	}
	return expr.NewLambda(name, result, body, params...), nil
}

func (d *decoder) block(m map[string]any) (*expr.Block, error) {
	vars, err := d.declareList(m["vars"])
	if err != nil {
		return nil, fmt.Errorf("vars: %w", err)
	}
	list, ok := m["body"].([]any)
	if !ok {
		return nil, fmt.Errorf("body: expected list, got %T", m["body"])
	}
	body := make([]expr.Node, len(list))
	for i, item := range list {
		if body[i], err = d.node(item); err != nil {
			return nil, fmt.Errorf("body %d: %w", i, err)
		}
	}
	return expr.NewBlock(vars, body...), nil
}

func (d *decoder) binary(m map[string]any) (*expr.Binary, error) {
	sym, err := str(m, "op")
	if err != nil {
		return nil, err
	}
	op, ok := expr.ParseOp(sym)
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", sym)
	}
	left, err := d.child(m, "left")
	if err != nil {
		return nil, err
	}
	right, err := d.child(m, "right")
	if err != nil {
		return nil, err
	}
	return expr.NewBinary(op, left, right), nil
}

func (d *decoder) conditional(m map[string]any) (*expr.Conditional, error) {
	test, err := d.child(m, "test")
	if err != nil {
		return nil, err
	}
	then, err := d.child(m, "then")
	if err != nil {
		return nil, err
	}
	els, err := d.optChild(m, "else")
	if err != nil {
		return nil, err
	}
	return expr.If(test, then, els), nil
}

func (d *decoder) try(m map[string]any) (*expr.Try, error) {
	body, err := d.child(m, "body")
	if err != nil {
		return nil, err
	}
	finally, err := d.optChild(m, "finally")
	if err != nil {
		return nil, err
	}
	var handlers []*expr.Catch
	if raw, ok := m["catch"]; ok {
		cm, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("catch: expected map, got %T", raw)
		}
		var v *expr.Parameter
		if cm["var"] != nil {
			if v, err = d.declare(cm["var"]); err != nil {
				return nil, fmt.Errorf("catch: %w", err)
			}
		}
		h, err := d.child(cm, "body")
		if err != nil {
			return nil, fmt.Errorf("catch: %w", err)
		}
		handlers = append(handlers, expr.NewCatch(v, h))
	}
	return expr.NewTry(body, finally, handlers...), nil
}

func (d *decoder) slot(m map[string]any) (*expr.Slot, error) {
	rec, err := d.child(m, "record")
	if err != nil {
		return nil, err
	}
	index, err := toInt(m["index"])
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	typ, err := typeOf(m, "type")
	if err != nil {
		return nil, err
	}
	return expr.SlotOf(typ, rec, index), nil
}

func (d *decoder) invoke(m map[string]any) (*expr.Invoke, error) {
	target, err := d.child(m, "target")
	if err != nil {
		return nil, err
	}
	typ := expr.AnyType
	if m["type"] != nil {
		if typ, err = typeOf(m, "type"); err != nil {
			return nil, err
		}
	}
	var args []expr.Node
	if raw, ok := m["args"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("args: expected list, got %T", raw)
		}
		for i, item := range list {
			a, err := d.node(item)
			if err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			args = append(args, a)
		}
	}
	return expr.NewInvoke(typ, target, args...), nil
}

// constant decodes {const: 5} or {const: {type: float, value: 5}}.
func constant(body any) (*expr.Constant, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return expr.Const(normalize(body)), nil
	}
	typ, err := typeOf(m, "type")
	if err != nil {
		return nil, err
	}
	v, err := convert(typ, m["value"])
	if err != nil {
		return nil, err
	}
	return expr.ConstOf(typ, v), nil
}

// normalize maps decoded scalars to the types trees compute with. Whole
// floats become ints: protobuf documents carry every number as a double.
func normalize(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int(x)
		}
	}
	return v
}

// convert coerces a decoded value to typ.
func convert(typ reflect.Type, v any) (any, error) {
	switch typ {
	case expr.IntType:
		return toInt(v)
	case expr.FloatType:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
	case expr.StringType:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case expr.BoolType:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case expr.AnyType:
		return normalize(v), nil
	default:
		if v == nil {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %s", v, v, TypeName(typ))
}

func toInt(v any) (int, error) {
	switch x := normalize(v).(type) {
	case int:
		return x, nil
	case string:
		return strconv.Atoi(x)
	}
	return 0, fmt.Errorf("expected integer, got %v", v)
}

func str(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", key, m[key])
	}
	return s, nil
}

func typeOf(m map[string]any, key string) (reflect.Type, error) {
	name, err := str(m, key)
	if err != nil {
		return nil, err
	}
	return ParseType(name)
}

// ParseArgs converts command-line strings to the given parameter types.
func ParseArgs(params []reflect.Type, args []string) ([]any, error) {
	if len(args) != len(params) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(params), len(args))
	}
	out := make([]any, len(args))
	for i, s := range args {
		v, err := parseScalar(params[i], s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// ConvertArgs coerces decoded values (YAML, protobuf or JSON scalars) to the
// given parameter types. A string passed for a non-string parameter is
// parsed the way ParseArgs parses it.
func ConvertArgs(params []reflect.Type, values []any) ([]any, error) {
	if len(values) != len(params) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(params), len(values))
	}
	out := make([]any, len(values))
	for i, v := range values {
		var err error
		if s, ok := v.(string); ok && params[i] != expr.StringType {
			out[i], err = parseScalar(params[i], s)
		} else {
			out[i], err = convert(params[i], v)
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	return out, nil
}

func parseScalar(typ reflect.Type, s string) (any, error) {
	switch typ {
	case expr.IntType:
		return strconv.Atoi(s)
	case expr.FloatType:
		return strconv.ParseFloat(s, 64)
	case expr.BoolType:
		return strconv.ParseBool(s)
	case expr.StringType, expr.AnyType:
		return s, nil
	}
	return nil, fmt.Errorf("cannot pass %s on the command line", TypeName(typ))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
