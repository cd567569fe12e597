// Package treefile reads expression trees from YAML or protobuf documents.
//
// A document names a lambda, the variables it captures from an enclosing
// scope, and optional default arguments:
//
//	name: addY
//	captures:
//	  - {name: y, type: int, value: 7}
//	tree:
//	  lambda:
//	    result: int
//	    params: [{name: c, type: record}, {name: x, type: int}]
//	    body: {binary: {op: "+", left: {param: y}, right: {param: x}}}
//	args: [1]
//
// The protobuf form is the same document encoded as a google.protobuf.Struct.
package treefile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/scope"
)

// Document is a decoded tree document.
type Document struct {
	Name     string
	Captures []*expr.Parameter
	Frame    *scope.CaptureFrame // nil when nothing is captured
	Closure  *closure.Record     // holds the captured values, slot i for Captures[i]
	Tree     *expr.Lambda
	Args     []any
}

// Format is the encoding of a document.
type Format int

const (
	FormatYAML Format = iota
	FormatProto
)

// FormatOf picks the format from a file name.
func FormatOf(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	if slices.ContainsFunc(config.ProtoFileExtensions, func(ext string) bool { return strings.HasSuffix(name, ext) }) {
		return FormatProto, nil
	}
	if slices.ContainsFunc(config.TreeFileExtensions, func(ext string) bool { return strings.HasSuffix(name, ext) }) {
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("%s: unrecognized tree document extension", path)
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// Parse decodes a document in the given format.
func Parse(data []byte, format Format) (*Document, error) {
	var raw map[string]any
	var err error
	switch format {
	case FormatYAML:
		raw, err = parseYAML(data)
	case FormatProto:
		raw, err = parseProto(data)
	default:
		err = fmt.Errorf("unknown format %d", format)
	}
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

func parseYAML(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("empty document")
	}
	return raw, nil
}

// Decode builds a document from its generic form.
func Decode(raw map[string]any) (*Document, error) {
	d := newDecoder()
	doc := &Document{}

	if name, ok := raw["name"]; ok {
		s, ok := name.(string)
		if !ok {
			return nil, fmt.Errorf("name: expected string, got %T", name)
		}
		doc.Name = s
	}

	cells, err := d.captures(doc, raw["captures"])
	if err != nil {
		return nil, fmt.Errorf("captures: %w", err)
	}
	if doc.Closure, err = closure.New(cells...); err != nil {
		return nil, fmt.Errorf("captures: %w", err)
	}
	if len(doc.Captures) > 0 {
		doc.Frame = scope.NewFrame(nil, doc.Captures...)
	}

	treeRaw, ok := raw["tree"]
	if !ok {
		return nil, fmt.Errorf("missing tree")
	}
	n, err := d.node(treeRaw)
	if err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	lambda, ok := n.(*expr.Lambda)
	if !ok {
		return nil, fmt.Errorf("tree: expected lambda, got %s", n.Kind())
	}
	doc.Tree = lambda
	if lambda.Name == "" {
		lambda.Name = doc.Name
	}

	if args, ok := raw["args"]; ok {
		list, ok := args.([]any)
		if !ok {
			return nil, fmt.Errorf("args: expected list, got %T", args)
		}
		for _, a := range list {
			doc.Args = append(doc.Args, normalize(a))
		}
	}
	return doc, nil
}

func (d *decoder) captures(doc *Document, v any) ([]closure.Cell, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	cells := make([]closure.Cell, 0, len(list))
	for i, item := range list {
		p, err := d.declare(item)
		if err != nil {
			return nil, fmt.Errorf("%d: %w", i, err)
		}
		m := item.(map[string]any)
		value, err := convert(p.Type(), m["value"])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		cell, err := closure.NewCellOf(p.Type(), value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		doc.Captures = append(doc.Captures, p)
		cells = append(cells, cell)
	}
	return cells, nil
}
