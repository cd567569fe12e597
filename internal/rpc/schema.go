// Package rpc serves registered delegates over gRPC. The service schema is
// the embedded engine.proto, parsed at run time; requests and responses are
// dynamic messages built from it.
package rpc

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
)

// ServiceName is the fully qualified name of the engine service.
const ServiceName = "thunkjit.Engine"

const schemaFile = "thunkjit/engine.proto"

//go:embed engine.proto
var schemaSource string

type schema struct {
	file     *desc.FileDescriptor
	service  *desc.ServiceDescriptor
	value    *desc.MessageDescriptor
	delegate *desc.MessageDescriptor
}

var loadSchema = sync.OnceValues(func() (*schema, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{schemaFile: schemaSource}),
	}
	fds, err := parser.ParseFiles(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}
	fd := fds[0]
	s := &schema{
		file:     fd,
		service:  fd.FindService(ServiceName),
		value:    fd.FindMessage("thunkjit.Value"),
		delegate: fd.FindMessage("thunkjit.DelegateInfo"),
	}
	if s.service == nil || s.value == nil || s.delegate == nil {
		return nil, fmt.Errorf("%s: incomplete engine schema", schemaFile)
	}
	return s, nil
})

// method returns the descriptor of the named method.
func (s *schema) method(name string) (*desc.MethodDescriptor, error) {
	md := s.service.FindMethodByName(name)
	if md == nil {
		return nil, fmt.Errorf("method %s not found in %s", name, ServiceName)
	}
	return md, nil
}

// Value kinds
const (
	kindNil    = "nil"
	kindInt    = "int"
	kindFloat  = "float"
	kindString = "string"
	kindBool   = "bool"
)

// encodeValue builds a Value message. Values without a scalar form travel
// as their string rendering.
func (s *schema) encodeValue(v any) (*dynamic.Message, error) {
	msg := dynamic.NewMessage(s.value)
	var kind, field string
	var payload any
	switch x := v.(type) {
	case nil:
		kind = kindNil
	case int:
		kind, field, payload = kindInt, "int_value", int64(x)
	case int64:
		kind, field, payload = kindInt, "int_value", x
	case float64:
		kind, field, payload = kindFloat, "float_value", x
	case string:
		kind, field, payload = kindString, "string_value", x
	case bool:
		kind, field, payload = kindBool, "bool_value", x
	default:
		kind, field, payload = kindString, "string_value", fmt.Sprint(x)
	}
	if err := msg.TrySetFieldByName("kind", kind); err != nil {
		return nil, err
	}
	if field != "" {
		if err := msg.TrySetFieldByName(field, payload); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// decodeValue is the inverse of encodeValue. Integers come back as int.
func decodeValue(msg *dynamic.Message) (any, error) {
	kind, _ := msg.GetFieldByName("kind").(string)
	switch kind {
	case kindNil, "":
		return nil, nil
	case kindInt:
		n, _ := msg.GetFieldByName("int_value").(int64)
		return int(n), nil
	case kindFloat:
		return msg.GetFieldByName("float_value"), nil
	case kindString:
		return msg.GetFieldByName("string_value"), nil
	case kindBool:
		return msg.GetFieldByName("bool_value"), nil
	}
	return nil, fmt.Errorf("unknown value kind %q", kind)
}

// messages converts a repeated message field.
func messages(v any) ([]*dynamic.Message, error) {
	items, _ := v.([]any)
	out := make([]*dynamic.Message, len(items))
	for i, item := range items {
		msg, ok := item.(*dynamic.Message)
		if !ok {
			return nil, fmt.Errorf("element %d: unexpected %T", i, item)
		}
		out[i] = msg
	}
	return out, nil
}
