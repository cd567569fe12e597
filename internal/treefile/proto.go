package treefile

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func parseProto(data []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("protobuf parse error: %w", err)
	}
	return s.AsMap(), nil
}

// EncodeProto encodes a generic document as a google.protobuf.Struct.
func EncodeProto(raw map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(raw)
	if err != nil {
		return nil, fmt.Errorf("document cannot be encoded: %w", err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

// ConvertYAML re-encodes a YAML document in the protobuf form. The YAML
// document is decoded first so that only valid documents are converted.
func ConvertYAML(data []byte) ([]byte, error) {
	raw, err := parseYAML(data)
	if err != nil {
		return nil, err
	}
	if _, err := Decode(raw); err != nil {
		return nil, err
	}
	return EncodeProto(raw)
}
