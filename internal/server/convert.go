package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// structToRequest decodes a Struct message into a JSON-tagged request value.
func structToRequest(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return inputError(fmt.Sprintf("invalid request: %v", err))
	}
	if err := json.Unmarshal(b, v); err != nil {
		return inputError(fmt.Sprintf("invalid request: %v", err))
	}
	return nil
}

// responseToStruct encodes a JSON-tagged response value as a Struct message.
func responseToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
