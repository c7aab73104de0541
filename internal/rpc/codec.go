package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc/encoding and selected per-call via
// grpc.CallContentSubtype. The controller's wire codec is explicitly out
// of this repository's scope (see spec Non-goals); JSON is the simplest
// codec that satisfies grpc's encoding.Codec interface without generating
// protobuf descriptors this repository does not own.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
