// Package rpccodec registers a JSON-over-gRPC codec. The exploitation and
// AI probe gateways are external services reached over gRPC for
// transport and connection-management reasons, but no .proto-generated
// message types exist for them here — this codec lets grpc.ClientConn
// carry plain Go structs end to end via encoding/json instead of
// protobuf wire encoding.
package rpccodec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the codec name passed via grpc.CallContentSubtype.
const Name = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpccodec: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpccodec: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
