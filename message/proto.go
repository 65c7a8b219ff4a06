package message

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

func init() {
	registerType(TypeProto, "Proto", 'P', 0x50,
		func(encoded string) (Message, error) {
			data, err := base64.RawStdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("%w: bad base64 payload: %v", ErrMalformedEncoding, err)
			}
			return decodeProtoBytes(data)
		},
		func(encoded ByteArray) (Message, error) { return decodeProtoBytes(encoded.Bytes()) },
	)
}

// ProtoMessage carries an arbitrary protobuf payload wrapped in an Any, so
// the receiving side can resolve the concrete type from its registry. The
// binary encoding is the deterministic proto marshal of the Any; the
// textual encoding is that marshal in unpadded base64.
type ProtoMessage struct {
	payload *anypb.Any
}

// NewProtoMessage wraps a protobuf message. Fails when the message cannot
// be packed into an Any.
func NewProtoMessage(msg proto.Message) (*ProtoMessage, error) {
	payload, err := anypb.New(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return &ProtoMessage{payload: payload}, nil
}

func decodeProtoBytes(data []byte) (*ProtoMessage, error) {
	payload := &anypb.Any{}
	if err := proto.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return &ProtoMessage{payload: payload}, nil
}

// Unwrap resolves the concrete protobuf message carried by the payload.
func (m *ProtoMessage) Unwrap() (proto.Message, error) {
	return m.payload.UnmarshalNew()
}

// Type returns TypeProto.
func (m *ProtoMessage) Type() Type {
	return TypeProto
}

func (m *ProtoMessage) String() string {
	return fmt.Sprintf("ProtoMessage(%s)", m.payload.GetTypeUrl())
}

// Equal reports whether other is a ProtoMessage with an equal payload.
func (m *ProtoMessage) Equal(other Message) bool {
	o, ok := other.(*ProtoMessage)
	return ok && proto.Equal(m.payload, o.payload)
}

// EncodeString returns the unpadded base64 form of the binary encoding.
func (m *ProtoMessage) EncodeString() (string, error) {
	data, err := m.marshal()
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(data), nil
}

// EncodeByteArray returns the deterministic proto marshal of the payload.
func (m *ProtoMessage) EncodeByteArray() (ByteArray, error) {
	data, err := m.marshal()
	if err != nil {
		return ByteArray{}, err
	}
	return WrapBytes(data), nil
}

func (m *ProtoMessage) marshal() ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(m.payload)
}

// Close is a no-op; the payload is plain memory.
func (m *ProtoMessage) Close() error {
	return nil
}
