package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

func init() {
	registerType(TypeByteArray, "ByteArray", 'B', 0x42,
		func(encoded string) (Message, error) {
			data, err := base64.RawStdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("%w: bad base64 payload: %v", ErrMalformedEncoding, err)
			}
			return NewByteArrayMessage(WrapBytes(data)), nil
		},
		func(encoded ByteArray) (Message, error) { return NewByteArrayMessage(encoded), nil },
	)
}

// ByteArrayMessage carries a raw byte payload. Its binary encoding is the
// payload verbatim; the textual encoding is unpadded standard base64.
type ByteArrayMessage struct {
	data ByteArray
}

// NewByteArrayMessage wraps a byte array in a message.
func NewByteArrayMessage(data ByteArray) *ByteArrayMessage {
	return &ByteArrayMessage{data: data}
}

// Data returns the payload.
func (m *ByteArrayMessage) Data() ByteArray {
	return m.data
}

// Type returns TypeByteArray.
func (m *ByteArrayMessage) Type() Type {
	return TypeByteArray
}

func (m *ByteArrayMessage) String() string {
	return fmt.Sprintf("ByteArrayMessage(%d)", m.data.Size())
}

// Equal reports whether other is a ByteArrayMessage with identical bytes.
func (m *ByteArrayMessage) Equal(other Message) bool {
	o, ok := other.(*ByteArrayMessage)
	return ok && bytes.Equal(m.data.Bytes(), o.data.Bytes())
}

// EncodeString returns the unpadded base64 form of the payload.
func (m *ByteArrayMessage) EncodeString() (string, error) {
	return base64.RawStdEncoding.EncodeToString(m.data.Bytes()), nil
}

// EncodeByteArray returns the payload verbatim.
func (m *ByteArrayMessage) EncodeByteArray() (ByteArray, error) {
	return m.data, nil
}

// Close is a no-op; the payload is plain memory.
func (m *ByteArrayMessage) Close() error {
	return nil
}
