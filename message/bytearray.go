// Package message implements the wire format of the messaging core: a
// self-describing composite frame that bundles any number of independent
// messages into one encoded unit, in both a textual and a binary form,
// with lossless round-trip.
package message

import "fmt"

// EmptyByteArray is the distinguished zero-length buffer. Decoders return
// it instead of allocating.
var EmptyByteArray = ByteArray{data: []byte{}}

// ByteArray is an immutable view over a byte sequence plus its logical
// size. The size may be smaller than the backing storage so that an
// over-allocated buffer can be wrapped without copying. Once constructed
// a ByteArray is treated as a value; holders may share it freely but must
// never mutate the backing bytes.
type ByteArray struct {
	data []byte
	size int
}

// NewByteArray wraps data with an explicit logical size.
// Fails with ErrInvalidArgument when size is negative or exceeds len(data).
func NewByteArray(data []byte, size int) (ByteArray, error) {
	if size < 0 || size > len(data) {
		return ByteArray{}, fmt.Errorf("%w: size %d out of range [0, %d]", ErrInvalidArgument, size, len(data))
	}
	return ByteArray{data: data, size: size}, nil
}

// WrapBytes wraps a byte slice whose logical size equals its length.
func WrapBytes(data []byte) ByteArray {
	return ByteArray{data: data, size: len(data)}
}

// Size returns the logical size in bytes.
func (a ByteArray) Size() int {
	return a.size
}

// Bytes returns the first Size bytes of the backing storage.
// The returned slice is read-only; callers must not modify it.
func (a ByteArray) Bytes() []byte {
	return a.data[:a.size]
}
