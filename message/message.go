package message

import "fmt"

// Message is the capability every payload must implement to interoperate
// with the composite framing. A Message is immutable after construction;
// both encodings of the same instance must be byte-for-byte reproducible.
type Message interface {
	// Type returns the registry tag identifying this payload variant.
	Type() Type

	// EncodeString encodes the payload into its textual wire form.
	EncodeString() (string, error)

	// EncodeByteArray encodes the payload into its binary wire form.
	EncodeByteArray() (ByteArray, error)

	// Equal reports structural equality with another message.
	// Order-sensitive for composites.
	Equal(other Message) bool

	// Close releases any resources held by the payload. A message must
	// not be used after Close; doing so is a programming error.
	Close() error
}

// Type is the discriminant of a message variant. The set of types is
// closed and known at build time; each type maps to exactly one printable
// character in the textual encoding and one byte in the binary encoding.
type Type int

// Registered message types.
const (
	// TypeByteArray is a raw byte payload.
	TypeByteArray Type = iota
	// TypeString is a UTF-8 text payload.
	TypeString
	// TypeMulti is the composite payload bundling an ordered sequence of
	// messages.
	TypeMulti
	// TypeProto is a protobuf payload carried as an any-wrapped message.
	TypeProto
)

// typeInfo holds the bidirectional tag mappings and the decoder pair for
// one registered variant.
type typeInfo struct {
	name            string
	char            byte
	bin             byte
	decodeString    func(string) (Message, error)
	decodeByteArray func(ByteArray) (Message, error)
}

// The registry is populated during package init and read-only afterwards,
// so unsynchronized concurrent reads are safe.
var (
	typeInfos  = make(map[Type]*typeInfo)
	charToType = make(map[byte]Type)
	binToType  = make(map[byte]Type)
)

// registerType wires one variant into the registry. Both tag mappings must
// be injective; a collision is a programming error and panics at init.
func registerType(t Type, name string, char, bin byte,
	decodeString func(string) (Message, error),
	decodeByteArray func(ByteArray) (Message, error)) {
	if _, ok := typeInfos[t]; ok {
		panic(fmt.Sprintf("message: type %q already registered", name))
	}
	if prev, ok := charToType[char]; ok {
		panic(fmt.Sprintf("message: char %q already mapped to %s", char, prev))
	}
	if prev, ok := binToType[bin]; ok {
		panic(fmt.Sprintf("message: byte %#x already mapped to %s", bin, prev))
	}
	typeInfos[t] = &typeInfo{
		name:            name,
		char:            char,
		bin:             bin,
		decodeString:    decodeString,
		decodeByteArray: decodeByteArray,
	}
	charToType[char] = t
	binToType[bin] = t
}

// TypeFromChar resolves the type tagged by a textual-encoding character.
// Fails with ErrUnknownType when the character is not registered.
func TypeFromChar(c byte) (Type, error) {
	t, ok := charToType[c]
	if !ok {
		return 0, fmt.Errorf("%w: char %q", ErrUnknownType, c)
	}
	return t, nil
}

// TypeFromByte resolves the type tagged by a binary-encoding byte.
// Fails with ErrUnknownType when the byte is not registered.
func TypeFromByte(b byte) (Type, error) {
	t, ok := binToType[b]
	if !ok {
		return 0, fmt.Errorf("%w: byte %#x", ErrUnknownType, b)
	}
	return t, nil
}

func (t Type) info() *typeInfo {
	info, ok := typeInfos[t]
	if !ok {
		panic(fmt.Sprintf("message: unregistered type %d", int(t)))
	}
	return info
}

// Char returns the single character tagging this type in the textual form.
func (t Type) Char() byte {
	return t.info().char
}

// Byte returns the byte tagging this type in the binary form.
func (t Type) Byte() byte {
	return t.info().bin
}

// String returns the variant name for logging and diagnostics.
func (t Type) String() string {
	if info, ok := typeInfos[t]; ok {
		return info.name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// DecodeString reconstructs a payload of this variant from its textual
// encoding. Decoder failures propagate unwrapped.
func (t Type) DecodeString(encoded string) (Message, error) {
	return t.info().decodeString(encoded)
}

// DecodeByteArray reconstructs a payload of this variant from its binary
// encoding. Decoder failures propagate unwrapped.
func (t Type) DecodeByteArray(encoded ByteArray) (Message, error) {
	return t.info().decodeByteArray(encoded)
}
