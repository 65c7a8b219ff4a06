package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// delimiter introduces each element frame and terminates its length
// field in the textual composite form. Payloads may legally contain it;
// length-prefixing, not delimiter scanning, is what keeps the format
// unambiguous.
const delimiter = ','

// EmptyMultiMessage is the distinguished zero-element composite. Decoding
// an empty encoding yields this exact instance; it encodes to the empty
// string and the zero-length buffer.
var EmptyMultiMessage = &MultiMessage{}

func init() {
	registerType(TypeMulti, "Multi", 'M', 0x4D,
		func(encoded string) (Message, error) { return DecodeMultiString(encoded) },
		func(encoded ByteArray) (Message, error) { return DecodeMultiByteArray(encoded) },
	)
}

// MultiMessage bundles an ordered sequence of messages into one framed
// unit. Order is semantically significant: it survives both encodings and
// contributes to equality. A MultiMessage is immutable after construction.
type MultiMessage struct {
	messages []Message
}

// NewMultiMessage builds a composite over the given sequence. The slice is
// retained, not copied; the caller must not mutate it afterwards (mutation
// during encode is detected and surfaced as ErrConcurrentMutation).
// A nil or empty sequence yields EmptyMultiMessage.
func NewMultiMessage(messages []Message) *MultiMessage {
	if len(messages) == 0 {
		return EmptyMultiMessage
	}
	return &MultiMessage{messages: messages}
}

// Messages returns the underlying sequence. Read-only.
func (m *MultiMessage) Messages() []Message {
	return m.messages
}

// Type returns TypeMulti.
func (m *MultiMessage) Type() Type {
	return TypeMulti
}

func (m *MultiMessage) String() string {
	return fmt.Sprintf("MultiMessage(%d)", len(m.messages))
}

// Equal reports order-sensitive structural equality with another message.
func (m *MultiMessage) Equal(other Message) bool {
	o, ok := other.(*MultiMessage)
	if !ok {
		return false
	}
	if m == o {
		return true
	}
	if len(m.messages) != len(o.messages) {
		return false
	}
	for i, msg := range m.messages {
		if !msg.Equal(o.messages[i]) {
			return false
		}
	}
	return true
}

// EncodeString encodes the sequence into a single textual frame: the
// decimal element count, then per element the delimiter, its tag
// character, the decimal length of its own textual encoding, the
// delimiter and the encoding itself ("2,X2,ab,Y1,c" for two elements).
// Zero elements encode to the empty string.
func (m *MultiMessage) EncodeString() (string, error) {
	snapshot := m.messages
	size := len(snapshot)
	if size == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(strconv.Itoa(size))
	count := 0
	for _, msg := range snapshot {
		count++
		str, err := msg.EncodeString()
		if err != nil {
			return "", err
		}
		sb.WriteByte(delimiter)
		sb.WriteByte(msg.Type().Char())
		sb.WriteString(strconv.Itoa(len(str)))
		sb.WriteByte(delimiter)
		sb.WriteString(str)
	}
	if count != len(m.messages) {
		return "", fmt.Errorf("%w: count %d != %d", ErrConcurrentMutation, count, len(m.messages))
	}
	return sb.String(), nil
}

// EncodeByteArray encodes the sequence into a single binary frame: a
// big-endian 4-byte element count, then per element one tag byte, a
// big-endian 4-byte payload length and the raw payload bytes. Zero
// elements encode to the zero-length buffer; the count field is elided.
func (m *MultiMessage) EncodeByteArray() (ByteArray, error) {
	snapshot := m.messages
	size := len(snapshot)
	if size == 0 {
		return EmptyByteArray, nil
	}

	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(size))
	buf.Write(hdr[:])
	count := 0
	for _, msg := range snapshot {
		count++
		sub, err := msg.EncodeByteArray()
		if err != nil {
			return ByteArray{}, err
		}
		buf.WriteByte(msg.Type().Byte())
		binary.BigEndian.PutUint32(hdr[:], uint32(sub.Size()))
		buf.Write(hdr[:])
		buf.Write(sub.Bytes())
	}
	if count != len(m.messages) {
		return ByteArray{}, fmt.Errorf("%w: count %d != %d", ErrConcurrentMutation, count, len(m.messages))
	}
	return WrapBytes(buf.Bytes()), nil
}

// Close closes every held message in order. Each element is closed exactly
// once even when earlier elements fail; the joined error is returned.
func (m *MultiMessage) Close() error {
	var errs []error
	for _, msg := range m.messages {
		if err := msg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DecodeMultiString decodes a textual composite frame. The empty string
// yields EmptyMultiMessage. Structural violations fail with
// ErrMalformedEncoding; an unregistered tag character fails with
// ErrUnknownType; element decoder failures propagate unwrapped.
func DecodeMultiString(encoded string) (*MultiMessage, error) {
	if encoded == "" {
		return EmptyMultiMessage, nil
	}

	pos := strings.IndexByte(encoded, delimiter)
	if pos == -1 {
		return nil, fmt.Errorf("%w: count delimiter not found", ErrMalformedEncoding)
	}
	size, err := parseCount(encoded[:pos])
	if err != nil {
		return nil, err
	}

	// The smallest element frame is four characters (delimiter, tag, "0",
	// delimiter); reject counts the input cannot possibly hold before
	// allocating.
	if size > (len(encoded)-pos)/4 {
		return nil, fmt.Errorf("%w: count %d exceeds input capacity", ErrMalformedEncoding, size)
	}

	decoded := make([]Message, 0, size)
	for i := 0; i < size; i++ {
		if pos >= len(encoded) || encoded[pos] != delimiter {
			return nil, fmt.Errorf("%w: element %d delimiter not found", ErrMalformedEncoding, i)
		}
		pos++
		if pos >= len(encoded) {
			return nil, fmt.Errorf("%w: truncated at element %d", ErrMalformedEncoding, i)
		}
		t, err := TypeFromChar(encoded[pos])
		if err != nil {
			return nil, err
		}
		pos++
		rel := strings.IndexByte(encoded[pos:], delimiter)
		if rel == -1 {
			return nil, fmt.Errorf("%w: length delimiter not found at element %d", ErrMalformedEncoding, i)
		}
		length, err := parseCount(encoded[pos : pos+rel])
		if err != nil {
			return nil, err
		}
		start := pos + rel + 1
		end := start + length
		if end > len(encoded) {
			return nil, fmt.Errorf("%w: payload truncated at element %d", ErrMalformedEncoding, i)
		}
		msg, err := t.DecodeString(encoded[start:end])
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, msg)
		pos = end
	}
	if pos != len(encoded) {
		return nil, fmt.Errorf("%w: %d trailing characters", ErrMalformedEncoding, len(encoded)-pos)
	}
	return NewMultiMessage(decoded), nil
}

// DecodeMultiByteArray decodes a binary composite frame. A zero-length
// buffer yields EmptyMultiMessage directly, bypassing the frame parser.
// The total bytes consumed must equal the buffer size exactly.
func DecodeMultiByteArray(encoded ByteArray) (*MultiMessage, error) {
	if encoded.Size() == 0 {
		return EmptyMultiMessage, nil
	}

	data := encoded.Bytes()
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: buffer too small for count", ErrMalformedEncoding)
	}
	size := int(binary.BigEndian.Uint32(data))
	pos := 4

	// Each element frame needs at least 5 bytes; reject counts the buffer
	// cannot possibly hold before allocating.
	if size > (len(data)-pos)/5 {
		return nil, fmt.Errorf("%w: count %d exceeds buffer capacity", ErrMalformedEncoding, size)
	}

	decoded := make([]Message, 0, size)
	for i := 0; i < size; i++ {
		if pos+5 > len(data) {
			return nil, fmt.Errorf("%w: truncated frame header at element %d", ErrMalformedEncoding, i)
		}
		t, err := TypeFromByte(data[pos])
		if err != nil {
			return nil, err
		}
		pos++
		length := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if pos+length > len(data) {
			return nil, fmt.Errorf("%w: payload truncated at element %d", ErrMalformedEncoding, i)
		}
		msg, err := t.DecodeByteArray(WrapBytes(data[pos : pos+length]))
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, msg)
		pos += length
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEncoding, len(data)-pos)
	}
	return NewMultiMessage(decoded), nil
}

// parseCount parses a non-negative decimal field of the textual form.
func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad decimal field %q", ErrMalformedEncoding, s)
	}
	return n, nil
}
