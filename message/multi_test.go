package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Single-tag test variants used to pin the exact wire format. Their
// textual encoding is the payload verbatim, like StringMessage.
const (
	testTypeX = Type(100)
	testTypeY = Type(101)
)

func init() {
	for _, reg := range []struct {
		typ  Type
		name string
		char byte
		bin  byte
	}{
		{testTypeX, "TestX", 'X', 0x58},
		{testTypeY, "TestY", 'Y', 0x59},
	} {
		typ := reg.typ
		registerType(typ, reg.name, reg.char, reg.bin,
			func(encoded string) (Message, error) {
				return &tagMessage{typ: typ, payload: encoded}, nil
			},
			func(encoded ByteArray) (Message, error) {
				return &tagMessage{typ: typ, payload: string(encoded.Bytes())}, nil
			},
		)
	}
}

type tagMessage struct {
	typ     Type
	payload string
	closed  int
	onClose func()
}

func (m *tagMessage) Type() Type { return m.typ }

func (m *tagMessage) EncodeString() (string, error) { return m.payload, nil }

func (m *tagMessage) EncodeByteArray() (ByteArray, error) {
	return WrapBytes([]byte(m.payload)), nil
}

func (m *tagMessage) Equal(other Message) bool {
	o, ok := other.(*tagMessage)
	return ok && m.typ == o.typ && m.payload == o.payload
}

func (m *tagMessage) Close() error {
	m.closed++
	if m.onClose != nil {
		m.onClose()
	}
	return nil
}

func TestMultiMessage_EncodeStringLiteral(t *testing.T) {
	mm := NewMultiMessage([]Message{
		&tagMessage{typ: testTypeX, payload: "ab"},
		&tagMessage{typ: testTypeY, payload: "c"},
	})

	encoded, err := mm.EncodeString()
	require.NoError(t, err)
	assert.Equal(t, "2,X2,ab,Y1,c", encoded)

	decoded, err := DecodeMultiString("2,X2,ab,Y1,c")
	require.NoError(t, err)
	assert.True(t, mm.Equal(decoded))
}

func TestMultiMessage_RoundTripString(t *testing.T) {
	mm := NewMultiMessage([]Message{
		NewStringMessage("hello, world"), // payload containing the delimiter
		NewByteArrayMessage(WrapBytes([]byte{0, 1, 2, 0xFF})),
		NewStringMessage(""),
	})

	encoded, err := mm.EncodeString()
	require.NoError(t, err)

	decoded, err := DecodeMultiString(encoded)
	require.NoError(t, err)
	assert.True(t, mm.Equal(decoded))

	// Round-trip must be byte-for-byte reproducible.
	again, err := decoded.EncodeString()
	require.NoError(t, err)
	assert.Equal(t, encoded, again)
}

func TestMultiMessage_RoundTripByteArray(t *testing.T) {
	mm := NewMultiMessage([]Message{
		NewByteArrayMessage(WrapBytes([]byte("payload"))),
		NewStringMessage("text"),
	})

	encoded, err := mm.EncodeByteArray()
	require.NoError(t, err)

	decoded, err := DecodeMultiByteArray(encoded)
	require.NoError(t, err)
	assert.True(t, mm.Equal(decoded))

	again, err := decoded.EncodeByteArray()
	require.NoError(t, err)
	assert.Equal(t, encoded.Bytes(), again.Bytes())
}

func TestMultiMessage_Nesting(t *testing.T) {
	inner := NewMultiMessage([]Message{
		NewStringMessage("deep"),
		NewByteArrayMessage(WrapBytes([]byte{9, 9})),
	})
	outer := NewMultiMessage([]Message{
		NewStringMessage("head"),
		inner,
		EmptyMultiMessage,
	})

	text, err := outer.EncodeString()
	require.NoError(t, err)
	fromText, err := DecodeMultiString(text)
	require.NoError(t, err)
	assert.True(t, outer.Equal(fromText))

	bin, err := outer.EncodeByteArray()
	require.NoError(t, err)
	fromBin, err := DecodeMultiByteArray(bin)
	require.NoError(t, err)
	assert.True(t, outer.Equal(fromBin))
}

func TestMultiMessage_EmptySingleton(t *testing.T) {
	encoded, err := EmptyMultiMessage.EncodeString()
	require.NoError(t, err)
	assert.Equal(t, "", encoded)

	bin, err := EmptyMultiMessage.EncodeByteArray()
	require.NoError(t, err)
	assert.Equal(t, 0, bin.Size())

	// Decoding the empty encoding yields the same instance, not a copy.
	fromText, err := DecodeMultiString("")
	require.NoError(t, err)
	assert.Same(t, EmptyMultiMessage, fromText)

	fromBin, err := DecodeMultiByteArray(EmptyByteArray)
	require.NoError(t, err)
	assert.Same(t, EmptyMultiMessage, fromBin)

	// The constructor reuses the singleton for zero elements too.
	assert.Same(t, EmptyMultiMessage, NewMultiMessage(nil))
	assert.Same(t, EmptyMultiMessage, NewMultiMessage([]Message{}))
}

func TestDecodeMultiString_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		encoded string
	}{
		{"no count delimiter", "2"},
		{"bad count", "x,"},
		{"negative count", "-1,"},
		{"count exceeds input", "99,X2,ab"},
		{"count larger than elements", "3,X2,ab,Y1,c"},
		{"count smaller than elements", "1,X2,ab,Y1,c"},
		{"missing element delimiter", "2,X2,abY1,c"},
		{"missing length delimiter", "1,X2ab"},
		{"bad length", "1,Xq,ab"},
		{"payload truncated", "1,X5,ab"},
		{"trailing garbage", "1,X2,abzzz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMultiString(tc.encoded)
			assert.True(t, errors.Is(err, ErrMalformedEncoding), "got %v", err)
		})
	}
}

func TestDecodeMultiString_UnknownTag(t *testing.T) {
	_, err := DecodeMultiString("1,?2,ab")
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestDecodeMultiByteArray_Malformed(t *testing.T) {
	valid, err := NewMultiMessage([]Message{
		&tagMessage{typ: testTypeX, payload: "ab"},
	}).EncodeByteArray()
	require.NoError(t, err)

	cases := []struct {
		name    string
		encoded []byte
	}{
		{"buffer too small for count", []byte{0, 0}},
		{"count exceeds buffer", []byte{0, 0, 0, 9, 'X'}},
		{"truncated frame header", []byte{0, 0, 0, 1, 0x58, 0, 0}},
		{"payload truncated", []byte{0, 0, 0, 1, 0x58, 0, 0, 0, 5, 'a', 'b'}},
		{"trailing bytes", append(append([]byte{}, valid.Bytes()...), 0xEE)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMultiByteArray(WrapBytes(tc.encoded))
			assert.True(t, errors.Is(err, ErrMalformedEncoding), "got %v", err)
		})
	}
}

func TestDecodeMultiByteArray_UnknownTag(t *testing.T) {
	_, err := DecodeMultiByteArray(WrapBytes([]byte{0, 0, 0, 1, 0xFF, 0, 0, 0, 0}))
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestMultiMessage_ConcurrentMutation(t *testing.T) {
	// An element whose encode shrinks the backing sequence mid-iteration
	// must trip the snapshot-and-verify check in both encodings.
	saboteur := &encodeHookMessage{inner: &tagMessage{typ: testTypeX, payload: "a"}}
	elements := []Message{saboteur, &tagMessage{typ: testTypeY, payload: "b"}}
	mm := NewMultiMessage(elements)
	saboteur.hook = func() { mm.messages = mm.messages[:1] }

	_, err := mm.EncodeString()
	assert.True(t, errors.Is(err, ErrConcurrentMutation), "got %v", err)

	mm.messages = elements
	_, err = mm.EncodeByteArray()
	assert.True(t, errors.Is(err, ErrConcurrentMutation), "got %v", err)
}

// encodeHookMessage runs a hook whenever it is encoded.
type encodeHookMessage struct {
	inner Message
	hook  func()
}

func (m *encodeHookMessage) Type() Type { return m.inner.Type() }

func (m *encodeHookMessage) EncodeString() (string, error) {
	m.hook()
	return m.inner.EncodeString()
}

func (m *encodeHookMessage) EncodeByteArray() (ByteArray, error) {
	m.hook()
	return m.inner.EncodeByteArray()
}

func (m *encodeHookMessage) Equal(other Message) bool { return m.inner.Equal(other) }

func (m *encodeHookMessage) Close() error { return m.inner.Close() }

func TestMultiMessage_CloseCascades(t *testing.T) {
	var order []int
	first := &tagMessage{typ: testTypeX, payload: "1"}
	first.onClose = func() { order = append(order, 1) }
	second := &tagMessage{typ: testTypeY, payload: "2"}
	second.onClose = func() { order = append(order, 2) }

	mm := NewMultiMessage([]Message{first, second})
	require.NoError(t, mm.Close())
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, second.closed)
}

func TestMultiMessage_Equal(t *testing.T) {
	a := NewMultiMessage([]Message{NewStringMessage("x"), NewStringMessage("y")})
	b := NewMultiMessage([]Message{NewStringMessage("x"), NewStringMessage("y")})
	reordered := NewMultiMessage([]Message{NewStringMessage("y"), NewStringMessage("x")})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(reordered)) // order contributes to equality
	assert.False(t, a.Equal(EmptyMultiMessage))
	assert.False(t, a.Equal(NewStringMessage("x")))
}
