package message

func init() {
	registerType(TypeString, "String", 'S', 0x53,
		func(encoded string) (Message, error) { return NewStringMessage(encoded), nil },
		func(encoded ByteArray) (Message, error) {
			return NewStringMessage(string(encoded.Bytes())), nil
		},
	)
}

// StringMessage carries a UTF-8 text payload. Its textual encoding is the
// text itself; its binary encoding is the UTF-8 bytes.
type StringMessage struct {
	text string
}

// NewStringMessage wraps text in a message.
func NewStringMessage(text string) *StringMessage {
	return &StringMessage{text: text}
}

// Text returns the payload.
func (m *StringMessage) Text() string {
	return m.text
}

// Type returns TypeString.
func (m *StringMessage) Type() Type {
	return TypeString
}

func (m *StringMessage) String() string {
	return m.text
}

// Equal reports whether other is a StringMessage with the same text.
func (m *StringMessage) Equal(other Message) bool {
	o, ok := other.(*StringMessage)
	return ok && m.text == o.text
}

// EncodeString returns the text verbatim.
func (m *StringMessage) EncodeString() (string, error) {
	return m.text, nil
}

// EncodeByteArray returns the UTF-8 bytes of the text.
func (m *StringMessage) EncodeByteArray() (ByteArray, error) {
	return WrapBytes([]byte(m.text)), nil
}

// Close is a no-op; a string payload holds no resources.
func (m *StringMessage) Close() error {
	return nil
}
