package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct {
	typ      Type
	name     string
	setupErr error
}

func (f *stubFactory) Type() Type   { return f.typ }
func (f *stubFactory) Name() string { return f.name }

func (f *stubFactory) Setup(v map[string]any) (Plugin, error) {
	if f.setupErr != nil {
		return nil, f.setupErr
	}
	return v["value"], nil
}

func (f *stubFactory) Destroy(p Plugin) error { return nil }

func TestRegisterAndGet(t *testing.T) {
	Register(&stubFactory{typ: "transport", name: "stub"})

	f, err := Get("transport", "stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", f.Name())

	p, err := f.Setup(map[string]any{"value": 42})
	require.NoError(t, err)
	assert.Equal(t, 42, p)
}

func TestGet_Unregistered(t *testing.T) {
	_, err := Get("transport", "nope")
	assert.Error(t, err)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	Register(&stubFactory{typ: "transport", name: "dup"})
	assert.Panics(t, func() {
		Register(&stubFactory{typ: "transport", name: "dup"})
	})
}

func TestList(t *testing.T) {
	Register(&stubFactory{typ: "codec", name: "a"})
	Register(&stubFactory{typ: "codec", name: "b"})

	names := List("codec")
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestSetup_Error(t *testing.T) {
	boom := errors.New("bad config")
	Register(&stubFactory{typ: "transport", name: "failing", setupErr: boom})

	f, err := Get("transport", "failing")
	require.NoError(t, err)
	_, err = f.Setup(nil)
	assert.ErrorIs(t, err, boom)
}
