package tcp

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/aoindustries/ao-messaging/plugin"
	"github.com/aoindustries/ao-messaging/socket"
)

func init() {
	plugin.Register(&factory{})
}

// factory builds TCP transports through the plugin registry. Each Setup
// yields a fresh socket.Context with its transport attached; Destroy
// stops the transport and closes the context.
type factory struct{}

func (f *factory) Type() plugin.Type { return "transport" }

func (f *factory) Name() string { return "tcp" }

func (f *factory) Setup(v map[string]any) (plugin.Plugin, error) {
	cfg := &TransportCfg{
		SendChannelSize: 256,
		MaxFrameSize:    4 * 1024 * 1024,
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("tcp: decode transport config: %w", err)
	}

	t, err := NewTransport(socket.NewContext(), cfg)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (f *factory) Destroy(p plugin.Plugin) error {
	t, ok := p.(*Transport)
	if !ok {
		return fmt.Errorf("tcp: unexpected plugin instance %T", p)
	}
	if err := t.Stop(); err != nil {
		return err
	}
	return t.Context().Close()
}
