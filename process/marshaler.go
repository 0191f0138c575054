package process

import (
	"fmt"
	"reflect"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
)

// Marshaler converts process instances to and from their binary
// representation.
type Marshaler interface {
	// MarshalInstance returns the binary representation of inst.
	MarshalInstance(inst *Instance) (marshalkit.Packet, error)

	// UnmarshalInstance replaces the content of inst with the instance
	// described by p.
	UnmarshalInstance(p marshalkit.Packet, inst *Instance) error
}

// NewMarshaler returns a Marshaler that encodes instance snapshots as JSON
// using m.
//
// If m is nil, a marshaler that supports only the Snapshot type is used.
func NewMarshaler(m marshalkit.ValueMarshaler) Marshaler {
	if m == nil {
		var err error
		m, err = codec.NewMarshaler(
			[]reflect.Type{
				reflect.TypeOf(Snapshot{}),
			},
			[]codec.Codec{
				&json.Codec{},
			},
		)
		if err != nil {
			panic(err)
		}
	}

	return &snapshotMarshaler{m}
}

// snapshotMarshaler is the default Marshaler implementation.
type snapshotMarshaler struct {
	values marshalkit.ValueMarshaler
}

func (m *snapshotMarshaler) MarshalInstance(inst *Instance) (marshalkit.Packet, error) {
	return m.values.Marshal(inst.Snapshot())
}

func (m *snapshotMarshaler) UnmarshalInstance(p marshalkit.Packet, inst *Instance) error {
	v, err := m.values.Unmarshal(p)
	if err != nil {
		return err
	}

	switch s := v.(type) {
	case Snapshot:
		inst.Restore(s)
	case *Snapshot:
		inst.Restore(*s)
	default:
		return fmt.Errorf("unexpected process instance representation (%T)", v)
	}

	return nil
}
