package volink

import (
	"sync"
	"time"
)

// Default engine tuning. The read timeout leaves the controller a
// generous window for slow coding-level answers.
const (
	DefaultReadTimeout  = 2 * time.Second
	DefaultMaxAttempts  = 3
	DefaultInitRetries  = 10
	DefaultResyncWindow = 16
)

// Device drives one Optolink link. It owns the transport exclusively and
// runs one transaction at a time; for several physical links use one
// Device each. The registry is read-only and may be shared.
type Device struct {
	transport Transport
	registry  *Registry

	// ReadTimeout bounds every transport read of one attempt.
	ReadTimeout time.Duration
	// MaxAttempts is the retry budget per transaction.
	MaxAttempts int
	// InitRetries bounds the wake sequence handshake.
	InitRetries int
	// ResyncWindow bounds how many stale leading bytes are discarded
	// while scanning for a frame start.
	ResyncWindow int

	cmdLock     sync.Mutex
	initialized bool
}

// NewDevice wires a transport and a command registry into a device with
// default tuning. A nil registry falls back to the built-in WO1C set.
func NewDevice(t Transport, r *Registry) *Device {
	if r == nil {
		r = DefaultRegistry()
	}
	return &Device{
		transport:    t,
		registry:     r,
		ReadTimeout:  DefaultReadTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		InitRetries:  DefaultInitRetries,
		ResyncWindow: DefaultResyncWindow,
	}
}

// Registry returns the command registry the device resolves names in.
func (d *Device) Registry() *Registry { return d.registry }

// Close closes the underlying transport. A transaction in flight fails
// with a transport error on its next operation.
func (d *Device) Close() error { return d.transport.Close() }

// VRead reads the named parameter and returns its decoded value.
func (d *Device) VRead(name string) (interface{}, error) {
	cmd, err := d.registry.Resolve(name)
	if err != nil {
		return nil, &CommandError{Name: name, Err: err}
	}
	if err := d.registry.CheckAccess(cmd, Read); err != nil {
		return nil, &CommandError{Name: name, Err: err}
	}
	payload, err := d.transact(cmd, Read, nil)
	if err != nil {
		return nil, err
	}
	v, err := cmd.Type.Decode(payload)
	if err != nil {
		return nil, &CommandError{Name: name, Err: err}
	}
	return v, nil
}

// VWrite encodes value and writes it to the named parameter. Encoding
// failures surface immediately, they are caller errors that resending
// can not fix.
func (d *Device) VWrite(name string, value interface{}) error {
	cmd, err := d.registry.Resolve(name)
	if err != nil {
		return &CommandError{Name: name, Err: err}
	}
	if err := d.registry.CheckAccess(cmd, Write); err != nil {
		return &CommandError{Name: name, Err: err}
	}
	args, err := cmd.Type.Encode(value)
	if err != nil {
		return &CommandError{Name: name, Err: err}
	}
	if _, err := d.transact(cmd, Write, args); err != nil {
		return err
	}
	return nil
}
