package opl2

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Minimum hold and settle times from the YM3812 timing diagrams, rounded up
// to whole microseconds.
const (
	latchHold     = 1 * time.Microsecond
	addressSettle = 4 * time.Microsecond
	dataSettle    = 23 * time.Microsecond
	resetHold     = 1 * time.Millisecond
)

// registerSpace is the number of byte addresses the chip decodes (0x00-0xFF).
const registerSpace = 256

// Transport moves register bytes to the chip and answers reads from a local
// shadow image. The chip has no electrical read path, so Read reports the
// last written values, never confirmed hardware state.
type Transport interface {
	// Write stores len(data) bytes in the shadow image starting at addr and
	// pushes each byte to the chip at its own address (addr, addr+1, ...).
	Write(addr uint8, data []byte) error

	// Read returns n bytes of the shadow image starting at addr.
	Read(addr uint8, n int) ([]byte, error)

	// Reset forces the chip and the shadow image back to all zeroes.
	Reset() error
}

// OutputPin is a single digital output line.
type OutputPin interface {
	Set(high bool) error
}

// Delay blocks the caller for at least the given duration. Hardware setups
// use the time.Sleep default; tests substitute a recorder.
type Delay interface {
	Sleep(d time.Duration)
}

type sleepDelay struct{}

func (sleepDelay) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FaultKind identifies the part of the physical interface a Fault originated
// from.
type FaultKind int

const (
	FaultAddressSelect FaultKind = iota
	FaultLatch
	FaultReset
	FaultData
)

var faultKindNames = map[FaultKind]string{
	FaultAddressSelect: "address select line",
	FaultLatch:         "latch line",
	FaultReset:         "reset line",
	FaultData:          "data line",
}

func (k FaultKind) String() string {
	name, ok := faultKindNames[k]
	if !ok {
		return fmt.Sprintf("unknown line (%d)", int(k))
	}

	return name
}

// Fault reports a failure to drive part of the physical interface. The fault
// aborts the remainder of the write it occurred in, but the shadow image
// already holds the attempted values: it reflects intent, and with a
// write-only chip there is no way to reconcile. The only recovery is Reset.
type Fault struct {
	Kind  FaultKind
	Cause error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault: %v", f.Kind, f.Cause)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// ShiftTransport drives the chip through an external shift register: data
// bytes go out over a byte stream (typically SPI), while three dedicated
// lines steer each byte into either the chip's address or data latch.
//
// A transport has exactly one owner and is not safe for concurrent use.
type ShiftTransport struct {
	data          io.Writer
	addressSelect OutputPin
	latch         OutputPin
	reset         OutputPin
	delay         Delay

	// shadow mirrors every register byte ever written. The chip cannot be
	// read back, so this array is the sole source of truth for Read.
	shadow [registerSpace]byte
}

// ShiftTransportOption configures a ShiftTransport beyond its required
// collaborators.
type ShiftTransportOption func(*ShiftTransport)

// WithDelay replaces the default time.Sleep based delay provider.
func WithDelay(d Delay) ShiftTransportOption {
	return func(t *ShiftTransport) {
		t.delay = d
	}
}

// NewShiftTransport wires the byte stream and the three control lines into a
// transport and drives the lines to their idle levels: latch high, reset
// high, address select low. The chip is not reset; see Reset.
func NewShiftTransport(data io.Writer, addressSelect, latch, reset OutputPin, opts ...ShiftTransportOption) (*ShiftTransport, error) {
	t := &ShiftTransport{
		data:          data,
		addressSelect: addressSelect,
		latch:         latch,
		reset:         reset,
		delay:         sleepDelay{},
	}

	for _, opt := range opts {
		opt(t)
	}

	if err := t.latch.Set(true); err != nil {
		return nil, &Fault{Kind: FaultLatch, Cause: err}
	}
	if err := t.reset.Set(true); err != nil {
		return nil, &Fault{Kind: FaultReset, Cause: err}
	}
	if err := t.addressSelect.Set(false); err != nil {
		return nil, &Fault{Kind: FaultAddressSelect, Cause: err}
	}

	return t, nil
}

func (t *ShiftTransport) Write(addr uint8, data []byte) error {
	if int(addr)+len(data) > registerSpace {
		return errors.Errorf("write of %d bytes at %#02x overruns the register space", len(data), addr)
	}

	copy(t.shadow[addr:], data)

	for i, b := range data {
		if err := t.writeByte(addr+uint8(i), b); err != nil {
			return err
		}
	}

	return nil
}

func (t *ShiftTransport) Read(addr uint8, n int) ([]byte, error) {
	if int(addr)+n > registerSpace {
		return nil, errors.Errorf("read of %d bytes at %#02x overruns the register space", n, addr)
	}

	out := make([]byte, n)
	copy(out, t.shadow[addr:])
	return out, nil
}

// Reset holds the chip's reset line low long enough for a full hardware
// reset, then writes zeroes to every register so the chip and the shadow
// image agree again.
func (t *ShiftTransport) Reset() error {
	if err := t.reset.Set(false); err != nil {
		return &Fault{Kind: FaultReset, Cause: err}
	}

	t.delay.Sleep(resetHold)

	if err := t.reset.Set(true); err != nil {
		return &Fault{Kind: FaultReset, Cause: err}
	}

	t.shadow = [registerSpace]byte{}
	return t.Write(0, make([]byte, registerSpace-1))
}

// writeByte performs the two-phase latch handshake for a single register
// byte: the address byte with address select low, then the data byte with
// address select high.
func (t *ShiftTransport) writeByte(addr, value byte) error {
	if err := t.addressSelect.Set(false); err != nil {
		return &Fault{Kind: FaultAddressSelect, Cause: err}
	}
	if err := t.send(addr); err != nil {
		return err
	}
	if err := t.pulseLatch(addressSettle); err != nil {
		return err
	}

	if err := t.addressSelect.Set(true); err != nil {
		return &Fault{Kind: FaultAddressSelect, Cause: err}
	}
	if err := t.send(value); err != nil {
		return err
	}
	return t.pulseLatch(dataSettle)
}

func (t *ShiftTransport) send(b byte) error {
	if _, err := t.data.Write([]byte{b}); err != nil {
		return &Fault{Kind: FaultData, Cause: err}
	}

	return nil
}

// pulseLatch clocks the shift register's contents into the chip and then
// waits out the chip's settle time for the completed phase.
func (t *ShiftTransport) pulseLatch(settle time.Duration) error {
	if err := t.latch.Set(false); err != nil {
		return &Fault{Kind: FaultLatch, Cause: err}
	}

	t.delay.Sleep(latchHold)

	if err := t.latch.Set(true); err != nil {
		return &Fault{Kind: FaultLatch, Cause: err}
	}

	t.delay.Sleep(settle)
	return nil
}
