// Package hardware wires a ShiftTransport to a host's SPI port and GPIO
// pins through periph.io. The data stream rides on SPI MOSI and clock; the
// three control lines are plain GPIO outputs.
package hardware

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/sema/opl2/pkg/opl2"
)

// Config names the SPI port and GPIO pins the sound board is wired to.
// Empty names select the host's first SPI port; pin names follow the host's
// GPIO registry (e.g. "GPIO16" on a Raspberry Pi). A zero Speed runs the
// shift register at 1 MHz.
type Config struct {
	SPIPort          string
	AddressSelectPin string
	LatchPin         string
	ResetPin         string
	Speed            physic.Frequency
}

// Open initializes the host drivers, claims the configured port and pins,
// and returns a transport ready for a device. The returned closer releases
// the SPI port.
func Open(cfg Config) (*opl2.ShiftTransport, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, errors.Wrap(err, "initializing host drivers")
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening SPI port %q", cfg.SPIPort)
	}

	speed := cfg.Speed
	if speed == 0 {
		speed = physic.MegaHertz
	}

	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, errors.Wrap(err, "configuring SPI port")
	}

	addressSelect, err := pin(cfg.AddressSelectPin)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	latch, err := pin(cfg.LatchPin)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	reset, err := pin(cfg.ResetPin)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	transport, err := opl2.NewShiftTransport(spiWriter{conn: conn}, addressSelect, latch, reset)
	if err != nil {
		port.Close()
		return nil, nil, err
	}

	return transport, port.Close, nil
}

func pin(name string) (outputPin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return outputPin{}, errors.Errorf("no GPIO pin named %q", name)
	}

	return outputPin{pin: p}, nil
}

// spiWriter pushes bytes to the shift register over SPI, writes only.
type spiWriter struct {
	conn spi.Conn
}

func (w spiWriter) Write(p []byte) (int, error) {
	if err := w.conn.Tx(p, nil); err != nil {
		return 0, err
	}

	return len(p), nil
}

// outputPin adapts a periph GPIO pin to the transport's control line
// interface.
type outputPin struct {
	pin gpio.PinOut
}

func (o outputPin) Set(high bool) error {
	return o.pin.Out(gpio.Level(high))
}
