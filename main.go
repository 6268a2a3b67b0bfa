package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/opl2/pkg/hardware"
	"github.com/sema/opl2/pkg/opl2"
)

type playCmd struct {
	SPI        string `help:"SPI port name, empty for the first available port."`
	AddressPin string `default:"GPIO16" help:"GPIO pin driving the address select line."`
	LatchPin   string `default:"GPIO12" help:"GPIO pin driving the latch line."`
	ResetPin   string `default:"GPIO18" help:"GPIO pin driving the reset line."`
}

func (c *playCmd) Run() error {
	transport, closePort, err := hardware.Open(hardware.Config{
		SPIPort:          c.SPI,
		AddressSelectPin: c.AddressPin,
		LatchPin:         c.LatchPin,
		ResetPin:         c.ResetPin,
	})
	if err != nil {
		return err
	}
	defer closePort()

	return playDemo(transport, time.Sleep)
}

type traceCmd struct {
}

func (c *traceCmd) Run() error {
	return playDemo(newTraceTransport(), func(time.Duration) {})
}

type presetsCmd struct {
}

func (c *presetsCmd) Run() error {
	presets := []struct {
		name  string
		voice fmt.Stringer
	}{
		{"ElectricPiano1", opl2.ElectricPiano1},
		{"Guitar1", opl2.Guitar1},
		{"Strings1", opl2.Strings1},
		{"BassDrum1", opl2.BassDrum1},
		{"Xylophone2", opl2.Xylophone2},
		{"Snare1", opl2.Snare1},
		{"RockSnare", opl2.RockSnare},
		{"MilitaryDrum", opl2.MilitaryDrum},
		{"Tom1", opl2.Tom1},
		{"Tom2", opl2.Tom2},
		{"Cymbal1", opl2.Cymbal1},
		{"Laser", opl2.Laser},
		{"HiHat1", opl2.HiHat1},
		{"HiHat2", opl2.HiHat2},
	}

	for _, p := range presets {
		fmt.Printf("%-14s %s\n", p.name, p.voice)
	}

	return nil
}

// traceTransport prints every register write instead of driving hardware,
// with the same shadow semantics as the real transport.
type traceTransport struct {
	shadow [256]byte
}

func newTraceTransport() *traceTransport {
	return &traceTransport{}
}

func (t *traceTransport) Write(addr uint8, data []byte) error {
	if int(addr)+len(data) > len(t.shadow) {
		return errors.Errorf("write of %d bytes at %#02x overruns the register space", len(data), addr)
	}

	for i, b := range data {
		a := addr + uint8(i)
		fmt.Printf("%#02x <- %#02x  %s\n", a, b, opl2.DescribeAddress(a))
		t.shadow[a] = b
	}

	return nil
}

func (t *traceTransport) Read(addr uint8, n int) ([]byte, error) {
	if int(addr)+n > len(t.shadow) {
		return nil, errors.Errorf("read of %d bytes at %#02x overruns the register space", n, addr)
	}

	out := make([]byte, n)
	copy(out, t.shadow[int(addr):int(addr)+n])
	return out, nil
}

func (t *traceTransport) Reset() error {
	fmt.Println("reset")
	t.shadow = [256]byte{}
	return nil
}

// playDemo runs a short piano riff and a drum groove, exercising both chip
// modes. The wait hook keeps the trace command from actually sleeping.
func playDemo(transport opl2.Transport, wait func(time.Duration)) error {
	melody, err := opl2.New(transport).Initialize()
	if err != nil {
		return err
	}

	if err := melody.EnableWaveformControl(true); err != nil {
		return err
	}

	log.Infof("playing a short riff on the electric piano")

	if err := melody.SetupMelodyInstrument(0, opl2.ElectricPiano1); err != nil {
		return err
	}

	riff := []opl2.Note{
		{Name: opl2.A, Octave: 4},
		{Name: opl2.CSharp, Octave: 5},
		{Name: opl2.E, Octave: 5},
		{Name: opl2.A, Octave: 5},
	}

	for _, note := range riff {
		log.Infof("note %s", note)

		if err := melody.StartChannel(0, note); err != nil {
			return err
		}
		wait(300 * time.Millisecond)

		if err := melody.StopChannel(0); err != nil {
			return err
		}
		wait(50 * time.Millisecond)
	}

	log.Infof("switching to rhythm mode for a drum groove")

	rhythm, err := melody.EnterRhythmMode()
	if err != nil {
		return err
	}

	if err := rhythm.SetupBassDrum(opl2.BassDrum1); err != nil {
		return err
	}
	if err := rhythm.SetupSnareDrum(opl2.Snare1); err != nil {
		return err
	}

	for beat := 0; beat < 8; beat++ {
		voice := rhythm.SetBassDrum
		if beat%2 == 1 {
			voice = rhythm.SetSnareDrum
		}

		if err := voice(true); err != nil {
			return err
		}
		wait(150 * time.Millisecond)

		if err := voice(false); err != nil {
			return err
		}
		wait(100 * time.Millisecond)
	}

	log.Infof("done")

	return nil
}

var root struct {
	Play    playCmd    `cmd:"" help:"Play a short demo tune on the sound board."`
	Trace   traceCmd   `cmd:"" help:"Print the register writes of the demo tune without hardware."`
	Presets presetsCmd `cmd:"" help:"List the built-in instrument presets."`
}

func main() {
	cli := kong.Parse(&root)
	err := cli.Run()
	cli.FatalIfErrorf(err)
}
