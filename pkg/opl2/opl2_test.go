package opl2

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// newTestDevice returns an initialized melody-mode handle on recording
// fakes, with the reset traffic already dropped from the log.
func newTestDevice(t *testing.T, opts ...Option) (*Melody, *fakeWiring) {
	w := newFakeWiring(t)

	m, err := New(w.transport, opts...).Initialize()
	require.NoError(t, err)

	w.rec.clear()
	return m, w
}

func newTestRhythm(t *testing.T, opts ...Option) (*Rhythm, *fakeWiring) {
	m, w := newTestDevice(t, opts...)

	r, err := m.EnterRhythmMode()
	require.NoError(t, err)

	w.rec.clear()
	return r, w
}

func TestInitializeResetsTheChip(t *testing.T) {
	w := newFakeWiring(t)
	require.NoError(t, w.transport.Write(0xB0, []byte{0x77}))

	m, err := New(w.transport).Initialize()
	require.NoError(t, err)

	for addr := 0; addr < registerSpace; addr++ {
		require.Equal(t, byte(0), shadowByte(t, w.transport, uint8(addr)), "address %#02x not cleared", addr)
	}

	require.NoError(t, m.StartChannel(0, Note{A, 4}))
}

func TestInitializeConsumesTheDeviceHandle(t *testing.T) {
	w := newFakeWiring(t)
	dev := New(w.transport)

	_, err := dev.Initialize()
	require.NoError(t, err)

	_, err = dev.Initialize()
	require.Equal(t, ErrStaleDevice, err)
}

func TestInitializeFaultLeavesTheDeviceUsable(t *testing.T) {
	w := newFakeWiring(t)
	boom := errors.New("stuck")
	w.reset.err = boom

	dev := New(w.transport)
	_, err := dev.Initialize()
	require.Error(t, err)
	require.IsType(t, &Fault{}, err)

	w.reset.err = nil
	m, err := dev.Initialize()
	require.NoError(t, err)
	require.NoError(t, m.StartChannel(0, Note{A, 4}))
}

func TestSetupMelodyInstrumentProgramsTheOperatorPair(t *testing.T) {
	m, w := newTestDevice(t)

	require.NoError(t, m.SetupMelodyInstrument(0, ElectricPiano1))

	// eleven register writes: five modulator bytes, the synthesis byte,
	// five carrier bytes
	require.Len(t, w.rec.bytes, 2*11)

	wantShadow := map[uint8]byte{
		0x20: 0x01, 0x40: 0x4F, 0x60: 0xF1, 0x80: 0x50, 0xE0: 0x00,
		0xC0: 0x06,
		0x23: 0x01, 0x43: 0x04, 0x63: 0xD2, 0x83: 0x7C, 0xE3: 0x00,
	}
	for addr, want := range wantShadow {
		require.Equal(t, want, shadowByte(t, w.transport, addr), "address %#02x", addr)
	}

	// channel 3 maps to the second operator group
	require.NoError(t, m.SetupMelodyInstrument(3, ElectricPiano1))
	require.Equal(t, byte(0x01), shadowByte(t, w.transport, 0x28))
	require.Equal(t, byte(0x06), shadowByte(t, w.transport, 0xC3))
	require.Equal(t, byte(0xD2), shadowByte(t, w.transport, 0x6B))
}

func TestStartChannelWritesFrequencyThenKeyOn(t *testing.T) {
	m, w := newTestDevice(t)

	require.NoError(t, m.StartChannel(0, Note{A, 4}))

	require.Equal(t, []byte{0xA0, 0x41, 0xB0, 0x32}, w.rec.bytes)
}

func TestStopChannelClearsOnlyKeyOn(t *testing.T) {
	m, w := newTestDevice(t)
	require.NoError(t, m.StartChannel(0, Note{A, 4}))

	require.NoError(t, m.StopChannel(0))

	require.Equal(t, byte(0x12), shadowByte(t, w.transport, 0xB0))
	require.Equal(t, byte(0x41), shadowByte(t, w.transport, 0xA0))
}

func TestChannelOperationsRejectOutOfRangeChannels(t *testing.T) {
	m, w := newTestDevice(t)

	err := m.StartChannel(9, Note{A, 4})
	require.IsType(t, &InvalidChannelError{}, err)
	require.EqualError(t, err, "channel 9 out of range: the mode has 9 melodic channels")

	chErr := err.(*InvalidChannelError)
	require.Equal(t, 9, chErr.Channel)
	require.Equal(t, 9, chErr.Channels)

	require.IsType(t, &InvalidChannelError{}, m.StartChannel(-1, Note{A, 4}))
	require.IsType(t, &InvalidChannelError{}, m.SetupMelodyInstrument(9, ElectricPiano1))
	require.IsType(t, &InvalidChannelError{}, m.StopChannel(-1))

	// rejected operations never reach the hardware
	require.Empty(t, w.rec.bytes)
}

func TestStartChannelRejectsUnknownNotes(t *testing.T) {
	m, w := newTestDevice(t)

	err := m.StartChannel(0, Note{NoteName(12), 4})

	require.Error(t, err)
	require.Empty(t, w.rec.bytes)
}

func TestEnterRhythmModeSilencesChannelsSixThroughEight(t *testing.T) {
	m, w := newTestDevice(t)
	for ch := 6; ch <= 8; ch++ {
		require.NoError(t, m.StartChannel(ch, Note{A, 4}))
	}
	w.rec.clear()

	_, err := m.EnterRhythmMode()
	require.NoError(t, err)

	// key-off on each reclaimed channel, then the mode bit
	require.Equal(t, []byte{0xB6, 0x12, 0xB7, 0x12, 0xB8, 0x12, 0xBD, 0x20}, w.rec.bytes)
}

func TestEnterRhythmModeCanResetPercussionEnvelopes(t *testing.T) {
	m, w := newTestDevice(t, WithPercussionEnvelopeReset())

	_, err := m.EnterRhythmMode()
	require.NoError(t, err)

	for op := 16; op <= 21; op++ {
		require.Equal(t, byte(0xF0), shadowByte(t, w.transport, uint8(0x60+op)), "attack/decay of operator %d", op)
		require.Equal(t, byte(0x0F), shadowByte(t, w.transport, uint8(0x80+op)), "sustain/release of operator %d", op)
	}
}

func TestEnterRhythmModeLeavesEnvelopesAloneByDefault(t *testing.T) {
	m, w := newTestDevice(t)

	_, err := m.EnterRhythmMode()
	require.NoError(t, err)

	for op := 16; op <= 21; op++ {
		require.Equal(t, byte(0), shadowByte(t, w.transport, uint8(0x60+op)))
		require.Equal(t, byte(0), shadowByte(t, w.transport, uint8(0x80+op)))
	}
}

func TestRhythmModeLimitsMelodicChannels(t *testing.T) {
	r, w := newTestRhythm(t)

	err := r.StartChannel(6, Note{A, 4})
	require.IsType(t, &InvalidChannelError{}, err)
	require.Equal(t, 6, err.(*InvalidChannelError).Channels)

	require.IsType(t, &InvalidChannelError{}, r.SetupMelodyInstrument(8, ElectricPiano1))
	require.Empty(t, w.rec.bytes)

	require.NoError(t, r.StartChannel(5, Note{A, 4}))
	require.Equal(t, byte(0x32), shadowByte(t, w.transport, 0xB5))
}

func TestVoiceTogglesFlipSingleBits(t *testing.T) {
	r, w := newTestRhythm(t)

	steps := []struct {
		action func() error
		want   byte
	}{
		{func() error { return r.SetBassDrum(true) }, 0x30},
		{func() error { return r.SetSnareDrum(true) }, 0x38},
		{func() error { return r.SetBassDrum(false) }, 0x28},
		{func() error { return r.SetHiHat(true) }, 0x29},
		{func() error { return r.SetTomTom(true) }, 0x2D},
		{func() error { return r.SetCymbal(true) }, 0x2F},
		{func() error { return r.SetHiHat(false) }, 0x2E},
	}

	for _, step := range steps {
		require.NoError(t, step.action())
		require.Equal(t, step.want, shadowByte(t, w.transport, 0xBD))
	}
}

func TestSetupBassDrumProgramsItsFixedBinding(t *testing.T) {
	r, w := newTestRhythm(t)

	require.NoError(t, r.SetupBassDrum(BassDrum1))

	// channel 6's operator pair and synthesis register, in address order
	require.Equal(t, []byte{
		0x30, 0x00, 0x50, 0x00, 0x70, 0x00, 0x90, 0x00, 0xF0, 0x00,
		0xC6, 0x00,
		0x33, 0x00, 0x53, 0x0B, 0x73, 0xA8, 0x93, 0x4C, 0xF3, 0x00,
	}, w.rec.bytes)
}

func TestSingleOperatorDrumSetupsTargetTheirSlots(t *testing.T) {
	r, w := newTestRhythm(t)

	require.NoError(t, r.SetupSnareDrum(Snare1))
	require.Equal(t, []byte{0x34, 0x0C, 0x54, 0x00, 0x74, 0xF8, 0x94, 0xB5, 0xF4, 0x00}, w.rec.bytes)
	w.rec.clear()

	require.NoError(t, r.SetupHiHat(HiHat1))
	require.Equal(t, byte(0xF7), shadowByte(t, w.transport, 0x71))

	require.NoError(t, r.SetupTomTom(Tom1))
	require.Equal(t, byte(0x04), shadowByte(t, w.transport, 0x32))

	require.NoError(t, r.SetupCymbal(Cymbal1))
	require.Equal(t, byte(0xF5), shadowByte(t, w.transport, 0x75))

	// single-operator voices never touch the synthesis registers
	require.Equal(t, byte(0), shadowByte(t, w.transport, 0xC7))
	require.Equal(t, byte(0), shadowByte(t, w.transport, 0xC8))
}

func TestEnterMelodyModeKeepsPercussionState(t *testing.T) {
	r, w := newTestRhythm(t)
	require.NoError(t, r.SetDeepTremolo(true))
	require.NoError(t, r.SetupBassDrum(BassDrum1))
	require.NoError(t, r.SetBassDrum(true))
	require.Equal(t, byte(0xB0), shadowByte(t, w.transport, 0xBD))

	m, err := r.EnterMelodyMode()
	require.NoError(t, err)

	// only the mode bit drops; channel 6 keeps the drum's operator bytes
	// until the next instrument setup
	require.Equal(t, byte(0x90), shadowByte(t, w.transport, 0xBD))
	require.Equal(t, byte(0x0B), shadowByte(t, w.transport, 0x53))

	require.NoError(t, m.SetupMelodyInstrument(6, ElectricPiano1))
	require.Equal(t, byte(0x4F), shadowByte(t, w.transport, 0x50))
}

func TestModeSwitchesInvalidateTheOldHandles(t *testing.T) {
	m, w := newTestDevice(t)

	r, err := m.EnterRhythmMode()
	require.NoError(t, err)
	w.rec.clear()

	require.Equal(t, ErrStaleDevice, m.StartChannel(0, Note{A, 4}))
	require.Equal(t, ErrStaleDevice, m.StopChannel(0))
	_, err = m.EnterRhythmMode()
	require.Equal(t, ErrStaleDevice, err)

	m2, err := r.EnterMelodyMode()
	require.NoError(t, err)
	w.rec.clear()

	require.Equal(t, ErrStaleDevice, r.SetBassDrum(true))
	_, err = r.EnterMelodyMode()
	require.Equal(t, ErrStaleDevice, err)

	// stale handles never reach the hardware
	require.Empty(t, w.rec.bytes)

	require.NoError(t, m2.StartChannel(0, Note{A, 4}))
}

func TestTransportFaultsPropagateUnchanged(t *testing.T) {
	m, w := newTestDevice(t)
	boom := errors.New("stuck")
	w.latch.err = boom

	err := m.StartChannel(0, Note{A, 4})

	require.Error(t, err)
	require.IsType(t, &Fault{}, err)
	fault := err.(*Fault)
	require.Equal(t, FaultLatch, fault.Kind)
	require.Equal(t, boom, fault.Cause)
}

func TestGlobalTogglesSetTheirBits(t *testing.T) {
	m, w := newTestDevice(t)

	require.NoError(t, m.EnableWaveformControl(true))
	require.Equal(t, byte(0x20), shadowByte(t, w.transport, 0x01))

	require.NoError(t, m.SetNoteSelect(true))
	require.Equal(t, byte(0x40), shadowByte(t, w.transport, 0x08))

	require.NoError(t, m.SetDeepTremolo(true))
	require.NoError(t, m.SetDeepVibrato(true))
	require.Equal(t, byte(0xC0), shadowByte(t, w.transport, 0xBD))

	r, err := m.EnterRhythmMode()
	require.NoError(t, err)
	require.Equal(t, byte(0xE0), shadowByte(t, w.transport, 0xBD))

	require.NoError(t, r.SetDeepVibrato(false))
	require.Equal(t, byte(0xA0), shadowByte(t, w.transport, 0xBD))

	require.NoError(t, r.EnableWaveformControl(false))
	require.Equal(t, byte(0x00), shadowByte(t, w.transport, 0x01))

	require.NoError(t, r.SetNoteSelect(false))
	require.Equal(t, byte(0x00), shadowByte(t, w.transport, 0x08))
}
