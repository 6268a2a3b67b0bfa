// Package opl2 drives an OPL2 (YM3812) FM synthesis chip sitting behind a
// shift register. The chip is write-only: the driver keeps a shadow image of
// every register and answers all reads from it.
//
// A device starts out uninitialized and must be reset into melody mode
// before use. Melody mode offers nine melodic channels; rhythm mode trades
// channels 6-8 for five fixed percussion voices. Mode switches consume the
// old handle and return a new one, so operations of the wrong mode are
// unavailable at compile time.
package opl2

import (
	"fmt"

	"github.com/pkg/errors"
)

// Melodic channel counts per mode. Rhythm mode reserves channels 6-8 for the
// percussion voices.
const (
	MelodyChannels = 9
	RhythmChannels = 6
)

// channelOperators maps each channel to its pair of operator indices into
// the operator register banks. Slot 0 is always the modulator, slot 1 the
// carrier.
var channelOperators = [MelodyChannels][2]int{
	{0, 3}, {1, 4}, {2, 5},
	{8, 11}, {9, 12}, {10, 13},
	{16, 19}, {17, 20}, {18, 21},
}

// Fixed chip bindings of the percussion voices. The slot picks which of the
// channel's two operators a single-operator voice drives.
const (
	bassDrumChannel  = 6
	snareDrumChannel = 7
	snareDrumSlot    = 1
	tomTomChannel    = 8
	tomTomSlot       = 0
	cymbalChannel    = 8
	cymbalSlot       = 1
	hiHatChannel     = 7
	hiHatSlot        = 0
)

// Envelope bytes forced onto channels 6-8's operators when
// WithPercussionEnvelopeReset is enabled: instant attack, no decay, sustain
// at full level, instant release.
const (
	percussionAttackDecay    = 0xF0
	percussionSustainRelease = 0x0F
)

type mode int

const (
	modeUninitialized mode = iota
	modeMelody
	modeRhythm
)

// ErrStaleDevice is returned when a handle is used after Initialize or a
// mode switch has consumed it. The operation performs no register writes.
var ErrStaleDevice = errors.New("device handle used after it was consumed by a mode switch")

// InvalidChannelError reports a channel outside the active mode's melodic
// range. The operation performs no register writes.
type InvalidChannelError struct {
	Channel  int
	Channels int
}

func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("channel %d out of range: the mode has %d melodic channels", e.Channel, e.Channels)
}

// device carries the state shared by all handles. The mode and generation
// fields implement the consume-on-conversion convention: a handle is valid
// only while its generation matches the device's.
type device struct {
	rf  registerFile
	m   mode
	gen int

	resetPercussionEnvelopes bool
}

func (d *device) guard(want mode, gen int) error {
	if d.gen != gen || d.m != want {
		return ErrStaleDevice
	}

	return nil
}

// Option configures a device at construction time.
type Option func(*device)

// WithPercussionEnvelopeReset forces channels 6-8's operator envelopes to a
// percussive profile every time rhythm mode is entered. Off by default; the
// voice setup calls install complete envelopes anyway.
func WithPercussionEnvelopeReset() Option {
	return func(d *device) {
		d.resetPercussionEnvelopes = true
	}
}

// Device is the handle for a chip that has not been reset yet. It performs
// no hardware access until Initialize.
type Device struct {
	d   *device
	gen int
}

// New wraps a transport in an uninitialized device handle.
func New(t Transport, opts ...Option) *Device {
	d := &device{rf: registerFile{transport: t}}
	for _, opt := range opts {
		opt(d)
	}

	return &Device{d: d}
}

// Initialize resets the chip and hands out the melody-mode handle. The reset
// zeroes every register on the chip and in the shadow image. On a transport
// fault the device stays uninitialized and usable.
func (v *Device) Initialize() (*Melody, error) {
	if err := v.d.guard(modeUninitialized, v.gen); err != nil {
		return nil, err
	}

	if err := v.d.rf.transport.Reset(); err != nil {
		return nil, err
	}

	v.d.m = modeMelody
	v.d.gen++
	return &Melody{d: v.d, gen: v.d.gen}, nil
}

// Melody is the device handle while all nine channels are melodic.
type Melody struct {
	d   *device
	gen int
}

// SetupMelodyInstrument applies a timbre to a channel: the modulator's five
// bytes, the synthesis byte, and the carrier's five bytes.
func (m *Melody) SetupMelodyInstrument(channel int, inst MelodyInstrument) error {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return err
	}

	return m.d.setupMelodyInstrument(MelodyChannels, channel, inst)
}

// StartChannel sounds a note on a channel: the frequency number's low byte
// first, then the high bits, block, and key-on together in a single write.
func (m *Melody) StartChannel(channel int, note Note) error {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return err
	}

	return m.d.startChannel(MelodyChannels, channel, note)
}

// StopChannel clears the channel's key-on bit. The frequency fields keep
// their values.
func (m *Melody) StopChannel(channel int) error {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return err
	}

	return m.d.stopChannel(MelodyChannels, channel)
}

// EnableWaveformControl makes the chip honor operator waveform settings.
// After a reset it ignores them.
func (m *Melody) EnableWaveformControl(on bool) error {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return err
	}

	return m.d.rf.modify(regTest, fieldWaveformSelect.bit(on))
}

// SetNoteSelect picks the keyboard split point used for envelope key
// scaling.
func (m *Melody) SetNoteSelect(on bool) error {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return err
	}

	return m.d.rf.modify(regNoteSelect, fieldNoteSelect.bit(on))
}

// SetDeepTremolo raises the tremolo depth from 1dB to 4.8dB for all
// operators with tremolo enabled.
func (m *Melody) SetDeepTremolo(on bool) error {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return err
	}

	return m.d.rf.modify(regRhythm, fieldDeepTremolo.bit(on))
}

// SetDeepVibrato raises the vibrato depth from 7 to 14 cent for all
// operators with vibrato enabled.
func (m *Melody) SetDeepVibrato(on bool) error {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return err
	}

	return m.d.rf.modify(regRhythm, fieldDeepVibrato.bit(on))
}

// EnterRhythmMode consumes the handle and turns channels 6-8 into the five
// percussion voices. Any note still sounding on those channels is keyed off
// first. On error the conversion did not happen and the melody handle stays
// valid.
func (m *Melody) EnterRhythmMode() (*Rhythm, error) {
	if err := m.d.guard(modeMelody, m.gen); err != nil {
		return nil, err
	}

	for ch := RhythmChannels; ch < MelodyChannels; ch++ {
		if err := m.d.rf.modifyIndex(regChannelKeyOn, ch, fieldKeyOn.with(0)); err != nil {
			return nil, err
		}
	}

	if m.d.resetPercussionEnvelopes {
		for ch := RhythmChannels; ch < MelodyChannels; ch++ {
			for slot := 0; slot < 2; slot++ {
				op := channelOperators[ch][slot]
				if err := m.d.rf.writeByte(regOperatorAttackDecay, op, percussionAttackDecay); err != nil {
					return nil, err
				}
				if err := m.d.rf.writeByte(regOperatorSustainRelease, op, percussionSustainRelease); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := m.d.rf.modify(regRhythm, fieldRhythmMode.with(1)); err != nil {
		return nil, err
	}

	m.d.m = modeRhythm
	m.d.gen++
	return &Rhythm{d: m.d, gen: m.d.gen}, nil
}

// Rhythm is the device handle while channels 6-8 act as percussion voices.
// Channels 0-5 stay melodic.
type Rhythm struct {
	d   *device
	gen int
}

// SetupMelodyInstrument applies a timbre to one of the six melodic channels.
func (r *Rhythm) SetupMelodyInstrument(channel int, inst MelodyInstrument) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.setupMelodyInstrument(RhythmChannels, channel, inst)
}

// StartChannel sounds a note on one of the six melodic channels.
func (r *Rhythm) StartChannel(channel int, note Note) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.startChannel(RhythmChannels, channel, note)
}

// StopChannel clears the channel's key-on bit. The frequency fields keep
// their values.
func (r *Rhythm) StopChannel(channel int) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.stopChannel(RhythmChannels, channel)
}

// EnableWaveformControl makes the chip honor operator waveform settings.
func (r *Rhythm) EnableWaveformControl(on bool) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.rf.modify(regTest, fieldWaveformSelect.bit(on))
}

// SetNoteSelect picks the keyboard split point used for envelope key
// scaling. In rhythm mode it also affects how the hi-hat and cymbal derive
// their pitch.
func (r *Rhythm) SetNoteSelect(on bool) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.rf.modify(regNoteSelect, fieldNoteSelect.bit(on))
}

// SetDeepTremolo raises the tremolo depth from 1dB to 4.8dB for all
// operators with tremolo enabled.
func (r *Rhythm) SetDeepTremolo(on bool) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.rf.modify(regRhythm, fieldDeepTremolo.bit(on))
}

// SetDeepVibrato raises the vibrato depth from 7 to 14 cent for all
// operators with vibrato enabled.
func (r *Rhythm) SetDeepVibrato(on bool) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.rf.modify(regRhythm, fieldDeepVibrato.bit(on))
}

// EnterMelodyMode consumes the handle and returns channels 6-8 to melodic
// use. Their operator and frequency registers keep whatever the percussion
// voices left behind: apply an instrument before sounding them again.
func (r *Rhythm) EnterMelodyMode() (*Melody, error) {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return nil, err
	}

	if err := r.d.rf.modify(regRhythm, fieldRhythmMode.with(0)); err != nil {
		return nil, err
	}

	r.d.m = modeMelody
	r.d.gen++
	return &Melody{d: r.d, gen: r.d.gen}, nil
}

// SetBassDrum keys the bass drum voice on or off.
func (r *Rhythm) SetBassDrum(on bool) error {
	return r.setVoice(fieldBassDrum, on)
}

// SetSnareDrum keys the snare drum voice on or off.
func (r *Rhythm) SetSnareDrum(on bool) error {
	return r.setVoice(fieldSnareDrum, on)
}

// SetTomTom keys the tom-tom voice on or off.
func (r *Rhythm) SetTomTom(on bool) error {
	return r.setVoice(fieldTomTom, on)
}

// SetCymbal keys the cymbal voice on or off.
func (r *Rhythm) SetCymbal(on bool) error {
	return r.setVoice(fieldCymbal, on)
}

// SetHiHat keys the hi-hat voice on or off.
func (r *Rhythm) SetHiHat(on bool) error {
	return r.setVoice(fieldHiHat, on)
}

// setVoice flips a single key bit in the rhythm register, leaving the other
// voices' bits alone.
func (r *Rhythm) setVoice(f bitField, on bool) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.rf.modify(regRhythm, f.bit(on))
}

// SetupBassDrum applies a bass drum timbre to the voice's fixed binding,
// channel 6's operator pair and synthesis register.
func (r *Rhythm) SetupBassDrum(drum BassDrum) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.applyInstrument(bassDrumChannel, MelodyInstrument(drum))
}

// SetupSnareDrum applies a snare timbre to the voice's fixed operator.
func (r *Rhythm) SetupSnareDrum(drum SnareDrum) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.applyOperator(snareDrumChannel, snareDrumSlot, drum.Operator)
}

// SetupTomTom applies a tom-tom timbre to the voice's fixed operator.
func (r *Rhythm) SetupTomTom(drum TomTom) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.applyOperator(tomTomChannel, tomTomSlot, drum.Operator)
}

// SetupCymbal applies a cymbal timbre to the voice's fixed operator.
func (r *Rhythm) SetupCymbal(drum Cymbal) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.applyOperator(cymbalChannel, cymbalSlot, drum.Operator)
}

// SetupHiHat applies a hi-hat timbre to the voice's fixed operator.
func (r *Rhythm) SetupHiHat(drum HiHat) error {
	if err := r.d.guard(modeRhythm, r.gen); err != nil {
		return err
	}

	return r.d.applyOperator(hiHatChannel, hiHatSlot, drum.Operator)
}

func (d *device) checkChannel(channels, channel int) error {
	if channel < 0 || channel >= channels {
		return &InvalidChannelError{Channel: channel, Channels: channels}
	}

	return nil
}

func (d *device) setupMelodyInstrument(channels, channel int, inst MelodyInstrument) error {
	if err := d.checkChannel(channels, channel); err != nil {
		return err
	}

	return d.applyInstrument(channel, inst)
}

func (d *device) startChannel(channels, channel int, note Note) error {
	if err := d.checkChannel(channels, channel); err != nil {
		return err
	}

	fnum, block, err := note.frequency()
	if err != nil {
		return err
	}

	if err := d.rf.writeByte(regChannelFrequencyLow, channel, byte(fnum)); err != nil {
		return err
	}

	// Key-on, block, and the high frequency bits share a byte, so the note
	// starts atomically with its pitch in place.
	return d.rf.writeIndex(regChannelKeyOn, channel,
		fieldKeyOn.with(1),
		fieldBlock.with(block),
		fieldFrequencyHigh.with(byte(fnum>>8)),
	)
}

func (d *device) stopChannel(channels, channel int) error {
	if err := d.checkChannel(channels, channel); err != nil {
		return err
	}

	return d.rf.modifyIndex(regChannelKeyOn, channel, fieldKeyOn.with(0))
}

// applyInstrument writes a full timbre to a channel in register address
// order: modulator bytes, synthesis byte, carrier bytes.
func (d *device) applyInstrument(channel int, inst MelodyInstrument) error {
	if err := d.applyOperator(channel, 0, inst.Modulator); err != nil {
		return err
	}

	if err := d.rf.writeByte(regChannelSynthesis, channel, inst.Synthesis); err != nil {
		return err
	}

	return d.applyOperator(channel, 1, inst.Carrier)
}

// applyOperator writes one operator's five settings bytes to the operator
// index the channel and slot map to.
func (d *device) applyOperator(channel, slot int, op OperatorSettings) error {
	idx := channelOperators[channel][slot]

	if err := d.rf.writeByte(regOperatorFlags, idx, op.Flags); err != nil {
		return err
	}
	if err := d.rf.writeByte(regOperatorLevel, idx, op.Level); err != nil {
		return err
	}
	if err := d.rf.writeByte(regOperatorAttackDecay, idx, op.AttackDecay); err != nil {
		return err
	}
	if err := d.rf.writeByte(regOperatorSustainRelease, idx, op.SustainRelease); err != nil {
		return err
	}

	return d.rf.writeByte(regOperatorWaveform, idx, op.Waveform)
}
