package opl2

import "fmt"

// OperatorSettings holds the five register bytes describing one FM operator,
// in register address order. The bytes are applied verbatim; the accessor
// methods decode the individual fields.
type OperatorSettings struct {
	Flags          byte // tremolo, vibrato, sustain, key scaling, multiple (0x20 bank)
	Level          byte // key scale level and total level (0x40 bank)
	AttackDecay    byte // attack and decay rates (0x60 bank)
	SustainRelease byte // sustain level and release rate (0x80 bank)
	Waveform       byte // waveform select (0xE0 bank)
}

func operatorFromBytes(b []byte) OperatorSettings {
	return OperatorSettings{
		Flags:          b[0],
		Level:          b[1],
		AttackDecay:    b[2],
		SustainRelease: b[3],
		Waveform:       b[4],
	}
}

// Tremolo reports whether the operator's amplitude is modulated.
func (o OperatorSettings) Tremolo() bool {
	return fieldTremolo.extract(o.Flags) == 1
}

// Vibrato reports whether the operator's frequency is modulated.
func (o OperatorSettings) Vibrato() bool {
	return fieldVibrato.extract(o.Flags) == 1
}

// Sustaining reports whether the envelope holds at the sustain level until
// key-off instead of releasing immediately after decay.
func (o OperatorSettings) Sustaining() bool {
	return fieldSustaining.extract(o.Flags) == 1
}

// KeyScaling reports whether the envelope speeds up with pitch.
func (o OperatorSettings) KeyScaling() bool {
	return fieldKSR.extract(o.Flags) == 1
}

// Multiple returns the operator's frequency multiple (0-15).
func (o OperatorSettings) Multiple() uint8 {
	return fieldMultiple.extract(o.Flags)
}

// ScalingLevel returns the key scale level (0-3).
func (o OperatorSettings) ScalingLevel() uint8 {
	return fieldScalingLevel.extract(o.Level)
}

// TotalLevel returns the operator's attenuation (0-63, 0 is loudest).
func (o OperatorSettings) TotalLevel() uint8 {
	return fieldTotalLevel.extract(o.Level)
}

// Attack returns the attack rate (0-15, 15 is instant).
func (o OperatorSettings) Attack() uint8 {
	return fieldAttack.extract(o.AttackDecay)
}

// Decay returns the decay rate (0-15).
func (o OperatorSettings) Decay() uint8 {
	return fieldDecay.extract(o.AttackDecay)
}

// SustainLevel returns the sustain attenuation (0-15, 0 is loudest).
func (o OperatorSettings) SustainLevel() uint8 {
	return fieldSustainLevel.extract(o.SustainRelease)
}

// Release returns the release rate (0-15, 15 is instant).
func (o OperatorSettings) Release() uint8 {
	return fieldRelease.extract(o.SustainRelease)
}

// WaveformSelect returns the operator's waveform (0 sine, 1 half sine,
// 2 absolute sine, 3 quarter sine). Takes effect only while waveform
// control is enabled on the device.
func (o OperatorSettings) WaveformSelect() uint8 {
	return fieldWaveform.extract(o.Waveform)
}

func (o OperatorSettings) String() string {
	return fmt.Sprintf("mult=%d level=%d adsr=%X%X%X%X wave=%d",
		o.Multiple(), o.TotalLevel(),
		o.Attack(), o.Decay(), o.SustainLevel(), o.Release(),
		o.WaveformSelect())
}

// MelodyInstrument is a complete melodic timbre: two operators plus the
// channel synthesis byte, independent of the channel it is later applied to.
type MelodyInstrument struct {
	Modulator OperatorSettings
	Synthesis byte // feedback and connection (0xC0 bank)
	Carrier   OperatorSettings
}

// MelodyInstrumentFromBytes decodes the canonical 11-byte form: the
// modulator's five bytes, the synthesis byte, then the carrier's five bytes,
// in register address order.
func MelodyInstrumentFromBytes(b [11]byte) MelodyInstrument {
	return MelodyInstrument{
		Modulator: operatorFromBytes(b[0:5]),
		Synthesis: b[5],
		Carrier:   operatorFromBytes(b[6:11]),
	}
}

// Feedback returns the modulator's self-feedback strength (0-7).
func (m MelodyInstrument) Feedback() uint8 {
	return fieldFeedback.extract(m.Synthesis)
}

// Additive reports whether the two operators are mixed instead of the
// modulator driving the carrier.
func (m MelodyInstrument) Additive() bool {
	return fieldAdditive.extract(m.Synthesis) == 1
}

func (m MelodyInstrument) String() string {
	connection := "fm"
	if m.Additive() {
		connection = "additive"
	}

	return fmt.Sprintf("fb=%d %s mod[%s] car[%s]", m.Feedback(), connection, m.Modulator, m.Carrier)
}

// BassDrum is the two-operator percussion voice fixed to channel 6. Its byte
// form matches a melodic instrument's.
type BassDrum MelodyInstrument

// BassDrumFromBytes decodes the canonical 11-byte form.
func BassDrumFromBytes(b [11]byte) BassDrum {
	return BassDrum(MelodyInstrumentFromBytes(b))
}

func (d BassDrum) String() string {
	return MelodyInstrument(d).String()
}

// SnareDrum is the single-operator percussion voice fixed to channel 7's
// carrier.
type SnareDrum struct {
	Operator OperatorSettings
}

// SnareDrumFromBytes decodes the canonical 5-byte form.
func SnareDrumFromBytes(b [5]byte) SnareDrum {
	return SnareDrum{Operator: operatorFromBytes(b[:])}
}

func (d SnareDrum) String() string {
	return d.Operator.String()
}

// TomTom is the single-operator percussion voice fixed to channel 8's
// modulator.
type TomTom struct {
	Operator OperatorSettings
}

// TomTomFromBytes decodes the canonical 5-byte form.
func TomTomFromBytes(b [5]byte) TomTom {
	return TomTom{Operator: operatorFromBytes(b[:])}
}

func (d TomTom) String() string {
	return d.Operator.String()
}

// Cymbal is the single-operator percussion voice fixed to channel 8's
// carrier.
type Cymbal struct {
	Operator OperatorSettings
}

// CymbalFromBytes decodes the canonical 5-byte form.
func CymbalFromBytes(b [5]byte) Cymbal {
	return Cymbal{Operator: operatorFromBytes(b[:])}
}

func (d Cymbal) String() string {
	return d.Operator.String()
}

// HiHat is the single-operator percussion voice fixed to channel 7's
// modulator.
type HiHat struct {
	Operator OperatorSettings
}

// HiHatFromBytes decodes the canonical 5-byte form.
func HiHatFromBytes(b [5]byte) HiHat {
	return HiHat{Operator: operatorFromBytes(b[:])}
}

func (d HiHat) String() string {
	return d.Operator.String()
}
