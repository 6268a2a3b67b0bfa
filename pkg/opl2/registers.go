package opl2

import "fmt"

// A bitField names an inclusive bit range within a register byte. Values
// written through a field are masked to the range's width, the same
// truncation the chip itself applies.
type bitField struct {
	name string
	lo   uint8
	hi   uint8
}

func (f bitField) mask() byte {
	return (0xFF >> (7 - f.hi)) & (0xFF << f.lo)
}

// insert returns current with the field's bit range replaced by v.
func (f bitField) insert(current, v byte) byte {
	return (current &^ f.mask()) | (v << f.lo & f.mask())
}

// extract returns the field's bit range of current, shifted down to bit 0.
func (f bitField) extract(current byte) byte {
	return (current & f.mask()) >> f.lo
}

func (f bitField) with(v byte) fieldValue {
	return fieldValue{field: f, value: v}
}

func (f bitField) bit(on bool) fieldValue {
	if on {
		return f.with(1)
	}
	return f.with(0)
}

// A fieldValue pairs a field with the value to store in it.
type fieldValue struct {
	field bitField
	value byte
}

// Waveform control (0x01)
//
// Bit 5    - Waveform select enable (operator waveform settings are ignored
//            while zero)
// Bits 4-0 - Test functions, keep zero
var fieldWaveformSelect = bitField{"WSE", 5, 5}

// Timer presets (0x02, 0x03)
//
// Timer 1 ticks every 80us, timer 2 every 320us, counting up from the
// preset. Overflow flags land in the unreadable status register, so the
// driver declares these for map completeness only.
var (
	fieldTimer1Preset = bitField{"PRESET", 0, 7}
	fieldTimer2Preset = bitField{"PRESET", 0, 7}
)

// Timer control (0x04)
//
// Bit 7 - IRQ reset (clears both overflow flags)
// Bit 6 - Timer 1 mask
// Bit 5 - Timer 2 mask
// Bit 1 - Timer 2 start
// Bit 0 - Timer 1 start
var (
	fieldIRQReset    = bitField{"IRQ_RESET", 7, 7}
	fieldTimer1Mask  = bitField{"TIMER1_MASK", 6, 6}
	fieldTimer2Mask  = bitField{"TIMER2_MASK", 5, 5}
	fieldTimer2Start = bitField{"TIMER2_START", 1, 1}
	fieldTimer1Start = bitField{"TIMER1_START", 0, 0}
)

// CSM / note select (0x08)
//
// Bit 7 - Composite sine-wave mode (no practical use, keep zero)
// Bit 6 - Note select, picks the keyboard split point for key scaling
var (
	fieldCSM        = bitField{"CSM", 7, 7}
	fieldNoteSelect = bitField{"NOTE_SEL", 6, 6}
)

// Operator characteristics (0x20-0x35)
//
// Bit 7    - Tremolo (amplitude vibrato)
// Bit 6    - Frequency vibrato
// Bit 5    - Sustaining envelope (hold at the sustain level until key-off)
// Bit 4    - Envelope key scaling (KSR)
// Bits 3-0 - Frequency multiple
var (
	fieldTremolo    = bitField{"TREMOLO", 7, 7}
	fieldVibrato    = bitField{"VIBRATO", 6, 6}
	fieldSustaining = bitField{"SUSTAINING", 5, 5}
	fieldKSR        = bitField{"KSR", 4, 4}
	fieldMultiple   = bitField{"MULTIPLE", 0, 3}
)

// Operator levels (0x40-0x55)
//
// Bits 7-6 - Key scale level (attenuation added as pitch rises)
// Bits 5-0 - Total level (attenuation, 0 is loudest)
var (
	fieldScalingLevel = bitField{"KSL", 6, 7}
	fieldTotalLevel   = bitField{"TOTAL_LEVEL", 0, 5}
)

// Operator attack/decay rates (0x60-0x75)
var (
	fieldAttack = bitField{"ATTACK", 4, 7}
	fieldDecay  = bitField{"DECAY", 0, 3}
)

// Operator sustain level and release rate (0x80-0x95)
var (
	fieldSustainLevel = bitField{"SUSTAIN", 4, 7}
	fieldRelease      = bitField{"RELEASE", 0, 3}
)

// Operator waveform select (0xE0-0xF5)
//
// Bits 1-0 - 0 sine, 1 half sine, 2 absolute sine, 3 quarter sine
var fieldWaveform = bitField{"WAVEFORM", 0, 1}

// Channel frequency, low byte (0xA0-0xA8)
var fieldFrequencyLow = bitField{"FREQ_LOW", 0, 7}

// Channel key-on / block / frequency high bits (0xB0-0xB8)
//
// Bit 5    - Key on
// Bits 4-2 - Block (octave)
// Bits 1-0 - Frequency number, high two bits
var (
	fieldKeyOn         = bitField{"KEY_ON", 5, 5}
	fieldBlock         = bitField{"BLOCK", 2, 4}
	fieldFrequencyHigh = bitField{"FREQ_HIGH", 0, 1}
)

// Channel synthesis (0xC0-0xC8)
//
// Bits 3-1 - Modulator feedback strength
// Bit 0    - Connection (0 frequency modulation, 1 additive)
var (
	fieldFeedback = bitField{"FEEDBACK", 1, 3}
	fieldAdditive = bitField{"ADDITIVE", 0, 0}
)

// Rhythm control (0xBD)
//
// Bit 7 - Deep tremolo (4.8dB instead of 1dB)
// Bit 6 - Deep vibrato (14 cent instead of 7 cent)
// Bit 5 - Rhythm mode (channels 6-8 become percussion voices)
// Bit 4 - Bass drum key
// Bit 3 - Snare drum key
// Bit 2 - Tom-tom key
// Bit 1 - Cymbal key
// Bit 0 - Hi-hat key
var (
	fieldDeepTremolo = bitField{"DEEP_TREMOLO", 7, 7}
	fieldDeepVibrato = bitField{"DEEP_VIBRATO", 6, 6}
	fieldRhythmMode  = bitField{"RHYTHM_MODE", 5, 5}
	fieldBassDrum    = bitField{"BASS_DRUM", 4, 4}
	fieldSnareDrum   = bitField{"SNARE_DRUM", 3, 3}
	fieldTomTom      = bitField{"TOM_TOM", 2, 2}
	fieldCymbal      = bitField{"CYMBAL", 1, 1}
	fieldHiHat       = bitField{"HI_HAT", 0, 0}
)

// A register describes one chip register: its display name, the address of
// each instance, and the fields laid out in its byte. Plain registers have a
// single address; arrayed registers have one address per operator or channel
// index. Operator banks decode 22 consecutive addresses even though four of
// them (offsets 6, 7, 14, 15) belong to no operator.
type register struct {
	name   string
	addrs  []uint8
	fields []bitField
}

func (r *register) address(idx int) (uint8, error) {
	if idx < 0 || idx >= len(r.addrs) {
		return 0, &RegisterIndexError{Register: r.name, Index: idx, Size: len(r.addrs)}
	}

	return r.addrs[idx], nil
}

// span lists the consecutive addresses from lo to hi inclusive.
func span(lo, hi uint8) []uint8 {
	out := make([]uint8, 0, int(hi)-int(lo)+1)
	for a := lo; ; a++ {
		out = append(out, a)
		if a == hi {
			break
		}
	}

	return out
}

var (
	regTest = &register{
		name:   "TEST",
		addrs:  []uint8{0x01},
		fields: []bitField{fieldWaveformSelect},
	}
	regTimer1 = &register{
		name:   "TIMER1",
		addrs:  []uint8{0x02},
		fields: []bitField{fieldTimer1Preset},
	}
	regTimer2 = &register{
		name:   "TIMER2",
		addrs:  []uint8{0x03},
		fields: []bitField{fieldTimer2Preset},
	}
	regTimerControl = &register{
		name:   "TIMER_CTRL",
		addrs:  []uint8{0x04},
		fields: []bitField{fieldIRQReset, fieldTimer1Mask, fieldTimer2Mask, fieldTimer2Start, fieldTimer1Start},
	}
	regNoteSelect = &register{
		name:   "NOTE_SEL",
		addrs:  []uint8{0x08},
		fields: []bitField{fieldCSM, fieldNoteSelect},
	}
	regOperatorFlags = &register{
		name:   "OP_FLAGS",
		addrs:  span(0x20, 0x35),
		fields: []bitField{fieldTremolo, fieldVibrato, fieldSustaining, fieldKSR, fieldMultiple},
	}
	regOperatorLevel = &register{
		name:   "OP_LEVEL",
		addrs:  span(0x40, 0x55),
		fields: []bitField{fieldScalingLevel, fieldTotalLevel},
	}
	regOperatorAttackDecay = &register{
		name:   "OP_ATTACK_DECAY",
		addrs:  span(0x60, 0x75),
		fields: []bitField{fieldAttack, fieldDecay},
	}
	regOperatorSustainRelease = &register{
		name:   "OP_SUSTAIN_RELEASE",
		addrs:  span(0x80, 0x95),
		fields: []bitField{fieldSustainLevel, fieldRelease},
	}
	regChannelFrequencyLow = &register{
		name:   "CH_FREQ_LOW",
		addrs:  span(0xA0, 0xA8),
		fields: []bitField{fieldFrequencyLow},
	}
	regChannelKeyOn = &register{
		name:   "CH_KEY_ON",
		addrs:  span(0xB0, 0xB8),
		fields: []bitField{fieldKeyOn, fieldBlock, fieldFrequencyHigh},
	}
	regRhythm = &register{
		name:  "RHYTHM",
		addrs: []uint8{0xBD},
		fields: []bitField{
			fieldDeepTremolo, fieldDeepVibrato, fieldRhythmMode,
			fieldBassDrum, fieldSnareDrum, fieldTomTom, fieldCymbal, fieldHiHat,
		},
	}
	regChannelSynthesis = &register{
		name:   "CH_SYNTHESIS",
		addrs:  span(0xC0, 0xC8),
		fields: []bitField{fieldFeedback, fieldAdditive},
	}
	regOperatorWaveform = &register{
		name:   "OP_WAVEFORM",
		addrs:  span(0xE0, 0xF5),
		fields: []bitField{fieldWaveform},
	}
)

// allRegisters lists every register in address order.
var allRegisters = []*register{
	regTest,
	regTimer1,
	regTimer2,
	regTimerControl,
	regNoteSelect,
	regOperatorFlags,
	regOperatorLevel,
	regOperatorAttackDecay,
	regOperatorSustainRelease,
	regChannelFrequencyLow,
	regChannelKeyOn,
	regRhythm,
	regChannelSynthesis,
	regOperatorWaveform,
}

// DescribeAddress names the register decoded at addr, with the instance
// index for arrayed registers (e.g. "CH_KEY_ON[3]"). Unmapped addresses
// return "unmapped". Meant for trace and debug output.
func DescribeAddress(addr uint8) string {
	for _, r := range allRegisters {
		for i, a := range r.addrs {
			if a != addr {
				continue
			}
			if len(r.addrs) == 1 {
				return r.name
			}
			return fmt.Sprintf("%s[%d]", r.name, i)
		}
	}

	return "unmapped"
}

// RegisterIndexError reports an access to an arrayed register with an index
// outside its address list. Channel validation in the device layer keeps
// public operations clear of it.
type RegisterIndexError struct {
	Register string
	Index    int
	Size     int
}

func (e *RegisterIndexError) Error() string {
	return fmt.Sprintf("index %d out of range for register %s (%d addresses)", e.Index, e.Register, e.Size)
}

// registerFile provides field-level register access on top of a Transport,
// one byte per operation. Reads come from the transport's shadow image.
type registerFile struct {
	transport Transport
}

func (rf registerFile) read(r *register) (byte, error) {
	return rf.readIndex(r, 0)
}

func (rf registerFile) readIndex(r *register, idx int) (byte, error) {
	addr, err := r.address(idx)
	if err != nil {
		return 0, err
	}

	b, err := rf.transport.Read(addr, 1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// write composes a register byte from zero and the given fields. Bits not
// covered by any field end up zero.
func (rf registerFile) write(r *register, fields ...fieldValue) error {
	return rf.writeIndex(r, 0, fields...)
}

func (rf registerFile) writeIndex(r *register, idx int, fields ...fieldValue) error {
	return rf.writeByte(r, idx, applyFields(0, fields))
}

// modify reads the current byte from the shadow image, updates the given
// fields, and writes the result back. Bits outside the fields are preserved.
func (rf registerFile) modify(r *register, fields ...fieldValue) error {
	return rf.modifyIndex(r, 0, fields...)
}

func (rf registerFile) modifyIndex(r *register, idx int, fields ...fieldValue) error {
	current, err := rf.readIndex(r, idx)
	if err != nil {
		return err
	}

	return rf.writeByte(r, idx, applyFields(current, fields))
}

func (rf registerFile) writeByte(r *register, idx int, value byte) error {
	addr, err := r.address(idx)
	if err != nil {
		return err
	}

	return rf.transport.Write(addr, []byte{value})
}

func applyFields(current byte, fields []fieldValue) byte {
	for _, fv := range fields {
		current = fv.field.insert(current, fv.value)
	}

	return current
}
