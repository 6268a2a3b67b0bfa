package opl2

// Built-in instrument presets in canonical byte form. The byte values come
// from classic OPL2 patch programming and stay fixed: changing them changes
// how the presets sound.

// Melodic presets.
var (
	ElectricPiano1 = MelodyInstrumentFromBytes([11]byte{
		0x01, 0x4F, 0xF1, 0x50, 0x00, 0x06, 0x01, 0x04, 0xD2, 0x7C, 0x00,
	})
	Guitar1 = MelodyInstrumentFromBytes([11]byte{
		0x01, 0x11, 0xF2, 0x1F, 0x00, 0x0A, 0x01, 0x00, 0xF5, 0x88, 0x00,
	})
	Strings1 = MelodyInstrumentFromBytes([11]byte{
		0xB1, 0x8B, 0x71, 0x11, 0x00, 0x06, 0x61, 0x40, 0x42, 0x15, 0x01,
	})
)

// Percussion presets.
var (
	BassDrum1 = BassDrumFromBytes([11]byte{
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0B, 0xA8, 0x4C, 0x00,
	})
	Xylophone2 = BassDrumFromBytes([11]byte{
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2E, 0x00, 0xFF, 0x0F, 0x00,
	})

	Snare1 = SnareDrumFromBytes([5]byte{
		0x0C, 0x00, 0xF8, 0xB5, 0x00,
	})
	RockSnare = SnareDrumFromBytes([5]byte{
		0x0C, 0x00, 0xC7, 0xB4, 0x00,
	})
	MilitaryDrum = SnareDrumFromBytes([5]byte{
		0x0C, 0x00, 0xC8, 0xB6, 0x01,
	})

	Tom1 = TomTomFromBytes([5]byte{
		0x04, 0x00, 0xF7, 0xB5, 0x00,
	})
	Tom2 = TomTomFromBytes([5]byte{
		0x02, 0x00, 0xC8, 0x97, 0x00,
	})

	Cymbal1 = CymbalFromBytes([5]byte{
		0x01, 0x00, 0xF5, 0xB5, 0x00,
	})
	Laser = CymbalFromBytes([5]byte{
		0xE6, 0x00, 0x25, 0xB5, 0x00,
	})

	HiHat1 = HiHatFromBytes([5]byte{
		0x01, 0x00, 0xF7, 0xB5, 0x00,
	})
	HiHat2 = HiHatFromBytes([5]byte{
		0x01, 0x03, 0xDA, 0x18, 0x00,
	})
)
