package model

import (
	"encoding/binary"

	"github.com/Koromix/tytools-sub001/firmware"
)

// FromHalfKayUsage maps a HalfKay bootloader interface's HID usage value
// (within the 0xFF9C bootloader usage page) to the model it identifies,
// per class_teensy.c's identify_model_halfkay.
func FromHalfKayUsage(usage uint16) Model {
	switch usage {
	case 0x1A:
		return TeensyPP10
	case 0x1B:
		return Teensy20
	case 0x1C:
		return TeensyPP20
	case 0x1D:
		return Teensy30
	case 0x1E:
		return Teensy31
	case 0x20:
		return TeensyLC
	case 0x21:
		return Teensy32
	case 0x1F:
		return Teensy35
	case 0x22:
		return Teensy36
	case 0x23:
		return Teensy40Beta1
	case 0x24:
		return Teensy40
	default:
		return Unknown
	}
}

// FromBCDDevice maps a running Teensy's USB bcdDevice value to its model,
// per class_teensy.c's identify_model_bcd.
func FromBCDDevice(bcd uint16) Model {
	switch bcd {
	case 0x274:
		return Teensy30
	case 0x275:
		return Teensy31
	case 0x273:
		return TeensyLC
	case 0x276:
		return Teensy35
	case 0x277:
		return Teensy36
	case 0x278:
		return Teensy40Beta1
	case 0x279:
		return Teensy40
	default:
		return Unknown
	}
}

// avrMagic is a 64-bit little-endian pattern found in _reboot_Teensyduino_()
// that is specific enough to each AVR model's generated code to serve as a
// fingerprint, per teensy_identify_models.
var avrMagic = map[uint64]Model{
	0x94F8CFFF7E00940C: TeensyPP10,
	0x94F8CFFF3F00940C: Teensy20,
	0x94F8CFFFFE00940C: TeensyPP20,
}

// arm3Key packs a Teensy 3.x/LC firmware's initial stack pointer and
// vector-table length into one comparison key, matching the switch in
// teensy_identify_models.
func arm3Key(stackAddr, endVectorAddr uint32) uint64 {
	return uint64(stackAddr)<<32 | uint64(endVectorAddr)
}

// IdentifyFirmware guesses the Teensy model(s) a firmware image targets,
// from machine-code fingerprints rather than any header: the iMXRT flash
// config block magic for the Teensy 4.0 family, the ARM Cortex-M vector
// table's initial stack pointer combined with its length for the 3.x/LC
// family, and literal _reboot_Teensyduino_() machine code for the AVR
// family. It returns up to max candidates (some fingerprints are shared by
// more than one model, e.g. beta vs. production 4.0 boards, or 3.1 vs 3.2
// which are electrically identical).
func IdentifyFirmware(fw *firmware.Firmware, max int) []Model {
	if max <= 0 {
		max = 1
	}

	if imxrt, ok := fw.FindSegment(0x60000000); ok && len(imxrt.Data) >= 8 {
		if binary.LittleEndian.Uint64(imxrt.Data[:8]) == 0x5601000042464346 {
			models := []Model{Teensy40}
			if max >= 2 {
				models = append(models, Teensy40Beta1)
			}
			return models
		}
	}

	if seg0, ok := fw.FindSegment(0); ok {
		const startupSize = 0x400
		if len(seg0.Data) >= startupSize {
			stackAddr := binary.LittleEndian.Uint32(seg0.Data[0:4])
			endVectorAddr := binary.LittleEndian.Uint32(seg0.Data[4:8]) &^ 1

			if endVectorAddr >= startupSize {
				for i := 0; i+8 <= startupSize; i += 4 {
					if binary.LittleEndian.Uint64(seg0.Data[i:i+8]) == 0xFFFFFFFFFFFFFFFF {
						endVectorAddr = uint32(i)
						break
					}
				}
			}

			switch arm3Key(stackAddr, endVectorAddr) {
			case 0x20002000000000F8:
				return []Model{Teensy30}
			case 0x20008000000001BC:
				models := []Model{Teensy31}
				if max >= 2 {
					models = append(models, Teensy32)
				}
				return models
			case 0x20001800000000C0:
				return []Model{TeensyLC}
			case 0x2002000000000198, 0x2002FFFC00000198, 0x2002FFF800000198:
				return []Model{Teensy35}
			case 0x20030000000001D0:
				return []Model{Teensy36}
			}
		}
	}

	if fw.MaxAddress <= 130048 {
		for _, seg := range fw.Segments {
			if len(seg.Data) < 8 {
				continue
			}
			for j := 0; j+8 <= len(seg.Data); j++ {
				magic := binary.LittleEndian.Uint64(seg.Data[j : j+8])
				if m, ok := avrMagic[magic]; ok {
					return []Model{m}
				}
			}
		}
	}

	return nil
}
