package firmware

import (
	"encoding/binary"

	"github.com/Koromix/tytools-sub001/internal/errcode"
)

const (
	elfMagic0, elfMagic1, elfMagic2, elfMagic3 = 0x7F, 'E', 'L', 'F'

	eiClass = 4
	eiData  = 5

	elfClass32  = 1
	elfData2LSB = 1
	elfData2MSB = 2

	ptLoad = 1

	ehdrSize = 52
	phdrSize = 32
)

// loadELF extracts PT_LOAD segments from a 32-bit ELF object, following
// ty_firmware_load_elf: only segments with a non-zero file size become
// Firmware segments (NOBITS/.bss-only PT_LOAD entries are skipped), and
// both little- and big-endian objects are supported.
func loadELF(fw *Firmware, data []byte) error {
	if len(data) < ehdrSize {
		return errcode.New(errcode.Parse, "ELF file '%s' is malformed or truncated", fw.Filename)
	}
	if data[0] != elfMagic0 || data[1] != elfMagic1 || data[2] != elfMagic2 || data[3] != elfMagic3 {
		return errcode.New(errcode.Parse, "missing ELF signature in '%s'", fw.Filename)
	}
	if data[eiClass] != elfClass32 {
		return errcode.New(errcode.Unsupported, "ELF object '%s' is not supported (not 32-bit)", fw.Filename)
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch data[eiData] {
	case elfData2LSB:
		order = binary.LittleEndian
	case elfData2MSB:
		order = binary.BigEndian
	default:
		return errcode.New(errcode.Parse, "ELF file '%s' has an invalid data encoding", fw.Filename)
	}

	phoff := order.Uint32(data[28:32])
	phentsize := order.Uint16(data[42:44])
	phnum := order.Uint16(data[44:46])

	if phoff == 0 {
		return errcode.New(errcode.Parse, "ELF file '%s' has no program headers", fw.Filename)
	}

	for i := uint16(0); i < phnum; i++ {
		off := int(phoff) + int(i)*int(phentsize)
		phdr, err := readChunk(data, off, phdrSize, fw.Filename)
		if err != nil {
			return err
		}

		pType := order.Uint32(phdr[0:4])
		pOffset := order.Uint32(phdr[4:8])
		pPAddr := order.Uint32(phdr[12:16])
		pFilesz := order.Uint32(phdr[16:20])

		if pType != ptLoad || pFilesz == 0 {
			continue
		}

		segData, err := readChunk(data, int(pOffset), int(pFilesz), fw.Filename)
		if err != nil {
			return err
		}
		seg, err := fw.AddSegment(pPAddr, len(segData))
		if err != nil {
			return err
		}
		copy(seg.Data, segData)
	}

	return nil
}

func readChunk(data []byte, offset, size int, filename string) ([]byte, error) {
	if offset < 0 || size < 0 || offset+size > len(data) {
		return nil, errcode.New(errcode.Parse, "ELF file '%s' is malformed or truncated", filename)
	}
	return data[offset : offset+size], nil
}
