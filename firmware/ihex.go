package firmware

import (
	"bufio"
	"bytes"
	"encoding/hex"

	"github.com/Koromix/tytools-sub001/internal/errcode"
)

// loadIHex parses an Intel HEX image, following ty_firmware_load_ihex:
// record types 00 (data), 01 (EOF), 02/04 (extended segment/linear
// address, shifting the base offset by 4 or 16 bits) and 03/05 (start
// address records, consumed but otherwise ignored). Each line's checksum
// is validated against the sum of every decoded byte including the
// length/address/type fields.
func loadIHex(fw *Firmware, data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var baseOffset uint32
	lineNo := 0
	sawEOF := false

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		done, err := parseIHexLine(fw, line, lineNo, &baseOffset)
		if err != nil {
			return err
		}
		if done {
			sawEOF = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return errcode.Wrap(errcode.IO, err, "reading '%s'", fw.Filename)
	}
	if !sawEOF {
		return errcode.New(errcode.Parse, "IHEX file '%s' has no EOF record", fw.Filename)
	}
	return nil
}

func parseIHexLine(fw *Firmware, line string, lineNo int, baseOffset *uint32) (done bool, err error) {
	perr := func() error {
		return errcode.New(errcode.Parse, "IHEX parse error on line %d in '%s'", lineNo, fw.Filename)
	}

	if line == "" || line[0] != ':' {
		return false, nil
	}
	raw, decodeErr := hex.DecodeString(line[1:])
	if decodeErr != nil || len(raw) < 5 {
		return false, perr()
	}

	dataLen := int(raw[0])
	if len(raw) != 4+dataLen+1 {
		return false, perr()
	}
	address := uint32(raw[1])<<8 | uint32(raw[2])
	recType := raw[3]
	payload := raw[4 : 4+dataLen]
	checksum := raw[4+dataLen]

	var sum byte
	for _, b := range raw[:4+dataLen] {
		sum += b
	}
	if byte(sum+checksum) != 0 {
		return false, perr()
	}

	switch recType {
	case 0: // data record
		if err := fw.Write(*baseOffset+address, payload); err != nil {
			return false, err
		}
		return false, nil

	case 1: // EOF record
		if dataLen != 0 {
			return false, perr()
		}
		return true, nil

	case 2: // extended segment address record
		if dataLen != 2 {
			return false, perr()
		}
		*baseOffset = (uint32(payload[0])<<8 | uint32(payload[1])) << 4
		return false, nil

	case 4: // extended linear address record
		if dataLen != 2 {
			return false, perr()
		}
		*baseOffset = (uint32(payload[0])<<8 | uint32(payload[1])) << 16
		return false, nil

	case 3, 5: // start segment/linear address record
		if dataLen != 4 {
			return false, perr()
		}
		return false, nil

	default:
		return false, perr()
	}
}
