// Package cobs implements Consistent Overhead Byte Stuffing: framing that
// eliminates 0x00 from an encoded payload so it can serve as an unambiguous
// frame terminator.
package cobs

import "errors"

// ErrZeroByteNotExpected is returned by Decode when a 0x00 byte is found
// in the middle of a run, where COBS guarantees it cannot legally occur.
var ErrZeroByteNotExpected = errors.New("cobs: zero byte not expected mid-run")

const maxRunLength = 254

// Encode frames rawData, returning a new byte slice terminated by a single
// trailing 0x00. Input 0x00 bytes are consumed (not emitted) and replaced by
// run-length "pointer" bytes; runs are also split every 254 non-zero bytes.
// Encode never fails: every byte sequence has a valid COBS encoding.
func Encode(rawData []byte) []byte {
	out := make([]byte, 0, len(rawData)+2+len(rawData)/maxRunLength)
	startOfBlock := 0
	out = append(out, 0) // placeholder, overwritten once the run length is known
	elementsInBlock := 0

	for _, b := range rawData {
		if b == 0x00 {
			out[startOfBlock] = byte(elementsInBlock + 1)
			startOfBlock = len(out)
			out = append(out, 0)
			elementsInBlock = 0
			continue
		}

		out = append(out, b)
		elementsInBlock++
		if elementsInBlock == maxRunLength {
			out[startOfBlock] = byte(elementsInBlock + 1)
			startOfBlock = len(out)
			out = append(out, 0)
			elementsInBlock = 0
		}
	}

	out[startOfBlock] = byte(elementsInBlock + 1)
	out = append(out, 0x00)
	return out
}

// Decode reverses Encode. encodedData is treated as a single frame; any
// bytes after the terminating 0x00 are ignored (callers isolate one frame
// at a time before calling Decode, e.g. via wire.Assembler).
func Decode(encodedData []byte) ([]byte, error) {
	out := make([]byte, 0, len(encodedData))
	pos := 0

	for pos < len(encodedData) {
		elementsInBlock := int(encodedData[pos]) - 1
		pos++

		for i := 0; i < elementsInBlock; i++ {
			if pos >= len(encodedData) {
				return nil, ErrZeroByteNotExpected
			}
			b := encodedData[pos]
			if b == 0x00 {
				return nil, ErrZeroByteNotExpected
			}
			out = append(out, b)
			pos++
		}

		if pos >= len(encodedData) || encodedData[pos] == 0x00 {
			// End of packet found.
			break
		}

		// Only re-insert the elided 0x00 if this block ended because a zero
		// byte was consumed during encoding, not because it hit the 254 cap.
		if elementsInBlock < maxRunLength {
			out = append(out, 0x00)
		}
	}

	return out, nil
}
