package midi

import (
	"bytes"
	"errors"
)

// maxFileSize rejects any Standard MIDI File larger than this, per the
// external-interfaces file-format rule.
const maxFileSize = 50 * 1024 * 1024

// ParseError is a typed parser failure carrying the byte offset the
// problem was detected at. The parser never panics on user input:
// header and chunk problems return a ParseError, and a file over the
// 50MB limit returns errTooLarge.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return "midi: parse error at offset " + itoa(e.Offset) + ": " + e.Reason
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

var (
	errTooLarge    = errors.New("midi: file exceeds 50MB limit")
	errNoHeader    = errors.New("midi: missing MThd header at offset 0")
	errNoTrackMark = errors.New("midi: missing MTrk marker at offset 14")
)

// validateHeader checks the structural preconditions named in the
// external-interfaces section: size limit, MThd at offset 0, MTrk at
// offset 14. It does not fully parse the file.
func validateHeader(data []byte) error {
	if len(data) > maxFileSize {
		return errTooLarge
	}
	if len(data) < 14 || !bytes.Equal(data[0:4], []byte("MThd")) {
		return &ParseError{Offset: 0, Reason: errNoHeader.Error()}
	}
	if len(data) < 18 || !bytes.Equal(data[14:18], []byte("MTrk")) {
		return &ParseError{Offset: 14, Reason: errNoTrackMark.Error()}
	}
	return nil
}

// executableSignatures are recognized executable magic byte sequences.
// VerifyMidiData rejects any buffer starting with one of these before
// the SMF header check runs.
var executableSignatures = [][]byte{
	{'M', 'Z'},               // DOS/PE
	{0x7F, 'E', 'L', 'F'},    // ELF
	{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O 32-bit BE
	{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O 32-bit LE
	{0xFE, 0xED, 0xFA, 0xCF}, // Mach-O 64-bit BE
	{0xCF, 0xFA, 0xED, 0xFE}, // Mach-O 64-bit LE
	{0xCA, 0xFE, 0xBA, 0xBE}, // Mach-O universal / Java class
	{'#', '!'},               // shebang script
}

// VerifyMidiData is the security sanity check named in the external
// interfaces: it must return false for any byte sequence beginning
// with a recognized executable signature, any sequence containing an
// embedded "PE\0\0" marker, or any sequence that fails the SMF header
// check — all without ever writing the buffer to disk.
func VerifyMidiData(data []byte) bool {
	for _, sig := range executableSignatures {
		if len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig) {
			return false
		}
	}
	if bytes.Contains(data, []byte{'P', 'E', 0, 0}) {
		return false
	}
	return validateHeader(data) == nil
}
