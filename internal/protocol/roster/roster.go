package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/fingerctl/internal/protocol/frame"
	"golang.org/x/text/encoding/unicode"
)

const (
	UserRecordLen = 8
	NameLen       = 10
)

var (
	ErrShortResponse = errors.New("roster: short response")
	ErrInvalidName   = errors.New("roster: invalid utf-16 name")
)

// Entry is one id from the terminal's user table.
type Entry struct {
	ID   uint32
	Code string
}

func Code(id uint32) string {
	return fmt.Sprintf("%02d", id)
}

// DecodeUserList reads the 8-byte user slots that follow the response header. Each
// id is the little-endian 24-bit value at the start of its slot. The slot that ends
// exactly at the end of the buffer is the device trailer and is not an entry.
func DecodeUserList(resp []byte) []Entry {
	out := make([]Entry, 0)
	for i := frame.HeaderLen; i+UserRecordLen < len(resp); i += UserRecordLen {
		id := uint32(resp[i]) | uint32(resp[i+1])<<8 | uint32(resp[i+2])<<16
		out = append(out, Entry{ID: id, Code: Code(id)})
	}
	return out
}

// DecodeName reads the UTF-16 display name that follows the response header and
// drops NUL code units.
func DecodeName(resp []byte) (string, error) {
	if len(resp) < frame.HeaderLen+2 {
		return "", fmt.Errorf("%w: %d bytes", ErrShortResponse, len(resp))
	}
	end := frame.HeaderLen + NameLen
	if end > len(resp) {
		end = len(resp)
	}
	raw := resp[frame.HeaderLen:end]
	raw = raw[:len(raw)&^1]

	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	name, err := dec.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return strings.ReplaceAll(string(name), "\x00", ""), nil
}
