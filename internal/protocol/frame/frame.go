package frame

import (
	"errors"
	"fmt"
	"strings"
)

// HeaderLen is the size of the opaque header that opens every terminal response,
// e.g. aa 55 01 01 00 00 00 00 06 00 55 aa.
const HeaderLen = 12

// Opcodes sent in the fourth byte of a command.
const (
	OpReadAllLogs byte = 0xa4
	OpReadNewLogs byte = 0xa1
	OpListUsers   byte = 0x97
	OpUserName    byte = 0xc7
)

var (
	ErrInvalidMode = errors.New("frame: invalid log mode")
)

// Mode selects which attendance logs the terminal returns.
type Mode string

const (
	ModeAll Mode = "all"
	ModeNew Mode = "new"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeNew:
		return ModeNew, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

// Command is one request split around its set byte. The set byte carries the page
// number for log reads and the low id byte for username lookups.
type Command struct {
	Prefix []byte
	Suffix []byte
}

// Encode returns prefix ++ [set] ++ suffix as a single write buffer.
func (c Command) Encode(set byte) []byte {
	buf := make([]byte, 0, len(c.Prefix)+1+len(c.Suffix))
	buf = append(buf, c.Prefix...)
	buf = append(buf, set)
	buf = append(buf, c.Suffix...)
	return buf
}

// LogCommand builds the 16-byte paged log read command for mode.
func LogCommand(mode Mode) (Command, error) {
	op := OpReadAllLogs
	switch mode {
	case ModeAll, "":
	case ModeNew:
		op = OpReadNewLogs
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return Command{
		Prefix: []byte{0x55, 0xaa, 0x00, op, 0x00, 0x00, 0x00, 0x00, 0x62, 0x08},
		Suffix: []byte{0x00, 0x00, 0x04, 0x05, 0x00},
	}, nil
}

// UserListCommand builds the roster id listing command. Its set byte is always 0.
func UserListCommand() Command {
	return Command{
		Prefix: []byte{0x55, 0xaa, 0x00, OpListUsers, 0xb8, 0x00, 0x00, 0x00, 0x03, 0x00},
		Suffix: []byte{0x00, 0xb8, 0x00, 0x06, 0x00},
	}
}

// UserNameCommand builds the display-name lookup for id. The returned set byte is
// the low byte of id; the three higher bytes lead the suffix.
func UserNameCommand(id uint32) (Command, byte) {
	return Command{
		Prefix: []byte{0x55, 0xaa, 0x00, OpUserName},
		Suffix: []byte{
			byte(id >> 8), byte(id >> 16), byte(id >> 24),
			0x00, 0x00, 0x00, 0x00, 0x0e, 0x00, 0x05, 0x00,
		},
	}, byte(id)
}

// Header is the response header. Log reads ignore it.
type Header []byte

// Split separates a response into header and payload. A response shorter than the
// header yields whatever header bytes arrived and an empty payload.
func Split(resp []byte) (Header, []byte) {
	if len(resp) <= HeaderLen {
		return Header(resp), nil
	}
	return Header(resp[:HeaderLen]), resp[HeaderLen:]
}
