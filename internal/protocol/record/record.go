// Package record decodes the terminal's fixed 12-byte attendance log records.
//
// The layout is device firmware behavior and must not be changed:
//
//	[0:4]  little-endian user field
//	[7]    seconds
//	[8:12] big-endian bit-packed date/time
package record

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

const (
	Len        = 12
	YearOffset = 1964
)

type Status int

const (
	StatusDecoded Status = iota
	StatusEmpty
	StatusIncomplete
)

func (s Status) String() string {
	switch s {
	case StatusDecoded:
		return "decoded"
	case StatusEmpty:
		return "empty"
	case StatusIncomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Record is the outcome of one decode attempt. Exactly one of the decoded fields,
// Empty, or Carry is meaningful.
type Record struct {
	User   string
	Time   string
	Second uint8
	Empty  bool
	Carry  []byte

	// Name is the display name resolved when the record joins a ledger.
	Name string
}

func (r Record) Status() Status {
	switch {
	case r.Carry != nil:
		return StatusIncomplete
	case r.Empty:
		return StatusEmpty
	default:
		return StatusDecoded
	}
}

// Stamp renders "time:second", the per-user value of a summary.
func (r Record) Stamp() string {
	return fmt.Sprintf("%s:%d", r.Time, r.Second)
}

func (r Record) String() string {
	return fmt.Sprintf("id:%s,time:%s:%02d", r.User, r.Time, r.Second)
}

// Decode parses buf[:12]. Short input is returned as Carry, copied byte-for-byte,
// so the caller can prefix it onto the next chunk.
func Decode(buf []byte) Record {
	if len(buf) < Len {
		carry := make([]byte, len(buf))
		copy(carry, buf)
		return Record{Carry: carry}
	}
	buf = buf[:Len]
	if isZero(buf) {
		return Record{Empty: true}
	}
	return Record{
		User:   userCode(binary.LittleEndian.Uint32(buf[0:4])),
		Second: buf[7],
		Time:   timestamp(binary.BigEndian.Uint32(buf[8:12])),
	}
}

// userCode takes the leading 8 digits of u's binary expansion without padding,
// so values below 256 map to themselves.
func userCode(u uint32) string {
	shift := bits.Len32(u) - 8
	if shift < 0 {
		shift = 0
	}
	return fmt.Sprintf("%02d", u>>uint(shift))
}

// timestamp reads t as a 32-bit string b (b[0] is the MSB):
// yy=b[0:6] mm=b[8:12] HHhi=b[16:19] dd=b[19:24] MM=b[24:30] HHlo=b[30:32].
func timestamp(t uint32) string {
	yy := field(t, 0, 6)
	mm := field(t, 8, 12)
	dd := field(t, 19, 24)
	minute := field(t, 24, 30)
	hour := field(t, 30, 32)<<3 | field(t, 16, 19)
	return fmt.Sprintf("%02d/%02d/%d %02d:%02d", dd, mm, yy+YearOffset, hour, minute)
}

// field returns bits [from, to) of t counted from the most significant bit.
func field(t uint32, from, to int) uint32 {
	width := to - from
	return (t >> uint(32-to)) & (1<<uint(width) - 1)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
