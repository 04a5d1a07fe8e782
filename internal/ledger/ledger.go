// Package ledger aggregates decoded attendance records per user for one read session.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/fingerctl/internal/protocol/record"
)

// UnknownUser is the summary key for a record with neither name nor code.
const UnknownUser = "000"

var (
	ErrNotDecoded = errors.New("ledger: record is not decoded")
)

// Ledger owns its maps and slices; it is built per session and never shared.
type Ledger struct {
	entries map[string][]record.Record
	order   []string
	names   map[string]string
}

func New() *Ledger {
	return WithNames(nil)
}

// WithNames returns an empty ledger that resolves display names through names.
func WithNames(names map[string]string) *Ledger {
	l := &Ledger{
		entries: make(map[string][]record.Record),
		order:   make([]string, 0),
		names:   make(map[string]string, len(names)),
	}
	for code, name := range names {
		l.names[code] = name
	}
	return l
}

// Add appends rec to its user's sequence, creating the user on first sight. Records
// are never deduplicated or reordered.
func (l *Ledger) Add(rec record.Record) error {
	if rec.Status() != record.StatusDecoded {
		return fmt.Errorf("%w: %s", ErrNotDecoded, rec.Status())
	}
	code := rec.User
	if _, ok := l.entries[code]; !ok {
		l.entries[code] = make([]record.Record, 0, 4)
		l.order = append(l.order, code)
	}
	rec.Name = l.displayName(code)
	l.entries[code] = append(l.entries[code], rec)
	return nil
}

func (l *Ledger) displayName(code string) string {
	if name := strings.TrimSpace(l.names[code]); name != "" {
		return name
	}
	return code
}

// Count is the number of distinct users.
func (l *Ledger) Count() int {
	return len(l.entries)
}

// Len is the number of records across all users.
func (l *Ledger) Len() int {
	n := 0
	for _, recs := range l.entries {
		n += len(recs)
	}
	return n
}

// Order returns user codes in first-seen order.
func (l *Ledger) Order() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

func (l *Ledger) sortedCodes() []string {
	codes := l.Order()
	sort.Strings(codes)
	return codes
}

// Summarize maps each user's display name to "time:second" of the user's most
// recently added record, visiting users in ascending code order.
func (l *Ledger) Summarize() map[string]string {
	out := make(map[string]string, len(l.entries))
	for _, code := range l.sortedCodes() {
		last := l.last(code)
		out[summaryKey(last)] = last.Stamp()
	}
	return out
}

// Entry is one line of the ordered summary.
type Entry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	LastSeen string `json:"last_seen"`
}

// Entries returns the summary as a slice in ascending code order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, code := range l.sortedCodes() {
		last := l.last(code)
		out = append(out, Entry{
			Code:     code,
			Name:     summaryKey(last),
			Count:    len(l.entries[code]),
			LastSeen: last.Stamp(),
		})
	}
	return out
}

func (l *Ledger) String() string {
	var b strings.Builder
	b.WriteString("--------\nid : count\n--------\n")
	for i, e := range l.Entries() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s : %d, last log = %s", e.Name, e.Count, l.last(e.Code).Time)
	}
	return b.String()
}

func (l *Ledger) last(code string) record.Record {
	recs := l.entries[code]
	return recs[len(recs)-1]
}

func summaryKey(rec record.Record) string {
	if rec.Name != "" {
		return rec.Name
	}
	if rec.User != "" {
		return rec.User
	}
	return UnknownUser
}
