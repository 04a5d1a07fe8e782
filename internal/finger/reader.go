package finger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/fingerctl/internal/ledger"
	"github.com/danmuck/fingerctl/internal/protocol/frame"
	"github.com/danmuck/fingerctl/internal/protocol/record"
	"github.com/danmuck/fingerctl/internal/protocol/roster"
	"github.com/danmuck/fingerctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHost = "192.168.1.67"
	DefaultPort = 5005

	// MaxPage is the last page number the one-byte set field can address.
	MaxPage = 255
)

// Result is the outcome of one attendance read session.
type Result struct {
	Attendance map[string]string `json:"attendance"`
	Entries    []ledger.Entry    `json:"entries"`
	Pages      int               `json:"pages"`
	Records    int               `json:"records"`
	Report     string            `json:"-"`
}

type Option func(*Reader)

// WithResponseSize bounds the receive of every exchange.
func WithResponseSize(size int) Option {
	return func(r *Reader) {
		if size > 0 {
			r.size = size
		}
	}
}

// WithNames resolves user codes to display names in the attendance summary.
func WithNames(names map[string]string) Option {
	return func(r *Reader) {
		r.names = names
	}
}

// Reader runs read sessions over an Exchanger. It holds no per-session state.
type Reader struct {
	ex    session.Exchanger
	size  int
	names map[string]string
}

func NewReader(ex session.Exchanger, opts ...Option) *Reader {
	r := &Reader{ex: ex, size: session.DefaultResponseSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadAttendance pages through the terminal's logs until a page adds no records
// and leaves no pending tail. Any exchange failure aborts the session and the
// partial ledger is dropped.
func (r *Reader) ReadAttendance(ctx context.Context, mode frame.Mode) (Result, error) {
	cmd, err := frame.LogCommand(mode)
	if err != nil {
		return Result{}, err
	}

	led := ledger.WithNames(r.names)
	cur := &PageCursor{}
	done := false
	for page := 0; page <= MaxPage && !done; page++ {
		resp, err := r.ex.Exchange(ctx, r.size, cmd.Prefix, byte(page), cmd.Suffix)
		if err != nil {
			return Result{}, cannotConnect("read logs", fmt.Errorf("page %d: %w", page, err))
		}
		cur.PagesRead++

		_, payload := frame.Split(resp)
		before := cur.RecordsDecoded
		if err := decodePage(cur.take(payload), cur, led); err != nil {
			return Result{}, &Error{Kind: InvalidResponse, Op: "read logs", Err: err}
		}
		added := cur.RecordsDecoded - before

		log.Debug().
			Int("page", page).
			Int("payload", len(payload)).
			Int("added", added).
			Int("pending", len(cur.PendingTail)).
			Msg("finger page decoded")

		switch {
		case added > 0:
		case len(cur.PendingTail) == 0:
			done = true
		case len(payload) == 0:
			log.Warn().
				Int("page", page).
				Hex("tail", cur.PendingTail).
				Msg("finger carry never resolved; dropping tail")
			cur.PendingTail = nil
			done = true
		}
	}
	log.Debug().
		Int("users", led.Count()).
		Int("records", led.Len()).
		Int("pages", cur.PagesRead).
		Msg("finger logs read")
	if !done {
		log.Warn().
			Int("pages", cur.PagesRead).
			Int("pending", len(cur.PendingTail)).
			Msg("finger page space exhausted")
	}

	return Result{
		Attendance: led.Summarize(),
		Entries:    led.Entries(),
		Pages:      cur.PagesRead,
		Records:    cur.RecordsDecoded,
		Report:     led.String(),
	}, nil
}

// decodePage walks data in record-sized windows. An empty record ends the page and
// discards the rest; an incomplete one becomes the pending tail.
func decodePage(data []byte, cur *PageCursor, led *ledger.Ledger) error {
	for off := 0; off < len(data); off += record.Len {
		rec := record.Decode(data[off:])
		switch rec.Status() {
		case record.StatusEmpty:
			return nil
		case record.StatusIncomplete:
			cur.PendingTail = rec.Carry
			return nil
		}
		if err := led.Add(rec); err != nil {
			return err
		}
		cur.RecordsDecoded++
	}
	return nil
}

// ListRoster returns user code to display name for every user on the terminal.
// Users without a stored name, and id 0, keep their code as the name.
func (r *Reader) ListRoster(ctx context.Context) (map[string]string, error) {
	cmd := frame.UserListCommand()
	resp, err := r.ex.Exchange(ctx, r.size, cmd.Prefix, 0, cmd.Suffix)
	if err != nil {
		return nil, cannotConnect("list users", err)
	}
	entries := roster.DecodeUserList(resp)
	if len(entries) == 0 {
		return nil, cannotConnect("list users", ErrEmptyRoster)
	}

	names := make(map[string]string, len(entries))
	for _, e := range entries {
		names[e.Code] = e.Code
		if e.ID == 0 {
			continue
		}
		nameCmd, set := frame.UserNameCommand(e.ID)
		resp, err := r.ex.Exchange(ctx, r.size, nameCmd.Prefix, set, nameCmd.Suffix)
		if err != nil {
			return nil, cannotConnect("user name", fmt.Errorf("id %d: %w", e.ID, err))
		}
		name, err := roster.DecodeName(resp)
		if errors.Is(err, roster.ErrShortResponse) {
			log.Warn().Uint32("id", e.ID).Int("bytes", len(resp)).Msg("finger user name missing")
			continue
		}
		if err != nil {
			return nil, &Error{Kind: InvalidResponse, Op: "user name", Err: fmt.Errorf("id %d: %w", e.ID, err)}
		}
		if name = strings.TrimSpace(name); name != "" {
			names[e.Code] = name
		}
	}
	log.Debug().Int("users", len(names)).Msg("finger roster read")
	return names, nil
}

// ReadAttendance runs one log read session against host:port.
func ReadAttendance(ctx context.Context, host string, port int, timeout time.Duration, mode frame.Mode) (Result, error) {
	t := session.NewTransport(session.Addr(host, port), session.ConfigWithTimeout(timeout))
	return NewReader(t).ReadAttendance(ctx, mode)
}

// ListRoster reads the user roster from host:port.
func ListRoster(ctx context.Context, host string, port int, timeout time.Duration) (map[string]string, error) {
	t := session.NewTransport(session.Addr(host, port), session.ConfigWithTimeout(timeout))
	return NewReader(t).ListRoster(ctx)
}
