package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/danmuck/fingerctl/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrTransport = errors.New("session: transport failure")
)

// TransportError reports a dial, write or read failure of one exchange. It matches
// ErrTransport with errors.Is.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Exchanger performs one request/response round trip. size bounds the receive; the
// request is prefix ++ [set] ++ suffix.
type Exchanger interface {
	Exchange(ctx context.Context, size int, prefix []byte, set byte, suffix []byte) ([]byte, error)
}

// Transport dials a fresh TCP connection for every exchange.
type Transport struct {
	addr string
	cfg  Config
}

var _ Exchanger = (*Transport)(nil)

func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func NewTransport(addr string, cfg Config) *Transport {
	return &Transport{addr: addr, cfg: cfg.WithDefaults()}
}

func (t *Transport) Addr() string {
	return t.addr
}

func (t *Transport) Config() Config {
	return t.cfg
}

// Exchange sends one command and performs a single bounded read. A partial frame is
// returned as-is; a peer that closes without sending yields an empty response.
func (t *Transport) Exchange(ctx context.Context, size int, prefix []byte, set byte, suffix []byte) ([]byte, error) {
	if size <= 0 {
		size = t.cfg.ResponseSize
	}
	start := time.Now()
	resp, err := t.exchange(ctx, size, prefix, set, suffix)
	observability.RecordExchange(t.addr, len(resp), time.Since(start), err)
	return resp, err
}

func (t *Transport) exchange(ctx context.Context, size int, prefix []byte, set byte, suffix []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: t.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Addr: t.addr, Err: err}
	}
	defer conn.Close()

	req := make([]byte, 0, len(prefix)+1+len(suffix))
	req = append(req, prefix...)
	req = append(req, set)
	req = append(req, suffix...)

	if err := conn.SetWriteDeadline(deadline(ctx, t.cfg.WriteTimeout)); err != nil {
		return nil, &TransportError{Op: "write", Addr: t.addr, Err: err}
	}
	if _, err := conn.Write(req); err != nil {
		return nil, &TransportError{Op: "write", Addr: t.addr, Err: err}
	}

	if err := conn.SetReadDeadline(deadline(ctx, t.cfg.ReadTimeout)); err != nil {
		return nil, &TransportError{Op: "read", Addr: t.addr, Err: err}
	}
	buf := make([]byte, size)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &TransportError{Op: "read", Addr: t.addr, Err: err}
	}

	log.Debug().
		Str("addr", t.addr).
		Hex("request", req).
		Int("expect", size).
		Int("received", n).
		Msg("session exchange")
	return buf[:n], nil
}

// Probe reports whether addr accepts TCP connections within timeout.
func Probe(ctx context.Context, addr string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &TransportError{Op: "probe", Addr: addr, Err: err}
	}
	return conn.Close()
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		d = ctxDeadline
	}
	return d
}
