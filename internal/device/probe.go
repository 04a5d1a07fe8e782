package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/fingerctl/internal/protocol/session"
	"github.com/danmuck/fingerctl/internal/tools"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnreachable = errors.New("device: host unreachable")
)

// Prober checks reachability before a device is trusted with read sessions.
type Prober struct {
	Runner  tools.CommandRunner
	Timeout time.Duration
}

// Ping sends one ICMP echo through the system ping binary.
func (p Prober) Ping(ctx context.Context, host string) error {
	wait := int(p.timeout() / time.Second)
	if wait < 1 {
		wait = 1
	}
	stdout, stderr, code, err := p.runner().Run(ctx, "ping", "-c", "1", "-W", strconv.Itoa(wait), host)
	log.Debug().
		Str("host", host).
		Int32("exit", code).
		Str("stdout", strings.TrimSpace(string(stdout))).
		Msg("device ping")
	if err != nil || code != 0 {
		return fmt.Errorf("%w: ping %s exit=%d: %s", ErrUnreachable, host, code, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// TCP reports whether host:port accepts connections.
func (p Prober) TCP(ctx context.Context, host string, port int) error {
	if err := session.Probe(ctx, session.Addr(host, port), p.timeout()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

func (p Prober) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return session.DefaultTimeout
}

func (p Prober) runner() tools.CommandRunner {
	if p.Runner != nil {
		return p.Runner
	}
	return tools.ExecRunner{}
}
