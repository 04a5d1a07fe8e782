// Package device wraps attendance terminals behind one Source interface per
// device kind and keeps the registry of configured devices.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/fingerctl/internal/finger"
	"github.com/danmuck/fingerctl/internal/ledger"
	"github.com/danmuck/fingerctl/internal/protocol/frame"
	"github.com/danmuck/fingerctl/internal/protocol/session"
)

var (
	ErrUnknownKind     = errors.New("device: unknown kind")
	ErrMissingHost     = errors.New("device: host is required")
	ErrDuplicateDevice = errors.New("device: already registered")
)

// Kind names the integration used to reach a device.
type Kind string

const (
	KindFinger Kind = "finger"
	KindCloud  Kind = "cloud"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", KindFinger:
		return KindFinger, nil
	case KindCloud:
		return KindCloud, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

// Config describes one device. Zero values are filled by WithDefaults.
type Config struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Kind         Kind          `json:"kind"`
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Timeout      time.Duration `json:"timeout"`
	Mode         frame.Mode    `json:"mode"`
	Names        bool          `json:"names"`
	ResponseSize int           `json:"response_size,omitempty"`
}

func (c Config) WithDefaults() Config {
	c.Host = strings.TrimSpace(c.Host)
	if c.Kind == "" {
		c.Kind = KindFinger
	}
	if c.Port <= 0 {
		c.Port = finger.DefaultPort
	}
	if c.Timeout <= 0 {
		c.Timeout = session.DefaultTimeout
	}
	if c.Mode == "" {
		c.Mode = frame.ModeAll
	}
	if c.ResponseSize <= 0 {
		c.ResponseSize = session.DefaultResponseSize
	}
	if c.ID == "" {
		c.ID = c.Name
	}
	if c.ID == "" {
		c.ID = c.Host
	}
	return c
}

func (c Config) Addr() string {
	return session.Addr(c.Host, c.Port)
}

// Snapshot is the outcome of one successful fetch.
type Snapshot struct {
	DeviceID   string            `json:"device_id"`
	Kind       Kind              `json:"kind"`
	Mode       frame.Mode        `json:"mode"`
	FetchedAt  time.Time         `json:"fetched_at"`
	Attendance map[string]string `json:"attendance"`
	Roster     map[string]string `json:"roster,omitempty"`
	Entries    []ledger.Entry    `json:"entries"`
	Pages      int               `json:"pages"`
	Records    int               `json:"records"`
}

// Source is a device the poller can read.
type Source interface {
	Config() Config
	Kind() Kind
	// Validate checks the device answers before it is registered.
	Validate(ctx context.Context) error
	Fetch(ctx context.Context) (Snapshot, error)
}

// Open resolves cfg.Kind to its Source once. Kinds without an integration are
// rejected here rather than on every fetch.
func Open(cfg Config) (Source, error) {
	cfg = cfg.WithDefaults()
	if cfg.Host == "" {
		return nil, ErrMissingHost
	}
	switch cfg.Kind {
	case KindFinger:
		if _, err := frame.LogCommand(cfg.Mode); err != nil {
			return nil, err
		}
		t := session.NewTransport(cfg.Addr(), session.Config{
			ConnectTimeout: cfg.Timeout,
			WriteTimeout:   cfg.Timeout,
			ReadTimeout:    cfg.Timeout,
			ResponseSize:   cfg.ResponseSize,
		})
		return NewFingerSource(cfg, t), nil
	case KindCloud:
		return nil, &finger.Error{Kind: finger.NotImplemented, Op: "open", Msg: "cloud devices are not supported"}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
