package device

import (
	"context"
	"time"

	"github.com/danmuck/fingerctl/internal/finger"
	"github.com/danmuck/fingerctl/internal/protocol/session"
)

// FingerSource reads a fingerprint terminal over its binary TCP protocol.
type FingerSource struct {
	cfg Config
	ex  session.Exchanger
	now func() time.Time
}

var _ Source = (*FingerSource)(nil)

func NewFingerSource(cfg Config, ex session.Exchanger) *FingerSource {
	return &FingerSource{cfg: cfg.WithDefaults(), ex: ex, now: time.Now}
}

func (s *FingerSource) Config() Config { return s.cfg }

func (s *FingerSource) Kind() Kind { return KindFinger }

// Validate requires a non-empty roster; an empty one means the terminal is not
// answering the protocol.
func (s *FingerSource) Validate(ctx context.Context) error {
	_, err := s.reader().ListRoster(ctx)
	return err
}

// Fetch runs one read session, resolving names through the roster first when
// the device is configured for it.
func (s *FingerSource) Fetch(ctx context.Context) (Snapshot, error) {
	var names map[string]string
	if s.cfg.Names {
		var err error
		names, err = s.reader().ListRoster(ctx)
		if err != nil {
			return Snapshot{}, err
		}
	}
	res, err := s.reader(finger.WithNames(names)).ReadAttendance(ctx, s.cfg.Mode)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		DeviceID:   s.cfg.ID,
		Kind:       KindFinger,
		Mode:       s.cfg.Mode,
		FetchedAt:  s.now().UTC(),
		Attendance: res.Attendance,
		Roster:     names,
		Entries:    res.Entries,
		Pages:      res.Pages,
		Records:    res.Records,
	}, nil
}

func (s *FingerSource) reader(opts ...finger.Option) *finger.Reader {
	opts = append([]finger.Option{finger.WithResponseSize(s.cfg.ResponseSize)}, opts...)
	return finger.NewReader(s.ex, opts...)
}
