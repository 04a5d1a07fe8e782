package finger

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced to device callers.
type Kind int

const (
	KindUnknown Kind = iota
	DeviceAlreadyExists
	CannotConnect
	NotImplemented
	InvalidResponse
)

func (k Kind) String() string {
	switch k {
	case DeviceAlreadyExists:
		return "device_already_exists"
	case CannotConnect:
		return "cannot_connect"
	case NotImplemented:
		return "not_implemented"
	case InvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyRoster = errors.New("finger: terminal returned no users")
)

// Error carries a Kind with the operation that failed and its cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err == nil {
		return fmt.Sprintf("finger: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("finger: %s: %s: %v", e.Op, msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func cannotConnect(op string, err error) error {
	return &Error{Kind: CannotConnect, Op: op, Msg: "cannot connect to fingerprint device", Err: err}
}
