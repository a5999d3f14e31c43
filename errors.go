package cisco

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// ErrorKind tags a transport failure.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindAuthentication
	KindTimeout
	KindClosed
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication failed"
	case KindTimeout:
		return "timed out"
	case KindClosed:
		return "transport closed"
	default:
		return "failed"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrTimeout         = errors.New("timed out")
	ErrTransportClosed = errors.New("transport closed")
)

// Error is returned by every Transport operation that fails.
type Error struct {
	Kind ErrorKind
	Host string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s :: %s :: %s", e.Host, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s :: %s :: %s: %v", e.Host, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrTransportClosed:
		return e.Kind == KindClosed
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or KindOther.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// classify turns a raw ssh/net failure into a tagged *Error. It is the only
// place where failures are told apart.
func classify(host, op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}

	kind := KindOther
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		kind = KindClosed
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case strings.Contains(err.Error(), "unable to authenticate"):
		// x/crypto/ssh has no typed client-side auth error.
		kind = KindAuthentication
	}
	return &Error{Kind: kind, Host: host, Op: op, Err: err}
}
