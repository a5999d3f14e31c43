package cisco

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session is a Transport that survives the switch dropping an idle
// connection. When an operation fails because the transport is closed, the
// session dials the same target again and retries that operation once.
//
// A Session serves one caller at a time.
type Session struct {
	mu         sync.Mutex
	target     Target
	dial       DialFunc
	transport  Transport
	log        zerolog.Logger
	reconnects int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDialer replaces the SSH dialer.
func WithDialer(dial DialFunc) SessionOption {
	return func(s *Session) { s.dial = dial }
}

// WithLogger sets the logger used for reconnect diagnostics.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = logger }
}

// NewSession dials target and wraps the resulting transport.
func NewSession(target Target, opts ...SessionOption) (*Session, error) {
	s := &Session{
		target: target.withDefaults(),
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dial == nil {
		s.dial = NewSSHDialer(s.log)
	}

	transport, err := s.dial(s.target)
	if err != nil {
		return nil, err
	}
	s.transport = transport
	return s, nil
}

// Target returns the target the session was opened against.
func (s *Session) Target() Target { return s.target }

// Reconnects reports how many times the transport has been replaced.
func (s *Session) Reconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

// Enable enters privileged exec mode.
func (s *Session) Enable(opts ...Option) (string, error) {
	return persist(s, func(t Transport) (string, error) { return t.Enable(opts...) })
}

// ConfigMode enters global configuration mode.
func (s *Session) ConfigMode(opts ...Option) (string, error) {
	return persist(s, func(t Transport) (string, error) { return t.ConfigMode(opts...) })
}

// SendCommand runs one exec command and returns its output.
func (s *Session) SendCommand(command string, opts ...Option) (string, error) {
	return persist(s, func(t Transport) (string, error) { return t.SendCommand(command, opts...) })
}

// SendConfigSet applies commands in configuration mode and returns the transcript.
func (s *Session) SendConfigSet(commands []string, opts ...Option) (string, error) {
	return persist(s, func(t Transport) (string, error) { return t.SendConfigSet(commands, opts...) })
}

// Close closes the current transport.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport.Close()
}

// persist runs call on the current transport. A closed transport is
// reconnected and call is retried exactly once on the new one; any other
// failure, or a failed reconnect, returns the first error untouched.
func persist[T any](s *Session, call func(Transport) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := call(s.transport)
	if err == nil || !errors.Is(err, ErrTransportClosed) {
		return out, err
	}
	if !s.reconnect() {
		return out, err
	}
	s.log.Debug().Str("host", s.target.Address).Msg("reloaded SSH connection")
	return call(s.transport)
}

// reconnect replaces the transport. On failure the stale transport is kept,
// so the next call fails closed again and triggers another attempt.
func (s *Session) reconnect() bool {
	transport, err := s.dial(s.target)
	if err != nil {
		logDialFailure(s.log, s.target, err)
		return false
	}
	if err := s.transport.Close(); err != nil {
		s.log.Debug().Err(err).Str("host", s.target.Address).Msg("closing stale transport")
	}
	s.transport = transport
	s.reconnects++
	return true
}
