package cisco

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProxyType is the proxy minion type this module drives.
const ProxyType = "cisco_ios_switch"

// Virtual reports whether this module applies to the current target. There is
// no way of telling a Cisco switch apart without logging in and inspecting
// the manufacturer, so every target is assumed to be one.
func Virtual() (string, bool) {
	return "switch", true
}

// Manager owns the session handle for the one switch a proxy manages.
type Manager struct {
	mu      sync.Mutex
	session *Session
	dial    DialFunc
	log     zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerDialer replaces the SSH dialer for every session the manager opens.
func WithManagerDialer(dial DialFunc) ManagerOption {
	return func(m *Manager) { m.dial = dial }
}

// WithManagerLogger sets the logger handed to the manager and its sessions.
func WithManagerLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = logger }
}

// NewManager returns a Manager with no session. Call Init to open one.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		log: log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init opens a session to the switch described by cfg.Proxy and stores it as
// the current session. Authentication failures and timeouts are logged and
// reported as false with a nil error; the previous session, if any, is kept.
// Any other failure is returned.
func (m *Manager) Init(cfg Config) (bool, error) {
	target := cfg.Proxy.Target()

	sessionOpts := []SessionOption{WithLogger(m.log)}
	if m.dial != nil {
		sessionOpts = append(sessionOpts, WithDialer(m.dial))
	}
	session, err := NewSession(target, sessionOpts...)
	switch {
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrTimeout):
		logDialFailure(m.log, target, err)
		return false, nil
	case err != nil:
		return false, err
	}

	m.mu.Lock()
	old := m.session
	m.session = session
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			m.log.Debug().Err(err).Str("host", target.Address).Msg("closing replaced session")
		}
	}
	return true, nil
}

// Session returns the current session handle.
func (m *Manager) Session() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.session != nil
}

func logDialFailure(logger zerolog.Logger, target Target, err error) {
	event := logger.Error().Err(err).Str("host", target.Address).Str("username", target.Username)
	switch {
	case errors.Is(err, ErrAuthentication):
		event.Msgf("Authentication failed with %s (using username %s)", target.Address, target.Username)
	case errors.Is(err, ErrTimeout):
		event.Msgf("Timed out while trying to open SSH connection to %s (using username %s)", target.Address, target.Username)
	default:
		event.Msgf("Failed to open SSH connection to %s (using username %s)", target.Address, target.Username)
	}
}
