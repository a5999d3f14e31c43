package cisco

import (
	"regexp"
	"time"
)

// Transport is a live CLI session on one switch.
type Transport interface {
	Enable(opts ...Option) (string, error)
	ConfigMode(opts ...Option) (string, error)
	SendCommand(command string, opts ...Option) (string, error)
	SendConfigSet(commands []string, opts ...Option) (string, error)
	Close() error
}

// DialFunc opens a fresh authenticated Transport to a target.
type DialFunc func(Target) (Transport, error)

// Option tunes a single Transport call.
type Option func(*callOptions)

type callOptions struct {
	timeout        time.Duration
	expect         *regexp.Regexp
	secret         string
	exitConfigMode bool
	stripPrompt    bool
}

func newCallOptions(t Target, opts []Option) callOptions {
	o := callOptions{
		timeout:        t.CommandTimeout,
		secret:         t.Secret,
		exitConfigMode: true,
		stripPrompt:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTimeout overrides the target's command timeout for one call.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithExpect reads until pattern matches instead of the device prompt.
func WithExpect(pattern *regexp.Regexp) Option {
	return func(o *callOptions) { o.expect = pattern }
}

// WithSecret sets the enable secret.
func WithSecret(secret string) Option {
	return func(o *callOptions) { o.secret = secret }
}

// WithoutExitConfigMode leaves the device in configuration mode after a config set.
func WithoutExitConfigMode() Option {
	return func(o *callOptions) { o.exitConfigMode = false }
}

// WithoutStripPrompt keeps the echoed command and trailing prompt in the output.
func WithoutStripPrompt() Option {
	return func(o *callOptions) { o.stripPrompt = false }
}
