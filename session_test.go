package cisco

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers "<call>@<id>" unless an error is queued for the call.
type fakeTransport struct {
	id     int
	errs   []error
	calls  []string
	opts   []int
	closed bool
}

func (f *fakeTransport) next(call string, opts []Option) (string, error) {
	f.calls = append(f.calls, call)
	f.opts = append(f.opts, len(opts))
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s@%d", call, f.id), nil
}

func (f *fakeTransport) Enable(opts ...Option) (string, error) { return f.next("enable", opts) }

func (f *fakeTransport) ConfigMode(opts ...Option) (string, error) {
	return f.next("config_mode", opts)
}

func (f *fakeTransport) SendCommand(command string, opts ...Option) (string, error) {
	return f.next("send_command:"+command, opts)
}

func (f *fakeTransport) SendConfigSet(commands []string, opts ...Option) (string, error) {
	return f.next("send_config_set:"+strings.Join(commands, "|"), opts)
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// fakeDialer hands out transports in order; errs[i] fails the i-th dial.
type fakeDialer struct {
	transports []*fakeTransport
	errs       []error
	targets    []Target
}

func (d *fakeDialer) dial(t Target) (Transport, error) {
	i := len(d.targets)
	d.targets = append(d.targets, t)
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i >= len(d.transports) {
		return nil, errors.New("fakeDialer: no transport left")
	}
	return d.transports[i], nil
}

func (d *fakeDialer) dials() int { return len(d.targets) }

var testTarget = Target{Address: "10.0.0.1", Username: "admin", Password: "right"}

func closedErr() error {
	return &Error{Kind: KindClosed, Host: "10.0.0.1", Op: "send_command", Err: io.EOF}
}

var sessionOperations = []struct {
	name string
	call func(*Session) (string, error)
	want string
}{
	{
		name: "enable",
		call: func(s *Session) (string, error) { return s.Enable() },
		want: "enable",
	},
	{
		name: "config mode",
		call: func(s *Session) (string, error) { return s.ConfigMode() },
		want: "config_mode",
	},
	{
		name: "send command",
		call: func(s *Session) (string, error) { return s.SendCommand("show version") },
		want: "send_command:show version",
	},
	{
		name: "send config set",
		call: func(s *Session) (string, error) {
			return s.SendConfigSet([]string{"interface Gi1/0/1", "shutdown"})
		},
		want: "send_config_set:interface Gi1/0/1|shutdown",
	},
}

func newTestSession(t *testing.T, d *fakeDialer) *Session {
	t.Helper()
	s, err := NewSession(testTarget, WithDialer(d.dial), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return s
}

func TestSessionSuccessDoesNotReconnect(t *testing.T) {
	for _, op := range sessionOperations {
		t.Run(op.name, func(t *testing.T) {
			first := &fakeTransport{id: 0}
			d := &fakeDialer{transports: []*fakeTransport{first}}
			s := newTestSession(t, d)

			out, err := op.call(s)
			require.NoError(t, err)
			assert.Equal(t, op.want+"@0", out)
			assert.Equal(t, 1, d.dials())
			assert.Equal(t, 0, s.Reconnects())
			assert.False(t, first.closed)
		})
	}
}

func TestSessionReconnectsOnceWhenTransportClosed(t *testing.T) {
	for _, op := range sessionOperations {
		t.Run(op.name, func(t *testing.T) {
			stale := &fakeTransport{id: 0, errs: []error{closedErr()}}
			fresh := &fakeTransport{id: 1}
			d := &fakeDialer{transports: []*fakeTransport{stale, fresh}}
			s := newTestSession(t, d)

			out, err := op.call(s)
			require.NoError(t, err)
			assert.Equal(t, op.want+"@1", out)
			assert.Equal(t, 2, d.dials())
			assert.Equal(t, 1, s.Reconnects())
			assert.Equal(t, []string{op.want}, stale.calls)
			assert.Equal(t, []string{op.want}, fresh.calls)
			assert.True(t, stale.closed)

			// later calls go to the new transport
			_, err = op.call(s)
			require.NoError(t, err)
			assert.Len(t, stale.calls, 1)
			assert.Len(t, fresh.calls, 2)
		})
	}
}

func TestSessionReconnectReusesTarget(t *testing.T) {
	d := &fakeDialer{transports: []*fakeTransport{
		{id: 0, errs: []error{closedErr()}},
		{id: 1},
	}}
	s := newTestSession(t, d)

	_, err := s.SendCommand("show clock")
	require.NoError(t, err)
	require.Len(t, d.targets, 2)
	assert.Equal(t, d.targets[0], d.targets[1])
	assert.Equal(t, "10.0.0.1", d.targets[1].Address)
	assert.Equal(t, "admin", d.targets[1].Username)
	assert.Equal(t, "right", d.targets[1].Password)
}

func TestSessionReconnectFailurePropagatesOriginalError(t *testing.T) {
	for _, op := range sessionOperations {
		t.Run(op.name, func(t *testing.T) {
			original := closedErr()
			stale := &fakeTransport{id: 0, errs: []error{original}}
			d := &fakeDialer{
				transports: []*fakeTransport{stale},
				errs:       []error{nil, &Error{Kind: KindAuthentication, Host: "10.0.0.1", Op: "handshake"}},
			}
			s := newTestSession(t, d)

			_, err := op.call(s)
			require.Error(t, err)
			assert.Same(t, original, err)
			assert.ErrorIs(t, err, ErrTransportClosed)
			assert.Equal(t, 2, d.dials())
			assert.Equal(t, 0, s.Reconnects())
			assert.Len(t, stale.calls, 1)
			assert.False(t, stale.closed)
		})
	}
}

func TestSessionRetryFailureSurfaces(t *testing.T) {
	for _, op := range sessionOperations {
		t.Run(op.name, func(t *testing.T) {
			retryErr := &Error{Kind: KindClosed, Host: "10.0.0.1", Op: "retry", Err: io.EOF}
			d := &fakeDialer{transports: []*fakeTransport{
				{id: 0, errs: []error{closedErr()}},
				{id: 1, errs: []error{retryErr}},
			}}
			s := newTestSession(t, d)

			_, err := op.call(s)
			assert.Same(t, retryErr, err)
			assert.Equal(t, 2, d.dials(), "retry budget is one attempt")
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestSessionOtherFailuresPropagateWithoutReconnect(t *testing.T) {
	failures := map[string]error{
		"timeout":        &Error{Kind: KindTimeout, Host: "10.0.0.1", Op: "send_command", Err: timeoutError{}},
		"socket error":   &net.OpError{Op: "read", Net: "tcp", Err: timeoutError{}},
		"device error":   errors.New("% Invalid input detected at '^' marker."),
		"tagged other":   &Error{Kind: KindOther, Host: "10.0.0.1", Op: "enable", Err: errors.New("failed to enter privileged mode")},
		"authentication": &Error{Kind: KindAuthentication, Host: "10.0.0.1", Op: "handshake"},
	}
	for name, failure := range failures {
		for _, op := range sessionOperations {
			t.Run(name+"/"+op.name, func(t *testing.T) {
				d := &fakeDialer{transports: []*fakeTransport{
					{id: 0, errs: []error{failure}},
				}}
				s := newTestSession(t, d)

				_, err := op.call(s)
				assert.Same(t, failure, err)
				assert.Equal(t, 1, d.dials())
				assert.Equal(t, 0, s.Reconnects())
			})
		}
	}
}

func TestSessionForwardsOptions(t *testing.T) {
	first := &fakeTransport{id: 0}
	d := &fakeDialer{transports: []*fakeTransport{first}}
	s := newTestSession(t, d)

	_, err := s.SendCommand("show run", WithTimeout(time.Minute), WithoutStripPrompt())
	require.NoError(t, err)
	_, err = s.SendConfigSet([]string{"vlan 10"}, WithoutExitConfigMode())
	require.NoError(t, err)
	_, err = s.Enable(WithSecret("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 1}, first.opts)
}

func TestNewSessionDialFailure(t *testing.T) {
	dialErr := &Error{Kind: KindTimeout, Host: "10.0.0.1", Op: "dial"}
	d := &fakeDialer{errs: []error{dialErr}}

	s, err := NewSession(testTarget, WithDialer(d.dial), WithLogger(zerolog.Nop()))
	assert.Nil(t, s)
	assert.Same(t, dialErr, err)
}

func TestNewSessionAppliesTargetDefaults(t *testing.T) {
	d := &fakeDialer{transports: []*fakeTransport{{id: 0}}}
	s := newTestSession(t, d)

	got := d.targets[0]
	assert.Equal(t, 22, got.Port)
	assert.Equal(t, DialectCiscoIOS, got.Dialect)
	assert.Equal(t, defaultConnectTimeout, got.ConnectTimeout)
	assert.Equal(t, defaultCommandTimeout, got.CommandTimeout)
	assert.Equal(t, "right", got.Secret)
	assert.Equal(t, got, s.Target())
}
