package cisco

import (
	"net"
	"strconv"
	"time"
)

// Dialect identifies the CLI flavour spoken by the managed device.
type Dialect string

// DialectCiscoIOS is the only dialect this module drives.
const DialectCiscoIOS Dialect = "cisco_ios"

const (
	defaultPort           = 22
	defaultConnectTimeout = 5 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Target describes the switch a session is opened against.
type Target struct {
	Address  string
	Port     int
	Username string
	Password string
	// Secret answers the enable prompt. Empty means the password is reused.
	Secret  string
	Dialect Dialect

	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	// KnownHostsFile enables host key verification when set.
	KnownHostsFile string
}

func (t Target) withDefaults() Target {
	if t.Port == 0 {
		t.Port = defaultPort
	}
	if t.Dialect == "" {
		t.Dialect = DialectCiscoIOS
	}
	if t.ConnectTimeout <= 0 {
		t.ConnectTimeout = defaultConnectTimeout
	}
	if t.CommandTimeout <= 0 {
		t.CommandTimeout = defaultCommandTimeout
	}
	if t.Secret == "" {
		t.Secret = t.Password
	}
	return t
}

func (t Target) addr() string {
	port := t.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(t.Address, strconv.Itoa(port))
}
