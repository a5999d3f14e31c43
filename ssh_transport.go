package cisco

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	// A device prompt at the very end of the buffer: "switch>", "switch#", "switch(config-if)#".
	promptPattern = regexp.MustCompile(`(?:^|[\r\n])([\w.\-/:]+(?:\([\w.\-]+\))?[>#])\s*$`)

	passwordOrPromptPattern = regexp.MustCompile(`(?i)password:\s*$|(?:^|[\r\n])[\w.\-/:]+(?:\([\w.\-]+\))?[>#]\s*$`)
	passwordPattern         = regexp.MustCompile(`(?i)password:\s*$`)

	errOutOfSync = errors.New("shell out of sync after a timed out command")
)

// sshTransport keeps one interactive shell open on the switch.
type sshTransport struct {
	target  Target
	log     zerolog.Logger
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser

	chunks    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	pending bytes.Buffer
	prompt  string
	// set once a command timed out; the device reply may still arrive
	stale bool
}

// DialSSH authenticates against the target and opens an interactive shell
// with paging disabled. It logs through the global zerolog logger.
func DialSSH(target Target) (Transport, error) {
	return dialSSH(target, log.Logger)
}

// NewSSHDialer returns a DialFunc like DialSSH that logs to logger.
func NewSSHDialer(logger zerolog.Logger) DialFunc {
	return func(target Target) (Transport, error) {
		return dialSSH(target, logger)
	}
}

func dialSSH(target Target, logger zerolog.Logger) (Transport, error) {
	target = target.withDefaults()
	host := target.Address

	sshConfig, err := clientConfig(target)
	if err != nil {
		return nil, &Error{Kind: KindOther, Host: host, Op: "dial", Err: err}
	}

	conn, err := net.DialTimeout("tcp", target.addr(), target.ConnectTimeout)
	if err != nil {
		return nil, classify(host, "dial", fmt.Errorf("failed to dial SSH to %s: %w", host, err))
	}

	// The handshake gets the same budget as the connect.
	deadline := time.Now().Add(target.ConnectTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, classify(host, "dial", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, target.addr(), sshConfig)
	if err != nil {
		conn.Close()
		err = classify(host, "handshake", err)
		if KindOf(err) != KindAuthentication && !time.Now().Before(deadline) {
			err = &Error{Kind: KindTimeout, Host: host, Op: "handshake", Err: errors.Unwrap(err)}
		}
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, classify(host, "dial", err)
	}

	t := &sshTransport{
		target: target,
		log:    logger,
		client: ssh.NewClient(c, chans, reqs),
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	if err := t.open(); err != nil {
		t.Close()
		return nil, err
	}
	logger.Debug().Str("host", host).Str("username", target.Username).Msg("opened SSH session")
	return t, nil
}

func clientConfig(target Target) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if target.KnownHostsFile != "" {
		cb, err := knownhosts.New(target.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", target.KnownHostsFile, err)
		}
		hostKeyCallback = cb
	}

	password := target.Password
	return &ssh.ClientConfig{
		User: target.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// Some IOS images only offer keyboard-interactive.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         target.ConnectTimeout,
		Config: ssh.Config{
			Ciphers: []string{
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"chacha20-poly1305@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				// older switches only offer CBC
				"aes128-cbc",
			},
			KeyExchanges: []string{
				"curve25519-sha256",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group14-sha256",
				// legacy
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
			},
		},
	}, nil
}

func (t *sshTransport) open() error {
	host := t.target.Address

	session, err := t.client.NewSession()
	if err != nil {
		return classify(host, "open", fmt.Errorf("failed to create session: %w", err))
	}
	t.session = session

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 80, 200, modes); err != nil {
		return classify(host, "open", fmt.Errorf("request for pseudo-terminal failed: %w", err))
	}

	t.stdin, err = session.StdinPipe()
	if err != nil {
		return classify(host, "open", fmt.Errorf("unable to setup stdin: %w", err))
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return classify(host, "open", fmt.Errorf("unable to setup stdout: %w", err))
	}
	if err := session.Shell(); err != nil {
		return classify(host, "open", fmt.Errorf("failed to start shell: %w", err))
	}

	go t.readLoop(stdout)

	out, err := t.readUntil("open", promptPattern, t.target.CommandTimeout)
	if err != nil {
		return err
	}
	t.notePrompt(out)

	// Prevents paging '--More--' prompts
	out, err = t.command("open", "terminal length 0", promptPattern, t.target.CommandTimeout)
	if err != nil {
		return err
	}
	t.notePrompt(out)
	return nil
}

// readLoop drains stdout until the channel closes.
func (t *sshTransport) readLoop(stdout io.Reader) {
	defer close(t.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case t.chunks <- chunk:
			case <-t.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (t *sshTransport) readUntil(op string, pattern *regexp.Regexp, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if loc := pattern.FindIndex(t.pending.Bytes()); loc != nil {
			return string(t.pending.Next(loc[1])), nil
		}
		select {
		case chunk, ok := <-t.chunks:
			if !ok {
				return "", &Error{Kind: KindClosed, Host: t.target.Address, Op: op, Err: io.EOF}
			}
			t.pending.Write(chunk)
		case <-timer.C:
			return "", &Error{
				Kind: KindTimeout,
				Host: t.target.Address,
				Op:   op,
				Err:  fmt.Errorf("no response after %s", timeout),
			}
		}
	}
}

// discard drops output nobody asked for, e.g. left over from a timed out call.
func (t *sshTransport) discard() {
	t.pending.Reset()
	for {
		select {
		case _, ok := <-t.chunks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// usable fails with KindClosed once the shell can no longer be trusted to
// answer the next command.
func (t *sshTransport) usable(op string) error {
	if t.stale {
		return &Error{Kind: KindClosed, Host: t.target.Address, Op: op, Err: errOutOfSync}
	}
	return nil
}

func (t *sshTransport) command(op, line string, pattern *regexp.Regexp, timeout time.Duration) (string, error) {
	if err := t.usable(op); err != nil {
		return "", err
	}
	t.discard()
	if _, err := fmt.Fprintf(t.stdin, "%s\n", line); err != nil {
		return "", classify(t.target.Address, op, fmt.Errorf("failed to write to stdin: %w", err))
	}
	out, err := t.readUntil(op, pattern, timeout)
	if KindOf(err) == KindTimeout {
		// A late reply would be read as the answer to the next command.
		t.stale = true
		t.log.Warn().Str("host", t.target.Address).Str("op", op).Msg("command timed out, closing SSH session")
		t.Close()
	}
	return out, err
}

func (t *sshTransport) notePrompt(out string) {
	if m := promptPattern.FindStringSubmatch(out); m != nil {
		t.prompt = m[1]
	}
}

func (t *sshTransport) Enable(opts ...Option) (string, error) {
	if err := t.usable("enable"); err != nil {
		return "", err
	}
	if strings.HasSuffix(t.prompt, "#") {
		return "", nil
	}
	o := newCallOptions(t.target, opts)

	out, err := t.command("enable", "enable", passwordOrPromptPattern, o.timeout)
	if err != nil {
		return "", err
	}
	if passwordPattern.MatchString(out) {
		more, err := t.command("enable", o.secret, promptPattern, o.timeout)
		if err != nil {
			return "", err
		}
		out += more
	}
	t.notePrompt(out)
	if !strings.HasSuffix(t.prompt, "#") {
		return normalizeOutput(out), &Error{
			Kind: KindOther,
			Host: t.target.Address,
			Op:   "enable",
			Err:  errors.New("failed to enter privileged mode"),
		}
	}
	return normalizeOutput(out), nil
}

func (t *sshTransport) ConfigMode(opts ...Option) (string, error) {
	if err := t.usable("config_mode"); err != nil {
		return "", err
	}
	if strings.Contains(t.prompt, "(config") {
		return "", nil
	}
	o := newCallOptions(t.target, opts)

	out, err := t.command("config_mode", "configure terminal", promptPattern, o.timeout)
	if err != nil {
		return "", err
	}
	t.notePrompt(out)
	if !strings.Contains(t.prompt, "(config") {
		return normalizeOutput(out), &Error{
			Kind: KindOther,
			Host: t.target.Address,
			Op:   "config_mode",
			Err:  errors.New("failed to enter configuration mode"),
		}
	}
	return normalizeOutput(out), nil
}

func (t *sshTransport) SendCommand(command string, opts ...Option) (string, error) {
	o := newCallOptions(t.target, opts)
	pattern := promptPattern
	if o.expect != nil {
		pattern = o.expect
	}

	out, err := t.command("send_command", command, pattern, o.timeout)
	if err != nil {
		return "", err
	}
	if o.expect == nil {
		t.notePrompt(out)
	}
	if !o.stripPrompt {
		return normalizeOutput(out), nil
	}
	return stripOutput(out, command), nil
}

func (t *sshTransport) SendConfigSet(commands []string, opts ...Option) (string, error) {
	o := newCallOptions(t.target, opts)

	var transcript strings.Builder
	out, err := t.ConfigMode(opts...)
	transcript.WriteString(out)
	if err != nil {
		return normalizeOutput(transcript.String()), err
	}

	for _, cmd := range commands {
		out, err := t.command("send_config_set", cmd, promptPattern, o.timeout)
		transcript.WriteString(out)
		if err != nil {
			return normalizeOutput(transcript.String()), err
		}
		t.notePrompt(out)
	}

	if o.exitConfigMode {
		out, err := t.command("send_config_set", "end", promptPattern, o.timeout)
		transcript.WriteString(out)
		if err != nil {
			return normalizeOutput(transcript.String()), err
		}
		t.notePrompt(out)
	}
	return normalizeOutput(transcript.String()), nil
}

// Close closes the underlying SSH connection
func (t *sshTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		if t.session != nil {
			t.session.Close()
		}
		if err := t.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = err
		}
	})
	return t.closeErr
}

func normalizeOutput(out string) string {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	return strings.ReplaceAll(out, "\r", "")
}

// stripOutput removes the echoed command line and the trailing prompt.
func stripOutput(out, command string) string {
	lines := strings.Split(normalizeOutput(out), "\n")
	if len(lines) > 0 && strings.HasSuffix(strings.TrimSpace(lines[0]), command) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && promptPattern.MatchString("\n"+lines[n-1]) {
		lines = lines[:n-1]
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
