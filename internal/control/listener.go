package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// readTimeout bounds each socket read so the listener can observe context
// cancellation promptly.
const readTimeout = 250 * time.Millisecond

// maxDatagram is the largest inbound datagram the listener accepts. The
// protocol carries short text commands; anything larger is hostile or lost.
const maxDatagram = 4096

// Handler receives authenticated control-plane actions. Implementations
// must not block: the listener runs them inline on its read loop.
type Handler interface {
	// Pause stops audio processing until Resume.
	Pause()
	// Resume re-enables audio processing.
	Resume()
	// Trigger fires the command mapped to phrase, if any, without
	// cooldown bookkeeping.
	Trigger(phrase string)
	// Command executes raw shell text. Called only when remote commands
	// are enabled.
	Command(shell string)
}

// Status classifies how the listener disposed of a datagram, for metrics.
type Status string

const (
	StatusOK       Status = "ok"
	StatusBadToken Status = "bad_token"
	StatusIgnored  Status = "ignored"
	StatusDenied   Status = "denied"
)

// Option is a functional option for configuring a [Listener].
type Option func(*Listener)

// WithToken sets the shared token every inbound datagram must carry.
// An empty token (the default) disables authentication.
func WithToken(token string) Option {
	return func(l *Listener) {
		l.token = token
	}
}

// WithAllowCmd enables the CMD verb. Disabled by default: remote execution
// of arbitrary shell text is opt-in.
func WithAllowCmd(allow bool) Option {
	return func(l *Listener) {
		l.allowCmd = allow
	}
}

// WithObserver registers a callback invoked once per datagram with the
// parsed verb (empty when parsing failed) and disposition status.
func WithObserver(fn func(verb Verb, status Status)) Option {
	return func(l *Listener) {
		l.observe = fn
	}
}

// Listener serves the UDP control plane. Construct with [Listen], drive
// with [Listener.Run].
type Listener struct {
	conn     net.PacketConn
	handler  Handler
	token    string
	allowCmd bool
	observe  func(Verb, Status)
	log      *slog.Logger
}

// Listen binds a UDP socket on addr and returns a listener that feeds
// parsed messages to handler. The caller owns the returned listener and
// must call Run to start serving; a bind failure is returned so the caller
// can degrade to running without a control plane.
func Listen(addr string, handler Handler, opts ...Option) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("control: bind %s: %w", addr, err)
	}
	l := &Listener{
		conn:    conn,
		handler: handler,
		observe: func(Verb, Status) {},
		log:     slog.With("component", "control"),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Addr returns the bound socket address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run reads datagrams until ctx is done, then closes the socket. It
// returns nil on normal shutdown.
func (l *Listener) Run(ctx context.Context) error {
	defer l.conn.Close()
	l.log.Info("control plane listening", "addr", l.conn.LocalAddr().String())

	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("control: set read deadline: %w", err)
		}
		n, remote, err := l.conn.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control: read: %w", err)
		}
		l.dispatch(string(buf[:n]), remote)
	}
}

// dispatch parses one datagram and invokes the handler action it encodes.
func (l *Listener) dispatch(raw string, remote net.Addr) {
	msg, err := Parse(raw, l.token)
	switch {
	case errors.Is(err, ErrBadToken):
		l.log.Debug("dropped datagram with bad token", "remote", remote.String())
		l.observe("", StatusBadToken)
		return
	case err != nil:
		l.log.Debug("dropped malformed datagram", "remote", remote.String())
		l.observe("", StatusIgnored)
		return
	}

	switch msg.Verb {
	case VerbCtrl:
		switch msg.Payload {
		case CtrlPause:
			l.log.Info("remote pause", "remote", remote.String())
			l.handler.Pause()
		case CtrlResume:
			l.log.Info("remote resume", "remote", remote.String())
			l.handler.Resume()
		default:
			l.log.Debug("ignored gate command", "payload", msg.Payload)
			l.observe(VerbCtrl, StatusIgnored)
			return
		}
		l.observe(VerbCtrl, StatusOK)

	case VerbTrigger:
		l.log.Info("remote trigger", "phrase", msg.Payload, "remote", remote.String())
		l.handler.Trigger(msg.Payload)
		l.observe(VerbTrigger, StatusOK)

	case VerbCmd:
		if !l.allowCmd {
			l.log.Warn("remote command denied", "remote", remote.String())
			l.observe(VerbCmd, StatusDenied)
			return
		}
		l.log.Info("remote command", "remote", remote.String())
		l.handler.Command(msg.Payload)
		l.observe(VerbCmd, StatusOK)
	}
}
