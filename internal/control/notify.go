package control

import (
	"fmt"
	"log/slog"
	"net"
)

// Notifier announces locally fired triggers to a remote peer as
// "<token:>TRIGGER:<phrase>" datagrams. Send is best-effort: notification
// failures are logged and never propagate into the trigger pipeline.
type Notifier struct {
	conn  net.Conn
	token string
	log   *slog.Logger
}

// Dial resolves addr once and returns a notifier bound to it. token may be
// empty, in which case datagrams carry no prefix.
func Dial(addr, token string) (*Notifier, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("control: dial notify target %s: %w", addr, err)
	}
	return &Notifier{
		conn:  conn,
		token: token,
		log:   slog.With("component", "notify"),
	}, nil
}

// TriggerFired sends a trigger notification for phrase.
func (n *Notifier) TriggerFired(phrase string) {
	msg := string(VerbTrigger) + ":" + phrase
	if n.token != "" {
		msg = n.token + ":" + msg
	}
	if _, err := n.conn.Write([]byte(msg)); err != nil {
		n.log.Warn("trigger notification failed", "phrase", phrase, "error", err)
	}
}

// Close releases the notifier's socket.
func (n *Notifier) Close() error {
	return n.conn.Close()
}
