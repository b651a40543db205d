// Package control implements the UDP control plane: an authenticated
// datagram listener for remote pause/resume, direct trigger firing and
// (opt-in) raw command execution, plus an outbound notifier that announces
// locally fired triggers to a remote peer.
//
// The wire format is single-datagram UTF-8 text with no framing:
//
//	[<token>:]CTRL:PAUSE
//	[<token>:]CTRL:RESUME
//	[<token>:]TRIGGER:<phrase>
//	[<token>:]CMD:<shell text>
//
// When a shared token is configured every datagram must carry the
// "<token>:" prefix; datagrams without it are dropped without reply. Verbs
// match case-insensitively. Surrounding whitespace is trimmed from the
// datagram and from the payload, so shell clients that append a newline
// (echo piped into nc) work; the payload is otherwise taken verbatim.
package control

import (
	"errors"
	"strings"
)

// Verb identifies the action class of a control message.
type Verb string

const (
	// VerbCtrl carries a gate command (PAUSE or RESUME).
	VerbCtrl Verb = "CTRL"
	// VerbTrigger requests firing a trigger phrase directly.
	VerbTrigger Verb = "TRIGGER"
	// VerbCmd requests execution of raw shell text.
	VerbCmd Verb = "CMD"
)

// Gate command payloads. Payloads are case-sensitive.
const (
	CtrlPause  = "PAUSE"
	CtrlResume = "RESUME"
)

// Parse failure modes. Both lead to the datagram being dropped; they are
// distinguished so the listener can count them separately.
var (
	// ErrBadToken reports a datagram that does not carry the configured
	// shared token prefix.
	ErrBadToken = errors.New("control: missing or wrong token prefix")

	// ErrMalformed reports a datagram whose verb is unknown or whose
	// structure does not match the protocol.
	ErrMalformed = errors.New("control: malformed message")
)

// Message is a parsed, authenticated control datagram.
type Message struct {
	Verb    Verb
	Payload string
}

// Parse validates the token prefix of raw and splits the remainder into a
// verb and payload. Whitespace around the datagram and the payload is
// trimmed first. An empty token disables authentication.
func Parse(raw, token string) (Message, error) {
	raw = strings.TrimSpace(raw)
	if token != "" {
		rest, ok := strings.CutPrefix(raw, token+":")
		if !ok {
			return Message{}, ErrBadToken
		}
		raw = rest
	}

	verb, payload, ok := strings.Cut(raw, ":")
	if !ok {
		return Message{}, ErrMalformed
	}
	payload = strings.TrimSpace(payload)
	switch Verb(strings.ToUpper(verb)) {
	case VerbCtrl:
		return Message{Verb: VerbCtrl, Payload: payload}, nil
	case VerbTrigger:
		return Message{Verb: VerbTrigger, Payload: payload}, nil
	case VerbCmd:
		return Message{Verb: VerbCmd, Payload: payload}, nil
	default:
		return Message{}, ErrMalformed
	}
}
