package control

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		token   string
		want    Message
		wantErr error
	}{
		{
			name: "ctrl pause",
			raw:  "CTRL:PAUSE",
			want: Message{Verb: VerbCtrl, Payload: "PAUSE"},
		},
		{
			name: "verb case-insensitive",
			raw:  "ctrl:RESUME",
			want: Message{Verb: VerbCtrl, Payload: "RESUME"},
		},
		{
			name: "trigger with spaces",
			raw:  "TRIGGER:open browser",
			want: Message{Verb: VerbTrigger, Payload: "open browser"},
		},
		{
			name: "cmd payload keeps colons",
			raw:  "CMD:echo a:b:c",
			want: Message{Verb: VerbCmd, Payload: "echo a:b:c"},
		},
		{
			name:  "token accepted",
			raw:   "s3cret:TRIGGER:say hello",
			token: "s3cret",
			want:  Message{Verb: VerbTrigger, Payload: "say hello"},
		},
		{
			name:    "token missing",
			raw:     "TRIGGER:say hello",
			token:   "s3cret",
			wantErr: ErrBadToken,
		},
		{
			name:    "token wrong",
			raw:     "nope:TRIGGER:say hello",
			token:   "s3cret",
			wantErr: ErrBadToken,
		},
		{
			name:    "token is case-sensitive",
			raw:     "S3CRET:CTRL:PAUSE",
			token:   "s3cret",
			wantErr: ErrBadToken,
		},
		{
			// echo without -n appends a newline; the datagram must still
			// parse as an exact gate command.
			name: "trailing newline trimmed",
			raw:  "CTRL:PAUSE\n",
			want: Message{Verb: VerbCtrl, Payload: "PAUSE"},
		},
		{
			name:  "newline trimmed before token check",
			raw:   " s3cret:CTRL:RESUME\r\n",
			token: "s3cret",
			want:  Message{Verb: VerbCtrl, Payload: "RESUME"},
		},
		{
			name: "payload whitespace trimmed",
			raw:  "TRIGGER: open browser \n",
			want: Message{Verb: VerbTrigger, Payload: "open browser"},
		},
		{
			name:    "unknown verb",
			raw:     "NOPE:payload",
			wantErr: ErrMalformed,
		},
		{
			name:    "no separator",
			raw:     "garbage",
			wantErr: ErrMalformed,
		},
		{
			name:    "empty datagram",
			raw:     "",
			wantErr: ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw, tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

// recordingHandler collects handler invocations for assertions.
type recordingHandler struct {
	mu       sync.Mutex
	pauses   int
	resumes  int
	triggers []string
	commands []string
}

func (h *recordingHandler) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauses++
}

func (h *recordingHandler) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resumes++
}

func (h *recordingHandler) Trigger(phrase string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.triggers = append(h.triggers, phrase)
}

func (h *recordingHandler) Command(shell string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, shell)
}

func (h *recordingHandler) snapshot() recordingHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return recordingHandler{
		pauses:   h.pauses,
		resumes:  h.resumes,
		triggers: append([]string(nil), h.triggers...),
		commands: append([]string(nil), h.commands...),
	}
}

// startListener binds a loopback listener and returns it with a sender
// function and a stop function that waits for Run to exit.
func startListener(t *testing.T, handler Handler, opts ...Option) (send func(string), stop func()) {
	t.Helper()

	l, err := Listen("127.0.0.1:0", handler, opts...)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}

	send = func(msg string) {
		if _, err := conn.Write([]byte(msg)); err != nil {
			t.Errorf("send %q: %v", msg, err)
		}
	}
	stop = func() {
		conn.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("listener did not stop")
		}
	}
	return send, stop
}

// waitFor polls cond until it passes or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestListener_GateAndTrigger(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	send, stop := startListener(t, h)
	defer stop()

	send("CTRL:PAUSE")
	send("ctrl:RESUME")
	send("trigger:open browser")

	waitFor(t, func() bool {
		s := h.snapshot()
		return s.pauses == 1 && s.resumes == 1 && len(s.triggers) == 1
	})
	if got := h.snapshot(); got.triggers[0] != "open browser" {
		t.Errorf("trigger payload: got %q", got.triggers[0])
	}
}

func TestListener_TokenEnforcement(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	send, stop := startListener(t, h, WithToken("s3cret"))
	defer stop()

	// Unauthenticated datagrams of every verb must cause no state change.
	send("CTRL:PAUSE")
	send("TRIGGER:open browser")
	send("CMD:rm -rf /")
	send("wrong:CTRL:PAUSE")
	// Then one authenticated datagram proves the listener is alive.
	send("s3cret:CTRL:PAUSE")

	waitFor(t, func() bool { return h.snapshot().pauses == 1 })
	s := h.snapshot()
	if s.resumes != 0 || len(s.triggers) != 0 || len(s.commands) != 0 {
		t.Errorf("unauthenticated datagrams reached the handler: %+v", &s)
	}
}

func TestListener_CmdGating(t *testing.T) {
	t.Parallel()

	t.Run("denied by default", func(t *testing.T) {
		t.Parallel()
		h := &recordingHandler{}
		send, stop := startListener(t, h)
		defer stop()

		send("CMD:echo hi")
		send("CTRL:PAUSE") // sentinel to prove processing happened

		waitFor(t, func() bool { return h.snapshot().pauses == 1 })
		if got := h.snapshot(); len(got.commands) != 0 {
			t.Errorf("CMD executed while disabled: %v", got.commands)
		}
	})

	t.Run("allowed when opted in", func(t *testing.T) {
		t.Parallel()
		h := &recordingHandler{}
		send, stop := startListener(t, h, WithAllowCmd(true))
		defer stop()

		send("CMD:echo hi")
		waitFor(t, func() bool { return len(h.snapshot().commands) == 1 })
		if got := h.snapshot(); got.commands[0] != "echo hi" {
			t.Errorf("command payload: got %q", got.commands[0])
		}
	})
}

func TestListener_ObserverStatuses(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		statuses []Status
	)
	h := &recordingHandler{}
	send, stop := startListener(t, h,
		WithToken("tok"),
		WithObserver(func(_ Verb, s Status) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		}))
	defer stop()

	// In order: bad token, malformed, unknown gate command, denied CMD,
	// accepted PAUSE.
	send("CTRL:PAUSE")
	send("tok:JUNK:x")
	send("tok:CTRL:sleep")
	send("tok:CMD:echo hi")
	send("tok:CTRL:PAUSE")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusBadToken, StatusIgnored, StatusIgnored, StatusDenied, StatusOK}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("status[%d] = %q, want %q", i, statuses[i], want[i])
		}
	}
}

func TestNotifier_TriggerFired(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	n, err := Dial(conn.LocalAddr().String(), "tok")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer n.Close()

	n.TriggerFired("say hello")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	nread, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:nread]); got != "tok:TRIGGER:say hello" {
		t.Errorf("notification: got %q", got)
	}
}

func TestNotifier_NoToken(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	n, err := Dial(conn.LocalAddr().String(), "")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer n.Close()

	n.TriggerFired("open browser")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	nread, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:nread]); got != "TRIGGER:open browser" {
		t.Errorf("notification: got %q", got)
	}
}
