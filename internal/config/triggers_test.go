package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveTriggers_Defaults(t *testing.T) {
	got, err := ResolveTriggers(&Config{})
	if err != nil {
		t.Fatalf("ResolveTriggers: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("default table size: got %d", len(got))
	}
	for _, phrase := range []string{"open browser", "turn off screen", "say hello"} {
		if got[phrase] == "" {
			t.Errorf("default trigger %q missing", phrase)
		}
	}
}

func TestResolveTriggers_FileOverridesInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	const body = `
say hello: echo from-file
lock screen: loginctl lock-session
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &Config{
		Triggers:     map[string]string{"say hello": "echo inline", "open door": "echo door"},
		TriggersFile: path,
	}
	got, err := ResolveTriggers(cfg)
	if err != nil {
		t.Fatalf("ResolveTriggers: %v", err)
	}
	if got["say hello"] != "echo from-file" {
		t.Errorf("file entry did not override inline: %q", got["say hello"])
	}
	if got["open door"] != "echo door" {
		t.Errorf("inline-only entry lost: %q", got["open door"])
	}
	if got["lock screen"] != "loginctl lock-session" {
		t.Errorf("file-only entry lost: %q", got["lock screen"])
	}
}

func TestResolveTriggers_JSONFile(t *testing.T) {
	// Trigger files in the original JSON shape load through the YAML
	// parser unchanged.
	path := filepath.Join(t.TempDir(), "triggers.json")
	const body = `{"open browser": "xdg-open https://example.com"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ResolveTriggers(&Config{TriggersFile: path})
	if err != nil {
		t.Fatalf("ResolveTriggers: %v", err)
	}
	if got["open browser"] != "xdg-open https://example.com" {
		t.Errorf("json trigger: %q", got["open browser"])
	}
}

func TestResolveTriggers_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		triggers map[string]string
		want     string
	}{
		{
			name:     "empty command",
			triggers: map[string]string{"say hello": ""},
			want:     "empty command",
		},
		{
			name:     "empty phrase",
			triggers: map[string]string{"": "echo hi"},
			want:     "empty phrase",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveTriggers(&Config{Triggers: tt.triggers})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestResolveTriggers_MissingFile(t *testing.T) {
	cfg := &Config{TriggersFile: filepath.Join(t.TempDir(), "absent.yaml")}
	if _, err := ResolveTriggers(cfg); err == nil {
		t.Fatal("expected error for missing triggers file")
	}
}

func TestResolveTriggers_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("- just\n- a\n- list\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ResolveTriggers(&Config{TriggersFile: path}); err == nil {
		t.Fatal("expected error for non-map triggers file")
	}
}
