package config

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTriggers is the built-in trigger table used when no triggers are
// configured. Commands target a typical Linux desktop.
func DefaultTriggers() map[string]string {
	return map[string]string{
		"open browser":    "xdg-open https://www.wikipedia.org",
		"turn off screen": "bash -lc 'xset dpms force off'",
		"say hello":       `bash -lc 'notify-send "Trigger activated" "Hello from voxhook"'`,
	}
}

// ResolveTriggers assembles the effective trigger table from cfg: inline
// triggers, then entries from triggers_file on top, then the built-in
// defaults when both sources are empty. Keys and commands must be
// non-empty strings.
func ResolveTriggers(cfg *Config) (map[string]string, error) {
	out := make(map[string]string, len(cfg.Triggers))
	maps.Copy(out, cfg.Triggers)

	if cfg.TriggersFile != "" {
		fromFile, err := loadTriggersFile(cfg.TriggersFile)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, fromFile)
	}

	if len(out) == 0 {
		return DefaultTriggers(), nil
	}

	for phrase, command := range out {
		if phrase == "" {
			return nil, fmt.Errorf("triggers: empty phrase")
		}
		if command == "" {
			return nil, fmt.Errorf("triggers: phrase %q has an empty command", phrase)
		}
	}
	return out, nil
}

// loadTriggersFile reads a flat string-to-string map from path. YAML is a
// superset of JSON, so trigger files in either format load identically.
func loadTriggersFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("triggers: read %q: %w", path, err)
	}
	var out map[string]string
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("triggers: parse %q: %w", path, err)
	}
	return out, nil
}
