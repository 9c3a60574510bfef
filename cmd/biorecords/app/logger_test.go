package app

import "testing"

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{name: "default", config: &Config{}, expected: "info"},
		{name: "verbose sets debug", config: &Config{Verbose: true}, expected: "debug"},
		{name: "quiet sets warn", config: &Config{Quiet: true}, expected: "warn"},
		{name: "flag overrides verbose", config: &Config{LogLevel: "error", Verbose: true}, expected: "error"},
		{name: "both shortcuts prefer quiet", config: &Config{Verbose: true, Quiet: true}, expected: "warn"},
		{name: "environment level", config: &Config{DefaultLogLevel: "debug"}, expected: "debug"},
		{name: "shortcut overrides environment", config: &Config{DefaultLogLevel: "trace", Quiet: true}, expected: "warn"},
		{name: "invalid flag falls back", config: &Config{LogLevel: "loud"}, expected: "info"},
		{name: "invalid environment falls back", config: &Config{DefaultLogLevel: "loud"}, expected: "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineLogLevel(tt.config); got != tt.expected {
				t.Errorf("determineLogLevel() = %q, want %q", got, tt.expected)
			}
		})
	}
}
