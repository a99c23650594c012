package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel}, // case + trim
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel}, // empty -> info
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel}, // alias
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel}, // default
	}

	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("FirstNonEmpty() = %q; want \"\"", got)
	}
	if got := FirstNonEmpty(" ", "\t", "\n"); got != "" {
		t.Fatalf("FirstNonEmpty(empties) = %q; want \"\"", got)
	}
	if got := FirstNonEmpty("   ", "  hello  ", "world"); got != "  hello  " {
		t.Fatalf("FirstNonEmpty(...) = %q; want %q", got, "  hello  ")
	}
	if got := FirstNonEmpty("alpha", "beta"); got != "alpha" {
		t.Fatalf("FirstNonEmpty(...) = %q; want %q", got, "alpha")
	}
}

func TestSetupLogger(t *testing.T) {
	// Smoke test both writers; failure mode is a panic in zerolog setup.
	SetupLogger(false)
	SetupLogger(true)
}
