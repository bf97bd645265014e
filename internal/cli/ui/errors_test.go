package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
	}{
		{
			name: "with context",
			opts: ErrorOptions{
				Context: "model not found",
				Problem: "Cannot find model 'usr'.",
				NoColor: true,
			},
			contains: []string{"❌", "MODEL NOT FOUND: Cannot find model 'usr'."},
		},
		{
			name: "with suggestions and help",
			opts: ErrorOptions{
				Problem:      "bad input",
				Suggestions:  []string{"user", "post"},
				HelpCommands: []string{"List models: activerow models"},
				NoColor:      true,
			},
			contains: []string{"Did you mean: user, post?", "→ List models: activerow models"},
		},
		{
			name:     "warning",
			opts:     ErrorOptions{Level: ErrorLevelWarning, Problem: "careful", NoColor: true},
			contains: []string{"⚠️", "careful"},
		},
		{
			name:     "info",
			opts:     ErrorOptions{Level: ErrorLevelInfo, Problem: "note", NoColor: true},
			contains: []string{"ℹ️", "note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatError(tt.opts)
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, result)
				}
			}
		})
	}
}

func TestModelNotFoundError(t *testing.T) {
	result := ModelNotFoundError("usr", []string{"user", "account"}, true)

	for _, want := range []string{"MODEL NOT FOUND", "'usr'", "Did you mean: user?", "activerow models"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, result)
		}
	}
}

func TestConfigError(t *testing.T) {
	result := ConfigError("database.url is required", true)
	if !strings.Contains(result, "CONFIGURATION ERROR: database.url is required") {
		t.Errorf("unexpected output:\n%s", result)
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{Problem: "boom", NoColor: true})
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected output to contain boom, got %q", buf.String())
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "Deleted user 1", true)
	if buf.String() != "✓ Deleted user 1\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWarning(t *testing.T) {
	if result := Warning("no models declared", true); !strings.Contains(result, "⚠️ no models declared") {
		t.Errorf("unexpected output %q", result)
	}
}
