package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "MODEL", "TABLE", "KEY")
	table.AddRow("user", "users", "id")
	table.AddRow("account", "accounts", "id")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "MODEL    TABLE     KEY" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "───────  ────────  ───" {
		t.Errorf("unexpected rule %q", lines[1])
	}
	if lines[2] != "user     users     id" {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestTableShortRow(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "A", "B")
	table.AddRow("x")
	table.Render()

	if !strings.HasSuffix(buf.String(), "x  \n") {
		t.Errorf("expected short row padded to the column count, got %q", buf.String())
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	if buf.Len() != 0 {
		t.Errorf("expected no output for a table without headers, got %q", buf.String())
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewKeyValueTable(&buf, true)
	table.AddRow("name", "user")
	table.AddRow("table", "users")
	table.Render()

	expected := "name:  user\ntable: users\n"
	if buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"ab", 4, "ab  "},
		{"abcd", 2, "abcd"},
		{"─", 2, "─ "},
	}
	for _, tt := range tests {
		if got := padRight(tt.in, tt.width); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q; want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
