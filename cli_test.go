package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr string
	}{
		{"host", Target{Username: "me", Host: "host", Port: 22}, ""},
		{"alice@host", Target{Username: "alice", Host: "host", Port: 22}, ""},
		{"alice@host:2222", Target{Username: "alice", Host: "host", Port: 2222}, ""},
		{"host:65535", Target{Username: "me", Host: "host", Port: 65535}, ""},
		{"10.0.0.1:22", Target{Username: "me", Host: "10.0.0.1", Port: 22}, ""},
		{"[::1]:2200", Target{Username: "me", Host: "::1", Port: 2200}, ""},
		{"[fe80::1]", Target{Username: "me", Host: "fe80::1", Port: 22}, ""},
		{"::1", Target{Username: "me", Host: "::1", Port: 22}, ""},
		{"host:22a", Target{}, "non-digit port number"},
		{"host:-1", Target{}, "non-digit port number"},
		{"host:0", Target{}, "invalid port number"},
		{"host:65536", Target{}, "invalid port number"},
		{"host:", Target{}, "invalid port number"},
		{"alice@", Target{}, "missing host"},
		{"@host", Target{}, "missing user name"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTarget(tt.in, "me")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseTarget(%q) error = %v, want %q", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTarget(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseTarget(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

// runCLI executes the root command with args and returns its stdout
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")

	out, err := runCLI(t, "--config", path, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Errorf("output = %q, want %q", out, path)
	}
}

func TestCLIConfigShowCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")

	out, err := runCLI(t, "-c", path, "--editor", "nano", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "editor: nano") {
		t.Errorf("output missing editor override:\n%s", out)
	}
	if !strings.Contains(out, "reconnect_delay_seconds: 5") {
		t.Errorf("output missing defaults:\n%s", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestCLIVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "sftpedit "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestCLIRejectsBadTargetBeforeConnecting(t *testing.T) {
	_, err := runCLI(t, "-c", filepath.Join(t.TempDir(), "c.yaml"), "ls", "alice@host:ssh")
	if err == nil || !strings.Contains(err.Error(), "non-digit port number") {
		t.Fatalf("ls error = %v", err)
	}
}

func TestCLIEditRequiresEditor(t *testing.T) {
	_, err := runCLI(t, "-c", filepath.Join(t.TempDir(), "c.yaml"), "edit", "alice@host", "/etc/hosts")
	if err == nil || !strings.Contains(err.Error(), "no text editor configured") {
		t.Fatalf("edit error = %v", err)
	}
}

func TestCLILsRejectsUnknownSortColumn(t *testing.T) {
	_, err := runCLI(t, "-c", filepath.Join(t.TempDir(), "c.yaml"), "ls", "--sort", "colour", "alice@host")
	if err == nil || !strings.Contains(err.Error(), "unknown sort column") {
		t.Fatalf("ls error = %v", err)
	}
}

func TestCLIArgumentCounts(t *testing.T) {
	if _, err := runCLI(t, "ls"); err == nil {
		t.Error("ls without target succeeded")
	}
	if _, err := runCLI(t, "edit", "alice@host"); err == nil {
		t.Error("edit without remote path succeeded")
	}
}
