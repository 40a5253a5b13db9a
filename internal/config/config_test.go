package config

import "testing"

func TestParseHostRoleWhenNoPeerGiven(t *testing.T) {
	cfg, err := Parse([]string{"--socket-path", "/tmp/a.sock", "--file", "/tmp/a.txt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.IsHost() {
		t.Fatal("expected host role when --peer is empty")
	}
	if cfg.Port != DefaultPeerPort {
		t.Fatalf("Port = %d, want default %d", cfg.Port, DefaultPeerPort)
	}
}

func TestParseJoinerRoleWhenPeerGiven(t *testing.T) {
	cfg, err := Parse([]string{
		"--socket-path", "/tmp/a.sock",
		"--file", "/tmp/a.txt",
		"--peer", "example.com:4242",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.IsHost() {
		t.Fatal("expected joiner role when --peer is set")
	}
}

func TestParseRejectsEmptySocketPath(t *testing.T) {
	if _, err := Parse([]string{"--socket-path", "", "--file", "/tmp/a.txt"}); err == nil {
		t.Fatal("expected an error for an empty --socket-path")
	}
}

func TestParseRejectsNonPositiveMaxDocumentSize(t *testing.T) {
	_, err := Parse([]string{
		"--socket-path", "/tmp/a.sock",
		"--file", "/tmp/a.txt",
		"--max-document-size", "0",
	})
	if err == nil {
		t.Fatal("expected an error for a non-positive --max-document-size")
	}
}
