// Package config centralizes the daemon's command-line surface: flag
// parsing plus the small amount of env-var fallback and validation a
// real entrypoint needs.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// DefaultPeerPort is the port a host daemon listens on when none is
// given. It is not applied to a --peer address: a joiner dials that
// address exactly as given.
const DefaultPeerPort = 4242

// DefaultMaxDocumentSize guards against unbounded growth from a
// misbehaving editor; the limit is counted in runes and is not applied
// to changes arriving from a peer. 16Mi runes comfortably exceeds any
// plaintext document this daemon is meant to serve.
const DefaultMaxDocumentSize = 16 << 20

// Config is the fully resolved set of settings main needs to start
// the daemon.
type Config struct {
	Port            int
	Peer            string
	SocketPath      string
	FilePath        string
	LogLevel        string
	MaxDocumentSize int
}

// IsHost reports whether this daemon should bind and accept peer
// connections (true) or dial a single configured peer (false) — the
// role decision spec.md §4.G calls for: host iff no peer address was
// supplied.
func (c Config) IsHost() bool {
	return c.Peer == ""
}

// Parse reads flags from args (os.Args[1:] in production; a literal
// slice in tests) and validates the result.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("collabd", flag.ContinueOnError)
	port := fs.Int("port", defaultPort(), "port to listen on when acting as host")
	peer := fs.String("peer", "", "host:port of a peer to join; host role if empty")
	socketPath := fs.String("socket-path", defaultSocketPath(), "Unix-domain socket path for the editor endpoint")
	filePath := fs.String("file", "", "path to the persisted plaintext document")
	logLevel := fs.String("log-level", envOr("LOG_LEVEL", "info"), "log level: error, info, or debug")
	maxDocSize := fs.Int("max-document-size", envIntOr("MAX_DOCUMENT_SIZE", DefaultMaxDocumentSize), "maximum document size in runes that an editor's edit may produce")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:            *port,
		Peer:            *peer,
		SocketPath:      *socketPath,
		FilePath:        *filePath,
		LogLevel:        *logLevel,
		MaxDocumentSize: *maxDocSize,
	}
	if cfg.SocketPath == "" {
		return Config{}, fmt.Errorf("config: --socket-path must not be empty")
	}
	if cfg.FilePath == "" {
		return Config{}, fmt.Errorf("config: --file must not be empty")
	}
	if cfg.MaxDocumentSize <= 0 {
		return Config{}, fmt.Errorf("config: --max-document-size must be positive")
	}
	return cfg, nil
}

// defaultPort lets --port fall back to an env var the same way
// --log-level and --max-document-size do.
func defaultPort() int {
	return envIntOr("PORT", DefaultPeerPort)
}

func defaultSocketPath() string {
	return envOr("SOCKET_PATH", "/tmp/collabd.sock")
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envIntOr(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
