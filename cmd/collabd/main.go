// Command collabd is the daemon entrypoint: it resolves the host/joiner
// role, loads or creates the persisted file, and wires the Document
// Actor to the editor endpoint and the peer connection.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabd/actor"
	"collabd/editorconn"
	"collabd/internal/config"
	"collabd/internal/logging"
	"collabd/peersync"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Init(cfg.LogLevel)

	nodeID := rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1<<31-1) + 1

	absFilePath, err := absPath(cfg.FilePath)
	if err != nil {
		logging.Fatal("resolving --file path", err)
	}

	initialText, err := loadOrCreateFile(cfg, absFilePath)
	if err != nil {
		logging.Fatal("loading the persisted document on startup", err)
	}

	doc := actor.New(nodeID, absFilePath, initialText, cfg.MaxDocumentSize)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actorStop := make(chan struct{})
	go doc.Run(actorStop)
	defer close(actorStop)

	go func() {
		uri := "file://" + absFilePath
		if err := editorconn.Listen(ctx, cfg.SocketPath, uri, doc); err != nil {
			logging.Fatal("binding the editor socket", err)
		}
	}()

	go func() {
		if cfg.IsHost() {
			addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
			if err := peersync.Listen(ctx, addr, doc); err != nil {
				logging.Fatal("binding the peer listener", err)
			}
			return
		}
		if err := peersync.Dial(ctx, cfg.Peer, doc); err != nil {
			logging.Error("peersync: could not connect to %s: %v", cfg.Peer, err)
		}
	}()

	waitForShutdownSignal()
	logging.Info("shutting down")
	cancel()
}

func absPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if path[0] == '/' {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return wd + "/" + path, nil
}

// loadOrCreateFile reads the persisted document when acting as host —
// a joiner starts empty and lets peer sync populate it (spec.md
// §4.G's startup sequencing) — creating an empty file if none exists.
func loadOrCreateFile(cfg config.Config, absFilePath string) (string, error) {
	if !cfg.IsHost() {
		if _, err := os.Stat(absFilePath); os.IsNotExist(err) {
			if err := os.WriteFile(absFilePath, nil, 0o644); err != nil {
				return "", err
			}
		}
		return "", nil
	}

	content, err := os.ReadFile(absFilePath)
	if os.IsNotExist(err) {
		if err := os.WriteFile(absFilePath, nil, 0o644); err != nil {
			return "", err
		}
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func waitForShutdownSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
