// Package editorconn is the local editor-facing endpoint: a
// Unix-domain socket speaking the line-delimited JSON open/close/edit
// protocol, serialized to one connection at a time.
package editorconn

import (
	"context"
	"net"
	"os"

	"collabd/actor"
	"collabd/internal/logging"
)

// Listen binds socketPath (removing a stale socket file left behind
// by a previous, uncleanly-terminated run) and serves editor
// connections one at a time until ctx is cancelled, matching the
// protocol's single-editor-at-a-time design: the next connection is
// not accepted until the previous one's handler returns.
func Listen(ctx context.Context, socketPath, uri string, doc *actor.Actor) error {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return err
		}
	}

	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logging.Info("editorconn: listening on %s", socketPath)
	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		logging.Info("editorconn: editor connected")
		if err := Serve(ctx, conn, doc, uri); err != nil {
			logging.Error("editorconn: connection ended: %v", err)
		}
	}
}
