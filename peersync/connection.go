// Package peersync is the Peer Sync Engine: one reader/writer/sync
// task trio per peer connection, wrapping a length-prefixed TCP
// transport around the CRDT's sync protocol and reacting to the
// Document Actor's change-ping broadcast.
package peersync

import (
	"context"
	"errors"
	"io"
	"net"

	"collabd/actor"
	"collabd/internal/logging"
	"collabd/wireframe"

	"golang.org/x/sync/errgroup"
)

// writerQueueCapacity bounds how many outgoing sync messages can be
// pending for a slow peer before the sync goroutine blocks enqueueing
// the next one.
const writerQueueCapacity = 16

// Serve drives one peer connection to completion: it blocks until the
// connection closes (clean disconnect or a transient I/O or protocol
// error), then returns. A non-nil error identifies why the connection
// ended; callers should log it and move on rather than propagate it,
// per the daemon's "a bad peer connection never takes down the
// process" policy.
func Serve(ctx context.Context, conn net.Conn, doc *actor.Actor) error {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	incoming := make(chan []byte)
	outgoing := make(chan []byte, writerQueueCapacity)

	// Any of the three tasks finishing — even cleanly, as on a
	// disconnected peer's read loop hitting EOF — tears down the
	// connection for the other two, mirroring the cancellation cascade
	// a disconnected peer should trigger.
	var g errgroup.Group
	runTask := func(fn func() error) {
		g.Go(func() error {
			defer cancel()
			return fn()
		})
	}
	runTask(func() error { return readLoop(connCtx, conn, incoming) })
	runTask(func() error { return writeLoop(connCtx, conn, outgoing) })
	runTask(func() error { return runSync(connCtx, doc, incoming, outgoing) })

	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func readLoop(ctx context.Context, conn net.Conn, incoming chan<- []byte) error {
	for {
		payload, err := wireframe.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		select {
		case incoming <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeLoop(ctx context.Context, conn net.Conn, outgoing <-chan []byte) error {
	for {
		select {
		case payload, ok := <-outgoing:
			if !ok {
				return nil
			}
			if err := wireframe.WriteFrame(conn, payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runSync owns this peer's sync-state watermark exclusively: receives
// from the reader and generations triggered by the Actor's change-ping
// alternate through this one goroutine, so they never race for the
// same per-peer state.
func runSync(ctx context.Context, doc *actor.Actor, incoming <-chan []byte, outgoing chan<- []byte) error {
	peerWatermark := map[int]uint64{}
	changed := doc.Subscribe(ctx.Done())

	generate := func() error {
		msg, ok := doc.GenerateSyncMessage(peerWatermark)
		if !ok {
			return nil
		}
		payload, err := encodeSyncMessage(msg)
		if err != nil {
			return err
		}
		select {
		case outgoing <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	// Catch the peer up on whatever the replica already holds before
	// waiting on the first change-ping.
	if err := generate(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-incoming:
			if !ok {
				return nil
			}
			msg, err := decodeSyncMessage(payload)
			if err != nil {
				return err
			}
			newWatermark, err := doc.ReceiveSyncMessage(msg, peerWatermark)
			if err != nil {
				return err
			}
			peerWatermark = newWatermark
		case _, ok := <-changed:
			if !ok {
				return nil
			}
			if err := generate(); err != nil {
				return err
			}
		}
	}
}

// Dial opens a single outbound connection to a host daemon (the
// joiner role) and serves it until it closes.
func Dial(ctx context.Context, addr string, doc *actor.Actor) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	logging.Info("peersync: connected to %s", addr)
	return Serve(ctx, conn, doc)
}

// Listen accepts peer connections on addr (the host role, default
// port 4242) and serves each on its own goroutine until ctx is
// cancelled. A single misbehaving connection never stops the accept
// loop.
func Listen(ctx context.Context, addr string, doc *actor.Actor) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logging.Info("peersync: listening on %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		logging.Info("peersync: accepted connection from %s", conn.RemoteAddr())
		go func() {
			if err := Serve(ctx, conn, doc); err != nil {
				logging.Error("peersync: connection from %s ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}
