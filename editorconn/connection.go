package editorconn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"collabd/actor"
	"collabd/internal/logging"
)

// outgoingQueueCapacity bounds how many daemon-originated deltas can
// be pending for a slow editor; Send never blocks the Actor goroutine,
// and a full queue disconnects the editor instead.
const outgoingQueueCapacity = 16

// Connection serves one editor's Unix-domain socket connection: a
// line-delimited JSON reader loop dispatching to the Document Actor,
// and a writer goroutine that implements actor.EditorHandle so the
// Actor can push revisioned deltas back out.
type Connection struct {
	conn net.Conn
	doc  *actor.Actor
	uri  string

	outgoing chan []byte

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// Serve handles one editor connection until it disconnects or
// violates the protocol (spec error taxonomy item 3: close just this
// connection, never the daemon). uri is the file:// URI this
// connection's edits and deltas are scoped to. conn need only be a
// net.Conn — the Unix-domain socket listener hands in a *net.UnixConn,
// which satisfies it directly.
func Serve(ctx context.Context, conn net.Conn, doc *actor.Actor, uri string) error {
	connCtx, cancel := context.WithCancel(ctx)
	c := &Connection{
		conn:     conn,
		doc:      doc,
		uri:      uri,
		outgoing: make(chan []byte, outgoingQueueCapacity),
		cancel:   cancel,
	}
	defer c.close()

	go c.writeLoop(connCtx)
	go func() {
		<-connCtx.Done()
		c.conn.Close()
	}()

	// Register the handle so a reconciler opened over this connection's
	// lifetime has somewhere to push revisioned deltas; the reconciler
	// itself is created/dropped only by explicit open/close messages.
	doc.NewEditorConnection(c)

	return c.readLoop(connCtx)
}

func (c *Connection) readLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := parseLine(line)
		if err != nil {
			return err
		}
		if err := c.dispatch(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (c *Connection) dispatch(msg parsedMessage) error {
	switch msg.method {
	case "open":
		c.doc.Open()
		return nil
	case "close":
		c.doc.Close()
		return nil
	case "edit":
		rd := msg.edit.Delta.toRevisionedEditorDelta()
		if err := c.doc.RevDelta(rd); err != nil {
			return fmt.Errorf("editorconn: rejecting edit: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("editorconn: unhandled method %q", msg.method)
	}
}

func (c *Connection) writeLoop(ctx context.Context) {
	w := bufio.NewWriter(c.conn)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-c.outgoing:
			if !ok {
				return
			}
			if _, err := w.Write(payload); err != nil {
				logging.Error("editorconn: write failed: %v", err)
				c.cancel()
				return
			}
			if err := w.WriteByte('\n'); err != nil {
				logging.Error("editorconn: write failed: %v", err)
				c.cancel()
				return
			}
			if err := w.Flush(); err != nil {
				logging.Error("editorconn: flush failed: %v", err)
				c.cancel()
				return
			}
		}
	}
}

// Send implements actor.EditorHandle: it encodes rd and enqueues it
// for the writer goroutine without blocking. If the outbound queue is
// full, rd is dropped and the connection is cancelled.
func (c *Connection) Send(rd actor.RevisionedEditorDelta) {
	payload, err := encodeOutboundEdit(c.uri, rd)
	if err != nil {
		logging.Error("editorconn: encoding outbound edit: %v", err)
		return
	}
	select {
	case c.outgoing <- payload:
	default:
		logging.Error("editorconn: outbound queue full, disconnecting a slow editor")
		c.cancel()
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}
