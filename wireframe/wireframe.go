// Package wireframe implements the length-prefixed byte-stream framing
// every peer connection speaks: a 4-byte big-endian signed length
// followed by exactly that many bytes of payload. It carries no opinion
// about what the payload means — the Peer Sync Engine decodes it as a
// CRDT sync message.
package wireframe

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds how large a single frame's declared length may be
// before it is treated the same as a negative length: a protocol
// violation rather than a slow read. 64 MiB comfortably exceeds any
// single document's full sync message.
const MaxFrameSize = 64 << 20

// ReadFrame reads one length-prefixed frame from r. If the stream ends
// before the 4-byte length prefix is complete (whether or not any of
// its bytes arrived), the error satisfies errors.Is(err, io.EOF), so
// callers can treat it as "peer disconnected" rather than "peer sent
// garbage". A negative or oversized length is a protocol error, as is
// a payload that ends after some but not all of its bytes; a payload
// that ends before its first byte also satisfies errors.Is(err, io.EOF).
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("wireframe: connection closed mid-length-prefix: %w", io.EOF)
		}
		return nil, err
	}

	length := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if length < 0 || length > MaxFrameSize {
		return nil, fmt.Errorf("wireframe: invalid frame length %d", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wireframe: reading %d-byte payload: %w", length, err)
	}
	return payload, nil
}

// WriteFrame writes payload to w as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("wireframe: payload of %d bytes exceeds the %d-byte frame limit", len(payload), MaxFrameSize)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(int32(len(payload))))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wireframe: writing length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wireframe: writing payload: %w", err)
	}
	return nil
}
