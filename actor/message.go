package actor

import (
	"collabd/crdt"
	"collabd/ot"
)

// Range is an editor-facing span, 0-indexed by line and column,
// matching the wire protocol's `[line, col]` pairs.
type Range struct {
	AnchorLine, AnchorCol int
	HeadLine, HeadCol     int
}

// RangeReplacement is one element of an editor delta: replace the
// content spanned by Range with Replacement.
type RangeReplacement struct {
	Range       Range
	Replacement string
}

// EditorDelta is an editor-originated or editor-bound change expressed
// against real line/column coordinates — the wire-level sibling of the
// OT reconciler's flattened, offset-only delta form. Conversion between
// the two happens at the Actor boundary, against whatever text snapshot
// the coordinates were computed relative to.
type EditorDelta struct {
	Elements []RangeReplacement
}

// RevisionedEditorDelta pairs an EditorDelta with the revision counter
// that gives it meaning on the wire: `editor_revision` when sent to an
// editor, or the editor's claimed `daemon_revision` when received from
// one.
type RevisionedEditorDelta struct {
	Revision int
	Delta    EditorDelta
}

// EditorHandle is how the Actor pushes daemon-originated changes out to
// one attached editor connection, without needing to know anything
// about sockets or JSON framing.
type EditorHandle interface {
	Send(RevisionedEditorDelta)
}

// message is the sealed set of requests the Actor's single goroutine
// drains from its inbox, one at a time.
type message interface{ isMessage() }

type getContentMsg struct{ reply chan string }

func (getContentMsg) isMessage() {}

type openMsg struct{ reply chan struct{} }

func (openMsg) isMessage() {}

type closeMsg struct{}

func (closeMsg) isMessage() {}

type randomEditMsg struct{ reply chan error }

func (randomEditMsg) isMessage() {}

type revDeltaMsg struct {
	revDelta RevisionedEditorDelta
	reply    chan revDeltaResult
}

func (revDeltaMsg) isMessage() {}

type revDeltaResult struct {
	err error
}

// deltaMsg carries a peer-originated flat text delta straight into the
// CRDT, bypassing the OT reconciler's revision bookkeeping the way a
// RandomEdit does — the reconciler only ever sees the result as a
// CRDT-originated change to propagate to editors.
type deltaMsg struct {
	delta ot.Delta
	reply chan error
}

func (deltaMsg) isMessage() {}

type receiveSyncMsg struct {
	syncMessage   crdt.SyncMessage
	peerWatermark map[int]uint64
	reply         chan receiveSyncResult
}

func (receiveSyncMsg) isMessage() {}

type receiveSyncResult struct {
	watermark map[int]uint64
	err       error
}

type generateSyncMsg struct {
	peerWatermark map[int]uint64
	reply         chan generateSyncResult
}

func (generateSyncMsg) isMessage() {}

type generateSyncResult struct {
	message crdt.SyncMessage
	hasData bool
}

type newEditorConnMsg struct {
	handle EditorHandle
	reply  chan struct{}
}

func (newEditorConnMsg) isMessage() {}
