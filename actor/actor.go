// Package actor implements the Document Actor: the single task that
// owns the CRDT replica, the OT reconciler shared across editor
// connections, and the one attached editor handle. Every mutation and
// query is serialized through one goroutine's inbox, so the CRDT is
// never touched from more than one place at a time.
package actor

import (
	"math/rand"
	"os"

	"collabd/crdt"
	"collabd/ot"

	"github.com/pkg/errors"
)

// Actor owns a replica exclusively; construct with New and start its
// loop with Run before sending it any requests.
type Actor struct {
	inbox chan message

	doc        *crdt.Document
	reconciler *ot.Reconciler
	// editor is the one attached editor handle, keyed implicitly like
	// the single fixed slot the editor endpoint's sequential
	// accept-one-connection-at-a-time design produces; a fresh
	// connection simply replaces whatever handle was there before.
	editor   EditorHandle
	filePath string

	// maxDocumentSize caps how large the replica may grow from an
	// editor-originated edit, in runes; zero means unlimited. Peer
	// syncs are never rejected on this basis — a causally-ordered
	// operation from a converged peer must always be applied, or the
	// two replicas would diverge.
	maxDocumentSize int

	changePings *changeBroker
}

// New returns an Actor seeded with initialText (empty for a joiner that
// will populate its replica from peer sync), persisting to filePath.
// maxDocumentSize bounds the replica size an editor's own edits may
// push it to; pass 0 for no limit.
func New(nodeID int, filePath, initialText string, maxDocumentSize int) *Actor {
	return &Actor{
		inbox:           make(chan message, 1),
		doc:             crdt.FromText(initialText, nodeID),
		filePath:        filePath,
		maxDocumentSize: maxDocumentSize,
		changePings:     newChangeBroker(),
	}
}

// Run drains the inbox until it is closed or stop fires. It is meant to
// be the body of the Actor's one dedicated goroutine.
func (a *Actor) Run(stop <-chan struct{}) {
	for {
		select {
		case msg, ok := <-a.inbox:
			if !ok {
				return
			}
			a.handle(msg)
		case <-stop:
			return
		}
	}
}

// Subscribe returns a channel that receives a value after every CRDT
// mutation, for a Peer Sync Engine task to drive its sync-regeneration
// pump from. See changeBroker for delivery semantics (lossy, capacity 1).
func (a *Actor) Subscribe(done <-chan struct{}) <-chan struct{} {
	return a.changePings.subscribe(done)
}

func (a *Actor) send(msg message) {
	a.inbox <- msg
}

func (a *Actor) handle(msg message) {
	switch m := msg.(type) {
	case getContentMsg:
		m.reply <- a.doc.ToText()
	case openMsg:
		if a.reconciler == nil {
			a.reconciler = ot.New()
		}
		m.reply <- struct{}{}
	case closeMsg:
		a.reconciler = nil
	case randomEditMsg:
		m.reply <- a.handleRandomEdit()
	case deltaMsg:
		m.reply <- a.handleDelta(m.delta)
	case revDeltaMsg:
		m.reply <- a.handleRevDelta(m.revDelta)
	case receiveSyncMsg:
		m.reply <- a.handleReceiveSync(m.syncMessage, m.peerWatermark)
	case generateSyncMsg:
		m.reply <- a.handleGenerateSync(m.peerWatermark)
	case newEditorConnMsg:
		a.editor = m.handle
		m.reply <- struct{}{}
	}
}

// GetContent returns the replica's current text.
func (a *Actor) GetContent() string {
	reply := make(chan string, 1)
	a.send(getContentMsg{reply: reply})
	return <-reply
}

// Open registers editor interest, creating the shared OT reconciler if
// none exists yet.
func (a *Actor) Open() {
	reply := make(chan struct{}, 1)
	a.send(openMsg{reply: reply})
	<-reply
}

// Close drops the OT reconciler.
func (a *Actor) Close() {
	a.send(closeMsg{})
}

// RandomEdit synthesizes a small insertion and deletion near a random
// position, applying it as a daemon-originated change. It exists as a
// fuzz/test hook, not a feature any production caller needs.
func (a *Actor) RandomEdit() error {
	reply := make(chan error, 1)
	a.send(randomEditMsg{reply: reply})
	return <-reply
}

// Delta applies a peer-originated flat text delta directly to the
// CRDT — translated to editor-delta coordinates against the current
// content, applied, then forwarded to the OT reconciler (if one is
// open) as a CRDT-originated change and pushed out to the attached
// editor. Unlike RandomEdit's synthesized delta, d comes from the
// caller.
func (a *Actor) Delta(d ot.Delta) error {
	reply := make(chan error, 1)
	a.send(deltaMsg{delta: d, reply: reply})
	return <-reply
}

// RevDelta feeds an editor-originated revisioned delta through the OT
// reconciler, applies the transformed result to the CRDT, and pushes
// the rebased queue to the attached editor. It returns only an error:
// a protocol error (a revision claiming a future daemon state, or an
// editor acknowledging ops never sent), a size-limit rejection, or a
// failure applying the delta.
func (a *Actor) RevDelta(rd RevisionedEditorDelta) error {
	reply := make(chan revDeltaResult, 1)
	a.send(revDeltaMsg{revDelta: rd, reply: reply})
	return (<-reply).err
}

// ReceiveSyncMessage advances the CRDT with a peer's sync message and
// returns the peer's updated watermark to remember for the next round.
func (a *Actor) ReceiveSyncMessage(msg crdt.SyncMessage, peerWatermark map[int]uint64) (map[int]uint64, error) {
	reply := make(chan receiveSyncResult, 1)
	a.send(receiveSyncMsg{syncMessage: msg, peerWatermark: peerWatermark, reply: reply})
	r := <-reply
	return r.watermark, r.err
}

// GenerateSyncMessage returns a sync message to send a peer given what
// they last acknowledged, or ok=false if they are already caught up.
func (a *Actor) GenerateSyncMessage(peerWatermark map[int]uint64) (msg crdt.SyncMessage, ok bool) {
	reply := make(chan generateSyncResult, 1)
	a.send(generateSyncMsg{peerWatermark: peerWatermark, reply: reply})
	r := <-reply
	return r.message, r.hasData
}

// NewEditorConnection registers handle as an attached editor, to
// receive future daemon-originated revisioned deltas.
func (a *Actor) NewEditorConnection(handle EditorHandle) {
	reply := make(chan struct{}, 1)
	a.send(newEditorConnMsg{handle: handle, reply: reply})
	<-reply
}

func (a *Actor) handleRandomEdit() error {
	base := a.doc.ToText()
	runes := []rune(base)

	insertAt := rand.Intn(len(runes) + 1)
	if _, err := a.doc.InsertTextAtOffset(insertAt, "x"); err != nil {
		return err
	}
	flat := localInsertFlatDelta(insertAt, "x")

	// Pick the deletion offset against the post-insert document, since
	// this element is the second in the same progressive delta.
	if postInsertLen := len(runes) + 1; postInsertLen > 0 {
		deleteAt := rand.Intn(postInsertLen)
		if _, err := a.doc.DeleteRangeAtOffset(deleteAt, deleteAt+1); err != nil {
			return err
		}
		flat.Elements = append(flat.Elements, localDeleteFlatDelta(deleteAt, deleteAt+1).Elements...)
	}

	a.propagateCRDTChange(flat, base)
	a.writeFileIfNoEditor()
	a.broadcastChange()
	return nil
}

// handleDelta mirrors handleRandomEdit's shape — apply to the CRDT,
// forward the change to the OT reconciler and editors, persist, ping —
// but for a delta supplied by the caller instead of synthesized.
func (a *Actor) handleDelta(d ot.Delta) error {
	base := a.doc.ToText()
	if err := applyFlatDeltaToDocument(a.doc, d); err != nil {
		return errors.Wrap(err, "actor: applying peer-originated delta")
	}
	a.propagateCRDTChange(d, base)
	a.writeFileIfNoEditor()
	a.broadcastChange()
	return nil
}

func (a *Actor) handleRevDelta(rd RevisionedEditorDelta) revDeltaResult {
	if a.reconciler == nil {
		return revDeltaResult{err: errors.New("actor: received an editor delta with no OT reconciler open")}
	}
	base := a.doc.ToText()
	flat, err := editorDeltaToFlatDelta(rd.Delta, base)
	if err != nil {
		return revDeltaResult{err: errors.Wrap(err, "actor: converting editor delta to offsets")}
	}
	transformed, rebasedQueue, err := a.reconciler.ApplyEditorOperation(rd.Revision, flat)
	if err != nil {
		return revDeltaResult{err: errors.Wrap(err, "actor: OT reconciliation")}
	}
	if a.maxDocumentSize > 0 && a.doc.Len()+netLengthChange(transformed) > a.maxDocumentSize {
		return revDeltaResult{err: errors.Errorf("actor: edit would grow the document past the %d-rune limit", a.maxDocumentSize)}
	}
	if err := applyFlatDeltaToDocument(a.doc, transformed); err != nil {
		return revDeltaResult{err: errors.Wrap(err, "actor: applying transformed editor delta")}
	}
	a.writeFileIfNoEditor()
	a.broadcastChange()
	a.sendQueueToEditors(rebasedQueue)
	return revDeltaResult{}
}

func (a *Actor) handleReceiveSync(msg crdt.SyncMessage, peerWatermark map[int]uint64) receiveSyncResult {
	base := a.doc.ToText()
	applied, err := a.doc.ApplyOps(msg.Ops)
	if err != nil {
		return receiveSyncResult{err: errors.Wrap(err, "actor: applying peer sync message")}
	}
	if len(applied) > 0 {
		flat := appliedOpsToFlatDelta(applied)
		a.propagateCRDTChange(flat, base)
		a.writeFileIfNoEditor()
		a.broadcastChange()
	}
	// The peer holds everything it just sent, on top of what it was
	// already known to hold.
	watermark := make(map[int]uint64, len(peerWatermark))
	for node, clock := range peerWatermark {
		watermark[node] = clock
	}
	for _, op := range msg.Ops {
		if op.Clock > watermark[op.Node] {
			watermark[op.Node] = op.Clock
		}
	}
	return receiveSyncResult{watermark: watermark}
}

func (a *Actor) handleGenerateSync(peerWatermark map[int]uint64) generateSyncResult {
	msg := a.doc.GenerateSyncMessage(peerWatermark)
	return generateSyncResult{message: msg, hasData: len(msg.Ops) > 0}
}

// propagateCRDTChange forwards a daemon-originated (or peer-originated,
// already-applied) flat delta to the OT reconciler, if one is open, and
// pushes the resulting revisioned delta to every attached editor.
func (a *Actor) propagateCRDTChange(flat ot.Delta, base string) {
	if a.reconciler == nil || len(flat.Elements) == 0 {
		return
	}
	editorRevision, outFlat := a.reconciler.ApplyCRDTChange(flat)
	if a.editor == nil {
		return
	}
	out := flatDeltaToEditorDelta(outFlat, base)
	a.editor.Send(RevisionedEditorDelta{Revision: editorRevision, Delta: out})
}

func (a *Actor) sendQueueToEditors(queue []ot.Delta) {
	if a.reconciler == nil || a.editor == nil {
		return
	}
	base := a.doc.ToText()
	revision := a.reconciler.EditorRevision()
	for _, flat := range queue {
		out := flatDeltaToEditorDelta(flat, base)
		a.editor.Send(RevisionedEditorDelta{Revision: revision, Delta: out})
	}
}

func (a *Actor) broadcastChange() {
	a.changePings.publish()
}

func (a *Actor) writeFileIfNoEditor() {
	if a.editor != nil || a.filePath == "" {
		return
	}
	if err := os.WriteFile(a.filePath, []byte(a.doc.ToText()), 0o644); err != nil {
		// A failed save after the first successful startup read is not
		// one of the startup-only fatal conditions; the daemon keeps
		// running and will retry on the next mutation.
		return
	}
}
