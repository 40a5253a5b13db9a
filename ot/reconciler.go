package ot

import "fmt"

// Reconciler is the OT Bridge's per-editor-endpoint state: the revision
// pair plus the FIFO of daemon-originated deltas the editor has not yet
// acknowledged. It is not safe for concurrent use — callers serialize
// access to it the same way the Document Actor serializes everything
// else.
type Reconciler struct {
	editorRevision int
	daemonRevision int
	editorQueue    []Delta
}

// New returns a Reconciler with both revisions at zero and an empty queue.
func New() *Reconciler {
	return &Reconciler{}
}

// DaemonRevision returns the number of daemon-originated deltas absorbed.
func (r *Reconciler) DaemonRevision() int { return r.daemonRevision }

// EditorRevision returns the number of editor-originated deltas absorbed.
func (r *Reconciler) EditorRevision() int { return r.editorRevision }

// QueueLen returns the number of unacknowledged daemon-originated deltas.
func (r *Reconciler) QueueLen() int { return len(r.editorQueue) }

// ApplyCRDTChange records delta as having originated from the CRDT side
// (a peer edit, or the result of ReceiveSyncMessage). It returns the
// editor_revision the delta should be sent to the editor under.
func (r *Reconciler) ApplyCRDTChange(delta Delta) (editorRevision int, out Delta) {
	r.editorQueue = append(r.editorQueue, delta)
	r.daemonRevision++
	return r.editorRevision, delta
}

// ApplyEditorOperation reconciles a delta the editor produced against the
// daemon revision it claims to have seen (editorDaemonRev). It returns the
// transformed delta to apply to the CRDT and, if the queue needed
// rebasing, the resent queue (nil when the editor was already caught up).
//
// Both error cases here are protocol violations by the editor (§7 class
// 3): the caller closes that editor connection, it does not crash the
// daemon.
func (r *Reconciler) ApplyEditorOperation(editorDaemonRev int, delta Delta) (Delta, []Delta, error) {
	if editorDaemonRev > r.daemonRevision {
		return Delta{}, nil, fmt.Errorf("ot: editor claims daemon revision %d, ahead of current %d", editorDaemonRev, r.daemonRevision)
	}

	if editorDaemonRev == r.daemonRevision {
		r.editorRevision++
		return delta, nil, nil
	}

	k := r.daemonRevision - editorDaemonRev
	if k > len(r.editorQueue) {
		return Delta{}, nil, fmt.Errorf("ot: editor acknowledged %d daemon ops but only %d are queued", k, len(r.editorQueue))
	}

	seen := len(r.editorQueue) - k
	r.editorQueue = r.editorQueue[seen:]

	transformed, rebasedQueue, err := transformThroughQueue(delta, r.editorQueue)
	if err != nil {
		return Delta{}, nil, err
	}
	r.editorQueue = rebasedQueue
	r.editorRevision++
	return transformed, rebasedQueue, nil
}
