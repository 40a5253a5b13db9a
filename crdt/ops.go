package crdt

// OpKind distinguishes the two primitive CRDT mutations.
type OpKind int

const (
	// OpInsert places a single character at Pos.
	OpInsert OpKind = iota
	// OpDelete removes the character at Pos.
	OpDelete
)

// Op is one entry in a replica's append-only operation log: a single
// character insertion or deletion, tagged with the node and logical
// clock that produced it. Op is the unit both the sync protocol and the
// Document Actor's CRDT-change notifications are built from.
type Op struct {
	Kind  OpKind       `json:"kind"`
	Pos   []Identifier `json:"pos"`
	Clock uint64       `json:"clock"`
	Node  int          `json:"node"`
	Value rune         `json:"value,omitempty"`
}

func (d *Document) appendToLog(op Op) {
	d.log = append(d.log, op)
	if op.Clock > d.watermark[op.Node] {
		d.watermark[op.Node] = op.Clock
	}
}

// AppliedOp is one operation as it actually landed in the replica: the
// operation itself, plus the rune offset it landed at, captured at the
// moment of application. The offset is what lets a caller describe a
// batch of remote character ops as a single text delta (a "patch", in
// the CRDT wrapper's vocabulary) without re-deriving positions later,
// after further ops in the same batch have shifted everything around it.
type AppliedOp struct {
	Op     Op
	Offset int
}

// ApplyOps applies a batch of remote operations (already causally
// resolved — i.e. produced by some node's own log and replayed here
// verbatim) to this replica, skipping any this replica has already seen.
// It returns the subset actually applied, in the order they were
// applied, each tagged with its landing offset, for the caller to fold
// into its own outgoing sync state and OT bridge.
func (d *Document) ApplyOps(ops []Op) ([]AppliedOp, error) {
	applied := make([]AppliedOp, 0, len(ops))
	for _, op := range ops {
		if op.Clock <= d.watermark[op.Node] {
			continue // already have this one
		}
		var offset int
		switch op.Kind {
		case OpInsert:
			offset = d.insertionOffsetFor(op.Pos)
			d.insertCharacter(offset, Character{Pos: op.Pos, Clock: op.Clock, Node: op.Node, Value: op.Value})
		case OpDelete:
			offset = d.findByPosition(op.Pos)
			if offset < 0 {
				// Already deleted locally, or never seen — either way
				// there's nothing left to remove. Not an error: the two
				// replicas simply raced on the same character.
				continue
			}
			d.deleteCharacterAt(offset)
		default:
			return applied, errUnknownOpKind(op.Kind)
		}
		d.appendToLog(op)
		applied = append(applied, AppliedOp{Op: op, Offset: offset})
	}
	return applied, nil
}

func errUnknownOpKind(k OpKind) error {
	return &unknownOpKindError{k}
}

type unknownOpKindError struct{ kind OpKind }

func (e *unknownOpKindError) Error() string {
	return "crdt: unknown operation kind in sync message"
}
