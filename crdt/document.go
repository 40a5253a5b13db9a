package crdt

import (
	"fmt"
	"sort"
	"strings"
)

// Character is one CRDT-addressable rune: its allocated position, the
// clock value it was created under, and the rune itself.
type Character struct {
	Pos   []Identifier `json:"pos"`
	Clock uint64       `json:"clock"`
	Node  int          `json:"node"`
	Value rune         `json:"value"`
}

// Document is the opaque replica the Document Actor owns. Characters are
// kept as a single position-ordered sequence (not split into lines the
// way a GUI text widget would want them): every editor-facing coordinate
// this package exposes is a rune offset into that flat sequence, with
// line/column translation left to the caller, matching the boundary the
// OT reconciler already draws.
type Document struct {
	characters []Character
	NodeID     int

	localClock uint64
	log        []Op
	watermark  map[int]uint64
}

// NewDocument returns an empty replica owned by nodeID.
func NewDocument(nodeID int) *Document {
	return &Document{NodeID: nodeID, watermark: map[int]uint64{}}
}

// seedNodeID is the node id seeded characters are minted under. It is
// shared by every replica (real node ids start at 1), so two replicas
// seeded from the same text hold identical positions.
const seedNodeID = 0

// FromText seeds a replica with text, as if one shared seed node had
// typed it in one sitting; the replica's own edits then use nodeID.
// Used at daemon startup when a host loads its file from disk.
func FromText(text string, nodeID int) *Document {
	d := NewDocument(nodeID)
	if text == "" {
		return d
	}
	d.NodeID = seedNodeID
	if _, err := d.InsertTextAtOffset(0, text); err != nil {
		panic(fmt.Sprintf("crdt: seeding an empty document can't fail: %v", err))
	}
	d.NodeID = nodeID
	// Seeding is not a real edit; it shouldn't look like a pending,
	// unacknowledged change the moment the daemon starts.
	d.log = nil
	return d
}

// ToText renders the replica's current content.
func (d *Document) ToText() string {
	var b strings.Builder
	b.Grow(len(d.characters))
	for _, c := range d.characters {
		b.WriteRune(c.Value)
	}
	return b.String()
}

// Len reports the number of runes currently in the document.
func (d *Document) Len() int {
	return len(d.characters)
}

func (d *Document) nextClock() uint64 {
	d.localClock++
	return d.localClock
}

// InsertTextAtOffset inserts text starting at the given rune offset,
// generating one fresh position per rune. It returns the operations
// generated, in order, for the caller to fold into a sync message and an
// OT-bridge change.
func (d *Document) InsertTextAtOffset(offset int, text string) ([]Op, error) {
	if offset < 0 || offset > len(d.characters) {
		return nil, fmt.Errorf("crdt: insert offset %d out of range [0,%d]", offset, len(d.characters))
	}
	ops := make([]Op, 0, len(text))
	for _, r := range text {
		var before, after []Identifier
		if offset > 0 {
			before = d.characters[offset-1].Pos
		}
		if offset < len(d.characters) {
			after = d.characters[offset].Pos
		}
		pos := generatePositionBetween(before, after, d.NodeID)
		clock := d.nextClock()
		char := Character{Pos: pos, Clock: clock, Node: d.NodeID, Value: r}
		d.insertCharacter(offset, char)
		d.appendToLog(Op{Kind: OpInsert, Pos: pos, Clock: clock, Node: d.NodeID, Value: r})
		ops = append(ops, d.log[len(d.log)-1])
		offset++
	}
	return ops, nil
}

// DeleteRangeAtOffset deletes the [start,end) rune range, generating one
// delete operation per removed character.
func (d *Document) DeleteRangeAtOffset(start, end int) ([]Op, error) {
	if start < 0 || end > len(d.characters) || start > end {
		return nil, fmt.Errorf("crdt: delete range [%d,%d) out of range [0,%d]", start, end, len(d.characters))
	}
	ops := make([]Op, 0, end-start)
	// Delete back-to-front so earlier offsets stay valid as we go.
	for i := end - 1; i >= start; i-- {
		char := d.characters[i]
		clock := d.nextClock()
		d.deleteCharacterAt(i)
		d.appendToLog(Op{Kind: OpDelete, Pos: char.Pos, Clock: clock, Node: d.NodeID})
		ops = append(ops, d.log[len(d.log)-1])
	}
	// Restore the order operations were actually requested in (left to right).
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops, nil
}

func (d *Document) insertCharacter(offset int, char Character) {
	d.characters = append(d.characters, Character{})
	copy(d.characters[offset+1:], d.characters[offset:])
	d.characters[offset] = char
}

func (d *Document) deleteCharacterAt(offset int) {
	d.characters = append(d.characters[:offset], d.characters[offset+1:]...)
}

// findByPosition returns the offset of the character at pos, or -1.
func (d *Document) findByPosition(pos []Identifier) int {
	for i, c := range d.characters {
		if identifiersEqual(c.Pos, pos) {
			return i
		}
	}
	return -1
}

// insertionOffsetFor returns where a character with the given position
// belongs in the ordered sequence (used when applying a remote insert,
// whose position was allocated relative to a possibly different local
// state).
func (d *Document) insertionOffsetFor(pos []Identifier) int {
	idx := sort.Search(len(d.characters), func(i int) bool {
		return comparePositions(d.characters[i].Pos, pos) >= 0
	})
	return idx
}
