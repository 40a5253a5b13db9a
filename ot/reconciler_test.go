package ot

import (
	"testing"

	libot "github.com/shiv248/operational-transformation-go"
)

func insertAt(col int, text string) Delta {
	return Delta{Elements: []OpElement{{
		Range:       Range{Anchor: Position{Line: 0, Column: col}, Head: Position{Line: 0, Column: col}},
		Replacement: text,
	}}}
}

func deleteRange(from, to int) Delta {
	return Delta{Elements: []OpElement{{
		Range: Range{Anchor: Position{Line: 0, Column: from}, Head: Position{Line: 0, Column: to}},
	}}}
}

func TestRangeForward(t *testing.T) {
	if !insertAt(2, "foo").Elements[0].Range.Forward() {
		t.Fatal("insertion point range should be forward")
	}
	if !deleteRange(2, 4).Elements[0].Range.Forward() {
		t.Fatal("forward delete range should be forward")
	}
}

func TestCRDTChangeIncreasesRevision(t *testing.T) {
	r := New()
	r.ApplyCRDTChange(insertAt(2, "x"))
	if r.DaemonRevision() != 1 {
		t.Fatalf("daemon revision = %d, want 1", r.DaemonRevision())
	}
	if r.EditorRevision() != 0 {
		t.Fatalf("editor revision = %d, want 0", r.EditorRevision())
	}
}

func TestCRDTChangeTracksInQueue(t *testing.T) {
	r := New()
	r.ApplyCRDTChange(insertAt(2, "x"))
	if r.QueueLen() != 1 {
		t.Fatalf("queue len = %d, want 1", r.QueueLen())
	}
}

func TestEditorOperationAtCurrentRevisionSkipsQueue(t *testing.T) {
	r := New()
	r.ApplyCRDTChange(insertAt(2, "x"))
	r.ApplyCRDTChange(insertAt(5, "y"))
	r.ApplyCRDTChange(insertAt(8, "z"))
	if r.QueueLen() != 3 {
		t.Fatalf("queue len = %d, want 3", r.QueueLen())
	}

	transformed, queue, err := r.ApplyEditorOperation(3, insertAt(2, "w"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queue != nil {
		t.Fatalf("queue should be untouched when editor is already caught up, got %v", queue)
	}
	if transformed.Elements[0].Replacement != "w" {
		t.Fatalf("transformed delta changed unexpectedly: %+v", transformed)
	}
	if r.EditorRevision() != 1 {
		t.Fatalf("editor revision = %d, want 1", r.EditorRevision())
	}
}

func TestConversionFromOTToOurs(t *testing.T) {
	seq := libot.NewOperationSeq()
	seq.Retain(3)
	seq.Insert("foobar")
	d := fromOperationSeq(seq)
	if d.Len() != 1 || d.Elements[0].Range.Anchor.Column != 3 {
		t.Fatalf("unexpected conversion: %+v", d)
	}

	seq = libot.NewOperationSeq()
	seq.Insert("foobar")
	seq.Retain(3)
	d = fromOperationSeq(seq)
	if d.Len() != 1 || d.Elements[0].Range.Anchor.Column != 0 {
		t.Fatalf("unexpected conversion: %+v", d)
	}

	seq = libot.NewOperationSeq()
	seq.Retain(3)
	seq.Delete(3)
	d = fromOperationSeq(seq)
	if d.Len() != 1 || d.Elements[0].Range.Anchor.Column != 3 || d.Elements[0].Range.Head.Column != 6 {
		t.Fatalf("unexpected conversion: %+v", d)
	}
}

// OT rebase (spec end-to-end scenario 5): daemon queue [insert@0 "foo",
// insert@3 "foo"]; editor submits insert@0 "bar" at rev=0. Expected: the
// editor delta applied becomes insert@6 "bar"; the rebased queue keeps the
// same two payloads.
func TestOTRebaseScenario(t *testing.T) {
	r := New()
	r.ApplyCRDTChange(insertAt(0, "foo"))
	r.ApplyCRDTChange(insertAt(3, "foo"))

	transformed, queue, err := r.ApplyEditorOperation(0, insertAt(0, "bar"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transformed.Len() != 1 || transformed.Elements[0].Range.Anchor.Column != 6 || transformed.Elements[0].Replacement != "bar" {
		t.Fatalf("transformed editor delta = %+v, want insert@6 bar", transformed)
	}
	if len(queue) != 2 {
		t.Fatalf("rebased queue len = %d, want 2", len(queue))
	}
	if queue[0].Elements[0].Replacement != "foo" || queue[0].Elements[0].Range.Anchor.Column != 0 {
		t.Fatalf("rebased queue[0] changed: %+v", queue[0])
	}
	if queue[1].Elements[0].Replacement != "foo" || queue[1].Elements[0].Range.Anchor.Column != 3 {
		t.Fatalf("rebased queue[1] changed: %+v", queue[1])
	}
	if r.EditorRevision() != 1 {
		t.Fatalf("editor revision = %d, want 1", r.EditorRevision())
	}
}

// OT delete-split (spec end-to-end scenario 6): daemon queue has a single
// delete spanning [1,4); editor inserts "x" at column 2 concurrently.
// Expected: the rebased editor insert lands at column 1, and the queued
// delete splits into two ranges around the inserted character.
func TestOTDeleteSplitScenario(t *testing.T) {
	r := New()
	r.ApplyCRDTChange(deleteRange(1, 4))

	transformed, queue, err := r.ApplyEditorOperation(0, insertAt(2, "x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transformed.Len() != 1 || transformed.Elements[0].Range.Anchor.Column != 1 || transformed.Elements[0].Replacement != "x" {
		t.Fatalf("transformed editor delta = %+v, want insert@1 x", transformed)
	}
	if len(queue) != 1 {
		t.Fatalf("rebased queue len = %d, want 1", len(queue))
	}
	if queue[0].Len() != 2 {
		t.Fatalf("rebased queued delete should split into two ranges, got %+v", queue[0])
	}
}

func TestEditorClaimingFutureDaemonRevisionIsRejected(t *testing.T) {
	r := New()
	if _, _, err := r.ApplyEditorOperation(1, insertAt(0, "x")); err == nil {
		t.Fatal("expected an error when the editor claims a future daemon revision")
	}
}
