package actor

import "testing"

type recordingEditor struct {
	sent []RevisionedEditorDelta
}

func (r *recordingEditor) Send(rd RevisionedEditorDelta) {
	r.sent = append(r.sent, rd)
}

func startActor(t *testing.T, nodeID int, initialText string) (*Actor, func()) {
	t.Helper()
	a := New(nodeID, "", initialText, 0)
	stop := make(chan struct{})
	go a.Run(stop)
	return a, func() { close(stop) }
}

func rangeEl(anchorLine, anchorCol, headLine, headCol int, replacement string) RangeReplacement {
	return RangeReplacement{
		Range:       Range{AnchorLine: anchorLine, AnchorCol: anchorCol, HeadLine: headLine, HeadCol: headCol},
		Replacement: replacement,
	}
}

// Basic insertion (spec end-to-end scenario 1).
func TestActorBasicInsertion(t *testing.T) {
	a, stop := startActor(t, 1, "")
	defer stop()

	a.Open()
	editor := &recordingEditor{}
	a.NewEditorConnection(editor)

	err := a.RevDelta(RevisionedEditorDelta{
		Revision: 0,
		Delta:    EditorDelta{Elements: []RangeReplacement{rangeEl(0, 0, 0, 0, "foobar")}},
	})
	if err != nil {
		t.Fatalf("RevDelta: %v", err)
	}
	if got := a.GetContent(); got != "foobar" {
		t.Fatalf("content = %q, want foobar", got)
	}
}

// Basic deletion (spec end-to-end scenario 2).
func TestActorBasicDeletion(t *testing.T) {
	a, stop := startActor(t, 1, "foobar")
	defer stop()

	a.Open()
	err := a.RevDelta(RevisionedEditorDelta{
		Revision: 0,
		Delta:    EditorDelta{Elements: []RangeReplacement{rangeEl(0, 3, 0, 6, "")}},
	})
	if err != nil {
		t.Fatalf("RevDelta: %v", err)
	}
	if got := a.GetContent(); got != "foo" {
		t.Fatalf("content = %q, want foo", got)
	}
}

// Multi-op delta (spec end-to-end scenario 3), expressed as the editor
// protocol's range-replacement elements instead of raw OT primitives:
// retain(3), insert("m"), delete(1), retain(5), delete(4), retain(3),
// delete(2), insert("you") applied to
// "To be or not to be, that is the question". Every element's range is
// given in the original text's coordinates, matching the wire
// protocol's convention of resolving each element against the delta's
// one frozen base snapshot rather than against text mutated by
// preceding elements.
func TestActorMultiOpDelta(t *testing.T) {
	a, stop := startActor(t, 1, "To be or not to be, that is the question")
	defer stop()

	a.Open()
	delta := EditorDelta{Elements: []RangeReplacement{
		rangeEl(0, 3, 0, 3, "m"),
		rangeEl(0, 3, 0, 4, ""),
		rangeEl(0, 9, 0, 13, ""),
		rangeEl(0, 16, 0, 18, ""),
		rangeEl(0, 18, 0, 18, "you"),
	}}
	if err := a.RevDelta(RevisionedEditorDelta{Revision: 0, Delta: delta}); err != nil {
		t.Fatalf("RevDelta: %v", err)
	}

	want := "To me or to you, that is the question"
	if got := a.GetContent(); got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
}

// Multi-line splice (spec end-to-end scenario 4).
func TestActorMultiLineSplice(t *testing.T) {
	a, stop := startActor(t, 1, "xeins\nzwei\ndrei\n")
	defer stop()

	a.Open()
	delta := EditorDelta{Elements: []RangeReplacement{
		rangeEl(1, 0, 1, 0, "xzwei\nx"),
		rangeEl(1, 0, 2, 0, ""),
	}}
	if err := a.RevDelta(RevisionedEditorDelta{Revision: 0, Delta: delta}); err != nil {
		t.Fatalf("RevDelta: %v", err)
	}

	want := "xeins\nxzwei\nxdrei\n"
	if got := a.GetContent(); got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
}

func TestActorRevDeltaWithoutOpenIsRejected(t *testing.T) {
	a, stop := startActor(t, 1, "")
	defer stop()

	err := a.RevDelta(RevisionedEditorDelta{
		Revision: 0,
		Delta:    EditorDelta{Elements: []RangeReplacement{rangeEl(0, 0, 0, 0, "x")}},
	})
	if err == nil {
		t.Fatal("expected an error submitting an editor delta with no reconciler open")
	}
}

// Delta applies a peer-originated flat text delta directly, distinct
// from RevDelta's editor-originated, revision-tracked path.
func TestActorDeltaAppliesPeerOriginatedChange(t *testing.T) {
	a, stop := startActor(t, 1, "hello")
	defer stop()

	a.Open()
	editor := &recordingEditor{}
	a.NewEditorConnection(editor)

	err := a.Delta(localInsertFlatDelta(5, " world"))
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if got := a.GetContent(); got != "hello world" {
		t.Fatalf("content = %q, want %q", got, "hello world")
	}
	if len(editor.sent) == 0 {
		t.Fatal("expected the attached editor to be notified of the peer-originated change")
	}
}

func TestActorNotifiesEditorsAfterCRDTChange(t *testing.T) {
	a, stop := startActor(t, 1, "")
	defer stop()

	a.Open()
	editor := &recordingEditor{}
	a.NewEditorConnection(editor)

	if err := a.RandomEdit(); err != nil {
		t.Fatalf("RandomEdit: %v", err)
	}
	if len(editor.sent) == 0 {
		t.Fatal("expected the attached editor to be notified of the CRDT change")
	}
}

func TestActorReceiveAndGenerateSyncMessageConverge(t *testing.T) {
	a, stopA := startActor(t, 1, "hello")
	defer stopA()
	b, stopB := startActor(t, 2, "hello")
	defer stopB()

	watermarkFromB := map[int]uint64{}
	msg, ok := a.GenerateSyncMessage(watermarkFromB)
	if ok {
		t.Fatalf("seeding both replicas identically should need no sync, got %+v", msg)
	}

	if err := a.RandomEdit(); err != nil {
		t.Fatalf("RandomEdit: %v", err)
	}

	msg, ok = a.GenerateSyncMessage(watermarkFromB)
	if !ok {
		t.Fatal("expected a with a fresh edit to have something to send")
	}
	newWatermark, err := b.ReceiveSyncMessage(msg, watermarkFromB)
	if err != nil {
		t.Fatalf("ReceiveSyncMessage: %v", err)
	}
	if newWatermark[1] == 0 {
		t.Fatalf("expected b's watermark for node 1 to advance, got %+v", newWatermark)
	}
	if a.GetContent() != b.GetContent() {
		t.Fatalf("replicas diverged: a=%q b=%q", a.GetContent(), b.GetContent())
	}
}

func TestActorOpenIsIdempotent(t *testing.T) {
	a, stop := startActor(t, 1, "")
	defer stop()

	a.Open()
	a.Open()
	if err := a.RevDelta(RevisionedEditorDelta{
		Revision: 0,
		Delta:    EditorDelta{Elements: []RangeReplacement{rangeEl(0, 0, 0, 0, "x")}},
	}); err != nil {
		t.Fatalf("RevDelta after double Open: %v", err)
	}
}

func TestActorRejectsEditThatExceedsMaxDocumentSize(t *testing.T) {
	a := New(1, "", "hello", 6)
	stop := make(chan struct{})
	defer close(stop)
	go a.Run(stop)

	a.Open()
	err := a.RevDelta(RevisionedEditorDelta{
		Revision: 0,
		Delta:    EditorDelta{Elements: []RangeReplacement{rangeEl(0, 5, 0, 5, "world")}},
	})
	if err == nil {
		t.Fatal("expected an error when an edit would exceed the document size limit")
	}
	if got := a.GetContent(); got != "hello" {
		t.Fatalf("content = %q, want unchanged %q", got, "hello")
	}
}

func TestActorCloseDropsReconciler(t *testing.T) {
	a, stop := startActor(t, 1, "")
	defer stop()

	a.Open()
	a.Close()

	err := a.RevDelta(RevisionedEditorDelta{
		Revision: 0,
		Delta:    EditorDelta{Elements: []RangeReplacement{rangeEl(0, 0, 0, 0, "x")}},
	})
	if err == nil {
		t.Fatal("expected an error submitting an editor delta after Close")
	}
}
