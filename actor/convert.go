package actor

import (
	"collabd/crdt"
	"collabd/ot"
)

// appliedOpsToFlatDelta folds a batch of already-applied single-character
// CRDT operations, each tagged with the offset it landed at, into one
// flat (line-0, absolute-offset) OT delta — the "patches as text
// deltas" conversion the CRDT wrapper's contract calls for. It reuses
// ot.Delta's own element-composition (retain-padding plus Compose),
// since a batch of single-char ops is exactly the multi-element case
// that machinery already handles.
func appliedOpsToFlatDelta(applied []crdt.AppliedOp) ot.Delta {
	elements := make([]ot.OpElement, 0, len(applied))
	for _, a := range applied {
		switch a.Op.Kind {
		case crdt.OpInsert:
			elements = append(elements, ot.OpElement{
				Range: ot.Range{
					Anchor: ot.Position{Line: 0, Column: a.Offset},
					Head:   ot.Position{Line: 0, Column: a.Offset},
				},
				Replacement: string(a.Op.Value),
			})
		case crdt.OpDelete:
			elements = append(elements, ot.OpElement{
				Range: ot.Range{
					Anchor: ot.Position{Line: 0, Column: a.Offset},
					Head:   ot.Position{Line: 0, Column: a.Offset + 1},
				},
			})
		}
	}
	return ot.Delta{Elements: elements}
}

// flatDeltaToEditorDelta expands a flat (line-0, absolute-offset) OT
// delta back into real line/column coordinates. The flat delta's
// offsets are progressive — each element already assumes the document
// has absorbed the earlier elements in the same delta, per
// applyFlatDeltaToDocument — so converting back to line/col first
// undoes that running shift to land each element's coordinates against
// one frozen base snapshot, mirroring the original's
// apply_delta_to_doc, which resolves every op's (start, length) against
// a single `text` read once before the loop and only ever adjusts a
// running numeric `offset` for where it actually splices.
func flatDeltaToEditorDelta(d ot.Delta, base string) EditorDelta {
	out := EditorDelta{Elements: make([]RangeReplacement, 0, len(d.Elements))}
	runningOffset := 0
	for _, el := range d.Elements {
		from, to := el.Range.Anchor.Column, el.Range.Head.Column
		baseFrom, baseTo := from-runningOffset, to-runningOffset
		anchorLine, anchorCol := positionForOffset(base, baseFrom)
		headLine, headCol := positionForOffset(base, baseTo)
		out.Elements = append(out.Elements, RangeReplacement{
			Range: Range{
				AnchorLine: anchorLine, AnchorCol: anchorCol,
				HeadLine: headLine, HeadCol: headCol,
			},
			Replacement: el.Replacement,
		})
		runningOffset += len([]rune(el.Replacement)) - (to - from)
	}
	return out
}

// editorDeltaToFlatDelta collapses an EditorDelta's real line/column
// coordinates down to the flat (line-0, progressive-absolute-offset)
// form the OT reconciler and applyFlatDeltaToDocument operate on. Every
// element's (line, col) is resolved against one frozen base snapshot —
// not against text mutated by earlier elements in the same delta — and
// a running net-offset adjustment (inserted minus removed rune count so
// far) shifts the resulting column to where that element actually lands
// once earlier elements have been applied. This is exactly
// apply_delta_to_doc's algorithm: resolve every op's range against the
// one `text` read before the loop, then splice at `start + offset` and
// update `offset` afterward.
func editorDeltaToFlatDelta(d EditorDelta, base string) (ot.Delta, error) {
	out := ot.Delta{Elements: make([]ot.OpElement, 0, len(d.Elements))}
	runningOffset := 0
	for _, el := range d.Elements {
		baseAnchorOffset, err := offsetForPosition(base, el.Range.AnchorLine, el.Range.AnchorCol)
		if err != nil {
			return ot.Delta{}, err
		}
		baseHeadOffset, err := offsetForPosition(base, el.Range.HeadLine, el.Range.HeadCol)
		if err != nil {
			return ot.Delta{}, err
		}
		anchorOffset := baseAnchorOffset + runningOffset
		headOffset := baseHeadOffset + runningOffset
		out.Elements = append(out.Elements, ot.OpElement{
			Range: ot.Range{
				Anchor: ot.Position{Line: 0, Column: anchorOffset},
				Head:   ot.Position{Line: 0, Column: headOffset},
			},
			Replacement: el.Replacement,
		})
		runningOffset += len([]rune(el.Replacement)) - (baseHeadOffset - baseAnchorOffset)
	}
	return out, nil
}

// localInsertFlatDelta and localDeleteFlatDelta build a single-element
// flat delta for a mutation the Actor performed directly (RandomEdit),
// as opposed to one assembled from a batch of remote CRDT ops.
func localInsertFlatDelta(offset int, text string) ot.Delta {
	return ot.Delta{Elements: []ot.OpElement{{
		Range:       ot.Range{Anchor: ot.Position{Line: 0, Column: offset}, Head: ot.Position{Line: 0, Column: offset}},
		Replacement: text,
	}}}
}

func localDeleteFlatDelta(from, to int) ot.Delta {
	return ot.Delta{Elements: []ot.OpElement{{
		Range: ot.Range{Anchor: ot.Position{Line: 0, Column: from}, Head: ot.Position{Line: 0, Column: to}},
	}}}
}

// netLengthChange sums a flat delta's effect on document length, in
// runes. This sum is order-independent — each element's own inserted
// minus removed rune count — even though the elements' offsets are
// only meaningful applied in order, which is what lets the document
// size guard check it against a single Len() snapshot up front.
func netLengthChange(d ot.Delta) int {
	total := 0
	for _, el := range d.Elements {
		total += len([]rune(el.Replacement)) - (el.Range.Head.Column - el.Range.Anchor.Column)
	}
	return total
}

// applyFlatDeltaToDocument applies a flat delta's elements to doc, in
// order, using each element's column directly as a document offset —
// correct because, like the conversions above, later elements already
// assume the document has absorbed the earlier ones in the same delta.
// Each element deletes its range, then inserts its replacement there.
func applyFlatDeltaToDocument(doc *crdt.Document, d ot.Delta) error {
	for _, el := range d.Elements {
		from, to := el.Range.Anchor.Column, el.Range.Head.Column
		if to > from {
			if _, err := doc.DeleteRangeAtOffset(from, to); err != nil {
				return err
			}
		}
		if el.Replacement != "" {
			if _, err := doc.InsertTextAtOffset(from, el.Replacement); err != nil {
				return err
			}
		}
	}
	return nil
}
