// Package ot reconciles the CRDT's revision-free operations with an
// editor plugin that speaks revision-based operational transform.
package ot

import (
	"fmt"

	libot "github.com/shiv248/operational-transformation-go"
)

// Position is a line/column location in editor text coordinates.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a half-open-by-convention span between two positions.
type Range struct {
	Anchor Position `json:"anchor"`
	Head   Position `json:"head"`
}

// Empty reports whether the range selects no text (a pure insertion point).
func (r Range) Empty() bool {
	return r.Anchor == r.Head
}

// Forward reports whether Anchor precedes Head.
func (r Range) Forward() bool {
	if r.Anchor.Line != r.Head.Line {
		return r.Anchor.Line < r.Head.Line
	}
	return r.Anchor.Column <= r.Head.Column
}

// OpElement is a single range-replacement, the wire shape of one editor edit.
type OpElement struct {
	Range       Range  `json:"range"`
	Replacement string `json:"replacement"`
}

// Delta is a sequence of OpElements — an editor delta. Every element's
// range must be single-line (Line 0 relative to the op's own coordinate
// space); multi-line ranges are a known limitation carried forward
// unresolved, same as upstream.
type Delta struct {
	Elements []OpElement
}

// Len reports the number of range-replacements in the delta.
func (d Delta) Len() int {
	return len(d.Elements)
}

// toOperationSeq converts a single-line delta into an OT library operation
// sequence, composing one OpElement's sub-sequence at a time.
func (d Delta) toOperationSeq() (*libot.OperationSeq, error) {
	seq := libot.NewOperationSeq()
	for _, el := range d.Elements {
		if el.Range.Anchor.Line != 0 {
			return nil, fmt.Errorf("ot: multi-line ranges are not supported")
		}
		sub := libot.NewOperationSeq()
		switch {
		case el.Replacement != "":
			if !el.Range.Empty() {
				return nil, fmt.Errorf("ot: replace-in-place (non-empty range with replacement) is not supported")
			}
			sub.Retain(uint64(el.Range.Anchor.Column))
			sub.Insert(el.Replacement)
		case !el.Range.Empty():
			from, to := el.Range.Anchor.Column, el.Range.Head.Column
			if !el.Range.Forward() {
				from, to = el.Range.Head.Column, el.Range.Anchor.Column
			}
			sub.Retain(uint64(from))
			sub.Delete(uint64(to - from))
		default:
			// empty range, empty replacement: no-op element.
			continue
		}
		if seq.TargetLen() < sub.BaseLen() {
			seq.Retain(sub.BaseLen() - seq.TargetLen())
		}
		composed, err := seq.Compose(sub)
		if err != nil {
			return nil, fmt.Errorf("ot: compose: %w", err)
		}
		seq = composed
	}
	return seq, nil
}

// fromOperationSeq walks a library operation sequence back into a Delta,
// one OpElement per Insert/Delete run (Retain runs only advance position).
func fromOperationSeq(seq *libot.OperationSeq) Delta {
	var elements []OpElement
	position := 0
	for _, op := range seq.Ops() {
		switch v := op.(type) {
		case libot.Retain:
			position += int(v.N)
		case libot.Delete:
			elements = append(elements, OpElement{
				Range: Range{
					Anchor: Position{Line: 0, Column: position},
					Head:   Position{Line: 0, Column: position + int(v.N)},
				},
			})
		case libot.Insert:
			n := len([]rune(v.Text))
			elements = append(elements, OpElement{
				Range: Range{
					Anchor: Position{Line: 0, Column: position},
					Head:   Position{Line: 0, Column: position},
				},
				Replacement: v.Text,
			})
			position += n
		}
	}
	return Delta{Elements: elements}
}

// padToEqualBaseLen right-pads whichever of the two sequences has the
// shorter base length, a workaround for the library's requirement that
// Transform's operands share a base length even when we don't carry that
// global knowledge at the call site.
func padToEqualBaseLen(a, b *libot.OperationSeq) (*libot.OperationSeq, *libot.OperationSeq) {
	if a.BaseLen() < b.BaseLen() {
		a.Retain(b.BaseLen() - a.BaseLen())
	} else if b.BaseLen() < a.BaseLen() {
		b.Retain(a.BaseLen() - b.BaseLen())
	}
	return a, b
}

// transformThroughQueue transforms incoming through each queued delta in
// turn, accumulating the rebased queue as it goes. queued deltas play the
// role of "my" operations in the upstream algorithm; incoming is "theirs",
// and it is re-derived after each step so later queue entries transform
// against the already-rebased incoming delta.
func transformThroughQueue(incoming Delta, queue []Delta) (Delta, []Delta, error) {
	rebasedQueue := make([]Delta, 0, len(queue))
	current := incoming
	for _, queued := range queue {
		mySeq, err := queued.toOperationSeq()
		if err != nil {
			return Delta{}, nil, err
		}
		theirSeq, err := current.toOperationSeq()
		if err != nil {
			return Delta{}, nil, err
		}
		mySeq, theirSeq = padToEqualBaseLen(mySeq, theirSeq)
		myPrime, theirPrime, err := mySeq.Transform(theirSeq)
		if err != nil {
			return Delta{}, nil, fmt.Errorf("ot: transform: %w", err)
		}
		rebasedQueue = append(rebasedQueue, fromOperationSeq(myPrime))
		current = fromOperationSeq(theirPrime)
	}
	return current, rebasedQueue, nil
}
