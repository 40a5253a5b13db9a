// Package crdt implements the opaque CRDT replica the Document Actor
// owns: a fractional-index (Logoot-style) sequence of characters, plus a
// log-based sync facade for reconciling with peer replicas.
package crdt

// Identifier is one digit of a fractional position between two
// characters, tagged with the node that minted it so concurrent
// insertions at the same digit are still totally ordered.
type Identifier struct {
	Digit int `json:"digit"`
	Node  int `json:"node"`
}

const base = 256

func identifierDigits(identifiers []Identifier) []int {
	digits := make([]int, len(identifiers))
	for i, ident := range identifiers {
		digits[i] = ident.Digit
	}
	return digits
}

func add(n1, n2 []int) []int {
	carry := 0
	sum := make([]int, maxInt(len(n1), len(n2)))
	for i := len(sum) - 1; i >= 0; i-- {
		s := carry
		if i < len(n1) {
			s += n1[i]
		}
		if i < len(n2) {
			s += n2[i]
		}
		carry = s / base
		sum[i] = s % base
	}
	if carry != 0 {
		panic("crdt: position sum overflows the fixed-width representation")
	}
	return sum
}

func subtractGreaterThan(n1, n2 []int) []int {
	carry := 0
	diff := make([]int, maxInt(len(n1), len(n2)))
	for i := len(diff) - 1; i >= 0; i-- {
		d1 := 0
		if i < len(n1) {
			d1 = n1[i] - carry
		}
		d2 := 0
		if i < len(n2) {
			d2 = n2[i]
		}
		if d1 < d2 {
			carry = 1
			diff[i] = d1 + base - d2
		} else {
			carry = 0
			diff[i] = d1 - d2
		}
	}
	return diff
}

func increment(n1, delta []int) []int {
	firstNonZero := -1
	for i, x := range delta {
		if x != 0 {
			firstNonZero = i
			break
		}
	}
	if firstNonZero == -1 {
		panic("crdt: increment delta must contain at least one non-zero digit")
	}

	inc := append(delta[:firstNonZero], 0, 1)
	v1 := add(n1, inc)
	if v1[len(v1)-1] == 0 {
		v1 = add(v1, inc)
	}
	return v1
}

func identifiersFromDigits(n []int, before, after []Identifier, creationNode int) []Identifier {
	identifiers := make([]Identifier, len(n))
	for index, digit := range n {
		switch {
		case index == len(n)-1:
			identifiers[index] = Identifier{Digit: digit, Node: creationNode}
		case index < len(before) && digit == before[index].Digit:
			identifiers[index] = Identifier{Digit: digit, Node: before[index].Node}
		case index < len(after) && digit == after[index].Digit:
			identifiers[index] = Identifier{Digit: digit, Node: after[index].Node}
		default:
			identifiers[index] = Identifier{Digit: digit, Node: creationNode}
		}
	}
	return identifiers
}

// generatePositionBetween allocates a fresh position strictly between
// position1 and position2, breaking ties on node id so concurrent inserts
// at the same boundary still converge.
func generatePositionBetween(position1, position2 []Identifier, node int) []Identifier {
	if len(position1) == 0 && len(position2) == 0 {
		// Nothing to bound the new position between (the document is
		// empty): seed it at the midpoint of the digit space instead of
		// falling into the general digit-arithmetic path below, which
		// has no non-zero delta to increment by in this case.
		return []Identifier{{Digit: base / 2, Node: node}}
	}

	var head1 Identifier
	if len(position1) > 0 {
		head1 = position1[0]
	} else {
		head1 = Identifier{Digit: 0, Node: node}
	}

	var head2 Identifier
	if len(position2) > 0 {
		head2 = position2[0]
	} else {
		head2 = Identifier{Digit: base, Node: node}
	}

	if head1.Digit != head2.Digit {
		n1 := identifierDigits(position1)
		n2 := identifierDigits(position2)
		delta := subtractGreaterThan(n2, n1)
		next := increment(n1, delta)
		return identifiersFromDigits(next, position1, position2, node)
	}

	switch {
	case head1.Node < head2.Node:
		return append([]Identifier{head1}, generatePositionBetween(position1[1:], []Identifier{}, node)...)
	case head1.Node == head2.Node:
		return append([]Identifier{head1}, generatePositionBetween(position1[1:], position2[1:], node)...)
	default:
		panic("crdt: invalid node ordering while allocating a position")
	}
}

func comparePositions(pos1, pos2 []Identifier) int {
	n := minInt(len(pos1), len(pos2))
	for i := 0; i < n; i++ {
		if pos1[i].Digit != pos2[i].Digit {
			return pos1[i].Digit - pos2[i].Digit
		}
		if pos1[i].Node != pos2[i].Node {
			return pos1[i].Node - pos2[i].Node
		}
	}
	return len(pos1) - len(pos2)
}

func identifiersEqual(a, b []Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
