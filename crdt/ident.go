package crdt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Structs

// atom is one level of a position identifier: a numeric
// position and the actor that allocated it. The actor breaks
// ties between concurrent allocations of the same position.
type atom struct {
	pos   uint32
	actor string
}

// Identifier is a dense, totally-ordered position token. Any
// two identifiers have room for another one between them, so
// concurrent inserts never collide and never require existing
// identifiers to be renumbered. Identifiers double as the
// stable position markers handed out to callers of the
// sequence type and as the item and branch identifiers of
// the map type.
type Identifier struct {
	path []atom
}

// Functions

// Compare orders two identifiers level by level by position
// first and allocating actor second, with a shorter path
// ordered before any of its extensions. It returns -1, 0 or 1.
func (id Identifier) Compare(other Identifier) int {

	for i, a := range id.path {

		// Our path extends other's, so we order after it.
		if i == len(other.path) {
			return 1
		}

		o := other.path[i]

		if a.pos != o.pos {
			if a.pos < o.pos {
				return -1
			}
			return 1
		}

		if a.actor != o.actor {
			if a.actor < o.actor {
				return -1
			}
			return 1
		}
	}

	if len(id.path) == len(other.path) {
		return 0
	}

	return -1
}

// Less returns true if this identifier orders strictly
// before the other one.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) < 0
}

// Equal returns true if both identifiers denote the
// same position.
func (id Identifier) Equal(other Identifier) bool {
	return id.Compare(other) == 0
}

// String marshalls this identifier into its canonical wire
// form, '<pos>.<actor>' elements joined by colons. This form
// is part of what gets signed, so it has to stay deterministic.
func (id Identifier) String() string {

	elems := make([]string, len(id.path))
	for i, a := range id.path {
		elems[i] = fmt.Sprintf("%d.%s", a.pos, a.actor)
	}

	return strings.Join(elems, ":")
}

// ParseIdentifier takes in the canonical wire form of an
// identifier and turns it back into the struct representation.
func ParseIdentifier(enc string) (Identifier, error) {

	if enc == "" {
		return Identifier{}, fmt.Errorf("empty identifier")
	}

	elems := strings.Split(enc, ":")
	path := make([]atom, len(elems))

	for i, elem := range elems {

		parts := strings.SplitN(elem, ".", 2)
		if len(parts) != 2 || parts[1] == "" {
			return Identifier{}, fmt.Errorf("invalid identifier element '%s'", elem)
		}

		pos, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return Identifier{}, fmt.Errorf("invalid position in identifier element '%s'", elem)
		}

		path[i] = atom{
			pos:   uint32(pos),
			actor: parts[1],
		}
	}

	return Identifier{path: path}, nil
}

// Between allocates a fresh identifier strictly between prev
// and next for the supplied actor. A nil prev stands for the
// virtual begin of the space, a nil next for the virtual end.
// The allocation is dense: when no room is left on the current
// level, the path descends one level under prev.
func Between(prev *Identifier, next *Identifier, actor string) Identifier {

	var prevPath, nextPath []atom

	if prev != nil {
		prevPath = prev.path
	}
	if next != nil {
		nextPath = next.path
	}

	return Identifier{path: betweenPaths(prevPath, nextPath, actor)}
}

// betweenPaths recursively walks both bounding paths level by
// level until it finds room for a new position.
func betweenPaths(prevPath []atom, nextPath []atom, actor string) []atom {

	// Substitute virtual bounds for exhausted paths.
	lo := atom{pos: 0}
	if len(prevPath) > 0 {
		lo = prevPath[0]
	}

	hi := atom{pos: math.MaxUint32}
	if len(nextPath) > 0 {
		hi = nextPath[0]
	}

	// Room on this level: allocate the midpoint position,
	// strictly between both bounds.
	if (lo.pos + 1) < hi.pos {

		mid := lo.pos + ((hi.pos - lo.pos) / 2)

		return []atom{{pos: mid, actor: actor}}
	}

	// No room. Descend under prev: any extension of prev's
	// path orders after it, and still before next as long as
	// next differs from prev on this level at all.
	if len(prevPath) > 0 {

		rest := nextPath
		if len(nextPath) == 0 || lo != nextPath[0] {
			// Next constrains nothing below a differing level.
			rest = nil
		} else {
			rest = nextPath[1:]
		}

		return append([]atom{lo}, betweenPaths(prevPath[1:], rest, actor)...)
	}

	// Prev is the virtual begin but next sits right at the
	// bottom of this level. Midpoint allocation never mints
	// position zero, so an atom at position zero orders
	// before next here regardless of its actor and the path
	// can descend freely under it. The atom carries the
	// allocating actor so the identifier stays parseable.
	if hi.pos >= 1 {
		return append([]atom{{pos: 0, actor: actor}}, betweenPaths(nil, nil, actor)...)
	}

	// Next itself starts with a position-zero atom. Such an
	// atom is never terminal, so reuse it and allocate below
	// it, before the remainder of next's path.
	return append([]atom{hi}, betweenPaths(nil, nextPath[1:], actor)...)
}
