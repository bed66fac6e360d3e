package crdt

import (
	"sort"
)

// Structs

// Element is one entry of an ordered sequence together with
// the position identifier it was inserted under.
type Element struct {
	ID    Identifier
	Value []byte
}

// lseq is the ordered building block shared by the sequence
// type, the map branches and the map policy history: entries
// sorted by their dense position identifiers, with insertion
// idempotent by identifier. Entries are never removed. The
// allocation counter makes every identifier handed out by
// one instance unique, even before any of them is inserted.
type lseq struct {
	actor  string
	nalloc uint32
	elems  []Element
}

// Functions

// newLSeq returns an empty ordered sequence allocating
// identifiers on behalf of supplied actor.
func newLSeq(actor string) *lseq {

	return &lseq{
		actor: actor,
		elems: make([]Element, 0, 8),
	}
}

// Len returns the number of entries.
func (s *lseq) Len() uint64 {
	return uint64(len(s.elems))
}

// search returns the position of the first element with an
// identifier >= the supplied one.
func (s *lseq) search(id Identifier) int {

	return sort.Search(len(s.elems), func(i int) bool {
		return !s.elems[i].ID.Less(id)
	})
}

// tagged extends a freshly allocated identifier with a
// counter atom. Identifiers allocated strictly between two
// bounds keep ordering between them under any extension, so
// the tag changes no ordering, but it keeps two allocations
// at the same anchor from colliding before either of them
// was inserted.
func (s *lseq) tagged(id Identifier) Identifier {

	s.nalloc++
	id.path = append(id.path, atom{pos: s.nalloc, actor: s.actor})

	return id
}

// Alloc produces a fresh identifier for an entry inserted
// immediately after the supplied anchor. The identifier
// orders before the anchor's current successor, and
// concurrent allocations at the same anchor stay totally
// ordered by the actor tie-break inside the identifier.
func (s *lseq) Alloc(after Identifier) Identifier {

	var next *Identifier

	// Bounded above by the anchor's successor, if any.
	i := s.search(after)
	if i < len(s.elems) && s.elems[i].ID.Equal(after) {
		i++
	}
	if i < len(s.elems) {
		next = &s.elems[i].ID
	}

	return s.tagged(Between(&after, next, s.actor))
}

// AllocEnd produces a fresh identifier ordering after every
// entry currently present.
func (s *lseq) AllocEnd() Identifier {

	if len(s.elems) == 0 {
		return s.tagged(Between(nil, nil, s.actor))
	}

	return s.tagged(Between(&s.elems[len(s.elems)-1].ID, nil, s.actor))
}

// Insert places supplied value at its identifier's position.
// Inserting an already present identifier is a no-op, which
// makes replayed and duplicated operations safe.
func (s *lseq) Insert(id Identifier, value []byte) {

	i := s.search(id)
	if i < len(s.elems) && s.elems[i].ID.Equal(id) {
		return
	}

	s.elems = append(s.elems, Element{})
	copy(s.elems[i+1:], s.elems[i:])
	s.elems[i] = Element{
		ID:    id,
		Value: value,
	}
}

// At returns the element at the supplied absolute position.
func (s *lseq) At(i uint64) Element {
	return s.elems[i]
}

// Last returns the last element and true, or false if
// the sequence is empty.
func (s *lseq) Last() (Element, bool) {

	if len(s.elems) == 0 {
		return Element{}, false
	}

	return s.elems[len(s.elems)-1], true
}

// Slice returns the elements within the absolute, half-open
// range [first, last).
func (s *lseq) Slice(first uint64, last uint64) []Element {

	out := make([]Element, last-first)
	copy(out, s.elems[first:last])

	return out
}

// CopyThrough returns an independent copy holding only the
// entries whose identifier orders at or before the supplied
// cut, or all entries if the cut is nil.
func (s *lseq) CopyThrough(cut *Identifier) *lseq {

	copied := newLSeq(s.actor)
	copied.nalloc = s.nalloc

	for _, elem := range s.elems {

		if cut != nil && cut.Less(elem.ID) {
			continue
		}

		copied.elems = append(copied.elems, elem)
	}

	return copied
}
