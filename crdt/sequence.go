package crdt

import (
	"sync"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Structs

// SequenceCrdt is an append-only ordered list of entries
// replicated across actors. Appends are anchored at a marker
// identifier handed out by an earlier append, concurrent
// appends at the same anchor converge into one total order
// via the actor tie-break inside the identifiers. Entries
// are never mutated or removed.
type SequenceCrdt struct {
	lock    sync.RWMutex
	address types.Address
	policy  policy.Policy
	data    *lseq
}

// Functions

// InitSequence returns a fresh sequence instance at supplied
// address, allocating markers on behalf of supplied actor and
// governed by supplied fixed policy.
func InitSequence(address types.Address, actor string, pol policy.Policy) *SequenceCrdt {

	return &SequenceCrdt{
		address: address,
		policy:  pol,
		data:    newLSeq(actor),
	}
}

// Address returns the address of this instance.
func (s *SequenceCrdt) Address() types.Address {
	return s.address
}

// Policy returns the fixed policy of this instance.
func (s *SequenceCrdt) Policy() policy.Policy {
	return s.policy
}

// CreateAppendOp builds the operation inserting supplied entry
// immediately after the supplied anchor marker, or at the end
// of the sequence if the anchor is nil. No entry is inserted,
// the caller signs the returned operation and routes it
// through ApplyOp like any remote one.
func (s *SequenceCrdt) CreateAppendOp(after *Identifier, entry []byte, source auth.PublicKey) *SequenceOp {

	// Allocation advances the counter that keeps repeated
	// allocations at one anchor distinct, hence the write
	// lock despite no entry changing.
	s.lock.Lock()
	defer s.lock.Unlock()

	var id Identifier
	if after == nil {
		id = s.data.AllocEnd()
	} else {
		id = s.data.Alloc(*after)
	}

	return &SequenceOp{
		Address: s.address,
		ID:      id,
		Entry:   entry,
		Source:  source,
	}
}

// ApplyOp verifies and applies supplied append operation.
// Operations with a missing or invalid signature or a foreign
// address are rejected, already applied operations are a no-op.
func (s *SequenceCrdt) ApplyOp(op *SequenceOp) error {

	// Check the authenticity of the operation before
	// anything else.
	err := verifyEnvelope(op.Source, op.Signature, op.SignedBytes())
	if err != nil {
		return err
	}

	if !op.Address.Equal(s.address) {
		return ErrWrongAddress
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.data.Insert(op.ID, op.Entry)

	return nil
}

// Len returns the number of entries.
func (s *SequenceCrdt) Len() uint64 {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.data.Len()
}

// Get returns the entry at supplied index, or false if the
// index denotes no entry.
func (s *SequenceCrdt) Get(index types.Index) ([]byte, bool) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	i, ok := index.AbsoluteElement(s.data.Len())
	if !ok {
		return nil, false
	}

	return s.data.At(i).Value, true
}

// LastEntry returns the most recent entry together with its
// marker identifier, or false on an empty sequence.
func (s *SequenceCrdt) LastEntry() ([]byte, *Identifier, bool) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	elem, ok := s.data.Last()
	if !ok {
		return nil, nil, false
	}

	return elem.Value, &elem.ID, true
}

// InRange returns the entries within the supplied index range,
// or false if either bound is invalid or the start lies past
// the end. A valid empty range yields an empty, non-false result.
func (s *SequenceCrdt) InRange(start types.Index, end types.Index) ([][]byte, bool) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	first, last, ok := types.AbsoluteRange(start, end, s.data.Len())
	if !ok {
		return nil, false
	}

	elems := s.data.Slice(first, last)

	entries := make([][]byte, len(elems))
	for i, elem := range elems {
		entries[i] = elem.Value
	}

	return entries, true
}
