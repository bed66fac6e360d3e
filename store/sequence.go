package store

import (
	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Structs

// Sequence wraps one sequence instance together with the
// key pair owning the local replica. All writes are checked
// against the instance policy and signed before they leave
// this struct.
type Sequence struct {
	keypair *auth.Keypair
	data    *crdt.SequenceCrdt
}

// Functions

// NewPublicSequence creates a publicly readable sequence
// instance under supplied name and type tag.
func NewPublicSequence(name string, tag uint64, actor string, pol policy.Policy, keypair *auth.Keypair) *Sequence {

	address := types.NewAddress(types.KindPublic, name, tag)

	return &Sequence{
		keypair: keypair,
		data:    crdt.InitSequence(address, actor, pol),
	}
}

// NewPrivateSequence creates a sequence instance in the
// private namespace under supplied name and type tag.
func NewPrivateSequence(name string, tag uint64, actor string, pol policy.Policy, keypair *auth.Keypair) *Sequence {

	address := types.NewAddress(types.KindPrivate, name, tag)

	return &Sequence{
		keypair: keypair,
		data:    crdt.InitSequence(address, actor, pol),
	}
}

// Address returns the address of the wrapped instance.
func (s *Sequence) Address() types.Address {
	return s.data.Address()
}

// Crdt exposes the wrapped instance for registration
// with the replication layer.
func (s *Sequence) Crdt() *crdt.SequenceCrdt {
	return s.data
}

// Append checks the local identity's append permission,
// then builds, signs and applies the operation appending
// supplied entry at the end of the sequence. The returned
// operation is ready for replication.
func (s *Sequence) Append(entry []byte) (*crdt.SequenceOp, error) {
	return s.appendAt(nil, entry)
}

// AppendAfter behaves like Append but anchors the new entry
// immediately after the supplied marker instead of at the
// end of the sequence.
func (s *Sequence) AppendAfter(after *crdt.Identifier, entry []byte) (*crdt.SequenceOp, error) {
	return s.appendAt(after, entry)
}

// appendAt is the shared write path of Append and AppendAfter.
func (s *Sequence) appendAt(after *crdt.Identifier, entry []byte) (*crdt.SequenceOp, error) {

	err := s.data.Policy().IsActionAllowed(s.keypair.Public, policy.ActionAppend)
	if err != nil {
		return nil, err
	}

	op := s.data.CreateAppendOp(after, entry, s.keypair.Public)
	op.Sign(s.keypair)

	err = s.data.ApplyOp(op)
	if err != nil {
		return nil, err
	}

	return op, nil
}

// isReadAllowed checks supplied requester's read permission.
// Reading public instances is always allowed.
func (s *Sequence) isReadAllowed(requester auth.PublicKey) error {

	if s.data.Address().IsPublic() {
		return nil
	}

	return s.data.Policy().IsActionAllowed(requester, policy.ActionRead)
}

// Get returns the entry at supplied index on behalf of
// supplied requester. The boolean result is false if the
// index denotes no entry.
func (s *Sequence) Get(requester auth.PublicKey, index types.Index) ([]byte, bool, error) {

	err := s.isReadAllowed(requester)
	if err != nil {
		return nil, false, err
	}

	entry, ok := s.data.Get(index)

	return entry, ok, nil
}

// LastEntry returns the most recent entry and its marker on
// behalf of supplied requester, false on an empty sequence.
func (s *Sequence) LastEntry(requester auth.PublicKey) ([]byte, *crdt.Identifier, bool, error) {

	err := s.isReadAllowed(requester)
	if err != nil {
		return nil, nil, false, err
	}

	entry, id, ok := s.data.LastEntry()

	return entry, id, ok, nil
}

// InRange returns the entries within the supplied index
// range on behalf of supplied requester. The boolean result
// is false if the range denotes no data.
func (s *Sequence) InRange(requester auth.PublicKey, start types.Index, end types.Index) ([][]byte, bool, error) {

	err := s.isReadAllowed(requester)
	if err != nil {
		return nil, false, err
	}

	entries, ok := s.data.InRange(start, end)

	return entries, ok, nil
}
