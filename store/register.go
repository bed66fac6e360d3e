package store

import (
	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Structs

// Register wraps one register instance together with the
// key pair owning the local replica.
type Register struct {
	keypair *auth.Keypair
	data    *crdt.RegisterCrdt
}

// Functions

// NewPublicRegister creates a publicly readable register
// instance under supplied name and type tag.
func NewPublicRegister(name string, tag uint64, pol policy.Policy, keypair *auth.Keypair) *Register {

	address := types.NewAddress(types.KindPublic, name, tag)

	return &Register{
		keypair: keypair,
		data:    crdt.InitRegister(address, pol),
	}
}

// NewPrivateRegister creates a register instance in the
// private namespace under supplied name and type tag.
func NewPrivateRegister(name string, tag uint64, pol policy.Policy, keypair *auth.Keypair) *Register {

	address := types.NewAddress(types.KindPrivate, name, tag)

	return &Register{
		keypair: keypair,
		data:    crdt.InitRegister(address, pol),
	}
}

// Address returns the address of the wrapped instance.
func (r *Register) Address() types.Address {
	return r.data.Address()
}

// Crdt exposes the wrapped instance for registration
// with the replication layer.
func (r *Register) Crdt() *crdt.RegisterCrdt {
	return r.data
}

// Write checks the local identity's append permission, then
// applies and signs the write of supplied entry on top of
// the named parent writes. Passing the current heads as
// parents merges them, passing nil starts the history.
func (r *Register) Write(entry []byte, parents []crdt.EntryHash) (crdt.EntryHash, *crdt.RegisterOp, error) {

	err := r.data.Policy().IsActionAllowed(r.keypair.Public, policy.ActionAppend)
	if err != nil {
		return crdt.EntryHash{}, nil, err
	}

	hash, op, err := r.data.Write(entry, parents, r.keypair.Public)
	if err != nil {
		return crdt.EntryHash{}, nil, err
	}

	op.Sign(r.keypair)

	return hash, op, nil
}

// isReadAllowed checks supplied requester's read permission.
// Reading public instances is always allowed.
func (r *Register) isReadAllowed(requester auth.PublicKey) error {

	if r.data.Address().IsPublic() {
		return nil
	}

	return r.data.Policy().IsActionAllowed(requester, policy.ActionRead)
}

// Read returns the entries of all current heads on behalf
// of supplied requester.
func (r *Register) Read(requester auth.PublicKey) ([][]byte, error) {

	err := r.isReadAllowed(requester)
	if err != nil {
		return nil, err
	}

	return r.data.Read(), nil
}

// Heads returns the hashes of all current heads on behalf
// of supplied requester.
func (r *Register) Heads(requester auth.PublicKey) ([]crdt.EntryHash, error) {

	err := r.isReadAllowed(requester)
	if err != nil {
		return nil, err
	}

	return r.data.Heads(), nil
}

// Get returns the entry written under supplied hash on
// behalf of supplied requester. The boolean result is false
// if no such write was applied.
func (r *Register) Get(requester auth.PublicKey, hash crdt.EntryHash) ([]byte, bool, error) {

	err := r.isReadAllowed(requester)
	if err != nil {
		return nil, false, err
	}

	entry, ok := r.data.Get(hash)

	return entry, ok, nil
}
