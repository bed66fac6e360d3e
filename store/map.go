package store

import (
	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Structs

// Map wraps one map instance together with the key pair
// owning the local replica. Unlike the other kinds a map
// starts without a policy and accepts no data before the
// first one was set.
type Map struct {
	keypair *auth.Keypair
	data    *crdt.MapCrdt
}

// Functions

// NewPublicMap creates a publicly readable map instance
// under supplied name and type tag.
func NewPublicMap(name string, tag uint64, actor string, keypair *auth.Keypair) *Map {

	address := types.NewAddress(types.KindPublic, name, tag)

	return &Map{
		keypair: keypair,
		data:    crdt.InitMap(address, actor),
	}
}

// NewPrivateMap creates a map instance in the private
// namespace under supplied name and type tag.
func NewPrivateMap(name string, tag uint64, actor string, keypair *auth.Keypair) *Map {

	address := types.NewAddress(types.KindPrivate, name, tag)

	return &Map{
		keypair: keypair,
		data:    crdt.InitMap(address, actor),
	}
}

// Address returns the address of the wrapped instance.
func (m *Map) Address() types.Address {
	return m.data.Address()
}

// Crdt exposes the wrapped instance for registration
// with the replication layer.
func (m *Map) Crdt() *crdt.MapCrdt {
	return m.data
}

// SetPolicy checks the local identity's admin permission
// against the current policy, then applies and signs the
// operation installing supplied policy as the new current
// version. The very first policy requires no permission,
// it establishes ownership of the instance.
func (m *Map) SetPolicy(pol policy.Policy) (*crdt.MapPolicyOp, error) {

	current, exists := m.data.CurrentPolicy()
	if exists {

		err := current.IsActionAllowed(m.keypair.Public, policy.ActionAdmin)
		if err != nil {
			return nil, err
		}
	}

	op := m.data.SetPolicy(pol, m.keypair.Public)
	op.Sign(m.keypair)

	return op, nil
}

// Append checks the local identity's append permission
// against the current policy, then applies and signs the
// operation appending supplied entry to the current branch.
func (m *Map) Append(entry []byte) (*crdt.MapDataOp, error) {

	current, exists := m.data.CurrentPolicy()
	if !exists {
		return nil, crdt.ErrNoPolicy
	}

	err := current.IsActionAllowed(m.keypair.Public, policy.ActionAppend)
	if err != nil {
		return nil, err
	}

	op, err := m.data.Append(entry, m.keypair.Public)
	if err != nil {
		return nil, err
	}

	op.Sign(m.keypair)

	return op, nil
}

// isReadAllowed checks supplied requester's read permission
// against the current policy. Reading public instances is
// always allowed.
func (m *Map) isReadAllowed(requester auth.PublicKey) error {

	if m.data.Address().IsPublic() {
		return nil
	}

	current, exists := m.data.CurrentPolicy()
	if !exists {
		return crdt.ErrNoPolicy
	}

	return current.IsActionAllowed(requester, policy.ActionRead)
}

// Get returns the entry at supplied index of the current
// branch on behalf of supplied requester. The boolean
// result is false if the index denotes no entry.
func (m *Map) Get(requester auth.PublicKey, index types.Index) ([]byte, bool, error) {

	err := m.isReadAllowed(requester)
	if err != nil {
		return nil, false, err
	}

	entry, ok := m.data.Get(index)

	return entry, ok, nil
}

// LastEntry returns the most recent entry of the current
// branch on behalf of supplied requester, false on an
// empty branch.
func (m *Map) LastEntry(requester auth.PublicKey) ([]byte, bool, error) {

	err := m.isReadAllowed(requester)
	if err != nil {
		return nil, false, err
	}

	entry, ok := m.data.LastEntry()

	return entry, ok, nil
}

// InRange returns the entries of the current branch within
// the supplied index range on behalf of supplied requester.
// The boolean result is false if the range denotes no data.
func (m *Map) InRange(requester auth.PublicKey, start types.Index, end types.Index) ([][]byte, bool, error) {

	err := m.isReadAllowed(requester)
	if err != nil {
		return nil, false, err
	}

	entries, ok := m.data.InRange(start, end)

	return entries, ok, nil
}

// Policy returns the policy version at supplied history
// index on behalf of supplied requester.
func (m *Map) Policy(requester auth.PublicKey, index types.Index) (policy.Policy, bool, error) {

	err := m.isReadAllowed(requester)
	if err != nil {
		return nil, false, err
	}

	pol, ok := m.data.Policy(index)

	return pol, ok, nil
}
