package crdt

import (
	"sort"
	"sync"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Structs

// policyVersion is one applied entry of a map's policy
// history: the policy itself, the identifier it was appended
// under, the version it was derived from and the fork cut
// point, the identifier of the last item present in the
// derived-from branch when the version was created. A nil
// cut denotes an empty or absent previous branch, a nil
// prev the very first policy. Concurrent policy changes
// derive from the same prev and form siblings, so versions
// make up a derivation tree, not a chain.
type policyVersion struct {
	id   Identifier
	pol  policy.Policy
	enc  string
	cut  *Identifier
	prev *Identifier
}

// MapCrdt is a replicated entry store whose access policy
// can change over time. Every policy version owns its own
// branch of the data, forked from the previous version's
// branch at the cut point. Data operations name the policy
// version they were created under and replay onto every
// branch the fork semantics admit them to, so all replicas
// converge on identical branches regardless of arrival
// order. Policy history and data are never rewritten.
type MapCrdt struct {
	lock     sync.RWMutex
	address  types.Address
	actor    string
	policies []policyVersion
	branches map[string]*lseq
}

// Functions

// InitMap returns a fresh map instance at supplied address,
// allocating identifiers on behalf of supplied actor. No
// data can be appended before the first policy was set.
func InitMap(address types.Address, actor string) *MapCrdt {

	return &MapCrdt{
		address:  address,
		actor:    actor,
		policies: make([]policyVersion, 0, 1),
		branches: make(map[string]*lseq),
	}
}

// Address returns the address of this instance.
func (m *MapCrdt) Address() types.Address {
	return m.address
}

// searchPolicy returns the position of the first policy
// version with an identifier >= the supplied one. Expects
// the lock held.
func (m *MapCrdt) searchPolicy(id Identifier) int {

	return sort.Search(len(m.policies), func(i int) bool {
		return !m.policies[i].id.Less(id)
	})
}

// policyAt returns the policy version stored under exactly
// the supplied identifier. Expects the lock held.
func (m *MapCrdt) policyAt(id Identifier) (*policyVersion, bool) {

	i := m.searchPolicy(id)
	if i < len(m.policies) && m.policies[i].id.Equal(id) {
		return &m.policies[i], true
	}

	return nil, false
}

// SetPolicy appends supplied policy as the new current
// version locally and returns the operation to sign and
// replicate. The new version's branch starts as a copy of
// the current branch, cut at its present last item.
func (m *MapCrdt) SetPolicy(pol policy.Policy, source auth.PublicKey) *MapPolicyOp {

	m.lock.Lock()
	defer m.lock.Unlock()

	var id Identifier
	var cut, ctxPrev *Identifier

	branch := newLSeq(m.actor)

	if len(m.policies) == 0 {
		id = Between(nil, nil, m.actor)
	} else {

		prev := m.policies[len(m.policies)-1]
		ctxPrev = &prev.id
		id = Between(&prev.id, nil, m.actor)

		// Fork the current branch at its last item.
		prevBranch := m.branches[prev.id.String()]
		if last, ok := prevBranch.Last(); ok {
			cut = &last.ID
		}
		branch = prevBranch.CopyThrough(cut)
	}

	m.policies = append(m.policies, policyVersion{
		id:   id,
		pol:  pol,
		enc:  pol.String(),
		cut:  cut,
		prev: ctxPrev,
	})
	m.branches[id.String()] = branch

	return &MapPolicyOp{
		Address: m.address,
		Policy:  pol.String(),
		Cut:     cut,
		ID:      id,
		CtxPrev: ctxPrev,
		Source:  source,
	}
}

// ApplyPolicyOp verifies and applies supplied policy
// operation. An operation whose previous policy version has
// not arrived yet fails with ErrNotCausallyReady and can be
// retried. Already applied operations are a no-op.
func (m *MapCrdt) ApplyPolicyOp(op *MapPolicyOp) error {

	// Check the authenticity of the operation before
	// anything else.
	err := verifyEnvelope(op.Source, op.Signature, op.SignedBytes())
	if err != nil {
		return err
	}

	if !op.Address.Equal(m.address) {
		return ErrWrongAddress
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	_, found := m.policyAt(op.ID)
	if found {
		return nil
	}

	branch := newLSeq(m.actor)

	if op.CtxPrev != nil {

		// Gate on the previous version being present.
		prev, found := m.policyAt(*op.CtxPrev)
		if !found {
			return ErrNotCausallyReady
		}

		prevBranch, found := m.branches[prev.id.String()]
		if !found {
			return ErrInconsistentState
		}

		branch = prevBranch.CopyThrough(op.Cut)
	}

	pol, err := policy.Parse(op.Policy)
	if err != nil {
		return ErrInconsistentState
	}

	i := m.searchPolicy(op.ID)
	m.policies = append(m.policies, policyVersion{})
	copy(m.policies[i+1:], m.policies[i:])
	m.policies[i] = policyVersion{
		id:   op.ID,
		pol:  pol,
		enc:  op.Policy,
		cut:  op.Cut,
		prev: op.CtxPrev,
	}
	m.branches[op.ID.String()] = branch

	return nil
}

// Append inserts supplied entry at the end of the current
// branch locally and returns the operation to sign and
// replicate. Appending to a map without any policy fails
// with ErrNoPolicy.
func (m *MapCrdt) Append(entry []byte, source auth.PublicKey) (*MapDataOp, error) {

	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.policies) == 0 {
		return nil, ErrNoPolicy
	}

	cur := m.policies[len(m.policies)-1]
	branch := m.branches[cur.id.String()]

	id := branch.AllocEnd()
	branch.Insert(id, entry)

	return &MapDataOp{
		Address: m.address,
		Ctx:     cur.id,
		ID:      id,
		Entry:   entry,
		Source:  source,
	}, nil
}

// ApplyDataOp verifies and applies supplied data operation.
// An operation whose policy context has not arrived yet fails
// with ErrNotCausallyReady and can be retried once the policy
// operation was applied. The operation lands on its context's
// branch and replays onto every branch derived from it whose
// forks all admit it. Already applied operations are a no-op.
func (m *MapCrdt) ApplyDataOp(op *MapDataOp) error {

	// Check the authenticity of the operation before
	// anything else.
	err := verifyEnvelope(op.Source, op.Signature, op.SignedBytes())
	if err != nil {
		return err
	}

	if !op.Address.Equal(m.address) {
		return ErrWrongAddress
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	// Gate on the operation's policy context being present.
	i := m.searchPolicy(op.Ctx)
	if i == len(m.policies) || !m.policies[i].id.Equal(op.Ctx) {
		return ErrNotCausallyReady
	}

	// The operation lands on its context's branch and then
	// carries forward along every derivation chain whose
	// forks all admit its identifier. Sibling versions fork
	// independently, so one excluding cut prunes only its
	// own subtree. Versions always derive from versions with
	// smaller identifiers, which makes a single id-ordered
	// pass visit every prev before its descendants.
	admitted := map[string]bool{op.Ctx.String(): true}

	for ; i < len(m.policies); i++ {

		version := m.policies[i]

		if !version.id.Equal(op.Ctx) {

			if version.prev == nil || !admitted[version.prev.String()] {
				continue
			}

			if version.cut != nil && version.cut.Less(op.ID) {
				continue
			}

			admitted[version.id.String()] = true
		}

		branch, found := m.branches[version.id.String()]
		if !found {
			return ErrInconsistentState
		}

		branch.Insert(op.ID, op.Entry)
	}

	return nil
}

// currentBranch returns the branch of the latest policy
// version, or false if no policy was set yet. Expects the
// lock held.
func (m *MapCrdt) currentBranch() (*lseq, bool) {

	if len(m.policies) == 0 {
		return nil, false
	}

	branch, found := m.branches[m.policies[len(m.policies)-1].id.String()]

	return branch, found
}

// CurrentPolicy returns the latest policy version, or
// false if no policy was set yet.
func (m *MapCrdt) CurrentPolicy() (policy.Policy, bool) {

	m.lock.RLock()
	defer m.lock.RUnlock()

	if len(m.policies) == 0 {
		return nil, false
	}

	return m.policies[len(m.policies)-1].pol, true
}

// Policy returns the policy version at supplied history
// index, or false if the index denotes no version.
func (m *MapCrdt) Policy(index types.Index) (policy.Policy, bool) {

	m.lock.RLock()
	defer m.lock.RUnlock()

	i, ok := index.AbsoluteElement(uint64(len(m.policies)))
	if !ok {
		return nil, false
	}

	return m.policies[i].pol, true
}

// PolicyLen returns the number of policy versions applied.
func (m *MapCrdt) PolicyLen() uint64 {

	m.lock.RLock()
	defer m.lock.RUnlock()

	return uint64(len(m.policies))
}

// Len returns the number of entries on the current branch.
func (m *MapCrdt) Len() uint64 {

	m.lock.RLock()
	defer m.lock.RUnlock()

	branch, ok := m.currentBranch()
	if !ok {
		return 0
	}

	return branch.Len()
}

// Get returns the entry at supplied index of the current
// branch, or false if the index denotes no entry.
func (m *MapCrdt) Get(index types.Index) ([]byte, bool) {

	m.lock.RLock()
	defer m.lock.RUnlock()

	branch, ok := m.currentBranch()
	if !ok {
		return nil, false
	}

	i, ok := index.AbsoluteElement(branch.Len())
	if !ok {
		return nil, false
	}

	return branch.At(i).Value, true
}

// LastEntry returns the most recent entry of the current
// branch, or false on an empty branch.
func (m *MapCrdt) LastEntry() ([]byte, bool) {

	m.lock.RLock()
	defer m.lock.RUnlock()

	branch, ok := m.currentBranch()
	if !ok {
		return nil, false
	}

	elem, ok := branch.Last()
	if !ok {
		return nil, false
	}

	return elem.Value, true
}

// InRange returns the entries of the current branch within
// the supplied index range, or false if either bound is
// invalid or the start lies past the end. A valid empty
// range yields an empty, non-false result.
func (m *MapCrdt) InRange(start types.Index, end types.Index) ([][]byte, bool) {

	m.lock.RLock()
	defer m.lock.RUnlock()

	branch, ok := m.currentBranch()
	if !ok {

		// With no policy there is no branch, only the
		// everything-empty range is valid.
		first, last, ok := types.AbsoluteRange(start, end, 0)
		if !ok || first != last {
			return nil, false
		}

		return [][]byte{}, true
	}

	first, last, ok := types.AbsoluteRange(start, end, branch.Len())
	if !ok {
		return nil, false
	}

	elems := branch.Slice(first, last)

	entries := make([][]byte, len(elems))
	for i, elem := range elems {
		entries[i] = elem.Value
	}

	return entries, true
}
