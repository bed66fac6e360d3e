package crdt

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Structs

// EntryHash content-addresses one write in a register's
// history: the hash over the write's canonical form of
// sorted parent hashes plus entry bytes.
type EntryHash struct {
	Raw [sha256.Size]byte
}

// registerNode is one applied write in the history DAG.
// children counts the applied writes naming this one as
// a parent, a node with zero children is a current head.
type registerNode struct {
	entry    []byte
	parents  []EntryHash
	children int
}

// RegisterCrdt is a multi-value register replicated across
// actors. Every write names the heads it supersedes, forming
// a hash-linked history DAG. Concurrent writes leave multiple
// heads in place, all of which a read reports. History is
// never rewritten.
type RegisterCrdt struct {
	lock    sync.RWMutex
	address types.Address
	policy  policy.Policy
	nodes   map[EntryHash]*registerNode
}

// Functions

// String marshalls an EntryHash into its canonical
// hex wire form.
func (h EntryHash) String() string {
	return hex.EncodeToString(h.Raw[:])
}

// Equal returns true if both hashes address the same write.
func (h EntryHash) Equal(other EntryHash) bool {
	return h.Raw == other.Raw
}

// Less orders two hashes bytewise for deterministic
// head enumeration.
func (h EntryHash) Less(other EntryHash) bool {
	return bytes.Compare(h.Raw[:], other.Raw[:]) < 0
}

// ParseEntryHash takes in the canonical hex form of an
// EntryHash and turns it back into the struct representation.
func ParseEntryHash(enc string) (EntryHash, error) {

	raw, err := hex.DecodeString(enc)
	if err != nil {
		return EntryHash{}, fmt.Errorf("invalid hex in entry hash: %v", err)
	}

	if len(raw) != sha256.Size {
		return EntryHash{}, fmt.Errorf("invalid entry hash length %d", len(raw))
	}

	var h EntryHash
	copy(h.Raw[:], raw)

	return h, nil
}

// HashEntry derives the content address of a write from its
// sorted parent hashes and entry bytes. Every replica derives
// the identical hash for the identical write.
func HashEntry(parents []EntryHash, entry []byte) EntryHash {

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s",
		encParents(parents),
		base64.StdEncoding.EncodeToString(entry),
	)))

	return EntryHash{Raw: sum}
}

// InitRegister returns a fresh register instance at supplied
// address, governed by supplied fixed policy.
func InitRegister(address types.Address, pol policy.Policy) *RegisterCrdt {

	return &RegisterCrdt{
		address: address,
		policy:  pol,
		nodes:   make(map[EntryHash]*registerNode),
	}
}

// Address returns the address of this instance.
func (r *RegisterCrdt) Address() types.Address {
	return r.address
}

// Policy returns the fixed policy of this instance.
func (r *RegisterCrdt) Policy() policy.Policy {
	return r.policy
}

// Write applies supplied entry on top of the named parent
// writes locally and returns the new write's hash together
// with the operation to sign and replicate. Parents usually
// are the current heads, naming an unknown parent fails with
// ErrUnknownParent. The first write names no parents.
func (r *RegisterCrdt) Write(entry []byte, parents []EntryHash, source auth.PublicKey) (EntryHash, *RegisterOp, error) {

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, parent := range parents {

		_, found := r.nodes[parent]
		if !found {
			return EntryHash{}, nil, ErrUnknownParent
		}
	}

	hash := r.apply(parents, entry)

	op := &RegisterOp{
		Address: r.address,
		Parents: parents,
		Entry:   entry,
		Source:  source,
	}

	return hash, op, nil
}

// ApplyOp verifies and applies supplied write operation.
// Operations with a missing or invalid signature or a foreign
// address are rejected. An operation naming a parent that has
// not arrived yet fails with ErrNotCausallyReady and can be
// retried once the parent write was applied. Already applied
// operations are a no-op.
func (r *RegisterCrdt) ApplyOp(op *RegisterOp) error {

	// Check the authenticity of the operation before
	// anything else.
	err := verifyEnvelope(op.Source, op.Signature, op.SignedBytes())
	if err != nil {
		return err
	}

	if !op.Address.Equal(r.address) {
		return ErrWrongAddress
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, parent := range op.Parents {

		_, found := r.nodes[parent]
		if !found {
			return ErrNotCausallyReady
		}
	}

	r.apply(op.Parents, op.Entry)

	return nil
}

// apply inserts the write derived from supplied parents and
// entry into the DAG. Expects all parents present and the
// lock held. Re-applying an already present write is a no-op.
func (r *RegisterCrdt) apply(parents []EntryHash, entry []byte) EntryHash {

	hash := HashEntry(parents, entry)

	_, found := r.nodes[hash]
	if found {
		return hash
	}

	r.nodes[hash] = &registerNode{
		entry:   entry,
		parents: parents,
	}

	for _, parent := range parents {
		r.nodes[parent].children++
	}

	return hash
}

// Heads returns the hashes of all current heads, writes no
// later write has superseded yet, in deterministic order.
func (r *RegisterCrdt) Heads() []EntryHash {

	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.heads()
}

// heads collects the current head hashes sorted bytewise.
// Expects the lock held.
func (r *RegisterCrdt) heads() []EntryHash {

	heads := make([]EntryHash, 0, 1)

	for hash, node := range r.nodes {

		if node.children == 0 {
			heads = append(heads, hash)
		}
	}

	sort.Slice(heads, func(i, j int) bool {
		return heads[i].Less(heads[j])
	})

	return heads
}

// Read returns the entries of all current heads in
// deterministic order. Concurrent unmerged writes surface
// as multiple entries, an empty register as none.
func (r *RegisterCrdt) Read() [][]byte {

	r.lock.RLock()
	defer r.lock.RUnlock()

	heads := r.heads()

	entries := make([][]byte, len(heads))
	for i, hash := range heads {
		entries[i] = r.nodes[hash].entry
	}

	return entries
}

// Get returns the entry written under supplied hash, or
// false if no such write was applied.
func (r *RegisterCrdt) Get(hash EntryHash) ([]byte, bool) {

	r.lock.RLock()
	defer r.lock.RUnlock()

	node, found := r.nodes[hash]
	if !found {
		return nil, false
	}

	return node.entry, true
}

// Size returns the number of applied writes.
func (r *RegisterCrdt) Size() uint64 {

	r.lock.RLock()
	defer r.lock.RUnlock()

	return uint64(len(r.nodes))
}
