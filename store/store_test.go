package store

import (
	"testing"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
	"github.com/stretchr/testify/assert"
)

// Functions

func newKeypair(t *testing.T) *auth.Keypair {

	keypair, err := auth.NewKeypair()
	assert.Nil(t, err, "key pair generation should not fail")

	return keypair
}

func ownerOnlyPolicy(owner auth.PublicKey) policy.Policy {

	return policy.Public{
		PolicyOwner: owner,
		Permissions: map[policy.User]policy.PublicPermissions{},
	}
}

func privatePolicy(owner auth.PublicKey, reader auth.PublicKey) policy.Policy {

	return policy.Private{
		PolicyOwner: owner,
		Permissions: map[policy.User]policy.PrivatePermissions{
			policy.UserFrom(reader): {
				Read: true,
			},
		},
	}
}

// TestSequenceStore checks the permission gate and the
// signing of the sequence write path.
func TestSequenceStore(t *testing.T) {

	owner := newKeypair(t)
	stranger := newKeypair(t)

	seq := NewPublicSequence("books", 20, "a", ownerOnlyPolicy(owner.Public), owner)

	op, err := seq.Append([]byte("a brief history of time"))
	assert.Nil(t, err, "owner append should be allowed")
	assert.NotNil(t, op.Signature, "locally created operation should carry a signature")
	assert.Equal(t, uint64(1), seq.Crdt().Len(), "append should apply locally")

	// A replica owned by a key without append permission
	// refuses to construct the operation.
	denied := NewPublicSequence("books", 20, "b", ownerOnlyPolicy(owner.Public), stranger)

	_, err = denied.Append([]byte("unauthorized"))
	assert.Equal(t, policy.ErrAccessDenied, err, "stranger append should be denied")
	assert.Equal(t, uint64(0), denied.Crdt().Len(), "denied append should not apply")

	// Public instances are readable by anyone.
	entry, ok, err := seq.Get(stranger.Public, types.FromEnd(0))
	assert.Nil(t, err, "public read should be allowed for anyone")
	assert.True(t, ok, "entry should exist at FromEnd(0)")
	assert.Equal(t, []byte("a brief history of time"), entry, "read should return the appended entry")

	// Marker-anchored append lands mid-sequence.
	_, err = seq.Append([]byte("the selfish gene"))
	assert.Nil(t, err, "second append should be allowed")

	_, first, ok, err := seq.LastEntry(owner.Public)
	assert.Nil(t, err, "owner read should be allowed")
	assert.True(t, ok, "sequence should have a last entry")
	assert.NotNil(t, first, "last entry should carry its marker")
}

// TestPrivateSequenceReads checks that private instances
// enforce explicit read grants.
func TestPrivateSequenceReads(t *testing.T) {

	owner := newKeypair(t)
	reader := newKeypair(t)
	stranger := newKeypair(t)

	seq := NewPrivateSequence("drafts", 7, "a", privatePolicy(owner.Public, reader.Public), owner)

	_, err := seq.Append([]byte("draft-1"))
	assert.Nil(t, err, "owner append should be allowed")

	_, _, err = seq.InRange(reader.Public, types.FromStart(0), types.FromEnd(0))
	assert.Nil(t, err, "granted reader should be allowed")

	_, _, err = seq.InRange(stranger.Public, types.FromStart(0), types.FromEnd(0))
	assert.Equal(t, policy.ErrAccessDenied, err, "stranger read should be denied")
}

// TestRegisterStore checks the register write path and the
// public read shortcut.
func TestRegisterStore(t *testing.T) {

	owner := newKeypair(t)
	stranger := newKeypair(t)

	reg := NewPublicRegister("profile", 42, ownerOnlyPolicy(owner.Public), owner)

	hash, op, err := reg.Write([]byte("v1"), nil)
	assert.Nil(t, err, "owner write should be allowed")
	assert.NotNil(t, op.Signature, "locally created operation should carry a signature")

	heads, err := reg.Heads(stranger.Public)
	assert.Nil(t, err, "public heads read should be allowed for anyone")
	assert.Equal(t, []crdt.EntryHash{hash}, heads, "single write should be the only head")

	entry, ok, err := reg.Get(stranger.Public, hash)
	assert.Nil(t, err, "public get should be allowed for anyone")
	assert.True(t, ok, "write should be retrievable by hash")
	assert.Equal(t, []byte("v1"), entry, "get should return the written entry")

	denied := NewPublicRegister("profile", 42, ownerOnlyPolicy(owner.Public), stranger)

	_, _, err = denied.Write([]byte("unauthorized"), nil)
	assert.Equal(t, policy.ErrAccessDenied, err, "stranger write should be denied")
}

// TestMapStore checks the policy lifecycle of the map
// write path.
func TestMapStore(t *testing.T) {

	owner := newKeypair(t)
	stranger := newKeypair(t)

	m := NewPrivateMap("ledger", 9, "a", owner)

	// No data before the first policy.
	_, err := m.Append([]byte("too early"))
	assert.Equal(t, crdt.ErrNoPolicy, err, "append before first policy should fail")

	// The first policy needs no permission.
	polOp, err := m.SetPolicy(privatePolicy(owner.Public, stranger.Public))
	assert.Nil(t, err, "first policy should always be settable")
	assert.NotNil(t, polOp.Signature, "policy operation should carry a signature")

	op, err := m.Append([]byte("entry-1"))
	assert.Nil(t, err, "owner append should be allowed")
	assert.NotNil(t, op.Signature, "data operation should carry a signature")

	entry, ok, err := m.LastEntry(stranger.Public)
	assert.Nil(t, err, "granted reader should be allowed")
	assert.True(t, ok, "map should have a last entry")
	assert.Equal(t, []byte("entry-1"), entry, "read should return the appended entry")

	// Policy changes require admin permission.
	deniedReplica := NewPrivateMap("ledger", 9, "b", stranger)

	err = deniedReplica.Crdt().ApplyPolicyOp(polOp)
	assert.Nil(t, err, "policy apply at second replica should succeed")

	_, err = deniedReplica.SetPolicy(ownerOnlyPolicy(stranger.Public))
	assert.Equal(t, policy.ErrAccessDenied, err, "non-admin policy change should be denied")

	pol, ok, err := m.Policy(owner.Public, types.FromEnd(0))
	assert.Nil(t, err, "owner policy read should be allowed")
	assert.True(t, ok, "current policy version should exist")
	assert.Equal(t, privatePolicy(owner.Public, stranger.Public).String(), pol.String(), "current policy should match")
}
