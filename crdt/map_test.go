package crdt

import (
	"bytes"
	"testing"

	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Functions

// TestMapNoPolicy executes a white-box unit test on a map
// without any policy rejecting appends and reporting no data.
func TestMapNoPolicy(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPrivate, "ledger", 9)

	m := InitMap(address, "a")

	_, err := m.Append([]byte("entry"), keypair.Public)
	if err != ErrNoPolicy {
		t.Fatalf("[crdt.TestMapNoPolicy] Expected ErrNoPolicy for append without policy but received: %v", err)
	}

	_, ok := m.Get(types.FromStart(0))
	if ok {
		t.Fatalf("[crdt.TestMapNoPolicy] Expected no data at FromStart(0) but the read succeeded.")
	}

	_, ok = m.LastEntry()
	if ok {
		t.Fatalf("[crdt.TestMapNoPolicy] Expected no last entry but the read succeeded.")
	}

	entries, ok := m.InRange(types.FromStart(0), types.FromStart(0))
	if !ok || len(entries) != 0 {
		t.Fatalf("[crdt.TestMapNoPolicy] Expected a valid empty range but received %d entries (ok: %v).", len(entries), ok)
	}

	_, ok = m.InRange(types.FromStart(0), types.FromStart(1))
	if ok {
		t.Fatalf("[crdt.TestMapNoPolicy] Expected overshooting range to yield no data but the read succeeded.")
	}
}

// TestMapCausalGating executes a white-box unit test on a
// data operation arriving before the policy it was created
// under being deferred and succeeding on retry.
func TestMapCausalGating(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPrivate, "ledger", 9)

	m1 := InitMap(address, "a")
	m2 := InitMap(address, "b")

	polOp := m1.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	polOp.Sign(keypair)

	dataOp, err := m1.Append([]byte("entry"), keypair.Public)
	if err != nil {
		t.Fatalf("[crdt.TestMapCausalGating] Expected local append to succeed but received: %v", err)
	}
	dataOp.Sign(keypair)

	// The data operation outruns its policy context.
	err = m2.ApplyDataOp(dataOp)
	if err != ErrNotCausallyReady {
		t.Fatalf("[crdt.TestMapCausalGating] Expected ErrNotCausallyReady for early data operation but received: %v", err)
	}

	err = m2.ApplyPolicyOp(polOp)
	if err != nil {
		t.Fatalf("[crdt.TestMapCausalGating] Expected policy apply to succeed but received: %v", err)
	}

	err = m2.ApplyDataOp(dataOp)
	if err != nil {
		t.Fatalf("[crdt.TestMapCausalGating] Expected retried data apply to succeed but received: %v", err)
	}

	for i, replica := range []*MapCrdt{m1, m2} {

		entry, ok := replica.LastEntry()
		if !ok || !bytes.Equal(entry, []byte("entry")) {
			t.Fatalf("[crdt.TestMapCausalGating] Expected replica %d to read the appended entry but it did not.", (i + 1))
		}
	}
}

// TestMapForkCorrectness executes a white-box unit test on
// the fork cut point excluding data operations that raced
// a policy change.
func TestMapForkCorrectness(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPrivate, "ledger", 9)

	m1 := InitMap(address, "a")
	m2 := InitMap(address, "b")

	firstPol := m1.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	firstPol.Sign(keypair)

	err := m2.ApplyPolicyOp(firstPol)
	if err != nil {
		t.Fatalf("[crdt.TestMapForkCorrectness] Expected first policy apply to succeed but received: %v", err)
	}

	// Two entries applied on both replicas.
	for _, entry := range []string{"item-1", "item-2"} {

		op, err := m1.Append([]byte(entry), keypair.Public)
		if err != nil {
			t.Fatalf("[crdt.TestMapForkCorrectness] Expected append to succeed but received: %v", err)
		}
		op.Sign(keypair)

		err = m2.ApplyDataOp(op)
		if err != nil {
			t.Fatalf("[crdt.TestMapForkCorrectness] Expected data apply to succeed but received: %v", err)
		}
	}

	// The first replica changes the policy while the second
	// concurrently appends a third entry under the old one.
	secondPol := m1.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	secondPol.Sign(keypair)

	raced, err := m2.Append([]byte("item-3"), keypair.Public)
	if err != nil {
		t.Fatalf("[crdt.TestMapForkCorrectness] Expected racing append to succeed but received: %v", err)
	}
	raced.Sign(keypair)

	// Cross deliver.
	err = m1.ApplyDataOp(raced)
	if err != nil {
		t.Fatalf("[crdt.TestMapForkCorrectness] Expected racing data apply at first replica to succeed but received: %v", err)
	}

	err = m2.ApplyPolicyOp(secondPol)
	if err != nil {
		t.Fatalf("[crdt.TestMapForkCorrectness] Expected second policy apply at second replica to succeed but received: %v", err)
	}

	// The racing entry lies past the fork cut point, so the
	// current branch excludes it on both replicas.
	for i, replica := range []*MapCrdt{m1, m2} {

		if replica.PolicyLen() != 2 {
			t.Fatalf("[crdt.TestMapForkCorrectness] Expected replica %d to hold 2 policy versions but received %d.", (i + 1), replica.PolicyLen())
		}

		if replica.Len() != 2 {
			t.Fatalf("[crdt.TestMapForkCorrectness] Expected replica %d to hold 2 current entries but received %d.", (i + 1), replica.Len())
		}

		entries, ok := replica.InRange(types.FromStart(0), types.FromEnd(0))
		if !ok {
			t.Fatalf("[crdt.TestMapForkCorrectness] Expected full range read at replica %d to succeed but it did not.", (i + 1))
		}

		expectEntries(t, "TestMapForkCorrectness", entries, "item-1", "item-2")
	}
}

// TestMapPolicyChain executes a white-box unit test on a
// policy operation arriving before its predecessor being
// deferred, and on the policy history reads.
func TestMapPolicyChain(t *testing.T) {

	owner := newTestKeypair(t)
	writer := newTestKeypair(t)
	address := types.NewAddress(types.KindPrivate, "ledger", 9)

	m1 := InitMap(address, "a")
	m2 := InitMap(address, "b")

	firstPol := m1.SetPolicy(newTestPolicy(owner.Public), owner.Public)
	firstPol.Sign(owner)

	second := policy.Private{
		PolicyOwner: owner.Public,
		Permissions: map[policy.User]policy.PrivatePermissions{
			policy.UserFrom(writer.Public): {
				Read:   true,
				Append: true,
			},
		},
	}

	secondPol := m1.SetPolicy(second, owner.Public)
	secondPol.Sign(owner)

	// The successor policy outruns its predecessor.
	err := m2.ApplyPolicyOp(secondPol)
	if err != ErrNotCausallyReady {
		t.Fatalf("[crdt.TestMapPolicyChain] Expected ErrNotCausallyReady for early policy operation but received: %v", err)
	}

	err = m2.ApplyPolicyOp(firstPol)
	if err != nil {
		t.Fatalf("[crdt.TestMapPolicyChain] Expected first policy apply to succeed but received: %v", err)
	}

	err = m2.ApplyPolicyOp(secondPol)
	if err != nil {
		t.Fatalf("[crdt.TestMapPolicyChain] Expected retried policy apply to succeed but received: %v", err)
	}

	for i, replica := range []*MapCrdt{m1, m2} {

		if replica.PolicyLen() != 2 {
			t.Fatalf("[crdt.TestMapPolicyChain] Expected replica %d to hold 2 policy versions but received %d.", (i + 1), replica.PolicyLen())
		}

		oldest, ok := replica.Policy(types.FromStart(0))
		if !ok || oldest.String() != newTestPolicy(owner.Public).String() {
			t.Fatalf("[crdt.TestMapPolicyChain] Expected oldest policy version at replica %d to match but it did not.", (i + 1))
		}

		current, ok := replica.Policy(types.FromEnd(0))
		if !ok || current.String() != second.String() {
			t.Fatalf("[crdt.TestMapPolicyChain] Expected current policy version at replica %d to match but it did not.", (i + 1))
		}

		_, ok = replica.Policy(types.FromStart(2))
		if ok {
			t.Fatalf("[crdt.TestMapPolicyChain] Expected no policy version at FromStart(2) but the read succeeded.")
		}

		got, ok := replica.CurrentPolicy()
		if !ok || got.String() != second.String() {
			t.Fatalf("[crdt.TestMapPolicyChain] Expected current policy at replica %d to match but it did not.", (i + 1))
		}
	}
}

// TestMapConvergence executes a white-box unit test on three
// replicas converging under different delivery orders of
// mixed policy and data operations.
func TestMapConvergence(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPrivate, "ledger", 9)

	source := InitMap(address, "a")

	ops := make([]Op, 0, 6)

	polOp := source.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	polOp.Sign(keypair)
	ops = append(ops, polOp)

	for _, entry := range []string{"one", "two"} {

		op, err := source.Append([]byte(entry), keypair.Public)
		if err != nil {
			t.Fatalf("[crdt.TestMapConvergence] Expected append to succeed but received: %v", err)
		}
		op.Sign(keypair)

		ops = append(ops, op)
	}

	nextPol := source.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	nextPol.Sign(keypair)
	ops = append(ops, nextPol)

	op, err := source.Append([]byte("three"), keypair.Public)
	if err != nil {
		t.Fatalf("[crdt.TestMapConvergence] Expected append to succeed but received: %v", err)
	}
	op.Sign(keypair)
	ops = append(ops, op)

	// Apply the full operation set in different orders,
	// retrying causally deferred operations the way the
	// replication layer does.
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 4, 0, 3, 1},
	}

	for _, order := range orders {

		replica := InitMap(address, "z")

		pending := make([]int, len(order))
		copy(pending, order)

		for len(pending) > 0 {

			deferred := make([]int, 0, len(pending))

			for _, i := range pending {

				var err error
				switch o := ops[i].(type) {
				case *MapPolicyOp:
					err = replica.ApplyPolicyOp(o)
				case *MapDataOp:
					err = replica.ApplyDataOp(o)
				}

				if err == ErrNotCausallyReady {
					deferred = append(deferred, i)
					continue
				}

				if err != nil {
					t.Fatalf("[crdt.TestMapConvergence] Expected apply of operation %d to succeed but received: %v", i, err)
				}
			}

			if len(deferred) == len(pending) {
				t.Fatalf("[crdt.TestMapConvergence] Expected deferred operations to make progress but %d stayed deferred.", len(deferred))
			}

			pending = deferred
		}

		entries, ok := replica.InRange(types.FromStart(0), types.FromEnd(0))
		if !ok {
			t.Fatalf("[crdt.TestMapConvergence] Expected full range read to succeed but it did not.")
		}

		expectEntries(t, "TestMapConvergence", entries, "one", "two", "three")
	}
}

// TestMapSiblingPolicies executes a white-box unit test on
// two concurrent policy changes forking sibling branches
// from the same version, with one sibling's cut excluding a
// raced data operation the other sibling still admits.
func TestMapSiblingPolicies(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPrivate, "ledger", 9)

	w := InitMap(address, "w")

	firstPol := w.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	firstPol.Sign(keypair)

	opY, err := w.Append([]byte("item-y"), keypair.Public)
	if err != nil {
		t.Fatalf("[crdt.TestMapSiblingPolicies] Expected append of item-y to succeed but received: %v", err)
	}
	opY.Sign(keypair)

	opX, err := w.Append([]byte("item-x"), keypair.Public)
	if err != nil {
		t.Fatalf("[crdt.TestMapSiblingPolicies] Expected append of item-x to succeed but received: %v", err)
	}
	opX.Sign(keypair)

	// Replica a forks while it only holds item-y, so its
	// cut excludes item-x.
	a := InitMap(address, "a")
	if err := a.ApplyPolicyOp(firstPol); err != nil {
		t.Fatalf("[crdt.TestMapSiblingPolicies] Expected policy apply at replica a to succeed but received: %v", err)
	}
	if err := a.ApplyDataOp(opY); err != nil {
		t.Fatalf("[crdt.TestMapSiblingPolicies] Expected data apply at replica a to succeed but received: %v", err)
	}

	sibA := a.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	sibA.Sign(keypair)

	// Replica b forks holding both items, so its cut still
	// admits item-x.
	b := InitMap(address, "b")
	for _, err := range []error{b.ApplyPolicyOp(firstPol), b.ApplyDataOp(opY), b.ApplyDataOp(opX)} {

		if err != nil {
			t.Fatalf("[crdt.TestMapSiblingPolicies] Expected apply at replica b to succeed but received: %v", err)
		}
	}

	sibB := b.SetPolicy(newTestPolicy(keypair.Public), keypair.Public)
	sibB.Sign(keypair)

	// The excluding sibling has to order before the
	// admitting one for this scenario to bite.
	if !sibA.ID.Less(sibB.ID) {
		t.Fatalf("[crdt.TestMapSiblingPolicies] Expected sibling a's version to order before sibling b's but it did not.")
	}

	// One observer sees the data before the forks, the
	// other one the forks before the data.
	dataFirst := InitMap(address, "c1")
	for i, apply := range []func() error{
		func() error { return dataFirst.ApplyPolicyOp(firstPol) },
		func() error { return dataFirst.ApplyDataOp(opY) },
		func() error { return dataFirst.ApplyDataOp(opX) },
		func() error { return dataFirst.ApplyPolicyOp(sibA) },
		func() error { return dataFirst.ApplyPolicyOp(sibB) },
	} {
		if err := apply(); err != nil {
			t.Fatalf("[crdt.TestMapSiblingPolicies] Expected apply %d at the data-first observer to succeed but received: %v", i, err)
		}
	}

	forksFirst := InitMap(address, "c2")
	for i, apply := range []func() error{
		func() error { return forksFirst.ApplyPolicyOp(firstPol) },
		func() error { return forksFirst.ApplyPolicyOp(sibA) },
		func() error { return forksFirst.ApplyPolicyOp(sibB) },
		func() error { return forksFirst.ApplyDataOp(opY) },
		func() error { return forksFirst.ApplyDataOp(opX) },
	} {
		if err := apply(); err != nil {
			t.Fatalf("[crdt.TestMapSiblingPolicies] Expected apply %d at the forks-first observer to succeed but received: %v", i, err)
		}
	}

	for i, replica := range []*MapCrdt{dataFirst, forksFirst} {

		if replica.PolicyLen() != 3 {
			t.Fatalf("[crdt.TestMapSiblingPolicies] Expected observer %d to hold 3 policy versions but received %d.", (i + 1), replica.PolicyLen())
		}

		entries, ok := replica.InRange(types.FromStart(0), types.FromEnd(0))
		if !ok {
			t.Fatalf("[crdt.TestMapSiblingPolicies] Expected full range read at observer %d to succeed but it did not.", (i + 1))
		}

		expectEntries(t, "TestMapSiblingPolicies", entries, "item-y", "item-x")
	}
}
