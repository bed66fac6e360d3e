package crdt

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Functions

func expectEntries(t *testing.T, test string, entries [][]byte, expected ...string) {

	if len(entries) != len(expected) {
		t.Fatalf("[crdt.%s] Expected %d entries but received %d.", test, len(expected), len(entries))
	}

	for i, entry := range expected {

		if !bytes.Equal(entries[i], []byte(entry)) {
			t.Fatalf("[crdt.%s] Expected entry %d to be '%s' but received '%s'.", test, i, entry, entries[i])
		}
	}
}

// TestSequenceConvergence executes a white-box unit test on
// concurrent appends at the same anchor converging into one
// total order on every replica.
func TestSequenceConvergence(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPublic, "books", 20)
	pol := newTestPolicy(keypair.Public)

	replicas := map[string]*SequenceCrdt{
		"a": InitSequence(address, "a", pol),
		"b": InitSequence(address, "b", pol),
		"c": InitSequence(address, "c", pol),
	}

	// Each replica appends one entry concurrently at the
	// empty sequence's end anchor.
	ops := make([]*SequenceOp, 0, 3)
	for _, actor := range []string{"c", "a", "b"} {

		op := replicas[actor].CreateAppendOp(nil, []byte("from-"+actor), keypair.Public)
		op.Sign(keypair)

		ops = append(ops, op)
	}

	// Deliver the operations in a different order to
	// every replica.
	orders := map[string][]int{
		"a": {0, 1, 2},
		"b": {2, 0, 1},
		"c": {1, 2, 0},
	}

	for actor, order := range orders {

		for _, i := range order {

			err := replicas[actor].ApplyOp(ops[i])
			if err != nil {
				t.Fatalf("[crdt.TestSequenceConvergence] Expected apply at replica %s to succeed but received: %v", actor, err)
			}
		}
	}

	// All replicas have to agree, with the actor name
	// breaking the tie between the concurrent appends.
	for actor, replica := range replicas {

		entries, ok := replica.InRange(types.FromStart(0), types.FromEnd(0))
		if !ok {
			t.Fatalf("[crdt.TestSequenceConvergence] Expected full range read at replica %s to succeed but it did not.", actor)
		}

		expectEntries(t, "TestSequenceConvergence", entries, "from-a", "from-b", "from-c")
	}
}

// TestSequenceAnchoredInsert executes a white-box unit test
// on inserting after a marker in the middle of a sequence.
func TestSequenceAnchoredInsert(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPublic, "books", 20)

	seq := InitSequence(address, "a", newTestPolicy(keypair.Public))

	var firstID Identifier
	for i, entry := range []string{"first", "third"} {

		op := seq.CreateAppendOp(nil, []byte(entry), keypair.Public)
		op.Sign(keypair)

		if i == 0 {
			firstID = op.ID
		}

		err := seq.ApplyOp(op)
		if err != nil {
			t.Fatalf("[crdt.TestSequenceAnchoredInsert] Expected apply to succeed but received: %v", err)
		}
	}

	// Anchor the insert at the first entry's marker.
	op := seq.CreateAppendOp(&firstID, []byte("second"), keypair.Public)
	op.Sign(keypair)

	err := seq.ApplyOp(op)
	if err != nil {
		t.Fatalf("[crdt.TestSequenceAnchoredInsert] Expected anchored apply to succeed but received: %v", err)
	}

	entries, ok := seq.InRange(types.FromStart(0), types.FromEnd(0))
	if !ok {
		t.Fatalf("[crdt.TestSequenceAnchoredInsert] Expected full range read to succeed but it did not.")
	}

	expectEntries(t, "TestSequenceAnchoredInsert", entries, "first", "second", "third")
}

// TestSequenceApplyOpRejects executes a white-box unit test
// on the authentication and addressing checks of ApplyOp.
func TestSequenceApplyOpRejects(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPublic, "books", 20)

	seq := InitSequence(address, "a", newTestPolicy(keypair.Public))

	// Unsigned operation.
	op := seq.CreateAppendOp(nil, []byte("entry"), keypair.Public)

	err := seq.ApplyOp(op)
	if err != ErrMissingSignature {
		t.Fatalf("[crdt.TestSequenceApplyOpRejects] Expected ErrMissingSignature for unsigned operation but received: %v", err)
	}

	// Tampered payload under a valid signature.
	op.Sign(keypair)
	op.Entry = []byte("tampered")

	err = seq.ApplyOp(op)
	if err != auth.ErrInvalidSignature {
		t.Fatalf("[crdt.TestSequenceApplyOpRejects] Expected ErrInvalidSignature for tampered operation but received: %v", err)
	}

	// Operation signed for a different instance.
	foreign := seq.CreateAppendOp(nil, []byte("entry"), keypair.Public)
	foreign.Address = types.NewAddress(types.KindPublic, "other", 20)
	foreign.Sign(keypair)

	err = seq.ApplyOp(foreign)
	if err != ErrWrongAddress {
		t.Fatalf("[crdt.TestSequenceApplyOpRejects] Expected ErrWrongAddress for foreign operation but received: %v", err)
	}

	if seq.Len() != 0 {
		t.Fatalf("[crdt.TestSequenceApplyOpRejects] Expected rejected operations to leave the sequence empty but length is %d.", seq.Len())
	}

	// Re-applying one valid operation has to be a no-op.
	op = seq.CreateAppendOp(nil, []byte("entry"), keypair.Public)
	op.Sign(keypair)

	for i := 0; i < 3; i++ {

		err = seq.ApplyOp(op)
		if err != nil {
			t.Fatalf("[crdt.TestSequenceApplyOpRejects] Expected repeated apply to succeed but received: %v", err)
		}
	}

	if seq.Len() != 1 {
		t.Fatalf("[crdt.TestSequenceApplyOpRejects] Expected idempotent apply to yield one entry but length is %d.", seq.Len())
	}
}

// TestSequenceReads executes a white-box unit test on the
// index-based read interface.
func TestSequenceReads(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPrivate, "drafts", 7)

	seq := InitSequence(address, "a", newTestPolicy(keypair.Public))

	for i := 0; i < 3; i++ {

		op := seq.CreateAppendOp(nil, []byte(fmt.Sprintf("entry-%d", i)), keypair.Public)
		op.Sign(keypair)

		err := seq.ApplyOp(op)
		if err != nil {
			t.Fatalf("[crdt.TestSequenceReads] Expected apply to succeed but received: %v", err)
		}
	}

	entry, ok := seq.Get(types.FromStart(1))
	if !ok || !bytes.Equal(entry, []byte("entry-1")) {
		t.Fatalf("[crdt.TestSequenceReads] Expected 'entry-1' at FromStart(1) but received '%s' (ok: %v).", entry, ok)
	}

	entry, ok = seq.Get(types.FromEnd(0))
	if !ok || !bytes.Equal(entry, []byte("entry-2")) {
		t.Fatalf("[crdt.TestSequenceReads] Expected 'entry-2' at FromEnd(0) but received '%s' (ok: %v).", entry, ok)
	}

	_, ok = seq.Get(types.FromStart(3))
	if ok {
		t.Fatalf("[crdt.TestSequenceReads] Expected no data at FromStart(3) but the read succeeded.")
	}

	entry, id, ok := seq.LastEntry()
	if !ok || !bytes.Equal(entry, []byte("entry-2")) || id == nil {
		t.Fatalf("[crdt.TestSequenceReads] Expected last entry 'entry-2' with a marker but received '%s'.", entry)
	}

	// Valid empty range is a result, not a failure.
	entries, ok := seq.InRange(types.FromStart(0), types.FromStart(0))
	if !ok || len(entries) != 0 {
		t.Fatalf("[crdt.TestSequenceReads] Expected a valid empty range but received %d entries (ok: %v).", len(entries), ok)
	}

	entries, ok = seq.InRange(types.FromStart(1), types.FromEnd(1))
	if !ok {
		t.Fatalf("[crdt.TestSequenceReads] Expected partial range read to succeed but it did not.")
	}
	expectEntries(t, "TestSequenceReads", entries, "entry-1")

	// Inverted and overshooting ranges yield no data.
	_, ok = seq.InRange(types.FromStart(2), types.FromStart(1))
	if ok {
		t.Fatalf("[crdt.TestSequenceReads] Expected inverted range to yield no data but the read succeeded.")
	}

	_, ok = seq.InRange(types.FromStart(0), types.FromStart(4))
	if ok {
		t.Fatalf("[crdt.TestSequenceReads] Expected overshooting range to yield no data but the read succeeded.")
	}
}

// TestSequenceDistinctCreations executes a white-box unit
// test on operations created at the same anchor before
// either is applied receiving distinct markers.
func TestSequenceDistinctCreations(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPublic, "books", 20)

	s := InitSequence(address, "a", newTestPolicy(keypair.Public))

	first := s.CreateAppendOp(nil, []byte("entry-1"), keypair.Public)
	second := s.CreateAppendOp(nil, []byte("entry-2"), keypair.Public)

	if first.ID.Equal(second.ID) {
		t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected distinct markers for two created operations but both received '%s'.", first.ID.String())
	}

	if !first.ID.Less(second.ID) {
		t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected the first created marker to order before the second but it did not.")
	}

	for _, op := range []*SequenceOp{first, second} {

		op.Sign(keypair)

		err := s.ApplyOp(op)
		if err != nil {
			t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected apply to succeed but received: %v", err)
		}
	}

	if s.Len() != 2 {
		t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected 2 entries after applying both operations but received %d.", s.Len())
	}

	// The same holds for creations anchored at an entry.
	_, marker, ok := s.LastEntry()
	if !ok {
		t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected a last entry but received none.")
	}

	third := s.CreateAppendOp(marker, []byte("entry-3"), keypair.Public)
	fourth := s.CreateAppendOp(marker, []byte("entry-4"), keypair.Public)

	if third.ID.Equal(fourth.ID) {
		t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected distinct markers for two anchored creations but both received '%s'.", third.ID.String())
	}

	for _, op := range []*SequenceOp{third, fourth} {

		op.Sign(keypair)

		err := s.ApplyOp(op)
		if err != nil {
			t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected anchored apply to succeed but received: %v", err)
		}
	}

	if s.Len() != 4 {
		t.Fatalf("[crdt.TestSequenceDistinctCreations] Expected 4 entries after applying all operations but received %d.", s.Len())
	}
}

// TestSequenceAnchorChurn executes a white-box unit test on
// markers staying wire-safe under repeated inserts at one
// anchor, which drives the identifier space into its densest
// corner.
func TestSequenceAnchorChurn(t *testing.T) {

	keypair := newTestKeypair(t)
	address := types.NewAddress(types.KindPublic, "books", 20)
	pol := newTestPolicy(keypair.Public)

	s1 := InitSequence(address, "a", pol)
	s2 := InitSequence(address, "b", pol)

	base := s1.CreateAppendOp(nil, []byte("base"), keypair.Public)
	base.Sign(keypair)

	for _, replica := range []*SequenceCrdt{s1, s2} {

		if err := replica.ApplyOp(base); err != nil {
			t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected base apply to succeed but received: %v", err)
		}
	}

	anchor := &base.ID

	for i := 0; i < 200; i++ {

		op := s1.CreateAppendOp(anchor, []byte(fmt.Sprintf("entry-%d", i)), keypair.Public)
		op.Sign(keypair)

		if err := s1.ApplyOp(op); err != nil {
			t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected apply %d to succeed but received: %v", i, err)
		}

		// Every marker has to survive the wire encoding.
		parsed, err := ParseOp(op.String())
		if err != nil {
			t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected operation %d to parse from its wire form but received: %v", i, err)
		}

		remote, ok := parsed.(*SequenceOp)
		if !ok {
			t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected operation %d to parse as a sequence operation but it did not.", i)
		}

		if !remote.ID.Equal(op.ID) {
			t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected marker '%s' to round-trip but received '%s'.", op.ID.String(), remote.ID.String())
		}

		if err := s2.ApplyOp(remote); err != nil {
			t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected remote apply %d to succeed but received: %v", i, err)
		}
	}

	if (s1.Len() != 201) || (s2.Len() != 201) {
		t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected 201 entries on both replicas but received %d and %d.", s1.Len(), s2.Len())
	}

	left, okLeft := s1.InRange(types.FromStart(0), types.FromEnd(0))
	right, okRight := s2.InRange(types.FromStart(0), types.FromEnd(0))
	if !okLeft || !okRight {
		t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected full range reads on both replicas to succeed but they did not.")
	}

	for i := range left {

		if !bytes.Equal(left[i], right[i]) {
			t.Fatalf("[crdt.TestSequenceAnchorChurn] Expected replicas to agree at entry %d but received '%s' and '%s'.", i, left[i], right[i])
		}
	}
}
