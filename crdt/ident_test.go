package crdt

import (
	"testing"
)

// Functions

func mustParseIdent(t *testing.T, enc string) Identifier {

	id, err := ParseIdentifier(enc)
	if err != nil {
		t.Fatalf("[crdt.mustParseIdent] Expected '%s' to parse but received: %v", enc, err)
	}

	return id
}

// TestIdentifierCompare executes a white-box unit test on the
// total order of position identifiers.
func TestIdentifierCompare(t *testing.T) {

	// Ascending by construction.
	ordered := []string{
		"5.a",
		"5.a:3.b",
		"5.a:7.a",
		"5.b",
		"6.a",
	}

	for i := 0; i < len(ordered); i++ {

		for j := 0; j < len(ordered); j++ {

			a := mustParseIdent(t, ordered[i])
			b := mustParseIdent(t, ordered[j])

			expected := 0
			if i < j {
				expected = -1
			} else if i > j {
				expected = 1
			}

			if a.Compare(b) != expected {
				t.Fatalf("[crdt.TestIdentifierCompare] Expected Compare('%s', '%s') to be %d but received %d.", ordered[i], ordered[j], expected, a.Compare(b))
			}
		}
	}

	if !mustParseIdent(t, "5.a").Equal(mustParseIdent(t, "5.a")) {
		t.Fatalf("[crdt.TestIdentifierCompare] Expected identical identifiers to be equal but they were not.")
	}
}

// TestBetween executes a white-box unit test on dense
// identifier allocation.
func TestBetween(t *testing.T) {

	first := Between(nil, nil, "a")

	before := Between(nil, &first, "b")
	if !before.Less(first) {
		t.Fatalf("[crdt.TestBetween] Expected '%s' to order before '%s' but it did not.", before.String(), first.String())
	}

	after := Between(&first, nil, "b")
	if !first.Less(after) {
		t.Fatalf("[crdt.TestBetween] Expected '%s' to order after '%s' but it did not.", after.String(), first.String())
	}

	// Identifiers allocated between the same bounds by
	// different actors have to differ and stay ordered.
	x := Between(&before, &after, "a")
	y := Between(&before, &after, "b")

	if x.Equal(y) {
		t.Fatalf("[crdt.TestBetween] Expected allocations of different actors to differ but both were '%s'.", x.String())
	}

	if !x.Less(y) {
		t.Fatalf("[crdt.TestBetween] Expected actor tie-break to order '%s' before '%s' but it did not.", x.String(), y.String())
	}

	// Repeated allocation in an ever narrower gap has to
	// produce a strictly ordered chain without collisions.
	lo := before
	hi := after

	for i := 0; i < 64; i++ {

		mid := Between(&lo, &hi, "c")

		if !lo.Less(mid) || !mid.Less(hi) {
			t.Fatalf("[crdt.TestBetween] Expected '%s' to lie strictly between '%s' and '%s' but it did not.", mid.String(), lo.String(), hi.String())
		}

		lo = mid
	}
}

// TestIdentifierMarshalling executes a white-box unit test
// on the canonical identifier wire form.
func TestIdentifierMarshalling(t *testing.T) {

	for _, enc := range []string{"5.a", "5.a:3.b", "2147483647.f6ae81ff"} {

		id := mustParseIdent(t, enc)

		if id.String() != enc {
			t.Fatalf("[crdt.TestIdentifierMarshalling] Expected marshalled form '%s' but received '%s'.", enc, id.String())
		}
	}

	for _, enc := range []string{"", "x", "5.", ".a", "5", "5.a:", "99999999999.a"} {

		_, err := ParseIdentifier(enc)
		if err == nil {
			t.Fatalf("[crdt.TestIdentifierMarshalling] Expected parsing '%s' to fail but it did not.", enc)
		}
	}
}

// TestBetweenRoundTrip executes a white-box unit test on
// every allocated identifier surviving its wire encoding,
// including allocations at the very bottom of the space.
func TestBetweenRoundTrip(t *testing.T) {

	roundTrip := func(id Identifier) {

		parsed, err := ParseIdentifier(id.String())
		if err != nil {
			t.Fatalf("[crdt.TestBetweenRoundTrip] Expected '%s' to parse but received: %v", id.String(), err)
		}

		if !parsed.Equal(id) {
			t.Fatalf("[crdt.TestBetweenRoundTrip] Expected '%s' to round-trip but received '%s'.", id.String(), parsed.String())
		}
	}

	// Narrowing the head of the space forces descends under
	// the virtual begin and below position-zero atoms.
	upper := Between(nil, nil, "a")
	roundTrip(upper)

	for i := 0; i < 80; i++ {

		id := Between(nil, &upper, "a")

		if !id.Less(upper) {
			t.Fatalf("[crdt.TestBetweenRoundTrip] Expected allocation %d ('%s') to order before its bound ('%s') but it did not.", i, id.String(), upper.String())
		}

		roundTrip(id)
		upper = id
	}

	// The same at the top of the space, narrowing from below.
	lower := Between(nil, nil, "b")
	roundTrip(lower)

	for i := 0; i < 80; i++ {

		id := Between(&lower, nil, "b")

		if !lower.Less(id) {
			t.Fatalf("[crdt.TestBetweenRoundTrip] Expected allocation %d ('%s') to order after its bound ('%s') but it did not.", i, id.String(), lower.String())
		}

		roundTrip(id)
		lower = id
	}
}
