/*
Package crdt implements the operation-based replicated data types the data
layer of the system is built upon: an append-only ordered sequence, a
multi-value register over a Merkle-DAG of writes, and a key-value map whose
history forks into policy-indexed branches whenever its access policy
changes.

CAUTION! Consider these two requirements:
* For correct operation and results we expect every operation to be applied
  at most once per replica path and only after its causal prerequisites, as
  provided by, for example, this system's package comm. Application itself
  is idempotent, so at-least-once delivery is safe.
* Access to the functions this package provides is expected to be
  synchronized explicitly by some outside measures, e.g. by wrapping calls
  to this package with a mutex lock if concurrent access is possible. This
  package does not(!) synchronize access by itself.

The dense position identifiers used by the sequence and the map branches
are a practical derivation of the Logoot identifier design by Weiss,
Urso and Molli, available under:
https://hal.inria.fr/inria-00432368/document
*/
package crdt
