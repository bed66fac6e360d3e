/*
Package policy implements the access-control collaborator of the CRDT layer.
A policy bundles the owner of a data instance with per-user permission sets
and answers allowed-or-denied lookups for a requester and an action kind.
The CRDT layer never evaluates permissions itself, it only stores policies
as payloads (Map) or as an immutable field (Sequence, Register) and exposes
them to the surrounding service.

Policies that travel inside CRDT operations marshal to a canonical string
form: permission sets are emitted in sorted user order so that the same
logical policy always yields the same bytes.
*/
package policy
