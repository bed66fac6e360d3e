/*
Package store provides the thin access layer on top of the raw CRDT types. It is the surface local
applications use: constructors per data kind in a public and a private variant, permission checks
against the instance's policy before an operation is even constructed, and signing of locally
created operations with the owning key pair.

The store layer never adds state of its own on top of the CRDTs. Everything it produces is an
already applied, signed operation ready to be handed to the replication layer.

CAUTION! The permission checks in this package guard the local write path only. Remote operations
arrive through the replication layer and are judged solely by their signature, so a policy change
never invalidates operations that were legitimately created before it.
*/
package store
