/*
Package auth provides the signing and verification collaborator of the CRDT
layer: ed25519-backed key pair, public key and signature wrapper types with a
deterministic string encoding, plus potentially multiple key directory
mechanisms to determine whether a signer identity is known to this deployment.
Examples include a directory based on a keys table in a PostgreSQL database
and a simple lookup in a designated keys text file.
*/
package auth
