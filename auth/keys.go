package auth

import (
	"fmt"

	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Variables

// ErrInvalidSignature is returned whenever a signature does
// not verify against a payload under a declared public key.
var ErrInvalidSignature = errors.New("signature invalid for payload under declared public key")

// Structs

// PublicKey wraps the raw ed25519 public key of an identity
// in the system. Its canonical hex form doubles as the
// identity string used in operations and policies.
type PublicKey struct {
	Raw ed25519.PublicKey
}

// Signature wraps a detached ed25519 signature over the
// canonical byte form of an operation.
type Signature struct {
	Raw []byte
}

// Keypair bundles an identity's public key with the private
// signing material. The private part never leaves this struct.
type Keypair struct {
	Public  PublicKey
	private ed25519.PrivateKey
}

// Functions

// NewKeypair generates a fresh ed25519 key pair from the
// system's entropy source.
func NewKeypair() (*Keypair, error) {

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %v", err)
	}

	return &Keypair{
		Public:  PublicKey{Raw: pub},
		private: priv,
	}, nil
}

// Sign produces a detached signature over supplied payload
// bytes with this key pair's private material.
func (k *Keypair) Sign(payload []byte) Signature {

	return Signature{
		Raw: ed25519.Sign(k.private, payload),
	}
}

// Verify checks supplied signature against payload bytes
// under this public key and returns ErrInvalidSignature
// if they do not match.
func (p PublicKey) Verify(sig Signature, payload []byte) error {

	if !ed25519.Verify(p.Raw, payload, sig.Raw) {
		return ErrInvalidSignature
	}

	return nil
}

// String marshalls this public key into its canonical
// hex form used as identity string across the system.
func (p PublicKey) String() string {
	return hex.EncodeToString(p.Raw)
}

// Equal returns true if both public keys carry the
// same raw key material.
func (p PublicKey) Equal(other PublicKey) bool {
	return p.String() == other.String()
}

// ParsePublicKey takes in the canonical hex form of a public
// key and turns it back into the struct representation.
func ParsePublicKey(enc string) (PublicKey, error) {

	raw, err := hex.DecodeString(enc)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid hex encoding of public key: %v", err)
	}

	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("invalid public key length %d, expected %d", len(raw), ed25519.PublicKeySize)
	}

	return PublicKey{Raw: ed25519.PublicKey(raw)}, nil
}

// String marshalls this signature into hex form
// for embedding in a sync message.
func (s Signature) String() string {
	return hex.EncodeToString(s.Raw)
}

// ParseSignature takes in the hex form of a detached
// signature and turns it back into the struct representation.
func ParseSignature(enc string) (Signature, error) {

	raw, err := hex.DecodeString(enc)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid hex encoding of signature: %v", err)
	}

	return Signature{Raw: raw}, nil
}
