package auth

// Interfaces

// KeyDirectory defines the methods required to resolve a
// human-readable identity name to the public key registered
// for it in this deployment. The surrounding service consults
// the directory when building policies and when deciding
// whether an incoming operation's signer is known at all.
type KeyDirectory interface {

	// PublicKeyFor resolves supplied identity name to its
	// registered public key.
	PublicKeyFor(identity string) (PublicKey, error)

	// IsKnownKey reports whether the supplied public key is
	// registered for any identity in the directory.
	IsKnownKey(key PublicKey) bool
}
