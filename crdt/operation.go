package crdt

import (
	"fmt"
	"sort"
	"strings"

	"encoding/base64"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/types"
)

// Constants

// Operation kinds as they appear as the first element of the
// canonical wire form.
const (
	OpKindSequenceAppend = "seq-append"
	OpKindRegisterWrite  = "reg-write"
	OpKindMapData        = "map-data"
	OpKindMapPolicy      = "map-policy"
)

// Interfaces

// Op is the unit of replication: a target address, the causal
// operation payload of one CRDT, and an authentication envelope
// of signer identity plus optional detached signature. The
// canonical string form of an Op minus its signature is exactly
// what gets signed and verified, therefore every element of it
// has to marshal deterministically.
type Op interface {

	// Kind returns the operation kind tag.
	Kind() string

	// Target returns the address of the instance this
	// operation applies to.
	Target() types.Address

	// Signer returns the public key the operation
	// declares as its source.
	Signer() auth.PublicKey

	// SignedBytes returns the canonical byte form covered
	// by the operation's signature.
	SignedBytes() []byte

	// String returns the full wire form including the
	// signature element.
	String() string
}

// Structs

// SequenceOp inserts one entry into a sequence instance at
// the position carried by its identifier.
type SequenceOp struct {
	Address   types.Address
	ID        Identifier
	Entry     []byte
	Source    auth.PublicKey
	Signature *auth.Signature
}

// RegisterOp adds one node to the write DAG of a register
// instance. Parents carries the hashes of the entries this
// write succeeds, empty for the first write.
type RegisterOp struct {
	Address   types.Address
	Parents   []EntryHash
	Entry     []byte
	Source    auth.PublicKey
	Signature *auth.Signature
}

// MapDataOp inserts one item into the branches of a map
// instance. Ctx names the policy version the operation was
// created under and decides which branches replay it.
type MapDataOp struct {
	Address   types.Address
	Ctx       Identifier
	ID        Identifier
	Entry     []byte
	Source    auth.PublicKey
	Signature *auth.Signature
}

// MapPolicyOp appends one policy version to the policy
// history of a map instance. Cut is the identifier of the
// last data item present in the previous branch at fork
// time, CtxPrev the identifier of the previous policy
// version. Both are nil for the very first policy.
type MapPolicyOp struct {
	Address   types.Address
	Policy    string
	Cut       *Identifier
	ID        Identifier
	CtxPrev   *Identifier
	Source    auth.PublicKey
	Signature *auth.Signature
}

// Functions

// verifyEnvelope checks the authentication envelope shared by
// all operation kinds: a signature must be present and must
// verify against the canonical signed bytes under the declared
// source key.
func verifyEnvelope(source auth.PublicKey, sig *auth.Signature, signed []byte) error {

	if sig == nil {
		return ErrMissingSignature
	}

	return source.Verify(*sig, signed)
}

// encSignature marshals the optional signature element of
// the wire form.
func encSignature(sig *auth.Signature) string {

	if sig == nil {
		return ""
	}

	return sig.String()
}

// parseSignature parses the optional signature element of
// the wire form.
func parseSignature(enc string) (*auth.Signature, error) {

	if enc == "" {
		return nil, nil
	}

	sig, err := auth.ParseSignature(enc)
	if err != nil {
		return nil, err
	}

	return &sig, nil
}

// Kind returns the operation kind tag.
func (op *SequenceOp) Kind() string { return OpKindSequenceAppend }

// Target returns the address this operation applies to.
func (op *SequenceOp) Target() types.Address { return op.Address }

// Signer returns the declared source key.
func (op *SequenceOp) Signer() auth.PublicKey { return op.Source }

// SignedBytes returns the canonical byte form covered by
// this operation's signature.
func (op *SequenceOp) SignedBytes() []byte {

	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s",
		OpKindSequenceAppend,
		op.Address.String(),
		op.Source.String(),
		op.ID.String(),
		base64.StdEncoding.EncodeToString(op.Entry),
	))
}

// Sign attaches supplied key pair's signature over the
// canonical signed bytes to this operation.
func (op *SequenceOp) Sign(keypair *auth.Keypair) {
	sig := keypair.Sign(op.SignedBytes())
	op.Signature = &sig
}

// String marshalls this operation into its full wire form.
func (op *SequenceOp) String() string {
	return fmt.Sprintf("%s|%s", op.SignedBytes(), encSignature(op.Signature))
}

// Kind returns the operation kind tag.
func (op *RegisterOp) Kind() string { return OpKindRegisterWrite }

// Target returns the address this operation applies to.
func (op *RegisterOp) Target() types.Address { return op.Address }

// Signer returns the declared source key.
func (op *RegisterOp) Signer() auth.PublicKey { return op.Source }

// encParents marshals the sorted parent hash list of a
// register write.
func encParents(parents []EntryHash) string {

	elems := make([]string, len(parents))
	for i, parent := range parents {
		elems[i] = parent.String()
	}
	sort.Strings(elems)

	return strings.Join(elems, ",")
}

// SignedBytes returns the canonical byte form covered by
// this operation's signature.
func (op *RegisterOp) SignedBytes() []byte {

	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s",
		OpKindRegisterWrite,
		op.Address.String(),
		op.Source.String(),
		encParents(op.Parents),
		base64.StdEncoding.EncodeToString(op.Entry),
	))
}

// Sign attaches supplied key pair's signature over the
// canonical signed bytes to this operation.
func (op *RegisterOp) Sign(keypair *auth.Keypair) {
	sig := keypair.Sign(op.SignedBytes())
	op.Signature = &sig
}

// String marshalls this operation into its full wire form.
func (op *RegisterOp) String() string {
	return fmt.Sprintf("%s|%s", op.SignedBytes(), encSignature(op.Signature))
}

// Kind returns the operation kind tag.
func (op *MapDataOp) Kind() string { return OpKindMapData }

// Target returns the address this operation applies to.
func (op *MapDataOp) Target() types.Address { return op.Address }

// Signer returns the declared source key.
func (op *MapDataOp) Signer() auth.PublicKey { return op.Source }

// SignedBytes returns the canonical byte form covered by
// this operation's signature.
func (op *MapDataOp) SignedBytes() []byte {

	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		OpKindMapData,
		op.Address.String(),
		op.Source.String(),
		op.Ctx.String(),
		op.ID.String(),
		base64.StdEncoding.EncodeToString(op.Entry),
	))
}

// Sign attaches supplied key pair's signature over the
// canonical signed bytes to this operation.
func (op *MapDataOp) Sign(keypair *auth.Keypair) {
	sig := keypair.Sign(op.SignedBytes())
	op.Signature = &sig
}

// String marshalls this operation into its full wire form.
func (op *MapDataOp) String() string {
	return fmt.Sprintf("%s|%s", op.SignedBytes(), encSignature(op.Signature))
}

// Kind returns the operation kind tag.
func (op *MapPolicyOp) Kind() string { return OpKindMapPolicy }

// Target returns the address this operation applies to.
func (op *MapPolicyOp) Target() types.Address { return op.Address }

// Signer returns the declared source key.
func (op *MapPolicyOp) Signer() auth.PublicKey { return op.Source }

// encOptIdent marshals an optional identifier element of
// the wire form.
func encOptIdent(id *Identifier) string {

	if id == nil {
		return ""
	}

	return id.String()
}

// SignedBytes returns the canonical byte form covered by
// this operation's signature.
func (op *MapPolicyOp) SignedBytes() []byte {

	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		OpKindMapPolicy,
		op.Address.String(),
		op.Source.String(),
		op.ID.String(),
		base64.StdEncoding.EncodeToString([]byte(op.Policy)),
		encOptIdent(op.Cut),
		encOptIdent(op.CtxPrev),
	))
}

// Sign attaches supplied key pair's signature over the
// canonical signed bytes to this operation.
func (op *MapPolicyOp) Sign(keypair *auth.Keypair) {
	sig := keypair.Sign(op.SignedBytes())
	op.Signature = &sig
}

// String marshalls this operation into its full wire form.
func (op *MapPolicyOp) String() string {
	return fmt.Sprintf("%s|%s", op.SignedBytes(), encSignature(op.Signature))
}

// ParseOp takes in the full wire form of an operation taken
// from network communication and turns it back into the
// fitting struct representation.
func ParseOp(enc string) (Op, error) {

	parts := strings.Split(enc, "|")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid operation message found during parsing")
	}

	switch parts[0] {

	case OpKindSequenceAppend:

		if len(parts) != 6 {
			return nil, fmt.Errorf("invalid %s message: incorrect amount of pipe symbols", OpKindSequenceAppend)
		}

		address, source, sig, err := parseEnvelope(parts[1], parts[2], parts[5])
		if err != nil {
			return nil, err
		}

		id, err := ParseIdentifier(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid identifier in %s message: %v", OpKindSequenceAppend, err)
		}

		entry, err := base64.StdEncoding.DecodeString(parts[4])
		if err != nil {
			return nil, fmt.Errorf("decoding base64 entry of %s message failed: %v", OpKindSequenceAppend, err)
		}

		return &SequenceOp{
			Address:   address,
			ID:        id,
			Entry:     entry,
			Source:    source,
			Signature: sig,
		}, nil

	case OpKindRegisterWrite:

		if len(parts) != 6 {
			return nil, fmt.Errorf("invalid %s message: incorrect amount of pipe symbols", OpKindRegisterWrite)
		}

		address, source, sig, err := parseEnvelope(parts[1], parts[2], parts[5])
		if err != nil {
			return nil, err
		}

		var parents []EntryHash
		if parts[3] != "" {

			for _, elem := range strings.Split(parts[3], ",") {

				parent, err := ParseEntryHash(elem)
				if err != nil {
					return nil, fmt.Errorf("invalid parent hash in %s message: %v", OpKindRegisterWrite, err)
				}

				parents = append(parents, parent)
			}
		}

		entry, err := base64.StdEncoding.DecodeString(parts[4])
		if err != nil {
			return nil, fmt.Errorf("decoding base64 entry of %s message failed: %v", OpKindRegisterWrite, err)
		}

		return &RegisterOp{
			Address:   address,
			Parents:   parents,
			Entry:     entry,
			Source:    source,
			Signature: sig,
		}, nil

	case OpKindMapData:

		if len(parts) != 7 {
			return nil, fmt.Errorf("invalid %s message: incorrect amount of pipe symbols", OpKindMapData)
		}

		address, source, sig, err := parseEnvelope(parts[1], parts[2], parts[6])
		if err != nil {
			return nil, err
		}

		ctx, err := ParseIdentifier(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid policy context in %s message: %v", OpKindMapData, err)
		}

		id, err := ParseIdentifier(parts[4])
		if err != nil {
			return nil, fmt.Errorf("invalid item identifier in %s message: %v", OpKindMapData, err)
		}

		entry, err := base64.StdEncoding.DecodeString(parts[5])
		if err != nil {
			return nil, fmt.Errorf("decoding base64 entry of %s message failed: %v", OpKindMapData, err)
		}

		return &MapDataOp{
			Address:   address,
			Ctx:       ctx,
			ID:        id,
			Entry:     entry,
			Source:    source,
			Signature: sig,
		}, nil

	case OpKindMapPolicy:

		if len(parts) != 8 {
			return nil, fmt.Errorf("invalid %s message: incorrect amount of pipe symbols", OpKindMapPolicy)
		}

		address, source, sig, err := parseEnvelope(parts[1], parts[2], parts[7])
		if err != nil {
			return nil, err
		}

		id, err := ParseIdentifier(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid policy identifier in %s message: %v", OpKindMapPolicy, err)
		}

		policy, err := base64.StdEncoding.DecodeString(parts[4])
		if err != nil {
			return nil, fmt.Errorf("decoding base64 policy of %s message failed: %v", OpKindMapPolicy, err)
		}

		cut, err := parseOptIdent(parts[5])
		if err != nil {
			return nil, fmt.Errorf("invalid cut identifier in %s message: %v", OpKindMapPolicy, err)
		}

		ctxPrev, err := parseOptIdent(parts[6])
		if err != nil {
			return nil, fmt.Errorf("invalid previous policy identifier in %s message: %v", OpKindMapPolicy, err)
		}

		return &MapPolicyOp{
			Address:   address,
			Policy:    string(policy),
			Cut:       cut,
			ID:        id,
			CtxPrev:   ctxPrev,
			Source:    source,
			Signature: sig,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported operation kind specified in message")
	}
}

// parseEnvelope parses the address, source and signature
// elements shared by all operation kinds.
func parseEnvelope(addrEnc string, sourceEnc string, sigEnc string) (types.Address, auth.PublicKey, *auth.Signature, error) {

	address, err := types.ParseAddress(addrEnc)
	if err != nil {
		return types.Address{}, auth.PublicKey{}, nil, fmt.Errorf("invalid address in operation message: %v", err)
	}

	source, err := auth.ParsePublicKey(sourceEnc)
	if err != nil {
		return types.Address{}, auth.PublicKey{}, nil, fmt.Errorf("invalid source key in operation message: %v", err)
	}

	sig, err := parseSignature(sigEnc)
	if err != nil {
		return types.Address{}, auth.PublicKey{}, nil, fmt.Errorf("invalid signature in operation message: %v", err)
	}

	return address, source, sig, nil
}

// parseOptIdent parses an optional identifier element of
// the wire form.
func parseOptIdent(enc string) (*Identifier, error) {

	if enc == "" {
		return nil, nil
	}

	id, err := ParseIdentifier(enc)
	if err != nil {
		return nil, err
	}

	return &id, nil
}
