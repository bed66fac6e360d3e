package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/pkg/errors"
)

// Constants

// Actions a requester can ask to perform on a data instance.
const (
	ActionRead Action = iota
	ActionAppend
	ActionAdmin
)

// Permission states of one action for one user. PermUnset is
// only meaningful in public policies where it defers to the
// permissions granted to anyone.
const (
	PermUnset Perm = iota
	PermDeny
	PermAllow
)

// Anyone addresses the permission set that applies to every
// requester without an explicit entry in a public policy.
const Anyone User = "*"

// Variables

// ErrAccessDenied is returned when a policy lookup concludes
// that the requester may not perform the asked action.
var ErrAccessDenied = errors.New("action denied by policy for requester")

// Structs

// Action enumerates the kinds of access a policy can grant.
type Action int

// Perm is the tri-state permission of one action.
type Perm int

// User keys a permission set inside a policy. It is either
// the canonical public key form of a concrete identity, or
// Anyone in public policies.
type User string

// PublicPermissions is the permission set of one user in a
// public policy. Reading public data is always allowed and
// therefore not part of the set.
type PublicPermissions struct {
	Append Perm
	Admin  Perm
}

// PrivatePermissions is the permission set of one user in a
// private policy. All grants are explicit, including reads.
type PrivatePermissions struct {
	Read   bool
	Append bool
	Admin  bool
}

// Public is the access policy of a publicly readable data
// instance: an owner plus per-user permission sets with an
// optional fallback entry for Anyone.
type Public struct {
	PolicyOwner auth.PublicKey
	Permissions map[User]PublicPermissions
}

// Private is the access policy of a private data instance.
// Every grant, reads included, names a concrete identity.
type Private struct {
	PolicyOwner auth.PublicKey
	Permissions map[User]PrivatePermissions
}

// Interfaces

// Policy answers allowed-or-denied lookups and exposes the
// owner of the governed data instance.
type Policy interface {

	// IsActionAllowed returns nil if the requester may perform
	// the asked action and ErrAccessDenied otherwise.
	IsActionAllowed(requester auth.PublicKey, action Action) error

	// Owner returns the public key of the instance owner.
	Owner() auth.PublicKey

	// String returns the canonical encoding of this policy,
	// identical across replicas for the same logical policy.
	String() string
}

// Functions

// UserFrom turns a concrete public key into the User form
// used to key permission sets.
func UserFrom(key auth.PublicKey) User {
	return User(key.String())
}

// IsActionAllowed checks the asked action for the requester
// against this public policy. The owner may do everything,
// reads are always allowed, and unset permissions fall back
// to the entry for Anyone.
func (p Public) IsActionAllowed(requester auth.PublicKey, action Action) error {

	// The owner of the instance is always allowed.
	if p.PolicyOwner.Equal(requester) {
		return nil
	}

	// Public data is readable by everyone.
	if action == ActionRead {
		return nil
	}

	// An explicit user entry takes precedence, falling
	// back to Anyone only while the permission is unset.
	if perms, found := p.Permissions[UserFrom(requester)]; found {

		switch perms.permFor(action) {
		case PermAllow:
			return nil
		case PermDeny:
			return ErrAccessDenied
		}
	}

	if perms, found := p.Permissions[Anyone]; found {

		if perms.permFor(action) == PermAllow {
			return nil
		}
	}

	return ErrAccessDenied
}

// Owner returns the public key of the instance owner.
func (p Public) Owner() auth.PublicKey {
	return p.PolicyOwner
}

// permFor selects the tri-state permission covering
// supplied action.
func (perms PublicPermissions) permFor(action Action) Perm {

	switch action {
	case ActionAppend:
		return perms.Append
	case ActionAdmin:
		return perms.Admin
	default:
		return PermAllow
	}
}

// IsActionAllowed checks the asked action for the requester
// against this private policy. Only the owner and users with
// an explicit matching grant are allowed.
func (p Private) IsActionAllowed(requester auth.PublicKey, action Action) error {

	// The owner of the instance is always allowed.
	if p.PolicyOwner.Equal(requester) {
		return nil
	}

	perms, found := p.Permissions[UserFrom(requester)]
	if !found {
		return ErrAccessDenied
	}

	allowed := false
	switch action {
	case ActionRead:
		allowed = perms.Read
	case ActionAppend:
		allowed = perms.Append
	case ActionAdmin:
		allowed = perms.Admin
	}

	if !allowed {
		return ErrAccessDenied
	}

	return nil
}

// Owner returns the public key of the instance owner.
func (p Private) Owner() auth.PublicKey {
	return p.PolicyOwner
}

// String marshalls this public policy into its canonical
// form: kind, owner and semicolon-separated permission sets
// in sorted user order.
func (p Public) String() string {

	enc := fmt.Sprintf("pub|%s", p.PolicyOwner.String())

	for _, user := range sortedUsers(len(p.Permissions), func(add func(User)) {
		for user := range p.Permissions {
			add(user)
		}
	}) {
		perms := p.Permissions[user]
		enc = fmt.Sprintf("%s|%s;%d.%d", enc, user, perms.Append, perms.Admin)
	}

	return enc
}

// String marshalls this private policy into its canonical
// form: kind, owner and semicolon-separated permission sets
// in sorted user order.
func (p Private) String() string {

	enc := fmt.Sprintf("priv|%s", p.PolicyOwner.String())

	for _, user := range sortedUsers(len(p.Permissions), func(add func(User)) {
		for user := range p.Permissions {
			add(user)
		}
	}) {
		perms := p.Permissions[user]
		enc = fmt.Sprintf("%s|%s;%s.%s.%s", enc, user, encBool(perms.Read), encBool(perms.Append), encBool(perms.Admin))
	}

	return enc
}

// Parse takes in the canonical string form of a policy and
// turns it back into the fitting struct representation.
func Parse(enc string) (Policy, error) {

	parts := strings.Split(enc, "|")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid policy encoding, expected kind and owner")
	}

	owner, err := auth.ParsePublicKey(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid owner key in policy encoding: %v", err)
	}

	switch parts[0] {

	case "pub":

		perms := make(map[User]PublicPermissions)
		for _, part := range parts[2:] {

			user, fields, err := splitPermissions(part, 2)
			if err != nil {
				return nil, err
			}

			appendPerm, err := parsePerm(fields[0])
			if err != nil {
				return nil, err
			}
			adminPerm, err := parsePerm(fields[1])
			if err != nil {
				return nil, err
			}

			perms[user] = PublicPermissions{
				Append: appendPerm,
				Admin:  adminPerm,
			}
		}

		return Public{
			PolicyOwner: owner,
			Permissions: perms,
		}, nil

	case "priv":

		perms := make(map[User]PrivatePermissions)
		for _, part := range parts[2:] {

			user, fields, err := splitPermissions(part, 3)
			if err != nil {
				return nil, err
			}

			perms[user] = PrivatePermissions{
				Read:   fields[0] == "1",
				Append: fields[1] == "1",
				Admin:  fields[2] == "1",
			}
		}

		return Private{
			PolicyOwner: owner,
			Permissions: perms,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported policy kind '%s'", parts[0])
	}
}

// sortedUsers collects users via the supplied walker and
// returns them in their canonical sorted order.
func sortedUsers(count int, walk func(add func(User))) []User {

	users := make([]User, 0, count)
	walk(func(user User) {
		users = append(users, user)
	})

	sort.Slice(users, func(i, j int) bool {
		return users[i] < users[j]
	})

	return users
}

// splitPermissions splits one 'user;f1.f2...' element of a
// policy encoding and checks the field count.
func splitPermissions(part string, fields int) (User, []string, error) {

	elems := strings.Split(part, ";")
	if len(elems) != 2 {
		return "", nil, fmt.Errorf("invalid permission element in policy encoding")
	}

	split := strings.Split(elems[1], ".")
	if len(split) != fields {
		return "", nil, fmt.Errorf("invalid permission fields in policy encoding")
	}

	return User(elems[0]), split, nil
}

// parsePerm parses the numeric form of a tri-state permission.
func parsePerm(enc string) (Perm, error) {

	switch enc {
	case "0":
		return PermUnset, nil
	case "1":
		return PermDeny, nil
	case "2":
		return PermAllow, nil
	default:
		return PermUnset, fmt.Errorf("invalid permission state '%s' in policy encoding", enc)
	}
}

// encBool encodes one explicit grant of a private
// permission set.
func encBool(b bool) string {

	if b {
		return "1"
	}

	return "0"
}
