package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Constants

// Kinds partition the address space of replicated instances
// into namespaces that never collide.
const (
	KindPublic Kind = iota
	KindPrivate
)

// Structs

// Kind declares whether an instance lives in the public or
// the private namespace.
type Kind int

// Address immutably identifies one replicated data instance
// on the network. It carries the namespace kind, the network
// name of the instance and a numeric type tag. An Address is
// assigned at construction of an instance and never changes
// across its lifetime.
type Address struct {
	Kind Kind
	Name string
	Tag  uint64
}

// Functions

// NewAddress bundles supplied namespace kind, network name
// and type tag into an Address value.
func NewAddress(kind Kind, name string, tag uint64) Address {

	return Address{
		Kind: kind,
		Name: name,
		Tag:  tag,
	}
}

// IsPublic returns true if this address lies
// in the public namespace.
func (a Address) IsPublic() bool {
	return a.Kind == KindPublic
}

// IsPrivate returns true if this address lies
// in the private namespace.
func (a Address) IsPrivate() bool {
	return a.Kind == KindPrivate
}

// Equal returns true if both addresses identify the
// same instance.
func (a Address) Equal(other Address) bool {
	return a == other
}

// String marshalls an Address into its canonical string
// form, e.g. 'pub:books:20' or 'priv:drafts:7'. This form
// keys internal structures and appears in sync messages,
// therefore it has to stay deterministic.
func (a Address) String() string {

	kind := "pub"
	if a.Kind == KindPrivate {
		kind = "priv"
	}

	return fmt.Sprintf("%s:%s:%d", kind, a.Name, a.Tag)
}

// ParseAddress takes in the canonical string form of an
// Address and turns it back into the struct representation.
func ParseAddress(addr string) (Address, error) {

	parts := strings.SplitN(addr, ":", 3)
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("invalid address, expected three colon-separated parts")
	}

	var kind Kind
	switch parts[0] {
	case "pub":
		kind = KindPublic
	case "priv":
		kind = KindPrivate
	default:
		return Address{}, fmt.Errorf("invalid address namespace '%s'", parts[0])
	}

	if len(parts[1]) < 1 {
		return Address{}, fmt.Errorf("invalid address because network name is missing")
	}

	tag, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Address{}, fmt.Errorf("invalid numeric tag in address: %v", err)
	}

	return Address{
		Kind: kind,
		Name: parts[1],
		Tag:  tag,
	}, nil
}
