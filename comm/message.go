package comm

import (
	"fmt"
	"strings"
)

// Structs

// Msg is one sync message travelling between replica nodes:
// the name of the replica that sent it and the canonical wire
// form of the operation it carries. The payload stays the
// exact byte form its creator signed.
type Msg struct {
	Replica string
	Payload string
}

// Functions

// String marshalls a Msg into the line format sent over
// sync connections.
func (m Msg) String() string {
	return fmt.Sprintf("%s|%s", m.Replica, m.Payload)
}

// ParseMsg takes in the line format of a sync message and
// turns it back into the Msg struct representation.
func ParseMsg(enc string) (Msg, error) {

	parts := strings.SplitN(enc, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Msg{}, fmt.Errorf("invalid sync message found during parsing")
	}

	return Msg{
		Replica: parts[0],
		Payload: parts[1],
	}, nil
}
