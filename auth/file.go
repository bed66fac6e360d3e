package auth

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Structs

// FileDirectory contains the in-memory identity to public
// key mapping read from a designated keys text file.
type FileDirectory struct {
	Identities []Identity
}

// Identity holds name and public key from one line
// of the keys file.
type Identity struct {
	Name string
	Key  PublicKey
}

// Functions

// NewFileDirectory takes in a file name and a separator,
// reads in specified file and parses it line by line as
// identity - public key elements separated by the separator.
// At the end, the returned struct contains an in-memory list
// of identity names mapped to their public keys.
func NewFileDirectory(file string, sep string) (*FileDirectory, error) {

	// Reserve space for the ordered identities list in memory.
	identities := make([]Identity, 0, 50)

	// Open file with key information.
	handle, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("[auth.NewFileDirectory] Could not open supplied keys file: %v", err)
	}
	defer handle.Close()

	// Create a new scanner on top of file handle.
	scanner := bufio.NewScanner(handle)

	// As long as there are lines left, scan them into memory.
	for scanner.Scan() {

		// Split read line based on separator defined in config file.
		identityData := strings.Split(scanner.Text(), sep)
		if len(identityData) != 2 {
			return nil, fmt.Errorf("[auth.NewFileDirectory] Malformed line in keys file, expected name and key")
		}

		// Parse hex form of public key into struct representation.
		key, err := ParsePublicKey(identityData[1])
		if err != nil {
			return nil, fmt.Errorf("[auth.NewFileDirectory] Malformed public key in keys file: %v", err)
		}

		// Append new identity element to slice.
		identities = append(identities, Identity{
			Name: identityData[0],
			Key:  key,
		})
	}

	// If the scanner ended with an error, report it.
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[auth.NewFileDirectory] Experienced error while scanning keys file: %v", err)
	}

	// Sort identities list to search it efficiently later on.
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].Name < identities[j].Name
	})

	return &FileDirectory{
		Identities: identities,
	}, nil
}

// PublicKeyFor searches the in-memory list for an identity
// matching supplied name and returns its registered key.
func (f *FileDirectory) PublicKeyFor(identity string) (PublicKey, error) {

	// Search in identities list for element matching supplied name.
	i := sort.Search(len(f.Identities), func(i int) bool {
		return f.Identities[i].Name >= identity
	})

	// If that identity does not exist, throw an error.
	if !((i < len(f.Identities)) && (f.Identities[i].Name == identity)) {
		return PublicKey{}, fmt.Errorf("identity not found in list of registered keys")
	}

	return f.Identities[i].Key, nil
}

// IsKnownKey reports whether supplied public key is
// registered for any identity read from the keys file.
func (f *FileDirectory) IsKnownKey(key PublicKey) bool {

	for _, identity := range f.Identities {

		if identity.Key.Equal(key) {
			return true
		}
	}

	return false
}
