package auth

import (
	"fmt"

	"crypto/tls"

	"gopkg.in/jackc/pgx.v2"
)

// Structs

// PostgresDirectory carries all relevant information needed
// to allow the PostgreSQL-based key directory to properly
// resolve identity names to registered public keys.
type PostgresDirectory struct {
	Conn *pgx.Conn
}

// Functions

// NewPostgresDirectory expects to be supplied with PostgreSQL
// database connection information from the config file. It
// then tries to connect to the database and returns an
// initialized struct above.
func NewPostgresDirectory(ip string, port uint16, db string, user string, password string, useTLS bool) (*PostgresDirectory, error) {

	// Prepare a default TLS config if useTLS is set to true.
	// Otherwise, this config will be nil and therefore disable TLS.
	var dbTLSConfig *tls.Config
	if useTLS {
		dbTLSConfig = new(tls.Config)
	}

	// Create a new connection config using the imported pgx drivers.
	connConfig := pgx.ConnConfig{
		Host:           ip,
		Port:           port,
		Database:       db,
		User:           user,
		Password:       password,
		TLSConfig:      dbTLSConfig,
		UseFallbackTLS: false,
	}

	// Connect to PostgreSQL database based on above config.
	conn, err := pgx.Connect(connConfig)
	if err != nil {
		return nil, fmt.Errorf("[auth.NewPostgresDirectory] Could not connect to specified PostgreSQL database: %v", err)
	}

	return &PostgresDirectory{
		Conn: conn,
	}, nil
}

// PublicKeyFor looks up the public key registered for the
// identity matching supplied name in the keys table.
func (p *PostgresDirectory) PublicKeyFor(identity string) (PublicKey, error) {

	var encKey string

	// Query database for identity matching supplied name.
	err := p.Conn.QueryRow("SELECT public_key FROM keys WHERE identity = $1", identity).Scan(&encKey)
	if err != nil {

		// Check what type of error we received.
		if err == pgx.ErrNoRows {
			return PublicKey{}, fmt.Errorf("identity not found in keys table")
		}

		return PublicKey{}, fmt.Errorf("error while trying to locate identity: %v", err)
	}

	// Parse hex form of stored key into struct representation.
	key, err := ParsePublicKey(encKey)
	if err != nil {
		return PublicKey{}, fmt.Errorf("malformed public key stored for identity: %v", err)
	}

	return key, nil
}

// IsKnownKey reports whether supplied public key is registered
// for any identity in the keys table.
func (p *PostgresDirectory) IsKnownKey(key PublicKey) bool {

	var count int

	// Count rows carrying exactly this key in canonical form.
	err := p.Conn.QueryRow("SELECT COUNT(*) FROM keys WHERE public_key = $1", key.String()).Scan(&count)
	if err != nil {
		return false
	}

	return count > 0
}
