package auth

import (
	"fmt"

	"github.com/jinzhu/gorm"

	// We need fitting PostgreSQL drivers for gorm.
	_ "github.com/jinzhu/gorm/dialects/postgres"
)

// Structs

// PostgreSQLDirectory stores connection information to the
// PostgreSQL keys table configured in the system. It is the
// gorm-backed alternative to the pgx-based directory and is
// mainly useful in development setups where the keys table
// should be created on demand.
type PostgreSQLDirectory struct {
	IP         string
	Port       string
	Database   string
	User       string
	Connection *gorm.DB
}

// RegisteredKey models one row of the keys table.
type RegisteredKey struct {
	Identity  string `gorm:"primary_key"`
	PublicKey string
}

// Functions

// NewPostgreSQLDirectory handles the initialization of the
// database connection, makes sure the keys table exists and
// returns all information nicely packaged in above struct.
func NewPostgreSQLDirectory(ip string, port string, db string, user string, pass string, sslmode string) (*PostgreSQLDirectory, error) {

	var conn *gorm.DB
	var err error

	// Either attempt login with or without password to database.
	if pass != "" {
		conn, err = gorm.Open("postgres", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, ip, port, db, sslmode))
	} else {
		conn, err = gorm.Open("postgres", fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", user, ip, port, db, sslmode))
	}
	if err != nil {
		return nil, fmt.Errorf("[auth.NewPostgreSQLDirectory] Could not connect to database: %v", err)
	}

	// Try to reach database.
	err = conn.DB().Ping()
	if err != nil {
		return nil, fmt.Errorf("[auth.NewPostgreSQLDirectory] Specified database not reachable after connection: %v", err)
	}

	// Create the keys table in case it does not exist yet.
	if err := conn.AutoMigrate(&RegisteredKey{}).Error; err != nil {
		return nil, fmt.Errorf("[auth.NewPostgreSQLDirectory] Could not ensure keys table exists: %v", err)
	}

	return &PostgreSQLDirectory{
		IP:         ip,
		Port:       port,
		Database:   db,
		User:       user,
		Connection: conn,
	}, nil
}

// PublicKeyFor looks up the public key registered for the
// identity matching supplied name in the keys table.
func (p *PostgreSQLDirectory) PublicKeyFor(identity string) (PublicKey, error) {

	var row RegisteredKey

	// Query keys table for identity matching supplied name.
	if err := p.Connection.Where(&RegisteredKey{Identity: identity}).First(&row).Error; err != nil {
		return PublicKey{}, fmt.Errorf("identity not found in keys table: %v", err)
	}

	// Parse hex form of stored key into struct representation.
	key, err := ParsePublicKey(row.PublicKey)
	if err != nil {
		return PublicKey{}, fmt.Errorf("malformed public key stored for identity: %v", err)
	}

	return key, nil
}

// IsKnownKey reports whether supplied public key is registered
// for any identity in the keys table.
func (p *PostgreSQLDirectory) IsKnownKey(key PublicKey) bool {

	var count int

	p.Connection.Model(&RegisteredKey{}).Where(&RegisteredKey{PublicKey: key.String()}).Count(&count)

	return count > 0
}
