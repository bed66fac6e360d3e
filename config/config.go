package config

import (
	"fmt"

	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	Replica      Replica
	TLS          TLS
	Peers        map[string]string
	KeyDirectory KeyDirectory
	Instances    []Instance
}

// Replica describes this replica node: its unique name in
// the peer set, the sync endpoint it listens on, where its
// durable operation logs live and where metrics are served.
type Replica struct {
	Name           string
	ListenSyncAddr string
	PublicSyncAddr string
	PrometheusAddr string
	SendLog        string
	RecvLog        string
	SyncTimeout    int
	SyncRetry      int
}

// TLS names the certificate material for the mutually
// authenticated sync connections between replicas.
type TLS struct {
	CertLoc     string
	KeyLoc      string
	RootCertLoc string
}

// KeyDirectory selects and configures the adapter used to
// look up the public keys of known identities.
type KeyDirectory struct {
	Adapter     string
	KeyFile     *KeyFile
	KeyPostgres *KeyPostgres
}

// KeyFile provides the location of a flat file of
// identity-to-key lines.
type KeyFile struct {
	File      string
	Separator string
}

// KeyPostgres defines parameters for connecting to a
// PostgreSQL database holding the key directory.
type KeyPostgres struct {
	IP       string
	Port     uint16
	Database string
	User     string
	Password string
	UseTLS   bool
}

// Instance declares one replicated data instance this
// replica hosts. Kind selects the data type ("sequence",
// "register" or "map"), Namespace whether the instance is
// publicly readable ("public" or "private"), and Owner is
// the owning identity's name in the key directory.
type Instance struct {
	Kind      string
	Namespace string
	Name      string
	Tag       uint64
	Owner     string
}

// Functions

// LoadConfig takes in the path to the main config file in
// TOML syntax and places the values from the file in the
// corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	_, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	if conf.Replica.Name == "" {
		return nil, fmt.Errorf("replica name must not be empty")
	}

	// A replica must never sync with itself.
	if _, present := conf.Peers[conf.Replica.Name]; present {
		return nil, fmt.Errorf("replica '%s' must not appear in its own peer set", conf.Replica.Name)
	}

	for _, inst := range conf.Instances {

		if (inst.Kind != "sequence") && (inst.Kind != "register") && (inst.Kind != "map") {
			return nil, fmt.Errorf("instance '%s' declares unsupported kind '%s'", inst.Name, inst.Kind)
		}

		if (inst.Namespace != "public") && (inst.Namespace != "private") {
			return nil, fmt.Errorf("instance '%s' declares unsupported namespace '%s'", inst.Name, inst.Namespace)
		}

		if inst.Owner == "" {
			return nil, fmt.Errorf("instance '%s' must declare an owner identity", inst.Name)
		}
	}

	// Prefix each relative path in the config with the
	// absolute path of the config file's directory.
	absConfigDir, err := filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of config directory: %v", err)
	}

	if !filepath.IsAbs(conf.TLS.CertLoc) {
		conf.TLS.CertLoc = filepath.Join(absConfigDir, conf.TLS.CertLoc)
	}

	if !filepath.IsAbs(conf.TLS.KeyLoc) {
		conf.TLS.KeyLoc = filepath.Join(absConfigDir, conf.TLS.KeyLoc)
	}

	if !filepath.IsAbs(conf.TLS.RootCertLoc) {
		conf.TLS.RootCertLoc = filepath.Join(absConfigDir, conf.TLS.RootCertLoc)
	}

	if !filepath.IsAbs(conf.Replica.SendLog) {
		conf.Replica.SendLog = filepath.Join(absConfigDir, conf.Replica.SendLog)
	}

	if !filepath.IsAbs(conf.Replica.RecvLog) {
		conf.Replica.RecvLog = filepath.Join(absConfigDir, conf.Replica.RecvLog)
	}

	if (conf.KeyDirectory.Adapter == "KeyFile") && (conf.KeyDirectory.KeyFile != nil) {

		if !filepath.IsAbs(conf.KeyDirectory.KeyFile.File) {
			conf.KeyDirectory.KeyFile.File = filepath.Join(absConfigDir, conf.KeyDirectory.KeyFile.File)
		}
	}

	return conf, nil
}
