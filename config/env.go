package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Structs

// Env holds information specific to the system where this
// replica is deployed. This enables host adaptions without
// needing to maintain two different config files. Use the
// .env file to populate secrets within the system.
type Env struct {
	KeyDBPassword string
}

// Functions

// LoadEnv looks for an .env file at supplied path and
// reads in all defined values.
func LoadEnv(envFile string) (*Env, error) {

	// Load environment file.
	err := godotenv.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("[config.LoadEnv] Failed to read in env file with: %v", err)
	}

	env := new(Env)

	// Fill variables from .env into struct.
	env.KeyDBPassword = os.Getenv("KEY_DB_PASSWORD")

	return env, nil
}
