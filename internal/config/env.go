package config

import "os"

// Env holds process settings taken from environment variables, which main
// may have populated from a .env file.
type Env struct {
	Secret     string
	BaseConfig string
	LogFile    string
}

// LoadEnv reads the MAPFLOW_* environment variables.
func LoadEnv() *Env {
	return &Env{
		Secret:     os.Getenv("MAPFLOW_SECRET"),
		BaseConfig: os.Getenv("MAPFLOW_BASE_CONFIG"),
		LogFile:    os.Getenv("MAPFLOW_LOG_FILE"),
	}
}
