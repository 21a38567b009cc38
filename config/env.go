package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env files into the process environment. Missing files
// are ignored and variables already set win.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// ApplyEnv copies secrets and endpoints from the environment onto c.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		c.Credentials.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		c.Credentials.APISecret = v
	}
	if v := os.Getenv("JOURNAL_DSN"); v != "" {
		c.Journal.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Journal.NATSURL = v
	}
}
