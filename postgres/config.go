package postgres

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the PostgreSQL connection settings, parsed from the
// environment using the "POSTGRES_" prefix.
type Config struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"postgres"`
	Password string `default:"password"`
	Database string `default:"postgres"`
	SSLMode  string `split_words:"true" default:"disable"`
}

// LoadConfig parses the Config from the process environment.
func LoadConfig() (Config, error) {
	var config Config

	if err := envconfig.Process("postgres", &config); err != nil {
		return Config{}, fmt.Errorf("postgres.LoadConfig: failed to parse from env, %w", err)
	}

	return config, nil
}

// DSN returns the connection string for the configured database.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}
