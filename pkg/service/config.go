package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openidx/authcore/pkg/cache"
)

// StorageConfig selects the durable backend
type StorageConfig struct {
	// Driver is "memory" or "postgres"
	Driver string `json:"driver"`
	// DSN is the postgres connection string; ignored for the memory driver
	DSN string `json:"dsn,omitempty"`
}

// KeyConfig controls signing key material
type KeyConfig struct {
	// File is a PEM private key to load; empty means generate at startup
	File string `json:"file,omitempty"`
	// Dir is where generated keys are saved; empty means keep in memory only
	Dir string `json:"dir,omitempty"`
	// Bits is the RSA key size for generated keys
	Bits int `json:"bits"`
}

// FileConfig is the configuration stored in a file
type FileConfig struct {
	ListenAddr string `json:"listen_addr"`
	Issuer     string `json:"issuer"`

	// Token lifetimes in seconds
	AccessTokenTTLSeconds  int `json:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds int `json:"refresh_token_ttl_seconds"`

	Storage StorageConfig `json:"storage"`
	Cache   cache.Config  `json:"cache"`
	Keys    KeyConfig     `json:"keys"`
}

// AccessTokenTTL returns the access token lifetime as a duration
func (c *FileConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

// RefreshTokenTTL returns the refresh token lifetime as a duration
func (c *FileConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSeconds) * time.Second
}

// DefaultFileConfig returns a default file configuration
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		ListenAddr:             ":8080",
		Issuer:                 "http://authcore:8080",
		AccessTokenTTLSeconds:  1800,
		RefreshTokenTTLSeconds: 1209600,
		Storage: StorageConfig{
			Driver: "memory",
		},
		Cache: cache.Config{
			Driver: "memory",
			Prefix: "authcore",
		},
		Keys: KeyConfig{
			Bits: 2048,
		},
	}
}

// LoadFileConfig loads configuration from a file
func LoadFileConfig(configPath string) (*FileConfig, error) {
	if configPath == "" {
		return DefaultFileConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultFileConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveFileConfig saves configuration to a file
func SaveFileConfig(config *FileConfig, configPath string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
