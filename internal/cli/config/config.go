package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort    = 8443
	configFileName = "config.yaml"
	envHost        = "SRPGATE_HOST"
	envPort        = "SRPGATE_PORT"
	envCACert      = "SRPGATE_CA_CERT"
	envFingerprint = "SRPGATE_FINGERPRINT"
	envPlaintext   = "SRPGATE_PLAINTEXT"
	minPort        = 1
	maxPort        = 65535
)

// Config holds the configuration for the srp CLI tool.
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	CACert string `yaml:"ca_cert,omitempty"`
	// Fingerprint pins the server certificate ("SHA256:<base64>"). It
	// replaces CA verification when set.
	Fingerprint string `yaml:"fingerprint,omitempty"`
	// Plaintext talks HTTP instead of HTTPS.
	Plaintext bool `yaml:"plaintext,omitempty"`
}

// Flags carries command-line overrides. Zero values leave the loaded
// configuration untouched.
type Flags struct {
	Host        string
	Port        int
	CACert      string
	Fingerprint string
	Plaintext   bool
}

// Load loads configuration from file, environment variables, and applies defaults.
// Precedence order (highest to lowest):
// 1. Environment variables
// 2. Config file
// 3. Defaults
//
// Command-line flags are applied by individual commands after calling Load().
func Load() (*Config, error) {
	cfg := &Config{
		Port: defaultPort,
	}

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the location of the user's config file.
func Path() (string, error) {
	configDir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFileName), nil
}

func (c *Config) loadFromFile() error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath) // #nosec G304 - configPath is user config directory
	if err != nil {
		return err
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	c.ApplyFlags(Flags{
		Host:        fileConfig.Host,
		Port:        fileConfig.Port,
		CACert:      fileConfig.CACert,
		Fingerprint: fileConfig.Fingerprint,
		Plaintext:   fileConfig.Plaintext,
	})
	return nil
}

func (c *Config) loadFromEnv() {
	if host := os.Getenv(envHost); host != "" {
		c.Host = host
	}

	if portStr := os.Getenv(envPort); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			c.Port = port
		}
	}

	if caCert := os.Getenv(envCACert); caCert != "" {
		c.CACert = caCert
	}

	if fp := os.Getenv(envFingerprint); fp != "" {
		c.Fingerprint = fp
	}

	if plain, err := strconv.ParseBool(os.Getenv(envPlaintext)); err == nil {
		c.Plaintext = plain
	}
}

// ApplyFlags applies command-line flag values to the configuration.
// This should be called after Load() to apply the highest priority values.
func (c *Config) ApplyFlags(f Flags) {
	if f.Host != "" {
		c.Host = f.Host
	}
	if f.Port != 0 {
		c.Port = f.Port
	}
	if f.CACert != "" {
		c.CACert = f.CACert
	}
	if f.Fingerprint != "" {
		c.Fingerprint = f.Fingerprint
	}
	if f.Plaintext {
		c.Plaintext = true
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	// Host may be empty here; commands that talk to a server call RequireHost.
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("invalid port %d: must be between %d and %d", c.Port, minPort, maxPort)
	}

	if c.CACert != "" {
		if _, err := os.Stat(c.CACert); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("CA certificate file not found: %s", c.CACert)
			}
			return fmt.Errorf("failed to access CA certificate file %s: %w", c.CACert, err)
		}
	}

	if c.Plaintext && (c.CACert != "" || c.Fingerprint != "") {
		return fmt.Errorf("plaintext cannot be combined with ca_cert or fingerprint")
	}

	return nil
}

// RequireHost checks if host is set and returns an error with helpful message if not.
func (c *Config) RequireHost() error {
	if c.Host == "" {
		return fmt.Errorf("srpgate server host not specified\n"+
			"Use --host flag, %s environment variable, or add 'host:' to config file:\n"+
			"  Config file location: <UserConfigDir>/srpgate/config.yaml\n"+
			"  Example: host: auth.example.com", envHost)
	}
	return nil
}

// Address returns the host:port address of the srpgate server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the server's base URL.
func (c *Config) BaseURL() string {
	scheme := "https"
	if c.Plaintext {
		scheme = "http"
	}
	return scheme + "://" + c.Address()
}

// Save writes the connection settings to the user's config file so later
// commands can omit --host.
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	if err := EnsureDir(filepath.Dir(configPath)); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}
	return nil
}
