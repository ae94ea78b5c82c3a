package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const ConfigFileName = "usradm.json"

// Server represents a users API the CLI can talk to
type Server struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// Namespace returns the key sessions for this server are stored under
func (s *Server) Namespace() string {
	if s.Alias != "" {
		return s.Alias
	}
	if u, err := url.Parse(s.URL); err == nil && u.Host != "" {
		return u.Host
	}
	return s.URL
}

// Label returns "alias (url)" for display
func (s *Server) Label() string {
	if s.Alias == "" {
		return s.URL
	}
	return fmt.Sprintf("%s (%s)", s.Alias, s.URL)
}

// Config represents the CLI configuration file
type Config struct {
	Servers []Server `json:"servers"`
}

// NormalizeURL validates an API base URL and strips a trailing slash. A
// bare host gets http:// prepended.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("server URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL '%s': %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL '%s': missing host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// FindConfigFile searches for usradm.json in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Search upwards until we find usradm.json or reach root
	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("usradm.json not found in %s or any parent directory", currentDir)
}

// Load reads the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetServerByAlias returns a server by its alias
func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with alias '%s' not found", alias)
}

// GetServerByURL returns a server by its base URL
func (c *Config) GetServerByURL(rawURL string) (*Server, error) {
	want, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	for i := range c.Servers {
		if got, err := NormalizeURL(c.Servers[i].URL); err == nil && got == want {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with URL '%s' not found", rawURL)
}

// GetDefaultServer returns the first server in the list
func (c *Config) GetDefaultServer() (*Server, error) {
	if len(c.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in usradm.json")
	}
	return &c.Servers[0], nil
}
