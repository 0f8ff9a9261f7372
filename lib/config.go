package lib

import (
	"os"
	"strings"
	"time"

	"github.com/gravitational/trace"
)

const defaultAPITimeout = 15 * time.Second

// APIConfig stores where the finance backend is listening.
type APIConfig struct {
	URL     string        `toml:"url" help:"Finance backend base URL" env:"FINSESSION_API_URL"`
	Timeout time.Duration `toml:"timeout" help:"Timeout for a single API request" default:"15s" env:"FINSESSION_API_TIMEOUT"`
}

func (cfg *APIConfig) CheckAndSetDefaults() error {
	if cfg.URL == "" {
		return trace.BadParameter("missing required value api.url")
	}
	u, err := AddrToURL(cfg.URL)
	if err != nil {
		return trace.Wrap(err, "invalid api.url")
	}
	cfg.URL = u.String()

	if cfg.Timeout < 0 {
		return trace.BadParameter("api.timeout must not be negative")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultAPITimeout
	}
	return nil
}

// ReadPassword reads a secret from a file, trimming whitespace around it.
func ReadPassword(filename string) (string, error) {
	bytes, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return "", trace.BadParameter("Error reading password from %v", filename)
	}
	if err != nil {
		return "", trace.Wrap(err)
	}
	pass := strings.TrimSpace(string(bytes))
	if pass == "" {
		return "", trace.BadParameter("Error: %v is empty", filename)
	}
	return pass, nil
}

// ResolveSecret returns the value as is unless it is an absolute path,
// in which case the secret is read from that file.
func ResolveSecret(value string) (string, error) {
	if strings.HasPrefix(value, "/") {
		secret, err := ReadPassword(value)
		return secret, trace.Wrap(err)
	}
	return value, nil
}
