package firecrawl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/subosito/gotenv"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// EnvAPIKey is the environment variable read when no key is configured.
const EnvAPIKey = "FIRECRAWL_API_KEY"

// KeySource names where an API key was found.
type KeySource string

const (
	KeySourceConfig      KeySource = "config"
	KeySourceEnv         KeySource = "env"
	KeySourceEnvFile     KeySource = ".env.local"
	KeySourceCredentials KeySource = "credentials"
)

// KeyLookup holds the places searched for an API key. Empty fields are skipped.
type KeyLookup struct {
	Configured      string
	Getenv          func(string) string
	EnvFile         string
	CredentialsFile string
}

// DefaultKeyLookup searches the process environment, .env.local in dir and
// the firecrawl CLI credentials file.
func DefaultKeyLookup(configured, dir string) KeyLookup {
	return KeyLookup{
		Configured:      configured,
		Getenv:          os.Getenv,
		EnvFile:         filepath.Join(dir, ".env.local"),
		CredentialsFile: CredentialsPath(),
	}
}

// CredentialsPath returns where `firecrawl login` stores its key.
func CredentialsPath() string {
	base := os.Getenv("APPDATA")
	if base == "" {
		var err error
		if base, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(base, "firecrawl-cli", "credentials.json")
}

// ResolveAPIKey returns the first non-empty key in lookup order.
// Unreadable files are skipped; ErrInvalidInput is returned when nothing is found.
func ResolveAPIKey(l KeyLookup) (string, KeySource, error) {
	if k := strings.TrimSpace(l.Configured); k != "" {
		return k, KeySourceConfig, nil
	}
	if l.Getenv != nil {
		if k := strings.TrimSpace(l.Getenv(EnvAPIKey)); k != "" {
			return k, KeySourceEnv, nil
		}
	}
	if l.EnvFile != "" {
		if env, err := gotenv.Read(l.EnvFile); err == nil {
			if k := strings.TrimSpace(env[EnvAPIKey]); k != "" {
				return k, KeySourceEnvFile, nil
			}
		}
	}
	if l.CredentialsFile != "" {
		if k, err := readCredentials(l.CredentialsFile); err == nil && k != "" {
			return k, KeySourceCredentials, nil
		}
	}
	return "", "", fmt.Errorf("%w: firecrawl api key not found; set %s, add it to .env.local or run `firecrawl login`",
		domain.ErrInvalidInput, EnvAPIKey)
}

func readCredentials(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var creds map[string]any
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", err
	}
	for _, field := range []string{"apiKey", "api_key", "key"} {
		if s, ok := creds[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", nil
}
