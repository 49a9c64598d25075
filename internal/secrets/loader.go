package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes how to load a secret value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// File points to a file containing the secret value. When set it takes
	// precedence over Value.
	File string
}

// Load returns the resolved secret value from the provided source. When File is
// set it takes precedence over Value. The returned secret is always trimmed. An
// error is returned when neither File nor Value contain a usable secret.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		src.Value = string(data)
		src.File = file
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		if src.File != "" {
			return "", fmt.Errorf("%s file %q is empty", name, src.File)
		}
		return "", fmt.Errorf("%s is not configured", name)
	}

	return secret, nil
}

// LoadAll resolves an ordered list of secret sources, preserving order. It is
// used for providers that accept backup API keys. An error from any source
// fails the whole load so a misconfigured backup key is caught at startup
// rather than mid-run.
func LoadAll(sources ...Source) ([]string, error) {
	secrets := make([]string, 0, len(sources))
	for i, src := range sources {
		if strings.TrimSpace(src.Name) == "" {
			src.Name = fmt.Sprintf("secret #%d", i+1)
		}

		secret, err := Load(src)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}

	if len(secrets) == 0 {
		return nil, fmt.Errorf("no secret sources configured")
	}

	return secrets, nil
}
