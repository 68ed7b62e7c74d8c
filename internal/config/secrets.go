package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: when
// envName+"_FILE" is set the secret is read (and trimmed) from that path,
// taking precedence over the plain variable. Returns "" when neither is
// set; errors only when the file cannot be read.
func ResolveSecret(envName string) (string, error) {
	if path := os.Getenv(envName + "_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s_FILE=%s: %w", envName, path, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}
