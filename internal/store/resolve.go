package store

import (
	"fmt"
	"os"
)

// LabelEnv names the environment variable consulted by ResolveLabel.
const LabelEnv = "FEEDCACHE_LABEL"

// ResolveLabel determines the label to use based on priority chain.
// Priority: explicit > FEEDCACHE_LABEL env > "default"
func ResolveLabel(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateLabel(explicit); err != nil {
			return "", fmt.Errorf("invalid label %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if envLabel := os.Getenv(LabelEnv); envLabel != "" {
		if err := ValidateLabel(envLabel); err != nil {
			return "", fmt.Errorf("invalid %s %q: %w", LabelEnv, envLabel, err)
		}
		return envLabel, nil
	}

	return DefaultLabel, nil
}
