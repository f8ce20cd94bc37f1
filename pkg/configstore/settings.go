package configstore

import (
	"fmt"
	"sort"
	"strings"
)

// settingsKeys declares the accepted settings keys per tool. Tools without
// an entry accept no settings. Validation happens at the configuration
// boundary so handlers can trust stored values.
var settingsKeys = map[string][]string{
	"search":           {"api_key"},
	"browser_use_task": {"api_key"},
	"adapter_call":     {"user_agent"},
	"filesystem":       {"workspace_root"},
}

// ValidateSettings rejects settings with keys the tool does not declare
func ValidateSettings(toolID string, settings map[string]string) error {
	if len(settings) == 0 {
		return nil
	}

	allowed, ok := settingsKeys[toolID]
	if !ok {
		return fmt.Errorf("tool %s accepts no settings", toolID)
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = true
	}

	var unknown []string
	for k := range settings {
		if !allowedSet[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown settings for %s: %s (allowed: %s)",
			toolID, strings.Join(unknown, ", "), strings.Join(allowed, ", "))
	}
	return nil
}
