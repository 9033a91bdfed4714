package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/pkg/types"
)

// LoadPermissionRules reads the ordered (pattern, verdict) rule list
// from .floyd/permissions.json (§6 [NEW]). A missing file yields an
// empty, not nil, slice so callers can append to it directly.
func LoadPermissionRules(directory string) ([]types.PermissionRule, error) {
	path := PermissionsPath(directory)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []types.PermissionRule{}, nil
	}
	if err != nil {
		return nil, errkind.New(types.ConfigError, err)
	}

	var rules []types.PermissionRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, errkind.New(types.ConfigError, err)
	}
	return rules, nil
}

// SavePermissionRules persists the rule list. Only the "always" grant
// scope is durable (§6); "session" and "once" scopes never reach here.
func SavePermissionRules(directory string, rules []types.PermissionRule) error {
	path := PermissionsPath(directory)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errkind.New(types.ConfigError, err)
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return errkind.New(types.ConfigError, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errkind.New(types.ConfigError, err)
	}
	return nil
}
