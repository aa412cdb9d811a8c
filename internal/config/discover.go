package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	configFileName      = "modda.yml"
	credentialsFileName = "modda-credentials.yml"
	configDirName       = "modda"
)

// Layer is one candidate location for a config or credentials file, in the
// order the external interfaces section documents: project before user.
type Layer struct {
	Path string
	// Project is true for ./modda.yml, false for the per-user config dir.
	Project bool
}

// DiscoverConfigPaths returns ./modda.yml followed by the OS-conventional
// per-user modda.yml, in precedence order. Callers merge every layer that
// exists, with the earlier layer winning on a conflicting scalar (see
// Merge). An explicit override (the --config flag) short-circuits discovery
// entirely: it is the only layer returned.
func DiscoverConfigPaths(explicit string) []Layer {
	if explicit != "" {
		return []Layer{{Path: explicit, Project: true}}
	}
	return []Layer{
		{Path: configFileName, Project: true},
		{Path: filepath.Join(xdg.ConfigHome, configDirName, configFileName), Project: false},
	}
}

// DiscoverCredentialsPaths mirrors DiscoverConfigPaths for
// modda-credentials.yml.
func DiscoverCredentialsPaths() []Layer {
	return []Layer{
		{Path: credentialsFileName, Project: true},
		{Path: filepath.Join(xdg.ConfigHome, configDirName, credentialsFileName), Project: false},
	}
}
