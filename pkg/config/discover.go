package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ProjectConfigName is the per-directory config, found by walking up.
const ProjectConfigName = ".digitarc/config.yaml"

// DiscoverPath picks the config file to load, in order: the explicit flag
// value, $DIGITARC_CONFIG, a .digitarc/config.yaml in the working directory
// or one of its parents, then ~/.config/digitarc/config.yaml. The returned
// path may not exist.
func DiscoverPath(flagPath string) string {
	if flagPath != "" {
		return expandHome(flagPath)
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return expandHome(env)
	}
	if dir, err := os.Getwd(); err == nil {
		if found, ok := findProjectConfig(dir); ok {
			return found
		}
	}
	return UserConfigPath()
}

// UserConfigPath returns ~/.config/digitarc/config.yaml (or the platform
// equivalent).
func UserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "digitarc.yaml")
	}
	return filepath.Join(dir, "digitarc", "config.yaml")
}

// findProjectConfig walks up from dir looking for ProjectConfigName. It
// does not go above the home directory.
func findProjectConfig(dir string) (string, bool) {
	home, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
