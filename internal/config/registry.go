package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "vesclink"
	configFile = "config.yaml"

	// ConfigEnvVar names a config file to use instead of the platform default.
	ConfigEnvVar = "VESCLINK_CONFIG"
)

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
	globalRegistryErr  error

	// fileMutex serializes writers within this process.
	fileMutex sync.Mutex
)

const fileHeader = `# vesclink configuration file
# Devices are motor controllers reachable over a serial port or a
# WebSocket bridge. Preferences control polling and the observer server.
#
# Location: %s

`

// GetConfigDir returns the directory holding the config file. With
// VESCLINK_CONFIG set it is that file's directory. Otherwise:
//   - Linux and other Unix: $XDG_CONFIG_HOME/vesclink or $HOME/.config/vesclink
//   - macOS: $HOME/.config/vesclink
//   - Windows: %LOCALAPPDATA%\vesclink
func GetConfigDir() (string, error) {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return filepath.Dir(p), nil
	}

	base, err := platformConfigBase()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

func platformConfigBase() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, "AppData", "Local"), nil
		}
		return "", errors.New("cannot determine config directory: LOCALAPPDATA and USERPROFILE are unset")
	}

	// macOS deliberately ignores XDG_CONFIG_HOME and uses ~/.config as well.
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" && runtime.GOOS != "darwin" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config"), nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadRegistry returns the process-wide registry, reading it from disk on
// first use. A missing file yields an empty registry with default
// preferences.
func LoadRegistry() (*Registry, error) {
	globalRegistryOnce.Do(func() {
		globalRegistry, globalRegistryErr = loadRegistryFromDisk()
	})
	return globalRegistry, globalRegistryErr
}

// GetGlobalRegistry is an alias for LoadRegistry.
func GetGlobalRegistry() (*Registry, error) {
	return LoadRegistry()
}

func loadRegistryFromDisk() (*Registry, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	reg, err := loadRegistryFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(), nil
	}
	return reg, err
}

func loadRegistryFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if reg.Version != 1 {
		return nil, fmt.Errorf("config %s: unsupported version %d (expected 1)", path, reg.Version)
	}

	if reg.Devices == nil {
		reg.Devices = make(map[string]*Device)
	}
	if reg.Preferences == nil {
		reg.Preferences = defaultPreferences()
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry to the config path. The file is written to a
// temporary sibling and renamed into place, so readers never see a partial
// file.
func (r *Registry) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return r.saveToFile(path)
}

func (r *Registry) saveToFile(path string) error {
	body, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data := append([]byte(fmt.Sprintf(fileHeader, path)), body...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
