// Package config provides user configuration management for vesclink.
//
// This package manages a YAML configuration file that stores named motor
// controller endpoints (serial ports or WebSocket bridges) and application
// preferences such as the poll interval and the observer server address.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/vesclink/config.yaml or $HOME/.config/vesclink/config.yaml
//   - macOS: $HOME/.config/vesclink/config.yaml
//   - Windows: %LOCALAPPDATA%\vesclink\config.yaml
//
// VESCLINK_CONFIG overrides the location with an explicit file path.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	board := registry.EnsureDevice("board")
//	board.Port = "/dev/ttyACM0"
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
