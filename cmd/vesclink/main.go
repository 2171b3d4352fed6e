// Vesclink polls a VESC-compatible motor controller for live telemetry.
//
// It connects over a serial port or a WebSocket bridge, requests realtime
// values and ride statistics on a fixed interval, and either shows them in a
// terminal dashboard (monitor) or serves them to HTTP and WebSocket
// observers (serve).
//
// Usage:
//
//	vesclink [command] [flags]
//
// See 'vesclink --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/version"
)

func main() {
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "vesclink",
	Short: "VESC telemetry monitor and observer server",
	Long: `Poll a VESC-compatible motor controller for live telemetry.

Devices are reached over a serial port (USB or UART adapter) or through a
WebSocket bridge in front of a BLE gateway. Register frequently used devices
with 'vesclink device add' and refer to them by name.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error); defaults to $"+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vesclink %s\n", version.Full())
	},
}
