package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/vesclink/internal/config"
	"github.com/muurk/vesclink/internal/ui"
	"github.com/muurk/vesclink/internal/urls"
)

func init() {
	deviceCmd.AddCommand(deviceAddCmd)
	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceRemoveCmd)
	rootCmd.AddCommand(deviceCmd)
}

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage registered devices",
	Long: `Register controllers by name so monitor and serve can refer to them.

The registry is stored in the vesclink config directory
($XDG_CONFIG_HOME/vesclink/config.yaml) unless VESCLINK_CONFIG names
another file.`,
}

// device add flags
var (
	addPort     string
	addBaud     int
	addURL      string
	addNickname string
)

var deviceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register or update a device",
	Example: `  # Serial adapter
  vesclink device add board --port /dev/ttyACM0

  # WebSocket bridge in front of a BLE gateway
  vesclink device add bridge --url ws://10.0.0.7:81/vesc --nickname "Garage bridge"`,
	Args: cobra.ExactArgs(1),
	RunE: runDeviceAdd,
}

func init() {
	deviceAddCmd.Flags().StringVar(&addPort, "port", "", "Serial device path")
	deviceAddCmd.Flags().IntVar(&addBaud, "baud", config.DefaultBaud, "Serial baud rate")
	deviceAddCmd.Flags().StringVar(&addURL, "url", "", "WebSocket bridge URL (ws:// or wss://)")
	deviceAddCmd.Flags().StringVar(&addNickname, "nickname", "", "Display name")
	deviceAddCmd.MarkFlagsMutuallyExclusive("port", "url")
	deviceAddCmd.MarkFlagsOneRequired("port", "url")
}

func runDeviceAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	p := ui.NewPrinter(cmd.OutOrStdout())

	candidate := config.Device{Nickname: addNickname}
	if addURL != "" {
		candidate.Transport = config.TransportWebSocket
		candidate.URL = addURL
	} else {
		candidate.Transport = config.TransportSerial
		candidate.Port = addPort
		candidate.Baud = addBaud
	}
	if err := candidate.Validate(); err != nil {
		p.PrintError("Device not saved", err, "Device options: "+urls.DeviceSetup)
		return err
	}

	reg, err := config.GetGlobalRegistry()
	if err != nil {
		return err
	}

	dev := reg.EnsureDevice(name)
	candidate.LastSeen = dev.LastSeen
	*dev = candidate

	if err := reg.Save(); err != nil {
		p.PrintError("Device not saved", err, "Check permissions on the config directory")
		return err
	}

	path, _ := config.GetConfigPath()
	p.PrintSuccess("Device saved",
		ui.Detail{Key: "Name", Value: name},
		ui.Detail{Key: "Transport", Value: dev.Transport},
		ui.Detail{Key: "Endpoint", Value: dev.Describe()},
		ui.Detail{Key: "Config", Value: path},
	)
	return nil
}

var deviceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered devices",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.GetGlobalRegistry()
		if err != nil {
			return err
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		names := reg.DeviceNames()
		if len(names) == 0 {
			p.PrintWarning("No devices registered",
				ui.Detail{Key: "Hint", Value: "vesclink device add <name> --port <path>"})
			return nil
		}

		p.PrintTable([]string{"NAME", "NICKNAME", "TRANSPORT", "ENDPOINT", "LAST SEEN"}, deviceRows(reg, time.Now()))
		return nil
	},
}

// deviceRows formats the registry for the list table.
func deviceRows(reg *config.Registry, now time.Time) [][]string {
	names := reg.DeviceNames()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		d := reg.Devices[name]
		seen := "never"
		if !d.LastSeen.IsZero() {
			seen = now.Sub(d.LastSeen).Truncate(time.Second).String() + " ago"
		}
		rows = append(rows, []string{name, d.Nickname, d.Transport, d.Describe(), seen})
	}
	return rows
}

var removeYes bool

var deviceRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a registered device",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		reg, err := config.GetGlobalRegistry()
		if err != nil {
			return err
		}

		dev := reg.GetDevice(name)
		if dev == nil {
			return fmt.Errorf("device %q is not registered", name)
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		if !removeYes && !p.Confirm(bufio.NewReader(os.Stdin), "Remove device "+name, dev.Describe()) {
			return nil
		}

		reg.RemoveDevice(name)
		if err := reg.Save(); err != nil {
			return err
		}
		p.PrintSuccess("Device removed", ui.Detail{Key: "Name", Value: name})
		return nil
	},
}

func init() {
	deviceRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Do not ask for confirmation")
}
