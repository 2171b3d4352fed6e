package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/vesclink/internal/client"
	"github.com/muurk/vesclink/internal/discovery"
	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/server"
	"github.com/muurk/vesclink/internal/telemetry"
	"github.com/muurk/vesclink/internal/ui"
)

var statusTimeout time.Duration

var statusCmd = &cobra.Command{
	Use:   "status <url|instance>",
	Short: "Query a running observer server",
	Long: `Fetch link status and the latest telemetry from a vesclink server.

The target is a base URL or an mDNS instance name announced with
'vesclink serve --advertise'.`,
	Example: `  vesclink status http://10.0.0.2:8470
  vesclink status vesclink-board`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", discovery.DefaultScanTimeout, "Discovery and request timeout")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	target := args[0]

	ctx, stop := signalContext()
	defer stop()

	baseURL := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		scanner := discovery.NewScanner()
		scanner.Timeout = statusTimeout
		inst, err := scanner.WaitForServer(ctx, target)
		if err != nil {
			p.PrintError("Server not found", err, "Run 'vesclink scan' to list advertised servers")
			return err
		}
		baseURL = inst.BaseURL()
	}

	c := client.NewClientWithURL(baseURL)
	c.SetTimeout(statusTimeout)

	ctx, cancel := context.WithTimeout(ctx, 3*statusTimeout)
	defer cancel()

	status, err := c.GetStatus(ctx)
	if err == nil {
		var rt *telemetry.Realtime
		if rt, err = c.GetRealtime(ctx); err == nil {
			p.PrintSuccess("Server "+baseURL, statusDetails(status, rt)...)
			return nil
		}
	}

	p.PrintError(client.ShortMessage(err), err, client.Troubleshooting(err)...)
	return err
}

// statusDetails lists the fields shown by the status command.
func statusDetails(s *server.Status, rt *telemetry.Realtime) []ui.Detail {
	details := []ui.Detail{
		{Key: "Link", Value: s.Link},
		{Key: "Connected", Value: fmt.Sprintf("%t", s.Connected)},
		{Key: "Observers", Value: fmt.Sprintf("%d", s.Observers)},
	}
	if s.RealtimeAge != nil {
		details = append(details, ui.Detail{Key: "Realtime age", Value: fmt.Sprintf("%.1fs", *s.RealtimeAge)})
	}
	if s.StatsAge != nil {
		details = append(details, ui.Detail{Key: "Stats age", Value: fmt.Sprintf("%.1fs", *s.StatsAge)})
	}
	if s.Reassembler != nil {
		details = append(details, ui.Detail{
			Key: "Stream",
			Value: fmt.Sprintf("%d decoded, %d discarded, %d overruns",
				s.Reassembler.Decoded, s.Reassembler.Discarded, s.Reassembler.Overruns),
		})
	}
	if rt != nil && !rt.LastUpdate.IsZero() {
		details = append(details,
			ui.Detail{Key: "Battery", Value: fmt.Sprintf("%.1f V", rt.BatteryVoltage)},
			ui.Detail{Key: "Input current", Value: fmt.Sprintf("%.2f A", rt.InputCurrent)},
			ui.Detail{Key: "MOSFET temp", Value: fmt.Sprintf("%.1f °C", rt.MosTemperature)},
		)
	}
	return details
}
