package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/config"
	"github.com/muurk/vesclink/internal/discovery"
	"github.com/muurk/vesclink/internal/link"
	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/metrics"
	"github.com/muurk/vesclink/internal/server"
	"github.com/muurk/vesclink/internal/telemetry"
	"github.com/muurk/vesclink/internal/tui"
	"github.com/muurk/vesclink/internal/ui"
	"github.com/muurk/vesclink/internal/urls"
	"github.com/muurk/vesclink/internal/version"
)

// Session flags shared by monitor and serve
var (
	pollInterval time.Duration
	statsEvery   int
)

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&pollInterval, "interval", 0, "Time between realtime requests (default from config, 2s)")
	cmd.Flags().IntVar(&statsEvery, "stats-every", 0, "Request ride statistics every N polls (default from config, 5)")
}

// sessionConfig merges flags over the registry preferences.
func sessionConfig(prefs *config.Preferences, name string) link.Config {
	cfg := link.Config{
		Name:         name,
		PollInterval: prefs.PollDuration(),
		StatsEvery:   prefs.StatsPeriod(),
	}
	if pollInterval > 0 {
		cfg.PollInterval = pollInterval
	}
	if statsEvery > 0 {
		cfg.StatsEvery = statsEvery
	}
	return cfg
}

// levelFor returns the log level to use: the flag, the environment, the
// registry preference, then fallback.
func levelFor(prefs *config.Preferences, fallback string) string {
	candidates := []string{logLevel, os.Getenv(logging.LogLevelEnvVar)}
	if prefs != nil {
		candidates = append(candidates, prefs.LogLevel)
	}
	for _, l := range candidates {
		if l != "" {
			return l
		}
	}
	return fallback
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
}

// monitorCmd shows live telemetry
var (
	plainOutput bool
	logFile     string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [device]",
	Short: "Show live telemetry from a controller",
	Long: `Connect to a controller and poll it for telemetry.

On a terminal the values are shown in a live dashboard. Otherwise, or with
--plain, every update is written as a structured log line.

The device is a registered name, a serial port path, or a ws:// bridge URL.
With no argument the only registered device is used.`,
	Example: `  # Serial adapter at the default 115200 baud
  vesclink monitor /dev/ttyACM0

  # Registered device, faster polling
  vesclink monitor board --interval 500ms

  # WebSocket bridge, log lines instead of the dashboard
  vesclink monitor ws://10.0.0.7:81/vesc --plain`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	addSessionFlags(monitorCmd)
	monitorCmd.Flags().BoolVar(&plainOutput, "plain", false, "Write log lines instead of the dashboard")
	monitorCmd.Flags().StringVar(&logFile, "log-file", "", "Dashboard log destination (default <config dir>/monitor.log)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	reg, err := config.GetGlobalRegistry()
	if err != nil {
		return err
	}
	name, dev, err := resolveDevice(reg, args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	useTUI := !plainOutput && ui.IsTerminal(os.Stdout)
	if useTUI {
		if err := initDashboardLogging(reg.Preferences); err != nil {
			return err
		}
	} else if err := logging.Initialize(levelFor(reg.Preferences, "info")); err != nil {
		return err
	}

	t, err := openTransport(ctx, dev)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", dev.Describe(), err)
	}
	logging.LogConnection(dev.Describe(), "connected")
	markSeen(reg, name)

	cfg := sessionConfig(reg.Preferences, name)

	if !useTUI {
		cfg.Publish = logUpdate
		err := link.NewSession(t, cfg).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	updates := make(chan telemetry.Update, 64)
	cfg.Publish = func(u telemetry.Update) {
		select {
		case updates <- u:
		default:
		}
	}
	session := link.NewSession(t, cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tui.NewProgram(ctx, tui.New(name, dev.Describe(), updates))

	sessionDone := make(chan error, 1)
	go func() {
		err := session.Run(ctx)
		if err != nil && ctx.Err() == nil {
			p.Send(tui.LinkErrorMsg{Err: err})
		}
		close(updates)
		sessionDone <- err
	}()

	uiErr := tui.Run(p)
	cancel()
	<-sessionDone
	return uiErr
}

// initDashboardLogging sends log lines to a file while the dashboard owns
// the terminal.
func initDashboardLogging(prefs *config.Preferences) error {
	level := levelFor(prefs, "")
	if level == "" {
		return logging.Initialize("")
	}

	path := logFile
	if path == "" {
		dir, err := config.GetConfigDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		path = filepath.Join(dir, "monitor.log")
	}
	return logging.Initialize(level, path)
}

func logUpdate(u telemetry.Update) {
	switch u.Kind {
	case telemetry.KindRealtime:
		r := u.Realtime
		logging.Info("Realtime",
			zap.Float64("battery_voltage", r.BatteryVoltage),
			zap.Float64("input_current", r.InputCurrent),
			zap.Float64("mos_temperature", r.MosTemperature),
			zap.Float64("watt_hours", r.WattHours),
			zap.Float64("rpm", r.RPM),
			zap.Strings("fields", u.Fields),
		)
	case telemetry.KindStats:
		s := u.Stats
		logging.Info("Stats",
			zap.Float64("run_time", s.RunTime),
			zap.Float64("avg_power", s.AvgPower),
			zap.Float64("max_power", s.MaxPower),
			zap.Float64("avg_current", s.AvgCurrent),
			zap.Float64("max_current", s.MaxCurrent),
			zap.Float64("avg_mos_temperature", s.AvgMosTemperature),
			zap.Float64("max_mos_temperature", s.MaxMosTemperature),
			zap.Strings("fields", u.Fields),
		)
	case telemetry.KindConnection:
		logging.Info("Connection", zap.Bool("connected", u.Realtime.Connected))
	}
}

// serveCmd runs the observer server
var (
	listenAddr   string
	advertise    bool
	instanceName string
)

var serveCmd = &cobra.Command{
	Use:   "serve [device]",
	Short: "Serve live telemetry over HTTP and WebSocket",
	Long: `Connect to a controller and serve its telemetry to observers.

Endpoints:
  GET /api/realtime   latest realtime snapshot (JSON)
  GET /api/stats      latest ride statistics (JSON)
  GET /api/status     link state and stream counters
  GET /ws             every update pushed as a JSON message
  GET /metrics        Prometheus metrics
  GET /healthz        liveness

The link is reopened with backoff when it fails. With --advertise the
server announces itself over mDNS so 'vesclink scan' can find it.

Endpoint reference: ` + urls.Serving,
	Example: `  # Serve a registered device on the default :8470
  vesclink serve board

  # Custom address, announced on the LAN
  vesclink serve /dev/ttyUSB0 --listen :9000 --advertise`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	addSessionFlags(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config, :8470)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the server over mDNS")
	serveCmd.Flags().StringVar(&instanceName, "instance", "", "mDNS instance name (default vesclink-<device>)")
}

func runServe(cmd *cobra.Command, args []string) error {
	reg, err := config.GetGlobalRegistry()
	if err != nil {
		return err
	}
	if err := logging.Initialize(levelFor(reg.Preferences, "info")); err != nil {
		return err
	}

	name, dev, err := resolveDevice(reg, args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(promReg)
	if err != nil {
		return err
	}

	hub := server.NewHub(server.DefaultQueueSize)
	live := &liveSession{}

	addr := listenAddr
	if addr == "" {
		addr = reg.Preferences.Listen()
	}
	srv := server.New(&server.Config{
		Addr:     addr,
		Gatherer: promReg,
		Metrics:  collector,
		Name:     name,
		Hub:      hub,
	}, live)

	bound, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("%w (see %s)", err, urls.Serving)
	}

	if advertise || reg.Preferences.Advertise {
		instance := instanceName
		if instance == "" {
			instance = "vesclink-" + name
		}
		ad, err := discovery.Advertise(instance, portOf(bound), map[string]string{
			"link":    name,
			"version": version.Version,
		})
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer ad.Shutdown()
		}
	}

	cfg := sessionConfig(reg.Preferences, name)
	cfg.Publish = hub.Broadcast
	cfg.Metrics = collector

	linkDone := make(chan error, 1)
	go func() {
		linkDone <- supervise(ctx, dev, cfg, live, func() { markSeen(reg, name) })
	}()

	err = srv.Start(ctx)
	stop()
	<-linkDone
	return err
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// scanCmd finds observer servers on the network
var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find vesclink servers on the local network",
	Long: `Browse mDNS for observer servers started with 'vesclink serve --advertise'.`,
	Example: `  vesclink scan
  vesclink scan --timeout 10s`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for announcements")
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Server scan", "vesclink scan", ui.Detail{Key: "Timeout", Value: scanTimeout.String()})

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	ctx, stop := signalContext()
	defer stop()

	instances, err := scanner.ScanForServers(ctx)
	if err != nil {
		p.PrintError("Scan failed", err, "Check that multicast is allowed on this network")
		return err
	}

	if len(instances) == 0 {
		p.PrintWarning("No servers found",
			ui.Detail{Key: "Hint", Value: "start one with 'vesclink serve --advertise'"})
		return nil
	}

	rows := make([][]string, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, []string{
			inst.Name,
			inst.GetMetadata("link"),
			inst.BaseURL(),
			inst.WebSocketURL(),
		})
	}
	p.PrintTable([]string{"INSTANCE", "LINK", "HTTP", "WEBSOCKET"}, rows)
	p.Println(fmt.Sprintf("Found %d server(s)", len(instances)))
	return nil
}
