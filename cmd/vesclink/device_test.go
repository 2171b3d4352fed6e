package main

import (
	"strings"
	"testing"
	"time"

	"github.com/muurk/vesclink/internal/config"
	"github.com/muurk/vesclink/internal/server"
	"github.com/muurk/vesclink/internal/telemetry"
)

func TestResolveDeviceArgs(t *testing.T) {
	single := config.NewRegistry()
	single.Devices = map[string]*config.Device{
		"board": {Transport: config.TransportSerial, Port: "/dev/ttyACM0"},
	}

	several := config.NewRegistry()
	several.Devices = map[string]*config.Device{
		"board":  {Transport: config.TransportSerial, Port: "/dev/ttyACM0"},
		"bridge": {Transport: config.TransportWebSocket, URL: "ws://10.0.0.7/vesc"},
	}

	tests := []struct {
		name      string
		reg       *config.Registry
		args      []string
		wantName  string
		wantDesc  string
		wantErrIn string
	}{
		{name: "only device used", reg: single, wantName: "board", wantDesc: "/dev/ttyACM0 @ 115200 baud"},
		{name: "named device", reg: several, args: []string{"bridge"}, wantName: "bridge", wantDesc: "ws://10.0.0.7/vesc"},
		{name: "raw port", reg: several, args: []string{"/dev/ttyUSB1"}, wantName: "/dev/ttyUSB1", wantDesc: "/dev/ttyUSB1 @ 115200 baud"},
		{name: "none registered", reg: config.NewRegistry(), wantErrIn: "none registered"},
		{name: "ambiguous", reg: several, wantErrIn: "several devices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, dev, err := resolveDevice(tt.reg, tt.args)
			if tt.wantErrIn != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErrIn) {
					t.Fatalf("resolveDevice() error = %v, want it to mention %q", err, tt.wantErrIn)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveDevice() error = %v", err)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if got := dev.Describe(); got != tt.wantDesc {
				t.Errorf("Describe() = %q, want %q", got, tt.wantDesc)
			}
		})
	}
}

func TestDeviceRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := config.NewRegistry()
	reg.Devices = map[string]*config.Device{
		"b": {Transport: config.TransportWebSocket, URL: "ws://x/vesc", LastSeen: now.Add(-90 * time.Second)},
		"a": {Transport: config.TransportSerial, Port: "/dev/ttyACM0", Baud: 230400, Nickname: "Bench"},
	}

	rows := deviceRows(reg, now)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	want := [][]string{
		{"a", "Bench", "serial", "/dev/ttyACM0 @ 230400 baud", "never"},
		{"b", "", "websocket", "ws://x/vesc", "1m30s ago"},
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestLiveSessionWithoutSession(t *testing.T) {
	var live liveSession
	rt, st := live.Snapshot()
	if rt.Connected || !st.LastUpdate.IsZero() {
		t.Errorf("Snapshot() = %+v, %+v, want zero values", rt, st)
	}
	if got := live.ReassemblerStats(); got.Decoded != 0 {
		t.Errorf("ReassemblerStats() = %+v, want zero", got)
	}
}

func TestSessionConfigOverrides(t *testing.T) {
	prefs := config.NewRegistry().Preferences

	pollInterval, statsEvery = 0, 0
	cfg := sessionConfig(prefs, "board")
	if cfg.PollInterval != 2*time.Second || cfg.StatsEvery != 5 {
		t.Errorf("defaults = %v / %d, want 2s / 5", cfg.PollInterval, cfg.StatsEvery)
	}

	pollInterval, statsEvery = 500*time.Millisecond, 3
	defer func() { pollInterval, statsEvery = 0, 0 }()
	cfg = sessionConfig(prefs, "board")
	if cfg.PollInterval != 500*time.Millisecond || cfg.StatsEvery != 3 || cfg.Name != "board" {
		t.Errorf("overrides = %+v", cfg)
	}
}

func TestStatusDetails(t *testing.T) {
	age := 1.5
	s := &server.Status{Link: "board", Connected: true, Observers: 2, RealtimeAge: &age}
	rt := &telemetry.Realtime{BatteryVoltage: 49.9, LastUpdate: time.Now()}

	got := map[string]string{}
	for _, d := range statusDetails(s, rt) {
		got[d.Key] = d.Value
	}

	want := map[string]string{
		"Link":         "board",
		"Connected":    "true",
		"Observers":    "2",
		"Realtime age": "1.5s",
		"Battery":      "49.9 V",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if _, ok := got["Stats age"]; ok {
		t.Error("Stats age shown without stats")
	}
}
