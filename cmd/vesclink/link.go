package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/config"
	"github.com/muurk/vesclink/internal/link"
	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/protocol"
	"github.com/muurk/vesclink/internal/telemetry"
)

// Reconnect delays for serve.
const (
	minRetryDelay = 2 * time.Second
	maxRetryDelay = 30 * time.Second
)

// openTransport opens the transport a device describes.
func openTransport(ctx context.Context, dev *config.Device) (link.Transport, error) {
	switch dev.Transport {
	case config.TransportWebSocket:
		return link.DialWebSocket(ctx, dev.URL)
	default:
		cfg := link.DefaultSerialConfig(dev.Port)
		cfg.Baud = dev.BaudRate()
		return link.OpenSerial(cfg)
	}
}

// resolveDevice picks the device named by args, or the only registered
// device when args is empty.
func resolveDevice(reg *config.Registry, args []string) (string, *config.Device, error) {
	if len(args) > 0 {
		dev, err := reg.ResolveDevice(args[0])
		return args[0], dev, err
	}

	names := reg.DeviceNames()
	switch len(names) {
	case 0:
		return "", nil, errors.New("no device given and none registered; see 'vesclink device add'")
	case 1:
		dev, err := reg.ResolveDevice(names[0])
		return names[0], dev, err
	default:
		return "", nil, fmt.Errorf("several devices registered, pick one of: %v", names)
	}
}

// markSeen records a successful connection for registered devices.
func markSeen(reg *config.Registry, name string) {
	if reg.GetDevice(name) == nil {
		return
	}
	reg.UpdateLastSeen(name, time.Now())
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// liveSession exposes whichever session is currently connected, so the
// observer server keeps one snapshot source across reconnects.
type liveSession struct {
	current atomic.Pointer[link.Session]
}

func (l *liveSession) Snapshot() (telemetry.Realtime, telemetry.Stats) {
	if s := l.current.Load(); s != nil {
		return s.Snapshot()
	}
	return telemetry.Realtime{}, telemetry.Stats{}
}

func (l *liveSession) ReassemblerStats() protocol.ReassemblerStats {
	if s := l.current.Load(); s != nil {
		return s.ReassemblerStats()
	}
	return protocol.ReassemblerStats{}
}

// supervise keeps a session running against dev until ctx ends, reopening
// the transport with a doubling delay after each failure.
func supervise(ctx context.Context, dev *config.Device, cfg link.Config, live *liveSession, connected func()) error {
	delay := minRetryDelay

	for {
		t, err := openTransport(ctx, dev)
		if err == nil {
			logging.LogConnection(dev.Describe(), "connected")
			if connected != nil {
				connected()
			}
			delay = minRetryDelay

			s := link.NewSession(t, cfg)
			live.current.Store(s)
			err = s.Run(ctx)
		}

		if ctx.Err() != nil {
			return nil
		}
		logging.Warn("Link failed, retrying",
			zap.String("link", cfg.Name),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}
