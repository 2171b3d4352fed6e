// Package metrics exposes link and telemetry counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/vesclink/internal/protocol"
	"github.com/muurk/vesclink/internal/telemetry"
)

const namespace = "vesclink"

// Collector groups every vesclink metric. A nil *Collector is valid and
// records nothing, so callers never need to check whether metrics are on.
type Collector struct {
	packetsDecoded  prometheus.Counter
	bytesDiscarded  prometheus.Counter
	bufferOverruns  prometheus.Counter
	framesSent      prometheus.Counter
	sendErrors      prometheus.Counter
	updates         *prometheus.CounterVec
	unknownMessages prometheus.Counter
	connected       prometheus.Gauge
	values          *prometheus.GaugeVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec

	// last reassembler totals, to turn snapshots into counter deltas
	last protocol.ReassemblerStats
}

// New creates a Collector and registers it with reg. ObserveReassembler
// must be called from a single goroutine; the other methods are safe anywhere.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		packetsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "packets_decoded_total",
			Help:      "Packets that passed framing and CRC checks.",
		}),
		bytesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "bytes_discarded_total",
			Help:      "Bytes skipped while resynchronising on the stream.",
		}),
		bufferOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "buffer_overruns_total",
			Help:      "Times the reassembly window filled up and was dropped.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Framed requests written to the controller.",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "send_errors_total",
			Help:      "Requests that could not be framed or written.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "updates_total",
			Help:      "Snapshot updates by kind.",
		}, []string{"kind"}),
		unknownMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "unknown_messages_total",
			Help:      "Decoded packets with an unrecognized command tag.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "connected",
			Help:      "1 while a link session is running.",
		}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "value",
			Help:      "Latest telemetry value by field.",
		}, []string{"field"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Observer HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Observer HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	for _, col := range []prometheus.Collector{
		c.packetsDecoded, c.bytesDiscarded, c.bufferOverruns, c.framesSent,
		c.sendErrors, c.updates, c.unknownMessages, c.connected, c.values,
		c.httpRequests, c.httpDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ResetReassembler forgets the previous totals. Link sessions call it when
// they start with a fresh reassembler, so its first totals count in full.
func (c *Collector) ResetReassembler() {
	if c == nil {
		return
	}
	c.last = protocol.ReassemblerStats{}
}

// ObserveReassembler folds the latest totals of the current reassembler
// into the counters. Totals that went backwards without a ResetReassembler
// are taken as fresh.
func (c *Collector) ObserveReassembler(s protocol.ReassemblerStats) {
	if c == nil {
		return
	}
	c.packetsDecoded.Add(float64(delta(s.Decoded, c.last.Decoded)))
	c.bytesDiscarded.Add(float64(delta(s.Discarded, c.last.Discarded)))
	c.bufferOverruns.Add(float64(delta(s.Overruns, c.last.Overruns)))
	c.last = s
}

func delta(now, before uint64) uint64 {
	if now < before {
		return now
	}
	return now - before
}

// FrameSent counts one written request.
func (c *Collector) FrameSent() {
	if c == nil {
		return
	}
	c.framesSent.Inc()
}

// SendFailed counts one request that was not written.
func (c *Collector) SendFailed() {
	if c == nil {
		return
	}
	c.sendErrors.Inc()
}

// UnknownMessage counts one unrecognized packet.
func (c *Collector) UnknownMessage() {
	if c == nil {
		return
	}
	c.unknownMessages.Inc()
}

// ObserveUpdate counts u and mirrors its snapshot into the value gauges.
func (c *Collector) ObserveUpdate(u telemetry.Update) {
	if c == nil {
		return
	}
	c.updates.WithLabelValues(u.Kind.String()).Inc()

	switch u.Kind {
	case telemetry.KindConnection:
		if u.Realtime.Connected {
			c.connected.Set(1)
		} else {
			c.connected.Set(0)
		}
	case telemetry.KindRealtime:
		r := u.Realtime
		c.values.WithLabelValues("battery_voltage").Set(r.BatteryVoltage)
		c.values.WithLabelValues("input_current").Set(r.InputCurrent)
		c.values.WithLabelValues("mos_temperature").Set(r.MosTemperature)
		c.values.WithLabelValues("watt_hours").Set(r.WattHours)
		c.values.WithLabelValues("rpm").Set(r.RPM)
	case telemetry.KindStats:
		s := u.Stats
		c.values.WithLabelValues("run_time").Set(s.RunTime)
		c.values.WithLabelValues("max_power").Set(s.MaxPower)
		c.values.WithLabelValues("avg_power").Set(s.AvgPower)
		c.values.WithLabelValues("max_mos_temperature").Set(s.MaxMosTemperature)
		c.values.WithLabelValues("avg_mos_temperature").Set(s.AvgMosTemperature)
		c.values.WithLabelValues("max_current").Set(s.MaxCurrent)
		c.values.WithLabelValues("avg_current").Set(s.AvgCurrent)
	}
}

// ObserveHTTP records one observer HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	c.httpDuration.WithLabelValues(method, route, statusLabel).Observe(elapsed.Seconds())
}
