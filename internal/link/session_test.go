package link

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/vesclink/internal/metrics"
	"github.com/muurk/vesclink/internal/protocol"
	"github.com/muurk/vesclink/internal/telemetry"
)

// fakeController answers telemetry requests on one end of a net.Pipe.
type fakeController struct {
	conn     net.Conn
	realtime telemetry.Realtime
	stats    telemetry.Stats

	mu   sync.Mutex
	tags []byte
}

func newFakeController(t *testing.T) (*fakeController, net.Conn) {
	t.Helper()
	sessionEnd, deviceEnd := net.Pipe()
	f := &fakeController{conn: deviceEnd}
	t.Cleanup(func() { _ = deviceEnd.Close() })
	return f, sessionEnd
}

func (f *fakeController) serve() {
	r := protocol.NewReassembler()
	buf := make([]byte, 256)
	for {
		n, err := f.conn.Read(buf)
		if err != nil {
			return
		}
		for _, req := range r.Process(buf[:n]) {
			f.mu.Lock()
			f.tags = append(f.tags, req[0])
			f.mu.Unlock()

			var reply []byte
			switch req[0] {
			case telemetry.CommGetValuesSelective:
				reply = telemetry.BuildRealtimeResponse(telemetry.RealtimeRequestMask, f.realtime)
			case telemetry.CommGetStats:
				reply = telemetry.BuildStatsResponse(uint32(telemetry.StatsRequestMask), f.stats)
			default:
				continue
			}
			frame, err := protocol.EncodePacket(reply)
			if err != nil {
				return
			}
			if _, err := f.conn.Write(frame); err != nil {
				return
			}
		}
	}
}

func (f *fakeController) requestTags() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.tags...)
}

// updateLog collects published updates from the session goroutine.
type updateLog struct {
	mu      sync.Mutex
	updates []telemetry.Update
}

func (l *updateLog) publish(u telemetry.Update) {
	l.mu.Lock()
	l.updates = append(l.updates, u)
	l.mu.Unlock()
}

func (l *updateLog) all() []telemetry.Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]telemetry.Update(nil), l.updates...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func runSession(t *testing.T, s *Session) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestSessionPollsAndDecodes(t *testing.T) {
	dev, conn := newFakeController(t)
	dev.realtime = telemetry.Realtime{BatteryVoltage: 50.4, InputCurrent: 12.5, MosTemperature: 36.5, WattHours: 1.25, RPM: 4200}
	dev.stats = telemetry.Stats{RunTime: 600, MaxPower: 1500, AvgPower: 320, MaxMosTemperature: 55, AvgMosTemperature: 41, MaxCurrent: 30, AvgCurrent: 6.5}
	go dev.serve()

	log := &updateLog{}
	s := NewSession(conn, Config{Name: "pipe", PollInterval: 10 * time.Millisecond, StatsEvery: 2, Publish: log.publish})
	cancel, errc := runSession(t, s)

	waitFor(t, "realtime and stats snapshots", func() bool {
		rt, st := s.Snapshot()
		return rt.RPM == 4200 && st.MaxPower == 1500
	})

	rt, st := s.Snapshot()
	if !rt.Connected {
		t.Error("realtime snapshot not marked connected")
	}
	if rt.BatteryVoltage != 50.4 || rt.MosTemperature != 36.5 || rt.WattHours != 1.25 {
		t.Errorf("realtime = %+v", rt)
	}
	if st.RunTime != 600 || st.AvgCurrent != 6.5 {
		t.Errorf("stats = %+v", st)
	}
	if rx := s.ReassemblerStats(); rx.Decoded < 2 || rx.Discarded != 0 {
		t.Errorf("reassembler stats = %+v", rx)
	}

	cancel()
	if err := waitRun(t, errc); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	updates := log.all()
	if len(updates) < 3 {
		t.Fatalf("got %d updates, want at least 3", len(updates))
	}
	first, last := updates[0], updates[len(updates)-1]
	if first.Kind != telemetry.KindConnection || !first.Realtime.Connected {
		t.Errorf("first update = %+v, want connected", first)
	}
	if last.Kind != telemetry.KindConnection || last.Realtime.Connected {
		t.Errorf("last update = %+v, want disconnected", last)
	}
	if rt, _ := s.Snapshot(); rt.Connected {
		t.Error("snapshot still connected after Run returned")
	}
}

func TestSessionPollSchedule(t *testing.T) {
	dev, conn := newFakeController(t)
	go dev.serve()

	s := NewSession(conn, Config{PollInterval: 5 * time.Millisecond, StatsEvery: 3})
	cancel, errc := runSession(t, s)

	waitFor(t, "eight requests", func() bool { return len(dev.requestTags()) >= 8 })
	cancel()
	waitRun(t, errc)

	const rt, st = telemetry.CommGetValuesSelective, telemetry.CommGetStats
	want := []byte{rt, rt, rt, st, rt, rt, rt, st}
	if got := dev.requestTags()[:8]; !bytes.Equal(got, want) {
		t.Errorf("request tags = %v, want %v", got, want)
	}
}

func TestSessionFirstPollIsImmediate(t *testing.T) {
	dev, conn := newFakeController(t)
	go dev.serve()

	s := NewSession(conn, Config{PollInterval: time.Hour})
	cancel, errc := runSession(t, s)

	waitFor(t, "initial realtime request", func() bool { return len(dev.requestTags()) == 1 })
	cancel()
	waitRun(t, errc)
}

func TestSessionTransportClosed(t *testing.T) {
	dev, conn := newFakeController(t)
	go dev.serve()

	log := &updateLog{}
	s := NewSession(conn, Config{PollInterval: time.Hour, Publish: log.publish})
	_, errc := runSession(t, s)

	waitFor(t, "initial request", func() bool { return len(dev.requestTags()) == 1 })
	_ = dev.conn.Close()

	if err := waitRun(t, errc); !errors.Is(err, ErrLinkClosed) {
		t.Errorf("Run() error = %v, want ErrLinkClosed", err)
	}
	updates := log.all()
	if last := updates[len(updates)-1]; last.Kind != telemetry.KindConnection || last.Realtime.Connected {
		t.Errorf("last update = %+v, want disconnected", last)
	}
}

// recordingTransport captures writes and never delivers data.
type recordingTransport struct {
	mu      sync.Mutex
	written bytes.Buffer
	failed  bool
	closed  chan struct{}
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{closed: make(chan struct{})}
}

func (r *recordingTransport) Read([]byte) (int, error) {
	<-r.closed
	return 0, net.ErrClosed
}

func (r *recordingTransport) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return 0, errors.New("broken pipe")
	}
	return r.written.Write(b)
}

func (r *recordingTransport) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return nil
}

func TestSessionSend(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		broken  bool
		wantErr error
		want    []byte
	}{
		{
			name:    "small payload",
			payload: []byte{0x01, 0x02, 0x03},
			want:    []byte{0x02, 0x03, 0x01, 0x02, 0x03, 0x61, 0x31, 0x03},
		},
		{
			name:    "oversize writes nothing",
			payload: make([]byte, protocol.MaxPayloadLen+1),
			wantErr: protocol.ErrOversizedPayload,
		},
		{
			name:    "empty writes nothing",
			payload: nil,
			wantErr: protocol.ErrOversizedPayload,
		},
		{
			name:    "write failure",
			payload: []byte{0x32},
			broken:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newRecordingTransport()
			tr.failed = tt.broken
			s := NewSession(tr, Config{})

			err := s.Send(tt.payload)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
				}
			case tt.broken:
				if err == nil {
					t.Error("Send() error = nil, want write error")
				}
			case err != nil:
				t.Errorf("Send() error = %v", err)
			}

			if got := tr.written.Bytes(); !bytes.Equal(got, tt.want) {
				t.Errorf("written = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestSessionWriteErrorEndsRun(t *testing.T) {
	tr := newRecordingTransport()
	tr.failed = true
	s := NewSession(tr, Config{PollInterval: time.Hour})

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want write error")
	}
	select {
	case <-tr.closed:
	default:
		t.Error("transport not closed after Run")
	}
}

func TestSessionIgnoresUnknownPackets(t *testing.T) {
	sessionEnd, deviceEnd := net.Pipe()
	defer deviceEnd.Close()

	s := NewSession(sessionEnd, Config{PollInterval: time.Hour})
	cancel, errc := runSession(t, s)

	// Swallow the initial request, then send an unknown packet and a
	// realtime response split across writes.
	go func() {
		buf := make([]byte, 64)
		_, _ = deviceEnd.Read(buf)

		unknown, _ := protocol.EncodePacket([]byte{0x00, 0x06, 0x00})
		rt, _ := protocol.EncodePacket(telemetry.BuildRealtimeResponse(1<<7, telemetry.Realtime{RPM: 777}))
		stream := append(unknown, rt...)
		for i := 0; i < len(stream); i += 3 {
			end := i + 3
			if end > len(stream) {
				end = len(stream)
			}
			if _, err := deviceEnd.Write(stream[i:end]); err != nil {
				return
			}
		}
	}()

	waitFor(t, "rpm update", func() bool {
		rt, _ := s.Snapshot()
		return rt.RPM == 777
	})
	if rx := s.ReassemblerStats(); rx.Decoded != 2 {
		t.Errorf("decoded = %d, want 2", rx.Decoded)
	}

	cancel()
	waitRun(t, errc)
}

func TestSessionsShareMetricsAcrossReconnect(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}

	// Each session decodes exactly one realtime reply, so the second
	// session's totals equal the first one's final totals.
	for i := 0; i < 2; i++ {
		dev, conn := newFakeController(t)
		go dev.serve()

		s := NewSession(conn, Config{PollInterval: time.Hour, Metrics: collector})
		cancel, errc := runSession(t, s)
		waitFor(t, "one decoded packet", func() bool { return s.ReassemblerStats().Decoded == 1 })
		cancel()
		waitRun(t, errc)
	}

	if got := counterValue(t, reg, "vesclink_link_packets_decoded_total"); got != 2 {
		t.Errorf("packets_decoded_total = %v, want 2", got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}
