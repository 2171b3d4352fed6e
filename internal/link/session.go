package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
	"github.com/muurk/vesclink/internal/metrics"
	"github.com/muurk/vesclink/internal/protocol"
	"github.com/muurk/vesclink/internal/telemetry"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultStatsEvery   = 5

	readBufferSize = 512
	chunkQueueSize = 16
)

// ErrLinkClosed is returned by Run when the transport stops delivering data.
var ErrLinkClosed = errors.New("link: transport closed")

// Config controls a Session.
type Config struct {
	// Name identifies the link in log lines.
	Name string

	// PollInterval is the time between realtime requests.
	PollInterval time.Duration

	// StatsEvery sends a stats request on every Nth poll.
	StatsEvery int

	// Publish receives every telemetry update. Optional.
	Publish telemetry.Publisher

	// Metrics records link counters. Optional.
	Metrics *metrics.Collector
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StatsEvery <= 0 {
		c.StatsEvery = DefaultStatsEvery
	}
	if c.Name == "" {
		c.Name = "controller"
	}
	return c
}

// Session polls one controller over a Transport and keeps the decoded
// telemetry. All reassembly and decoding happens on the goroutine running
// Run; Snapshot and Send may be called from anywhere.
type Session struct {
	transport   Transport
	cfg         Config
	reassembler *protocol.Reassembler
	decoder     *telemetry.Decoder
	polls       int

	writeMu sync.Mutex

	mu       sync.RWMutex
	realtime telemetry.Realtime
	stats    telemetry.Stats
	rxStats  protocol.ReassemblerStats
}

// NewSession creates a session over t. The session owns t and closes it
// when Run returns.
func NewSession(t Transport, cfg Config) *Session {
	s := &Session{
		transport:   t,
		cfg:         cfg.withDefaults(),
		reassembler: protocol.NewReassembler(),
	}
	s.decoder = telemetry.NewDecoder(s.publish)
	return s
}

// Run connects the session and polls until ctx is done or the transport
// fails. It always publishes a final disconnected update and closes the
// transport before returning.
func (s *Session) Run(ctx context.Context) error {
	s.reassembler.Reset()
	s.cfg.Metrics.ResetReassembler()
	s.decoder.Reset()
	s.polls = 0

	logging.Info("Link session started",
		zap.String("link", s.cfg.Name),
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Int("stats_every", s.cfg.StatsEvery),
	)
	s.decoder.SetConnected(true)

	done := make(chan struct{})
	chunks := make(chan []byte, chunkQueueSize)
	var readErr error
	go s.readLoop(done, chunks, &readErr)

	defer func() {
		close(done)
		if err := s.transport.Close(); err != nil {
			logging.Debug("Transport close failed", zap.String("link", s.cfg.Name), zap.Error(err))
		}
		s.decoder.SetConnected(false)
		logging.Info("Link session ended", zap.String("link", s.cfg.Name))
	}()

	// First poll goes out immediately on connect.
	if err := s.poll(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				return fmt.Errorf("%w: %v", ErrLinkClosed, readErr)
			}
			s.handleChunk(chunk)

		case <-ticker.C:
			if err := s.poll(); err != nil {
				return err
			}
		}
	}
}

// readLoop forwards transport reads to chunks until a read fails. The error
// is stored in errp before chunks is closed.
func (s *Session) readLoop(done <-chan struct{}, chunks chan<- []byte, errp *error) {
	defer close(chunks)

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.transport.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-done:
				return
			}
		}
		if err != nil {
			*errp = err
			return
		}
	}
}

func (s *Session) handleChunk(chunk []byte) {
	logging.LogRawBytes("Link chunk received", chunk)

	for _, payload := range s.reassembler.Process(chunk) {
		logging.LogPacket("rx", payload)
		if _, ok := s.decoder.Decode(payload); !ok {
			s.cfg.Metrics.UnknownMessage()
		}
	}

	rx := s.reassembler.Stats()
	s.cfg.Metrics.ObserveReassembler(rx)

	s.mu.Lock()
	s.rxStats = rx
	s.mu.Unlock()
}

// poll sends the realtime request, plus the stats request on every
// StatsEvery-th poll.
func (s *Session) poll() error {
	s.polls++

	if err := s.Send(telemetry.BuildRealtimeRequest()); err != nil {
		return err
	}
	if s.polls%s.cfg.StatsEvery != 0 {
		return nil
	}
	return s.Send(telemetry.BuildStatsRequest())
}

// Send frames payload and writes it to the transport. An oversized payload
// is rejected before anything is written.
func (s *Session) Send(payload []byte) error {
	frame, err := protocol.EncodePacket(payload)
	if err != nil {
		s.cfg.Metrics.SendFailed()
		return err
	}

	s.writeMu.Lock()
	_, err = s.transport.Write(frame)
	s.writeMu.Unlock()
	if err != nil {
		s.cfg.Metrics.SendFailed()
		return fmt.Errorf("write to %s: %w", s.cfg.Name, err)
	}

	logging.LogPacket("tx", payload)
	s.cfg.Metrics.FrameSent()
	return nil
}

// publish stores the latest snapshots for Snapshot and forwards u.
func (s *Session) publish(u telemetry.Update) {
	s.mu.Lock()
	s.realtime = u.Realtime
	s.stats = u.Stats
	s.mu.Unlock()

	s.cfg.Metrics.ObserveUpdate(u)
	if s.cfg.Publish != nil {
		s.cfg.Publish(u)
	}
}

// Snapshot returns copies of the latest realtime and stats snapshots.
func (s *Session) Snapshot() (telemetry.Realtime, telemetry.Stats) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realtime, s.stats
}

// ReassemblerStats returns the stream counters as of the last chunk.
func (s *Session) ReassemblerStats() protocol.ReassemblerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rxStats
}
