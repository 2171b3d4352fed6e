package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/vesclink/internal/server"
	"github.com/muurk/vesclink/internal/telemetry"
)

type fixedSource struct {
	rt telemetry.Realtime
	st telemetry.Stats
}

func (f fixedSource) Snapshot() (telemetry.Realtime, telemetry.Stats) {
	return f.rt, f.st
}

func newObserver(t *testing.T) *httptest.Server {
	t.Helper()
	src := fixedSource{
		rt: telemetry.Realtime{BatteryVoltage: 50.1, Connected: true, LastUpdate: time.Now()},
		st: telemetry.Stats{MaxPower: 1200, LastUpdate: time.Now()},
	}
	srv := server.New(&server.Config{Name: "board"}, src)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func fastClient(url string) *Client {
	c := NewClientWithURL(url)
	c.SetRetry(2, time.Millisecond)
	c.MaxRetryDelay = 2 * time.Millisecond
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{host: "192.168.1.20", port: 8470, want: "http://192.168.1.20:8470"},
		{host: "fe80::1", port: 9000, want: "http://[fe80::1]:9000"},
	}

	for _, tt := range tests {
		c := NewClient(tt.host, tt.port)
		if c.BaseURL != tt.want {
			t.Errorf("BaseURL = %q, want %q", c.BaseURL, tt.want)
		}
		if c.HTTPClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", c.HTTPClient.Timeout, DefaultTimeout)
		}
	}
}

func TestClientAgainstObserver(t *testing.T) {
	ts := newObserver(t)
	c := fastClient(ts.URL)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	status, err := c.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.Link != "board" || !status.Connected {
		t.Errorf("status = %+v, want connected board", status)
	}
	if status.RealtimeAge == nil {
		t.Error("RealtimeAge missing")
	}

	rt, err := c.GetRealtime(ctx)
	if err != nil {
		t.Fatalf("GetRealtime() error = %v", err)
	}
	if rt.BatteryVoltage != 50.1 {
		t.Errorf("BatteryVoltage = %v, want 50.1", rt.BatteryVoltage)
	}

	st, err := c.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if st.MaxPower != 1200 {
		t.Errorf("MaxPower = %v, want 1200", st.MaxPower)
	}
}

func TestClientRetries(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantErr      bool
		wantAttempts int32
		wantHTTP     bool
	}{
		{name: "recovers after 5xx", statuses: []int{503, 200}, wantAttempts: 2},
		{name: "gives up after retries", statuses: []int{500, 500, 500, 500}, wantErr: true, wantAttempts: 3, wantHTTP: true},
		{name: "404 not retried", statuses: []int{404, 200}, wantErr: true, wantAttempts: 1, wantHTTP: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := attempts.Add(1)
				w.WriteHeader(tt.statuses[n-1])
			}))
			defer ts.Close()

			err := fastClient(ts.URL).Ping(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Ping() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if tt.wantHTTP && !IsHTTPError(err) {
				t.Errorf("IsHTTPError(%v) = false", err)
			}
		})
	}
}

func TestClientParseError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer ts.Close()

	_, err := fastClient(ts.URL).GetStatus(context.Background())
	var se *ServerError
	if !errors.As(err, &se) || se.Type != ErrTypeParse {
		t.Fatalf("GetStatus() error = %v, want parse error", err)
	}
	if IsRetryable(err) {
		t.Error("parse errors should not be retried")
	}
	if got := ShortMessage(err); got != "Failed to parse server response" {
		t.Errorf("ShortMessage() = %q", got)
	}
}

func TestClientConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	c := fastClient("http://" + addr)
	c.MaxRetries = 0

	err = c.Ping(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("Ping() error = %v, want network error", err)
	}
	if len(Troubleshooting(err)) == 0 {
		t.Error("no troubleshooting hints for a network error")
	}
}

func TestClientCancelledDuringBackoff(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClientWithURL(ts.URL)
	c.SetRetry(5, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Ping(ctx)
	if err == nil {
		t.Fatal("Ping() succeeded against a failing server")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff ignored context cancellation")
	}
}
