package link

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// bridgeServer echoes every message back, split into two messages so
// the client sees a chunked stream.
func bridgeServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			half := len(data) / 2
			for _, part := range [][]byte{data[:half], data[half:]} {
				if err := conn.WriteMessage(websocket.BinaryMessage, part); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	url := bridgeServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := DialWebSocket(ctx, url)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer tr.Close()

	frame := []byte{0x02, 0x05, 0x32, 0x00, 0x00, 0x09, 0x89, 0xF2, 0x54, 0x03}
	if n, err := tr.Write(frame); err != nil || n != len(frame) {
		t.Fatalf("Write() = %d, %v", n, err)
	}

	// Read with a small buffer so a single message spans several reads.
	var got []byte
	buf := make([]byte, 3)
	for len(got) < len(frame) {
		n, err := tr.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("read % x, want % x", got, frame)
	}
}

func TestWebSocketTransportCloseIsIdempotent(t *testing.T) {
	url := bridgeServer(t)

	tr, err := DialWebSocket(context.Background(), url)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := tr.Read(make([]byte, 8)); err == nil {
		t.Error("Read() after Close should fail")
	}
}

func TestDialWebSocketFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := DialWebSocket(ctx, "ws://127.0.0.1:1/nothing"); err == nil {
		t.Error("DialWebSocket() to a closed port should fail")
	}
}

func TestOpenSerialErrors(t *testing.T) {
	if _, err := OpenSerial(nil); err == nil {
		t.Error("OpenSerial(nil) should fail")
	}
	if _, err := OpenSerial(DefaultSerialConfig("/dev/does-not-exist-vesclink")); err == nil {
		t.Error("OpenSerial() on a missing device should fail")
	}
}

func TestDefaultSerialConfig(t *testing.T) {
	cfg := DefaultSerialConfig("/dev/ttyACM0")
	if cfg.Baud != 115200 || cfg.ReadTimeout != 100*time.Millisecond || cfg.Device != "/dev/ttyACM0" {
		t.Errorf("DefaultSerialConfig() = %+v", cfg)
	}
}
