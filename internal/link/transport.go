package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tarm/serial"
	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
)

// Transport carries raw bytes to and from the controller. Reads return
// whatever chunk the link delivered; writes carry one framed packet each.
// A Read that returns (0, nil) means no data yet.
type Transport interface {
	io.ReadWriteCloser
}

// SerialConfig holds serial port configuration
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC adapters ignore it)
	Baud int

	// Read timeout (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns the usual settings for a controller UART.
func DefaultSerialConfig(device string) *SerialConfig {
	return &SerialConfig{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// serialPort wraps the tarm/serial implementation
type serialPort struct {
	port *serial.Port
	name string
}

// OpenSerial opens a serial port to the controller.
func OpenSerial(cfg *SerialConfig) (Transport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	logging.LogConnection(cfg.Device, "serial_opened")
	return &serialPort{port: port, name: cfg.Device}, nil
}

// Read reads data from the serial port. A read timeout surfaces from the
// port as io.EOF with no data; it is reported as an empty read instead.
func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// Write writes data to the serial port
func (p *serialPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *serialPort) Close() error {
	logging.LogConnection(p.name, "serial_closed")
	return p.port.Close()
}

const wsWriteWait = 10 * time.Second

// wsTransport adapts a WebSocket bridge (typically a BLE or UART gateway)
// to a byte stream. Each inbound message is one chunk; each write is sent as
// one binary message.
type wsTransport struct {
	conn    *websocket.Conn
	url     string
	pending []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialWebSocket connects to a WebSocket bridge at url.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	logging.LogConnection(url, "websocket_connected")
	return newWSTransport(conn, url), nil
}

func newWSTransport(conn *websocket.Conn, url string) *wsTransport {
	return &wsTransport{conn: conn, url: url}
}

// Read returns bytes from the current message, fetching the next one when
// it is used up. Text messages are passed through as bytes.
func (t *wsTransport) Read(b []byte) (int, error) {
	for len(t.pending) == 0 {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		logging.LogWebSocketMessage(t.url, "received", msgType, data)
		t.pending = data
	}

	n := copy(b, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// Write sends b as one binary message.
func (t *wsTransport) Write(b []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return 0, err
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	logging.LogWebSocketMessage(t.url, "sent", websocket.BinaryMessage, b)
	return len(b), nil
}

// Close sends a close frame and closes the connection.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); werr != nil {
			logging.Debug("Close frame not sent", zap.String("url", t.url), zap.Error(werr))
		}
		t.writeMu.Unlock()

		err = t.conn.Close()
		logging.LogConnection(t.url, "websocket_closed")
	})
	return err
}
