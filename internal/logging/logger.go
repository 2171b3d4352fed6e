package logging

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// Environment variables read by Initialize. An empty level keeps logging
// silent. The format is "console" (default) or "json".
const (
	LogLevelEnvVar  = "VESCLINK_LOG_LEVEL"
	LogFormatEnvVar = "VESCLINK_LOG_FORMAT"
)

// maxDumpBytes caps hex and ASCII dumps in log lines.
const maxDumpBytes = 256

// Initialize replaces the global logger. An empty level falls back to
// VESCLINK_LOG_LEVEL, and when that is empty too the logger discards
// everything. Unknown level names log at info.
//
// Output goes to stdout unless outputs names other zap sinks (file paths,
// "stderr"). The dashboard uses this to keep log lines off the terminal.
func Initialize(level string, outputs ...string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, _ := ParseLevel(level)
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	l, err := buildConfig(zapLevel, os.Getenv(LogFormatEnvVar), outputs).Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

func buildConfig(level zapcore.Level, format string, outputs []string) zap.Config {
	if strings.EqualFold(format, "json") {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = outputs
		cfg.Sampling = nil
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	if len(outputs) == 1 && (outputs[0] == "stdout" || outputs[0] == "stderr") {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger, a no-op one before Initialize.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs at info level on the global logger.
func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }

// Debug logs at debug level on the global logger.
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }

// Warn logs at warn level on the global logger.
func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }

// Error logs at error level on the global logger.
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// LogConnection records a link or observer connection event such as
// "serial_opened" or "observer_disconnected".
func LogConnection(endpoint, event string) {
	Info("Connection event",
		zap.String("remote_addr", endpoint),
		zap.String("event", event),
	)
}

// LogPacket logs a framed packet payload travelling in direction ("rx"/"tx").
// Nothing is formatted unless debug is enabled.
func LogPacket(direction string, payload []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	fields := []zap.Field{
		zap.String("direction", direction),
		zap.Int("length", len(payload)),
		zap.String("hex", hexDump(payload)),
	}
	if len(payload) > 0 {
		fields = append(fields, zap.Uint8("tag", payload[0]))
	}
	Debug("Packet", fields...)
}

// LogHTTPRequest logs a completed HTTP request
func LogHTTPRequest(r *http.Request, statusCode int, size int, elapsed time.Duration) {
	Info("HTTP request",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status_code", statusCode),
		zap.Int("size", size),
		zap.Duration("elapsed", elapsed),
	)
}

// LogWebSocketMessage logs one WebSocket message at debug. Binary frames are
// hex dumped, text frames logged verbatim.
func LogWebSocketMessage(endpoint, direction string, messageType int, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	fields := []zap.Field{
		zap.String("remote_addr", endpoint),
		zap.String("direction", direction),
		zap.String("message_type", wsMessageTypeName(messageType)),
		zap.Int("length", len(data)),
	}
	switch messageType {
	case websocket.BinaryMessage:
		fields = append(fields, zap.String("hex_dump", hexDump(data)))
	case websocket.TextMessage:
		fields = append(fields, zap.String("content", string(data)))
	}
	Debug("WebSocket message", fields...)
}

// LogRawBytes dumps data as hex and printable ASCII at debug.
func LogRawBytes(label string, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

var wsMessageTypeNames = map[int]string{
	websocket.TextMessage:   "text",
	websocket.BinaryMessage: "binary",
	websocket.CloseMessage:  "close",
	websocket.PingMessage:   "ping",
	websocket.PongMessage:   "pong",
}

func wsMessageTypeName(msgType int) string {
	if name, ok := wsMessageTypeNames[msgType]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", msgType)
}

func truncate(data []byte) ([]byte, bool) {
	if len(data) > maxDumpBytes {
		return data[:maxDumpBytes], true
	}
	return data, false
}

func hexDump(data []byte) string {
	head, cut := truncate(data)
	s := hex.EncodeToString(head)
	if cut {
		s += "..."
	}
	return s
}

func asciiDump(data []byte) string {
	head, _ := truncate(data)
	out := make([]byte, len(head))
	for i, c := range head {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		out[i] = c
	}
	return string(out)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
