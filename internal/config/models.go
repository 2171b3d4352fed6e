package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Transport names accepted in Device.Transport.
const (
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Defaults applied when a preference is missing or zero.
const (
	DefaultBaud         = 115200
	DefaultPollInterval = 2.0 // seconds
	DefaultStatsEvery   = 5
	DefaultListenAddr   = ":8470"
)

// ErrInvalidDevice is returned by Device.Validate.
var ErrInvalidDevice = errors.New("config: invalid device")

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device describes how to reach one motor controller.
type Device struct {
	Nickname  string    `yaml:"nickname,omitempty"`  // User-friendly name
	Transport string    `yaml:"transport"`           // "serial" or "websocket"
	Port      string    `yaml:"port,omitempty"`      // Serial device path
	Baud      int       `yaml:"baud,omitempty"`      // Serial baud rate
	URL       string    `yaml:"url,omitempty"`       // WebSocket bridge URL
	LastSeen  time.Time `yaml:"last_seen,omitempty"` // Last successful connection
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	PollInterval float64 `yaml:"poll_interval"`       // Seconds between realtime requests
	StatsEvery   int     `yaml:"stats_every"`         // Stats request every N polls
	ListenAddr   string  `yaml:"listen_addr"`         // Observer server address
	LogLevel     string  `yaml:"log_level,omitempty"` // Overridden by VESCLINK_LOG_LEVEL
	Advertise    bool    `yaml:"advertise"`           // Announce the observer server over mDNS
}

func defaultPreferences() *Preferences {
	return &Preferences{
		PollInterval: DefaultPollInterval,
		StatsEvery:   DefaultStatsEvery,
		ListenAddr:   DefaultListenAddr,
		Advertise:    true,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves a device by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new serial entry with default values.
func (r *Registry) EnsureDevice(name string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[name]; exists {
		return device
	}

	device := &Device{
		Transport: TransportSerial,
		Baud:      DefaultBaud,
	}
	r.Devices[name] = device
	return device
}

// RemoveDevice deletes a device entry. It reports whether the entry existed.
func (r *Registry) RemoveDevice(name string) bool {
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	return true
}

// DeviceNames returns the registered device names in sorted order.
func (r *Registry) DeviceNames() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateLastSeen stamps the device's last successful connection.
func (r *Registry) UpdateLastSeen(name string, at time.Time) {
	r.EnsureDevice(name).LastSeen = at
}

// ResolveDevice turns a command-line argument into a device. A registered
// name wins; otherwise ws:// and wss:// URLs become WebSocket devices and
// anything else is taken as a serial port path.
func (r *Registry) ResolveDevice(arg string) (*Device, error) {
	if d := r.GetDevice(arg); d != nil {
		return d, d.Validate()
	}

	var d *Device
	if strings.HasPrefix(arg, "ws://") || strings.HasPrefix(arg, "wss://") {
		d = &Device{Transport: TransportWebSocket, URL: arg}
	} else {
		d = &Device{Transport: TransportSerial, Port: arg, Baud: DefaultBaud}
	}
	return d, d.Validate()
}

// Validate checks that the device can be opened.
func (d *Device) Validate() error {
	switch d.Transport {
	case TransportSerial:
		if d.Port == "" {
			return fmt.Errorf("%w: serial device needs a port", ErrInvalidDevice)
		}
		if d.Baud < 0 {
			return fmt.Errorf("%w: baud rate %d", ErrInvalidDevice, d.Baud)
		}
	case TransportWebSocket:
		u, err := url.Parse(d.URL)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDevice, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("%w: websocket URL must use ws:// or wss://, got %q", ErrInvalidDevice, d.URL)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidDevice, d.Transport)
	}
	return nil
}

// Validate checks every device entry and the preferences.
func (r *Registry) Validate() error {
	for _, name := range r.DeviceNames() {
		d := r.Devices[name]
		if d == nil {
			return fmt.Errorf("device %q: %w: empty entry", name, ErrInvalidDevice)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("device %q: %w", name, err)
		}
	}

	if p := r.Preferences; p != nil {
		if p.PollInterval < 0 {
			return fmt.Errorf("poll_interval must not be negative, got %v", p.PollInterval)
		}
		if p.StatsEvery < 0 {
			return fmt.Errorf("stats_every must not be negative, got %d", p.StatsEvery)
		}
	}
	return nil
}

// BaudRate returns the configured baud rate or the default.
func (d *Device) BaudRate() int {
	if d.Baud <= 0 {
		return DefaultBaud
	}
	return d.Baud
}

// Describe returns a short human-readable endpoint description.
func (d *Device) Describe() string {
	if d.Transport == TransportWebSocket {
		return d.URL
	}
	return fmt.Sprintf("%s @ %d baud", d.Port, d.BaudRate())
}

// PollDuration returns the realtime poll interval.
func (p *Preferences) PollDuration() time.Duration {
	if p == nil || p.PollInterval <= 0 {
		return time.Duration(DefaultPollInterval * float64(time.Second))
	}
	return time.Duration(p.PollInterval * float64(time.Second))
}

// StatsPeriod returns how many polls pass between stats requests.
func (p *Preferences) StatsPeriod() int {
	if p == nil || p.StatsEvery <= 0 {
		return DefaultStatsEvery
	}
	return p.StatsEvery
}

// Listen returns the observer server address.
func (p *Preferences) Listen() string {
	if p == nil || p.ListenAddr == "" {
		return DefaultListenAddr
	}
	return p.ListenAddr
}
