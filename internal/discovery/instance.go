package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Instance is a vesclink observer server found on the network
type Instance struct {
	// Name is the mDNS instance name (e.g., "vesclink board")
	Name string

	// Hostname is the mDNS hostname (e.g., "pi.local.")
	Hostname string

	// IP is the preferred address (IPv4 when available)
	IP string

	// Port is the observer HTTP port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "link=board", "version=1.2.0", "path=/api"
	Metadata map[string]string

	// DiscoveredAt is when the instance was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the instance
func (i *Instance) String() string {
	return fmt.Sprintf("%s (%s) at %s", i.Name, i.Hostname, i.hostPort())
}

// BaseURL returns the HTTP base URL of the observer server
func (i *Instance) BaseURL() string {
	return "http://" + i.hostPort()
}

// WebSocketURL returns the URL of the update stream
func (i *Instance) WebSocketURL() string {
	return "ws://" + i.hostPort() + "/ws"
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}

func (i *Instance) hostPort() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}
