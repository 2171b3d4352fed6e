package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/vesclink/internal/logging"
)

const (
	// ServiceType is the mDNS service type announced by observer servers
	ServiceType = "_vesclink._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 5 * time.Second
)

// Advertisement is a running mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
}

// Shutdown withdraws the registration.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Advertise announces an observer server listening on port. meta is
// published as key=value TXT records.
func Advertise(instance string, port int, meta map[string]string) (*Advertisement, error) {
	txt := make([]string, 0, len(meta))
	for k, v := range meta {
		txt = append(txt, k+"="+v)
	}

	srv, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising observer server",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertisement{server: srv}, nil
}

// Scanner handles mDNS discovery of observer servers
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForServers browses for observer servers until the timeout or ctx
// ends, and returns every instance found.
func (s *Scanner) ScanForServers(ctx context.Context) ([]*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []*Instance, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	// The resolver closes entries when ctx ends.
	go func() {
		found := make([]*Instance, 0)
		seen := make(map[string]bool)
		for entry := range entries {
			inst := s.parseServiceEntry(entry)
			if inst == nil || seen[inst.Name] {
				continue
			}
			seen[inst.Name] = true
			logging.Debug("Discovered observer server", zap.String("instance", inst.String()))
			found = append(found, inst)
		}
		collected <- found
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	return <-collected, nil
}

// WaitForServer waits for the instance with the given name.
func (s *Scanner) WaitForServer(ctx context.Context, name string) (*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Instance, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			inst := s.parseServiceEntry(entry)
			if inst != nil && inst.Name == name {
				select {
				case found <- inst:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case inst := <-found:
		return inst, nil
	case <-ctx.Done():
		select {
		case inst := <-found:
			return inst, nil
		default:
		}
		return nil, fmt.Errorf("server %q not found within %v", name, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to an Instance.
// Returns nil when the entry has no name, address or port.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Instance {
	if entry == nil || entry.Instance == "" || entry.Port == 0 {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Instance{
		Name:         unescapeInstance(entry.Instance),
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// unescapeInstance undoes DNS-SD escaping of spaces and dots.
func unescapeInstance(name string) string {
	return strings.NewReplacer(`\ `, " ", `\.`, ".", `\\`, `\`).Replace(name)
}
