// Package discovery finds cameras on the local network via DNS-SD so they
// can be paired by name and address.
package discovery

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

const (
	// DefaultService is the DNS-SD service type cameras advertise.
	DefaultService = "_camlink._tcp"

	// DefaultDomain is the default mDNS domain.
	DefaultDomain = "local."

	// DefaultBrowseTimeout is the default timeout for browse operations.
	DefaultBrowseTimeout = 10 * time.Second

	// DefaultLookupTimeout is the default timeout for lookup operations.
	DefaultLookupTimeout = 5 * time.Second
)

// Camera is a camera discovered via DNS-SD.
type Camera struct {
	// Name is the DNS-SD instance name, used as the camera name.
	Name string

	// HostName is the target host name.
	HostName string

	// Port is the service port.
	Port int

	// IPs contains the resolved IP addresses, sorted by preference.
	IPs []net.IP

	// Text contains the TXT record key-value pairs.
	Text map[string]string
}

// PreferredIP returns the most preferred IP address (first in the sorted list).
// Returns nil if no addresses are available.
func (c *Camera) PreferredIP() net.IP {
	if len(c.IPs) > 0 {
		return c.IPs[0]
	}
	return nil
}

// Address returns the preferred IP as a string for pairing.
func (c *Camera) Address() (string, error) {
	ip := c.PreferredIP()
	if ip == nil {
		return "", ErrNoAddresses
	}
	return ip.String(), nil
}

// MDNSResolver is the interface for mDNS service resolution.
// This allows for dependency injection in tests.
//
// Implementations stream entries until ctx is done. They may close entries
// when finished; callers must not close it.
type MDNSResolver interface {
	// Browse browses for services of the given type.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	// Lookup looks up a specific service instance.
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Lookup(ctx, instance, service, domain, entries)
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// Service is the DNS-SD service type to browse.
	// If empty, DefaultService is used.
	Service string

	// Domain is the mDNS domain. If empty, DefaultDomain is used.
	Domain string

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers cameras via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.Service == "" {
		config.Service = DefaultService
	}
	if !validServiceType(config.Service) {
		return nil, ErrInvalidServiceType
	}
	if config.Domain == "" {
		config.Domain = DefaultDomain
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	r := &Resolver{
		config:   config,
		resolver: resolver,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// validServiceType checks the "_name._tcp" / "_name._udp" form.
func validServiceType(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 2 || len(parts[0]) < 2 || parts[0][0] != '_' {
		return false
	}
	return parts[1] == "_tcp" || parts[1] == "_udp"
}

// BrowseCameras discovers cameras on the network. The returned channel
// receives each camera once and is closed when ctx is done or the browse
// timeout expires.
func (r *Resolver) BrowseCameras(ctx context.Context) (<-chan Camera, error) {
	ctx, cancel := r.withTimeout(ctx, r.config.BrowseTimeout)

	results := make(chan Camera)
	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		if err := r.resolver.Browse(ctx, r.config.Service, r.config.Domain, entries); err != nil && r.log != nil {
			r.log.Warnf("browse %s: %v", r.config.Service, err)
		}
	}()

	go func() {
		defer cancel()
		defer close(results)

		seen := make(map[string]bool)
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil || seen[entry.Instance] {
					continue
				}
				seen[entry.Instance] = true

				select {
				case results <- entryToCamera(entry):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results, nil
}

// Collect browses until the timeout and returns every camera found.
func (r *Resolver) Collect(ctx context.Context) ([]Camera, error) {
	cameras, err := r.BrowseCameras(ctx)
	if err != nil {
		return nil, err
	}
	var out []Camera
	for c := range cameras {
		out = append(out, c)
	}
	return out, nil
}

// LookupCamera resolves a single camera by instance name.
func (r *Resolver) LookupCamera(ctx context.Context, name string) (*Camera, error) {
	if name == "" {
		return nil, ErrInvalidInstanceName
	}

	ctx, cancel := r.withTimeout(ctx, r.config.LookupTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		if err := r.resolver.Lookup(ctx, name, r.config.Service, r.config.Domain, entries); err != nil && r.log != nil {
			r.log.Warnf("lookup %s: %v", name, err)
		}
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrServiceNotFound
		}
		c := entryToCamera(entry)
		return &c, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// withTimeout applies d unless ctx already has a deadline.
func (r *Resolver) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// entryToCamera converts a zeroconf.ServiceEntry to a Camera.
func entryToCamera(entry *zeroconf.ServiceEntry) Camera {
	var all []net.IP
	all = append(all, entry.AddrIPv4...)
	all = append(all, entry.AddrIPv6...)

	return Camera{
		Name:     unescapeInstance(entry.Instance),
		HostName: entry.HostName,
		Port:     entry.Port,
		IPs:      SortIPsByPreference(all),
		Text:     ParseTXT(entry.Text),
	}
}

// unescapeInstance removes DNS escaping from an instance label.
func unescapeInstance(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
