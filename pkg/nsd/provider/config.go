package provider

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omdev/nsdkit/pkg/nsd"
)

// Config holds the tuning knobs shared by all provider backends.
type Config struct {
	// Domain is the DNS-SD domain, normally "local".
	Domain string

	// BrowseInterval is how often the mdns backend re-queries the
	// network while a watch is active.
	BrowseInterval time.Duration

	// QueryTimeout is the collection window of a single mdns query.
	QueryTimeout time.Duration

	// ResolveTimeout bounds how long a resolve may search before it is
	// reported as failed.
	ResolveTimeout time.Duration

	// EventBuffer is the capacity of the provider event channel.
	EventBuffer int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Domain:         nsd.DefaultDomain,
		BrowseInterval: 5 * time.Second,
		QueryTimeout:   time.Second,
		ResolveTimeout: 5 * time.Second,
		EventBuffer:    16,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Domain == "" {
		return errors.New("domain must not be empty")
	}
	if c.BrowseInterval <= 0 {
		return errors.New("browse interval must be positive")
	}
	if c.QueryTimeout <= 0 {
		return errors.New("query timeout must be positive")
	}
	if c.QueryTimeout > c.BrowseInterval {
		return errors.New("query timeout cannot exceed the browse interval")
	}
	if c.ResolveTimeout <= 0 {
		return errors.New("resolve timeout must be positive")
	}
	if c.EventBuffer <= 0 {
		return errors.New("event buffer must be positive")
	}
	return nil
}

// browseName renders the fully qualified browse name for a service
// type, e.g. "_ipp._tcp.local.".
func browseName(serviceType, domain string) string {
	return fmt.Sprintf("%s.%s.", serviceType, strings.TrimSuffix(domain, "."))
}

// qualifiedDomain renders the domain in the trailing-dot form the
// zeroconf library expects.
func qualifiedDomain(domain string) string {
	return strings.TrimSuffix(domain, ".") + "."
}
