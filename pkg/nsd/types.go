package nsd

import "net"

const (
	// DefaultDomain is the DNS-SD domain used when none is configured.
	DefaultDomain = "local"
)

// ServiceInfo describes a local service to advertise on the network.
// It is immutable once submitted to Register; a later Register call
// replaces it entirely.
type ServiceInfo struct {
	Name string            // instance name, e.g. "Living Room Printer"
	Type string            // service type, e.g. "_ipp._tcp"
	Port int               // TCP/UDP port the service listens on
	Text map[string]string // TXT record attributes
}

// ServiceRef is a handle to a discovered peer service. A reference is
// unresolved: it carries only the instance name and service type, which
// is all a browse operation yields. Pass it to Session.Resolve to obtain
// connectable details. References are compared by instance name.
type ServiceRef struct {
	Name string
	Type string
}

// ResolvedService carries the connectable details produced by resolving
// a ServiceRef. Resolution never mutates the reference; it produces a
// new value.
type ResolvedService struct {
	Name string
	Type string
	Addr net.IP
	Port int
	Text map[string]string
}

// Ref returns the reference form of a resolved service.
func (s ResolvedService) Ref() ServiceRef {
	return ServiceRef{Name: s.Name, Type: s.Type}
}

// RegistrationState is the lifecycle state of the local advertisement.
type RegistrationState int

const (
	RegIdle RegistrationState = iota
	Registering
	Registered
)

func (s RegistrationState) String() string {
	switch s {
	case RegIdle:
		return "idle"
	case Registering:
		return "registering"
	case Registered:
		return "registered"
	default:
		return "unknown"
	}
}

// DiscoveryState is the lifecycle state of the active browse request.
type DiscoveryState int

const (
	DiscoveryIdle DiscoveryState = iota
	DiscoveryStarting
	DiscoveryActive
)

func (s DiscoveryState) String() string {
	switch s {
	case DiscoveryIdle:
		return "idle"
	case DiscoveryStarting:
		return "starting"
	case DiscoveryActive:
		return "active"
	default:
		return "unknown"
	}
}
