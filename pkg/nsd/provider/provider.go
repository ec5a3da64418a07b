// Package provider supplies concrete nsd.Provider implementations
// wrapping the mDNS/DNS-SD stacks this project supports. Every backend
// funnels completions and found/lost pushes through a single buffered
// event channel, which is what gives the session its ordering
// guarantee.
package provider

import (
	"fmt"

	"github.com/omdev/nsdkit/pkg/nsd"
)

// Backend names accepted by New.
const (
	BackendDNSSD    = "dnssd"
	BackendZeroconf = "zeroconf"
	BackendMDNS     = "mdns"
)

// New constructs the named provider backend.
func New(backend string, cfg Config) (nsd.Provider, error) {
	switch backend {
	case BackendDNSSD:
		return NewDNSSD(cfg)
	case BackendZeroconf:
		return NewZeroconf(cfg)
	case BackendMDNS:
		return NewMDNS(cfg)
	default:
		return nil, fmt.Errorf("unknown provider backend %q", backend)
	}
}

// eventPump is the shared event-channel plumbing embedded by every
// backend. Emits happen from backend goroutines, never synchronously
// from a submission, as the nsd.Provider contract requires.
type eventPump struct {
	events chan nsd.ProviderEvent
}

func newEventPump(buffer int) eventPump {
	return eventPump{events: make(chan nsd.ProviderEvent, buffer)}
}

func (p *eventPump) Events() <-chan nsd.ProviderEvent {
	return p.events
}

func (p *eventPump) emit(ev nsd.ProviderEvent) {
	p.events <- ev
}

// diffRounds compares one browse round against the previous and emits
// Found for new instances and Lost for vanished ones. The polling
// backends use it to synthesize lost notifications their libraries do
// not deliver.
func diffRounds(p *eventPump, serviceType string, seen, current map[string]bool) {
	for name := range current {
		if !seen[name] {
			p.emit(nsd.Found{Ref: nsd.ServiceRef{Name: name, Type: serviceType}})
		}
	}
	for name := range seen {
		if !current[name] {
			p.emit(nsd.Lost{Ref: nsd.ServiceRef{Name: name, Type: serviceType}})
		}
	}
}
