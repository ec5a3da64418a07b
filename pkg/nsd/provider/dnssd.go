package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brutella/dnssd"

	"github.com/omdev/nsdkit/pkg/nsd"
)

// DNSSD is a provider backed by github.com/brutella/dnssd. Advertising
// runs a responder goroutine until withdrawn; browsing uses the
// library's add/remove callbacks, which map directly onto Found/Lost
// events.
type DNSSD struct {
	eventPump
	cfg Config

	mu            sync.Mutex
	stopAdvertise context.CancelFunc
	stopWatch     context.CancelFunc
}

var _ nsd.Provider = (*DNSSD)(nil)

// NewDNSSD creates a dnssd-backed provider.
func NewDNSSD(cfg Config) (*DNSSD, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	return &DNSSD{eventPump: newEventPump(cfg.EventBuffer), cfg: cfg}, nil
}

func (p *DNSSD) Advertise(info nsd.ServiceInfo) {
	go func() {
		sv, err := dnssd.NewService(dnssd.Config{
			Name:   info.Name,
			Type:   info.Type,
			Domain: p.cfg.Domain,
			// mdns multicasts to the group address, so IPs can stay nil
			IPs:  nil,
			Text: info.Text,
			Port: info.Port,
		})
		if err != nil {
			slog.Warn("dnssd: creating service failed", "name", info.Name, "error", err)
			p.emit(nsd.AdvertiseError{Code: nsd.CodeInternalError})
			return
		}

		rp, err := dnssd.NewResponder()
		if err != nil {
			slog.Warn("dnssd: creating responder failed", "error", err)
			p.emit(nsd.AdvertiseError{Code: nsd.CodeInternalError})
			return
		}
		if _, err := rp.Add(sv); err != nil {
			slog.Warn("dnssd: adding service failed", "name", info.Name, "error", err)
			p.emit(nsd.AdvertiseError{Code: nsd.CodeInternalError})
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		p.mu.Lock()
		if p.stopAdvertise != nil {
			p.mu.Unlock()
			cancel()
			p.emit(nsd.AdvertiseError{Code: nsd.CodeAlreadyActive})
			return
		}
		p.stopAdvertise = cancel
		p.mu.Unlock()

		go func() {
			if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("dnssd: responder stopped", "name", sv.Name, "error", err)
			}
		}()

		p.emit(nsd.AdvertiseOK{Name: sv.Name})
	}()
}

func (p *DNSSD) Withdraw() {
	go func() {
		p.mu.Lock()
		cancel := p.stopAdvertise
		p.stopAdvertise = nil
		p.mu.Unlock()

		if cancel == nil {
			p.emit(nsd.WithdrawError{Code: nsd.CodeInternalError})
			return
		}
		cancel()
		p.emit(nsd.WithdrawOK{})
	}()
}

func (p *DNSSD) Watch(serviceType string) {
	go func() {
		ctx, cancel := context.WithCancel(context.Background())
		p.mu.Lock()
		if p.stopWatch != nil {
			p.mu.Unlock()
			cancel()
			p.emit(nsd.WatchError{Code: nsd.CodeAlreadyActive})
			return
		}
		p.stopWatch = cancel
		p.mu.Unlock()

		go func() {
			add := func(e dnssd.BrowseEntry) {
				p.emit(nsd.Found{Ref: nsd.ServiceRef{Name: e.Name, Type: serviceType}})
			}
			rmv := func(e dnssd.BrowseEntry) {
				p.emit(nsd.Lost{Ref: nsd.ServiceRef{Name: e.Name, Type: serviceType}})
			}
			if err := dnssd.LookupType(ctx, browseName(serviceType, p.cfg.Domain), add, rmv); err != nil && ctx.Err() == nil {
				slog.Warn("dnssd: browse ended unexpectedly", "type", serviceType, "error", err)
			}
		}()

		p.emit(nsd.WatchOK{})
	}()
}

func (p *DNSSD) Unwatch() {
	go func() {
		p.mu.Lock()
		cancel := p.stopWatch
		p.stopWatch = nil
		p.mu.Unlock()

		if cancel == nil {
			p.emit(nsd.UnwatchError{Code: nsd.CodeInternalError})
			return
		}
		cancel()
		p.emit(nsd.UnwatchOK{})
	}()
}

// Resolve browses the reference's type until the named instance shows
// up or the resolve timeout expires. The library delivers host and TXT
// data with the browse entry, so no second lookup is needed.
func (p *DNSSD) Resolve(ref nsd.ServiceRef) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ResolveTimeout)
		defer cancel()

		found := make(chan dnssd.BrowseEntry, 1)
		add := func(e dnssd.BrowseEntry) {
			if e.Name != ref.Name {
				return
			}
			select {
			case found <- e:
			default:
			}
			cancel()
		}
		rmv := func(dnssd.BrowseEntry) {}

		_ = dnssd.LookupType(ctx, browseName(ref.Type, p.cfg.Domain), add, rmv)

		select {
		case e := <-found:
			svc := nsd.ResolvedService{Name: e.Name, Type: ref.Type, Port: e.Port, Text: e.Text}
			if len(e.IPs) > 0 {
				svc.Addr = e.IPs[0]
			}
			p.emit(nsd.ResolveOK{Service: svc})
		default:
			p.emit(nsd.ResolveError{Ref: ref, Code: nsd.CodeInternalError})
		}
	}()
}
