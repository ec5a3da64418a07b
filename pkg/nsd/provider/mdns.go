package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/omdev/nsdkit/internal/util"
	"github.com/omdev/nsdkit/pkg/nsd"
)

// MDNS is a provider backed by github.com/hashicorp/mdns. The library
// has no continuous browse, so an active watch re-queries the network
// every BrowseInterval and diffs the answers against the previous
// round to synthesize Found/Lost events.
type MDNS struct {
	eventPump
	cfg Config

	mu        sync.Mutex
	server    *mdns.Server
	stopWatch context.CancelFunc
}

var _ nsd.Provider = (*MDNS)(nil)

// NewMDNS creates a hashicorp/mdns-backed provider.
func NewMDNS(cfg Config) (*MDNS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	return &MDNS{eventPump: newEventPump(cfg.EventBuffer), cfg: cfg}, nil
}

func (p *MDNS) Advertise(info nsd.ServiceInfo) {
	go func() {
		ips, err := localIPv4s()
		if err != nil {
			slog.Warn("mdns: listing local addresses failed", "error", err)
			p.emit(nsd.AdvertiseError{Code: nsd.CodeInternalError})
			return
		}

		zone, err := mdns.NewMDNSService(info.Name, info.Type, "", "", info.Port, ips, util.EncodeTXT(info.Text))
		if err != nil {
			slog.Warn("mdns: creating service failed", "name", info.Name, "error", err)
			p.emit(nsd.AdvertiseError{Code: nsd.CodeInternalError})
			return
		}
		srv, err := mdns.NewServer(&mdns.Config{Zone: zone})
		if err != nil {
			slog.Warn("mdns: starting server failed", "name", info.Name, "error", err)
			p.emit(nsd.AdvertiseError{Code: nsd.CodeInternalError})
			return
		}

		p.mu.Lock()
		if p.server != nil {
			p.mu.Unlock()
			if err := srv.Shutdown(); err != nil {
				slog.Warn("mdns: shutdown failed", "error", err)
			}
			p.emit(nsd.AdvertiseError{Code: nsd.CodeAlreadyActive})
			return
		}
		p.server = srv
		p.mu.Unlock()

		p.emit(nsd.AdvertiseOK{Name: info.Name})
	}()
}

func (p *MDNS) Withdraw() {
	go func() {
		p.mu.Lock()
		srv := p.server
		p.server = nil
		p.mu.Unlock()

		if srv == nil {
			p.emit(nsd.WithdrawError{Code: nsd.CodeInternalError})
			return
		}
		if err := srv.Shutdown(); err != nil {
			slog.Warn("mdns: shutdown failed", "error", err)
			p.emit(nsd.WithdrawError{Code: nsd.CodeInternalError})
			return
		}
		p.emit(nsd.WithdrawOK{})
	}()
}

func (p *MDNS) Watch(serviceType string) {
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

		go p.browseLoop(ctx, serviceType)
		p.emit(nsd.WatchOK{})
	}()
}

// browseLoop re-queries until the watch is cancelled, diffing each
// round's instances against the last to emit Found and Lost.
func (p *MDNS) browseLoop(ctx context.Context, serviceType string) {
	seen := make(map[string]bool)
	ticker := time.NewTicker(p.cfg.BrowseInterval)
	defer ticker.Stop()

	for {
		current := p.queryOnce(serviceType, p.cfg.QueryTimeout)
		if ctx.Err() != nil {
			return
		}
		diffRounds(&p.eventPump, serviceType, seen, current)
		seen = current

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// queryOnce collects the instance names answering a single query round.
func (p *MDNS) queryOnce(serviceType string, timeout time.Duration) map[string]bool {
	entries := make(chan *mdns.ServiceEntry, p.cfg.EventBuffer)
	current := make(map[string]bool)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entries {
			current[instanceName(e.Name, serviceType, p.cfg.Domain)] = true
		}
	}()

	params := &mdns.QueryParam{
		Service: serviceType,
		Domain:  p.cfg.Domain,
		Timeout: timeout,
		Entries: entries,
	}
	if err := mdns.Query(params); err != nil {
		slog.Warn("mdns: query failed", "type", serviceType, "error", err)
	}
	close(entries)
	<-done
	return current
}

func (p *MDNS) Unwatch() {
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

func (p *MDNS) Resolve(ref nsd.ServiceRef) {
	go func() {
		entries := make(chan *mdns.ServiceEntry, p.cfg.EventBuffer)
		var resolved *nsd.ResolvedService
		done := make(chan struct{})

		go func() {
			defer close(done)
			for e := range entries {
				if resolved != nil || instanceName(e.Name, ref.Type, p.cfg.Domain) != ref.Name {
					continue
				}
				svc := nsd.ResolvedService{Name: ref.Name, Type: ref.Type, Port: e.Port, Text: util.DecodeTXT(e.InfoFields)}
				if e.AddrV4 != nil {
					svc.Addr = e.AddrV4
				} else {
					svc.Addr = e.AddrV6
				}
				resolved = &svc
			}
		}()

		params := &mdns.QueryParam{
			Service: ref.Type,
			Domain:  p.cfg.Domain,
			Timeout: p.cfg.ResolveTimeout,
			Entries: entries,
		}
		if err := mdns.Query(params); err != nil {
			slog.Warn("mdns: resolve query failed", "name", ref.Name, "error", err)
		}
		close(entries)
		<-done

		if resolved != nil {
			p.emit(nsd.ResolveOK{Service: *resolved})
		} else {
			p.emit(nsd.ResolveError{Ref: ref, Code: nsd.CodeInternalError})
		}
	}()
}

// instanceName strips the service type and domain suffix from a fully
// qualified entry name, leaving the bare instance name.
func instanceName(fqdn, serviceType, domain string) string {
	name := strings.TrimSuffix(fqdn, ".")
	name = strings.TrimSuffix(name, "."+strings.TrimSuffix(domain, "."))
	name = strings.TrimSuffix(name, "."+serviceType)
	return strings.ReplaceAll(name, "\\ ", " ")
}

// localIPv4s returns the IPv4 addresses of the up, non-loopback
// interfaces.
func localIPv4s() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}
	return ips, nil
}
