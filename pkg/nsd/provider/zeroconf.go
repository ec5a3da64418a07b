package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/omdev/nsdkit/internal/util"
	"github.com/omdev/nsdkit/pkg/nsd"
)

// Zeroconf is a provider backed by github.com/grandcat/zeroconf. The
// library never delivers goodbye packets to the browse channel (its
// client drops TTL-0 records before forwarding), so an active watch
// re-queries the network every BrowseInterval and diffs the answers
// against the previous round to synthesize Found/Lost events.
type Zeroconf struct {
	eventPump
	cfg Config

	mu        sync.Mutex
	server    *zeroconf.Server
	stopWatch context.CancelFunc
}

var _ nsd.Provider = (*Zeroconf)(nil)

// NewZeroconf creates a zeroconf-backed provider.
func NewZeroconf(cfg Config) (*Zeroconf, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	return &Zeroconf{eventPump: newEventPump(cfg.EventBuffer), cfg: cfg}, nil
}

func (p *Zeroconf) Advertise(info nsd.ServiceInfo) {
	go func() {
		txt := util.EncodeTXT(info.Text)
		if len(txt) == 0 {
			// the library rejects a service without TXT records
			txt = []string{"txtv=0"}
		}

		srv, err := zeroconf.Register(info.Name, info.Type, qualifiedDomain(p.cfg.Domain), info.Port, txt, nil)
		if err != nil {
			slog.Warn("zeroconf: register failed", "name", info.Name, "error", err)
			p.emit(nsd.AdvertiseError{Code: nsd.CodeInternalError})
			return
		}

		p.mu.Lock()
		if p.server != nil {
			p.mu.Unlock()
			srv.Shutdown()
			p.emit(nsd.AdvertiseError{Code: nsd.CodeAlreadyActive})
			return
		}
		p.server = srv
		p.mu.Unlock()

		p.emit(nsd.AdvertiseOK{Name: info.Name})
	}()
}

func (p *Zeroconf) Withdraw() {
	go func() {
		p.mu.Lock()
		srv := p.server
		p.server = nil
		p.mu.Unlock()

		if srv == nil {
			p.emit(nsd.WithdrawError{Code: nsd.CodeInternalError})
			return
		}
		srv.Shutdown()
		p.emit(nsd.WithdrawOK{})
	}()
}

func (p *Zeroconf) Watch(serviceType string) {
	go func() {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			slog.Warn("zeroconf: creating resolver failed", "error", err)
			p.emit(nsd.WatchError{Code: nsd.CodeInternalError})
			return
		}

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

		go p.browseLoop(ctx, resolver, serviceType)
		p.emit(nsd.WatchOK{})
	}()
}

// browseLoop re-queries until the watch is cancelled, diffing each
// round's instances against the last to emit Found and Lost.
func (p *Zeroconf) browseLoop(ctx context.Context, resolver *zeroconf.Resolver, serviceType string) {
	seen := make(map[string]bool)
	ticker := time.NewTicker(p.cfg.BrowseInterval)
	defer ticker.Stop()

	for {
		current := p.queryOnce(ctx, resolver, serviceType)
		if ctx.Err() != nil {
			return
		}
		diffRounds(&p.eventPump, serviceType, seen, current)
		seen = current

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// each Browse call wants a fresh resolver
			r, err := zeroconf.NewResolver(nil)
			if err != nil {
				slog.Warn("zeroconf: creating resolver failed", "error", err)
				return
			}
			resolver = r
		}
	}
}

// queryOnce collects the instance names answering a single browse round.
func (p *Zeroconf) queryOnce(ctx context.Context, resolver *zeroconf.Resolver, serviceType string) map[string]bool {
	current := make(map[string]bool)

	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, p.cfg.EventBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.TTL > 0 {
				current[e.Instance] = true
			}
		}
	}()

	if err := resolver.Browse(queryCtx, serviceType, qualifiedDomain(p.cfg.Domain), entries); err != nil {
		slog.Warn("zeroconf: browse failed", "type", serviceType, "error", err)
		close(entries)
		<-done
		return current
	}

	// the client closes entries once queryCtx expires
	<-done
	return current
}

func (p *Zeroconf) Unwatch() {
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

func (p *Zeroconf) Resolve(ref nsd.ServiceRef) {
	go func() {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			slog.Warn("zeroconf: creating resolver failed", "error", err)
			p.emit(nsd.ResolveError{Ref: ref, Code: nsd.CodeInternalError})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ResolveTimeout)
		defer cancel()

		entries := make(chan *zeroconf.ServiceEntry, 4)
		if err := resolver.Lookup(ctx, ref.Name, ref.Type, qualifiedDomain(p.cfg.Domain), entries); err != nil {
			slog.Warn("zeroconf: lookup failed", "name", ref.Name, "error", err)
			p.emit(nsd.ResolveError{Ref: ref, Code: nsd.CodeInternalError})
			return
		}

		for e := range entries {
			if e.Instance != ref.Name || e.TTL == 0 {
				continue
			}
			svc := nsd.ResolvedService{Name: e.Instance, Type: ref.Type, Port: e.Port, Text: util.DecodeTXT(e.Text)}
			if len(e.AddrIPv4) > 0 {
				svc.Addr = e.AddrIPv4[0]
			} else if len(e.AddrIPv6) > 0 {
				svc.Addr = e.AddrIPv6[0]
			}
			p.emit(nsd.ResolveOK{Service: svc})
			cancel()
			for range entries {
				// drain until the resolver closes the channel
			}
			return
		}

		p.emit(nsd.ResolveError{Ref: ref, Code: nsd.CodeInternalError})
	}()
}
