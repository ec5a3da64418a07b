// Package nsd manages the lifecycle of local-network service
// advertisement and discovery with DNS-SD semantics: registering a
// service so peers can find it, browsing for services of a type, and
// resolving a discovered reference into connectable details.
//
// The wire protocol itself lives behind the Provider interface; this
// package owns the sequencing of operations against it and the
// consistent view of currently-known peer services.
package nsd

import (
	"context"
	"log/slog"
	"sync"
)

// Session serializes advertisement, discovery and resolution against a
// Provider. At most one advertisement and one browse are ever in
// flight; a conflicting request arriving while a teardown is pending is
// remembered and applied once the teardown completes.
//
// All exported methods are safe for concurrent use and return without
// blocking; results surface through the configured listeners. Listener
// callbacks are invoked from the goroutine running Run, in the order
// the underlying provider events occurred.
type Session struct {
	provider Provider

	mu sync.Mutex

	regState       RegistrationState
	registeredName string
	pendingInfo    *ServiceInfo // reregister target, overwritten by later requests
	withdrawing    bool

	discState   DiscoveryState
	serviceType string
	pendingType *string // rediscover target, overwritten by later requests
	unwatching  bool

	known      []ServiceRef
	excludeOwn bool

	errorListener   ErrorListener
	serviceListener ServiceListener
	resolveListener ResolveListener
}

// NewSession creates a session over the given provider. Call Run to
// start consuming provider events.
func NewSession(provider Provider) *Session {
	if provider == nil {
		panic("nsd: NewSession called with nil provider")
	}
	return &Session{provider: provider}
}

// SetErrorListener sets the listener notified of failed operations.
func (s *Session) SetErrorListener(l ErrorListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorListener = l
}

// SetServiceListener sets the listener notified of found and lost
// services.
func (s *Session) SetServiceListener(l ServiceListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serviceListener = l
}

// SetResolveListener sets the listener notified of resolved services.
func (s *Session) SetResolveListener(l ResolveListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveListener = l
}

// SetExcludeOwnService controls whether found notifications matching
// the locally registered instance name are suppressed. Default is
// false.
func (s *Session) SetExcludeOwnService(exclude bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.excludeOwn = exclude
}

// RegisteredName returns the effective instance name of the local
// advertisement, or "" when nothing is registered. The provider may
// have renamed the service to avoid a collision, so this can differ
// from the name submitted to Register.
func (s *Session) RegisteredName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registeredName
}

// KnownServices returns a snapshot of the services currently believed
// live for the active discovery. The snapshot does not track later
// found/lost events.
func (s *Session) KnownServices() []ServiceRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ServiceRef(nil), s.known...)
}

// RegistrationState returns the current advertisement lifecycle state.
func (s *Session) RegistrationState() RegistrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regState
}

// DiscoveryState returns the current browse lifecycle state.
func (s *Session) DiscoveryState() DiscoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discState
}

// Register advertises a service. If a registration is already in
// flight the call is ignored. If a service is already registered it is
// withdrawn first and info is advertised once the withdrawal completes;
// a newer Register call before then replaces the remembered descriptor.
//
// A zero-value descriptor is a programming error and panics.
func (s *Session) Register(info ServiceInfo) {
	if info.Type == "" {
		panic("nsd: Register called with descriptor missing a service type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(info)
}

func (s *Session) registerLocked(info ServiceInfo) {
	switch s.regState {
	case Registering:
		// at most one advertise in flight
	case Registered:
		s.pendingInfo = &info
		s.unregisterLocked()
	default:
		s.regState = Registering
		s.provider.Advertise(info)
	}
}

// Unregister withdraws the current advertisement. It is a no-op unless
// a service is registered. The registration stays live until the
// provider confirms the withdrawal.
func (s *Session) Unregister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterLocked()
}

func (s *Session) unregisterLocked() {
	if s.regState != Registered || s.withdrawing {
		return
	}
	s.withdrawing = true
	s.provider.Withdraw()
}

// Discover browses for services of serviceType. The known-services
// list is cleared immediately: results belong to the discovery about
// to start. If a browse is already active it is stopped first and the
// new browse starts once the stop completes; a newer Discover call
// before then replaces the remembered type.
func (s *Session) Discover(serviceType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known = nil
	s.discoverLocked(serviceType)
}

func (s *Session) discoverLocked(serviceType string) {
	switch s.discState {
	case DiscoveryStarting:
		// at most one watch in flight
	case DiscoveryActive:
		s.pendingType = &serviceType
		s.stopDiscoveryLocked()
	default:
		s.discState = DiscoveryStarting
		s.serviceType = serviceType
		s.provider.Watch(serviceType)
	}
}

// StopDiscovery stops the active browse. It is a no-op unless
// discovery is active.
func (s *Session) StopDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopDiscoveryLocked()
}

func (s *Session) stopDiscoveryLocked() {
	if s.discState != DiscoveryActive || s.unwatching {
		return
	}
	s.unwatching = true
	s.provider.Unwatch()
}

// Resolve looks up connectable details for a discovered reference.
// Calls pass straight through to the provider: there is no queueing
// and no dedupe, so any number of resolutions may be outstanding.
//
// A reference missing its name or type is a programming error and
// panics.
func (s *Session) Resolve(ref ServiceRef) {
	if ref.Name == "" || ref.Type == "" {
		panic("nsd: Resolve called with incomplete service reference")
	}
	s.provider.Resolve(ref)
}

// Run consumes provider events until ctx is cancelled or the provider
// closes its event channel. Listener callbacks are invoked from this
// goroutine, preserving provider event order.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.provider.Events():
			if !ok {
				return nil
			}
			if notify := s.dispatch(ev); notify != nil {
				notify()
			}
		}
	}
}

// dispatch applies one provider event to the session state and returns
// the listener notification to deliver once the lock is released, or
// nil.
func (s *Session) dispatch(ev ProviderEvent) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := ev.(type) {
	case AdvertiseOK:
		s.regState = Registered
		s.registeredName = ev.Name
		slog.Debug("service registered", "name", ev.Name)

	case AdvertiseError:
		s.regState = RegIdle
		slog.Warn("registration failed", "code", int(ev.Code), "reason", ErrorMessage(ev.Code))
		return s.errorNotification(RegistrationFailed, ev.Code)

	case WithdrawOK:
		s.regState = RegIdle
		s.registeredName = ""
		s.withdrawing = false
		if info := s.pendingInfo; info != nil {
			s.pendingInfo = nil
			s.registerLocked(*info)
		}

	case WithdrawError:
		s.withdrawing = false
		// Nothing was torn down, so the pending reregister target can
		// never be applied; drop it.
		s.pendingInfo = nil
		slog.Warn("unregistration failed", "code", int(ev.Code), "reason", ErrorMessage(ev.Code))
		return s.errorNotification(UnregistrationFailed, ev.Code)

	case WatchOK:
		s.discState = DiscoveryActive

	case WatchError:
		s.discState = DiscoveryIdle
		slog.Warn("start discovery failed", "code", int(ev.Code), "reason", ErrorMessage(ev.Code))
		return s.errorNotification(StartDiscoveryFailed, ev.Code)

	case UnwatchOK:
		s.discState = DiscoveryIdle
		s.unwatching = false
		if t := s.pendingType; t != nil {
			s.pendingType = nil
			s.known = nil
			s.discoverLocked(*t)
		}

	case UnwatchError:
		s.unwatching = false
		s.pendingType = nil
		slog.Warn("stop discovery failed", "code", int(ev.Code), "reason", ErrorMessage(ev.Code))
		return s.errorNotification(StopDiscoveryFailed, ev.Code)

	case Found:
		if s.excludeOwn && s.registeredName != "" && ev.Ref.Name == s.registeredName {
			return nil
		}
		slog.Debug("service found", "name", ev.Ref.Name)
		s.known = append(s.known, ev.Ref)
		if l := s.serviceListener; l != nil {
			ref := ev.Ref
			return func() { l.OnServiceFound(ref) }
		}

	case Lost:
		slog.Debug("service lost", "name", ev.Ref.Name)
		for i := range s.known {
			if s.known[i].Name == ev.Ref.Name {
				s.known = append(s.known[:i], s.known[i+1:]...)
				break
			}
		}
		// The lost event is forwarded even if the local list had
		// already diverged.
		if l := s.serviceListener; l != nil {
			ref := ev.Ref
			return func() { l.OnServiceLost(ref) }
		}

	case ResolveOK:
		if l := s.resolveListener; l != nil {
			svc := ev.Service
			return func() { l.OnServiceResolved(svc) }
		}

	case ResolveError:
		slog.Warn("resolve failed", "name", ev.Ref.Name, "code", int(ev.Code), "reason", ErrorMessage(ev.Code))
		return s.errorNotification(ResolveFailed, ev.Code)
	}
	return nil
}

func (s *Session) errorNotification(kind ErrorKind, code Code) func() {
	l := s.errorListener
	if l == nil {
		return nil
	}
	return func() { l.OnError(kind, code) }
}
