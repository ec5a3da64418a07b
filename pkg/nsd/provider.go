package nsd

// Provider is the platform DNS-SD/mDNS stack driven by a Session. The
// session treats it as a black box: every submission returns promptly
// and completes exactly once with a success or failure event on
// Events(). Found/Lost push events flow on the same channel while a
// watch is active.
//
// Contract: a submission must never deliver its completion synchronously
// from inside the submitting call, and all events for one provider must
// be delivered on the single Events channel so their order is preserved.
type Provider interface {
	// Advertise publishes a service. Completes with AdvertiseOK
	// (carrying the effective, possibly renamed, instance name) or
	// AdvertiseError.
	Advertise(info ServiceInfo)

	// Withdraw unpublishes the currently advertised service. Completes
	// with WithdrawOK or WithdrawError.
	Withdraw()

	// Watch starts browsing for services of the given type. Completes
	// with WatchOK or WatchError; afterwards Found/Lost events are
	// pushed until Unwatch completes.
	Watch(serviceType string)

	// Unwatch stops the active browse. Completes with UnwatchOK or
	// UnwatchError.
	Unwatch()

	// Resolve looks up connectable details for a reference. Completes
	// with ResolveOK or ResolveError. Multiple resolves may be
	// outstanding at once.
	Resolve(ref ServiceRef)

	// Events is the single ordered stream of completions and push
	// notifications. Closing it terminates Session.Run.
	Events() <-chan ProviderEvent
}

// ProviderEvent is a marker interface for events emitted by a Provider.
// The unexported method limits implementations to this package, so a
// Session can switch over the full set exhaustively.
type ProviderEvent interface {
	isProviderEvent()
}

type providerEvent struct{}

func (providerEvent) isProviderEvent() {}

// AdvertiseOK reports a completed advertisement. Name is the effective
// instance name, which the provider may have changed to avoid a
// collision on the network.
type AdvertiseOK struct {
	providerEvent
	Name string
}

// AdvertiseError reports a failed advertisement.
type AdvertiseError struct {
	providerEvent
	Code Code
}

// WithdrawOK reports that the advertisement was torn down.
type WithdrawOK struct {
	providerEvent
}

// WithdrawError reports a failed withdrawal; the advertisement is still
// live.
type WithdrawError struct {
	providerEvent
	Code Code
}

// WatchOK reports that browsing started.
type WatchOK struct {
	providerEvent
}

// WatchError reports that browsing could not be started.
type WatchError struct {
	providerEvent
	Code Code
}

// UnwatchOK reports that browsing stopped.
type UnwatchOK struct {
	providerEvent
}

// UnwatchError reports a failed stop; browsing is still active.
type UnwatchError struct {
	providerEvent
	Code Code
}

// ResolveOK reports a completed resolution.
type ResolveOK struct {
	providerEvent
	Service ResolvedService
}

// ResolveError reports a failed resolution of Ref.
type ResolveError struct {
	providerEvent
	Ref  ServiceRef
	Code Code
}

// Found is pushed while a watch is active when a peer service appears.
type Found struct {
	providerEvent
	Ref ServiceRef
}

// Lost is pushed while a watch is active when a peer service goes away.
type Lost struct {
	providerEvent
	Ref ServiceRef
}
