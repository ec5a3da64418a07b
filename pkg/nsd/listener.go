package nsd

// ErrorListener receives one notification per failed provider
// operation. Failures are never retried by the session; the caller
// decides whether to re-issue the operation.
type ErrorListener interface {
	OnError(kind ErrorKind, code Code)
}

// ServiceListener receives found/lost notifications while discovery is
// active. Set it before calling Discover.
type ServiceListener interface {
	OnServiceFound(ref ServiceRef)
	OnServiceLost(ref ServiceRef)
}

// ResolveListener receives the result of a successful Resolve call.
type ResolveListener interface {
	OnServiceResolved(svc ResolvedService)
}
