package nsd

// Code is an opaque provider status code attached to a failed operation.
// Concrete providers map their library errors onto these values.
type Code int

const (
	CodeInternalError Code = 0
	CodeAlreadyActive Code = 3
	CodeMaxLimit      Code = 4
)

// ErrorMessage returns a human-readable description for a provider code.
func ErrorMessage(code Code) string {
	switch code {
	case CodeAlreadyActive:
		return "The operation failed because it is already active."
	case CodeInternalError:
		return "Internal error."
	case CodeMaxLimit:
		return "The operation failed because the maximum outstanding requests from the applications have reached."
	default:
		return "Unknown error."
	}
}

// ErrorKind identifies which session operation a reported failure
// belongs to.
type ErrorKind int

const (
	RegistrationFailed ErrorKind = iota + 1
	UnregistrationFailed
	StartDiscoveryFailed
	StopDiscoveryFailed
	ResolveFailed
)

func (k ErrorKind) String() string {
	switch k {
	case RegistrationFailed:
		return "registration failed"
	case UnregistrationFailed:
		return "unregistration failed"
	case StartDiscoveryFailed:
		return "start discovery failed"
	case StopDiscoveryFailed:
		return "stop discovery failed"
	case ResolveFailed:
		return "resolve failed"
	default:
		return "unknown error"
	}
}
