package browser

import (
	appevents "github.com/omdev/nsdkit/internal/app_events"
	"github.com/omdev/nsdkit/pkg/nsd"
)

// --- App Events (from TUI to App) ---

// ResolveRequestMsg asks the controller to resolve a discovered
// service the user selected.
type ResolveRequestMsg struct {
	appevents.Event
	Ref nsd.ServiceRef
}

// RediscoverMsg asks the controller to restart discovery from scratch.
type RediscoverMsg struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = (*ResolveRequestMsg)(nil)
	_ appevents.AppEvent = (*RediscoverMsg)(nil)
)

// --- UI Messages (from App to TUI) ---

// ServiceListMsg carries the current snapshot of known services.
type ServiceListMsg struct {
	Services []nsd.ServiceRef
}

// ServiceResolvedMsg carries the connectable details of a resolved
// service.
type ServiceResolvedMsg struct {
	Service nsd.ResolvedService
}

// RegisteredMsg reports the effective name of the local advertisement.
type RegisteredMsg struct {
	Name string
}

// StatusUpdateMsg carries a transient status line for the UI.
type StatusUpdateMsg struct {
	Message string
}
