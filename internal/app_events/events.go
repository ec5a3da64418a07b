package appevents

// AppEvent is a marker interface for events sent from the TUI to the
// app's logic controller. It uses an unexported method so that only
// types from this package (by embedding Event) can satisfy the
// interface, providing compile-time safety.
type AppEvent interface {
	isAppEvent()
}

// Event is a struct that can be embedded in other event types to
// satisfy the AppEvent interface.
type Event struct{}

// isAppEvent is the marker method that makes a struct an AppEvent.
func (Event) isAppEvent() {}

// AppErrorMsg reports a controller-side failure to the TUI.
type AppErrorMsg struct {
	Err error
}
