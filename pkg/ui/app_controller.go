package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/omdev/nsdkit/internal/app_events"
)

// AppController is the contract between the TUI and the application logic.
// It decouples the UI from the backend controller.
type AppController interface {
	// Run starts the backend services and the event loop. It returns when
	// the context is cancelled or the backend fails.
	Run(ctx context.Context) error

	// UIMessages returns a read-only channel for receiving messages from the backend to the UI.
	UIMessages() <-chan tea.Msg

	// AppEvents returns a write-only channel for sending events from the UI to the backend.
	AppEvents() chan<- appevents.AppEvent
}
