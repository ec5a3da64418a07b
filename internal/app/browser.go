package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appevents "github.com/omdev/nsdkit/internal/app_events"
	browserEvent "github.com/omdev/nsdkit/internal/app_events/browser"
	"github.com/omdev/nsdkit/pkg/concurrency"
	"github.com/omdev/nsdkit/pkg/nsd"
)

// Config describes what a Browser does on startup.
type Config struct {
	// ServiceType is the type browsed for, e.g. "_ipp._tcp".
	ServiceType string

	// Advertise, when non-nil, registers this descriptor alongside the
	// browse. An empty instance name gets a generated one.
	Advertise *nsd.ServiceInfo

	// ExcludeOwnService hides the local advertisement from results.
	ExcludeOwnService bool

	// ResolveTimeout bounds a UI-initiated resolve. Zero means a
	// 10 second default.
	ResolveTimeout time.Duration
}

// Browser is the application logic controller bridging a discovery
// session and the TUI. It implements the session listener interfaces
// and forwards everything of interest as UI messages.
type Browser struct {
	cfg     Config
	session *nsd.Session
	guard   *concurrency.ConcurrencyGuard

	uiMessages  chan tea.Msg            // App -> TUI
	appEvents   chan appevents.AppEvent // TUI -> App
	resolveDone chan struct{}
}

// NewBrowser creates a browser controller over the given provider.
func NewBrowser(provider nsd.Provider, cfg Config) *Browser {
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 10 * time.Second
	}
	if cfg.Advertise != nil && cfg.Advertise.Name == "" {
		info := *cfg.Advertise
		info.Name = "nsdkit-" + uuid.New().String()[:8]
		cfg.Advertise = &info
	}

	b := &Browser{
		cfg:         cfg,
		session:     nsd.NewSession(provider),
		guard:       concurrency.NewConcurrencyGuard(),
		uiMessages:  make(chan tea.Msg, 10),
		appEvents:   make(chan appevents.AppEvent),
		resolveDone: make(chan struct{}, 1),
	}
	b.session.SetErrorListener(b)
	b.session.SetServiceListener(b)
	b.session.SetResolveListener(b)
	return b
}

// Session exposes the underlying discovery session, mainly so headless
// commands can query state directly.
func (b *Browser) Session() *nsd.Session {
	return b.session
}

// UIMessages returns the channel for the UI to listen on for updates.
func (b *Browser) UIMessages() <-chan tea.Msg {
	return b.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (b *Browser) AppEvents() chan<- appevents.AppEvent {
	return b.appEvents
}

// Run starts the session and the application's main event loop.
func (b *Browser) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.session.Run(ctx)
	})

	g.Go(func() error {
		b.start(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-b.appEvents:
				switch e := event.(type) {
				case browserEvent.ResolveRequestMsg:
					b.StartResolve(ctx, e.Ref)
				case browserEvent.RediscoverMsg:
					b.session.Discover(b.cfg.ServiceType)
					b.uiMessages <- browserEvent.ServiceListMsg{Services: nil}
				}
			}
		}
	})

	return g.Wait()
}

func (b *Browser) start(ctx context.Context) {
	if b.cfg.Advertise != nil {
		b.session.SetExcludeOwnService(b.cfg.ExcludeOwnService)
		b.session.Register(*b.cfg.Advertise)
		go b.watchRegistration(ctx)
	}
	b.session.Discover(b.cfg.ServiceType)
}

// watchRegistration reports the effective instance name once the
// provider confirms the advertisement. The session exposes the name as
// state rather than an event, so this polls briefly.
func (b *Browser) watchRegistration(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if name := b.session.RegisteredName(); name != "" {
				b.uiMessages <- browserEvent.RegisteredMsg{Name: name}
				return
			}
		}
	}
}

// StartResolve resolves ref in the background. Only one UI-initiated
// resolve runs at a time; overlapping requests are turned away with a
// status message.
func (b *Browser) StartResolve(ctx context.Context, ref nsd.ServiceRef) {
	task := func() error {
		resolveCtx, cancel := context.WithTimeout(ctx, b.cfg.ResolveTimeout)
		defer cancel()

		b.uiMessages <- browserEvent.StatusUpdateMsg{Message: fmt.Sprintf("Resolving %s...", ref.Name)}

		// drop any stale completion signal from an earlier resolve
		select {
		case <-b.resolveDone:
		default:
		}

		b.session.Resolve(ref)
		select {
		case <-b.resolveDone:
			return nil
		case <-resolveCtx.Done():
			return fmt.Errorf("resolving %q timed out", ref.Name)
		}
	}

	go func() {
		if err := b.guard.Execute(task); err != nil {
			if errors.Is(err, concurrency.ErrBusy) {
				b.uiMessages <- browserEvent.StatusUpdateMsg{Message: "A resolve is already in progress"}
				return
			}
			b.sendAndLogError("Resolve failed", err)
		}
	}()
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (b *Browser) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	b.uiMessages <- appevents.AppErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)}
}

func (b *Browser) signalResolveDone() {
	select {
	case b.resolveDone <- struct{}{}:
	default:
	}
}

// OnServiceFound implements nsd.ServiceListener.
func (b *Browser) OnServiceFound(ref nsd.ServiceRef) {
	slog.Debug("Found service", "name", ref.Name, "type", ref.Type)
	b.uiMessages <- browserEvent.ServiceListMsg{Services: b.session.KnownServices()}
}

// OnServiceLost implements nsd.ServiceListener.
func (b *Browser) OnServiceLost(ref nsd.ServiceRef) {
	slog.Debug("Lost service", "name", ref.Name, "type", ref.Type)
	b.uiMessages <- browserEvent.ServiceListMsg{Services: b.session.KnownServices()}
}

// OnServiceResolved implements nsd.ResolveListener.
func (b *Browser) OnServiceResolved(svc nsd.ResolvedService) {
	b.signalResolveDone()
	b.uiMessages <- browserEvent.ServiceResolvedMsg{Service: svc}
}

// OnError implements nsd.ErrorListener.
func (b *Browser) OnError(kind nsd.ErrorKind, code nsd.Code) {
	if kind == nsd.ResolveFailed {
		b.signalResolveDone()
	}
	b.sendAndLogError("Discovery error", fmt.Errorf("%s: %s", kind, nsd.ErrorMessage(code)))
}
