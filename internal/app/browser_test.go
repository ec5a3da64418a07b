package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	browserEvent "github.com/omdev/nsdkit/internal/app_events/browser"
	"github.com/omdev/nsdkit/pkg/nsd"
)

// scriptedProvider completes every submission successfully and lets
// tests push found/lost events by hand.
type scriptedProvider struct {
	events chan nsd.ProviderEvent
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{events: make(chan nsd.ProviderEvent, 16)}
}

func (p *scriptedProvider) complete(ev nsd.ProviderEvent) {
	go func() { p.events <- ev }()
}

func (p *scriptedProvider) Advertise(info nsd.ServiceInfo) {
	p.complete(nsd.AdvertiseOK{Name: info.Name})
}
func (p *scriptedProvider) Withdraw()                { p.complete(nsd.WithdrawOK{}) }
func (p *scriptedProvider) Watch(serviceType string) { p.complete(nsd.WatchOK{}) }
func (p *scriptedProvider) Unwatch()                 { p.complete(nsd.UnwatchOK{}) }
func (p *scriptedProvider) Resolve(ref nsd.ServiceRef) {
	p.complete(nsd.ResolveOK{Service: nsd.ResolvedService{Name: ref.Name, Type: ref.Type, Port: 9000}})
}
func (p *scriptedProvider) Events() <-chan nsd.ProviderEvent { return p.events }

func startBrowser(t *testing.T, cfg Config) (*Browser, *scriptedProvider, context.CancelFunc) {
	t.Helper()
	provider := newScriptedProvider()
	browser := NewBrowser(provider, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- browser.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Run returned unexpected error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("Browser did not shut down within 3 seconds")
		}
	})
	return browser, provider, cancel
}

// nextUIMessage skips unrelated UI traffic until a message of type T
// arrives.
func nextUIMessage[T any](t *testing.T, b *Browser) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-b.UIMessages():
			if want, ok := msg.(T); ok {
				return want
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return *new(T)
		}
	}
}

func TestBrowserForwardsFoundServices(t *testing.T) {
	browser, provider, _ := startBrowser(t, Config{ServiceType: "_test._tcp"})

	require.Eventually(t, func() bool {
		return browser.Session().DiscoveryState() == nsd.DiscoveryActive
	}, 2*time.Second, 10*time.Millisecond)

	provider.events <- nsd.Found{Ref: nsd.ServiceRef{Name: "printer1", Type: "_test._tcp"}}

	msg := nextUIMessage[browserEvent.ServiceListMsg](t, browser)
	require.Len(t, msg.Services, 1)
	assert.Equal(t, "printer1", msg.Services[0].Name)
}

func TestBrowserResolveRoundTrip(t *testing.T) {
	browser, provider, _ := startBrowser(t, Config{ServiceType: "_test._tcp"})

	require.Eventually(t, func() bool {
		return browser.Session().DiscoveryState() == nsd.DiscoveryActive
	}, 2*time.Second, 10*time.Millisecond)

	provider.events <- nsd.Found{Ref: nsd.ServiceRef{Name: "printer1", Type: "_test._tcp"}}
	nextUIMessage[browserEvent.ServiceListMsg](t, browser)

	browser.AppEvents() <- browserEvent.ResolveRequestMsg{Ref: nsd.ServiceRef{Name: "printer1", Type: "_test._tcp"}}

	msg := nextUIMessage[browserEvent.ServiceResolvedMsg](t, browser)
	assert.Equal(t, "printer1", msg.Service.Name)
	assert.Equal(t, 9000, msg.Service.Port)
}

func TestBrowserAdvertisesSelf(t *testing.T) {
	browser, _, _ := startBrowser(t, Config{
		ServiceType:       "_test._tcp",
		Advertise:         &nsd.ServiceInfo{Type: "_test._tcp", Port: 8080},
		ExcludeOwnService: true,
	})

	msg := nextUIMessage[browserEvent.RegisteredMsg](t, browser)
	assert.NotEmpty(t, msg.Name, "a generated instance name is expected")
	assert.Equal(t, msg.Name, browser.Session().RegisteredName())
}

func TestBrowserGeneratesDistinctInstanceNames(t *testing.T) {
	cfg := Config{ServiceType: "_test._tcp", Advertise: &nsd.ServiceInfo{Type: "_test._tcp"}}
	a := NewBrowser(newScriptedProvider(), cfg)
	b := NewBrowser(newScriptedProvider(), cfg)
	assert.NotEqual(t, a.cfg.Advertise.Name, b.cfg.Advertise.Name)
	assert.Empty(t, cfg.Advertise.Name, "the caller's descriptor must not be mutated")
}
