package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omdev/nsdkit/pkg/nsd"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults are valid", func(c *Config) {}, ""},
		{"Empty domain", func(c *Config) { c.Domain = "" }, "domain must not be empty"},
		{"Zero browse interval", func(c *Config) { c.BrowseInterval = 0 }, "browse interval must be positive"},
		{"Zero query timeout", func(c *Config) { c.QueryTimeout = 0 }, "query timeout must be positive"},
		{"Query timeout exceeds interval", func(c *Config) { c.QueryTimeout = time.Minute }, "query timeout cannot exceed the browse interval"},
		{"Zero resolve timeout", func(c *Config) { c.ResolveTimeout = 0 }, "resolve timeout must be positive"},
		{"Zero event buffer", func(c *Config) { c.EventBuffer = 0 }, "event buffer must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := DefaultConfig()

	p, err := New(BackendDNSSD, cfg)
	require.NoError(t, err)
	assert.IsType(t, &DNSSD{}, p)

	p, err = New(BackendZeroconf, cfg)
	require.NoError(t, err)
	assert.IsType(t, &Zeroconf{}, p)

	p, err = New(BackendMDNS, cfg)
	require.NoError(t, err)
	assert.IsType(t, &MDNS{}, p)

	_, err = New("avahi", cfg)
	assert.ErrorContains(t, err, "unknown provider backend")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domain = ""

	for _, backend := range []string{BackendDNSSD, BackendZeroconf, BackendMDNS} {
		_, err := New(backend, cfg)
		assert.ErrorContains(t, err, "invalid provider config", "backend %s", backend)
	}
}

func TestBrowseName(t *testing.T) {
	assert.Equal(t, "_ipp._tcp.local.", browseName("_ipp._tcp", "local"))
	assert.Equal(t, "_ipp._tcp.local.", browseName("_ipp._tcp", "local."))
}

func TestQualifiedDomain(t *testing.T) {
	assert.Equal(t, "local.", qualifiedDomain("local"))
	assert.Equal(t, "local.", qualifiedDomain("local."))
}

func TestInstanceName(t *testing.T) {
	tests := []struct {
		name     string
		fqdn     string
		expected string
	}{
		{"Fully qualified", "printer1._ipp._tcp.local.", "printer1"},
		{"No trailing dot", "printer1._ipp._tcp.local", "printer1"},
		{"Escaped spaces", "Living\\ Room._ipp._tcp.local.", "Living Room"},
		{"Bare instance", "printer1", "printer1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, instanceName(tt.fqdn, "_ipp._tcp", "local"))
		})
	}
}

func TestWithdrawWithoutAdvertiseFails(t *testing.T) {
	for _, backend := range []string{BackendDNSSD, BackendZeroconf, BackendMDNS} {
		t.Run(backend, func(t *testing.T) {
			p, err := New(backend, DefaultConfig())
			require.NoError(t, err)

			p.Withdraw()
			select {
			case ev := <-p.Events():
				assert.IsType(t, nsd.WithdrawError{}, ev)
			case <-time.After(2 * time.Second):
				t.Fatal("no completion for withdraw")
			}
		})
	}
}

func TestUnwatchWithoutWatchFails(t *testing.T) {
	for _, backend := range []string{BackendDNSSD, BackendZeroconf, BackendMDNS} {
		t.Run(backend, func(t *testing.T) {
			p, err := New(backend, DefaultConfig())
			require.NoError(t, err)

			p.Unwatch()
			select {
			case ev := <-p.Events():
				assert.IsType(t, nsd.UnwatchError{}, ev)
			case <-time.After(2 * time.Second):
				t.Fatal("no completion for unwatch")
			}
		})
	}
}

func TestDiffRoundsSynthesizesFoundAndLost(t *testing.T) {
	const serviceType = "_ipp._tcp"
	pump := newEventPump(16)

	round1 := map[string]bool{"printer1": true, "printer2": true}
	diffRounds(&pump, serviceType, map[string]bool{}, round1)
	assert.ElementsMatch(t, []nsd.ProviderEvent{
		nsd.Found{Ref: nsd.ServiceRef{Name: "printer1", Type: serviceType}},
		nsd.Found{Ref: nsd.ServiceRef{Name: "printer2", Type: serviceType}},
	}, []nsd.ProviderEvent{<-pump.events, <-pump.events})

	// printer2 stops answering
	round2 := map[string]bool{"printer1": true}
	diffRounds(&pump, serviceType, round1, round2)
	assert.Equal(t, nsd.Lost{Ref: nsd.ServiceRef{Name: "printer2", Type: serviceType}}, <-pump.events)

	// an unchanged round is silent
	diffRounds(&pump, serviceType, round2, round2)
	select {
	case ev := <-pump.events:
		t.Fatalf("unexpected event %T for an unchanged round", ev)
	default:
	}
}

func TestDNSSDRoundTrip(t *testing.T) {
	// Skip mDNS tests in short mode as multicast may be unavailable in CI
	if testing.Short() {
		t.Skip("Skipping mDNS network test in short mode")
	}

	cfg := DefaultConfig()
	advertiser, err := NewDNSSD(cfg)
	require.NoError(t, err)
	browser, err := NewDNSSD(cfg)
	require.NoError(t, err)

	info := nsd.ServiceInfo{
		Name: "nsdkit-test-instance",
		Type: "_nsdkit-test._tcp",
		Port: 8080,
		Text: map[string]string{"desc": "round trip"},
	}
	advertiser.Advertise(info)
	select {
	case ev := <-advertiser.Events():
		require.IsType(t, nsd.AdvertiseOK{}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("advertise did not complete")
	}
	defer advertiser.Withdraw()

	session := nsd.NewSession(browser)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Run(ctx) }()

	session.Discover(info.Type)
	require.Eventually(t, func() bool {
		for _, ref := range session.KnownServices() {
			if ref.Name == info.Name {
				return true
			}
		}
		return false
	}, 10*time.Second, 100*time.Millisecond, "advertised service was not discovered")
}
