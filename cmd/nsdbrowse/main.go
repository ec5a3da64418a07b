package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/omdev/nsdkit/internal/app"
	"github.com/omdev/nsdkit/internal/util"
	"github.com/omdev/nsdkit/pkg/nsd"
	"github.com/omdev/nsdkit/pkg/nsd/provider"
	"github.com/omdev/nsdkit/pkg/ui"
)

func main() {
	f, _ := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}()
	log.SetOutput(f)

	var (
		backend     string
		domain      string
		serviceType string
	)

	cmd := &cobra.Command{
		Use:   "nsdbrowse",
		Short: "Advertise, browse and resolve DNS-SD services on the local network",
	}

	cmd.PersistentFlags().StringVar(&backend, "backend", provider.BackendDNSSD, "Discovery backend: dnssd, zeroconf or mdns")
	cmd.PersistentFlags().StringVar(&domain, "domain", nsd.DefaultDomain, "DNS-SD domain")
	cmd.PersistentFlags().StringVar(&serviceType, "type", "_nsdkit._tcp", "Service type, e.g. _ipp._tcp")

	newProvider := func() (nsd.Provider, error) {
		cfg := provider.DefaultConfig()
		cfg.Domain = domain
		return provider.New(backend, cfg)
	}

	var (
		name       string
		port       int
		txt        []string
		excludeOwn bool
	)

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse for services interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := newProvider()
			if err != nil {
				return err
			}

			cfg := app.Config{
				ServiceType:       serviceType,
				ExcludeOwnService: excludeOwn,
			}
			if port > 0 {
				cfg.Advertise = &nsd.ServiceInfo{
					Name: name,
					Type: serviceType,
					Port: port,
					Text: parseTXTFlags(txt),
				}
			}

			model := ui.InitialModel(app.NewBrowser(prov, cfg), serviceType)
			p := tea.NewProgram(model)
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		},
	}
	browseCmd.Flags().StringVar(&name, "name", "", "Instance name to advertise (default: generated)")
	browseCmd.Flags().IntVar(&port, "port", 0, "Port to advertise alongside the browse (0 disables advertising)")
	browseCmd.Flags().StringArrayVar(&txt, "txt", nil, "TXT attribute as key=value (repeatable)")
	browseCmd.Flags().BoolVar(&excludeOwn, "exclude-own", true, "Hide the local advertisement from results")

	advertiseCmd := &cobra.Command{
		Use:   "advertise",
		Short: "Advertise a service until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := newProvider()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runAdvertise(ctx, prov, nsd.ServiceInfo{
				Name: name,
				Type: serviceType,
				Port: port,
				Text: parseTXTFlags(txt),
			})
		},
	}
	advertiseCmd.Flags().StringVar(&name, "name", "nsdkit", "Instance name to advertise")
	advertiseCmd.Flags().IntVar(&port, "port", 8080, "Port to advertise")
	advertiseCmd.Flags().StringArrayVar(&txt, "txt", nil, "TXT attribute as key=value (repeatable)")

	var resolveTimeout time.Duration
	resolveCmd := &cobra.Command{
		Use:   "resolve <instance-name>",
		Short: "Resolve a service instance to its address and port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := newProvider()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), resolveTimeout)
			defer cancel()

			return runResolve(ctx, prov, nsd.ServiceRef{Name: args[0], Type: serviceType})
		},
	}
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 10*time.Second, "How long to wait for the resolve")

	cmd.AddCommand(browseCmd)
	cmd.AddCommand(advertiseCmd)
	cmd.AddCommand(resolveCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// parseTXTFlags turns repeated key=value flags into a TXT attribute map.
func parseTXTFlags(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		attrs[key] = value
	}
	return attrs
}

// sessionListener adapts session callbacks to channels for the headless
// commands.
type sessionListener struct {
	resolved chan nsd.ResolvedService
	errs     chan error
}

func newSessionListener() *sessionListener {
	return &sessionListener{
		resolved: make(chan nsd.ResolvedService, 1),
		errs:     make(chan error, 1),
	}
}

func (l *sessionListener) OnServiceResolved(svc nsd.ResolvedService) {
	select {
	case l.resolved <- svc:
	default:
	}
}

func (l *sessionListener) OnError(kind nsd.ErrorKind, code nsd.Code) {
	select {
	case l.errs <- fmt.Errorf("%s: %s", kind, nsd.ErrorMessage(code)):
	default:
	}
}

func runAdvertise(ctx context.Context, prov nsd.Provider, info nsd.ServiceInfo) error {
	listener := newSessionListener()
	session := nsd.NewSession(prov)
	session.SetErrorListener(listener)

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	session.Register(info)

	// The effective name may differ from the requested one when the
	// responder renames to avoid a conflict.
	announced := false
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case err := <-listener.errs:
			return err
		case <-ticker.C:
			if name := session.RegisteredName(); !announced && name != "" {
				fmt.Printf("Advertising %q (%s) on port %d. Press ctrl + c to stop.\n", name, info.Type, info.Port)
				announced = true
			}
		}
	}
}

func runResolve(ctx context.Context, prov nsd.Provider, ref nsd.ServiceRef) error {
	listener := newSessionListener()
	session := nsd.NewSession(prov)
	session.SetErrorListener(listener)
	session.SetResolveListener(listener)

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	session.Resolve(ref)

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("resolve %q: timed out", ref.Name)
	case err := <-listener.errs:
		return err
	case svc := <-listener.resolved:
		fmt.Printf("%s.%s\n", svc.Name, svc.Type)
		fmt.Printf("  address: %s\n", svc.Addr)
		fmt.Printf("  port:    %d\n", svc.Port)
		for _, pair := range util.EncodeTXT(svc.Text) {
			fmt.Printf("  txt:     %s\n", pair)
		}
		return nil
	}
}
