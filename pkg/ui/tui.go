package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/omdev/nsdkit/internal/app_events"
	browserEvent "github.com/omdev/nsdkit/internal/app_events/browser"
	"github.com/omdev/nsdkit/internal/style"
	"github.com/omdev/nsdkit/internal/util"
	"github.com/omdev/nsdkit/pkg/nsd"
)

// browserState defines the different states of the browser UI.
type browserState int

const (
	searching browserState = iota
	selectingService
	resolvingService
	showingResolved
)

type model struct {
	state         browserState
	appController AppController
	serviceType   string

	spinner  spinner.Model
	table    table.Model
	services []nsd.ServiceRef
	selected nsd.ServiceRef
	resolved nsd.ResolvedService

	localName string
	status    string
	err       error
}

var columns = []table.Column{
	{Title: "Index", Width: 10},
	{Title: "Name", Width: 30},
	{Title: "Type", Width: 20},
}

// InitialModel builds the browser TUI around the given controller.
func InitialModel(appController AppController, serviceType string) model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	return model{
		state:         searching,
		appController: appController,
		serviceType:   serviceType,
		spinner:       style.NewSpinner(),
		table:         t,
	}
}

func (m model) Init() tea.Cmd {
	go func() {
		if err := m.appController.Run(context.Background()); err != nil && err != context.Canceled {
			slog.Error("Controller stopped", "error", err)
		}
	}()

	return tea.Batch(m.spinner.Tick, m.listenForAppMessages())
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m *model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.appController.UIMessages()
	}
}

// sendAppEvent forwards a UI-initiated event to the controller without
// blocking the update loop.
func (m *model) sendAppEvent(event appevents.AppEvent) tea.Cmd {
	events := m.appController.AppEvents()
	return func() tea.Msg {
		events <- event
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, processed := m.handleAppEvent(msg); processed {
		return m, cmd
	}

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		cmd = m.handleKey(msg)
	}

	var spinCmd tea.Cmd
	m.spinner, spinCmd = m.spinner.Update(msg)

	var tableCmd tea.Cmd
	if m.state == selectingService {
		m.table, tableCmd = m.table.Update(msg)
	}

	return m, tea.Batch(cmd, spinCmd, tableCmd)
}

func (m *model) handleAppEvent(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case browserEvent.ServiceListMsg:
		slog.Info("Discovery update", "service_count", len(msg.Services))
		if len(msg.Services) > 0 && m.state == searching {
			m.state = selectingService
		}
		// If the list of services becomes empty, go back to the searching state.
		if len(msg.Services) == 0 && m.state == selectingService {
			m.state = searching
		}
		m.updateServiceTable(msg.Services)
		return m.listenForAppMessages(), true
	case browserEvent.ServiceResolvedMsg:
		m.resolved = msg.Service
		m.state = showingResolved
		return m.listenForAppMessages(), true
	case browserEvent.RegisteredMsg:
		m.localName = msg.Name
		return m.listenForAppMessages(), true
	case browserEvent.StatusUpdateMsg:
		m.status = msg.Message
		return m.listenForAppMessages(), true
	case appevents.AppErrorMsg:
		m.err = msg.Err
		if m.state == resolvingService {
			m.state = selectingService
		}
		return m.listenForAppMessages(), true
	}
	return nil, false
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.state {
	case selectingService:
		if msg.Type == tea.KeyEnter && len(m.services) > 0 {
			selectedIndex := m.table.Cursor()
			if selectedIndex < 0 || selectedIndex >= len(m.services) {
				err := fmt.Errorf("internal error: cursor %d is out of sync with services list (len %d)", selectedIndex, len(m.services))
				slog.Error("Cursor out of sync", "error", err)
				m.err = err
				return nil
			}
			m.err = nil
			m.selected = m.services[selectedIndex]
			m.state = resolvingService
			return m.sendAppEvent(browserEvent.ResolveRequestMsg{Ref: m.selected})
		}
	case showingResolved:
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
			m.state = selectingService
		}
	}

	if msg.String() == "r" && (m.state == searching || m.state == selectingService) {
		m.state = searching
		m.status = ""
		return m.sendAppEvent(browserEvent.RediscoverMsg{})
	}

	return nil
}

func (m *model) updateServiceTable(services []nsd.ServiceRef) {
	m.services = services
	rows := []table.Row{}
	for index, svc := range services {
		rows = append(rows, table.Row{
			strconv.Itoa(index), svc.Name, svc.Type,
		})
	}
	m.table.SetRows(rows)
	m.table.SetHeight(len(rows) + 1)
}

func (m model) View() string {
	var s string
	switch m.state {
	case searching:
		s = fmt.Sprintf("\n%s Browsing for %s services...", m.spinner.View(), style.HighlightFontStyle.Render(m.serviceType))
	case selectingService:
		s = fmt.Sprintf("\n✔  Found %d service(s)\n", len(m.services))
		s += style.BaseStyle.Render(m.table.View()) + "\n"
		s += style.HelpStyle.Render("Use arrow keys to navigate, Enter to resolve, r to rediscover.")
	case resolvingService:
		s = fmt.Sprintf("\n%s Resolving %s...", m.spinner.View(), style.HighlightFontStyle.Render(m.selected.Name))
	case showingResolved:
		s = m.resolvedView()
	default:
		return "Internal error: unknown browser state"
	}

	if m.localName != "" {
		s += "\n\n" + style.HelpStyle.Render("Advertising as "+m.localName)
	}
	if m.status != "" {
		s += "\n" + m.status
	}
	if m.err != nil {
		s += "\n" + style.ErrorStyle.Render("Error: "+m.err.Error())
	}
	s += "\nPress ctrl + c to quit"
	return s
}

func (m model) resolvedView() string {
	const labelWidth = 10

	s := "\n" + style.TitleStyle.Render(m.resolved.Name) + "\n"
	s += util.PadRight("Type:", labelWidth) + m.resolved.Type + "\n"
	s += util.PadRight("Address:", labelWidth) + m.resolved.Addr.String() + "\n"
	s += util.PadRight("Port:", labelWidth) + strconv.Itoa(m.resolved.Port) + "\n"

	keys := make([]string, 0, len(m.resolved.Text))
	for k := range m.resolved.Text {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s += util.PadRight(k+":", labelWidth) + m.resolved.Text[k] + "\n"
	}

	s += style.HelpStyle.Render("Press Enter to go back to the list.")
	return s
}
