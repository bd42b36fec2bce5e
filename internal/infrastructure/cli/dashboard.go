package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard of stored reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		if os.Getenv("SMARTREVIEWER_SKIP_DASHBOARD_RUN") == "true" {
			return nil
		}
		p := tea.NewProgram(newDashboardModel(cmd.Context(), services))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("dashboard run failed: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dashboardCmd)
}

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	PaddingLeft(1).
	PaddingRight(1)

type resultsLoadedMsg struct {
	list []domain.ResultSummary
	err  error
}

type detailLoadedMsg struct {
	text string
	err  error
}

type dashboardModel struct {
	ctx      context.Context
	services *wiring.AppServices
	table    table.Model
	list     []domain.ResultSummary
	detail   string
	err      error
}

func newDashboardModel(ctx context.Context, services *wiring.AppServices) dashboardModel {
	columns := []table.Column{
		{Title: "Status", Width: 8},
		{Title: "State", Width: 17},
		{Title: "Document", Width: 28},
		{Title: "Findings", Width: 8},
		{Title: "Completed", Width: 16},
		{Title: "ID", Width: 36},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229"))
	t.SetStyles(s)

	return dashboardModel{ctx: ctx, services: services, table: t}
}

func (m dashboardModel) Init() tea.Cmd { return m.loadResults }

func (m dashboardModel) loadResults() tea.Msg {
	list, err := m.services.Reviews.Results(m.ctx)
	return resultsLoadedMsg{list: list, err: err}
}

func (m dashboardModel) loadDetail(id string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.services.Reviews.Result(m.ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		var buf bytes.Buffer
		renderResult(&buf, res)
		return detailLoadedMsg{text: buf.String()}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultsLoadedMsg:
		m.err = msg.err
		m.list = msg.list
		rows := make([]table.Row, 0, len(msg.list))
		for _, s := range msg.list {
			rows = append(rows, table.Row{
				string(s.Status), string(s.RunState), s.DocumentID,
				fmt.Sprint(s.Findings), s.CompletedAt.Format("2006-01-02 15:04"), s.ID,
			})
		}
		m.table.SetRows(rows)
		return m, nil
	case detailLoadedMsg:
		m.err = msg.err
		m.detail = msg.text
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.detail = ""
			return m, nil
		case "r":
			return m, m.loadResults
		case "enter":
			if row := m.table.SelectedRow(); row != nil {
				return m, m.loadDetail(row[len(row)-1])
			}
			return m, nil
		}
	}
	if m.detail != "" {
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboardModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error loading dashboard: %v\nPress q to quit.", m.err)
	}
	header := headerStyle.Render("SmartReviewer")
	if m.detail != "" {
		return baseStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			header,
			m.detail,
			"[esc] Back  [q] Quit",
		)) + "\n"
	}

	summary := fmt.Sprintf("%d stored reviews", len(m.list))
	failed := 0
	for _, s := range m.list {
		if s.Status == review.StatusFail {
			failed++
		}
	}
	if failed > 0 {
		summary += failStyle.Render(fmt.Sprintf(", %d failing", failed))
	}
	return baseStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		summary,
		"",
		m.table.View(),
		"\n[enter] Details  [r] Reload  [q] Quit  [Up/Down] Navigate",
	)) + "\n"
}
