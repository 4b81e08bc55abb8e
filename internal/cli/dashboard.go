package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// Dashboard panel indices.
const (
	panelPlan = iota
	panelOutcomes
	panelAlerts
	panelCount
)

// dashboardKeys are the dashboard key bindings. They double as the help
// line rendered under the panels.
type dashboardKeys struct {
	Next    key.Binding
	Prev    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k dashboardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Refresh, k.Quit}
}

func (k dashboardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.Refresh, k.Quit}}
}

var dashboardKeyMap = dashboardKeys{
	Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch panel")),
	Prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous panel")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type dashboardModel struct {
	activePanel int
	width       int
	height      int
	help        help.Model

	// Data.
	plan        []planSnapshot
	calibration map[models.RiskCategory]models.CategoryCalibration
	metricsData *metricsSnapshot
	alerts      []alertSnapshot

	// State.
	loading bool
	err     error
}

type planSnapshot struct {
	id   string
	risk string
	ev   float64
}

type metricsSnapshot struct {
	finished       int
	merged         int
	rejected       int
	withdrawn      int
	approvalRate   float64
	averageRounds  float64
	exhaustedLoops int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	plan        []planSnapshot
	calibration map[models.RiskCategory]models.CategoryCalibration
	metrics     *metricsSnapshot
	alerts      []alertSnapshot
	err         error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	riskLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	riskMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	riskHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelPlan,
		help:        help.New(),
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, dashboardKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, dashboardKeyMap.Next):
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case key.Matches(msg, dashboardKeyMap.Prev):
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case key.Matches(msg, dashboardKeyMap.Refresh):
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.plan = msg.plan
		m.calibration = msg.calibration
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" cplan dashboard ")
	help := m.help.View(dashboardKeyMap)

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	planPanel := m.renderPlanPanel()
	outcomesPanel := m.renderOutcomesPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		planPanel = m.applyPanelStyle(panelPlan, planPanel, colWidth-4)
		outcomesPanel = m.applyPanelStyle(panelOutcomes, outcomesPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, planPanel, outcomesPanel, alertsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		planPanel = m.applyPanelStyle(panelPlan, planPanel, panelWidth)
		outcomesPanel = m.applyPanelStyle(panelOutcomes, outcomesPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, planPanel, outcomesPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderPlanPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Plan"))
	b.WriteString("\n")

	if len(m.plan) == 0 {
		b.WriteString("  No plan saved.")
		return b.String()
	}

	for i, e := range m.plan {
		risk := styleForRisk(e.risk).Render(fmt.Sprintf("%-6s", e.risk))
		b.WriteString(fmt.Sprintf("  %d. %-20s %s EV %.2f\n", i+1, e.id, risk, e.ev))
	}

	if len(m.calibration) > 0 {
		b.WriteString("\n  Calibration\n")
		for _, rc := range models.RiskCategories {
			c := m.calibration[rc]
			label := fmt.Sprintf("  %-8s %5.1f%% (%d)", rc, c.ApprovalRate*100, c.SampleCount)
			b.WriteString(styleForRisk(string(rc)).Render(label))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m dashboardModel) renderOutcomesPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Outcomes (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value string
	}{
		{"Finished", fmt.Sprintf("%d", md.finished)},
		{"Merged", fmt.Sprintf("%d", md.merged)},
		{"Rejected", fmt.Sprintf("%d", md.rejected)},
		{"Withdrawn", fmt.Sprintf("%d", md.withdrawn)},
		{"Approval", fmt.Sprintf("%.1f%%", md.approvalRate*100)},
		{"Avg rounds", fmt.Sprintf("%.1f", md.averageRounds)},
		{"Exhausted", fmt.Sprintf("%d", md.exhaustedLoops)},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %s\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForRisk(risk string) lipgloss.Style {
	switch risk {
	case "low":
		return riskLow
	case "medium":
		return riskMedium
	case "high":
		return riskHigh
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{}

	// Load the saved plan and the current calibration.
	if Plans != nil {
		plan, err := Plans.LoadPlan()
		if err != nil && !errors.Is(err, storage.ErrNoPlan) {
			result.err = fmt.Errorf("loading plan: %w", err)
			return result
		}
		if plan != nil {
			for _, e := range plan.Entries {
				result.plan = append(result.plan, planSnapshot{
					id:   e.Scored.Opportunity.ID,
					risk: string(e.Scored.Risk),
					ev:   e.ExpectedValue,
				})
			}
		}
	}

	if Aggregator != nil {
		result.calibration = Aggregator.Snapshot().Categories
	}

	// Load metrics from MetricsCalc.
	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			finished:       metrics.SimulationsFinished,
			merged:         metrics.OutcomesByState[string(models.StateMerged)],
			rejected:       metrics.OutcomesByState[string(models.StateRejected)],
			withdrawn:      metrics.OutcomesByState[string(models.StateWithdrawn)],
			approvalRate:   metrics.ApprovalRate(),
			averageRounds:  metrics.AverageRounds(),
			exhaustedLoops: metrics.ExhaustedLoops,
		}
	}

	// Load alerts from AlertEngine.
	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		// Sort alerts by severity: high first, then medium, then low.
		sort.Slice(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for the plan, outcomes, and alerts",
	Long: `Launch an interactive terminal dashboard showing the saved plan,
the current calibration, outcome metrics, and alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
